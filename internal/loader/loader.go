// Package loader implements the Artifact Loader from spec.md section
// 4.8: the runtime-facing discovery interface that resolves a skill's
// prod artifact on disk — using the registry's current_prod when no
// version is pinned — validates its manifest, and hands back callable
// handles for action and verify.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"skillforge/internal/backend"
	"skillforge/internal/manifest"
	"skillforge/internal/registry"
)

var (
	// ErrSkillNotFound indicates the registry has no entry, or no
	// current_prod, for the requested skill.
	ErrSkillNotFound = errors.New("loader: skill not found")
	// ErrArtifactFilesMissing indicates the prod directory for a
	// resolved (name, version) does not contain the expected files.
	ErrArtifactFilesMissing = errors.New("loader: artifact files missing on disk")
	// ErrManifestInvalid indicates the on-disk manifest failed
	// validation against the schema and MVP policy constraints.
	ErrManifestInvalid = errors.New("loader: manifest invalid")
	// ErrEntryPointMissing indicates the artifact lacks verify, action,
	// or both.
	ErrEntryPointMissing = backend.ErrEntryPointMissing
)

// Handle is a resolved, loadable skill artifact.
type Handle struct {
	Name     string
	Version  string
	Dir      string
	Manifest manifest.Manifest
	backend  *backend.PythonBackend
}

// Action invokes the artifact's action entry point.
func (h *Handle) Action(ctx context.Context, input map[string]interface{}) (backend.ActionResult, error) {
	return h.backend.Action(ctx, h.Dir, input)
}

// Verify invokes the artifact's verify entry point.
func (h *Handle) Verify(ctx context.Context) (backend.VerifyResult, error) {
	return h.backend.Verify(ctx, h.Dir)
}

// cacheKey identifies one resolved (name, version) pair.
type cacheKey struct {
	name    string
	version string
}

// Loader resolves skill names (optionally pinned to a version) against
// a prod artifact tree and a registry. A pinned-version lookup may be
// served from cache; an unpinned lookup always re-reads the registry
// so a current_prod update takes effect on the very next call, per
// spec.md section 4.8.
type Loader struct {
	Registry *registry.Registry
	ProdRoot string

	mu    sync.Mutex
	cache map[cacheKey]*Handle
}

// New returns a Loader bound to reg and the prod artifact root.
func New(reg *registry.Registry, prodRoot string) *Loader {
	return &Loader{Registry: reg, ProdRoot: prodRoot, cache: map[cacheKey]*Handle{}}
}

// Load resolves name, optionally pinned to version ("" to use
// current_prod), and returns a ready-to-call Handle.
func (l *Loader) Load(name, version string) (*Handle, error) {
	if version != "" {
		key := cacheKey{name: name, version: version}
		l.mu.Lock()
		if h, ok := l.cache[key]; ok {
			l.mu.Unlock()
			return h, nil
		}
		l.mu.Unlock()
	}

	resolvedVersion := version
	if resolvedVersion == "" {
		entry, err := l.Registry.GetEntry(name)
		if err != nil {
			return nil, fmt.Errorf("loader: lookup %s: %w", name, err)
		}
		if entry == nil || entry.CurrentProd == "" {
			return nil, ErrSkillNotFound
		}
		resolvedVersion = entry.CurrentProd
	}

	dir := filepath.Join(l.ProdRoot, name, resolvedVersion)
	manifestPath := filepath.Join(dir, "skill.json")
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, ErrArtifactFilesMissing
	}
	if ok, _ := manifest.Validate(raw); !ok {
		return nil, ErrManifestInvalid
	}
	parsed, err := manifest.Parse(raw)
	if err != nil {
		return nil, ErrManifestInvalid
	}

	sourcePath := filepath.Join(dir, "skill.py")
	sourceRaw, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, ErrArtifactFilesMissing
	}
	if !backend.HasEntryPoints(string(sourceRaw)) {
		return nil, ErrEntryPointMissing
	}

	handle := &Handle{
		Name:     name,
		Version:  resolvedVersion,
		Dir:      dir,
		Manifest: parsed,
		backend:  backend.NewPythonBackend(),
	}

	if version != "" {
		l.mu.Lock()
		l.cache[cacheKey{name: name, version: resolvedVersion}] = handle
		l.mu.Unlock()
	}
	return handle, nil
}
