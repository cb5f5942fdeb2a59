// Package registry implements the versioned, append-mostly skill
// ledger described in spec.md section 4.5: at most one staging and one
// prod version per skill, atomic promote/rollback transitions, and a
// canonical-JSON file persisted via load-mutate-save under an
// exclusive file lock so concurrent launches never corrupt it.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

var (
	// ErrUnknownSkill is returned when an operation names a skill with
	// no registry entry.
	ErrUnknownSkill = errors.New("registry: unknown skill")
	// ErrUnknownVersion is returned when an operation names a version
	// the skill has no record of.
	ErrUnknownVersion = errors.New("registry: unknown version")
	// ErrNotStaging is returned by Promote when the named version is
	// not currently in the staging slot.
	ErrNotStaging = errors.New("registry: version is not staging")
	// ErrNotPromotable is returned by Rollback when the target version
	// was never promoted (promoted_at is null).
	ErrNotPromotable = errors.New("registry: version was never promoted, ineligible for rollback")
)

// Status is a SkillVersion's lifecycle state.
type Status string

const (
	StatusStaging  Status = "staging"
	StatusProd     Status = "prod"
	StatusDisabled Status = "disabled"
)

// Validation holds the structured results of each gate a version has
// passed through.
type Validation struct {
	ASTGate      *ASTGateResult                `json:"ast_gate,omitempty"`
	Sandbox      *SandboxResult                `json:"sandbox,omitempty"`
	PromoteGate  map[string]CategoryGateResult `json:"promote_gate,omitempty"`
}

// ASTGateResult mirrors staticgate.Result in registry-storable form.
type ASTGateResult struct {
	Passed     bool     `json:"passed"`
	Violations []string `json:"violations"`
}

// SandboxResult mirrors sandbox.Decision in registry-storable form.
type SandboxResult struct {
	Passed  bool                   `json:"passed"`
	Skipped bool                   `json:"skipped,omitempty"`
	Metrics map[string]interface{} `json:"metrics,omitempty"`
}

// CategoryGateResult mirrors evalgate.Report in registry-storable form.
type CategoryGateResult struct {
	Total      int     `json:"total"`
	Passed     int     `json:"passed"`
	Failed     int     `json:"failed"`
	PassRate   float64 `json:"pass_rate"`
	Threshold  float64 `json:"threshold"`
	GatePassed bool    `json:"gate_passed"`
}

// SkillVersion is one immutable build of a named skill moving through
// the staging -> prod -> disabled lifecycle (with rollback able to
// return a disabled version to prod).
type SkillVersion struct {
	Version         string     `json:"version"`
	CodeHash        string     `json:"code_hash"`
	ManifestHash    string     `json:"manifest_hash"`
	CreatedAt       time.Time  `json:"created_at"`
	Status          Status     `json:"status"`
	Validation      Validation `json:"validation"`
	PromotedAt      *time.Time `json:"promoted_at,omitempty"`
	DisabledAt      *time.Time `json:"disabled_at,omitempty"`
	DisabledReason  string     `json:"disabled_reason,omitempty"`
}

// SkillEntry is the registry's per-skill record.
type SkillEntry struct {
	Name           string                  `json:"name"`
	CurrentProd    string                  `json:"current_prod,omitempty"`
	CurrentStaging string                  `json:"current_staging,omitempty"`
	Versions       map[string]*SkillVersion `json:"versions"`
}

// Document is the on-disk registry shape.
type Document struct {
	Skills    map[string]*SkillEntry `json:"skills"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Registry guards load-mutate-save access to a single registry file
// with an OS-level exclusive lock so multiple pipeline processes
// sharing a file never interleave a write.
type Registry struct {
	path string
}

// Open returns a Registry bound to path. The file need not exist yet;
// it is created on first Save.
func Open(path string) *Registry {
	return &Registry{path: path}
}

// withLock loads the current document under an exclusive flock, lets
// fn mutate it, and atomically saves the result — unless fn returns an
// error, in which case nothing is written.
func (r *Registry) withLock(fn func(*Document) error) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return err
	}
	lockPath := r.path + ".lock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("registry: open lock file: %w", err)
	}
	defer lockFile.Close()

	if err := unix.Flock(int(lockFile.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("registry: acquire lock: %w", err)
	}
	defer unix.Flock(int(lockFile.Fd()), unix.LOCK_UN)

	doc, err := r.load()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return r.save(doc)
}

func (r *Registry) load() (*Document, error) {
	raw, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return &Document{Skills: map[string]*SkillEntry{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("registry: read: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("registry: corrupt registry file: %w", err)
	}
	if doc.Skills == nil {
		doc.Skills = map[string]*SkillEntry{}
	}
	return &doc, nil
}

func (r *Registry) save(doc *Document) error {
	doc.UpdatedAt = time.Now().UTC()
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, r.path)
}

// GetEntry returns a snapshot of one skill's entry, or nil if unknown.
func (r *Registry) GetEntry(name string) (*SkillEntry, error) {
	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	return doc.Skills[name], nil
}

// ListSkills returns every skill name currently tracked.
func (r *Registry) ListSkills() ([]string, error) {
	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(doc.Skills))
	for name := range doc.Skills {
		names = append(names, name)
	}
	return names, nil
}

// AddStaging inserts a new staging version for name, per spec.md
// section 4.5. Only one staging slot exists; a fresh add replaces the
// current_staging pointer (the prior staging version's record is kept
// but orphaned from the pointer, matching the source's "at most one
// staging slot" invariant on the pointer, not on version history).
func (r *Registry) AddStaging(name, version, codeHash, manifestHash string, validation Validation) error {
	return r.withLock(func(doc *Document) error {
		entry, ok := doc.Skills[name]
		if !ok {
			entry = &SkillEntry{Name: name, Versions: map[string]*SkillVersion{}}
			doc.Skills[name] = entry
		}
		entry.Versions[version] = &SkillVersion{
			Version:      version,
			CodeHash:     codeHash,
			ManifestHash: manifestHash,
			CreatedAt:    time.Now().UTC(),
			Status:       StatusStaging,
			Validation:   validation,
		}
		entry.CurrentStaging = version
		return nil
	})
}

// RecordPromoteGates writes gateResults into version's
// validation.promote_gate field regardless of whether the gates
// passed, so a failed promotion still leaves an inspectable record of
// which gate rejected it and why. Grounded on the original
// implementation's promote.py, which saves this data before checking
// whether every gate passed.
func (r *Registry) RecordPromoteGates(name, version string, gateResults map[string]CategoryGateResult) error {
	return r.withLock(func(doc *Document) error {
		entry, ok := doc.Skills[name]
		if !ok {
			return ErrUnknownSkill
		}
		target, ok := entry.Versions[version]
		if !ok {
			return ErrUnknownVersion
		}
		target.Validation.PromoteGate = gateResults
		return nil
	})
}

// Promote moves version from staging to prod, demoting any prior prod
// version to disabled with reason "Superseded by V". Promoting a
// version that is already prod is a documented no-op, per spec.md
// section 8's idempotence law.
func (r *Registry) Promote(name, version string) error {
	return r.withLock(func(doc *Document) error {
		entry, ok := doc.Skills[name]
		if !ok {
			return ErrUnknownSkill
		}
		target, ok := entry.Versions[version]
		if !ok {
			return ErrUnknownVersion
		}
		if target.Status == StatusProd {
			return nil // already prod: documented no-op
		}
		if target.Status != StatusStaging {
			return ErrNotStaging
		}

		now := time.Now().UTC()
		if entry.CurrentProd != "" && entry.CurrentProd != version {
			if prior, ok := entry.Versions[entry.CurrentProd]; ok {
				prior.Status = StatusDisabled
				prior.DisabledAt = &now
				prior.DisabledReason = fmt.Sprintf("Superseded by %s", version)
			}
		}

		target.Status = StatusProd
		target.PromotedAt = &now
		entry.CurrentProd = version
		if entry.CurrentStaging == version {
			entry.CurrentStaging = ""
		}
		return nil
	})
}

// Rollback re-promotes target, which must already have a non-null
// PromotedAt, demoting the current prod version (if different) to
// disabled with reason "Rollback to <target>".
func (r *Registry) Rollback(name, target string) error {
	return r.withLock(func(doc *Document) error {
		entry, ok := doc.Skills[name]
		if !ok {
			return ErrUnknownSkill
		}
		targetVersion, ok := entry.Versions[target]
		if !ok {
			return ErrUnknownVersion
		}
		if targetVersion.PromotedAt == nil {
			return ErrNotPromotable
		}

		now := time.Now().UTC()
		if entry.CurrentProd != "" && entry.CurrentProd != target {
			if prior, ok := entry.Versions[entry.CurrentProd]; ok {
				prior.Status = StatusDisabled
				prior.DisabledAt = &now
				prior.DisabledReason = fmt.Sprintf("Rollback to %s", target)
			}
		}

		targetVersion.Status = StatusProd
		entry.CurrentProd = target
		return nil
	})
}
