package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillforge/internal/registry"
)

const validManifest = `{
  "name": "csv_merge",
  "version": "1.0.0",
  "description": "Merges two CSV files by a shared key column.",
  "inputs_schema": {"type": "object"},
  "outputs_schema": {"type": "object"},
  "permissions": {"filesystem": "none", "network": false, "subprocess": false}
}`

const validSource = "def verify():\n    return True\n\n\ndef action(**kwargs):\n    return kwargs\n"

func writeProdArtifact(t *testing.T, prodRoot, name, version string) {
	t.Helper()
	dir := filepath.Join(prodRoot, name, version)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skill.json"), []byte(validManifest), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skill.py"), []byte(validSource), 0o644))
}

func TestLoadResolvesCurrentProdWhenVersionOmitted(t *testing.T) {
	dir := t.TempDir()
	prodRoot := filepath.Join(dir, "prod")
	writeProdArtifact(t, prodRoot, "csv-merge", "1.0.0")

	reg := registry.Open(filepath.Join(dir, "registry.json"))
	require.NoError(t, reg.AddStaging("csv-merge", "1.0.0", "h", "m", registry.Validation{}))
	require.NoError(t, reg.Promote("csv-merge", "1.0.0"))

	l := New(reg, prodRoot)
	handle, err := l.Load("csv-merge", "")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", handle.Version)
}

func TestLoadUnknownSkillFails(t *testing.T) {
	dir := t.TempDir()
	reg := registry.Open(filepath.Join(dir, "registry.json"))
	l := New(reg, filepath.Join(dir, "prod"))

	_, err := l.Load("ghost", "")
	assert.ErrorIs(t, err, ErrSkillNotFound)
}

func TestLoadMissingArtifactFilesFails(t *testing.T) {
	dir := t.TempDir()
	reg := registry.Open(filepath.Join(dir, "registry.json"))
	require.NoError(t, reg.AddStaging("csv-merge", "1.0.0", "h", "m", registry.Validation{}))
	require.NoError(t, reg.Promote("csv-merge", "1.0.0"))

	l := New(reg, filepath.Join(dir, "prod"))
	_, err := l.Load("csv-merge", "")
	assert.ErrorIs(t, err, ErrArtifactFilesMissing)
}

func TestLoadDoesNotCacheUnpinnedLookupsAcrossCurrentProdChange(t *testing.T) {
	dir := t.TempDir()
	prodRoot := filepath.Join(dir, "prod")
	writeProdArtifact(t, prodRoot, "csv-merge", "1.0.0")
	writeProdArtifact(t, prodRoot, "csv-merge", "2.0.0")

	reg := registry.Open(filepath.Join(dir, "registry.json"))
	require.NoError(t, reg.AddStaging("csv-merge", "1.0.0", "h1", "m1", registry.Validation{}))
	require.NoError(t, reg.Promote("csv-merge", "1.0.0"))

	l := New(reg, prodRoot)
	handle, err := l.Load("csv-merge", "")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", handle.Version)

	require.NoError(t, reg.AddStaging("csv-merge", "2.0.0", "h2", "m2", registry.Validation{}))
	require.NoError(t, reg.Promote("csv-merge", "2.0.0"))

	handle, err = l.Load("csv-merge", "")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", handle.Version, "unpinned lookup must re-read the registry")
}

func TestLoadCachesPinnedVersionLookups(t *testing.T) {
	dir := t.TempDir()
	prodRoot := filepath.Join(dir, "prod")
	writeProdArtifact(t, prodRoot, "csv-merge", "1.0.0")

	reg := registry.Open(filepath.Join(dir, "registry.json"))
	require.NoError(t, reg.AddStaging("csv-merge", "1.0.0", "h", "m", registry.Validation{}))
	require.NoError(t, reg.Promote("csv-merge", "1.0.0"))

	l := New(reg, prodRoot)
	first, err := l.Load("csv-merge", "1.0.0")
	require.NoError(t, err)

	second, err := l.Load("csv-merge", "1.0.0")
	require.NoError(t, err)
	assert.Same(t, first, second)
}
