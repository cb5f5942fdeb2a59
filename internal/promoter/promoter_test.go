package promoter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillforge/internal/audit"
	"skillforge/internal/evalgate"
	"skillforge/internal/registry"
)

func setup(t *testing.T) (dir string, reg *registry.Registry, auditLog *audit.Logger) {
	t.Helper()
	dir = t.TempDir()
	reg = registry.Open(filepath.Join(dir, "registry.json"))
	var err error
	auditLog, err = audit.Open(filepath.Join(dir, "audit.log"))
	require.NoError(t, err)
	t.Cleanup(func() { auditLog.Close() })
	return dir, reg, auditLog
}

func writeStagingArtifact(t *testing.T, dir, name, version string) string {
	t.Helper()
	artifactDir := filepath.Join(dir, "staging", name, version)
	require.NoError(t, os.MkdirAll(artifactDir, 0o755))
	source := "def verify():\n    return True\n\n\ndef action(**kwargs):\n    return kwargs\n"
	require.NoError(t, os.WriteFile(filepath.Join(artifactDir, "skill.py"), []byte(source), 0o644))
	return artifactDir
}

func TestPromoteWithNoEvalCasesPassesVacuously(t *testing.T) {
	dir, reg, auditLog := setup(t)
	writeStagingArtifact(t, dir, "csv-merge", "1.0.0")
	require.NoError(t, reg.AddStaging("csv-merge", "1.0.0", "codehash", "manifesthash", registry.Validation{}))

	p := &Promoter{
		Registry:    reg,
		Audit:       auditLog,
		EvalRunner:  evalgate.NewRunner(),
		StagingRoot: filepath.Join(dir, "staging"),
		ProdRoot:    filepath.Join(dir, "prod"),
		Gates:       DefaultGates(filepath.Join(dir, "cases")),
	}

	err := p.Promote(context.Background(), "csv-merge")
	require.NoError(t, err)

	entry, err := reg.GetEntry("csv-merge")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", entry.CurrentProd)
	assert.Empty(t, entry.CurrentStaging)

	_, statErr := os.Stat(filepath.Join(dir, "prod", "csv-merge", "1.0.0", "skill.py"))
	assert.NoError(t, statErr)
}

func TestPromoteWithNoStagingVersionFails(t *testing.T) {
	dir, reg, auditLog := setup(t)
	p := &Promoter{
		Registry:    reg,
		Audit:       auditLog,
		EvalRunner:  evalgate.NewRunner(),
		StagingRoot: filepath.Join(dir, "staging"),
		ProdRoot:    filepath.Join(dir, "prod"),
		Gates:       DefaultGates(filepath.Join(dir, "cases")),
	}

	err := p.Promote(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNoStagingVersion)
}

func TestPromoteFailureLeavesRegistryAndStagingIntact(t *testing.T) {
	dir, reg, auditLog := setup(t)
	writeStagingArtifact(t, dir, "csv-merge", "1.0.0")
	require.NoError(t, reg.AddStaging("csv-merge", "1.0.0", "codehash", "manifesthash", registry.Validation{}))

	caseRoot := filepath.Join(dir, "cases")
	replayDir := filepath.Join(caseRoot, "replay")
	require.NoError(t, os.MkdirAll(replayDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(replayDir, "case1.json"), []byte(
		`{"id":"c1","skill":"csv-merge","input":{},"expected":{"type":"exact","value":"never-matches"},"timeout_ms":1000}`,
	), 0o644))

	p := &Promoter{
		Registry:    reg,
		Audit:       auditLog,
		EvalRunner:  evalgate.NewRunner(),
		StagingRoot: filepath.Join(dir, "staging"),
		ProdRoot:    filepath.Join(dir, "prod"),
		Gates:       DefaultGates(caseRoot),
	}

	err := p.Promote(context.Background(), "csv-merge")
	assert.Error(t, err)

	entry, getErr := reg.GetEntry("csv-merge")
	require.NoError(t, getErr)
	assert.Equal(t, "1.0.0", entry.CurrentStaging)
	assert.Empty(t, entry.CurrentProd)

	_, statErr := os.Stat(filepath.Join(dir, "prod", "csv-merge", "1.0.0"))
	assert.True(t, os.IsNotExist(statErr))

	// Even though promotion failed, the replay gate's report is still
	// visible on the staging version for later inspection.
	version := entry.Versions["1.0.0"]
	require.NotNil(t, version)
	require.Contains(t, version.Validation.PromoteGate, "replay")
	assert.False(t, version.Validation.PromoteGate["replay"].GatePassed)
}

func TestRollbackRejectsUnknownSkill(t *testing.T) {
	_, reg, auditLog := setup(t)
	r := &Rollbacker{Registry: reg, Audit: auditLog}

	err := r.Rollback("ghost", "1.0.0")
	assert.ErrorIs(t, err, ErrUnknownSkill)
}

func TestRollbackRestoresPriorVersion(t *testing.T) {
	dir, reg, auditLog := setup(t)
	writeStagingArtifact(t, dir, "csv-merge", "1.0.0")
	require.NoError(t, reg.AddStaging("csv-merge", "1.0.0", "h1", "m1", registry.Validation{}))
	require.NoError(t, reg.Promote("csv-merge", "1.0.0"))
	require.NoError(t, reg.AddStaging("csv-merge", "2.0.0", "h2", "m2", registry.Validation{}))
	require.NoError(t, reg.Promote("csv-merge", "2.0.0"))

	r := &Rollbacker{Registry: reg, Audit: auditLog}
	require.NoError(t, r.Rollback("csv-merge", "1.0.0"))

	entry, err := reg.GetEntry("csv-merge")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", entry.CurrentProd)
	assert.Equal(t, registry.StatusDisabled, entry.Versions["2.0.0"].Status)
}
