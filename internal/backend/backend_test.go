package backend

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requirePython3(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available on PATH")
	}
}

func writeArtifact(t *testing.T, code string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skill.py"), []byte(code), 0o644))
	return dir
}

func TestVerifySucceedsOnTrueReturn(t *testing.T) {
	requirePython3(t)
	dir := writeArtifact(t, "def verify():\n    return True\n")
	b := NewPythonBackend()

	res, err := b.Verify(context.Background(), dir)
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Equal(t, 0, res.ExitCode)
}

func TestVerifyFailsOnFalseReturn(t *testing.T) {
	requirePython3(t)
	dir := writeArtifact(t, "def verify():\n    return False\n")
	b := NewPythonBackend()

	res, err := b.Verify(context.Background(), dir)
	require.NoError(t, err)
	assert.False(t, res.Passed)
}

func TestVerifyFailsWhenVerifyMissing(t *testing.T) {
	requirePython3(t)
	dir := writeArtifact(t, "def action(**kwargs):\n    return kwargs\n")
	b := NewPythonBackend()

	res, err := b.Verify(context.Background(), dir)
	require.NoError(t, err)
	assert.False(t, res.Passed)
}

func TestVerifyFailsWhenVerifyRaises(t *testing.T) {
	requirePython3(t)
	dir := writeArtifact(t, "def verify():\n    raise ValueError('boom')\n")
	b := NewPythonBackend()

	res, err := b.Verify(context.Background(), dir)
	require.NoError(t, err)
	assert.False(t, res.Passed)
}

func TestVerifyFailsWhenVerifyExitsProcess(t *testing.T) {
	requirePython3(t)
	dir := writeArtifact(t, "import sys\ndef verify():\n    sys.exit(0)\n")
	b := NewPythonBackend()

	res, err := b.Verify(context.Background(), dir)
	require.NoError(t, err)
	assert.False(t, res.Passed, "SystemExit must not be mistaken for success")
}

func TestVerifyMissingArtifactReturnsError(t *testing.T) {
	_, err := NewPythonBackend().Verify(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, ErrArtifactMissing)
}

func TestActionReturnsStructuredResult(t *testing.T) {
	requirePython3(t)
	dir := writeArtifact(t, "def action(a=0, b=0):\n    return a + b\n")
	b := NewPythonBackend()

	res, err := b.Action(context.Background(), dir, map[string]interface{}{"a": 2, "b": 3})
	require.NoError(t, err)
	assert.Empty(t, res.ErrorMsg)
	assert.Equal(t, float64(5), res.Value)
}

func TestActionCapturesRaisedException(t *testing.T) {
	requirePython3(t)
	dir := writeArtifact(t, "def action(**kwargs):\n    raise KeyError('missing')\n")
	b := NewPythonBackend()

	res, err := b.Action(context.Background(), dir, map[string]interface{}{})
	require.NoError(t, err)
	assert.NotEmpty(t, res.ErrorMsg)
}

func TestActionMissingEntryPointReportsError(t *testing.T) {
	requirePython3(t)
	dir := writeArtifact(t, "def verify():\n    return True\n")
	b := NewPythonBackend()

	res, err := b.Action(context.Background(), dir, map[string]interface{}{})
	require.NoError(t, err)
	assert.NotEmpty(t, res.ErrorMsg)
}

func TestActionRespectsContextTimeout(t *testing.T) {
	requirePython3(t)
	dir := writeArtifact(t, "import time\ndef action(**kwargs):\n    time.sleep(5)\n    return True\n")
	b := NewPythonBackend()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	res, err := b.Action(ctx, dir, map[string]interface{}{})
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
}

func TestHasEntryPointsRequiresVerifyAndAction(t *testing.T) {
	assert.True(t, HasEntryPoints("def verify():\n    return True\n\n\ndef action(**kwargs):\n    return kwargs\n"))
	assert.False(t, HasEntryPoints("def verify():\n    return True\n"))
	assert.False(t, HasEntryPoints("def action(**kwargs):\n    return kwargs\n"))
	assert.False(t, HasEntryPoints("x = 1\n"))
}

func TestWrapperScriptExposesBothModes(t *testing.T) {
	script := WrapperScript()
	assert.Contains(t, script, `mode == "verify"`)
	assert.Contains(t, script, `mode == "action"`)
}
