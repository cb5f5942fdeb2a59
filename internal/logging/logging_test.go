package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBuildsConsoleLoggerByDefault(t *testing.T) {
	log, err := New(Config{})
	require.NoError(t, err)
	require.NotNil(t, log)
	log.Info("hello")
}

func TestNewWritesToFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	log, err := New(Config{JSON: true, OutputPaths: []string{path}})
	require.NoError(t, err)
	log.Info("test message")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "test message")
}

func TestNopDiscardsOutput(t *testing.T) {
	log := Nop()
	require.NotNil(t, log)
	log.Info("should not panic")
}
