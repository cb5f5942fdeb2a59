package generator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillforge/internal/manifest"
)

func TestStubGeneratorProducesValidManifest(t *testing.T) {
	s := &StubGenerator{}
	pkg, err := s.Generate(context.Background(), "Merge two CSV files by a key column", "seen in log line 42")
	require.NoError(t, err)

	assert.NotEmpty(t, pkg.Name)
	assert.Contains(t, pkg.Code, "def verify")
	assert.Contains(t, pkg.Code, "def action")

	ok, violations := manifest.Validate(pkg.ManifestJSON)
	assert.True(t, ok, "violations: %v", violations)
}

func TestStubGeneratorRejectsEmptyCapability(t *testing.T) {
	s := &StubGenerator{}
	_, err := s.Generate(context.Background(), "   ", "")
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownCapability)
	assert.NotErrorIs(t, err, ErrGeneration)
}

func TestSlugifyProducesValidNames(t *testing.T) {
	cases := []string{
		"Merge CSV Files",
		"123 leading digits",
		"a",
		"",
	}
	for _, c := range cases {
		name := slugify(c)
		if name == "" {
			continue
		}
		assert.Regexp(t, `^[a-z][a-z0-9_]{2,63}$`, name, "input: %q", c)
	}
}
