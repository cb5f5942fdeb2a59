package manifest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validManifestJSON() string {
	return `{
  "name": "csv_merge",
  "version": "1.0.0",
  "description": "Merges two CSV files by a shared key column.",
  "inputs_schema": {"type": "object"},
  "outputs_schema": {"type": "object"},
  "permissions": {"filesystem": "none", "network": false, "subprocess": false}
}`
}

func TestValidateAcceptsWellFormedManifest(t *testing.T) {
	ok, violations := Validate([]byte(validManifestJSON()))
	assert.True(t, ok, "violations: %v", violations)
	assert.Empty(t, violations)
}

func TestValidateRejectsUnknownTopLevelKey(t *testing.T) {
	raw := strings.Replace(validManifestJSON(), `"permissions"`, `"extra_field": true, "permissions"`, 1)
	ok, violations := Validate([]byte(raw))
	assert.False(t, ok)
	assert.Contains(t, strings.Join(violations, " "), "extra_field")
}

func TestValidateRejectsUnknownPermissionsKey(t *testing.T) {
	raw := strings.Replace(validManifestJSON(), `"subprocess": false`, `"subprocess": false, "sneaky": true`, 1)
	ok, violations := Validate([]byte(raw))
	assert.False(t, ok)
	assert.Contains(t, strings.Join(violations, " "), "sneaky")
}

func TestValidateRejectsNetworkTrue(t *testing.T) {
	raw := strings.Replace(validManifestJSON(), `"network": false`, `"network": true`, 1)
	ok, violations := Validate([]byte(raw))
	assert.False(t, ok)
	assert.Contains(t, strings.Join(violations, " "), "network")
}

func TestValidateRejectsSubprocessTrue(t *testing.T) {
	raw := strings.Replace(validManifestJSON(), `"subprocess": false`, `"subprocess": true`, 1)
	ok, violations := Validate([]byte(raw))
	assert.False(t, ok)
	assert.Contains(t, strings.Join(violations, " "), "subprocess")
}

func TestValidateDescriptionBoundsAccepted(t *testing.T) {
	ten := strings.Repeat("a", 10)
	fiveHundred := strings.Repeat("a", 500)

	for _, desc := range []string{ten, fiveHundred} {
		raw := strings.Replace(validManifestJSON(), "Merges two CSV files by a shared key column.", desc, 1)
		ok, violations := Validate([]byte(raw))
		assert.True(t, ok, "desc length %d, violations: %v", len(desc), violations)
	}
}

func TestValidateDescriptionOutsideBoundsRejected(t *testing.T) {
	nine := strings.Repeat("a", 9)
	fiveOhOne := strings.Repeat("a", 501)

	for _, desc := range []string{nine, fiveOhOne} {
		raw := strings.Replace(validManifestJSON(), "Merges two CSV files by a shared key column.", desc, 1)
		ok, _ := Validate([]byte(raw))
		assert.False(t, ok, "desc length %d should be rejected", len(desc))
	}
}

func TestValidateNameLengthBounds(t *testing.T) {
	three := "abc"
	sixtyFour := "a" + strings.Repeat("b", 63)
	two := "ab"
	sixtyFive := "a" + strings.Repeat("b", 64)

	for _, name := range []string{three, sixtyFour} {
		raw := strings.Replace(validManifestJSON(), `"csv_merge"`, `"`+name+`"`, 1)
		ok, violations := Validate([]byte(raw))
		assert.True(t, ok, "name %q (len %d) should be accepted, violations: %v", name, len(name), violations)
	}
	for _, name := range []string{two, sixtyFive} {
		raw := strings.Replace(validManifestJSON(), `"csv_merge"`, `"`+name+`"`, 1)
		ok, _ := Validate([]byte(raw))
		assert.False(t, ok, "name %q (len %d) should be rejected", name, len(name))
	}
}

func TestValidateRejectsMalformedVersion(t *testing.T) {
	raw := strings.Replace(validManifestJSON(), `"1.0.0"`, `"v1"`, 1)
	ok, violations := Validate([]byte(raw))
	assert.False(t, ok)
	assert.Contains(t, strings.Join(violations, " "), "version")
}

func TestValidateInvalidJSON(t *testing.T) {
	ok, violations := Validate([]byte("{not json"))
	assert.False(t, ok)
	assert.NotEmpty(t, violations)
}

func TestParseDecodesWithoutValidating(t *testing.T) {
	m, err := Parse([]byte(validManifestJSON()))
	assert.NoError(t, err)
	assert.Equal(t, "csv_merge", m.Name)
	assert.Equal(t, "1.0.0", m.Version)
}
