package hashutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeIsDeterministic(t *testing.T) {
	a := Code("def verify():\n    return True\n")
	b := Code("def verify():\n    return True\n")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64) // hex-encoded SHA-256
}

func TestCodeDiffersForDifferentInput(t *testing.T) {
	a := Code("x = 1")
	b := Code("x = 2")
	assert.NotEqual(t, a, b)
}

func TestCanonicalJSONSortsKeysRegardlessOfInputOrder(t *testing.T) {
	var m1, m2 map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(`{"b":2,"a":1,"c":3}`), &m1))
	require.NoError(t, json.Unmarshal([]byte(`{"c":3,"a":1,"b":2}`), &m2))

	c1, err := CanonicalJSON(m1)
	require.NoError(t, err)
	c2, err := CanonicalJSON(m2)
	require.NoError(t, err)
	assert.Equal(t, string(c1), string(c2))
	assert.Equal(t, `{"a":1,"b":2,"c":3}`, string(c1))
}

func TestCanonicalJSONHandlesNestedStructures(t *testing.T) {
	v := map[string]interface{}{
		"z": []interface{}{3, 1, 2},
		"a": map[string]interface{}{"y": 1, "x": 2},
	}
	canon, err := CanonicalJSON(v)
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"x":2,"y":1},"z":[3,1,2]}`, string(canon))
}

func TestManifestHashEqualForEquivalentKeyOrder(t *testing.T) {
	h1, err := Manifest(json.RawMessage(`{"name":"x","version":"1.0.0"}`))
	require.NoError(t, err)
	h2, err := Manifest(json.RawMessage(`{"version":"1.0.0","name":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestManifestHashDiffersForDifferentContent(t *testing.T) {
	h1, err := Manifest(json.RawMessage(`{"name":"x"}`))
	require.NoError(t, err)
	h2, err := Manifest(json.RawMessage(`{"name":"y"}`))
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}
