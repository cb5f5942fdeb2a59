// Package hashutil provides deterministic SHA-256 hashing over code bytes
// and canonical JSON encodings, used to fingerprint artifacts stored in
// the registry.
package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Code returns the hex-encoded SHA-256 digest of UTF-8 source bytes.
func Code(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// CanonicalJSON re-encodes v as JSON with map keys sorted and no
// extraneous whitespace, so that semantically equal values always
// produce byte-identical output.
func CanonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return canonicalEncode(generic)
}

func canonicalEncode(v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := []byte{'{'}
		for i, k := range keys {
			if i > 0 {
				out = append(out, ',')
			}
			keyBytes, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			out = append(out, keyBytes...)
			out = append(out, ':')
			valBytes, err := canonicalEncode(val[k])
			if err != nil {
				return nil, err
			}
			out = append(out, valBytes...)
		}
		out = append(out, '}')
		return out, nil
	case []interface{}:
		out := []byte{'['}
		for i, item := range val {
			if i > 0 {
				out = append(out, ',')
			}
			itemBytes, err := canonicalEncode(item)
			if err != nil {
				return nil, err
			}
			out = append(out, itemBytes...)
		}
		out = append(out, ']')
		return out, nil
	default:
		return json.Marshal(val)
	}
}

// Manifest returns the hex-encoded SHA-256 digest of the canonical JSON
// encoding of a manifest-shaped value (sorted keys, no whitespace).
func Manifest(v interface{}) (string, error) {
	canon, err := CanonicalJSON(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}
