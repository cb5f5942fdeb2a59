// Package manifest implements the Manifest Validator described in
// spec.md section 4.2: schema conformance plus the MVP policy
// invariant that artifacts may neither touch the network nor spawn
// subprocesses.
package manifest

import (
	"encoding/json"
	"fmt"
	"regexp"
)

var (
	nameRe    = regexp.MustCompile(`^[a-z][a-z0-9_]{2,63}$`)
	versionRe = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
)

// Filesystem is the permitted filesystem access level.
type Filesystem string

const (
	FilesystemNone      Filesystem = "none"
	FilesystemReadOnly  Filesystem = "read_workdir"
	FilesystemReadWrite Filesystem = "write_workdir"
)

// Permissions is the manifest's declared capability surface.
type Permissions struct {
	Filesystem Filesystem `json:"filesystem"`
	Network    bool       `json:"network"`
	Subprocess bool       `json:"subprocess"`
}

// Manifest is the structured declaration accompanying a skill
// artifact, per spec.md section 3.
type Manifest struct {
	Name         string                 `json:"name"`
	Version      string                 `json:"version"`
	Description  string                 `json:"description"`
	InputsSchema map[string]interface{} `json:"inputs_schema"`
	OutputsSchema map[string]interface{} `json:"outputs_schema"`
	Permissions  Permissions            `json:"permissions"`
}

// allowedRootKeys and allowedPermissionKeys enumerate the manifest's
// closed-object shape: any other top-level or permissions key fails
// validation.
var (
	allowedRootKeys = map[string]bool{
		"name": true, "version": true, "description": true,
		"inputs_schema": true, "outputs_schema": true, "permissions": true,
	}
	allowedPermissionKeys = map[string]bool{
		"filesystem": true, "network": true, "subprocess": true,
	}
)

// Validate checks raw manifest JSON against the schema and policy
// invariants in spec.md section 3/4.2. It accumulates every violation
// rather than stopping at the first, so a single call reports
// everything wrong with a manifest.
func Validate(raw []byte) (bool, []string) {
	var generic map[string]interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return false, []string{fmt.Sprintf("invalid JSON: %v", err)}
	}

	var errs []string
	for key := range generic {
		if !allowedRootKeys[key] {
			errs = append(errs, fmt.Sprintf("unknown top-level key %q", key))
		}
	}
	if permsRaw, ok := generic["permissions"].(map[string]interface{}); ok {
		for key := range permsRaw {
			if !allowedPermissionKeys[key] {
				errs = append(errs, fmt.Sprintf("unknown permissions key %q", key))
			}
		}
	}

	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		errs = append(errs, fmt.Sprintf("decode manifest: %v", err))
		return false, errs
	}

	if !nameRe.MatchString(m.Name) {
		errs = append(errs, fmt.Sprintf("name %q does not match %s", m.Name, nameRe.String()))
	}
	if !versionRe.MatchString(m.Version) {
		errs = append(errs, fmt.Sprintf("version %q does not match %s", m.Version, versionRe.String()))
	}
	if l := len(m.Description); l < 10 || l > 500 {
		errs = append(errs, fmt.Sprintf("description length %d out of range [10,500]", l))
	}
	switch m.Permissions.Filesystem {
	case FilesystemNone, FilesystemReadOnly, FilesystemReadWrite:
	default:
		errs = append(errs, fmt.Sprintf("permissions.filesystem %q invalid", m.Permissions.Filesystem))
	}
	if m.Permissions.Network {
		errs = append(errs, "permissions.network=true violates MVP policy")
	}
	if m.Permissions.Subprocess {
		errs = append(errs, "permissions.subprocess=true violates MVP policy")
	}

	return len(errs) == 0, errs
}

// Parse decodes raw manifest JSON without validation, for callers that
// have already validated and just need the struct (e.g. the artifact
// loader).
func Parse(raw []byte) (Manifest, error) {
	var m Manifest
	err := json.Unmarshal(raw, &m)
	return m, err
}
