// Package artifact defines the artifact package type produced by the
// Generator collaborator and consumed by every downstream gate, per
// spec.md section 3.
package artifact

import "regexp"

// NamePattern is the naming rule for skill artifacts.
var NamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{2,63}$`)

// Package is a code+manifest+tests bundle produced by a generator and
// carried through the trust pipeline.
type Package struct {
	Name         string
	Code         string
	ManifestJSON []byte
	Tests        []byte // optional acceptance-case bundle, may be nil
}

// SourceFileName returns the on-disk file name for the artifact's
// source, following the staging/prod layout in spec.md section 6.
func (p Package) SourceFileName() string {
	return "skill.py"
}

// ManifestFileName returns the on-disk file name for the manifest.
func (p Package) ManifestFileName() string {
	return "skill.json"
}
