// Package audit implements the pipeline's tamper-evident, append-only
// audit log: one line per event, timestamp + operation tag + space
// joined key=value pairs. It is grounded in the teacher's
// internal/logging/audit.go AuditLogger, adapted from Mangle-fact
// emission to the line grammar in spec.md section 6, and turned into
// an owned value (no package-global logger) per the design note in
// spec.md section 9.
package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Operation names the audit event kinds defined in spec.md section 3.
type Operation string

const (
	OpGenerate        Operation = "GENERATE"
	OpASTGate         Operation = "AST_GATE"
	OpManifestInvalid Operation = "MANIFEST_INVALID"
	OpStaging         Operation = "STAGING"
	OpSandbox         Operation = "SANDBOX"
	OpPromote         Operation = "PROMOTE"
	OpPromoteFailed   Operation = "PROMOTE_FAILED"
	OpRollback        Operation = "ROLLBACK"
	OpDisable         Operation = "DISABLE"
	OpGenerateFailed  Operation = "GENERATE_FAILED"
	OpError           Operation = "ERROR"
)

// Logger appends structured audit lines to a single file. All writes
// are serialized under mu so concurrent callers never interleave a
// line with another.
type Logger struct {
	mu   sync.Mutex
	file *os.File
	now  func() time.Time
}

// Open opens (creating parent directories as needed) the audit log at
// path in append mode. The caller owns the returned Logger and must
// call Close when done.
func Open(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("audit: create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("audit: open log: %w", err)
	}
	return &Logger{file: f, now: time.Now}, nil
}

// Close releases the underlying file handle.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Log appends one audit line for operation op with the given key/value
// pairs. Nil values are omitted. Values whose string form contains
// whitespace are double-quoted. Keys are emitted in the order given so
// callers control field ordering for readability.
func (l *Logger) Log(op Operation, kv ...KV) {
	ts := l.now().UTC().Format("2006-01-02T15:04:05Z")
	var b strings.Builder
	b.WriteString(ts)
	b.WriteString(" [")
	b.WriteString(string(op))
	b.WriteString("]")
	for _, pair := range kv {
		if pair.Value == nil {
			continue
		}
		s := fmt.Sprintf("%v", pair.Value)
		if strings.ContainsAny(s, " \t\n") {
			s = `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
		}
		b.WriteString(" ")
		b.WriteString(pair.Key)
		b.WriteString("=")
		b.WriteString(s)
	}
	b.WriteString("\n")

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.file.WriteString(b.String())
}

// KV is one key/value pair for an audit line. A slice of KV preserves
// caller-specified ordering, unlike a map.
type KV struct {
	Key   string
	Value interface{}
}

// Pair is a convenience constructor for KV.
func Pair(key string, value interface{}) KV {
	return KV{Key: key, Value: value}
}

// PairsFromMap builds a deterministically (key-sorted) ordered KV slice
// from a map, for call sites that build field sets dynamically.
func PairsFromMap(m map[string]interface{}) []KV {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]KV, 0, len(keys))
	for _, k := range keys {
		out = append(out, Pair(k, m[k]))
	}
	return out
}
