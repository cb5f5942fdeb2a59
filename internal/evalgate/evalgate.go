// Package evalgate implements the Evaluation Gate from spec.md section
// 4.4: a multi-category acceptance suite (replay, regression, redteam)
// that loads case files, drives each through an artifact's action
// entry point with a per-case wall-clock timeout, and scores the
// result against one of a small set of pluggable matchers.
package evalgate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"

	"skillforge/internal/backend"
	"skillforge/internal/hashutil"
)

// Standard thresholds referenced by the promoter, per spec.md section
// 4.4: "Standard thresholds used by the promoter: replay 1.0,
// regression 0.99, redteam 1.0."
const (
	ThresholdReplay     = 1.0
	ThresholdRegression = 0.99
	ThresholdRedteam    = 1.0
)

// Case is one acceptance case loaded from a category directory.
type Case struct {
	ID        string                 `json:"id"`
	Skill     string                 `json:"skill"`
	Input     map[string]interface{} `json:"input"`
	Expected  Expected               `json:"expected"`
	TimeoutMs int                    `json:"timeout_ms"`
}

// Expected carries the matcher selector and its parameters. Exactly
// the fields relevant to Type are populated by case authors; the rest
// are left zero.
type Expected struct {
	Type            string        `json:"type"`
	Value           interface{}   `json:"value,omitempty"`
	Substring       string        `json:"substring,omitempty"`
	Values          []interface{} `json:"values,omitempty"`
	Forbidden       []string      `json:"forbidden,omitempty"`
	MaxDurationMs   int           `json:"max_duration_ms,omitempty"`
}

// CaseResult is the per-case outcome recorded in a GateReport.
type CaseResult struct {
	ID       string        `json:"id"`
	Passed   bool          `json:"passed"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// GateReport is the structured outcome of running one category against
// one skill's artifact.
type GateReport struct {
	Total      int          `json:"total"`
	Passed     int          `json:"passed"`
	Failed     int          `json:"failed"`
	PassRate   float64      `json:"pass_rate"`
	Threshold  float64      `json:"threshold"`
	GatePassed bool         `json:"gate_passed"`
	PerCase    []CaseResult `json:"per_case"`
}

// LoadCases reads every non-dot-prefixed JSON file in dir, parses it
// as a Case, and returns the subset whose Skill field matches
// skillName. Per spec.md section 4.4's case-discovery rule, a
// malformed case file is itself a loader error — this is not the same
// failure mode as a case that fails its matcher at execution time.
func LoadCases(dir, skillName string) ([]Case, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("evalgate: read case dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var cases []Case
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("evalgate: read case file %s: %w", name, err)
		}
		var c Case
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("evalgate: parse case file %s: %w", name, err)
		}
		if c.Skill == skillName {
			cases = append(cases, c)
		}
	}
	return cases, nil
}

// Runner executes cases against one artifact using a Backend.
type Runner struct {
	Backend *backend.PythonBackend
}

// NewRunner returns a Runner backed by the default interpreter backend.
func NewRunner() *Runner {
	return &Runner{Backend: backend.NewPythonBackend()}
}

// Run executes every case in cases against artifactDir and scores the
// aggregate against threshold, per spec.md section 4.4's pass-rate and
// gate_passed rules.
func (r *Runner) Run(ctx context.Context, artifactDir string, cases []Case, threshold float64) GateReport {
	report := GateReport{Total: len(cases), Threshold: threshold}

	for _, c := range cases {
		result := r.runOne(ctx, artifactDir, c)
		report.PerCase = append(report.PerCase, result)
		if result.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
	}

	if report.Total == 0 {
		report.PassRate = 1.0 // vacuous pass
	} else {
		report.PassRate = float64(report.Passed) / float64(report.Total)
	}
	report.GatePassed = report.PassRate >= threshold
	return report
}

func (r *Runner) runOne(ctx context.Context, artifactDir string, c Case) CaseResult {
	timeout := time.Duration(c.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := r.Backend.Action(runCtx, artifactDir, c.Input)
	if err != nil {
		// Missing source, missing action, or an unloadable module is a
		// case failure with an explanatory error, not a gate crash.
		return CaseResult{ID: c.ID, Passed: false, Error: err.Error()}
	}

	passed, matchErr := match(c.Expected, result)
	if matchErr != "" {
		return CaseResult{ID: c.ID, Passed: false, Error: matchErr, Duration: result.Duration}
	}
	if result.ErrorMsg != "" && c.Expected.Type != "timeout_or_error" {
		return CaseResult{ID: c.ID, Passed: false, Error: result.ErrorMsg, Duration: result.Duration}
	}
	return CaseResult{ID: c.ID, Passed: passed, Duration: result.Duration}
}

func match(expected Expected, result backend.ActionResult) (passed bool, errMsg string) {
	switch expected.Type {
	case "exact":
		return reflect.DeepEqual(normalize(result.Value), normalize(expected.Value)), ""

	case "contains":
		if expected.Substring != "" {
			s, ok := result.Value.(string)
			if !ok {
				return false, ""
			}
			return strings.Contains(s, expected.Substring), ""
		}
		if result.Value == nil {
			return false, ""
		}
		text := stringify(result.Value)
		for _, v := range expected.Values {
			if !strings.Contains(text, stringify(v)) {
				return false, ""
			}
		}
		return true, ""

	case "no_forbidden_patterns":
		text := canonicalText(result.Value)
		for _, forbidden := range expected.Forbidden {
			if strings.Contains(text, forbidden) {
				return false, ""
			}
		}
		return true, ""

	case "timeout_or_error":
		if result.TimedOut || result.ErrorMsg != "" {
			return true, ""
		}
		maxDuration := time.Duration(expected.MaxDurationMs) * time.Millisecond
		return result.Duration >= maxDuration, ""

	default:
		return false, fmt.Sprintf("evalgate: unknown matcher type %q", expected.Type)
	}
}

// normalize round-trips through JSON so values decoded from a case
// file (float64s, generic maps) compare equal to equivalent Go values
// returned by the artifact's action call.
func normalize(v interface{}) interface{} {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

func stringify(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}

// canonicalText encodes v as canonical JSON (sorted keys, no
// whitespace) before scanning for forbidden substrings, per spec.md
// section 4.4: "For non-string results, encode as canonical JSON text
// first."
func canonicalText(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	raw, err := hashutil.CanonicalJSON(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}
