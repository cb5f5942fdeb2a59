// Package promoter implements the Promoter and Rollbacker from
// spec.md section 4.7: the Promoter runs the three Evaluation Gates in
// order against a skill's staging artifact and, only if every gate
// passes, copies the artifact tree to prod and updates the registry;
// the Rollbacker re-promotes an already-promoted disabled version.
package promoter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"skillforge/internal/audit"
	"skillforge/internal/evalgate"
	"skillforge/internal/registry"
)

// ErrUnknownSkill, ErrUnknownVersion, and ErrNotPromotable are
// re-exported so callers of the Rollbacker do not need to import the
// registry package just to compare error identities.
var (
	ErrUnknownSkill   = registry.ErrUnknownSkill
	ErrUnknownVersion = registry.ErrUnknownVersion
	ErrNotPromotable  = registry.ErrNotPromotable
)

// ErrNoStagingVersion indicates the named skill has no current staging
// version to promote.
var ErrNoStagingVersion = errors.New("promoter: skill has no current staging version")

// GateSpec names one evaluation category and its pass-rate threshold.
type GateSpec struct {
	Category  string
	CaseDir   string
	Threshold float64
}

// Promoter runs the three-gate acceptance sequence and, on success,
// performs the staging-to-prod copy and registry promotion.
type Promoter struct {
	Registry    *registry.Registry
	Audit       *audit.Logger
	EvalRunner  *evalgate.Runner
	StagingRoot string
	ProdRoot    string
	Gates       []GateSpec // evaluated in order; spec.md mandates replay, regression, redteam
}

// DefaultGates returns the standard replay/regression/redteam sequence
// with spec.md section 4.4's standard thresholds, rooted at caseRoot.
func DefaultGates(caseRoot string) []GateSpec {
	return []GateSpec{
		{Category: "replay", CaseDir: filepath.Join(caseRoot, "replay"), Threshold: evalgate.ThresholdReplay},
		{Category: "regression", CaseDir: filepath.Join(caseRoot, "regression"), Threshold: evalgate.ThresholdRegression},
		{Category: "redteam", CaseDir: filepath.Join(caseRoot, "redteam"), Threshold: evalgate.ThresholdRedteam},
	}
}

// Promote runs every configured gate against the skill's current
// staging version's artifact directory. If all gates pass it copies
// the artifact to prod and calls registry.Promote; otherwise it emits
// PROMOTE_FAILED, copies nothing, and leaves the prod and staging
// pointers untouched. In both cases the gate reports are first
// recorded on the staging version via registry.RecordPromoteGates.
func (p *Promoter) Promote(ctx context.Context, name string) error {
	entry, err := p.Registry.GetEntry(name)
	if err != nil {
		return fmt.Errorf("promoter: lookup %s: %w", name, err)
	}
	if entry == nil || entry.CurrentStaging == "" {
		return ErrNoStagingVersion
	}
	version := entry.CurrentStaging
	artifactDir := filepath.Join(p.StagingRoot, name, version)

	gateResults := make(map[string]registry.CategoryGateResult, len(p.Gates))
	var failedGates []string

	for _, gate := range p.Gates {
		cases, err := evalgate.LoadCases(gate.CaseDir, name)
		if err != nil {
			return fmt.Errorf("promoter: load %s cases: %w", gate.Category, err)
		}
		report := p.EvalRunner.Run(ctx, artifactDir, cases, gate.Threshold)
		gateResults[gate.Category] = registry.CategoryGateResult{
			Total:      report.Total,
			Passed:     report.Passed,
			Failed:     report.Failed,
			PassRate:   report.PassRate,
			Threshold:  report.Threshold,
			GatePassed: report.GatePassed,
		}
		if !report.GatePassed {
			failedGates = append(failedGates, gate.Category)
		}
	}

	// Gate results are recorded into the registry before the pass/fail
	// decision, so a rejected promotion still leaves an inspectable
	// record of which gate failed and why, matching the original
	// implementation's promote.py.
	if err := p.Registry.RecordPromoteGates(name, version, gateResults); err != nil {
		return fmt.Errorf("promoter: record gate results: %w", err)
	}

	if len(failedGates) > 0 {
		p.logAudit(audit.OpPromoteFailed,
			audit.Pair("name", name),
			audit.Pair("version", version),
			audit.Pair("failed_gates", strings.Join(failedGates, ",")))
		return fmt.Errorf("promoter: gates failed: %s", strings.Join(failedGates, ","))
	}

	targetDir := filepath.Join(p.ProdRoot, name, version)
	if err := os.RemoveAll(targetDir); err != nil {
		return fmt.Errorf("promoter: clear existing prod target: %w", err)
	}
	if err := copyTree(artifactDir, targetDir); err != nil {
		return fmt.Errorf("promoter: copy to prod: %w", err)
	}

	// Registry save must precede the audit entry for the final
	// decision, per spec.md section 4.7's atomicity requirement.
	if err := p.Registry.Promote(name, version); err != nil {
		return fmt.Errorf("promoter: registry promote: %w", err)
	}

	p.logAudit(audit.OpPromote,
		audit.Pair("name", name),
		audit.Pair("version", version),
		audit.Pair("replay_pass_rate", gateResults["replay"].PassRate),
		audit.Pair("regression_pass_rate", gateResults["regression"].PassRate),
		audit.Pair("redteam_pass_rate", gateResults["redteam"].PassRate))
	return nil
}

func (p *Promoter) logAudit(op audit.Operation, kv ...audit.KV) {
	if p.Audit != nil {
		p.Audit.Log(op, kv...)
	}
}

// Rollbacker re-promotes a previously-promoted, now-disabled version.
type Rollbacker struct {
	Registry *registry.Registry
	Audit    *audit.Logger
}

// Rollback fails loudly on an unknown skill, unknown version, or a
// target that was never promoted, per spec.md section 4.7. On
// success it emits DISABLE for the outgoing prod version (if any)
// followed by ROLLBACK.
func (r *Rollbacker) Rollback(name, target string) error {
	entry, err := r.Registry.GetEntry(name)
	if err != nil {
		return fmt.Errorf("rollbacker: lookup %s: %w", name, err)
	}
	if entry == nil {
		return ErrUnknownSkill
	}
	targetVersion, ok := entry.Versions[target]
	if !ok {
		return ErrUnknownVersion
	}
	if targetVersion.PromotedAt == nil {
		return ErrNotPromotable
	}

	priorProd := entry.CurrentProd
	if err := r.Registry.Rollback(name, target); err != nil {
		return fmt.Errorf("rollbacker: registry rollback: %w", err)
	}

	if priorProd != "" && priorProd != target {
		r.logAudit(audit.OpDisable,
			audit.Pair("name", name),
			audit.Pair("version", priorProd),
			audit.Pair("reason", fmt.Sprintf("Rollback to %s", target)))
	}

	from := priorProd
	if from == "" {
		from = "none"
	}
	r.logAudit(audit.OpRollback,
		audit.Pair("name", name),
		audit.Pair("from", from),
		audit.Pair("to", target))
	return nil
}

func (r *Rollbacker) logAudit(op audit.Operation, kv ...audit.KV) {
	if r.Audit != nil {
		r.Audit.Log(op, kv...)
	}
}

// copyTree recursively copies src to dst, creating directories as
// needed. It is unexported and intentionally minimal: the staging and
// prod trees this pipeline manages are shallow (one artifact's files).
func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target, info.Mode())
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
