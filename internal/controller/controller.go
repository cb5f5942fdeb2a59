// Package controller implements the Evolution Controller from
// spec.md section 4.6: it drains the pending items of a work queue,
// drives each through generation, the Static Gate, manifest
// validation, staging, and an optional sandbox run, and records the
// outcome in the registry and audit log before the queue is saved
// once at the end of the run.
package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"skillforge/internal/artifact"
	"skillforge/internal/audit"
	"skillforge/internal/generator"
	"skillforge/internal/hashutil"
	"skillforge/internal/manifest"
	"skillforge/internal/queue"
	"skillforge/internal/registry"
	"skillforge/internal/sandbox"
	"skillforge/internal/staticgate"

	"go.uber.org/zap"
)

// Summary is the controller's end-of-run report, per spec.md section
// 4.6: "{processed, succeeded, failed, skipped}".
type Summary struct {
	Processed int
	Succeeded int
	Failed    int
	Skipped   int
}

// Controller wires the pipeline's gates and collaborators together.
// Every field is an injected dependency so tests can substitute a
// StubGenerator and a nil sandbox runner.
type Controller struct {
	Generator   generator.Generator
	StaticGate  *staticgate.Gate
	Registry    *registry.Registry
	Audit       *audit.Logger
	Log         *zap.Logger
	StagingRoot string
	SandboxRun  func(ctx context.Context, artifactDir string) (sandbox.Decision, error)
}

// Run loads the queue at queuePath, drives every pending item through
// the pipeline, and saves the queue once before returning the summary.
// A missing queue file is treated as an empty queue, per spec.md
// section 8's boundary behavior.
func (c *Controller) Run(ctx context.Context, queuePath string) (Summary, error) {
	q, err := queue.Load(queuePath)
	if err != nil {
		return Summary{}, fmt.Errorf("controller: load queue: %w", err)
	}

	var summary Summary
	for i := range q.Items {
		item := &q.Items[i]
		if item.Status != queue.StatusPending {
			summary.Skipped++
			continue
		}
		summary.Processed++
		item.Status = queue.StatusProcessing

		if c.processItem(ctx, item) {
			item.Status = queue.StatusCompleted
			summary.Succeeded++
		} else {
			item.Status = queue.StatusFailed
			summary.Failed++
		}
	}

	if err := q.Save(queuePath); err != nil {
		return summary, fmt.Errorf("controller: save queue: %w", err)
	}
	return summary, nil
}

// processItem runs one queue item through generation, the static
// gate, manifest validation, staging, and the sandbox. It returns true
// when the item reaches `completed`.
func (c *Controller) processItem(ctx context.Context, item *queue.Item) bool {
	c.logAudit(audit.OpGenerate, audit.Pair("capability", item.Capability), audit.Pair("item_id", item.ID))

	pkg, err := c.Generator.Generate(ctx, item.Capability, item.Context)
	if err != nil {
		// An unrecognized capability is a per-item failure the
		// generator itself declines; anything else is an unexpected
		// condition, per spec.md section 7's ValueError/Exception
		// split.
		if errors.Is(err, generator.ErrUnknownCapability) {
			c.logAudit(audit.OpGenerateFailed, audit.Pair("item_id", item.ID), audit.Pair("reason", err.Error()))
		} else {
			c.logAudit(audit.OpError, audit.Pair("item_id", item.ID), audit.Pair("reason", err.Error()))
		}
		return false
	}

	astResult := c.StaticGate.Check(pkg.Code)
	c.logAudit(audit.OpASTGate,
		audit.Pair("item_id", item.ID),
		audit.Pair("passed", astResult.Passed),
		audit.Pair("violations", strings.Join(astResult.Violations, ";")))
	if !astResult.Passed {
		return false
	}

	manifestOK, manifestViolations := manifest.Validate(pkg.ManifestJSON)
	if !manifestOK {
		c.logAudit(audit.OpManifestInvalid,
			audit.Pair("item_id", item.ID),
			audit.Pair("errors", strings.Join(manifestViolations, ";")))
		return false
	}

	parsedManifest, err := manifest.Parse(pkg.ManifestJSON)
	if err != nil {
		c.logAudit(audit.OpError, audit.Pair("item_id", item.ID), audit.Pair("reason", err.Error()))
		return false
	}

	artifactDir := filepath.Join(c.StagingRoot, pkg.Name, parsedManifest.Version)
	if err := writeArtifact(artifactDir, pkg); err != nil {
		c.logAudit(audit.OpError, audit.Pair("item_id", item.ID), audit.Pair("reason", err.Error()))
		return false
	}
	c.logAudit(audit.OpStaging, audit.Pair("item_id", item.ID), audit.Pair("name", pkg.Name), audit.Pair("version", parsedManifest.Version))

	validation := registry.Validation{
		ASTGate: &registry.ASTGateResult{Passed: astResult.Passed, Violations: astResult.Violations},
	}

	if c.SandboxRun != nil {
		decision, err := c.SandboxRun(ctx, artifactDir)
		if err != nil {
			c.logAudit(audit.OpError, audit.Pair("item_id", item.ID), audit.Pair("reason", err.Error()))
			return false
		}
		validation.Sandbox = &registry.SandboxResult{Passed: decision.Passed, Metrics: decision.Metrics}
		c.logAudit(audit.OpSandbox, audit.Pair("item_id", item.ID), audit.Pair("passed", decision.Passed))
		if !decision.Passed {
			return false
		}
	} else {
		validation.Sandbox = &registry.SandboxResult{Skipped: true}
	}

	codeHash := hashutil.Code(pkg.Code)
	manifestHash, err := hashutil.Manifest(json.RawMessage(pkg.ManifestJSON))
	if err != nil {
		c.logAudit(audit.OpError, audit.Pair("item_id", item.ID), audit.Pair("reason", err.Error()))
		return false
	}

	if err := c.Registry.AddStaging(pkg.Name, parsedManifest.Version, codeHash, manifestHash, validation); err != nil {
		c.logAudit(audit.OpError, audit.Pair("item_id", item.ID), audit.Pair("reason", err.Error()))
		return false
	}

	return true
}

// writeArtifact materializes pkg's files under dir, per spec.md
// section 6's staging/prod layout: skill.py and skill.json siblings.
func writeArtifact(dir string, pkg artifact.Package) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("controller: create staging dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, pkg.SourceFileName()), []byte(pkg.Code), 0o644); err != nil {
		return fmt.Errorf("controller: write source: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, pkg.ManifestFileName()), pkg.ManifestJSON, 0o644); err != nil {
		return fmt.Errorf("controller: write manifest: %w", err)
	}
	if len(pkg.Tests) > 0 {
		if err := os.WriteFile(filepath.Join(dir, "tests.json"), pkg.Tests, 0o644); err != nil {
			return fmt.Errorf("controller: write tests: %w", err)
		}
	}
	return nil
}

func (c *Controller) logAudit(op audit.Operation, kv ...audit.KV) {
	if c.Audit != nil {
		c.Audit.Log(op, kv...)
	}
	if c.Log != nil {
		c.Log.Debug(string(op))
	}
}
