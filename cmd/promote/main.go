// Command promote runs the Promoter against a skill's current staging
// version: the three evaluation gates in order, then the
// staging-to-prod copy and registry update on success. Given no
// skill name it promotes every skill in the registry that currently
// has a staging version, mirroring the original implementation's
// promote_all() batch mode.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"skillforge/internal/audit"
	"skillforge/internal/config"
	"skillforge/internal/evalgate"
	"skillforge/internal/promoter"
	"skillforge/internal/registry"
	"skillforge/internal/summary"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath, skillName string

	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Promote a skill's staging version to prod, or every staged skill when --skill is omitted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if skillName != "" {
				return runOne(configPath, skillName)
			}
			return runAll(configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "skillforge.yaml", "path to pipeline config")
	cmd.Flags().StringVar(&skillName, "skill", "", "promote only this skill (default: promote every staged skill)")
	return cmd
}

func newPromoter(cfg *config.Config, auditLog *audit.Logger) *promoter.Promoter {
	return &promoter.Promoter{
		Registry:    registry.Open(cfg.Paths.Registry),
		Audit:       auditLog,
		EvalRunner:  evalgate.NewRunner(),
		StagingRoot: cfg.Paths.Staging,
		ProdRoot:    cfg.Paths.Prod,
		Gates:       promoter.DefaultGates(cfg.Paths.EvalCases),
	}
}

func runOne(configPath, name string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("promote: load config: %w", err)
	}

	auditLog, err := audit.Open(cfg.Paths.AuditLog)
	if err != nil {
		return fmt.Errorf("promote: open audit log: %w", err)
	}
	defer auditLog.Close()

	p := newPromoter(cfg, auditLog)
	if err := p.Promote(context.Background(), name); err != nil {
		fmt.Print(summary.PromotionFailed(name, err))
		return err
	}

	entry, err := p.Registry.GetEntry(name)
	if err == nil && entry != nil {
		fmt.Print(summary.Promotion(name, entry.CurrentProd))
	}
	return nil
}

// runAll promotes every registry skill that currently has a staging
// version, continuing past individual failures so one bad skill does
// not block the rest of the batch.
func runAll(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("promote: load config: %w", err)
	}

	auditLog, err := audit.Open(cfg.Paths.AuditLog)
	if err != nil {
		return fmt.Errorf("promote: open audit log: %w", err)
	}
	defer auditLog.Close()

	p := newPromoter(cfg, auditLog)
	names, err := p.Registry.ListSkills()
	if err != nil {
		return fmt.Errorf("promote: list skills: %w", err)
	}

	var failed int
	for _, name := range names {
		entry, err := p.Registry.GetEntry(name)
		if err != nil || entry == nil || entry.CurrentStaging == "" {
			continue
		}
		if err := p.Promote(context.Background(), name); err != nil {
			fmt.Print(summary.PromotionFailed(name, err))
			failed++
			continue
		}
		refreshed, err := p.Registry.GetEntry(name)
		if err == nil && refreshed != nil {
			fmt.Print(summary.Promotion(name, refreshed.CurrentProd))
		}
	}
	if failed > 0 {
		return fmt.Errorf("promote: %d skill(s) failed to promote", failed)
	}
	return nil
}
