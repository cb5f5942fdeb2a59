// Command rollback re-promotes a previously-promoted, now-disabled
// skill version via the Rollbacker.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"skillforge/internal/audit"
	"skillforge/internal/config"
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
	var configPath string

	cmd := &cobra.Command{
		Use:   "rollback <skill-name> <target-version>",
		Short: "Roll a skill back to a previously promoted version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, args[0], args[1])
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "skillforge.yaml", "path to pipeline config")
	return cmd
}

func run(configPath, name, target string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("rollback: load config: %w", err)
	}

	auditLog, err := audit.Open(cfg.Paths.AuditLog)
	if err != nil {
		return fmt.Errorf("rollback: open audit log: %w", err)
	}
	defer auditLog.Close()

	reg := registry.Open(cfg.Paths.Registry)
	entryBefore, _ := reg.GetEntry(name)
	priorProd := "none"
	if entryBefore != nil && entryBefore.CurrentProd != "" {
		priorProd = entryBefore.CurrentProd
	}

	r := &promoter.Rollbacker{Registry: reg, Audit: auditLog}
	if err := r.Rollback(name, target); err != nil {
		fmt.Print(summary.Error(err))
		return err
	}

	fmt.Print(summary.Rollback(name, priorProd, target))
	return nil
}
