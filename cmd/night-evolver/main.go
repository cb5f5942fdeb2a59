// Command night-evolver drives the Evolution Controller: it loads the
// work queue, runs every pending item through generation and the
// gates, and reports a summary. With --watch it re-runs whenever the
// queue file changes, following the fsnotify watch pattern grounded in
// the teacher's internal/core/mangle_watcher.go.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"skillforge/internal/audit"
	"skillforge/internal/config"
	"skillforge/internal/controller"
	"skillforge/internal/generator"
	"skillforge/internal/logging"
	"skillforge/internal/registry"
	"skillforge/internal/sandbox"
	"skillforge/internal/staticgate"
	"skillforge/internal/summary"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var watch bool
	var debug bool

	cmd := &cobra.Command{
		Use:   "night-evolver",
		Short: "Drive pending capability requests through the evolution pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath, watch, debug)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "skillforge.yaml", "path to pipeline config")
	cmd.Flags().BoolVar(&watch, "watch", false, "re-run whenever the queue file changes")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	return cmd
}

func run(ctx context.Context, configPath string, watch, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("night-evolver: load config: %w", err)
	}

	log, err := logging.New(logging.Config{Debug: debug || cfg.Logging.Debug, JSON: cfg.Logging.JSON})
	if err != nil {
		return fmt.Errorf("night-evolver: init logger: %w", err)
	}
	defer log.Sync()

	auditLog, err := audit.Open(cfg.Paths.AuditLog)
	if err != nil {
		return fmt.Errorf("night-evolver: open audit log: %w", err)
	}
	defer auditLog.Close()

	c, err := buildController(cfg, auditLog, log)
	if err != nil {
		return err
	}

	if !watch {
		return runOnce(ctx, c, cfg.Paths.Queue)
	}
	return runWatch(ctx, c, cfg.Paths.Queue, log)
}

func buildController(cfg *config.Config, auditLog *audit.Logger, log *zap.Logger) (*controller.Controller, error) {
	generatorImpl := buildGenerator(cfg)
	reg := registry.Open(cfg.Paths.Registry)

	// A sandbox runtime error (no Docker daemon reachable, image
	// missing) is not fatal: the controller treats a nil SandboxRun as
	// "record validation.sandbox = {skipped: true}", per spec.md
	// section 4.6.
	runner, _ := buildSandboxRunner(cfg)

	return &controller.Controller{
		Generator:   generatorImpl,
		StaticGate:  staticgate.New(staticgate.DefaultPolicy()),
		Registry:    reg,
		Audit:       auditLog,
		Log:         log,
		StagingRoot: cfg.Paths.Staging,
		SandboxRun:  runner,
	}, nil
}

func buildGenerator(cfg *config.Config) generator.Generator {
	if cfg.Generator.Provider == "gemini" && cfg.Generator.APIKey != "" {
		g, err := generator.NewGeminiGenerator(context.Background(), cfg.Generator.APIKey, cfg.Generator.Model)
		if err == nil {
			return g
		}
	}
	return &generator.StubGenerator{}
}

func buildSandboxRunner(cfg *config.Config) (func(ctx context.Context, artifactDir string) (sandbox.Decision, error), error) {
	client, err := sandbox.NewClient()
	if err != nil {
		return nil, err
	}
	runner, err := sandbox.NewRunner(client, cfg.SandboxRunnerConfig())
	if err != nil {
		return nil, err
	}
	probeCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if !runner.IsAvailable(probeCtx) {
		return nil, nil
	}
	return runner.Run, nil
}

func runOnce(ctx context.Context, c *controller.Controller, queuePath string) error {
	result, err := c.Run(ctx, queuePath)
	if err != nil {
		fmt.Print(summary.Error(err))
		return err
	}
	fmt.Print(summary.ControllerRun(result.Processed, result.Succeeded, result.Failed, result.Skipped))
	return nil
}

func runWatch(ctx context.Context, c *controller.Controller, queuePath string, log *zap.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("night-evolver: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(queuePath); err != nil {
		// Queue file may not exist yet; fall back to a single run.
		return runOnce(ctx, c, queuePath)
	}

	if err := runOnce(ctx, c, queuePath); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := runOnce(ctx, c, queuePath); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintln(os.Stderr, werr)
		}
	}
}
