// Command day-logger is the log-scraper CLI: it extracts capability
// observations from a text log using skillforge/internal/queue's
// stateless extractor and merges them into the work queue the
// Evolution Controller drains. Per spec.md section 1 this component is
// "Out of scope (external collaborators, not CORE)" but still ships
// since the controller needs a populated queue to operate on.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"skillforge/internal/config"
	"skillforge/internal/queue"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath, logPath string

	cmd := &cobra.Command{
		Use:   "day-logger",
		Short: "Extract capability requests from a log file into the work queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, logPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "skillforge.yaml", "path to pipeline config")
	cmd.Flags().StringVar(&logPath, "log", "", "path to the log file to scrape (required)")
	_ = cmd.MarkFlagRequired("log")
	return cmd
}

func run(configPath, logPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("day-logger: load config: %w", err)
	}

	raw, err := os.ReadFile(logPath)
	if err != nil {
		return fmt.Errorf("day-logger: read log: %w", err)
	}

	observations := queue.ExtractFromText(string(raw))

	q, err := queue.Load(cfg.Paths.Queue)
	if err != nil {
		return fmt.Errorf("day-logger: load queue: %w", err)
	}
	q.Merge(observations, time.Now().UTC())

	if err := q.Save(cfg.Paths.Queue); err != nil {
		return fmt.Errorf("day-logger: save queue: %w", err)
	}

	fmt.Printf("extracted %d capability observation(s) from %s\n", len(observations), logPath)
	return nil
}
