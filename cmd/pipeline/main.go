// Command pipeline builds the merged indicator table once and persists it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"EconDash/internal/di"
	"EconDash/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	output := flag.String("output", "", "override pipeline.output_path")
	synthetic := flag.Bool("synthetic", false, "skip remote and file sources")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *output != "" {
		cfg.Pipeline.OutputPath = *output
	}
	if *synthetic {
		cfg.Pipeline.Providers = []string{"synthetic"}
	}
	// a one-shot run that wrote nothing has failed
	cfg.Pipeline.StrictSinks = true

	if err := run(cfg); err != nil {
		log.Printf("pipeline failed: %v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	pipeline, cleanup, err := di.InitializePipeline(cfg)
	if err != nil {
		return fmt.Errorf("initialization: %w", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Pipeline.BuildTimeout)
	defer cancel()

	snap, err := pipeline.Build(ctx)
	if err != nil {
		return err
	}
	t := snap.Table
	fmt.Printf("source=%s rows=%d columns=%v output=%s\n", snap.Source, t.Len(), t.Columns(), cfg.Pipeline.OutputPath)
	return nil
}
