package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/priyal/paygraph/internal/config"
	"github.com/priyal/paygraph/internal/generator"
	"github.com/priyal/paygraph/internal/logging"
)

func main() {
	cfg := generator.DefaultConfig()
	var (
		outputDir = flag.String("output-dir", "./seed-data", "Directory to write users.json and transfers.json")
		toStdout  = flag.Bool("stdout", false, "Write the dataset to stdout instead of files")
	)
	flag.IntVar(&cfg.NumUsers, "users", cfg.NumUsers, "Number of users to generate")
	flag.IntVar(&cfg.NumTransfers, "transfers", cfg.NumTransfers, "Number of transfers to generate")
	flag.Float64Var(&cfg.MinOpeningBalance, "min-balance", cfg.MinOpeningBalance, "Minimum opening balance")
	flag.Float64Var(&cfg.MaxOpeningBalance, "max-balance", cfg.MaxOpeningBalance, "Maximum opening balance")
	flag.Float64Var(&cfg.MaxTransferAmount, "max-amount", cfg.MaxTransferAmount, "Maximum single transfer amount")
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed for deterministic output")
	flag.Parse()

	appCfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(appCfg.Logging).With("component", "datagen")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dataset, err := generator.New(cfg).Generate(ctx)
	if err != nil {
		logger.Error("dataset generation failed", "error", err)
		os.Exit(1)
	}

	if *toStdout {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(dataset); err != nil {
			logger.Error("failed to write dataset", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := generator.WriteDataset(dataset, *outputDir); err != nil {
		logger.Error("failed to write dataset", "error", err, "dir", *outputDir)
		os.Exit(1)
	}
	logger.Info("dataset written",
		"dir", *outputDir,
		"users", len(dataset.Users),
		"transfers", len(dataset.Transfers),
		"seed", cfg.Seed)
}
