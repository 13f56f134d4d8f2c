package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/priyal/paygraph/internal/config"
	"github.com/priyal/paygraph/internal/domain"
	"github.com/priyal/paygraph/internal/generator"
	"github.com/priyal/paygraph/internal/graph"
	"github.com/priyal/paygraph/internal/ledger"
	"github.com/priyal/paygraph/internal/logging"
	"github.com/priyal/paygraph/internal/repository"
)

var errMissingDataset = errors.New("dataset not found")

func main() {
	var (
		datasetDir    = flag.String("dataset-dir", "./seed-data", "Directory containing users.json and transfers.json")
		usersPath     = flag.String("users", "", "Path to users.json (overrides dataset-dir)")
		transfersPath = flag.String("transfers", "", "Path to transfers.json (overrides dataset-dir)")
		workers       = flag.Int("workers", 4, "Number of concurrent workers")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging).With("component", "seed")

	userFile, transferFile, err := resolveDatasetPaths(*datasetDir, *usersPath, *transfersPath)
	if err != nil {
		logger.Error("dataset resolution failed", "error", err)
		os.Exit(1)
	}

	var seeds []generator.UserSeed
	if err := loadJSON(userFile, &seeds); err != nil {
		logger.Error("failed to load users", "error", err, "path", userFile)
		os.Exit(1)
	}
	if len(seeds) == 0 {
		logger.Error("users dataset empty", "path", userFile)
		os.Exit(1)
	}

	var transfers []ledger.TransferInstruction
	if err := loadJSON(transferFile, &transfers); err != nil {
		logger.Error("failed to load transfers", "error", err, "path", transferFile)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Graph.URI == "" {
		logger.Error("GRAPH_URI is required for seeding")
		os.Exit(1)
	}
	graphClient, err := graph.NewNeo4jClient(ctx, graph.Options{
		URI:            cfg.Graph.URI,
		Database:       cfg.Graph.Database,
		Username:       cfg.Graph.Username,
		Password:       cfg.Graph.Password,
		MaxConnections: cfg.Graph.MaxConnections,
	})
	if err != nil {
		logger.Error("failed to create graph client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := graphClient.Close(context.Background()); err != nil {
			logger.Warn("closing graph client failed", "error", err)
		}
	}()

	store := repository.New(graphClient)
	users := ledger.NewUserService(store)
	payments := ledger.NewPaymentService(store, nil, logger)
	loader := ledger.NewBulkLoader(users, payments, *workers)

	start := time.Now()
	logger.Info("provisioning users", "count", len(seeds), "workers", *workers)
	if err := loader.ProvisionUsers(ctx, toUsers(seeds)); err != nil {
		logger.Error("user provisioning failed", "error", err)
		os.Exit(1)
	}

	logger.Info("replaying transfers", "count", len(transfers))
	if err := loader.ApplyTransfers(ctx, transfers); err != nil {
		logger.Error("transfer replay failed", "error", err)
		os.Exit(1)
	}

	logger.Info("seeding complete", "duration", time.Since(start).String(), "users", len(seeds), "transfers", len(transfers))
}

func toUsers(seeds []generator.UserSeed) []domain.User {
	users := make([]domain.User, 0, len(seeds))
	for _, seed := range seeds {
		users = append(users, domain.User{
			ID:         seed.UserID,
			Handle:     seed.Handle,
			ProfileRef: seed.ProfileRef,
			Balance:    seed.OpeningBalance,
		})
	}
	return users
}

func resolveDatasetPaths(baseDir, usersPath, transfersPath string) (string, string, error) {
	resolve := func(explicitPath, fallbackFile string) (string, error) {
		if explicitPath != "" {
			if _, err := os.Stat(explicitPath); err != nil {
				return "", fmt.Errorf("stat %s: %w", explicitPath, err)
			}
			return explicitPath, nil
		}
		path := filepath.Join(baseDir, fallbackFile)
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("%w: %s", errMissingDataset, path)
		}
		return path, nil
	}

	usersFile, err := resolve(usersPath, "users.json")
	if err != nil {
		return "", "", err
	}
	transfersFile, err := resolve(transfersPath, "transfers.json")
	if err != nil {
		return "", "", err
	}
	return usersFile, transfersFile, nil
}

func loadJSON(path string, target any) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
