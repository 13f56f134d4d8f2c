package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/priyal/paygraph/internal/config"
	"github.com/priyal/paygraph/internal/events"
	eventskafka "github.com/priyal/paygraph/internal/events/kafka"
	"github.com/priyal/paygraph/internal/graph"
	"github.com/priyal/paygraph/internal/ledger"
	"github.com/priyal/paygraph/internal/logging"
	"github.com/priyal/paygraph/internal/repository"
	"github.com/priyal/paygraph/internal/repository/memory"
	"github.com/priyal/paygraph/internal/server"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	var (
		store       ledger.Store
		graphClient graph.Client
	)
	if cfg.Graph.URI != "" {
		graphClient, err = buildGraphClient(ctx, cfg)
		if err != nil {
			logger.Error("failed to create graph client", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := graphClient.Close(context.Background()); err != nil {
				logger.Warn("closing graph client failed", "error", err)
			}
		}()
		store = repository.New(graphClient)
		logger.Info("using graph store", "uri", cfg.Graph.URI, "database", cfg.Graph.Database)
	} else {
		store = memory.NewStore()
		logger.Warn("GRAPH_URI not set, using in-memory store; data will not survive restarts")
	}

	publisher := buildPublisher(cfg, logger)
	if closer, ok := publisher.(interface{ Close() error }); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				logger.Warn("closing event publisher failed", "error", err)
			}
		}()
	}

	users := ledger.NewUserService(store)
	payments := ledger.NewPaymentService(store, publisher, logger)
	apiHandlers := server.NewAPIHandlers(logger, users, payments)

	router := server.NewRouter(logger, server.RouterDependencies{
		Health:           server.GraphHealthService{Client: graphClient},
		API:              apiHandlers,
		AllowedOrigins:   parseAllowedOrigins(cfg.HTTP.AllowedOriginsCSV),
		AllowCredentials: true,
	})

	srv := server.New(logger, cfg.HTTP, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("server stopped unexpectedly", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func buildGraphClient(ctx context.Context, cfg config.Config) (graph.Client, error) {
	opts := graph.Options{
		URI:            cfg.Graph.URI,
		Database:       cfg.Graph.Database,
		Username:       cfg.Graph.Username,
		Password:       cfg.Graph.Password,
		MaxConnections: cfg.Graph.MaxConnections,
	}
	return graph.NewNeo4jClient(ctx, opts)
}

func buildPublisher(cfg config.Config, logger *slog.Logger) events.Publisher {
	if len(cfg.Events.Brokers) == 0 {
		return events.Noop{}
	}
	logger.Info("publishing payment events", "brokers", cfg.Events.Brokers, "topic", cfg.Events.Topic)
	return eventskafka.NewPublisher(cfg.Events.Brokers, cfg.Events.Topic)
}

func parseAllowedOrigins(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	var origins []string
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		origins = append(origins, origin)
	}
	return origins
}
