package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bakery-inventory/internal/cache"
	"bakery-inventory/internal/config"
	"bakery-inventory/internal/database"
	"bakery-inventory/internal/ledger"
	"bakery-inventory/internal/logging"
	"bakery-inventory/internal/metrics"
	"bakery-inventory/internal/seed"
	"bakery-inventory/internal/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Bakery inventory API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	})
	cmd.AddCommand(migrateCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Load the sample products",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(cfg *config.Config, db *gorm.DB) error {
				if err := database.Migrate(db); err != nil {
					return err
				}
				_, err := seed.Run(cmd.Context(), ledger.New(db), time.Now().UTC())
				return err
			})
		},
	})

	return cmd
}

func migrateCmd() *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(cfg *config.Config, db *gorm.DB) error {
				if reset {
					return database.Reset(db)
				}
				return database.Migrate(db)
			})
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "Drop every table before migrating")
	return cmd
}

// withDB loads config, sets up logging and opens the database around fn.
func withDB(fn func(*config.Config, *gorm.DB) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.Setup(logging.Options{Mode: cfg.LogMode, Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			zap.S().Warnw("close database", "error", err)
		}
	}()

	return fn(cfg, db)
}

func serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withDB(func(cfg *config.Config, db *gorm.DB) error {
		if err := database.Migrate(db); err != nil {
			return err
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		opts := []ledger.Option{ledger.WithMetrics(metrics.NewLedger(reg))}
		if cfg.RedisURL != "" {
			client, err := cache.Connect(ctx, cfg.RedisURL)
			if err != nil {
				return err
			}
			defer client.Close()
			opts = append(opts, ledger.WithCache(cache.NewRedis(client, "bakery:", cfg.BarcodeCacheTTL)))
			zap.S().Infow("barcode cache enabled", "ttl", cfg.BarcodeCacheTTL)
		}
		store := ledger.New(db, opts...)

		if cfg.SeedSampleData {
			if _, err := seed.Run(ctx, store, time.Now().UTC()); err != nil {
				return err
			}
		}

		app := server.New(server.Deps{Config: cfg, DB: db, Store: store, Gatherer: reg})

		errCh := make(chan error, 1)
		go func() {
			zap.S().Infow("server listening", "port", cfg.HTTPPort, "driver", cfg.DBDriver, "authRequired", cfg.AuthRequired)
			errCh <- app.Listen(":" + cfg.HTTPPort)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		zap.S().Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})
}
