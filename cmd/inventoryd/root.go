package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/rl1809/inventory-tracker/internal/adapter/storage"
	"github.com/rl1809/inventory-tracker/internal/config"
	"github.com/rl1809/inventory-tracker/internal/logger"
	"github.com/rl1809/inventory-tracker/internal/port"
)

var version = "0.1.0"

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "inventoryd",
	Short: "Lot-level inventory tracking with FIFO receipt fulfillment",
	Long: `inventoryd tracks stock per part and batch, imports CSV stock sheets,
and issues PDF receipts that deduct stock oldest lot first.

Configuration is read from the environment (and a .env file when present);
the flags below override the matching variables.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("http-addr") {
			loaded.HTTPAddr, _ = flags.GetString("http-addr")
		}
		if flags.Changed("db-driver") {
			loaded.DBDriver, _ = flags.GetString("db-driver")
		}
		if flags.Changed("db-dsn") {
			loaded.DBDSN, _ = flags.GetString("db-dsn")
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}

		if err := logger.Setup(loaded.GetLoggerConfig()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		cfg = loaded
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log := logger.WithComponent("cmd")
		log.Error().Err(err).Msg("command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("http-addr", "", "HTTP listen address (overrides HTTP_ADDR)")
	rootCmd.PersistentFlags().String("db-driver", "", "database driver: mysql or sqlite3 (overrides DB_DRIVER)")
	rootCmd.PersistentFlags().String("db-dsn", "", "database DSN (overrides DB_DSN)")
}

// openDB connects and brings the schema up to date.
func openDB(ctx context.Context) (*sqlx.DB, error) {
	log := logger.WithComponent("storage")

	db, err := storage.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	if err := storage.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Str("driver", cfg.DBDriver).Msg("database ready")
	return db, nil
}

// openCache returns a nil client and a nil repository when Redis is not
// configured.
func openCache(ctx context.Context) (*redis.Client, port.CacheRepository, error) {
	if cfg.RedisAddr == "" {
		return nil, nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		PoolSize: 100,
	})
	adapter := storage.NewRedisAdapter(rdb)
	if err := adapter.Ping(ctx); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("failed to connect redis: %w", err)
	}

	log := logger.WithComponent("storage")
	log.Info().Str("addr", cfg.RedisAddr).Msg("connected to redis")
	return rdb, adapter, nil
}
