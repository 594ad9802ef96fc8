package main

import (
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/justic/shortsgen/internal/config"
	"github.com/justic/shortsgen/internal/logging"
)

var (
	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "taskctl",
	Short:         "Operator tool for video tasks and the processing queue",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		logger = logging.New(cfg.Server.Env, cfg.Server.LogLevel, "taskctl")
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("redis-addr", "", "Redis address (host:port)")
	pf.Int("redis-db", 0, "Redis database")
	pf.String("queue", "", "worker queue name")
	pf.String("queue-mode", "", "queue backend: list | asynq")
	pf.String("postgres-dsn", "", "PostgreSQL DSN")
	pf.String("log-level", "", "debug | info | warn | error")

	bindFlag("redis.addr", "redis-addr")
	bindFlag("redis.db", "redis-db")
	bindFlag("queue.name", "queue")
	bindFlag("queue.mode", "queue-mode")
	bindFlag("postgres.dsn", "postgres-dsn")
	bindFlag("server.log_level", "log-level")

	rootCmd.AddCommand(statusCmd, failCmd, enqueueCmd, queueLenCmd, resolveEndpointCmd, migrateCmd)
}

// bindFlag lets an explicitly set flag override env and config file values.
func bindFlag(key, name string) {
	_ = viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(name))
}

func newRedisClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}
