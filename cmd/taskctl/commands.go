package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/justic/shortsgen/internal/discovery"
	"github.com/justic/shortsgen/internal/model"
	"github.com/justic/shortsgen/internal/queue"
	"github.com/justic/shortsgen/internal/registry"
	"github.com/justic/shortsgen/internal/repository"
)

const commandTimeout = 30 * time.Second

var statusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show owner and status of a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()

		rdb := newRedisClient()
		defer rdb.Close()

		task, err := registry.New(rdb, cfg.Registry.TTL).Get(ctx, args[0])
		if errors.Is(err, model.ErrTaskNotFound) {
			fmt.Printf("%s\t%s\n", args[0], model.StatusNotFound)
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\towner=%s\tprompt=%q\n", task.ID, task.Status, task.Owner, task.Prompt)
		return nil
	},
}

var failCmd = &cobra.Command{
	Use:   "fail <task-id>",
	Short: "Force a task into FAILED",
	Long: `Force a task into FAILED regardless of its current status.

Use this for tasks stuck in PROCESSING after a crash.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()

		rdb := newRedisClient()
		defer rdb.Close()

		if err := registry.New(rdb, cfg.Registry.TTL).ForceStatus(ctx, args[0], model.StatusFailed); err != nil {
			return err
		}
		logger.Info().Str("task_id", args[0]).Msg("task forced to FAILED")
		return nil
	},
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Push a pipeline job onto the worker queue",
	RunE: func(cmd *cobra.Command, _ []string) error {
		input, _ := cmd.Flags().GetString("input")
		output, _ := cmd.Flags().GetString("output")
		variant, _ := cmd.Flags().GetString("variant")

		job := &model.Job{InputKey: input, OutputKey: output, Variant: variant}
		if err := job.Validate(); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()

		var producer queue.Producer
		if cfg.Queue.Mode == queue.ModeAsynq {
			client := asynq.NewClient(asynq.RedisClientOpt{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer client.Close()
			producer = queue.NewAsynqProducer(client, cfg.Queue.MaxRetry, queue.TaskTimeout(cfg.Pipeline.TranscodeTimeout, len(cfg.Pipeline.Variants)))
		} else {
			rdb := newRedisClient()
			defer rdb.Close()
			producer = queue.NewRedisQueue(rdb, cfg.Queue.Name)
		}

		if err := producer.Push(ctx, job); err != nil {
			return err
		}
		logger.Info().
			Str("queue_mode", cfg.Queue.Mode).
			Str("input_key", job.InputKey).
			Str("output_key", job.OutputKey).
			Str("variant", job.Variant).
			Msg("job enqueued")
		return nil
	},
}

var queueLenCmd = &cobra.Command{
	Use:   "queue-len",
	Short: "Print the number of jobs waiting in the list queue",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()

		rdb := newRedisClient()
		defer rdb.Close()

		q := queue.NewRedisQueue(rdb, cfg.Queue.Name)
		n, err := q.Len(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%d\n", q.Name(), n)
		return nil
	},
}

var resolveEndpointCmd = &cobra.Command{
	Use:   "resolve-endpoint",
	Short: "Resolve the caption model endpoint the way the worker does",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()

		endpoint, err := discovery.Resolve(ctx, cfg.Caption.Endpoint, cfg.Storage.Region, logger)
		if err != nil {
			return err
		}
		fmt.Println(endpoint)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Connect to PostgreSQL and apply schema migrations.

Reads the DSN from --postgres-dsn flag, POSTGRES_DSN env var, or config file.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()

		pool, err := repository.NewPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := repository.Migrate(ctx, pool); err != nil {
			return err
		}
		fmt.Println("migrations complete")
		return nil
	},
}

func init() {
	enqueueCmd.Flags().String("input", "", "object key of the raw video")
	enqueueCmd.Flags().String("output", "", "object key of the processed video")
	enqueueCmd.Flags().String("variant", "", "single variant to produce (default: every configured variant)")
	_ = enqueueCmd.MarkFlagRequired("input")
	_ = enqueueCmd.MarkFlagRequired("output")
}
