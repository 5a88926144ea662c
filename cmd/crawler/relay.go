package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/maltedev/catalog-crawler/internal/config"
	"github.com/maltedev/catalog-crawler/internal/database"
	"github.com/maltedev/catalog-crawler/internal/events"
	"github.com/maltedev/catalog-crawler/pkg/logger"
)

func newRelayCmd() *cobra.Command {
	var (
		once      bool
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Forward outbox events written by the postgres sink to the redis stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			log, closeLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
			defer closeLog()

			db, err := database.New(ctx, cfg.PostgresConfig())
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.Migrate(ctx); err != nil {
				return err
			}

			rdb := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer rdb.Close()
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("failed to connect to redis: %w", err)
			}

			relay := database.NewRelay(
				database.NewOutboxRepository(db),
				events.NewPublisher(rdb, cfg.Redis.Stream, log),
				log,
				database.RelayConfig{BatchSize: batchSize},
			)

			if once {
				n, err := relay.RunOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "forwarded %d events\n", n)
				return nil
			}
			if err := relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Forward one batch and exit")
	cmd.Flags().IntVar(&batchSize, "batch-size", 100, "Events per poll")
	return cmd
}
