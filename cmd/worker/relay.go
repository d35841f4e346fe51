package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JackBungart/perceptive-crm/internal/config"
	"github.com/JackBungart/perceptive-crm/internal/db"
	"github.com/JackBungart/perceptive-crm/internal/kafka"
	"github.com/JackBungart/perceptive-crm/internal/logger"
	"github.com/JackBungart/perceptive-crm/internal/relay"
	"github.com/JackBungart/perceptive-crm/internal/repository"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Publish outbox events to Kafka",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Log.Level)

		dbx, err := db.NewMySQLConnection(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer dbx.Close()

		producer := kafka.NewProducerFromConfig(kafka.Config{
			Brokers:      cfg.Kafka.Brokers,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		})
		defer func() { _ = producer.Close() }()

		r := relay.New(repository.NewOutboxRepository(dbx), producer, logger.L())
		if cfg.Relay.Tick > 0 {
			r.Tick = cfg.Relay.Tick
		}
		if cfg.Relay.BatchSize > 0 {
			r.BatchSize = cfg.Relay.BatchSize
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.L().Info("outbox relay started",
			zap.Duration("tick", r.Tick),
			zap.Strings("brokers", cfg.Kafka.Brokers),
		)

		err = r.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	},
}
