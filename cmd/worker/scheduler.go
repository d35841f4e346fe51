package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JackBungart/perceptive-crm/internal/config"
	"github.com/JackBungart/perceptive-crm/internal/db"
	"github.com/JackBungart/perceptive-crm/internal/gateway"
	"github.com/JackBungart/perceptive-crm/internal/logger"
	"github.com/JackBungart/perceptive-crm/internal/metrics"
	"github.com/JackBungart/perceptive-crm/internal/repository"
	"github.com/JackBungart/perceptive-crm/internal/scheduler"
)

// schedulerCmd runs the single active dispatch engine. Running a second
// instance is safe but not expected: the conditional writes in the schedule
// store keep overlapping sweeps from double-delivering.
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the scheduled-message dispatch engine",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Log.Level)

		metrics.MustRegister(prometheus.DefaultRegisterer)

		dbx, err := db.NewMySQLConnection(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer dbx.Close()

		// ClickHouse is the best-effort attempt archive; the engine runs
		// without it.
		var archive scheduler.AttemptArchive
		if chDB, err := db.NewClickHouseConnection(cfg.ClickHouse); err != nil {
			logger.L().Warn("clickhouse unavailable, attempt archive disabled", zap.Error(err))
		} else {
			defer func() { _ = chDB.Close() }()
			archive = repository.NewCHDeliveriesRepository(chDB)
		}

		engine := scheduler.NewEngine(
			repository.NewSchedulesRepository(dbx),
			repository.NewContactsRepository(dbx),
			repository.NewMessagesRepository(dbx),
			repository.NewOutboxRepository(dbx),
			archive,
			gateway.NewHTTPGateway(cfg.Gateways),
			logger.L(),
			scheduler.Config{
				BatchSize:      cfg.Scheduler.BatchSize,
				WorkerCount:    cfg.Scheduler.WorkerCount,
				RetryLimit:     cfg.Scheduler.RetryLimit,
				BackoffBase:    cfg.Scheduler.BackoffBase,
				BackoffCap:     cfg.Scheduler.BackoffCap,
				GatewayTimeout: cfg.Scheduler.GatewayTimeout,
			},
		)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.L().Info("dispatch engine started",
			zap.Duration("tick", cfg.Scheduler.Tick),
			zap.Int("workers", cfg.Scheduler.WorkerCount),
			zap.Int("retry_limit", cfg.Scheduler.RetryLimit),
		)

		err = engine.Run(ctx, cfg.Scheduler.Tick, time.Now)
		if ctx.Err() != nil {
			return nil
		}
		return err
	},
}
