package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmehdipour/reminder-gateway/internal/analytics"
	"github.com/jmehdipour/reminder-gateway/internal/config"
	"github.com/jmehdipour/reminder-gateway/internal/db"
	"github.com/jmehdipour/reminder-gateway/internal/kafka"
	"github.com/jmehdipour/reminder-gateway/internal/logger"
	"github.com/jmehdipour/reminder-gateway/internal/repository"
	"github.com/spf13/cobra"
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Consume lifecycle events into ClickHouse",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Log.Level)

		chDB, err := db.NewClickHouseConnection(db.ClickHouseOpts{
			DSN:             cfg.ClickHouse.DSN,
			MaxOpenConns:    cfg.ClickHouse.MaxOpenConns,
			MaxIdleConns:    cfg.ClickHouse.MaxIdleConns,
			ConnMaxLifetime: cfg.ClickHouse.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.ClickHouse.ConnMaxIdleTime,
			PingTimeout:     cfg.ClickHouse.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("clickhouse connect: %w", err)
		}
		defer func() { _ = chDB.Close() }()

		groupID := cfg.Kafka.GroupID
		if groupID == "" {
			groupID = "rmgw-analytics"
		}

		consumer := kafka.NewConsumerFromConfig(kafka.Config{
			Brokers:        cfg.Kafka.Brokers,
			Topic:          cfg.Kafka.Topic,
			GroupID:        groupID,
			MinBytes:       cfg.Kafka.MinBytes,
			MaxBytes:       cfg.Kafka.MaxBytes,
			CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
		})
		defer consumer.Close()

		w := analytics.NewWorker(consumer, repository.NewCHEventsRepository(chDB), logger.Log)
		if cfg.Analytics.BatchSize > 0 {
			w.BatchSize = cfg.Analytics.BatchSize
		}
		if cfg.Analytics.BatchWait > 0 {
			w.BatchWait = cfg.Analytics.BatchWait
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Printf(">> analytics started topic=%s group=%s batchSize=%d batchWait=%s",
			cfg.Kafka.Topic, groupID, w.BatchSize, w.BatchWait)

		return w.Run(ctx)
	},
}
