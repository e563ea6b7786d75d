package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmehdipour/reminder-gateway/internal/config"
	"github.com/jmehdipour/reminder-gateway/internal/db"
	"github.com/jmehdipour/reminder-gateway/internal/gateway"
	"github.com/jmehdipour/reminder-gateway/internal/logger"
	"github.com/jmehdipour/reminder-gateway/internal/metrics"
	"github.com/jmehdipour/reminder-gateway/internal/policy"
	"github.com/jmehdipour/reminder-gateway/internal/repository"
	"github.com/jmehdipour/reminder-gateway/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the dispatcher on a fixed cadence",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Log.Level)

		metrics.MustRegister(prometheus.DefaultRegisterer)

		mysqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer mysqlDB.Close()

		var redisClient *redis.Client
		if cfg.Redis.Enabled() {
			redisClient, err = db.NewRedisClient(db.RedisOpts{
				Addr:        cfg.Redis.Addr,
				Password:    cfg.Redis.Password,
				DB:          cfg.Redis.DB,
				DialTimeout: cfg.Redis.DialTimeout,
			})
			if err != nil {
				return fmt.Errorf("redis connect: %w", err)
			}
			defer func() { _ = redisClient.Close() }()
		}

		store := repository.NewSQLStore(mysqlDB, cfg.Kafka.Topic)
		caller := gateway.NewTwilioCaller(cfg.Twilio)
		synth := gateway.SourceFromConfig(cfg.Fallback)
		pol := policy.Config{
			MaxPrimaryAttempts: cfg.Policy.MaxPrimaryAttempts,
			MaxBackupAttempts:  cfg.Policy.MaxBackupAttempts,
			RetryDelay:         cfg.Policy.RetryDelay,
			SnoozeDelay:        cfg.Policy.SnoozeDelay,
		}

		d := scheduler.NewDispatcher(store, caller, synth, pol, logger.Log)
		if cfg.Scheduler.BatchLimit > 0 {
			d.BatchLimit = cfg.Scheduler.BatchLimit
		}

		runner := scheduler.NewRunner(d, cfg.Scheduler.Interval, redisClient, cfg.Scheduler.NudgeChannel, logger.Log)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Printf(">> scheduler started interval=%s fallback=%s twilio_configured=%t",
			cfg.Scheduler.Interval, cfg.Fallback.Mode, cfg.Twilio.Configured())

		return runner.Run(ctx)
	},
}
