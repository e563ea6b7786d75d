package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Runner drives Dispatcher.Tick on a fixed cadence and, when Redis is
// configured, also on messages published to the nudge channel so a manual
// "call now" does not have to wait for the next scheduled tick.
type Runner struct {
	dispatcher *Dispatcher
	interval   time.Duration
	rdb        *redis.Client
	channel    string
	log        *zap.Logger
}

func NewRunner(d *Dispatcher, interval time.Duration, rdb *redis.Client, channel string, log *zap.Logger) *Runner {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Runner{
		dispatcher: d,
		interval:   interval,
		rdb:        rdb,
		channel:    channel,
		log:        log,
	}
}

// Run blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	tick := func() {
		if _, err := r.dispatcher.Tick(ctx); err != nil && ctx.Err() == nil {
			r.log.Error("tick failed", zap.Error(err))
		}
	}

	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", r.interval), tick); err != nil {
		return fmt.Errorf("schedule tick: %w", err)
	}
	c.Start()
	defer func() { <-c.Stop().Done() }()

	if r.rdb != nil && r.channel != "" {
		sub := r.rdb.Subscribe(ctx, r.channel)
		defer func() { _ = sub.Close() }()

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-sub.Channel():
					if !ok {
						return
					}
					r.log.Debug("tick nudge received", zap.String("payload", msg.Payload))
					tick()
				}
			}
		}()
	}

	r.log.Info("scheduler started",
		zap.Duration("interval", r.interval),
		zap.String("nudge_channel", r.channel))

	<-ctx.Done()
	return nil
}
