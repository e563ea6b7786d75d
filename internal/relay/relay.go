// Package relay publishes outbox rows to Kafka. The outbox is written in
// the same transaction as the state change it describes, so the stream is
// at-least-once but never phantom.
package relay

import (
	"context"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/jmehdipour/reminder-gateway/internal/metrics"
	"github.com/jmehdipour/reminder-gateway/internal/repository"
	"go.uber.org/zap"
)

// Publisher is the producer surface the relay needs.
type Publisher interface {
	PublishBatch(ctx context.Context, msgs []kafkago.Message) error
}

type Relay struct {
	outbox   repository.OutboxRepository
	producer Publisher
	log      *zap.Logger

	BatchSize    int
	PollInterval time.Duration
}

func New(outbox repository.OutboxRepository, producer Publisher, log *zap.Logger) *Relay {
	return &Relay{
		outbox:       outbox,
		producer:     producer,
		log:          log,
		BatchSize:    100,
		PollInterval: 500 * time.Millisecond,
	}
}

// Run polls the outbox until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	tick := time.NewTicker(r.PollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			if err := r.drainOnce(ctx); err != nil && ctx.Err() == nil {
				r.log.Error("outbox drain failed", zap.Error(err))
			}
		}
	}
}

func (r *Relay) drainOnce(ctx context.Context) error {
	events, err := r.outbox.FetchUnpublished(ctx, r.BatchSize)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafkago.Message, 0, len(events))
	ids := make([]int64, 0, len(events))
	for _, ev := range events {
		msgs = append(msgs, kafkago.Message{
			Key:   []byte(ev.AggregateID),
			Value: ev.Payload,
		})
		ids = append(ids, ev.ID)
	}

	if err := r.producer.PublishBatch(ctx, msgs); err != nil {
		// whole batch failed; bump attempts for visibility and retry later
		if ierr := r.outbox.IncrementAttempts(ctx, ids); ierr != nil {
			r.log.Warn("increment attempts failed", zap.Error(ierr))
		}
		return err
	}

	if err := r.outbox.MarkPublished(ctx, ids); err != nil {
		// events will be republished next poll; consumers dedupe downstream
		return err
	}

	metrics.OutboxPublished.Add(float64(len(ids)))
	r.log.Debug("outbox drained", zap.Int("events", len(ids)))
	return nil
}
