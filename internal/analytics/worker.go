// Package analytics consumes the reminders.events stream and lands it in
// ClickHouse for reporting.
package analytics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmehdipour/reminder-gateway/internal/kafka"
	"github.com/jmehdipour/reminder-gateway/internal/model"
	"github.com/jmehdipour/reminder-gateway/internal/repository"
	"go.uber.org/zap"
)

// Worker:
// - fetches lifecycle events from Kafka,
// - batches ClickHouse inserts on size or time,
// - commits offsets after handing events to the batcher (at-least-once;
//   redelivered rows are tolerable in an append-only analytics table).
type Worker struct {
	Consumer *kafka.Consumer
	Events   repository.CHEventsRepository
	Log      *zap.Logger

	BatchSize int
	BatchWait time.Duration
}

func NewWorker(consumer *kafka.Consumer, events repository.CHEventsRepository, log *zap.Logger) *Worker {
	return &Worker{
		Consumer:  consumer,
		Events:    events,
		Log:       log,
		BatchSize: 200,
		BatchWait: 300 * time.Millisecond,
	}
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w.BatchSize <= 0 {
		w.BatchSize = 200
	}
	if w.BatchWait <= 0 {
		w.BatchWait = 300 * time.Millisecond
	}

	rows := make(chan model.CallEvent, w.BatchSize*2)

	go w.runBatchWriter(ctx, rows)

	for {
		select {
		case <-ctx.Done():
			close(rows)
			return nil
		default:
		}

		m, err := w.Consumer.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				close(rows)
				return nil
			}
			w.Log.Warn("kafka fetch failed", zap.Error(err))
			time.Sleep(200 * time.Millisecond)
			continue
		}

		var ev model.Event
		if err := json.Unmarshal(m.Value, &ev); err != nil || ev.ReminderID == "" {
			// poison message: commit and skip
			w.Log.Warn("bad event payload, skipping", zap.Error(err))
			_ = w.Consumer.Commit(ctx, m)
			continue
		}

		rows <- model.CallEvent{
			ReminderID: ev.ReminderID,
			CallSID:    ev.CallSID,
			Kind:       ev.Kind,
			Outcome:    ev.Outcome,
			Status:     ev.Status,
			Role:       ev.Role,
			Detail:     ev.Detail,
			CreatedAt:  ev.OccurredAt,
		}

		if err := w.Consumer.Commit(ctx, m); err != nil {
			w.Log.Warn("kafka commit failed", zap.Error(err))
		}
	}
}

func (w *Worker) runBatchWriter(ctx context.Context, in <-chan model.CallEvent) {
	tick := time.NewTicker(w.BatchWait)
	defer tick.Stop()

	batch := make([]model.CallEvent, 0, w.BatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := w.Events.InsertBatch(ctx, batch); err != nil {
			w.Log.Error("clickhouse insert failed", zap.Error(err), zap.Int("rows", len(batch)))
			// drop the batch; the table is advisory, the MySQL audit trail
			// remains the source of truth
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case ev, ok := <-in:
			if !ok {
				flush()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= w.BatchSize {
				flush()
			}
		case <-tick.C:
			flush()
		}
	}
}
