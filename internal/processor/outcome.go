// Package processor consumes the telephony webhook deliveries: call-status
// reports and gather (user input) events. Both advance reminder state
// exclusively through the policy transition table and the store's atomic
// compare-and-set, so duplicated or racing deliveries degrade to no-ops.
package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/reminder-gateway/internal/classify"
	"github.com/jmehdipour/reminder-gateway/internal/metrics"
	"github.com/jmehdipour/reminder-gateway/internal/model"
	"github.com/jmehdipour/reminder-gateway/internal/policy"
	"github.com/jmehdipour/reminder-gateway/internal/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StatusEvent is one call-status delivery from the telephony provider.
type StatusEvent struct {
	ReminderID string
	CallStatus string
	CallSID    string
	Duration   string // seconds, as reported; may be empty
}

// OutcomeProcessor applies call-status deliveries to reminder state.
type OutcomeProcessor struct {
	store  repository.Store
	policy policy.Config
	rdb    *redis.Client // optional: terminal-event dedup
	log    *zap.Logger

	Now func() time.Time
}

func NewOutcomeProcessor(store repository.Store, pol policy.Config, rdb *redis.Client, log *zap.Logger) *OutcomeProcessor {
	return &OutcomeProcessor{
		store:  store,
		policy: pol,
		rdb:    rdb,
		log:    log,
		Now:    time.Now,
	}
}

const dedupTTL = 24 * time.Hour

// Process handles one delivery. The transport may redeliver events; every
// path through here is safe to repeat. The caller acknowledges the
// delivery regardless of the returned error.
func (p *OutcomeProcessor) Process(ctx context.Context, ev StatusEvent) error {
	out := classify.ClassifyCallStatus(ev.CallStatus)
	metrics.CallStatusEvents.WithLabelValues(out.Class.String()).Inc()

	// Audit first, unconditionally: the raw status entry exists even when
	// no state transition follows.
	dur := ev.Duration
	if dur == "" {
		dur = "0"
	}
	raw := model.NewCallLog(ev.ReminderID, ev.CallSID, "status_"+out.Tag,
		fmt.Sprintf("Call duration: %s seconds", dur), "")
	if err := p.store.AppendLog(ctx, raw); err != nil {
		return fmt.Errorf("append status log: %w", err)
	}

	if out.Intermediate {
		p.log.Debug("intermediate call status",
			zap.String("reminder_id", ev.ReminderID), zap.String("status", ev.CallStatus))
		return nil
	}

	if dup, err := p.seenBefore(ctx, ev, out); err != nil {
		p.log.Warn("dedup check failed", zap.Error(err))
	} else if dup {
		metrics.CallStatusEvents.WithLabelValues("duplicate").Inc()
		return nil
	}

	m, err := p.store.GetReminder(ctx, ev.ReminderID)
	if err != nil {
		return fmt.Errorf("get reminder: %w", err)
	}
	if m == nil || m.Status.Terminal() {
		// late or duplicate delivery after terminal state: acknowledge only
		return nil
	}

	// A completed call counts as success only when gather recorded an
	// explicit intent for the same call. Otherwise it rang out or went to
	// voicemail and is treated as a no-answer.
	if out.Class == classify.ClassSuccess && out.Tag == "completed" {
		_, confirmed, err := p.store.LatestIntent(ctx, ev.ReminderID, ev.CallSID)
		if err != nil {
			return fmt.Errorf("latest intent: %w", err)
		}
		if confirmed {
			// already resolved through gather
			return nil
		}

		downgrade := model.NewCallLog(ev.ReminderID, ev.CallSID, "completed_no_confirmation",
			"Call completed without explicit confirmation - treating as no-answer", "")
		if err := p.store.AppendLog(ctx, downgrade); err != nil {
			return fmt.Errorf("append downgrade log: %w", err)
		}
		out.Class = classify.ClassRetryable
	}

	role := model.RoleForStatus(m.Status)
	dec := p.policy.Decide(policy.Input{
		Role:           role,
		Outcome:        out,
		Attempts:       m.Attempts,
		BackupAttempts: m.BackupAttempts,
		HasBackupPhone: m.HasBackupPhone(),
		Now:            p.Now(),
	})

	applied, err := p.store.ApplyTransition(ctx, repository.Transition{
		ReminderID:     m.ID,
		Expect:         m.Status,
		Role:           role,
		CallSID:        ev.CallSID,
		Status:         dec.Status,
		Attempts:       dec.Attempts,
		BackupAttempts: dec.BackupAttempts,
		NextAttemptAt:  dec.NextAttemptAt,
		LastOutcome:    dec.LastOutcome,
		AuditOutcome:   dec.AuditOutcome,
		AuditNote:      dec.AuditNote,
	})
	if err != nil {
		return fmt.Errorf("apply transition: %w", err)
	}
	if !applied {
		p.log.Debug("transition lost race, skipped", zap.String("reminder_id", m.ID))
		return nil
	}

	p.log.Info("call outcome applied",
		zap.String("reminder_id", m.ID),
		zap.String("call_sid", ev.CallSID),
		zap.String("outcome", out.Tag),
		zap.String("status", dec.Status.String()))
	return nil
}

// seenBefore dedups terminal status events by (call SID, normalized tag)
// when Redis is configured. The store's terminal-state guard remains the
// baseline defense; this only suppresses obvious provider redeliveries.
func (p *OutcomeProcessor) seenBefore(ctx context.Context, ev StatusEvent, out classify.CallOutcome) (bool, error) {
	if p.rdb == nil || ev.CallSID == "" {
		return false, nil
	}
	key := "dedup:status:" + ev.CallSID + ":" + out.Tag
	ok, err := p.rdb.SetNX(ctx, key, 1, dedupTTL).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}
