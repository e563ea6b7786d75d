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
	"go.uber.org/zap"
)

// GatherEvent is one user response delivery: speech transcript or keypad
// digits captured during the call.
type GatherEvent struct {
	ReminderID string
	Input      string
	CallSID    string
}

// ReplyKind tells the transport layer how to answer the caller.
type ReplyKind int

const (
	// ReplyFailed ends the interaction with a terminal "could not process"
	// prompt; nothing was mutated.
	ReplyFailed ReplyKind = iota
	// ReplyConfirmed acknowledges the confirmation and hangs up.
	ReplyConfirmed
	// ReplySnoozed acknowledges the reschedule and hangs up.
	ReplySnoozed
	// ReplyReprompt re-invites input under the same interaction.
	ReplyReprompt
)

// ResponseProcessor applies gather deliveries to reminder state.
type ResponseProcessor struct {
	store  repository.Store
	policy policy.Config
	log    *zap.Logger

	Now func() time.Time
}

func NewResponseProcessor(store repository.Store, pol policy.Config, log *zap.Logger) *ResponseProcessor {
	return &ResponseProcessor{
		store:  store,
		policy: pol,
		log:    log,
		Now:    time.Now,
	}
}

// Process classifies the input and applies the confirm or snooze override.
// Unknown input mutates nothing and asks the transport to re-prompt.
func (p *ResponseProcessor) Process(ctx context.Context, ev GatherEvent) (ReplyKind, error) {
	if ev.ReminderID == "" || ev.Input == "" {
		return ReplyFailed, nil
	}

	intent := classify.ClassifyInput(ev.Input)
	metrics.GatherIntents.WithLabelValues(intent.String()).Inc()

	received := model.NewCallLog(ev.ReminderID, ev.CallSID, "gather_received", ev.Input, intent)
	if err := p.store.AppendLog(ctx, received); err != nil {
		return ReplyFailed, fmt.Errorf("append gather log: %w", err)
	}

	if intent == model.IntentUnknown {
		return ReplyReprompt, nil
	}

	m, err := p.store.GetReminder(ctx, ev.ReminderID)
	if err != nil {
		return ReplyFailed, fmt.Errorf("get reminder: %w", err)
	}
	if m == nil {
		return ReplyFailed, nil
	}

	reply := ReplyConfirmed
	if intent == model.IntentSnooze {
		reply = ReplySnoozed
	}
	if m.Status.Terminal() {
		// already DONE; acknowledge without touching the record
		return reply, nil
	}

	var dec policy.Decision
	var acted model.Intent
	switch intent {
	case model.IntentConfirm:
		dec = p.policy.Confirm(m.Attempts, m.BackupAttempts)
		acted = model.IntentConfirmed
	case model.IntentSnooze:
		dec = p.policy.Snooze(p.Now())
		acted = model.IntentSnoozed
	}

	applied, err := p.store.ApplyTransition(ctx, repository.Transition{
		ReminderID:     m.ID,
		Expect:         m.Status,
		Role:           model.RoleForStatus(m.Status),
		CallSID:        ev.CallSID,
		Status:         dec.Status,
		Attempts:       dec.Attempts,
		BackupAttempts: dec.BackupAttempts,
		NextAttemptAt:  dec.NextAttemptAt,
		LastOutcome:    dec.LastOutcome,
		AuditOutcome:   dec.AuditOutcome,
		AuditNote:      dec.AuditNote,
		Intent:         acted,
	})
	if err != nil {
		return ReplyFailed, fmt.Errorf("apply %s: %w", intent, err)
	}
	if !applied {
		p.log.Debug("intent transition lost race", zap.String("reminder_id", m.ID))
	}

	p.log.Info("gather intent applied",
		zap.String("reminder_id", m.ID),
		zap.String("intent", intent.String()),
		zap.String("status", dec.Status.String()))
	return reply, nil
}
