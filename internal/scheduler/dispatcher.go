// Package scheduler claims due reminders and initiates their calls. It is
// one of the two drivers of the lifecycle state machine; the other is the
// webhook processor pair.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/reminder-gateway/internal/gateway"
	"github.com/jmehdipour/reminder-gateway/internal/metrics"
	"github.com/jmehdipour/reminder-gateway/internal/model"
	"github.com/jmehdipour/reminder-gateway/internal/policy"
	"github.com/jmehdipour/reminder-gateway/internal/repository"
	"go.uber.org/zap"
)

// Summary aggregates one tick for the caller.
type Summary struct {
	Processed int `json:"processed"`
	Calling   int `json:"calling"`
	Retried   int `json:"retried"`
	Escalated int `json:"escalated"`
	Completed int `json:"completed"`
	Errors    int `json:"errors"`
}

func (s Summary) String() string {
	return fmt.Sprintf("processed=%d calling=%d retried=%d escalated=%d completed=%d errors=%d",
		s.Processed, s.Calling, s.Retried, s.Escalated, s.Completed, s.Errors)
}

type Dispatcher struct {
	store  repository.Store
	caller gateway.Caller
	synth  gateway.OutcomeSource
	policy policy.Config
	log    *zap.Logger

	BatchLimit int
	Now        func() time.Time // test seam
}

func NewDispatcher(store repository.Store, caller gateway.Caller, synth gateway.OutcomeSource, pol policy.Config, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		store:      store,
		caller:     caller,
		synth:      synth,
		policy:     pol,
		log:        log,
		BatchLimit: 100,
		Now:        time.Now,
	}
}

// Tick claims every due reminder and initiates its call. A failure on one
// candidate never aborts the batch.
func (d *Dispatcher) Tick(ctx context.Context) (Summary, error) {
	metrics.TicksTotal.Inc()
	now := d.Now()

	var sum Summary

	due, err := d.store.ListDue(ctx, now, d.BatchLimit)
	if err != nil {
		return sum, fmt.Errorf("list due reminders: %w", err)
	}

	d.log.Debug("tick", zap.Int("due", len(due)))

	for _, m := range due {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if err := d.processOne(ctx, m, now, &sum); err != nil {
			sum.Errors++
			metrics.DispatchTotal.WithLabelValues("error", model.RoleForStatus(m.Status).String()).Inc()
			d.log.Error("process reminder failed",
				zap.String("reminder_id", m.ID), zap.Error(err))
		}
	}

	if sum.Processed > 0 {
		d.log.Info("tick complete", zap.String("summary", sum.String()))
	}
	return sum, nil
}

func (d *Dispatcher) processOne(ctx context.Context, m model.Reminder, now time.Time, sum *Summary) error {
	// Role is fixed here, before the claim mutates status, and threaded
	// through the rest of the attempt.
	role := model.RoleForStatus(m.Status)

	claimed, err := d.store.ClaimForCall(ctx, m.ID, m.Status, now)
	if err != nil {
		return fmt.Errorf("claim: %w", err)
	}
	if !claimed {
		// another actor advanced the row; not an error
		d.log.Debug("skipping reminder, already processed or not due",
			zap.String("reminder_id", m.ID))
		return nil
	}
	sum.Processed++

	phone := m.PhoneForRole(role)
	if phone == "" {
		t := repository.Transition{
			ReminderID:     m.ID,
			Expect:         model.StatusCalling,
			Role:           role,
			Status:         model.StatusDone,
			Attempts:       m.Attempts,
			BackupAttempts: m.BackupAttempts,
			LastOutcome:    "No phone number available",
			AuditOutcome:   "no_phone_number",
			AuditNote:      fmt.Sprintf("No %s phone number configured", role),
		}
		if _, err := d.store.ApplyTransition(ctx, t); err != nil {
			return fmt.Errorf("no-phone transition: %w", err)
		}
		sum.Completed++
		metrics.DispatchTotal.WithLabelValues("completed", role.String()).Inc()
		return nil
	}

	sid, err := d.caller.Place(ctx, gateway.Call{ReminderID: m.ID, To: phone, Title: m.Title})
	if err == nil {
		if err := d.store.RecordInitiated(ctx, m.ID, sid, phone, m.Title); err != nil {
			return fmt.Errorf("record initiated: %w", err)
		}
		sum.Calling++
		metrics.DispatchTotal.WithLabelValues("calling", role.String()).Inc()
		d.log.Info("call initiated",
			zap.String("reminder_id", m.ID),
			zap.String("call_sid", sid),
			zap.String("role", role.String()))
		return nil
	}

	// Gateway unavailable: synthesize an outcome so the pipeline keeps
	// progressing without live telephony.
	d.log.Warn("call initiation failed, using synthesized outcome",
		zap.String("reminder_id", m.ID), zap.Error(err))

	diag := model.NewCallLog(m.ID, "", "gateway_fallback",
		fmt.Sprintf("Call to %s not placed (%v), applying synthesized outcome", phone, err), "")
	if err := d.store.AppendLog(ctx, diag); err != nil {
		return fmt.Errorf("append fallback log: %w", err)
	}

	return d.applySynthetic(ctx, m, role, now, sum)
}

func (d *Dispatcher) applySynthetic(ctx context.Context, m model.Reminder, role model.Role, now time.Time, sum *Summary) error {
	out := d.synth.Draw()

	dec := d.policy.Decide(policy.Input{
		Role:           role,
		Outcome:        out,
		Attempts:       m.Attempts,
		BackupAttempts: m.BackupAttempts,
		HasBackupPhone: m.HasBackupPhone(),
		Now:            now,
	})

	t := repository.Transition{
		ReminderID:     m.ID,
		Expect:         model.StatusCalling,
		Role:           role,
		Status:         dec.Status,
		Attempts:       dec.Attempts,
		BackupAttempts: dec.BackupAttempts,
		NextAttemptAt:  dec.NextAttemptAt,
		LastOutcome:    dec.LastOutcome,
		AuditOutcome:   dec.AuditOutcome,
		AuditNote:      dec.AuditNote,
	}
	if _, err := d.store.ApplyTransition(ctx, t); err != nil {
		return fmt.Errorf("synthetic transition: %w", err)
	}

	switch dec.Status {
	case model.StatusRetrying:
		sum.Retried++
		metrics.DispatchTotal.WithLabelValues("retried", role.String()).Inc()
	case model.StatusEscalated:
		sum.Escalated++
		metrics.DispatchTotal.WithLabelValues("escalated", role.String()).Inc()
	default:
		sum.Completed++
		metrics.DispatchTotal.WithLabelValues("completed", role.String()).Inc()
	}
	return nil
}
