package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmehdipour/reminder-gateway/internal/model"
	"github.com/jmehdipour/reminder-gateway/internal/util"
	"github.com/jmoiron/sqlx"
)

// Store is the atomic unit-of-work surface consumed by the dispatcher, the
// processors and the management service. Every method that mutates a
// reminder commits the state change, its audit row and its outbox event in
// one transaction, or not at all. CAS-style methods return (false, nil)
// when the observed pre-state no longer holds: a no-op, not an error.
type Store interface {
	CreateReminder(ctx context.Context, m *model.Reminder) error
	GetReminder(ctx context.Context, id string) (*model.Reminder, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]model.Reminder, error)
	ListWithLogs(ctx context.Context) ([]model.ReminderWithLogs, error)
	AppendLog(ctx context.Context, l model.CallLog) error
	LatestIntent(ctx context.Context, reminderID, callSID string) (model.Intent, bool, error)
	ClaimForCall(ctx context.Context, id string, expect model.Status, now time.Time) (bool, error)
	RecordInitiated(ctx context.Context, id, callSID, phone, title string) error
	ApplyTransition(ctx context.Context, t Transition) (bool, error)
	ResetForImmediateCall(ctx context.Context, id string, now time.Time) error
}

// SQLStore composes the row-level repositories over MySQL.
type SQLStore struct {
	db        *sqlx.DB
	reminders RemindersRepository
	logs      CallLogsRepository
	outbox    OutboxRepository
	topic     string
}

func NewSQLStore(db *sqlx.DB, topic string) *SQLStore {
	return &SQLStore{
		db:        db,
		reminders: NewRemindersRepository(db),
		logs:      NewCallLogsRepository(db),
		outbox:    NewOutboxRepository(db),
		topic:     topic,
	}
}

func (s *SQLStore) inTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) emit(ctx context.Context, tx *sqlx.Tx, ev model.Event) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.outbox.Insert(ctx, tx, "reminder", ev.ReminderID, s.topic, payload)
}

func (s *SQLStore) CreateReminder(ctx context.Context, m *model.Reminder) error {
	if m.ID == "" {
		m.ID = util.NewID()
	}
	m.Status = model.StatusScheduled

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.reminders.Insert(ctx, tx, *m); err != nil {
			return fmt.Errorf("insert reminder: %w", err)
		}
		return s.emit(ctx, tx, model.Event{
			Kind:       model.EventCreated,
			ReminderID: m.ID,
			Status:     model.StatusScheduled.String(),
			Detail:     m.Title,
		})
	})
}

func (s *SQLStore) GetReminder(ctx context.Context, id string) (*model.Reminder, error) {
	return s.reminders.Get(ctx, id)
}

func (s *SQLStore) ListDue(ctx context.Context, now time.Time, limit int) ([]model.Reminder, error) {
	return s.reminders.ListDue(ctx, now, limit)
}

// ListWithLogs returns every reminder, most recent first, with its audit
// trail attached (also most recent first).
func (s *SQLStore) ListWithLogs(ctx context.Context) ([]model.ReminderWithLogs, error) {
	reminders, err := s.reminders.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]model.ReminderWithLogs, 0, len(reminders))
	for _, m := range reminders {
		logs, err := s.logs.ListByReminder(ctx, m.ID)
		if err != nil {
			return nil, fmt.Errorf("list logs for %s: %w", m.ID, err)
		}
		out = append(out, model.ReminderWithLogs{Reminder: m, CallLogs: logs})
	}
	return out, nil
}

// AppendLog writes a standalone audit row outside any lifecycle step, e.g.
// the raw-status entry every webhook delivery produces.
func (s *SQLStore) AppendLog(ctx context.Context, l model.CallLog) error {
	return s.logs.Insert(ctx, nil, l)
}

func (s *SQLStore) LatestIntent(ctx context.Context, reminderID, callSID string) (model.Intent, bool, error) {
	return s.logs.LatestIntent(ctx, reminderID, callSID)
}

// ClaimForCall atomically moves a due reminder into CALLING and records the
// claim audit entry. false means another actor already advanced the row.
func (s *SQLStore) ClaimForCall(ctx context.Context, id string, expect model.Status, now time.Time) (bool, error) {
	claimed := false
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		ok, err := s.reminders.ClaimCalling(ctx, tx, id, expect, now)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		claimed = true

		l := model.NewCallLog(id, "", "call_initiating", "Claimed for dispatch", "")
		if err := s.logs.Insert(ctx, tx, l); err != nil {
			return fmt.Errorf("insert claim log: %w", err)
		}
		return s.emit(ctx, tx, model.Event{
			Kind:       model.EventClaimed,
			ReminderID: id,
			Role:       model.RoleForStatus(expect).String(),
			Status:     model.StatusCalling.String(),
		})
	})
	return claimed, err
}

// RecordInitiated logs a successfully placed call; the reminder stays in
// CALLING and the outcome arrives later through the status webhook.
func (s *SQLStore) RecordInitiated(ctx context.Context, id, callSID, phone, title string) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		l := model.NewCallLog(id, callSID, "initiated",
			fmt.Sprintf("Call initiated to %s for: %s", phone, title), "")
		if err := s.logs.Insert(ctx, tx, l); err != nil {
			return fmt.Errorf("insert initiated log: %w", err)
		}
		if err := s.reminders.SetLastOutcome(ctx, tx, id, "Call in progress"); err != nil {
			return fmt.Errorf("set last outcome: %w", err)
		}
		return s.emit(ctx, tx, model.Event{
			Kind:       model.EventInitiated,
			ReminderID: id,
			CallSID:    callSID,
			Status:     model.StatusCalling.String(),
		})
	})
}

// ApplyTransition commits one computed lifecycle step: CAS status update,
// audit row and outbox event in a single transaction.
func (s *SQLStore) ApplyTransition(ctx context.Context, t Transition) (bool, error) {
	applied := false
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		ok, err := s.reminders.UpdateTransition(ctx, tx, t)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		applied = true

		l := model.NewCallLog(t.ReminderID, t.CallSID, t.AuditOutcome, t.AuditNote, t.Intent)
		if err := s.logs.Insert(ctx, tx, l); err != nil {
			return fmt.Errorf("insert transition log: %w", err)
		}
		return s.emit(ctx, tx, model.Event{
			Kind:       model.EventTransition,
			ReminderID: t.ReminderID,
			CallSID:    t.CallSID,
			Role:       t.Role.String(),
			Outcome:    t.AuditOutcome,
			Status:     t.Status.String(),
			Detail:     t.LastOutcome,
		})
	})
	return applied, err
}

// ResetForImmediateCall rearms a reminder for the next tick. Returns
// ErrNotFound when the row is missing and ErrAlreadyCalling when an attempt
// is in flight.
func (s *SQLStore) ResetForImmediateCall(ctx context.Context, id string, now time.Time) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		m, err := s.reminders.GetTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if m == nil {
			return ErrNotFound
		}
		if m.Status == model.StatusCalling {
			return ErrAlreadyCalling
		}

		ok, err := s.reminders.Reset(ctx, tx, id, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyCalling
		}
		return s.emit(ctx, tx, model.Event{
			Kind:       model.EventTransition,
			ReminderID: id,
			Outcome:    "call_now",
			Status:     model.StatusScheduled.String(),
			Detail:     "Manual trigger: rescheduled for immediate call",
		})
	})
}
