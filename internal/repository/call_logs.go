package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmehdipour/reminder-gateway/internal/model"
	"github.com/jmehdipour/reminder-gateway/internal/util"
	"github.com/jmoiron/sqlx"
)

// CallLogsRepository defines persistence for the append-only call_logs
// audit trail. Rows are never updated or deleted.
type CallLogsRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, l model.CallLog) error
	ListByReminder(ctx context.Context, reminderID string) ([]model.CallLog, error)
	LatestIntent(ctx context.Context, reminderID, callSID string) (model.Intent, bool, error)
}

type CallLogsRepositoryImpl struct {
	db *sqlx.DB
}

func NewCallLogsRepository(db *sqlx.DB) *CallLogsRepositoryImpl {
	return &CallLogsRepositoryImpl{db: db}
}

func (r *CallLogsRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}
	t, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = t.Rollback() }()
	if err := fn(t); err != nil {
		return err
	}
	return t.Commit()
}

// Insert appends an audit row; the ID is assigned here when absent.
func (r *CallLogsRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, l model.CallLog) error {
	if l.ID == "" {
		l.ID = util.NewID()
	}
	const q = `
		INSERT INTO call_logs (id, reminder_id, call_sid, outcome, transcript, intent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, NOW())
	`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q,
			l.ID, l.ReminderID, l.CallSID, l.Outcome, l.Transcript, l.Intent,
		)
		return err
	})
}

func (r *CallLogsRepositoryImpl) ListByReminder(ctx context.Context, reminderID string) ([]model.CallLog, error) {
	const q = `
		SELECT id, reminder_id, call_sid, outcome, transcript, intent, created_at
		FROM call_logs
		WHERE reminder_id = ?
		ORDER BY created_at DESC, id DESC
	`
	var rows []model.CallLog
	if err := r.db.SelectContext(ctx, &rows, q, reminderID); err != nil {
		return nil, err
	}
	return rows, nil
}

// LatestIntent returns the most recent acted-on intent recorded for one
// physical call. Used to decide whether a "completed" status was actually
// confirmed through gather.
func (r *CallLogsRepositoryImpl) LatestIntent(ctx context.Context, reminderID, callSID string) (model.Intent, bool, error) {
	const q = `
		SELECT intent
		FROM call_logs
		WHERE reminder_id = ? AND call_sid = ? AND intent IN ('confirmed', 'snoozed')
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	var intent string
	err := r.db.GetContext(ctx, &intent, q, reminderID, callSID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return model.Intent(intent), true, nil
}
