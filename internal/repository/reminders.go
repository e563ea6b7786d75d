package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmehdipour/reminder-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

var (
	ErrNotFound       = errors.New("reminder not found")
	ErrAlreadyCalling = errors.New("reminder is already being called")
)

// RemindersRepository defines row-level persistence for the reminders table.
// Multi-row atomic units (claim, transition) are composed by Store, which
// owns the transaction and passes it down.
type RemindersRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, r model.Reminder) error
	Get(ctx context.Context, id string) (*model.Reminder, error)
	GetTx(ctx context.Context, tx *sqlx.Tx, id string) (*model.Reminder, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]model.Reminder, error)
	ListAll(ctx context.Context) ([]model.Reminder, error)
	ClaimCalling(ctx context.Context, tx *sqlx.Tx, id string, expect model.Status, now time.Time) (bool, error)
	SetLastOutcome(ctx context.Context, tx *sqlx.Tx, id, outcome string) error
	UpdateTransition(ctx context.Context, tx *sqlx.Tx, t Transition) (bool, error)
	Reset(ctx context.Context, tx *sqlx.Tx, id string, now time.Time) (bool, error)
}

// Transition carries one computed lifecycle step: the expected pre-state for
// the compare-and-set plus every field the step writes.
type Transition struct {
	ReminderID     string
	Expect         model.Status
	Role           model.Role
	CallSID        string
	Status         model.Status
	Attempts       int
	BackupAttempts int
	NextAttemptAt  time.Time // zero: leave the column untouched
	LastOutcome    string
	AuditOutcome   string
	AuditNote      string
	Intent         model.Intent
}

type RemindersRepositoryImpl struct {
	db *sqlx.DB
}

func NewRemindersRepository(db *sqlx.DB) *RemindersRepositoryImpl {
	return &RemindersRepositoryImpl{db: db}
}

func (r *RemindersRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
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

func (r *RemindersRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, m model.Reminder) error {
	const q = `
		INSERT INTO reminders
		    (id, title, primary_phone, backup_phone, scheduled_at, next_attempt_at,
		     attempts, backup_attempts, status, last_outcome, created_at, updated_at)
		VALUES
		    (?, ?, ?, ?, ?, ?, 0, 0, 'SCHEDULED', NULL, NOW(), NOW())
	`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q,
			m.ID, m.Title, m.PrimaryPhone, m.BackupPhone, m.ScheduledAt, m.NextAttemptAt,
		)
		return err
	})
}

const reminderColumns = `
	id, title, primary_phone, backup_phone, scheduled_at, next_attempt_at,
	attempts, backup_attempts, status, last_outcome, created_at, updated_at
`

// Get returns (nil, nil) when the row does not exist.
func (r *RemindersRepositoryImpl) Get(ctx context.Context, id string) (*model.Reminder, error) {
	var m model.Reminder
	err := r.db.GetContext(ctx, &m, `SELECT `+reminderColumns+` FROM reminders WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *RemindersRepositoryImpl) GetTx(ctx context.Context, tx *sqlx.Tx, id string) (*model.Reminder, error) {
	var m model.Reminder
	err := tx.GetContext(ctx, &m, `SELECT `+reminderColumns+` FROM reminders WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListDue returns claim candidates: oldest-due first, ties broken by
// creation order for determinism.
func (r *RemindersRepositoryImpl) ListDue(ctx context.Context, now time.Time, limit int) ([]model.Reminder, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
		SELECT ` + reminderColumns + `
		FROM reminders
		WHERE status IN ('SCHEDULED', 'RETRYING', 'ESCALATED')
		  AND next_attempt_at <= ?
		ORDER BY next_attempt_at ASC, created_at ASC
		LIMIT ?
	`
	var rows []model.Reminder
	if err := r.db.SelectContext(ctx, &rows, q, now, limit); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *RemindersRepositoryImpl) ListAll(ctx context.Context) ([]model.Reminder, error) {
	const q = `SELECT ` + reminderColumns + ` FROM reminders ORDER BY created_at DESC`
	var rows []model.Reminder
	if err := r.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, err
	}
	return rows, nil
}

// ClaimCalling performs the atomic claim: status moves to CALLING only when
// the observed pre-state still holds and the row is still due. A lost race
// yields (false, nil), not an error.
func (r *RemindersRepositoryImpl) ClaimCalling(ctx context.Context, tx *sqlx.Tx, id string, expect model.Status, now time.Time) (bool, error) {
	const q = `
		UPDATE reminders
		SET status = 'CALLING', last_outcome = 'Initiating call', updated_at = NOW()
		WHERE id = ? AND status = ? AND next_attempt_at <= ?
	`
	var affected int64
	err := r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, q, id, expect.String(), now)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected == 1, err
}

func (r *RemindersRepositoryImpl) SetLastOutcome(ctx context.Context, tx *sqlx.Tx, id, outcome string) error {
	const q = `UPDATE reminders SET last_outcome = ?, updated_at = NOW() WHERE id = ?`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q, outcome, id)
		return err
	})
}

// UpdateTransition applies a computed step with a compare-and-set on the
// expected pre-status. NULL next-attempt argument keeps the old value.
func (r *RemindersRepositoryImpl) UpdateTransition(ctx context.Context, tx *sqlx.Tx, t Transition) (bool, error) {
	const q = `
		UPDATE reminders
		SET status = ?, attempts = ?, backup_attempts = ?,
		    next_attempt_at = COALESCE(?, next_attempt_at),
		    last_outcome = ?, updated_at = NOW()
		WHERE id = ? AND status = ?
	`
	var next any
	if !t.NextAttemptAt.IsZero() {
		next = t.NextAttemptAt
	}

	var affected int64
	err := r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, q,
			t.Status.String(), t.Attempts, t.BackupAttempts, next, t.LastOutcome,
			t.ReminderID, t.Expect.String(),
		)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected == 1, err
}

// Reset rearms a reminder for an immediate attempt. It refuses to touch a
// row mid-call; (false, nil) means the row was CALLING or gone.
func (r *RemindersRepositoryImpl) Reset(ctx context.Context, tx *sqlx.Tx, id string, now time.Time) (bool, error) {
	const q = `
		UPDATE reminders
		SET status = 'SCHEDULED', next_attempt_at = ?, attempts = 0,
		    backup_attempts = 0, last_outcome = NULL, updated_at = NOW()
		WHERE id = ? AND status <> 'CALLING'
	`
	var affected int64
	err := r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, q, now, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected == 1, err
}
