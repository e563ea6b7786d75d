package repository

import (
	"context"

	"github.com/jmehdipour/reminder-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

// CHEventsRepository persists and queries the ClickHouse analytics table
// fed by the analytics worker.
type CHEventsRepository interface {
	InsertBatch(ctx context.Context, events []model.CallEvent) error
	List(ctx context.Context, reminderID, kind string, limit, offset int) ([]model.CallEvent, error)
}

type chEventsRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHEventsRepository(ch *sqlx.DB) CHEventsRepository {
	return &chEventsRepository{ch: ch}
}

func (r *chEventsRepository) InsertBatch(ctx context.Context, events []model.CallEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.ch.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	const q = `
		INSERT INTO rmgw.call_events
		    (reminder_id, call_sid, kind, outcome, status, role, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	stmt, err := tx.PreparexContext(ctx, q)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.ExecContext(ctx,
			e.ReminderID, e.CallSID, e.Kind, e.Outcome, e.Status, e.Role, e.Detail, e.CreatedAt,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *chEventsRepository) List(ctx context.Context, reminderID, kind string, limit, offset int) ([]model.CallEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT reminder_id, call_sid, kind, outcome, status, role, detail, created_at
		FROM rmgw.call_events
		WHERE 1 = 1
	`
	args := []any{}

	if reminderID != "" {
		q += " AND reminder_id = ?"
		args = append(args, reminderID)
	}
	if kind != "" {
		q += " AND kind = ?"
		args = append(args, kind)
	}

	q += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []model.CallEvent
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
