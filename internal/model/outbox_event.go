package model

import (
	"database/sql"
	"time"
)

type OutboxEvent struct {
	ID          int64        `db:"id"`
	Aggregate   string       `db:"aggregate"`    // e.g. "reminder"
	AggregateID string       `db:"aggregate_id"` // reminder.ID
	Topic       string       `db:"topic"`
	Payload     []byte       `db:"payload"`
	Attempts    int          `db:"attempts"`
	CreatedAt   time.Time    `db:"created_at"`
	PublishedAt sql.NullTime `db:"published_at"`
}
