package model

import "time"

// Event kinds published to the reminders.events topic.
const (
	EventClaimed    = "claimed"
	EventInitiated  = "initiated"
	EventTransition = "transition"
	EventIntent     = "intent"
	EventCreated    = "created"
)

// Event is the payload written to the outbox and relayed to Kafka.
type Event struct {
	Kind       string    `json:"kind"`
	ReminderID string    `json:"reminder_id"`
	CallSID    string    `json:"call_sid,omitempty"`
	Role       string    `json:"role,omitempty"`
	Outcome    string    `json:"outcome,omitempty"`
	Status     string    `json:"status,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// CallEvent is the ClickHouse analytics row derived from an Event.
type CallEvent struct {
	ReminderID string    `db:"reminder_id" json:"reminder_id"`
	CallSID    string    `db:"call_sid" json:"call_sid"`
	Kind       string    `db:"kind" json:"kind"`
	Outcome    string    `db:"outcome" json:"outcome"`
	Status     string    `db:"status" json:"status"`
	Role       string    `db:"role" json:"role"`
	Detail     string    `db:"detail" json:"detail"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
