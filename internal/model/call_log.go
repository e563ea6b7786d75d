package model

import (
	"database/sql"
	"time"
)

type Intent string

const (
	IntentConfirm Intent = "confirm"
	IntentSnooze  Intent = "snooze"
	IntentUnknown Intent = "unknown"

	// Persisted intent values, written once an intent has been acted on.
	IntentConfirmed Intent = "confirmed"
	IntentSnoozed   Intent = "snoozed"
)

func (i Intent) String() string { return string(i) }

// CallLog is one append-only audit row documenting a reminder step.
// Rows are never updated or deleted after insert.
type CallLog struct {
	ID         string         `db:"id" json:"id"`
	ReminderID string         `db:"reminder_id" json:"reminder_id"`
	CallSID    sql.NullString `db:"call_sid" json:"call_sid,omitempty"`
	Outcome    string         `db:"outcome" json:"outcome"`
	Transcript string         `db:"transcript" json:"transcript"`
	Intent     sql.NullString `db:"intent" json:"intent,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

// NewCallLog builds an audit row; sid and intent may be empty.
func NewCallLog(reminderID, sid, outcome, transcript string, intent Intent) CallLog {
	l := CallLog{
		ReminderID: reminderID,
		Outcome:    outcome,
		Transcript: transcript,
	}
	if sid != "" {
		l.CallSID = sql.NullString{String: sid, Valid: true}
	}
	if intent != "" {
		l.Intent = sql.NullString{String: intent.String(), Valid: true}
	}
	return l
}
