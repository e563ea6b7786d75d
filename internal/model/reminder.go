package model

import (
	"database/sql"
	"strings"
	"time"
)

type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusCalling   Status = "CALLING"
	StatusRetrying  Status = "RETRYING"
	StatusEscalated Status = "ESCALATED"
	StatusDone      Status = "DONE"
)

func (s Status) String() string { return string(s) }

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusCalling, StatusRetrying, StatusEscalated, StatusDone:
		return true
	}
	return false
}

// Terminal reports whether no further lifecycle transition is allowed.
func (s Status) Terminal() bool { return s == StatusDone }

// ParseStatus normalizes input. Returns (value, true) if valid.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	return st, st.Valid()
}

// Role identifies which contact an attempt targets. It is fixed at claim
// time (backup iff the reminder was ESCALATED when claimed) and threaded
// through the transition logic, never re-derived from mutable status.
type Role string

const (
	RolePrimary Role = "primary"
	RoleBackup  Role = "backup"
)

func (r Role) String() string { return string(r) }

// RoleForStatus maps the pre-claim status to the attempt role.
func RoleForStatus(s Status) Role {
	if s == StatusEscalated {
		return RoleBackup
	}
	return RolePrimary
}

// Reminder is the DB entity persisted in the reminders table.
type Reminder struct {
	ID             string         `db:"id" json:"id"`
	Title          string         `db:"title" json:"title"`
	PrimaryPhone   string         `db:"primary_phone" json:"primary_phone"`
	BackupPhone    sql.NullString `db:"backup_phone" json:"backup_phone,omitempty"`
	ScheduledAt    time.Time      `db:"scheduled_at" json:"scheduled_at"`
	NextAttemptAt  time.Time      `db:"next_attempt_at" json:"next_attempt_at"`
	Attempts       int            `db:"attempts" json:"attempts"`
	BackupAttempts int            `db:"backup_attempts" json:"backup_attempts"`
	Status         Status         `db:"status" json:"status"`
	LastOutcome    sql.NullString `db:"last_outcome" json:"last_outcome,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

func (r Reminder) HasBackupPhone() bool {
	return r.BackupPhone.Valid && strings.TrimSpace(r.BackupPhone.String) != ""
}

// PhoneForRole returns the number an attempt with the given role must dial,
// or "" when the role demands a backup number that is not configured.
func (r Reminder) PhoneForRole(role Role) string {
	if role == RoleBackup {
		if r.HasBackupPhone() {
			return r.BackupPhone.String
		}
		return ""
	}
	return r.PrimaryPhone
}

// ReminderWithLogs is the list-endpoint shape: a reminder plus its audit trail.
type ReminderWithLogs struct {
	Reminder
	CallLogs []CallLog `json:"call_logs"`
}
