// Package policy holds the reminder lifecycle transition logic as a pure
// function over (role, outcome class, counters), independently testable
// without any store or telephony dependency.
package policy

import (
	"fmt"
	"time"

	"github.com/jmehdipour/reminder-gateway/internal/classify"
	"github.com/jmehdipour/reminder-gateway/internal/model"
)

// Config is the retry/escalation policy, fixed at construction.
type Config struct {
	MaxPrimaryAttempts int
	MaxBackupAttempts  int
	RetryDelay         time.Duration
	SnoozeDelay        time.Duration
}

// Default returns the shipped policy: one attempt per contact, 60s retry
// spacing, one hour snooze.
func Default() Config {
	return Config{
		MaxPrimaryAttempts: 1,
		MaxBackupAttempts:  1,
		RetryDelay:         time.Minute,
		SnoozeDelay:        time.Hour,
	}
}

// Input is everything a transition depends on. Role is computed once at
// claim time by the caller and never re-derived from mutable status.
type Input struct {
	Role           model.Role
	Outcome        classify.CallOutcome
	Attempts       int
	BackupAttempts int
	HasBackupPhone bool
	Now            time.Time
}

// Decision is the computed next state. NextAttemptAt is the zero time when
// no further attempt is scheduled. AuditOutcome/AuditNote describe the
// transition for the append-only call log.
type Decision struct {
	Status         model.Status
	Attempts       int
	BackupAttempts int
	NextAttemptAt  time.Time
	LastOutcome    string
	AuditOutcome   string
	AuditNote      string
}

// Decide applies the transition table. Intermediate outcomes must be
// filtered out by the caller; passing one is a programming error and yields
// a no-transition decision keeping the counters untouched.
func (c Config) Decide(in Input) Decision {
	d := Decision{
		Attempts:       in.Attempts,
		BackupAttempts: in.BackupAttempts,
	}

	switch in.Outcome.Class {
	case classify.ClassSuccess:
		d.Status = model.StatusDone
		d.LastOutcome = "Call completed successfully"
		d.AuditOutcome = "completed"
		d.AuditNote = fmt.Sprintf("Call ended: %s", in.Outcome.Tag)
		return d

	case classify.ClassPermanent:
		d.Status = model.StatusDone
		d.LastOutcome = fmt.Sprintf("Call ended: %s", in.Outcome.Tag)
		d.AuditOutcome = "call_ended"
		d.AuditNote = fmt.Sprintf("Not retrying after %s", in.Outcome.Tag)
		return d

	case classify.ClassRetryable:
		if in.Role == model.RoleBackup {
			return c.decideBackupFailure(in, d)
		}
		return c.decidePrimaryFailure(in, d)

	default:
		// intermediate or unclassified: no transition
		d.Status = ""
		return d
	}
}

func (c Config) decidePrimaryFailure(in Input, d Decision) Decision {
	d.Attempts = in.Attempts + 1

	if d.Attempts < c.MaxPrimaryAttempts {
		d.Status = model.StatusRetrying
		d.NextAttemptAt = in.Now.Add(c.RetryDelay)
		d.LastOutcome = fmt.Sprintf("Primary attempt %d failed (%s), retrying", d.Attempts, in.Outcome.Tag)
		d.AuditOutcome = "retry_primary_scheduled"
		d.AuditNote = fmt.Sprintf("Primary retry scheduled for %s", d.NextAttemptAt.UTC().Format(time.RFC3339))
		return d
	}

	if in.HasBackupPhone {
		d.Status = model.StatusEscalated
		d.NextAttemptAt = in.Now.Add(c.RetryDelay)
		d.LastOutcome = fmt.Sprintf("Primary attempts exhausted (%s), escalating to backup", in.Outcome.Tag)
		d.AuditOutcome = "escalated_to_backup"
		d.AuditNote = fmt.Sprintf("Escalating to backup contact after %s", in.Outcome.Tag)
		return d
	}

	d.Status = model.StatusDone
	d.LastOutcome = fmt.Sprintf("Max primary attempts (%d) reached - %s, no backup available", c.MaxPrimaryAttempts, in.Outcome.Tag)
	d.AuditOutcome = "max_attempts_primary"
	d.AuditNote = fmt.Sprintf("Final attempt failed: %s", in.Outcome.Tag)
	return d
}

func (c Config) decideBackupFailure(in Input, d Decision) Decision {
	d.BackupAttempts = in.BackupAttempts + 1

	if d.BackupAttempts < c.MaxBackupAttempts {
		d.Status = model.StatusEscalated
		d.NextAttemptAt = in.Now.Add(c.RetryDelay)
		d.LastOutcome = fmt.Sprintf("Backup attempt %d failed (%s), retrying", d.BackupAttempts, in.Outcome.Tag)
		d.AuditOutcome = "retry_backup_scheduled"
		d.AuditNote = fmt.Sprintf("Backup retry scheduled for %s", d.NextAttemptAt.UTC().Format(time.RFC3339))
		return d
	}

	d.Status = model.StatusDone
	d.LastOutcome = fmt.Sprintf("Max backup attempts (%d) reached - %s", c.MaxBackupAttempts, in.Outcome.Tag)
	d.AuditOutcome = "max_attempts_backup"
	d.AuditNote = fmt.Sprintf("Final backup attempt failed: %s", in.Outcome.Tag)
	return d
}

// Snooze is the user-initiated override: back to SCHEDULED with counters
// reset, independent of the failure-driven table.
func (c Config) Snooze(now time.Time) Decision {
	next := now.Add(c.SnoozeDelay)
	return Decision{
		Status:        model.StatusScheduled,
		NextAttemptAt: next,
		LastOutcome:   "Snoozed by user for 1 hour",
		AuditOutcome:  "snoozed",
		AuditNote:     fmt.Sprintf("Reminder snoozed until %s", next.UTC().Format(time.RFC3339)),
	}
}

// Confirm is the user acknowledgment override: straight to DONE, counters
// left exactly as observed.
func (c Config) Confirm(attempts, backupAttempts int) Decision {
	return Decision{
		Status:         model.StatusDone,
		Attempts:       attempts,
		BackupAttempts: backupAttempts,
		LastOutcome:    "Confirmed by user",
		AuditOutcome:   "completed",
		AuditNote:      "User confirmed reminder",
	}
}
