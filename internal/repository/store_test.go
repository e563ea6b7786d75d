package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmehdipour/reminder-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTopic = "reminders.events"

func TestClaimForCallCommitsClaimLogAndEvent(t *testing.T) {
	dbx, mock := newMockDB(t)
	store := NewSQLStore(dbx, testTopic)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE reminders").
		WithArgs("rem-1", "SCHEDULED", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO call_logs").
		WithArgs(sqlmock.AnyArg(), "rem-1", nil, "call_initiating", "Claimed for dispatch", nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO outbox").
		WithArgs("reminder", "rem-1", testTopic, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	claimed, err := store.ClaimForCall(context.Background(), "rem-1", model.StatusScheduled, now)
	assert.NoError(t, err)
	assert.True(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimForCallLostRaceWritesNothing(t *testing.T) {
	dbx, mock := newMockDB(t)
	store := NewSQLStore(dbx, testTopic)
	now := time.Now()

	// CAS misses: no audit row, no outbox event
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE reminders").
		WithArgs("rem-1", "SCHEDULED", now).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	claimed, err := store.ClaimForCall(context.Background(), "rem-1", model.StatusScheduled, now)
	assert.NoError(t, err)
	assert.False(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyTransitionCommitsAuditAndEvent(t *testing.T) {
	dbx, mock := newMockDB(t)
	store := NewSQLStore(dbx, testTopic)
	next := time.Now().Add(time.Minute)

	tr := Transition{
		ReminderID:     "rem-1",
		Expect:         model.StatusCalling,
		Role:           model.RolePrimary,
		CallSID:        "CA123",
		Status:         model.StatusRetrying,
		Attempts:       1,
		NextAttemptAt:  next,
		LastOutcome:    "Primary attempt 1 failed (no_answer), retrying",
		AuditOutcome:   "retry_primary_scheduled",
		AuditNote:      "Primary retry scheduled",
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE reminders").
		WithArgs("RETRYING", 1, 0, next, tr.LastOutcome, "rem-1", "CALLING").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO call_logs").
		WithArgs(sqlmock.AnyArg(), "rem-1", "CA123", "retry_primary_scheduled", "Primary retry scheduled", nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO outbox").
		WithArgs("reminder", "rem-1", testTopic, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	applied, err := store.ApplyTransition(context.Background(), tr)
	assert.NoError(t, err)
	assert.True(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyTransitionLostRaceIsNoOp(t *testing.T) {
	dbx, mock := newMockDB(t)
	store := NewSQLStore(dbx, testTopic)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE reminders").
		WithArgs("DONE", 0, 0, nil, "done", "rem-1", "CALLING").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	applied, err := store.ApplyTransition(context.Background(), Transition{
		ReminderID:  "rem-1",
		Expect:      model.StatusCalling,
		Status:      model.StatusDone,
		LastOutcome: "done",
	})
	assert.NoError(t, err)
	assert.False(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetForImmediateCallRefusesInFlight(t *testing.T) {
	dbx, mock := newMockDB(t)
	store := NewSQLStore(dbx, testTopic)
	now := time.Now()

	rows := reminderRows().
		AddRow("rem-1", "meds", "+12345678901", nil, now, now, 0, 0, "CALLING", "Call in progress", now, now)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM reminders WHERE id").
		WithArgs("rem-1").
		WillReturnRows(rows)
	mock.ExpectRollback()

	err := store.ResetForImmediateCall(context.Background(), "rem-1", now)
	assert.ErrorIs(t, err, ErrAlreadyCalling)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetForImmediateCallMissingRow(t *testing.T) {
	dbx, mock := newMockDB(t)
	store := NewSQLStore(dbx, testTopic)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM reminders WHERE id").
		WithArgs("ghost").
		WillReturnRows(reminderRows())
	mock.ExpectRollback()

	err := store.ResetForImmediateCall(context.Background(), "ghost", now)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateReminderAssignsIDAndEmitsEvent(t *testing.T) {
	dbx, mock := newMockDB(t)
	store := NewSQLStore(dbx, testTopic)
	at := time.Now().Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reminders").
		WithArgs(sqlmock.AnyArg(), "meds", "+12345678901", nil, at, at).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO outbox").
		WithArgs("reminder", sqlmock.AnyArg(), testTopic, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	m := &model.Reminder{
		Title:         "meds",
		PrimaryPhone:  "+12345678901",
		ScheduledAt:   at,
		NextAttemptAt: at,
	}
	err := store.CreateReminder(context.Background(), m)
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, model.StatusScheduled, m.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
