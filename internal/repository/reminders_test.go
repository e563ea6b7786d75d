package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmehdipour/reminder-gateway/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "mysql"), mock
}

func reminderRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "title", "primary_phone", "backup_phone", "scheduled_at", "next_attempt_at",
		"attempts", "backup_attempts", "status", "last_outcome", "created_at", "updated_at",
	})
}

func TestClaimCallingWinsRace(t *testing.T) {
	dbx, mock := newMockDB(t)
	repo := NewRemindersRepository(dbx)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE reminders").
		WithArgs("rem-1", "SCHEDULED", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ok, err := repo.ClaimCalling(context.Background(), nil, "rem-1", model.StatusScheduled, now)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimCallingLosesRace(t *testing.T) {
	dbx, mock := newMockDB(t)
	repo := NewRemindersRepository(dbx)
	now := time.Now()

	// another actor already advanced the row: zero rows affected, no error
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE reminders").
		WithArgs("rem-1", "RETRYING", now).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ok, err := repo.ClaimCalling(context.Background(), nil, "rem-1", model.StatusRetrying, now)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTransitionCAS(t *testing.T) {
	dbx, mock := newMockDB(t)
	repo := NewRemindersRepository(dbx)
	next := time.Now().Add(time.Minute)

	tr := Transition{
		ReminderID:     "rem-1",
		Expect:         model.StatusCalling,
		Status:         model.StatusRetrying,
		Attempts:       1,
		BackupAttempts: 0,
		NextAttemptAt:  next,
		LastOutcome:    "retrying",
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE reminders").
		WithArgs("RETRYING", 1, 0, next, "retrying", "rem-1", "CALLING").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ok, err := repo.UpdateTransition(context.Background(), nil, tr)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTransitionKeepsNextAttemptWhenZero(t *testing.T) {
	dbx, mock := newMockDB(t)
	repo := NewRemindersRepository(dbx)

	tr := Transition{
		ReminderID:  "rem-1",
		Expect:      model.StatusCalling,
		Status:      model.StatusDone,
		LastOutcome: "done",
	}

	// zero NextAttemptAt binds NULL so COALESCE keeps the stored value
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE reminders").
		WithArgs("DONE", 0, 0, nil, "done", "rem-1", "CALLING").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ok, err := repo.UpdateTransition(context.Background(), nil, tr)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListDueFiltersAndOrders(t *testing.T) {
	dbx, mock := newMockDB(t)
	repo := NewRemindersRepository(dbx)
	now := time.Now()

	rows := reminderRows().
		AddRow("rem-1", "meds", "+12345678901", nil, now, now, 0, 0, "SCHEDULED", nil, now, now).
		AddRow("rem-2", "dentist", "+12345678902", "+12345678903", now, now, 1, 0, "ESCALATED", "busy", now, now)

	mock.ExpectQuery("SELECT (.+) FROM reminders").
		WithArgs(now, 50).
		WillReturnRows(rows)

	due, err := repo.ListDue(context.Background(), now, 50)
	assert.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "rem-1", due[0].ID)
	assert.Equal(t, model.StatusEscalated, due[1].Status)
	assert.True(t, due[1].HasBackupPhone())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetRefusesCallingRow(t *testing.T) {
	dbx, mock := newMockDB(t)
	repo := NewRemindersRepository(dbx)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE reminders").
		WithArgs(now, "rem-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ok, err := repo.Reset(context.Background(), nil, "rem-1", now)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
