package model

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStatus(t *testing.T) {
	st, ok := ParseStatus(" scheduled ")
	assert.True(t, ok)
	assert.Equal(t, StatusScheduled, st)

	_, ok = ParseStatus("SLEEPING")
	assert.False(t, ok)
}

func TestTerminal(t *testing.T) {
	assert.True(t, StatusDone.Terminal())
	for _, s := range []Status{StatusScheduled, StatusCalling, StatusRetrying, StatusEscalated} {
		assert.False(t, s.Terminal(), s)
	}
}

func TestRoleForStatus(t *testing.T) {
	assert.Equal(t, RoleBackup, RoleForStatus(StatusEscalated))
	for _, s := range []Status{StatusScheduled, StatusRetrying, StatusCalling} {
		assert.Equal(t, RolePrimary, RoleForStatus(s), s)
	}
}

func TestPhoneForRole(t *testing.T) {
	m := Reminder{
		PrimaryPhone: "+12345678901",
		BackupPhone:  sql.NullString{String: "+12345678902", Valid: true},
	}
	assert.Equal(t, "+12345678901", m.PhoneForRole(RolePrimary))
	assert.Equal(t, "+12345678902", m.PhoneForRole(RoleBackup))

	m.BackupPhone = sql.NullString{}
	assert.False(t, m.HasBackupPhone())
	assert.Equal(t, "", m.PhoneForRole(RoleBackup))

	// whitespace-only backup counts as unset
	m.BackupPhone = sql.NullString{String: "  ", Valid: true}
	assert.False(t, m.HasBackupPhone())
}

func TestNewCallLog(t *testing.T) {
	l := NewCallLog("rem-1", "", "status_busy", "Call duration: 0 seconds", "")
	assert.False(t, l.CallSID.Valid)
	assert.False(t, l.Intent.Valid)

	l = NewCallLog("rem-1", "CA1", "snoozed", "Reminder snoozed", IntentSnoozed)
	assert.Equal(t, "CA1", l.CallSID.String)
	assert.Equal(t, "snoozed", l.Intent.String)
}
