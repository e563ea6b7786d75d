// Package reminders is the management surface: create, list and manually
// trigger reminders. All writes go through the store's atomic units.
package reminders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmehdipour/reminder-gateway/internal/model"
	"github.com/jmehdipour/reminder-gateway/internal/repository"
	"github.com/jmehdipour/reminder-gateway/internal/util"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	ErrMissingFields  = errors.New("missing required fields: title, primary_phone, scheduled_at")
	ErrBadPrimary     = errors.New("primary phone must be in E.164 format (e.g. +12345678901)")
	ErrBadBackup      = errors.New("backup phone must be in E.164 format (e.g. +12345678901)")
	ErrBadScheduledAt = errors.New("invalid scheduled_at timestamp")
)

// CreateInput is the validated creation request.
type CreateInput struct {
	Title        string
	PrimaryPhone string
	BackupPhone  string
	ScheduledAt  string // RFC 3339 or "2006-01-02 15:04:05"
}

type Service struct {
	store        repository.Store
	rdb          *redis.Client // optional: scheduler nudge
	nudgeChannel string
	log          *zap.Logger

	Now func() time.Time
}

func New(store repository.Store, rdb *redis.Client, nudgeChannel string, log *zap.Logger) *Service {
	return &Service{
		store:        store,
		rdb:          rdb,
		nudgeChannel: nudgeChannel,
		log:          log,
		Now:          time.Now,
	}
}

// Create validates input and persists a new SCHEDULED reminder with
// next_attempt_at equal to the requested call time.
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Reminder, error) {
	title := strings.TrimSpace(in.Title)
	primary := util.NormalizePhone(in.PrimaryPhone)
	backup := util.NormalizePhone(in.BackupPhone)

	if title == "" || primary == "" || strings.TrimSpace(in.ScheduledAt) == "" {
		return nil, ErrMissingFields
	}
	if !util.ValidE164(primary) {
		return nil, ErrBadPrimary
	}
	if backup != "" && !util.ValidE164(backup) {
		return nil, ErrBadBackup
	}

	scheduledAt, err := parseTimestamp(in.ScheduledAt)
	if err != nil {
		return nil, ErrBadScheduledAt
	}

	m := &model.Reminder{
		Title:         title,
		PrimaryPhone:  primary,
		ScheduledAt:   scheduledAt,
		NextAttemptAt: scheduledAt,
	}
	if backup != "" {
		m.BackupPhone.String = backup
		m.BackupPhone.Valid = true
	}

	if err := s.store.CreateReminder(ctx, m); err != nil {
		return nil, fmt.Errorf("create reminder: %w", err)
	}

	s.log.Info("reminder created",
		zap.String("reminder_id", m.ID),
		zap.Time("scheduled_at", scheduledAt))
	return m, nil
}

// List returns all reminders with their call history, most recent first.
func (s *Service) List(ctx context.Context) ([]model.ReminderWithLogs, error) {
	return s.store.ListWithLogs(ctx)
}

// CallNow rearms a reminder for an immediate attempt and nudges the
// scheduler. Nudge failure is non-fatal: the next scheduled tick picks the
// reminder up anyway.
func (s *Service) CallNow(ctx context.Context, id string) error {
	if err := s.store.ResetForImmediateCall(ctx, id, s.Now()); err != nil {
		return err
	}

	if s.rdb != nil && s.nudgeChannel != "" {
		if err := s.rdb.Publish(ctx, s.nudgeChannel, id).Err(); err != nil {
			s.log.Warn("scheduler nudge failed, next tick will pick it up",
				zap.String("reminder_id", id), zap.Error(err))
		}
	}
	return nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
