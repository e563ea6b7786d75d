package processor

import (
	"context"
	"sync"
	"time"

	"github.com/jmehdipour/reminder-gateway/internal/model"
	"github.com/jmehdipour/reminder-gateway/internal/repository"
)

// fakeStore is an in-memory repository.Store for processor tests.
type fakeStore struct {
	mu sync.Mutex

	reminders   map[string]*model.Reminder
	logs        []model.CallLog
	intents     map[string]model.Intent // reminderID+"/"+callSID
	transitions []repository.Transition

	applyResult bool
	applyErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		reminders:   map[string]*model.Reminder{},
		intents:     map[string]model.Intent{},
		applyResult: true,
	}
}

func (f *fakeStore) put(m model.Reminder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := m
	f.reminders[m.ID] = &cp
}

func (f *fakeStore) CreateReminder(ctx context.Context, m *model.Reminder) error {
	f.put(*m)
	return nil
}

func (f *fakeStore) GetReminder(ctx context.Context, id string) (*model.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.reminders[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (f *fakeStore) ListDue(ctx context.Context, now time.Time, limit int) ([]model.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Reminder
	for _, m := range f.reminders {
		if !m.Status.Terminal() && m.Status != model.StatusCalling && !m.NextAttemptAt.After(now) {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeStore) ListWithLogs(ctx context.Context) ([]model.ReminderWithLogs, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ReminderWithLogs
	for _, m := range f.reminders {
		out = append(out, model.ReminderWithLogs{Reminder: *m})
	}
	return out, nil
}

func (f *fakeStore) AppendLog(ctx context.Context, l model.CallLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, l)
	return nil
}

func (f *fakeStore) LatestIntent(ctx context.Context, reminderID, callSID string) (model.Intent, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	intent, ok := f.intents[reminderID+"/"+callSID]
	return intent, ok, nil
}

func (f *fakeStore) ClaimForCall(ctx context.Context, id string, expect model.Status, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.reminders[id]
	if !ok || m.Status != expect || m.NextAttemptAt.After(now) {
		return false, nil
	}
	m.Status = model.StatusCalling
	f.logs = append(f.logs, model.NewCallLog(id, "", "call_initiating", "Claimed for dispatch", ""))
	return true, nil
}

func (f *fakeStore) RecordInitiated(ctx context.Context, id, callSID, phone, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, model.NewCallLog(id, callSID, "initiated", "Call initiated", ""))
	return nil
}

func (f *fakeStore) ApplyTransition(ctx context.Context, t repository.Transition) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyErr != nil {
		return false, f.applyErr
	}
	if !f.applyResult {
		return false, nil
	}
	f.transitions = append(f.transitions, t)
	if m, ok := f.reminders[t.ReminderID]; ok && m.Status == t.Expect {
		m.Status = t.Status
		m.Attempts = t.Attempts
		m.BackupAttempts = t.BackupAttempts
		if !t.NextAttemptAt.IsZero() {
			m.NextAttemptAt = t.NextAttemptAt
		}
	}
	f.logs = append(f.logs, model.NewCallLog(t.ReminderID, t.CallSID, t.AuditOutcome, t.AuditNote, t.Intent))
	return true, nil
}

func (f *fakeStore) ResetForImmediateCall(ctx context.Context, id string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.reminders[id]
	if !ok {
		return repository.ErrNotFound
	}
	if m.Status == model.StatusCalling {
		return repository.ErrAlreadyCalling
	}
	m.Status = model.StatusScheduled
	m.Attempts = 0
	m.BackupAttempts = 0
	m.NextAttemptAt = now
	return nil
}

func (f *fakeStore) outcomes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.logs))
	for _, l := range f.logs {
		out = append(out, l.Outcome)
	}
	return out
}

func (f *fakeStore) lastTransition() (repository.Transition, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.transitions) == 0 {
		return repository.Transition{}, false
	}
	return f.transitions[len(f.transitions)-1], true
}
