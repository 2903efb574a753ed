package service

import (
	"context"
	"sync"
	"time"

	"github.com/kursadbilgin/report-dispatch/internal/domain"
	"github.com/kursadbilgin/report-dispatch/internal/mailer"
	"github.com/kursadbilgin/report-dispatch/internal/queue"
)

type fakeSettingsStore struct {
	mu     sync.Mutex
	values map[string]string
	sets   []string

	getFn func(ctx context.Context, key string) (*string, error)
	setFn func(ctx context.Context, key string, value string) error
}

func newFakeSettingsStore(values map[string]string) *fakeSettingsStore {
	if values == nil {
		values = make(map[string]string)
	}
	return &fakeSettingsStore{values: values}
}

func (f *fakeSettingsStore) Get(ctx context.Context, key string) (*string, error) {
	if f.getFn != nil {
		return f.getFn(ctx, key)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.values[key]
	if !ok {
		return nil, nil
	}
	return &value, nil
}

func (f *fakeSettingsStore) Set(ctx context.Context, key string, value string) error {
	if f.setFn != nil {
		if err := f.setFn(ctx, key, value); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	f.sets = append(f.sets, key+"="+value)
	return nil
}

func (f *fakeSettingsStore) value(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok
}

func (f *fakeSettingsStore) setCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sets {
		if len(s) > len(key) && s[:len(key)+1] == key+"=" {
			n++
		}
	}
	return n
}

type fakeTeacherRepo struct {
	listAllFn func(ctx context.Context) ([]domain.Teacher, error)
}

func (f *fakeTeacherRepo) ListAll(ctx context.Context) ([]domain.Teacher, error) {
	if f.listAllFn != nil {
		return f.listAllFn(ctx)
	}
	return nil, nil
}

type fakeStudentRepo struct {
	listByClassFn func(ctx context.Context, className string) ([]domain.Student, error)
}

func (f *fakeStudentRepo) ListByClass(ctx context.Context, className string) ([]domain.Student, error) {
	if f.listByClassFn != nil {
		return f.listByClassFn(ctx, className)
	}
	return nil, nil
}

type fakeAttendanceRepo struct {
	listScansFn func(ctx context.Context, studentID int64, from, to time.Time) ([]domain.AttendanceScan, error)
}

func (f *fakeAttendanceRepo) ListScans(ctx context.Context, studentID int64, from, to time.Time) ([]domain.AttendanceScan, error) {
	if f.listScansFn != nil {
		return f.listScansFn(ctx, studentID, from, to)
	}
	return nil, nil
}

type fakeStatusLookup struct {
	statusOfFn func(ctx context.Context, studentID int64, date domain.Date) (domain.AttendanceStatus, error)
}

func (f *fakeStatusLookup) StatusOf(ctx context.Context, studentID int64, date domain.Date) (domain.AttendanceStatus, error) {
	if f.statusOfFn != nil {
		return f.statusOfFn(ctx, studentID, date)
	}
	return domain.AttendancePresent, nil
}

type fakeRecipientSource struct {
	resolveRecipientsFn func(ctx context.Context) ([]domain.Teacher, []domain.SkippedRecipient, error)
	resolveRosterFn     func(ctx context.Context, className string, date domain.Date) ([]domain.RosterEntry, error)
}

func (f *fakeRecipientSource) ResolveRecipients(ctx context.Context) ([]domain.Teacher, []domain.SkippedRecipient, error) {
	if f.resolveRecipientsFn != nil {
		return f.resolveRecipientsFn(ctx)
	}
	return nil, nil, nil
}

func (f *fakeRecipientSource) ResolveRoster(ctx context.Context, className string, date domain.Date) ([]domain.RosterEntry, error) {
	if f.resolveRosterFn != nil {
		return f.resolveRosterFn(ctx, className, date)
	}
	return []domain.RosterEntry{
		{Student: domain.Student{ID: 1, Name: "Student One", ClassName: className}, Status: domain.AttendancePresent},
	}, nil
}

type fakeRenderer struct {
	renderFn func(className string, roster []domain.RosterEntry, date domain.Date) ([]byte, error)
}

func (f *fakeRenderer) Render(className string, roster []domain.RosterEntry, date domain.Date) ([]byte, error) {
	if f.renderFn != nil {
		return f.renderFn(className, roster, date)
	}
	return []byte("%PDF-fake " + className), nil
}

type fakeMailer struct {
	mu     sync.Mutex
	sent   []mailer.Message
	sendFn func(ctx context.Context, msg mailer.Message) error
}

func (f *fakeMailer) Send(ctx context.Context, msg mailer.Message) error {
	if f.sendFn != nil {
		if err := f.sendFn(ctx, msg); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMailer) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeRelayLimiter struct {
	acquireFn func(ctx context.Context, date domain.Date) error
}

func (f *fakeRelayLimiter) Acquire(ctx context.Context, date domain.Date) error {
	if f.acquireFn != nil {
		return f.acquireFn(ctx, date)
	}
	return nil
}

type fakeDispatcher struct {
	mu         sync.Mutex
	calls      int
	dispatchFn func(ctx context.Context, req DispatchRequest) (*DispatchResult, error)
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, req DispatchRequest) (*DispatchResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.dispatchFn != nil {
		return f.dispatchFn(ctx, req)
	}
	return &DispatchResult{Trigger: req.Trigger}, nil
}

func (f *fakeDispatcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePublisher struct {
	mu        sync.Mutex
	events    []queue.BatchEvent
	publishFn func(ctx context.Context, event queue.BatchEvent) error
}

func (f *fakePublisher) Publish(ctx context.Context, event queue.BatchEvent) error {
	f.mu.Lock()
	f.events = append(f.events, event)
	f.mu.Unlock()
	if f.publishFn != nil {
		return f.publishFn(ctx, event)
	}
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) published() []queue.BatchEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]queue.BatchEvent(nil), f.events...)
}

func teachers(n int) []domain.Teacher {
	out := make([]domain.Teacher, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, domain.Teacher{
			ID:        int64(i),
			Name:      "Teacher " + string(rune('A'+i-1)),
			Email:     "teacher" + string(rune('a'+i-1)) + "@school.test",
			ClassName: string(rune('0'+i)) + "A",
		})
	}
	return out
}
