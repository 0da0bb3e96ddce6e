package task

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskfabric/taskfabric/internal/clock"
	"github.com/taskfabric/taskfabric/internal/domain"
	"github.com/taskfabric/taskfabric/internal/event"
)

// fakeRepo is an in-memory Repository with copy-on-write transactions so
// rollback behavior can be asserted.
type fakeRepo struct {
	tasks     map[string]*domain.Task
	recs      map[string]*domain.Recurrence
	reminders map[string]*domain.Reminder

	failReminderCreate bool
	failUpdate         bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		tasks:     make(map[string]*domain.Task),
		recs:      make(map[string]*domain.Recurrence),
		reminders: make(map[string]*domain.Reminder),
	}
}

func (f *fakeRepo) CreateTask(_ context.Context, t *domain.Task) error {
	cp := *t
	f.tasks[t.ID] = &cp
	return nil
}

func (f *fakeRepo) FindTask(_ context.Context, id, ownerID string) (*domain.Task, error) {
	t, ok := f.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return nil, domain.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeRepo) ListTasks(_ context.Context, ownerID string) ([]*domain.Task, error) {
	var out []*domain.Task
	for _, t := range f.tasks {
		if t.OwnerID == ownerID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRepo) UpdateTask(_ context.Context, t *domain.Task) error {
	if f.failUpdate {
		return errors.New("update failed")
	}
	if _, ok := f.tasks[t.ID]; !ok {
		return domain.ErrTaskNotFound
	}
	cp := *t
	f.tasks[t.ID] = &cp
	return nil
}

func (f *fakeRepo) DeleteTask(_ context.Context, id, ownerID string) (bool, error) {
	t, ok := f.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return false, nil
	}
	delete(f.tasks, id)
	for rid, r := range f.reminders {
		if r.TaskID == id {
			delete(f.reminders, rid)
		}
	}
	for _, r := range f.recs {
		if r.TaskID != nil && *r.TaskID == id {
			r.TaskID = nil
		}
	}
	return true, nil
}

func (f *fakeRepo) CreateRecurrence(_ context.Context, r *domain.Recurrence) error {
	cp := *r
	f.recs[r.ID] = &cp
	return nil
}

func (f *fakeRepo) FindRecurrenceByTask(_ context.Context, taskID string) (*domain.Recurrence, error) {
	for _, r := range f.recs {
		if r.TaskID != nil && *r.TaskID == taskID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, domain.ErrRecurrenceNotFound
}

func (f *fakeRepo) DeactivateRecurrence(_ context.Context, id string) error {
	r, ok := f.recs[id]
	if !ok {
		return domain.ErrRecurrenceNotFound
	}
	r.Active = false
	return nil
}

func (f *fakeRepo) CreateReminder(_ context.Context, r *domain.Reminder) error {
	if f.failReminderCreate {
		return errors.New("reminder insert failed")
	}
	cp := *r
	f.reminders[r.ID] = &cp
	return nil
}

func (f *fakeRepo) Atomic(ctx context.Context, fn func(Repository) error) error {
	snapTasks := cloneMap(f.tasks)
	snapRecs := cloneMap(f.recs)
	snapRems := cloneMap(f.reminders)

	if err := fn(f); err != nil {
		f.tasks = snapTasks
		f.recs = snapRecs
		f.reminders = snapRems
		return err
	}
	return nil
}

func cloneMap[V any](in map[string]*V) map[string]*V {
	out := make(map[string]*V, len(in))
	for k, v := range in {
		cp := *v
		out[k] = &cp
	}
	return out
}

// capturePublisher records everything published.
type capturePublisher struct {
	topics []string
	types  []string
	data   []any
	err    error
}

func (c *capturePublisher) Publish(_ context.Context, topic, eventType string, payload any, eventID string) (string, error) {
	if c.err != nil {
		return eventID, c.err
	}
	c.topics = append(c.topics, topic)
	c.types = append(c.types, eventType)
	c.data = append(c.data, payload)
	return "generated", nil
}

func (c *capturePublisher) last() (string, any) {
	if len(c.types) == 0 {
		return "", nil
	}
	return c.types[len(c.types)-1], c.data[len(c.data)-1]
}

func newTestService() (*Service, *fakeRepo, *capturePublisher, *clock.Fake) {
	repo := newFakeRepo()
	pub := &capturePublisher{}
	clk := clock.NewFake(time.Date(2026, 1, 6, 9, 0, 0, 0, time.UTC))
	return NewService(repo, pub, clk, slog.Default()), repo, pub, clk
}

func ptrTo[T any](v T) *T { return &v }

func TestCreateTask_Minimal(t *testing.T) {
	svc, repo, pub, clk := newTestService()

	task, err := svc.CreateTask(context.Background(), CreateTaskParams{
		OwnerID: "u1",
		Title:   "  water plants ",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "water plants", task.Title)
	assert.Equal(t, domain.TaskPriorityMedium, task.Priority)
	assert.Equal(t, clk.Now(), task.CreatedAt)
	assert.Len(t, repo.tasks, 1)

	typ, payload := pub.last()
	assert.Equal(t, event.TypeTaskCreated, typ)
	created := payload.(event.TaskCreated)
	assert.Equal(t, task.ID, created.TaskID)
	assert.False(t, created.HasRecurrence)
}

func TestCreateTask_WithRecurrenceAndReminders(t *testing.T) {
	svc, repo, pub, _ := newTestService()
	due := time.Date(2026, 1, 7, 10, 0, 0, 0, time.UTC) // Wednesday

	task, err := svc.CreateTask(context.Background(), CreateTaskParams{
		OwnerID:  "u1",
		Title:    "weekly report",
		Priority: "high",
		Tags:     []string{"work"},
		DueAt:    &due,
		Recurrence: &RecurrenceParams{
			Pattern:    "weekly",
			Interval:   1,
			DaysOfWeek: []int{2}, // Wednesday
		},
		Reminders: []ReminderParams{
			{RemindBefore: "PT1H", Channels: []string{"email", "push"}},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, task.RecurrenceID)

	require.Len(t, repo.recs, 1)
	rec := repo.recs[*task.RecurrenceID]
	require.NotNil(t, rec.NextFireAt)
	assert.Equal(t, due.AddDate(0, 0, 7), *rec.NextFireAt, "initial next fire anchors on due")
	assert.True(t, rec.Active)

	require.Len(t, repo.reminders, 1)

	typ, payload := pub.last()
	assert.Equal(t, event.TypeTaskCreated, typ)
	created := payload.(event.TaskCreated)
	assert.True(t, created.HasRecurrence)
	assert.Equal(t, "weekly", created.RecurrencePattern)
	assert.Equal(t, []int{2}, created.RecurrenceDaysOfWeek)
}

func TestCreateTask_ValidationFailures(t *testing.T) {
	svc, repo, pub, _ := newTestService()
	ctx := context.Background()

	tests := []struct {
		name    string
		params  CreateTaskParams
		wantErr error
	}{
		{"empty title", CreateTaskParams{OwnerID: "u1", Title: " "}, domain.ErrTitleRequired},
		{"bad priority", CreateTaskParams{OwnerID: "u1", Title: "x", Priority: "urgent"}, domain.ErrInvalidPriority},
		{
			"reminder without due",
			CreateTaskParams{OwnerID: "u1", Title: "x", Reminders: []ReminderParams{{RemindBefore: "PT1H", Channels: []string{"email"}}}},
			domain.ErrReminderRequiresDue,
		},
		{
			"recurrence without due",
			CreateTaskParams{OwnerID: "u1", Title: "x", Recurrence: &RecurrenceParams{Pattern: "daily", Interval: 1}},
			domain.ErrRecurrenceRequiresDue,
		},
		{
			"bad offset",
			CreateTaskParams{
				OwnerID: "u1", Title: "x", DueAt: ptrTo(time.Now().UTC()),
				Reminders: []ReminderParams{{RemindBefore: "PT30M", Channels: []string{"email"}}},
			},
			domain.ErrInvalidOffsetFormat,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateTask(ctx, tc.params)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.True(t, domain.IsValidation(err))
		})
	}

	assert.Empty(t, repo.tasks, "nothing persisted")
	assert.Empty(t, pub.types, "nothing published")
}

func TestCreateTask_TransactionRollsBack(t *testing.T) {
	svc, repo, pub, _ := newTestService()
	repo.failReminderCreate = true
	due := time.Date(2026, 1, 7, 10, 0, 0, 0, time.UTC)

	_, err := svc.CreateTask(context.Background(), CreateTaskParams{
		OwnerID: "u1",
		Title:   "doomed",
		DueAt:   &due,
		Reminders: []ReminderParams{
			{RemindBefore: "PT1H", Channels: []string{"email"}},
		},
	})
	require.Error(t, err)

	assert.Empty(t, repo.tasks, "task insert rolled back with the reminder")
	assert.Empty(t, pub.types, "no event on persistence failure")
}

func TestCreateTask_PublishFailureDoesNotFail(t *testing.T) {
	svc, repo, pub, _ := newTestService()
	pub.err = errors.New("broker down")

	task, err := svc.CreateTask(context.Background(), CreateTaskParams{OwnerID: "u1", Title: "persisted anyway"})
	require.NoError(t, err)
	assert.Contains(t, repo.tasks, task.ID)
}

func TestUpdateTask_DiffAndEvent(t *testing.T) {
	svc, _, pub, _ := newTestService()
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, CreateTaskParams{OwnerID: "u1", Title: "old title", Priority: "low"})
	require.NoError(t, err)

	updated, err := svc.UpdateTask(ctx, task.ID, "u1", UpdateTaskParams{
		Title:    ptrTo("new title"),
		Priority: ptrTo("high"),
	})
	require.NoError(t, err)
	assert.Equal(t, "new title", updated.Title)

	typ, payload := pub.last()
	assert.Equal(t, event.TypeTaskUpdated, typ)
	upd := payload.(event.TaskUpdated)
	require.Len(t, upd.Changes, 2)
	assert.Equal(t, event.FieldChange{Old: "old title", New: "new title"}, upd.Changes["title"])
	assert.Equal(t, event.FieldChange{Old: "low", New: "high"}, upd.Changes["priority"])
}

func TestUpdateTask_EmptyDiffNoEvent(t *testing.T) {
	svc, _, pub, _ := newTestService()
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, CreateTaskParams{OwnerID: "u1", Title: "same", Priority: "low"})
	require.NoError(t, err)
	published := len(pub.types)

	_, err = svc.UpdateTask(ctx, task.ID, "u1", UpdateTaskParams{
		Title:    ptrTo("same"),
		Priority: ptrTo("low"),
	})
	require.NoError(t, err)
	assert.Len(t, pub.types, published, "no event for empty diff")
}

func TestUpdateTask_WrongOwner(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, CreateTaskParams{OwnerID: "u1", Title: "mine"})
	require.NoError(t, err)

	_, err = svc.UpdateTask(ctx, task.ID, "u2", UpdateTaskParams{Title: ptrTo("stolen")})
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestCompleteTask_EmitsRecurrenceDescriptors(t *testing.T) {
	svc, _, pub, clk := newTestService()
	ctx := context.Background()
	due := time.Date(2026, 1, 7, 10, 0, 0, 0, time.UTC)

	task, err := svc.CreateTask(ctx, CreateTaskParams{
		OwnerID:    "u1",
		Title:      "recurring chore",
		DueAt:      &due,
		Recurrence: &RecurrenceParams{Pattern: "daily", Interval: 2},
	})
	require.NoError(t, err)

	clk.Advance(time.Hour)
	completed, err := svc.CompleteTask(ctx, task.ID, "u1")
	require.NoError(t, err)
	assert.True(t, completed.Completed)
	require.NotNil(t, completed.CompletedAt)

	typ, payload := pub.last()
	assert.Equal(t, event.TypeTaskCompleted, typ)
	evt := payload.(event.TaskCompleted)
	assert.True(t, evt.HasRecurrence)
	assert.Equal(t, "daily", evt.RecurrencePattern)
	assert.Equal(t, 2, evt.RecurrenceInterval)
	require.NotNil(t, evt.DueAt)
	assert.True(t, due.Equal(*evt.DueAt), "completion event carries the original due anchor")
}

func TestCompleteTask_AlreadyCompletedNoEvent(t *testing.T) {
	svc, _, pub, _ := newTestService()
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, CreateTaskParams{OwnerID: "u1", Title: "once"})
	require.NoError(t, err)

	_, err = svc.CompleteTask(ctx, task.ID, "u1")
	require.NoError(t, err)
	published := len(pub.types)

	_, err = svc.CompleteTask(ctx, task.ID, "u1")
	require.NoError(t, err)
	assert.Len(t, pub.types, published, "second completion is silent")
}

func TestReopenTask_EmitsUpdateEvent(t *testing.T) {
	svc, _, pub, _ := newTestService()
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, CreateTaskParams{OwnerID: "u1", Title: "toggle me"})
	require.NoError(t, err)
	_, err = svc.CompleteTask(ctx, task.ID, "u1")
	require.NoError(t, err)

	reopened, err := svc.ReopenTask(ctx, task.ID, "u1")
	require.NoError(t, err)
	assert.False(t, reopened.Completed)
	assert.Nil(t, reopened.CompletedAt)

	typ, payload := pub.last()
	assert.Equal(t, event.TypeTaskUpdated, typ)
	upd := payload.(event.TaskUpdated)
	assert.Equal(t, event.FieldChange{Old: true, New: false}, upd.Changes["completed"])
}

func TestDeleteTask_Idempotent(t *testing.T) {
	svc, repo, pub, _ := newTestService()
	ctx := context.Background()
	due := time.Date(2026, 1, 7, 10, 0, 0, 0, time.UTC)

	task, err := svc.CreateTask(ctx, CreateTaskParams{
		OwnerID:   "u1",
		Title:     "short lived",
		DueAt:     &due,
		Reminders: []ReminderParams{{RemindBefore: "P1D", Channels: []string{"email"}}},
	})
	require.NoError(t, err)

	deleted, err := svc.DeleteTask(ctx, task.ID, "u1")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Empty(t, repo.reminders, "reminders cascade with the task")

	typ, _ := pub.last()
	assert.Equal(t, event.TypeTaskDeleted, typ)
	published := len(pub.types)

	deleted, err = svc.DeleteTask(ctx, task.ID, "u1")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Len(t, pub.types, published, "no second deleted event")
}
