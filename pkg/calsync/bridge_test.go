package calsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/planner/pkg/auth"
	"github.com/harrisonrobin/planner/pkg/metrics"
	"github.com/harrisonrobin/planner/pkg/model"
)

type fakeSession bool

func (s fakeSession) SignedIn() bool { return bool(s) }

type fakeRemote struct {
	mu       sync.Mutex
	inserted []*calendar.Event
	updated  map[string]*calendar.Event
	deleted  []string
	listed   []time.Time
	events   []*calendar.Event
	failFor  map[string]bool // summaries whose insert fails
	err      error
	next     int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{updated: map[string]*calendar.Event{}, failFor: map[string]bool{}}
}

func (r *fakeRemote) Insert(_ context.Context, e *calendar.Event) (*calendar.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil || r.failFor[e.Summary] {
		return nil, errors.New("backend error")
	}
	r.next++
	r.inserted = append(r.inserted, e)
	out := *e
	out.Id = fmt.Sprintf("evt-%d", r.next)
	return &out, nil
}

func (r *fakeRemote) Update(_ context.Context, id string, e *calendar.Event) (*calendar.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.updated[id] = e
	return e, nil
}

func (r *fakeRemote) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *fakeRemote) List(_ context.Context, from, to time.Time) ([]*calendar.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listed = append(r.listed, from, to)
	return r.events, r.err
}

// fakeFinder is a remote that also searches by extended property.
type fakeFinder struct {
	*fakeRemote
	found   *calendar.Event
	findErr error
	queries []string
}

func (f *fakeFinder) FindByProperty(_ context.Context, key, value string) (*calendar.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, key+"="+value)
	return f.found, f.findErr
}

type fakeLinker struct {
	mu    sync.Mutex
	tasks map[int64]model.Task
	links map[int64]string
	err   error
}

func newFakeLinker(tasks ...model.Task) *fakeLinker {
	l := &fakeLinker{tasks: map[int64]model.Task{}, links: map[int64]string{}}
	for _, t := range tasks {
		l.tasks[t.ID] = t
	}
	return l
}

func (l *fakeLinker) Get(_ model.Domain, id int64) (model.Task, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.tasks[id]
	return t, ok
}

func (l *fakeLinker) LinkEvent(_ model.Domain, id int64, eventID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.links[id] = eventID
	if l.err != nil {
		return l.err
	}
	t := l.tasks[id]
	t.GcalEventID = eventID
	l.tasks[id] = t
	return nil
}

func newBridge(t *testing.T, remote Remote, signedIn bool, opts ...Option) *Bridge {
	t.Helper()
	mapper, err := NewMapper("UTC", nil)
	require.NoError(t, err)
	return New(remote, fakeSession(signedIn), mapper, opts...)
}

func TestCreateRemoteRequiresSignIn(t *testing.T) {
	remote := newFakeRemote()
	b := newBridge(t, remote, false)

	_, err := b.CreateRemote(context.Background(), model.Task{ID: 1, Name: "x", DueDate: "2024-03-10"})
	assert.ErrorIs(t, err, auth.ErrNotAuthenticated)
	assert.Empty(t, remote.inserted)
}

func TestCreateRemoteSkipsUndatedAndSynced(t *testing.T) {
	remote := newFakeRemote()
	b := newBridge(t, remote, true)
	ctx := context.Background()

	res, err := b.CreateRemote(ctx, model.Task{ID: 1, Name: "undated"})
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	res, err = b.CreateRemote(ctx, model.Task{ID: 2, Name: "synced", DueDate: "2024-03-10", GcalEventID: "evt-9"})
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, "evt-9", res.EventID)

	assert.Empty(t, remote.inserted)
}

func TestCreateRemote(t *testing.T) {
	remote := newFakeRemote()
	b := newBridge(t, remote, true)

	res, err := b.CreateRemote(context.Background(), model.Task{ID: 7, Name: "essay", DueDate: "2024-03-10", Category: "courses", Notes: "draft"})
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, "evt-1", res.EventID)

	require.Len(t, remote.inserted, 1)
	ev := remote.inserted[0]
	assert.Equal(t, "essay", ev.Summary)
	assert.Equal(t, "draft", ev.Description)
	assert.Equal(t, "1", ev.ColorId)
	assert.Equal(t, "7", ev.ExtendedProperties.Private[TaskIDProperty])
}

func TestCreateRemoteFailure(t *testing.T) {
	remote := newFakeRemote()
	remote.err = errors.New("quota")
	b := newBridge(t, remote, true)

	_, err := b.CreateRemote(context.Background(), model.Task{ID: 3, Name: "a", DueDate: "2024-03-10"})
	var rerr *RemoteSyncError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "create", rerr.Op)
	assert.Equal(t, int64(3), rerr.TaskID)
}

func TestSyncAllMixedSet(t *testing.T) {
	remote := newFakeRemote()
	b := newBridge(t, remote, true)
	tasks := []model.Task{
		{ID: 1, Name: "A", Domain: model.DomainResearch},
		{ID: 2, Name: "B", DueDate: "2024-03-10", Domain: model.DomainResearch},
		{ID: 3, Name: "C", DueDate: "2024-03-10", GcalEventID: "evt-existing", Domain: model.DomainResearch},
	}
	link := newFakeLinker(tasks...)
	n, err := b.SyncAll(context.Background(), tasks, link)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, remote.inserted, 1)
	assert.Equal(t, "B", remote.inserted[0].Summary)
	assert.Equal(t, map[int64]string{2: "evt-1"}, link.links)
}

func TestSyncAllSkipsCompletedAndCountsOnlySuccesses(t *testing.T) {
	remote := newFakeRemote()
	remote.failFor["broken"] = true
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	b := newBridge(t, remote, true, WithConcurrency(2), WithMetrics(m))

	var tasks []model.Task
	for i := 1; i <= 5; i++ {
		tasks = append(tasks, model.Task{ID: int64(i), Name: fmt.Sprintf("t%d", i), DueDate: "2024-03-1" + fmt.Sprint(i)})
	}
	tasks = append(tasks,
		model.Task{ID: 10, Name: "done", DueDate: "2024-03-10", Completed: true},
		model.Task{ID: 11, Name: "broken", DueDate: "2024-03-10"},
	)

	link := newFakeLinker(tasks...)
	n, err := b.SyncAll(context.Background(), tasks, link)
	assert.Equal(t, 5, n)
	var rerr *RemoteSyncError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, int64(11), rerr.TaskID)
	assert.Len(t, link.links, 5)
	assert.NotContains(t, link.links, int64(10))

	expected := `
# HELP planner_calendar_sync_all_created_total Events created by sync passes.
# TYPE planner_calendar_sync_all_created_total counter
planner_calendar_sync_all_created_total 5
`
	require.NoError(t, testutil.GatherAndCompare(reg, stringsReader(expected), "planner_calendar_sync_all_created_total"))
}

func TestSyncAllLinkFailureStillCounts(t *testing.T) {
	remote := newFakeRemote()
	b := newBridge(t, remote, true)
	tasks := []model.Task{{ID: 1, Name: "x", DueDate: "2024-03-10"}}
	link := newFakeLinker(tasks...)
	link.err = errors.New("disk full")

	n, err := b.SyncAll(context.Background(), tasks, link)
	assert.Equal(t, 1, n)
	assert.EqualError(t, err, "disk full")
}

func TestSyncAllSignedOut(t *testing.T) {
	b := newBridge(t, newFakeRemote(), false)
	n, err := b.SyncAll(context.Background(), []model.Task{{ID: 1, Name: "x", DueDate: "2024-03-10"}}, newFakeLinker())
	assert.Zero(t, n)
	assert.ErrorIs(t, err, auth.ErrNotAuthenticated)
}

func TestSyncAllRereadsTasksBeforeCreating(t *testing.T) {
	remote := newFakeRemote()
	b := newBridge(t, remote, true)

	stale := []model.Task{
		{ID: 1, Name: "linked meanwhile", DueDate: "2024-03-10"},
		{ID: 2, Name: "deleted meanwhile", DueDate: "2024-03-10"},
		{ID: 3, Name: "completed meanwhile", DueDate: "2024-03-10"},
		{ID: 4, Name: "still pending", DueDate: "2024-03-10"},
	}
	link := newFakeLinker(
		model.Task{ID: 1, Name: "linked meanwhile", DueDate: "2024-03-10", GcalEventID: "evt-other"},
		model.Task{ID: 3, Name: "completed meanwhile", DueDate: "2024-03-10", Completed: true},
		model.Task{ID: 4, Name: "still pending", DueDate: "2024-03-10"},
	)

	n, err := b.SyncAll(context.Background(), stale, link)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, remote.inserted, 1)
	assert.Equal(t, "still pending", remote.inserted[0].Summary)
}

func TestCreateRemoteAdoptsTaggedEvent(t *testing.T) {
	finder := &fakeFinder{fakeRemote: newFakeRemote()}
	finder.found = &calendar.Event{
		Id:      "evt-orphan",
		Summary: "old name",
		Start:   &calendar.EventDateTime{Date: "2024-03-10"},
		End:     &calendar.EventDateTime{Date: "2024-03-11"},
	}
	b := newBridge(t, finder, true)

	res, err := b.CreateRemote(context.Background(), model.Task{ID: 7, Name: "essay", DueDate: "2024-03-10"})
	require.NoError(t, err)
	assert.Equal(t, CreateResult{EventID: "evt-orphan", Adopted: true}, res)
	assert.Equal(t, []string{TaskIDProperty + "=7"}, finder.queries)
	assert.Empty(t, finder.inserted)
	require.Contains(t, finder.updated, "evt-orphan")
	assert.Equal(t, "essay", finder.updated["evt-orphan"].Summary)
}

func TestCreateRemoteInsertsWhenNothingTagged(t *testing.T) {
	finder := &fakeFinder{fakeRemote: newFakeRemote()}
	b := newBridge(t, finder, true)

	res, err := b.CreateRemote(context.Background(), model.Task{ID: 7, Name: "essay", DueDate: "2024-03-10"})
	require.NoError(t, err)
	assert.Equal(t, CreateResult{EventID: "evt-1"}, res)
	assert.Len(t, finder.inserted, 1)

	finder.findErr = errors.New("rate limited")
	_, err = b.CreateRemote(context.Background(), model.Task{ID: 8, Name: "lab", DueDate: "2024-03-10"})
	var rerr *RemoteSyncError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, int64(8), rerr.TaskID)
	assert.Len(t, finder.inserted, 1)
}

func TestUpdateRemote(t *testing.T) {
	remote := newFakeRemote()
	b := newBridge(t, remote, true)
	ctx := context.Background()

	require.NoError(t, b.UpdateRemote(ctx, model.Task{ID: 1, Name: "unsynced", DueDate: "2024-03-10"}))
	assert.Empty(t, remote.updated)

	require.NoError(t, b.UpdateRemote(ctx, model.Task{ID: 2, Name: "renamed", DueDate: "2024-03-10", GcalEventID: "evt-2"}))
	require.Contains(t, remote.updated, "evt-2")
	assert.Equal(t, "renamed", remote.updated["evt-2"].Summary)

	err := b.UpdateRemote(ctx, model.Task{ID: 3, Name: "undated", GcalEventID: "evt-3"})
	assert.ErrorIs(t, err, ErrNoDueDate)
}

func TestDeleteRemote(t *testing.T) {
	remote := newFakeRemote()
	b := newBridge(t, remote, true)
	ctx := context.Background()

	require.NoError(t, b.DeleteRemote(ctx, ""))
	require.NoError(t, b.DeleteRemote(ctx, "evt-1"))
	assert.Equal(t, []string{"evt-1"}, remote.deleted)

	remote.err = errors.New("gone")
	err := b.DeleteRemote(ctx, "evt-2")
	var rerr *RemoteSyncError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "evt-2", rerr.EventID)

	signedOut := newBridge(t, remote, false)
	assert.ErrorIs(t, signedOut.DeleteRemote(ctx, "evt-3"), auth.ErrNotAuthenticated)
}

func TestImportRemote(t *testing.T) {
	remote := newFakeRemote()
	remote.events = []*calendar.Event{
		{
			Id:      "evt-1",
			Summary: "essay",
			Start:   &calendar.EventDateTime{Date: "2024-03-10"},
			End:     &calendar.EventDateTime{Date: "2024-03-11"},
			ExtendedProperties: &calendar.EventExtendedProperties{
				Private: map[string]string{TaskIDProperty: "42"},
			},
		},
		{
			Id:      "evt-2",
			Summary: "dentist",
			Start:   &calendar.EventDateTime{DateTime: "2024-03-12T09:00:00Z"},
			End:     &calendar.EventDateTime{DateTime: "2024-03-12T10:00:00Z"},
		},
	}
	now := time.Date(2024, 3, 9, 8, 0, 0, 0, time.UTC)
	b := newBridge(t, remote, true, WithClock(func() time.Time { return now }))

	events, err := b.ImportRemote(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, now, remote.listed[0])
	assert.True(t, remote.listed[1].IsZero())

	assert.Equal(t, int64(42), events[0].TaskID)
	assert.True(t, events[0].AllDay)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), events[0].Start)

	assert.Zero(t, events[1].TaskID)
	assert.False(t, events[1].AllDay)
	assert.Equal(t, time.Hour, events[1].End.Sub(events[1].Start))
}

func TestNeedsUpdate(t *testing.T) {
	b := newBridge(t, newFakeRemote(), true)
	base := model.Task{ID: 1, Name: "essay", DueDate: "2024-03-10", Category: "courses", GcalEventID: "evt"}

	same := base
	same.Priority = 3
	assert.False(t, b.NeedsUpdate(base, same), "priority is not mirrored")

	moved := base
	moved.Time = "09:00"
	assert.True(t, b.NeedsUpdate(base, moved))

	recolored := base
	recolored.Category = "work"
	assert.True(t, b.NeedsUpdate(base, recolored))

	undated := base
	undated.DueDate = ""
	assert.True(t, b.NeedsUpdate(base, undated))
}
