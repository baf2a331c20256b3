// Package calsync mirrors dated tasks to a remote calendar. A task moves
// from unsynced to synced when its event is created, stays synced through
// updates, and its event is removed when the task is deleted. Remote
// failures are reported to the caller but never change local state.
package calsync

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/planner/pkg/auth"
	"github.com/harrisonrobin/planner/pkg/logging"
	"github.com/harrisonrobin/planner/pkg/metrics"
	"github.com/harrisonrobin/planner/pkg/model"
)

// DefaultConcurrency bounds the creates a sync pass runs at once.
const DefaultConcurrency = 4

// Remote is the calendar transport, implemented by *google.CalendarClient.
type Remote interface {
	Insert(ctx context.Context, event *calendar.Event) (*calendar.Event, error)
	Update(ctx context.Context, eventID string, event *calendar.Event) (*calendar.Event, error)
	Delete(ctx context.Context, eventID string) error
	List(ctx context.Context, from, to time.Time) ([]*calendar.Event, error)
}

// Finder is implemented by remotes that can look an event up by one of its
// private extended properties. When the remote is a Finder, CreateRemote
// adopts an event already tagged with the task's id instead of inserting a
// second one.
type Finder interface {
	FindByProperty(ctx context.Context, key, value string) (*calendar.Event, error)
}

// Session reports whether remote calls may be made.
type Session interface {
	SignedIn() bool
}

// Linker gives a sync pass the current state of a task and records the
// event id of a newly mirrored one. *store.Store implements it.
type Linker interface {
	Get(d model.Domain, id int64) (model.Task, bool)
	LinkEvent(d model.Domain, id int64, eventID string) error
}

// Bridge runs the remote side of task mirroring.
type Bridge struct {
	remote      Remote
	session     Session
	mapper      Mapper
	metrics     *metrics.Metrics
	logger      *slog.Logger
	concurrency int
	now         func() time.Time
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithMetrics records remote calls and sync passes in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bridge) { b.metrics = m }
}

// WithLogger sets the logger; the default slog logger is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) { b.logger = logger }
}

// WithConcurrency sets how many creates a sync pass runs in parallel.
func WithConcurrency(n int) Option {
	return func(b *Bridge) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithClock replaces time.Now, which ImportRemote uses as its default start.
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) { b.now = now }
}

// New returns a bridge mirroring through remote while session is signed in.
func New(remote Remote, session Session, mapper Mapper, opts ...Option) *Bridge {
	b := &Bridge{
		remote:      remote,
		session:     session,
		mapper:      mapper,
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = logging.OrDefault(b.logger)
	return b
}

// SignedIn reports whether remote operations are possible.
func (b *Bridge) SignedIn() bool {
	return b.session != nil && b.session.SignedIn()
}

// Mapper returns the task to event mapping in use.
func (b *Bridge) Mapper() Mapper {
	return b.mapper
}

// CreateResult is the outcome of CreateRemote. Skipped is set for tasks
// without a due date and for tasks that already have an event. Adopted is
// set when an existing event tagged with the task's id was reused.
type CreateResult struct {
	EventID string
	Skipped bool
	Adopted bool
}

// CreateRemote creates the event mirroring t. It fails fast with
// auth.ErrNotAuthenticated when signed out.
func (b *Bridge) CreateRemote(ctx context.Context, t model.Task) (CreateResult, error) {
	if !b.SignedIn() {
		return CreateResult{}, auth.ErrNotAuthenticated
	}
	if !t.HasDate() || t.Synced() {
		b.metrics.RecordSyncOperation("create", metrics.ResultSkipped, 0)
		return CreateResult{EventID: t.GcalEventID, Skipped: true}, nil
	}

	event, err := b.mapper.TaskToEvent(t)
	if err != nil {
		return CreateResult{}, &RemoteSyncError{Op: "create", TaskID: t.ID, Err: err}
	}

	if res, ok, err := b.adopt(ctx, t, event); err != nil || ok {
		return res, err
	}

	var created *calendar.Event
	err = b.call("create", func() (err error) {
		created, err = b.remote.Insert(ctx, event)
		return err
	})
	if err != nil {
		b.logger.Warn("failed to create calendar event", logging.TaskID(t.ID), logging.Err(err))
		return CreateResult{}, &RemoteSyncError{Op: "create", TaskID: t.ID, Err: err}
	}
	b.logger.Debug("created calendar event", logging.TaskID(t.ID), logging.EventID(created.Id))
	return CreateResult{EventID: created.Id}, nil
}

// adopt looks for an event a previous create left behind, e.g. when the
// event id could not be linked, and brings it up to date. ok is false when
// the remote cannot search or nothing was found.
func (b *Bridge) adopt(ctx context.Context, t model.Task, event *calendar.Event) (res CreateResult, ok bool, err error) {
	finder, isFinder := b.remote.(Finder)
	if !isFinder {
		return CreateResult{}, false, nil
	}

	var existing *calendar.Event
	err = b.call("find", func() (err error) {
		existing, err = finder.FindByProperty(ctx, TaskIDProperty, strconv.FormatInt(t.ID, 10))
		return err
	})
	if err != nil {
		b.logger.Warn("failed to look up calendar event", logging.TaskID(t.ID), logging.Err(err))
		return CreateResult{}, false, &RemoteSyncError{Op: "create", TaskID: t.ID, Err: err}
	}
	if existing == nil || existing.Id == "" {
		return CreateResult{}, false, nil
	}

	if EventNeedsUpdate(existing, event) != nil {
		err = b.call("update", func() error {
			_, err := b.remote.Update(ctx, existing.Id, event)
			return err
		})
		if err != nil {
			b.logger.Warn("failed to update adopted calendar event", logging.TaskID(t.ID), logging.EventID(existing.Id), logging.Err(err))
			return CreateResult{}, false, &RemoteSyncError{Op: "create", TaskID: t.ID, EventID: existing.Id, Err: err}
		}
	}
	b.logger.Debug("adopted calendar event", logging.TaskID(t.ID), logging.EventID(existing.Id))
	return CreateResult{EventID: existing.Id, Adopted: true}, true, nil
}

// UpdateRemote replaces the event of a synced task with the current
// mapping. Unsynced tasks are left alone.
func (b *Bridge) UpdateRemote(ctx context.Context, t model.Task) error {
	if !t.Synced() {
		return nil
	}
	if !b.SignedIn() {
		return auth.ErrNotAuthenticated
	}

	event, err := b.mapper.TaskToEvent(t)
	if err != nil {
		return &RemoteSyncError{Op: "update", TaskID: t.ID, EventID: t.GcalEventID, Err: err}
	}
	err = b.call("update", func() error {
		_, err := b.remote.Update(ctx, t.GcalEventID, event)
		return err
	})
	if err != nil {
		b.logger.Warn("failed to update calendar event", logging.TaskID(t.ID), logging.EventID(t.GcalEventID), logging.Err(err))
		return &RemoteSyncError{Op: "update", TaskID: t.ID, EventID: t.GcalEventID, Err: err}
	}
	return nil
}

// NeedsUpdate reports whether the event mapped from after differs from the
// one mapped from before.
func (b *Bridge) NeedsUpdate(before, after model.Task) bool {
	old, errOld := b.mapper.TaskToEvent(before)
	cur, errCur := b.mapper.TaskToEvent(after)
	if errOld != nil || errCur != nil {
		return errOld == nil || errCur == nil
	}
	return EventNeedsUpdate(old, cur) != nil
}

// DeleteRemote removes an event. Failures are logged and returned for
// status reporting only.
func (b *Bridge) DeleteRemote(ctx context.Context, eventID string) error {
	if eventID == "" {
		return nil
	}
	if !b.SignedIn() {
		return auth.ErrNotAuthenticated
	}
	err := b.call("delete", func() error {
		return b.remote.Delete(ctx, eventID)
	})
	if err != nil {
		b.logger.Warn("failed to delete calendar event", logging.EventID(eventID), logging.Err(err))
		return &RemoteSyncError{Op: "delete", EventID: eventID, Err: err}
	}
	return nil
}

// SyncAll creates events for every task that is dated, not completed and
// not yet synced, linking each new event id back through link. Each task is
// re-read from link right before its create, so a task linked since tasks
// was taken is skipped. It returns the number of events created or adopted
// and the joined per-task errors.
//
// SyncAll does not serialize passes; callers running passes concurrently
// must do so themselves.
func (b *Bridge) SyncAll(ctx context.Context, tasks []model.Task, link Linker) (int, error) {
	if !b.SignedIn() {
		return 0, auth.ErrNotAuthenticated
	}
	logger := logging.WithOperation(b.logger, "sync")

	var (
		created atomic.Int64
		mu      sync.Mutex
		errs    []error
	)
	record := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(b.concurrency)
	for _, t := range tasks {
		if !pending(t) {
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				record(&RemoteSyncError{Op: "create", TaskID: t.ID, Err: ctx.Err()})
				return nil
			}
			cur, ok := link.Get(t.Domain, t.ID)
			if !ok || !pending(cur) {
				return nil
			}
			res, err := b.CreateRemote(ctx, cur)
			if err != nil {
				record(err)
				return nil
			}
			if res.Skipped {
				return nil
			}
			created.Add(1)
			if err := link.LinkEvent(t.Domain, t.ID, res.EventID); err != nil {
				logger.Warn("created event could not be linked", logging.TaskID(t.ID), logging.EventID(res.EventID), logging.Err(err))
				record(err)
			}
			return nil
		})
	}
	g.Wait()

	n := int(created.Load())
	b.metrics.RecordSyncAll(n)
	logger.Info("sync pass finished", "created", n, "failed", len(errs))
	return n, errors.Join(errs...)
}

// pending reports whether t still needs an event.
func pending(t model.Task) bool {
	return t.HasDate() && !t.Completed && !t.Synced()
}

// ImportRemote lists events between from and to. A zero from means now; a
// zero to leaves the range open.
func (b *Bridge) ImportRemote(ctx context.Context, from, to time.Time) ([]RemoteEvent, error) {
	if !b.SignedIn() {
		return nil, auth.ErrNotAuthenticated
	}
	if from.IsZero() {
		from = b.now()
	}

	var events []*calendar.Event
	err := b.call("list", func() (err error) {
		events, err = b.remote.List(ctx, from, to)
		return err
	})
	if err != nil {
		return nil, &RemoteSyncError{Op: "list", Err: err}
	}

	out := make([]RemoteEvent, 0, len(events))
	for _, e := range events {
		out = append(out, toRemoteEvent(e))
	}
	return out, nil
}

func (b *Bridge) call(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	b.metrics.RecordSyncOperation(op, metrics.Result(err), time.Since(start))
	return err
}
