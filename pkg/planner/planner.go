// Package planner ties the store, the derived views and calendar mirroring
// together. Every action changes local state first; the remote calendar is
// mirrored afterwards and its failures are reported, never rolled back.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/harrisonrobin/planner/pkg/auth"
	"github.com/harrisonrobin/planner/pkg/calsync"
	"github.com/harrisonrobin/planner/pkg/filter"
	"github.com/harrisonrobin/planner/pkg/jobapps"
	"github.com/harrisonrobin/planner/pkg/logging"
	"github.com/harrisonrobin/planner/pkg/model"
	"github.com/harrisonrobin/planner/pkg/store"
)

// Planner is the application service used by the CLI and the HTTP API.
type Planner struct {
	store   *store.Store
	bridge  *calsync.Bridge
	grouper filter.Grouper
	now     func() time.Time
	logger  *slog.Logger

	// mirrorMu serializes event creation so a task is never mirrored twice
	// by overlapping sync passes or a create racing a pass.
	mirrorMu sync.Mutex
}

// Option configures a Planner.
type Option func(*Planner)

// WithBridge enables calendar mirroring.
func WithBridge(b *calsync.Bridge) Option {
	return func(p *Planner) { p.bridge = b }
}

// WithCategoryOrder overrides the grouped view's category order.
func WithCategoryOrder(order []string) Option {
	return func(p *Planner) {
		if len(order) > 0 {
			p.grouper.Order = order
		}
	}
}

// WithClock replaces time.Now for the date-relative views.
func WithClock(now func() time.Time) Option {
	return func(p *Planner) { p.now = now }
}

// WithLogger sets the logger; the default slog logger is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Planner) { p.logger = logger }
}

// New returns a planner over st. Without WithBridge it works locally only.
func New(st *store.Store, opts ...Option) *Planner {
	p := &Planner{store: st, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.OrDefault(p.logger)
	return p
}

// Store exposes the underlying store for read-only callers.
func (p *Planner) Store() *store.Store {
	return p.store
}

// Outcome is the result of a task action. Task is the local state after
// the action. Remote holds the calendar mirroring failure, if any; it never
// means the local change was undone.
type Outcome struct {
	Task   model.Task
	Remote error
}

// mirroring reports whether remote calls should be attempted.
func (p *Planner) mirroring() bool {
	return p.bridge != nil && p.bridge.SignedIn()
}

// CreateTask stores a new task and, when signed in, mirrors it if it is
// dated and open. A *store.PersistenceError is returned together with the
// outcome when only the local write failed.
func (p *Planner) CreateTask(ctx context.Context, d model.Domain, fields store.NewTask) (Outcome, error) {
	t, err := p.store.Create(d, fields)
	if err != nil && !store.IsPersistence(err) {
		return Outcome{}, err
	}
	localErr := err
	out := Outcome{Task: t}
	p.logger.Info("task created", logging.Domain(d.String()), logging.TaskID(t.ID))

	if !p.mirroring() || !t.HasDate() || t.Completed {
		return out, localErr
	}

	p.mirrorMu.Lock()
	defer p.mirrorMu.Unlock()
	// a sync pass may have mirrored the task while we waited
	if cur, ok := p.store.Get(d, t.ID); ok {
		out.Task = cur
		if cur.Synced() {
			return out, localErr
		}
	}
	res, err := p.bridge.CreateRemote(ctx, out.Task)
	if err != nil {
		out.Remote = err
		return out, localErr
	}
	if !res.Skipped {
		if err := p.store.LinkEvent(d, t.ID, res.EventID); err != nil {
			localErr = errors.Join(localErr, err)
		}
		out.Task.GcalEventID = res.EventID
	}
	return out, localErr
}

// UpdateTask applies a patch. A synced task has its event replaced when
// the mirrored fields changed, or removed when it lost its due date.
func (p *Planner) UpdateTask(ctx context.Context, d model.Domain, id int64, patch store.Patch) (Outcome, error) {
	before, ok := p.store.Get(d, id)
	if !ok {
		return Outcome{}, fmt.Errorf("%s task %d: %w", d, id, store.ErrNotFound)
	}
	after, err := p.store.Update(d, id, patch)
	if err != nil && !store.IsPersistence(err) {
		return Outcome{}, err
	}
	localErr := err
	out := Outcome{Task: after}

	if !after.Synced() || !p.mirroring() {
		return out, localErr
	}
	switch {
	case !after.HasDate():
		out.Remote = p.bridge.DeleteRemote(ctx, after.GcalEventID)
		if out.Remote == nil {
			unlinked := ""
			out.Task, err = p.store.Update(d, id, store.Patch{GcalEventID: &unlinked})
			localErr = errors.Join(localErr, err)
		}
	case p.bridge.NeedsUpdate(before, after):
		out.Remote = p.bridge.UpdateRemote(ctx, after)
	}
	return out, localErr
}

// ToggleCompleted flips a task's completion. ok is false when the task
// does not exist.
func (p *Planner) ToggleCompleted(d model.Domain, id int64) (t model.Task, ok bool, err error) {
	return p.store.ToggleCompleted(d, id)
}

// DeleteTask removes a task locally, then deletes its event on a best
// effort basis. ok is false when the task does not exist.
func (p *Planner) DeleteTask(ctx context.Context, d model.Domain, id int64) (out Outcome, ok bool, err error) {
	removed, err := p.store.Delete(d, id)
	if removed == nil {
		return Outcome{}, false, err
	}
	out.Task = *removed
	if removed.Synced() && p.mirroring() {
		out.Remote = p.bridge.DeleteRemote(ctx, removed.GcalEventID)
	}
	return out, true, err
}

// ContainerOutcome is the result of deleting a container.
type ContainerOutcome struct {
	Removed []model.Task
	Remote  error
}

// DeleteContainer removes a course or work role with its tasks and cleans
// up the events of the removed synced tasks.
func (p *Planner) DeleteContainer(ctx context.Context, kind model.ContainerKind, id int64) (ContainerOutcome, error) {
	removed, err := p.store.DeleteContainer(kind, id)
	out := ContainerOutcome{Removed: removed}
	if !p.mirroring() {
		return out, err
	}
	var remoteErrs []error
	for _, t := range removed {
		if t.Synced() {
			remoteErrs = append(remoteErrs, p.bridge.DeleteRemote(ctx, t.GcalEventID))
		}
	}
	out.Remote = errors.Join(remoteErrs...)
	return out, err
}

// AddContainer creates a course or work role.
func (p *Planner) AddContainer(kind model.ContainerKind, name string) (model.Container, error) {
	return p.store.AddContainer(kind, name)
}

// ToggleExpanded flips whether a container shows its tasks.
func (p *Planner) ToggleExpanded(kind model.ContainerKind, id int64) (model.Container, bool, error) {
	return p.store.ToggleExpanded(kind, id)
}

// Containers lists the courses or work roles in creation order.
func (p *Planner) Containers(kind model.ContainerKind) []model.Container {
	return p.store.Containers(kind)
}

// SignedIn reports whether calendar mirroring is active.
func (p *Planner) SignedIn() bool {
	return p.mirroring()
}

// Sync runs a sync pass over every task. Passes run one at a time; a pass
// that waited on another sees the event ids it linked.
func (p *Planner) Sync(ctx context.Context) (int, error) {
	if p.bridge == nil {
		return 0, auth.ErrNotAuthenticated
	}
	p.mirrorMu.Lock()
	defer p.mirrorMu.Unlock()
	return p.bridge.SyncAll(ctx, p.store.AllTasks(), p.store)
}

// ImportEvents lists remote events in [from, to).
func (p *Planner) ImportEvents(ctx context.Context, from, to time.Time) ([]calsync.RemoteEvent, error) {
	if p.bridge == nil {
		return nil, auth.ErrNotAuthenticated
	}
	return p.bridge.ImportRemote(ctx, from, to)
}

// ImportTasks creates the given tasks in d and returns how many were
// created. Invalid entries are skipped and reported in the joined error.
func (p *Planner) ImportTasks(ctx context.Context, d model.Domain, tasks []store.NewTask) (int, error) {
	var (
		n    int
		errs []error
	)
	for i, fields := range tasks {
		out, err := p.CreateTask(ctx, d, fields)
		if err != nil && !store.IsPersistence(err) {
			errs = append(errs, fmt.Errorf("entry %d (%q): %w", i+1, fields.Name, err))
			continue
		}
		n++
		if err != nil {
			errs = append(errs, err)
		}
		if out.Remote != nil {
			errs = append(errs, out.Remote)
		}
	}
	return n, errors.Join(errs...)
}

func (p *Planner) today() string {
	return filter.Today(p.now())
}

// View returns every task matching mode and category, in display order.
func (p *Planner) View(mode filter.Mode, category string) []model.Task {
	return filter.Apply(p.store.AllTasks(), filter.Query{Mode: mode, Category: category, Today: p.today()})
}

// DomainView is View restricted to one domain.
func (p *Planner) DomainView(d model.Domain, mode filter.Mode, category string) []model.Task {
	return filter.Apply(p.store.Tasks(d), filter.Query{Mode: mode, Category: category, Today: p.today()})
}

// Grouped returns the tasks matching mode grouped by category.
func (p *Planner) Grouped(mode filter.Mode) []filter.Group {
	return p.grouper.Group(p.View(mode, ""))
}

// ContainerTasks returns the tasks owned by a container, in display
// order.
func (p *Planner) ContainerTasks(kind model.ContainerKind, id int64) []model.Task {
	var owned []model.Task
	for _, t := range p.store.Tasks(kind.Domain()) {
		if t.ParentID() == id {
			owned = append(owned, t)
		}
	}
	filter.Sort(owned)
	return owned
}

// Stats summarizes all tasks.
func (p *Planner) Stats() filter.Stats {
	return filter.Summarize(p.store.AllTasks(), p.today())
}

// JobApps returns the counter, reset first if the day has changed.
func (p *Planner) JobApps() (jobapps.State, error) {
	return p.store.JobApps()
}

// IncrementJobApps counts one application, up to the daily goal.
func (p *Planner) IncrementJobApps() (jobapps.State, error) {
	return p.store.IncrementJobApps()
}

// ResetJobApps zeroes the counter for today.
func (p *Planner) ResetJobApps() (jobapps.State, error) {
	return p.store.ResetJobApps()
}
