// Package store holds the planner's task collections, containers and the
// job-application counter, and persists the whole snapshot after every
// mutation.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/harrisonrobin/planner/pkg/jobapps"
	"github.com/harrisonrobin/planner/pkg/kv"
	"github.com/harrisonrobin/planner/pkg/logging"
	"github.com/harrisonrobin/planner/pkg/model"
)

// DefaultKey is the key the snapshot is stored under.
const DefaultKey = "plannerData"

// Snapshot is the persisted shape of the planner.
type Snapshot struct {
	Courses         []model.Container `json:"courses"`
	WorkRoles       []model.Container `json:"workRoles"`
	CourseTasks     []model.Task      `json:"courseTasks"`
	WorkTasks       []model.Task      `json:"workTasks"`
	ResearchTasks   []model.Task      `json:"researchTasks"`
	SocialTasks     []model.Task      `json:"socialTasks"`
	InternshipTasks []model.Task      `json:"internshipTasks"`
	jobapps.State
}

func emptySnapshot(today string) Snapshot {
	return Snapshot{
		Courses:         []model.Container{},
		WorkRoles:       []model.Container{},
		CourseTasks:     []model.Task{},
		WorkTasks:       []model.Task{},
		ResearchTasks:   []model.Task{},
		SocialTasks:     []model.Task{},
		InternshipTasks: []model.Task{},
		State:           jobapps.State{LastResetDate: today},
	}
}

// Store is the planner's single source of truth. It is safe for concurrent
// use.
type Store struct {
	mu     sync.Mutex
	kv     kv.Store
	key    string
	now    func() time.Time
	logger *slog.Logger
	data   Snapshot
	lastID int64
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now, used for ids and the job-app day boundary.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used to report failed writes.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// Open loads the snapshot stored under key. An absent or malformed blob
// yields an empty planner.
func Open(backend kv.Store, key string, opts ...Option) (*Store, error) {
	if key == "" {
		key = DefaultKey
	}
	s := &Store{kv: backend, key: key, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDefault(s.logger)
	s.data = emptySnapshot(s.today())

	raw, err := backend.Get(key)
	switch {
	case errors.Is(err, kv.ErrNotFound):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load planner state: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		s.logger.Warn("discarding malformed planner state", logging.Err(err))
		return s, nil
	}
	s.data = snap
	s.normalize()
	return s, nil
}

// normalize fills nil collections, restores each task's domain and
// recovers the id high-water mark.
func (s *Store) normalize() {
	if s.data.Courses == nil {
		s.data.Courses = []model.Container{}
	}
	if s.data.WorkRoles == nil {
		s.data.WorkRoles = []model.Container{}
	}
	for _, d := range model.Domains {
		tasks := s.collection(d)
		if *tasks == nil {
			*tasks = []model.Task{}
		}
		for i := range *tasks {
			(*tasks)[i].Domain = d
			s.lastID = max(s.lastID, (*tasks)[i].ID)
		}
	}
	for _, c := range s.data.Courses {
		s.lastID = max(s.lastID, c.ID)
	}
	for _, c := range s.data.WorkRoles {
		s.lastID = max(s.lastID, c.ID)
	}
}

func (s *Store) today() string {
	return s.now().Format(model.DateLayout)
}

func (s *Store) collection(d model.Domain) *[]model.Task {
	switch d {
	case model.DomainCourses:
		return &s.data.CourseTasks
	case model.DomainWork:
		return &s.data.WorkTasks
	case model.DomainResearch:
		return &s.data.ResearchTasks
	case model.DomainSocial:
		return &s.data.SocialTasks
	case model.DomainInternship:
		return &s.data.InternshipTasks
	}
	panic(fmt.Sprintf("store: unknown domain %d", int(d)))
}

func (s *Store) containers(k model.ContainerKind) *[]model.Container {
	switch k {
	case model.KindCourse:
		return &s.data.Courses
	case model.KindWorkRole:
		return &s.data.WorkRoles
	}
	panic(fmt.Sprintf("store: unknown container kind %d", int(k)))
}

// newID returns the creation timestamp in milliseconds, bumped past the
// last issued id when two creations share a millisecond.
func (s *Store) newID() int64 {
	id := s.now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

// save writes the full snapshot. Callers hold s.mu.
func (s *Store) save(op string) error {
	b, err := json.Marshal(s.data)
	if err == nil {
		err = s.kv.Put(s.key, b)
	}
	if err != nil {
		s.logger.Warn("failed to persist planner state", logging.Operation(op), logging.Err(err))
		return &PersistenceError{Op: op, Err: err}
	}
	return nil
}

func indexOf(tasks []model.Task, id int64) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func containerIndex(cs []model.Container, id int64) int {
	for i := range cs {
		if cs[i].ID == id {
			return i
		}
	}
	return -1
}

// NewTask carries the user-supplied fields of a task being created.
// ParentID names the owning Course or WorkRole for container domains.
type NewTask struct {
	Name        string `json:"name"`
	DueDate     string `json:"dueDate,omitempty"`
	Time        string `json:"time,omitempty"`
	Category    string `json:"category,omitempty"`
	Subcategory string `json:"subcategory,omitempty"`
	Type        string `json:"type,omitempty"`
	Priority    int    `json:"priority,omitempty"`
	Notes       string `json:"notes,omitempty"`
	Completed   bool   `json:"completed,omitempty"`
	ParentID    int64  `json:"parentId,omitempty"`
}

// Create validates fields, assigns an id and appends the task to d. A
// *PersistenceError is returned together with the created task when only
// the write failed.
func (s *Store) Create(d model.Domain, fields NewTask) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := model.Task{
		Name:        strings.TrimSpace(fields.Name),
		DueDate:     fields.DueDate,
		Time:        fields.Time,
		Category:    fields.Category,
		Subcategory: fields.Subcategory,
		Type:        fields.Type,
		Priority:    fields.Priority,
		Notes:       strings.TrimSpace(fields.Notes),
		Completed:   fields.Completed,
		Domain:      d,
	}
	if t.Category == "" {
		t.Category = d.DefaultCategory()
	}

	kind, owned := d.Container()
	switch {
	case owned:
		if containerIndex(*s.containers(kind), fields.ParentID) < 0 {
			return model.Task{}, &model.ValidationError{Field: "parentId", Reason: fmt.Sprintf("no %s with id %d", kind, fields.ParentID)}
		}
		if kind == model.KindCourse {
			t.CourseID = fields.ParentID
		} else {
			t.WorkID = fields.ParentID
		}
	case fields.ParentID != 0:
		return model.Task{}, &model.ValidationError{Field: "parentId", Reason: fmt.Sprintf("%s tasks have no container", d)}
	}

	if err := t.Validate(); err != nil {
		return model.Task{}, err
	}

	t.ID = s.newID()
	tasks := s.collection(d)
	*tasks = append(*tasks, t)
	return t, s.save("create")
}

// Delete removes a task and returns it, or nil if no task has that id.
func (s *Store) Delete(d model.Domain, id int64) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := s.collection(d)
	i := indexOf(*tasks, id)
	if i < 0 {
		return nil, nil
	}
	removed := (*tasks)[i]
	*tasks = append((*tasks)[:i], (*tasks)[i+1:]...)
	return &removed, s.save("delete")
}

// ToggleCompleted flips the completed flag. It reports false, without
// error, when the task does not exist.
func (s *Store) ToggleCompleted(d model.Domain, id int64) (model.Task, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := *s.collection(d)
	i := indexOf(tasks, id)
	if i < 0 {
		return model.Task{}, false, nil
	}
	tasks[i].Completed = !tasks[i].Completed
	return tasks[i], true, s.save("toggle")
}

// Patch lists the fields to change on Update; nil fields are left alone.
type Patch struct {
	Name        *string `json:"name,omitempty"`
	DueDate     *string `json:"dueDate,omitempty"`
	Time        *string `json:"time,omitempty"`
	Category    *string `json:"category,omitempty"`
	Subcategory *string `json:"subcategory,omitempty"`
	Type        *string `json:"type,omitempty"`
	Priority    *int    `json:"priority,omitempty"`
	Notes       *string `json:"notes,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
	GcalEventID *string `json:"gcalEventId,omitempty"`
}

// apply merges p into t. Clearing the due date clears the time with it
// unless the patch sets a time too.
func (p Patch) apply(t *model.Task) {
	if p.Name != nil {
		t.Name = strings.TrimSpace(*p.Name)
	}
	if p.DueDate != nil {
		t.DueDate = *p.DueDate
		if t.DueDate == "" && p.Time == nil {
			t.Time = ""
		}
	}
	if p.Time != nil {
		t.Time = *p.Time
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Subcategory != nil {
		t.Subcategory = *p.Subcategory
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Notes != nil {
		t.Notes = strings.TrimSpace(*p.Notes)
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.GcalEventID != nil {
		t.GcalEventID = *p.GcalEventID
	}
}

// Update merges p into the task and returns the updated value.
func (s *Store) Update(d model.Domain, id int64, p Patch) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := *s.collection(d)
	i := indexOf(tasks, id)
	if i < 0 {
		return model.Task{}, fmt.Errorf("%s task %d: %w", d, id, ErrNotFound)
	}
	updated := tasks[i]
	p.apply(&updated)
	if err := updated.Validate(); err != nil {
		return model.Task{}, err
	}
	tasks[i] = updated
	return updated, s.save("update")
}

// LinkEvent attaches the remote calendar correlation id to a task.
func (s *Store) LinkEvent(d model.Domain, id int64, eventID string) error {
	_, err := s.Update(d, id, Patch{GcalEventID: &eventID})
	return err
}

// Tasks returns a copy of the tasks of d in insertion order.
func (s *Store) Tasks(d model.Domain) []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Task(nil), *s.collection(d)...)
}

// AllTasks returns every task across domains, in domain order.
func (s *Store) AllTasks() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []model.Task
	for _, d := range model.Domains {
		all = append(all, *s.collection(d)...)
	}
	return all
}

// Get returns the task of d with the given id.
func (s *Store) Get(d model.Domain, id int64) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := *s.collection(d)
	if i := indexOf(tasks, id); i >= 0 {
		return tasks[i], true
	}
	return model.Task{}, false
}

// Find looks a task up by id across all domains.
func (s *Store) Find(id int64) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range model.Domains {
		tasks := *s.collection(d)
		if i := indexOf(tasks, id); i >= 0 {
			return tasks[i], true
		}
	}
	return model.Task{}, false
}

// Snapshot returns a copy of the full state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.data
	snap.Courses = append([]model.Container{}, s.data.Courses...)
	snap.WorkRoles = append([]model.Container{}, s.data.WorkRoles...)
	snap.CourseTasks = append([]model.Task{}, s.data.CourseTasks...)
	snap.WorkTasks = append([]model.Task{}, s.data.WorkTasks...)
	snap.ResearchTasks = append([]model.Task{}, s.data.ResearchTasks...)
	snap.SocialTasks = append([]model.Task{}, s.data.SocialTasks...)
	snap.InternshipTasks = append([]model.Task{}, s.data.InternshipTasks...)
	return snap
}
