package store

import (
	"strings"

	"github.com/harrisonrobin/planner/pkg/jobapps"
	"github.com/harrisonrobin/planner/pkg/model"
)

// AddContainer creates a Course or WorkRole. New containers start expanded.
func (s *Store) AddContainer(kind model.ContainerKind, name string) (model.Container, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Container{}, &model.ValidationError{Field: "name", Reason: "must not be empty"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := model.Container{ID: s.newID(), Name: name, Expanded: true}
	cs := s.containers(kind)
	*cs = append(*cs, c)
	return c, s.save("add " + kind.String())
}

// AddCourse is AddContainer for courses.
func (s *Store) AddCourse(name string) (model.Container, error) {
	return s.AddContainer(model.KindCourse, name)
}

// AddWorkRole is AddContainer for work roles.
func (s *Store) AddWorkRole(name string) (model.Container, error) {
	return s.AddContainer(model.KindWorkRole, name)
}

// DeleteContainer removes a container and every task it owns. Tasks owned
// by other containers are left alone. The removed tasks are returned so
// their calendar events can be cleaned up.
func (s *Store) DeleteContainer(kind model.ContainerKind, id int64) ([]model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs := s.containers(kind)
	found := false
	if i := containerIndex(*cs, id); i >= 0 {
		*cs = append((*cs)[:i], (*cs)[i+1:]...)
		found = true
	}

	tasks := s.collection(kind.Domain())
	var removed []model.Task
	kept := (*tasks)[:0]
	for _, t := range *tasks {
		if t.ParentID() == id {
			removed = append(removed, t)
			continue
		}
		kept = append(kept, t)
	}
	*tasks = kept

	if !found && len(removed) == 0 {
		return nil, nil
	}
	return removed, s.save("delete " + kind.String())
}

// ToggleExpanded flips the display flag of a container. It reports false
// when the container does not exist.
func (s *Store) ToggleExpanded(kind model.ContainerKind, id int64) (model.Container, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs := *s.containers(kind)
	i := containerIndex(cs, id)
	if i < 0 {
		return model.Container{}, false, nil
	}
	cs[i].Expanded = !cs[i].Expanded
	return cs[i], true, s.save("toggle " + kind.String())
}

// Containers returns a copy of the containers of kind.
func (s *Store) Containers(kind model.ContainerKind) []model.Container {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Container(nil), *s.containers(kind)...)
}

// JobApps returns the counter state, applying (and persisting) the daily
// reset first.
func (s *Store) JobApps() (jobapps.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data.State.Refresh(s.today()) {
		return s.data.State, s.save("jobapps refresh")
	}
	return s.data.State, nil
}

// IncrementJobApps counts one application; the count never exceeds
// jobapps.DailyGoal.
func (s *Store) IncrementJobApps() (jobapps.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data.State.Increment(s.today()) {
		return s.data.State, s.save("jobapps increment")
	}
	return s.data.State, nil
}

// ResetJobApps zeroes the counter for today.
func (s *Store) ResetJobApps() (jobapps.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.State.Reset(s.today())
	return s.data.State, s.save("jobapps reset")
}
