package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/planner/pkg/model"
)

const today = "2024-03-10"

func names(tasks []model.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Name)
	}
	return out
}

func sample() []model.Task {
	return []model.Task{
		{ID: 1, Name: "done today", DueDate: today, Completed: true, Category: "work"},
		{ID: 2, Name: "today low", DueDate: today, Priority: 1, Category: "work"},
		{ID: 3, Name: "tomorrow", DueDate: "2024-03-11", Category: "research"},
		{ID: 4, Name: "undated", Category: "fun"},
		{ID: 5, Name: "today high", DueDate: today, Priority: 3, Category: "courses"},
		{ID: 6, Name: "yesterday", DueDate: "2024-03-09", Category: "work"},
		{ID: 7, Name: "done later", DueDate: "2024-04-01", Completed: true, Category: "fun"},
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeAll, "ALL": ModeAll, "today": ModeToday, " upcoming ": ModeUpcoming, "completed": ModeCompleted} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseMode("overdue")
	assert.Error(t, err)
}

func TestModesRespectPredicates(t *testing.T) {
	tasks := sample()
	tests := []struct {
		mode Mode
		ok   func(model.Task) bool
		want []string
	}{
		{ModeToday, func(t model.Task) bool { return !t.Completed && t.DueDate == today }, []string{"today high", "today low"}},
		{ModeUpcoming, func(t model.Task) bool { return !t.Completed && t.DueDate > today }, []string{"tomorrow"}},
		{ModeCompleted, func(t model.Task) bool { return t.Completed }, []string{"done today", "done later"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			got := Apply(tasks, Query{Mode: tt.mode, Today: today})
			for _, task := range got {
				assert.True(t, tt.ok(task), task.Name)
			}
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestCategorySelector(t *testing.T) {
	got := Apply(sample(), Query{Mode: ModeAll, Category: "work", Today: today})
	assert.Equal(t, []string{"yesterday", "today low", "done today"}, names(got))

	all := Apply(sample(), Query{Mode: ModeAll, Category: AllCategories, Today: today})
	assert.Len(t, all, len(sample()))
}

func TestSortOrder(t *testing.T) {
	got := Apply(sample(), Query{Mode: ModeAll, Today: today})
	assert.Equal(t, []string{
		"yesterday",
		"today high",
		"today low",
		"tomorrow",
		"undated",
		"done today",
		"done later",
	}, names(got))
}

func TestSortIsStable(t *testing.T) {
	tasks := []model.Task{
		{ID: 1, Name: "a", DueDate: today, Priority: 2},
		{ID: 2, Name: "b", DueDate: today, Priority: 2},
		{ID: 3, Name: "c"},
		{ID: 4, Name: "d"},
		{ID: 5, Name: "e", DueDate: today, Priority: 2},
	}
	Sort(tasks)
	assert.Equal(t, []string{"a", "b", "e", "c", "d"}, names(tasks))
}

func TestApplyDoesNotModifyInput(t *testing.T) {
	tasks := sample()
	before := names(tasks)
	Apply(tasks, Query{Mode: ModeAll, Today: today})
	assert.Equal(t, before, names(tasks))
}

func TestGroup(t *testing.T) {
	tasks := []model.Task{
		{Name: "lab", Category: "courses", Subcategory: "chem", DueDate: "2024-03-12"},
		{Name: "lecture notes", Category: "courses"},
		{Name: "essay", Category: "courses", Subcategory: "english", DueDate: "2024-03-11"},
		{Name: "party", Category: "fun"},
		{Name: "gardening", Category: "hobby"},
		{Name: "shift", Category: "work", DueDate: today},
		{Name: "interview", Category: "career"},
	}

	groups := Grouper{}.Group(tasks)
	var cats []string
	for _, g := range groups {
		cats = append(cats, g.Category)
	}
	assert.Equal(t, []string{"courses", "work", "career", "fun", "other"}, cats)

	courses := groups[0]
	require.Len(t, courses.Subgroups, 3)
	assert.Equal(t, MainSubgroup, courses.Subgroups[0].Name)
	assert.Equal(t, []string{"lecture notes"}, names(courses.Subgroups[0].Tasks))
	assert.Equal(t, "english", courses.Subgroups[1].Name)
	assert.Equal(t, "chem", courses.Subgroups[2].Name)
	assert.Len(t, courses.Tasks, 3)

	assert.Empty(t, groups[1].Subgroups)
	assert.Equal(t, []string{"gardening"}, names(groups[4].Tasks))
}

func TestGroupCustomOrder(t *testing.T) {
	tasks := []model.Task{
		{Name: "a", Category: "fun"},
		{Name: "b", Category: "work"},
	}
	groups := Grouper{Order: []string{"fun"}}.Group(tasks)
	require.Len(t, groups, 2)
	assert.Equal(t, "fun", groups[0].Category)
	assert.Equal(t, OtherGroup, groups[1].Category)
}

func TestGroupWithoutMainBucket(t *testing.T) {
	groups := Grouper{}.Group([]model.Task{{Name: "quiz", Category: "courses", Subcategory: "math"}})
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Subgroups, 1)
	assert.Equal(t, "math", groups[0].Subgroups[0].Name)
}

func TestSummarize(t *testing.T) {
	s := Summarize(sample(), today)
	assert.Equal(t, Stats{Today: 2, Completed: 2, Total: 7}, s)
}

func TestToday(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	assert.Equal(t, "2024-03-09", Today(time.Date(2024, 3, 9, 23, 30, 0, 0, loc)))
}
