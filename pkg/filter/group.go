package filter

import "github.com/harrisonrobin/planner/pkg/model"

const (
	// MainSubgroup holds course tasks without a subcategory.
	MainSubgroup = "_main"
	// OtherGroup collects tasks whose category is not in the order table.
	OtherGroup = "other"
)

// DefaultOrder is the category display order of the grouped view.
var DefaultOrder = []string{
	model.CategoryCourses,
	model.CategoryWork,
	model.CategoryCareer,
	model.CategoryResearch,
	model.CategoryFun,
}

// Subgroup is a subcategory bucket inside the courses group.
type Subgroup struct {
	Name  string       `json:"name"`
	Tasks []model.Task `json:"tasks"`
}

// Group is one category of the grouped view. Only the courses group has
// subgroups; its Tasks holds every course task in display order.
type Group struct {
	Category  string       `json:"category"`
	Tasks     []model.Task `json:"tasks"`
	Subgroups []Subgroup   `json:"subgroups,omitempty"`
}

// Grouper partitions tasks by category following Order. A nil Order means
// DefaultOrder.
type Grouper struct {
	Order []string
}

// Group sorts tasks and partitions them by category. Empty categories are
// left out. Tasks with a category missing from the order end up in a
// trailing "other" group instead of being dropped.
func (g Grouper) Group(tasks []model.Task) []Group {
	order := g.Order
	if order == nil {
		order = DefaultOrder
	}

	sorted := append([]model.Task(nil), tasks...)
	Sort(sorted)

	known := make(map[string]int, len(order))
	buckets := make([][]model.Task, len(order)+1)
	for i, c := range order {
		known[c] = i
	}
	for _, t := range sorted {
		i, ok := known[t.Category]
		if !ok {
			i = len(order)
		}
		buckets[i] = append(buckets[i], t)
	}

	var groups []Group
	for i, c := range order {
		if len(buckets[i]) == 0 {
			continue
		}
		grp := Group{Category: c, Tasks: buckets[i]}
		if c == model.CategoryCourses {
			grp.Subgroups = subgroups(buckets[i])
		}
		groups = append(groups, grp)
	}
	if rest := buckets[len(order)]; len(rest) > 0 {
		groups = append(groups, Group{Category: OtherGroup, Tasks: rest})
	}
	return groups
}

// subgroups splits sorted course tasks by subcategory. The main bucket
// comes first, the rest in order of first appearance.
func subgroups(tasks []model.Task) []Subgroup {
	index := map[string]int{}
	subs := []Subgroup{{Name: MainSubgroup}}
	index[MainSubgroup] = 0
	for _, t := range tasks {
		name := t.Subcategory
		if name == "" {
			name = MainSubgroup
		}
		i, ok := index[name]
		if !ok {
			i = len(subs)
			index[name] = i
			subs = append(subs, Subgroup{Name: name})
		}
		subs[i].Tasks = append(subs[i].Tasks, t)
	}
	if len(subs[0].Tasks) == 0 {
		subs = subs[1:]
	}
	return subs
}
