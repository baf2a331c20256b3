// Package colors maps planner categories to Google Calendar event color ids.
package colors

import (
	"maps"

	"github.com/harrisonrobin/planner/pkg/model"
)

// DefaultColorID is used for categories missing from the table.
const DefaultColorID = "1"

// defaults are the calendar palette ids, 1 to 11.
var defaults = map[string]string{
	model.CategoryCourses:  "1",  // lavender
	model.CategoryWork:     "11", // tomato
	model.CategoryCareer:   "3",  // grape
	model.CategoryResearch: "10", // basil
	model.CategoryFun:      "4",  // flamingo
}

// Table resolves a category to a color id.
type Table struct {
	ids map[string]string
}

// NewTable returns the default table with overrides applied. Overrides
// outside the 1..11 palette are ignored.
func NewTable(overrides map[string]string) *Table {
	ids := maps.Clone(defaults)
	for category, id := range overrides {
		if Valid(id) {
			ids[category] = id
		}
	}
	return &Table{ids: ids}
}

// Default is the table without overrides.
func Default() *Table {
	return NewTable(nil)
}

// ColorID returns the color id for category, or DefaultColorID.
func (t *Table) ColorID(category string) string {
	if t == nil {
		return Default().ColorID(category)
	}
	if id, ok := t.ids[category]; ok {
		return id
	}
	return DefaultColorID
}

// Valid reports whether id is one of the event palette ids.
func Valid(id string) bool {
	switch id {
	case "1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11":
		return true
	}
	return false
}
