package importer

import (
	"bufio"
	"io"
	"regexp"
	"strings"

	"github.com/harrisonrobin/planner/pkg/store"
)

var (
	orgHeading  = regexp.MustCompile(`^\*+\s+(TODO|DONE)\s+(?:\[#([A-C])\]\s*)?(.*?)(?:\s+:([\w@:]+):)?\s*$`)
	orgDeadline = regexp.MustCompile(`DEADLINE:\s*<(\d{4}-\d{2}-\d{2})(?:\s+[A-Za-z]{2,3})?(?:\s+(\d{1,2}:\d{2}))?[^>]*>`)
)

// ParseOrg reads TODO and DONE headings from an Org-mode document. A
// DEADLINE on the lines following a heading becomes its due date; headings
// without one are kept undated.
func ParseOrg(r io.Reader) ([]store.NewTask, error) {
	scanner := bufio.NewScanner(r)
	var (
		tasks   []store.NewTask
		current *store.NewTask
	)
	flush := func() {
		if current != nil && current.Name != "" {
			tasks = append(tasks, *current)
		}
		current = nil
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if strings.HasPrefix(line, "*") {
			flush()
			m := orgHeading.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			current = &store.NewTask{
				Name:      strings.TrimSpace(m[3]),
				Completed: m[1] == "DONE",
				Priority:  orgPriority(m[2]),
			}
			if m[4] != "" {
				current.Category = categoryFromTags(strings.Split(m[4], ":"))
			}
			continue
		}

		if current == nil {
			continue
		}
		if m := orgDeadline.FindStringSubmatch(line); m != nil {
			current.DueDate = m[1]
			current.Time = padClock(m[2])
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

func orgPriority(p string) int {
	switch p {
	case "A":
		return 3
	case "B":
		return 2
	case "C":
		return 1
	}
	return 0
}

// padClock turns 9:30 into 09:30.
func padClock(c string) string {
	if len(c) == 4 {
		return "0" + c
	}
	return c
}
