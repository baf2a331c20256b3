package calsync

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/planner/pkg/colors"
	"github.com/harrisonrobin/planner/pkg/model"
)

// TaskIDProperty is the private extended property that ties an event back
// to the task it mirrors.
const TaskIDProperty = "planner_task_id"

// EventDuration is the length of timed events.
const EventDuration = time.Hour

// Mapper converts tasks to calendar events.
type Mapper struct {
	loc      *time.Location
	timeZone string
	colors   *colors.Table
}

// localTimeFile is the system zone link consulted by LocalZoneName.
var localTimeFile = "/etc/localtime"

// NewMapper returns a mapper for the IANA zone tz. An empty tz means the
// local zone, named through LocalZoneName; only when it has no IANA name
// are events sent without a timeZone.
func NewMapper(tz string, table *colors.Table) (Mapper, error) {
	m := Mapper{loc: time.Local, colors: table}
	if tz == "" {
		tz = LocalZoneName()
	}
	if tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return Mapper{}, fmt.Errorf("unknown time zone %q: %w", tz, err)
		}
		m.loc = loc
		m.timeZone = tz
	}
	if m.colors == nil {
		m.colors = colors.Default()
	}
	return m, nil
}

// LocalZoneName returns the IANA name of the local zone, taken from $TZ,
// time.Local or the /etc/localtime link, or "" when none names one.
func LocalZoneName() string {
	if tz, ok := os.LookupEnv("TZ"); ok {
		tz = strings.TrimPrefix(tz, ":")
		if tz == "" {
			return "UTC"
		}
		if name := zoneName(tz); name != "" {
			return name
		}
	}
	if name := time.Local.String(); name != "Local" && name != "" {
		return name
	}
	if target, err := os.Readlink(localTimeFile); err == nil {
		return zoneName(target)
	}
	return ""
}

// zoneName accepts a zone name or a path into a zoneinfo tree.
func zoneName(s string) string {
	if i := strings.LastIndex(s, "zoneinfo/"); i >= 0 {
		s = s[i+len("zoneinfo/"):]
	}
	if _, err := time.LoadLocation(s); err != nil {
		return ""
	}
	return s
}

// TimeZone is the IANA zone identifier sent with timed events.
func (m Mapper) TimeZone() string {
	return m.timeZone
}

// Location is the zone timed events are scheduled in.
func (m Mapper) Location() *time.Location {
	if m.loc == nil {
		return time.Local
	}
	return m.loc
}

// TaskToEvent maps a dated task to an event. Tasks with a time become
// one-hour timed events; the rest become all-day events ending the next
// day (the end date is exclusive).
func (m Mapper) TaskToEvent(t model.Task) (*calendar.Event, error) {
	if !t.HasDate() {
		return nil, ErrNoDueDate
	}

	event := &calendar.Event{
		Summary:     t.Name,
		Description: t.Notes,
		ColorId:     m.colors.ColorID(t.Category),
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{
				TaskIDProperty: strconv.FormatInt(t.ID, 10),
			},
		},
	}

	if t.Time != "" {
		start, err := time.ParseInLocation(model.DateLayout+" "+model.TimeLayout, t.DueDate+" "+t.Time, m.Location())
		if err != nil {
			return nil, fmt.Errorf("invalid schedule for task %d: %w", t.ID, err)
		}
		end := start.Add(EventDuration)
		event.Start = &calendar.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: m.timeZone}
		event.End = &calendar.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: m.timeZone}
		return event, nil
	}

	day, err := time.Parse(model.DateLayout, t.DueDate)
	if err != nil {
		return nil, fmt.Errorf("invalid due date for task %d: %w", t.ID, err)
	}
	event.Start = &calendar.EventDateTime{Date: t.DueDate}
	event.End = &calendar.EventDateTime{Date: day.AddDate(0, 0, 1).Format(model.DateLayout)}
	return event, nil
}

// EventNeedsUpdate returns a patch holding the fields of target that differ
// from existing, or nil when the events match.
func EventNeedsUpdate(existing, target *calendar.Event) *calendar.Event {
	patch := &calendar.Event{}
	needsUpdate := false

	if existing.Summary != target.Summary {
		patch.Summary = target.Summary
		needsUpdate = true
	}
	if existing.Description != target.Description {
		patch.Description = target.Description
		needsUpdate = true
	}
	if existing.ColorId != target.ColorId {
		patch.ColorId = target.ColorId
		needsUpdate = true
	}
	if !sameTime(existing.Start, target.Start) || !sameTime(existing.End, target.End) {
		patch.Start = target.Start
		patch.End = target.End
		needsUpdate = true
	}

	if needsUpdate {
		return patch
	}
	return nil
}

func sameTime(a, b *calendar.EventDateTime) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Date != b.Date {
		return false
	}
	if a.DateTime == b.DateTime {
		return true
	}
	at, errA := time.Parse(time.RFC3339, a.DateTime)
	bt, errB := time.Parse(time.RFC3339, b.DateTime)
	return errA == nil && errB == nil && at.Equal(bt)
}

// RemoteEvent is the read-only view of a calendar event returned by
// ImportRemote.
type RemoteEvent struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"allDay"`
	ColorID     string    `json:"colorId,omitempty"`
	Status      string    `json:"status,omitempty"`
	HTMLLink    string    `json:"htmlLink,omitempty"`
	// TaskID is set when the event was created by the planner.
	TaskID int64 `json:"taskId,omitempty"`
}

func toRemoteEvent(event *calendar.Event) RemoteEvent {
	if event == nil {
		return RemoteEvent{}
	}
	re := RemoteEvent{
		ID:          event.Id,
		Summary:     event.Summary,
		Description: event.Description,
		ColorID:     event.ColorId,
		Status:      event.Status,
		HTMLLink:    event.HtmlLink,
	}
	re.Start, re.AllDay = parseEventTime(event.Start)
	re.End, _ = parseEventTime(event.End)

	if event.ExtendedProperties != nil {
		if v, ok := event.ExtendedProperties.Private[TaskIDProperty]; ok {
			if id, err := strconv.ParseInt(v, 10, 64); err == nil {
				re.TaskID = id
			}
		}
	}
	return re
}

func parseEventTime(dt *calendar.EventDateTime) (time.Time, bool) {
	if dt == nil {
		return time.Time{}, false
	}
	if dt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, dt.DateTime); err == nil {
			return t, false
		}
	} else if dt.Date != "" {
		if t, err := time.Parse(model.DateLayout, dt.Date); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
