package google

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/harrisonrobin/planner/pkg/calsync"
)

type staticSource struct {
	client *http.Client
	err    error
	calls  int
}

func (s *staticSource) HTTPClient(context.Context) (*http.Client, error) {
	s.calls++
	return s.client, s.err
}

type recorded struct {
	method string
	path   string
	query  map[string][]string
	body   map[string]any
}

func fakeCalendar(t *testing.T, handle func(r recorded, w http.ResponseWriter)) (*httptest.Server, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, query: r.URL.Query()}
		if b, _ := io.ReadAll(r.Body); len(b) > 0 {
			require.NoError(t, json.Unmarshal(b, &rec.body))
		}
		calls = append(calls, rec)
		w.Header().Set("Content-Type", "application/json")
		handle(rec, w)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestClient(srv *httptest.Server, calendarID string) (*CalendarClient, *staticSource) {
	src := &staticSource{client: srv.Client()}
	return NewCalendarClient(src, calendarID, option.WithEndpoint(srv.URL+"/")), src
}

func TestInsertUpdateDelete(t *testing.T) {
	srv, calls := fakeCalendar(t, func(r recorded, w http.ResponseWriter) {
		switch r.method {
		case http.MethodPost, http.MethodPut:
			json.NewEncoder(w).Encode(map[string]any{"id": "evt-1", "summary": r.body["summary"]})
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	c, src := newTestClient(srv, "")
	assert.Equal(t, DefaultCalendarID, c.CalendarID())

	ctx := context.Background()
	created, err := c.Insert(ctx, &calendar.Event{Summary: "essay"})
	require.NoError(t, err)
	assert.Equal(t, "evt-1", created.Id)

	_, err = c.Update(ctx, "evt-1", &calendar.Event{Summary: "essay v2"})
	require.NoError(t, err)
	require.NoError(t, c.Delete(ctx, "evt-1"))

	require.Len(t, *calls, 3)
	assert.Equal(t, "/calendars/primary/events", (*calls)[0].path)
	assert.Equal(t, "essay", (*calls)[0].body["summary"])
	assert.Equal(t, http.MethodPut, (*calls)[1].method)
	assert.Equal(t, "/calendars/primary/events/evt-1", (*calls)[1].path)
	assert.Equal(t, http.MethodDelete, (*calls)[2].method)
	assert.Equal(t, 1, src.calls, "service is built once")
}

func TestListReadsAllPages(t *testing.T) {
	srv, calls := fakeCalendar(t, func(r recorded, w http.ResponseWriter) {
		if len(r.query["pageToken"]) == 0 {
			json.NewEncoder(w).Encode(map[string]any{
				"items":         []map[string]any{{"id": "a"}},
				"nextPageToken": "p2",
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"items": []map[string]any{{"id": "b"}}})
	})
	c, _ := newTestClient(srv, "work@group.calendar.google.com")

	from := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	events, err := c.List(context.Background(), from, from.Add(7*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].Id)
	assert.Equal(t, "b", events[1].Id)

	first := (*calls)[0]
	assert.Equal(t, "/calendars/work@group.calendar.google.com/events", first.path)
	assert.Equal(t, []string{"2024-03-10T00:00:00Z"}, first.query["timeMin"])
	assert.Equal(t, []string{"2024-03-17T00:00:00Z"}, first.query["timeMax"])
	assert.Equal(t, []string{"true"}, first.query["singleEvents"])
}

func TestFindByProperty(t *testing.T) {
	srv, calls := fakeCalendar(t, func(r recorded, w http.ResponseWriter) {
		json.NewEncoder(w).Encode(map[string]any{"items": []map[string]any{}})
	})
	c, _ := newTestClient(srv, "")

	ev, err := c.FindByProperty(context.Background(), "planner_task_id", "42")
	require.NoError(t, err)
	assert.Nil(t, ev)
	assert.Equal(t, []string{"planner_task_id=42"}, (*calls)[0].query["privateExtendedProperty"])
}

func TestFindByPropertyReturnsFirstMatch(t *testing.T) {
	srv, _ := fakeCalendar(t, func(r recorded, w http.ResponseWriter) {
		json.NewEncoder(w).Encode(map[string]any{"items": []map[string]any{
			{"id": "evt-1", "summary": "essay"},
			{"id": "evt-2", "summary": "essay"},
		}})
	})
	var c calsync.Finder
	c, _ = newTestClient(srv, "")

	ev, err := c.FindByProperty(context.Background(), calsync.TaskIDProperty, "7")
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, "evt-1", ev.Id)
}

func TestSourceErrorIsReturned(t *testing.T) {
	notSignedIn := errors.New("not signed in")
	c := NewCalendarClient(&staticSource{err: notSignedIn}, "")
	_, err := c.Insert(context.Background(), &calendar.Event{})
	assert.ErrorIs(t, err, notSignedIn)
}
