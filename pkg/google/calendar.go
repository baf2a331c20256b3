// Package google is the Google Calendar v3 transport used for mirroring
// tasks. All calls target one calendar id.
package google

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// DefaultCalendarID is the signed-in user's main calendar.
const DefaultCalendarID = "primary"

// HTTPClientSource supplies an authorized HTTP client, typically an
// *auth.Session.
type HTTPClientSource interface {
	HTTPClient(ctx context.Context) (*http.Client, error)
}

// CalendarClient is a Google Calendar API client. The underlying service is
// built on first use so a client can exist before the user signs in.
type CalendarClient struct {
	source     HTTPClientSource
	calendarID string
	opts       []option.ClientOption

	mu  sync.Mutex
	srv *calendar.Service
}

// NewCalendarClient returns a client for calendarID (DefaultCalendarID when
// empty). Extra options are passed to calendar.NewService.
func NewCalendarClient(source HTTPClientSource, calendarID string, opts ...option.ClientOption) *CalendarClient {
	if calendarID == "" {
		calendarID = DefaultCalendarID
	}
	return &CalendarClient{source: source, calendarID: calendarID, opts: opts}
}

// CalendarID is the calendar every call targets.
func (c *CalendarClient) CalendarID() string {
	return c.calendarID
}

func (c *CalendarClient) service() (*calendar.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.srv != nil {
		return c.srv, nil
	}

	// The client outlives any single request, so it is not tied to a
	// request context.
	ctx := context.Background()
	hc, err := c.source.HTTPClient(ctx)
	if err != nil {
		return nil, err
	}
	opts := append([]option.ClientOption{option.WithHTTPClient(hc)}, c.opts...)
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar service: %w", err)
	}
	c.srv = srv
	return srv, nil
}

// Reset drops the cached service, e.g. after signing out.
func (c *CalendarClient) Reset() {
	c.mu.Lock()
	c.srv = nil
	c.mu.Unlock()
}

// Insert creates an event.
func (c *CalendarClient) Insert(ctx context.Context, event *calendar.Event) (*calendar.Event, error) {
	srv, err := c.service()
	if err != nil {
		return nil, err
	}
	return srv.Events.Insert(c.calendarID, event).Context(ctx).Do()
}

// Update replaces an event.
func (c *CalendarClient) Update(ctx context.Context, eventID string, event *calendar.Event) (*calendar.Event, error) {
	srv, err := c.service()
	if err != nil {
		return nil, err
	}
	return srv.Events.Update(c.calendarID, eventID, event).Context(ctx).Do()
}

// Delete deletes an event from the calendar.
func (c *CalendarClient) Delete(ctx context.Context, eventID string) error {
	srv, err := c.service()
	if err != nil {
		return err
	}
	return srv.Events.Delete(c.calendarID, eventID).Context(ctx).Do()
}

// List fetches single events starting at or after from and, when to is
// not zero, before to. All result pages are read.
func (c *CalendarClient) List(ctx context.Context, from, to time.Time) ([]*calendar.Event, error) {
	srv, err := c.service()
	if err != nil {
		return nil, err
	}
	call := srv.Events.List(c.calendarID).
		TimeMin(from.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime")
	if !to.IsZero() {
		call = call.TimeMax(to.Format(time.RFC3339))
	}

	var events []*calendar.Event
	err = call.Pages(ctx, func(page *calendar.Events) error {
		events = append(events, page.Items...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve events from calendar: %w", err)
	}
	return events, nil
}

// FindByProperty returns the first event carrying the private extended
// property key=value, or nil. Cancelled events are not returned.
func (c *CalendarClient) FindByProperty(ctx context.Context, key, value string) (*calendar.Event, error) {
	srv, err := c.service()
	if err != nil {
		return nil, err
	}
	events, err := srv.Events.List(c.calendarID).
		PrivateExtendedProperty(fmt.Sprintf("%s=%s", key, value)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	if len(events.Items) > 0 {
		return events.Items[0], nil
	}
	return nil, nil
}
