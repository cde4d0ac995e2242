package calendar

import (
	"context"
	"fmt"
	"net/http"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const calendarID = "primary"

// Client wraps the Calendar API for the operations the workflow needs:
// reading the user timezone, querying overlapping events and inserting new
// events.
type Client struct {
	srv *gcal.Service
}

// NewClient builds a Calendar-backed Client over an authorized HTTP client.
func NewClient(ctx context.Context, client *http.Client) (*Client, error) {
	srv, err := gcal.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar service: %w", err)
	}
	return &Client{srv: srv}, nil
}

// Timezone returns the IANA timezone name from the user's calendar settings.
func (c *Client) Timezone() (string, error) {
	setting, err := c.srv.Settings.Get("timezone").Do()
	if err != nil {
		return "", fmt.Errorf("unable to read timezone setting: %w", err)
	}
	return setting.Value, nil
}

// EventsBetween lists single events overlapping [start, end), ordered by
// start time.
func (c *Client) EventsBetween(start, end time.Time) ([]Event, error) {
	result, err := c.srv.Events.List(calendarID).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Do()
	if err != nil {
		return nil, fmt.Errorf("unable to list events: %w", err)
	}

	events := make([]Event, 0, len(result.Items))
	for _, item := range result.Items {
		ev := Event{ID: item.Id, Summary: item.Summary}
		if item.Start != nil && item.Start.DateTime != "" {
			if t, err := time.Parse(time.RFC3339, item.Start.DateTime); err == nil {
				ev.Start = t
			}
		}
		if item.End != nil && item.End.DateTime != "" {
			if t, err := time.Parse(time.RFC3339, item.End.DateTime); err == nil {
				ev.End = t
			}
		}
		events = append(events, ev)
	}
	return events, nil
}

// Insert creates the event remotely. Start and end carry the explicit IANA
// timezone so the calendar renders wall-clock times correctly.
func (c *Client) Insert(slot Slot, timeZone string) (*CreatedEvent, error) {
	if timeZone == "" {
		timeZone = "UTC"
	}
	event := &gcal.Event{
		Summary: slot.Title,
		Start: &gcal.EventDateTime{
			DateTime: slot.Start.Format(time.RFC3339),
			TimeZone: timeZone,
		},
		End: &gcal.EventDateTime{
			DateTime: slot.End().Format(time.RFC3339),
			TimeZone: timeZone,
		},
	}
	if slot.Attendee != "" {
		event.Attendees = []*gcal.EventAttendee{{Email: slot.Attendee}}
	}

	created, err := c.srv.Events.Insert(calendarID, event).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to insert event: %w", err)
	}
	return &CreatedEvent{ID: created.Id, HTMLLink: created.HtmlLink}, nil
}
