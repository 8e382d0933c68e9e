// Package caldav is a calendar provider for CalDAV servers (Nextcloud,
// iCloud, Fastmail, ...). The account credential is a JSON object with the
// server URL and basic auth username and password.
package caldav

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"

	"github.com/guilherme-santos/issuecalendar/internal"
)

const Platform = "caldav"

const productID = "-//issuecalendar//CalDAV//EN"

// Credential is the decrypted account material for a CalDAV server.
type Credential struct {
	URL      string `json:"url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = internal.Discard()
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
	}
}

func (c *Client) connect(cal *internal.Calendar) (*caldav.Client, error) {
	var cred Credential
	if err := json.Unmarshal([]byte(cal.Account.Auth), &cred); err != nil {
		return nil, fmt.Errorf("caldav: decoding credential: %w", err)
	}
	if cred.URL == "" {
		return nil, errors.New("caldav: credential has no server url")
	}
	var httpClient webdav.HTTPClient = c.httpClient
	if cred.Username != "" {
		httpClient = webdav.HTTPClientWithBasicAuth(c.httpClient, cred.Username, cred.Password)
	}
	client, err := caldav.NewClient(httpClient, cred.URL)
	if err != nil {
		return nil, fmt.Errorf("caldav: connecting: %w", err)
	}
	return client, nil
}

func (c *Client) Events(ctx context.Context, cal *internal.Calendar, from, to time.Time) (internal.Iterator, error) {
	client, err := c.connect(cal)
	if err != nil {
		return nil, err
	}
	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     "VCALENDAR",
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: from,
				End:   to,
			}},
		},
	}

	internal.CalendarLogger(c.logger, cal).Debug("caldav: listing events")
	objects, err := client.QueryCalendar(ctx, cal.ProviderID, query)
	if err != nil {
		return nil, fmt.Errorf("caldav: querying calendar: %w", err)
	}

	events := make([]*internal.Event, 0, len(objects))
	for i := range objects {
		event, ok := parseCalendarObject(&objects[i])
		if !ok {
			continue
		}
		events = append(events, event)
	}
	return internal.NewSliceIterator(events, nil), nil
}

func (c *Client) CreateEvent(ctx context.Context, cal *internal.Calendar, req *internal.Event) (*internal.Event, error) {
	client, err := c.connect(cal)
	if err != nil {
		return nil, err
	}
	uid := uuid.NewString()
	path := objectPath(cal.ProviderID, uid)

	created := *req
	created.ID = path
	if _, err := client.PutCalendarObject(ctx, path, eventToICS(uid, &created)); err != nil {
		return nil, fmt.Errorf("caldav: creating event: %w", err)
	}
	internal.CalendarLogger(c.logger, cal).Info("caldav: event created", "event_id", path, "date", req.StartsOn.String())
	return &created, nil
}

// UpdateEvent replaces the object at req.ID. PUT replaces the whole object,
// so the UID is taken from the object name.
func (c *Client) UpdateEvent(ctx context.Context, cal *internal.Calendar, req *internal.Event) error {
	client, err := c.connect(cal)
	if err != nil {
		return err
	}
	if _, err := client.PutCalendarObject(ctx, req.ID, eventToICS(uidFromPath(req.ID), req)); err != nil {
		return fmt.Errorf("caldav: updating event: %w", err)
	}
	internal.CalendarLogger(c.logger, cal).Info("caldav: event updated", "event_id", req.ID, "date", req.StartsOn.String())
	return nil
}

func (c *Client) DeleteEvent(ctx context.Context, cal *internal.Calendar, id string) error {
	client, err := c.connect(cal)
	if err != nil {
		return err
	}
	if err := client.RemoveAll(ctx, id); err != nil {
		return fmt.Errorf("caldav: deleting event: %w", err)
	}
	internal.CalendarLogger(c.logger, cal).Info("caldav: event deleted", "event_id", id)
	return nil
}

func objectPath(calendarPath, uid string) string {
	if !strings.HasSuffix(calendarPath, "/") {
		calendarPath += "/"
	}
	return calendarPath + uid + ".ics"
}

func uidFromPath(path string) string {
	name := path[strings.LastIndex(path, "/")+1:]
	return strings.TrimSuffix(name, ".ics")
}

// parseCalendarObject reads the first VEVENT. The event ID is the object
// path, which is what PUT and DELETE need.
func parseCalendarObject(obj *caldav.CalendarObject) (*internal.Event, bool) {
	if obj.Data == nil {
		return nil, false
	}
	for _, comp := range obj.Data.Children {
		if comp.Name != ical.CompEvent {
			continue
		}
		event := &internal.Event{ID: obj.Path}
		if prop := comp.Props.Get(ical.PropSummary); prop != nil {
			event.Summary = prop.Value
		}
		if prop := comp.Props.Get(ical.PropDescription); prop != nil {
			if text, err := prop.Text(); err == nil {
				event.Description = text
			} else {
				event.Description = prop.Value
			}
		}
		if prop := comp.Props.Get(ical.PropDateTimeStart); prop != nil {
			if t, err := prop.DateTime(time.UTC); err == nil {
				event.StartsOn = internal.NewDateFromTime(t)
			}
		}
		event.EndsOn = event.StartsOn
		if prop := comp.Props.Get(ical.PropDateTimeEnd); prop != nil {
			if t, err := prop.DateTime(time.UTC); err == nil {
				end := internal.NewDateFromTime(t)
				// DTEND of an all-day event is exclusive.
				if prop.ValueType() == ical.ValueDate && end.After(event.StartsOn.Time) {
					end = end.AddDate(0, 0, -1)
				}
				event.EndsOn = end
			}
		}
		return event, true
	}
	return nil, false
}

func eventToICS(uid string, event *internal.Event) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	end := event.EndsOn
	if end.IsZero() {
		end = event.StartsOn
	}

	vevent := ical.NewEvent()
	vevent.Props.SetText(ical.PropUID, uid)
	vevent.Props.SetText(ical.PropSummary, event.Summary)
	if event.Description != "" {
		vevent.Props.SetText(ical.PropDescription, event.Description)
	}
	vevent.Props.SetDate(ical.PropDateTimeStart, event.StartsOn.Time)
	vevent.Props.SetDate(ical.PropDateTimeEnd, end.AddDate(0, 0, 1).Time)
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())

	cal.Children = append(cal.Children, vevent.Component)
	return cal
}
