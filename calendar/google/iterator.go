package google

import (
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/guilherme-santos/issuecalendar/internal"
)

type eventOrError struct {
	e   *internal.Event
	err error
}

type eventIterator struct {
	events  chan eventOrError
	current eventOrError
}

func newEventIterator() *eventIterator {
	return &eventIterator{
		events: make(chan eventOrError),
	}
}

func (it *eventIterator) Next() (ok bool) {
	it.current, ok = <-it.events
	if it.current.err != nil {
		return false
	}
	return ok
}

func (it *eventIterator) Event() *internal.Event {
	c := it.current
	if c.e == nil && c.err == nil {
		panic("google: Event() called before Next()")
	}
	return c.e
}

func (it *eventIterator) Err() error {
	return it.current.err
}

func newEvent(event *calendar.Event) *internal.Event {
	return &internal.Event{
		ID:          event.Id,
		Summary:     event.Summary,
		Description: event.Description,
		StartsOn:    eventDate(event.Start),
		EndsOn:      eventDate(event.End),
	}
}

// eventDate reads the day of an all-day (Date) or timed (DateTime) event.
func eventDate(edt *calendar.EventDateTime) internal.Date {
	if edt == nil {
		return internal.Date{}
	}
	if edt.Date != "" {
		d, _ := internal.Parse(internal.DateFormat, edt.Date)
		return d
	}
	t, err := time.Parse(time.RFC3339, edt.DateTime)
	if err != nil {
		return internal.Date{}
	}
	return internal.NewDateFromTime(t)
}

func newGoogleEvent(event *internal.Event) *calendar.Event {
	end := event.EndsOn
	if end.IsZero() {
		end = event.StartsOn
	}
	return &calendar.Event{
		Summary:     event.Summary,
		Description: event.Description,
		Start: &calendar.EventDateTime{
			Date: event.StartsOn.String(),
		},
		End: &calendar.EventDateTime{
			Date: end.String(),
		},
		Reminders: &calendar.EventReminders{
			UseDefault: true,
		},
	}
}
