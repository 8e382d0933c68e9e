package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/guilherme-santos/issuecalendar/internal"
)

// memCalendar is an in-memory calendar provider.
type memCalendar struct {
	mu      sync.Mutex
	events  map[string]*internal.Event
	nextID  int
	calls   []string
	listErr error
	addErr  error
}

func newMemCalendar(events ...*internal.Event) *memCalendar {
	m := &memCalendar{events: make(map[string]*internal.Event)}
	for _, e := range events {
		m.events[e.ID] = e
	}
	return m
}

func (m *memCalendar) Get(platform string) (internal.Provider, error) {
	if platform != "mem" {
		return nil, errors.New("unknown platform")
	}
	return m, nil
}

func (m *memCalendar) Events(_ context.Context, _ *internal.Calendar, from, to time.Time) (internal.Iterator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "list "+from.Format(internal.DateFormat))
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*internal.Event
	for _, e := range m.events {
		if !e.StartsOn.After(to) && !e.EndsOn.Before(internal.NewDateFromTime(from).Time) {
			cp := *e
			out = append(out, &cp)
		}
	}
	return internal.NewSliceIterator(out, nil), nil
}

func (m *memCalendar) CreateEvent(_ context.Context, _ *internal.Calendar, e *internal.Event) (*internal.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "create "+e.StartsOn.String())
	if m.addErr != nil {
		return nil, m.addErr
	}
	m.nextID++
	cp := *e
	cp.ID = fmt.Sprintf("ev%d", m.nextID)
	m.events[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memCalendar) UpdateEvent(_ context.Context, _ *internal.Calendar, e *internal.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "update "+e.ID)
	if _, ok := m.events[e.ID]; !ok {
		return errors.New("not found")
	}
	cp := *e
	m.events[e.ID] = &cp
	return nil
}

func (m *memCalendar) DeleteEvent(_ context.Context, _ *internal.Calendar, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "delete "+id)
	delete(m.events, id)
	return nil
}

// matching returns the events that represent issueURL.
func (m *memCalendar) matching(issueURL string) []*internal.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*internal.Event
	for _, e := range m.events {
		if e.RepresentsIssue(issueURL) {
			out = append(out, e)
		}
	}
	return out
}

func (m *memCalendar) count(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}
