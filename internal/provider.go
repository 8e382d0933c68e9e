package internal

import (
	"context"
	"time"
)

type Mux interface {
	Get(platform string) (Provider, error)
}

// Provider is the calendar gateway. Implementations own their retry policy.
type Provider interface {
	Events(_ context.Context, _ *Calendar, from, to time.Time) (Iterator, error)
	CreateEvent(_ context.Context, _ *Calendar, _ *Event) (*Event, error)
	UpdateEvent(_ context.Context, _ *Calendar, _ *Event) error
	DeleteEvent(_ context.Context, _ *Calendar, id string) error
}

type Iterator interface {
	Next() bool
	Event() *Event
	Err() error
}

// SliceIterator iterates over events already in memory.
type SliceIterator struct {
	events []*Event
	pos    int
	err    error
}

func NewSliceIterator(events []*Event, err error) *SliceIterator {
	return &SliceIterator{events: events, pos: -1, err: err}
}

func (it *SliceIterator) Next() bool {
	if it.err != nil {
		return false
	}
	it.pos++
	return it.pos < len(it.events)
}

func (it *SliceIterator) Event() *Event {
	if it.pos < 0 || it.pos >= len(it.events) {
		panic("internal: Event() called without a successful Next()")
	}
	return it.events[it.pos]
}

func (it *SliceIterator) Err() error {
	return it.err
}
