// Package syncer keeps exactly one calendar event per dated issue.
//
// Every notification re-queries the calendar for the issue's day and
// decides from what it finds, so a redelivered notification is harmless
// while the title it carries is still current. There is no lock across the issue tracker and the
// calendar: two "opened" notifications for the same issue handled at the
// same moment can both see no event and both create one. That window is
// accepted; nothing in the calendar API offers an idempotency key.
//
// Lookups only search the day named by the title in the notification. An
// "opened" or "labeled" notification carrying an old title, replayed after
// an edit moved the event, finds nothing on the old day and creates a
// second event. Delivery id de-duplication only covers replays with the
// same id that are still in the delivery log.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/guilherme-santos/issuecalendar/internal"
	"github.com/guilherme-santos/issuecalendar/internal/extract"
)

type (
	Mux      = internal.Mux
	Calendar = internal.Calendar
	Event    = internal.Event
	IssueRef = internal.IssueRef
)

// Rules is the per-repository part of the configuration the synchronizer
// needs.
type Rules struct {
	Extractor *extract.Extractor
	// EventLabel, when set, is the label an issue must carry to be synced.
	EventLabel string
}

// Request describes one issue notification.
type Request struct {
	Kind  Kind
	Issue IssueRef
	// Label is the label added or removed, for Labeled and Unlabeled.
	Label string
	// PreviousTitle is the title before an Edited notification, if the
	// title changed.
	PreviousTitle string
}

// Result reports what the synchronizer saw and did.
type Result struct {
	State  State
	Action Action
	// Skipped explains why no state was computed (label gating).
	Skipped string
	// Date is the extracted date, zero in NoMatch.
	Date internal.Date
	// Event is the created, updated, deleted or already existing event.
	Event *Event
}

type Syncer struct {
	logger *slog.Logger
	mux    Mux
}

func New(logger *slog.Logger, providers Mux) *Syncer {
	if logger == nil {
		logger = internal.Discard()
	}
	return &Syncer{
		logger: logger,
		mux:    providers,
	}
}

// Sync brings the calendar in line with the issue. Gateway failures are
// returned as-is and never retried here.
func (s *Syncer) Sync(ctx context.Context, cal *Calendar, rules Rules, req Request) (Result, error) {
	logger := internal.CalendarLogger(s.logger, cal).With("kind", string(req.Kind), "issue", req.Issue.String())

	if reason := gate(rules, req); reason != "" {
		logger.Debug("Skipping issue", "reason", reason)
		return Result{Skipped: reason}, nil
	}

	if rules.Extractor == nil {
		return Result{}, errors.New("syncer: rules have no date extractor")
	}
	provider, err := s.mux.Get(cal.Account.Platform)
	if err != nil {
		return Result{}, err
	}

	match, err := rules.Extractor.Extract(req.Issue.Title)
	if err != nil {
		logExtractMiss(logger, req.Issue.Title, err)
		return Result{State: NoMatch}, nil
	}

	state, existing, err := s.state(ctx, provider, cal, rules, req, match.Date)
	if err != nil {
		return Result{}, err
	}
	res := Result{
		State:  state,
		Action: Decide(req.Kind, state),
		Date:   match.Date,
		Event:  existing,
	}
	logger = logger.With("state", state.String(), "action", res.Action.String(), "date", match.Date.String())

	switch res.Action {
	case Create:
		logger.Info("Creating event", "summary", match.Summary)
		res.Event, err = provider.CreateEvent(ctx, cal, &Event{
			Summary:     match.Summary,
			Description: internal.IssueDescription(req.Issue.URL, req.Issue.Body),
			StartsOn:    match.Date,
			EndsOn:      match.Date,
		})
		if err != nil {
			return res, fmt.Errorf("creating event: %w", err)
		}
	case Update:
		moved := *existing
		moved.Summary = match.Summary
		moved.StartsOn = match.Date
		moved.EndsOn = match.Date
		logger.Info("Moving event", "event_id", moved.ID, "from", existing.StartsOn.String())
		if err := provider.UpdateEvent(ctx, cal, &moved); err != nil {
			return res, fmt.Errorf("updating event %s: %w", moved.ID, err)
		}
		res.Event = &moved
	case Delete:
		logger.Info("Deleting event", "event_id", existing.ID)
		if err := provider.DeleteEvent(ctx, cal, existing.ID); err != nil {
			return res, fmt.Errorf("deleting event %s: %w", existing.ID, err)
		}
	default:
		logger.Debug("Nothing to do")
	}
	return res, nil
}

// gate applies the required-label rules. It returns a non-empty reason
// when the notification must be ignored.
func gate(rules Rules, req Request) string {
	switch req.Kind {
	case Labeled, Unlabeled:
		if rules.EventLabel == "" {
			return "no event label configured"
		}
		if req.Label != rules.EventLabel {
			return fmt.Sprintf("label %q is not the event label", req.Label)
		}
	case Opened, Edited:
		if rules.EventLabel != "" && !req.Issue.HasLabel(rules.EventLabel) {
			return fmt.Sprintf("issue is not labeled %q", rules.EventLabel)
		}
	default:
		return fmt.Sprintf("unknown notification %q", req.Kind)
	}
	return ""
}

func (s *Syncer) state(ctx context.Context, provider internal.Provider, cal *Calendar, rules Rules, req Request, date internal.Date) (State, *Event, error) {
	becameDated := false
	if req.Kind == Edited && req.PreviousTitle != "" {
		prev, err := rules.Extractor.Extract(req.PreviousTitle)
		becameDated = err != nil
		if err == nil && !prev.Date.Equal(date) {
			existing, err := s.find(ctx, provider, cal, prev.Date, req.Issue.URL)
			if err != nil {
				return NoMatch, nil, err
			}
			if existing != nil {
				return Stale, existing, nil
			}
		}
	}

	existing, err := s.find(ctx, provider, cal, date, req.Issue.URL)
	if err != nil {
		return NoMatch, nil, err
	}
	if existing != nil {
		return Synced, existing, nil
	}
	if req.Kind == Edited && !becameDated {
		return Missing, nil, nil
	}
	return Unsynced, nil, nil
}

// find lists the whole day and returns the first event that represents
// issueURL.
func (s *Syncer) find(ctx context.Context, provider internal.Provider, cal *Calendar, date internal.Date, issueURL string) (*Event, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	it, err := provider.Events(ctx, cal, date.StartOfDay(), date.EndOfDay())
	if err != nil {
		return nil, fmt.Errorf("listing events on %s: %w", date, err)
	}
	for it.Next() {
		if e := it.Event(); e.RepresentsIssue(issueURL) {
			return e, nil
		}
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("listing events on %s: %w", date, err)
	}
	return nil, nil
}

func logExtractMiss(logger *slog.Logger, title string, err error) {
	if errors.Is(err, extract.ErrUnparsable) {
		logger.Warn("Unable to parse date", "title", title, "error", err)
		return
	}
	logger.Info("No matches for date pattern", "title", title)
}
