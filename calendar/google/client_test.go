package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/guilherme-santos/issuecalendar/internal"
)

type fakeAPI struct {
	mu       sync.Mutex
	inserted []*calendar.Event
	query    map[string]string
	// rateLimited is the number of insert calls answered with rateLimitExceeded.
	rateLimited int
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/calendars/team@example.com/events"):
		f.query = map[string]string{
			"timeMin": r.URL.Query().Get("timeMin"),
			"timeMax": r.URL.Query().Get("timeMax"),
		}
		if r.URL.Query().Get("pageToken") == "" {
			json.NewEncoder(w).Encode(calendar.Events{
				Items: []*calendar.Event{{
					Id:          "ev1",
					Summary:     "Timed",
					Description: "https://github.com/o/r/issues/1\n\nbody",
					Start:       &calendar.EventDateTime{DateTime: "2024-03-15T10:00:00Z"},
					End:         &calendar.EventDateTime{DateTime: "2024-03-15T11:00:00Z"},
				}},
				NextPageToken: "p2",
			})
			return
		}
		json.NewEncoder(w).Encode(calendar.Events{
			Items: []*calendar.Event{{
				Id:    "ev2",
				Start: &calendar.EventDateTime{Date: "2024-03-15"},
				End:   &calendar.EventDateTime{Date: "2024-03-15"},
			}},
		})
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/calendars/team@example.com/events"):
		if f.rateLimited > 0 {
			f.rateLimited--
			w.WriteHeader(http.StatusForbidden)
			io.WriteString(w, `{"error":{"code":403,"message":"Rate Limit Exceeded","errors":[{"reason":"rateLimitExceeded","message":"Rate Limit Exceeded"}]}}`)
			return
		}
		var ev calendar.Event
		json.NewDecoder(r.Body).Decode(&ev)
		ev.Id = "created-1"
		f.inserted = append(f.inserted, &ev)
		json.NewEncoder(w).Encode(ev)
	default:
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":{"code":404,"message":"not found"}}`)
	}
}

func newTestClient(t *testing.T, api http.Handler) (*Client, *internal.Calendar) {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	c := NewClientFromConfig(NewOAuthConfig("id", "secret", "urn:ietf:wg:oauth:2.0:oob"), nil)
	c.Endpoint = srv.URL + "/"
	c.RetrySleep = time.Millisecond
	cal := &internal.Calendar{
		ProviderID: "team@example.com",
		Account: internal.Account{
			Platform: Platform,
			Name:     "o/r",
			Auth:     `{"access_token":"at","token_type":"Bearer"}`,
		},
	}
	return c, cal
}

func TestClient_EventsPaginates(t *testing.T) {
	api := &fakeAPI{}
	c, cal := newTestClient(t, api)

	day := internal.NewDate(2024, time.March, 15)
	it, err := c.Events(context.Background(), cal, day.StartOfDay(), day.EndOfDay())
	if err != nil {
		t.Fatalf("Events() error: %v", err)
	}
	var got []*internal.Event
	for it.Next() {
		got = append(got, it.Event())
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iterator error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if !got[0].RepresentsIssue("https://github.com/o/r/issues/1") {
		t.Errorf("first event description = %q", got[0].Description)
	}
	for _, e := range got {
		if !e.StartsOn.Equal(day) {
			t.Errorf("event %s StartsOn = %v, want %v", e.ID, e.StartsOn, day)
		}
	}
	if api.query["timeMin"] != "2024-03-15T00:00:00Z" {
		t.Errorf("timeMin = %q", api.query["timeMin"])
	}
	if !strings.HasPrefix(api.query["timeMax"], "2024-03-15T23:59:59") {
		t.Errorf("timeMax = %q", api.query["timeMax"])
	}
}

func TestClient_CreateEventWholeDay(t *testing.T) {
	api := &fakeAPI{rateLimited: 1}
	c, cal := newTestClient(t, api)

	day := internal.NewDate(2024, time.March, 15)
	created, err := c.CreateEvent(context.Background(), cal, &internal.Event{
		Summary:     "Hackathon Kickoff -",
		Description: "https://github.com/o/r/issues/1\n\nbody",
		StartsOn:    day,
		EndsOn:      day,
	})
	if err != nil {
		t.Fatalf("CreateEvent() error: %v", err)
	}
	if created.ID != "created-1" {
		t.Errorf("created ID = %q", created.ID)
	}
	if len(api.inserted) != 1 {
		t.Fatalf("inserted %d events, want 1", len(api.inserted))
	}
	ev := api.inserted[0]
	if ev.Start.Date != "2024-03-15" || ev.End.Date != "2024-03-15" {
		t.Errorf("start/end = %q/%q, want 2024-03-15", ev.Start.Date, ev.End.Date)
	}
	if ev.Start.DateTime != "" {
		t.Errorf("whole-day event has DateTime %q", ev.Start.DateTime)
	}
}

func TestClient_CreateEventGivesUpAfterRetries(t *testing.T) {
	api := &fakeAPI{rateLimited: 10}
	c, cal := newTestClient(t, api)
	c.MaxRetries = 2

	day := internal.NewDate(2024, time.March, 15)
	_, err := c.CreateEvent(context.Background(), cal, &internal.Event{StartsOn: day, EndsOn: day})
	if err == nil {
		t.Fatal("CreateEvent() succeeded despite persistent rate limiting")
	}
	if !shouldRetry(err) {
		t.Errorf("error = %v, want the rate limit error", err)
	}
	if api.rateLimited != 7 {
		t.Errorf("made %d attempts, want 3", 10-api.rateLimited)
	}
}

func TestClient_BadToken(t *testing.T) {
	c, cal := newTestClient(t, &fakeAPI{})
	cal.Account.Auth = `{}`
	if _, err := c.Events(context.Background(), cal, time.Now(), time.Now()); err == nil {
		t.Fatal("Events() accepted an empty token")
	}
}

func TestClient_AuthURL(t *testing.T) {
	c := NewClientFromConfig(NewOAuthConfig("client-id", "secret", "urn:ietf:wg:oauth:2.0:oob"), nil)
	u := c.AuthURL("state-1")
	for _, want := range []string{"client_id=client-id", "access_type=offline", "state=state-1", "calendar.events"} {
		if !strings.Contains(u, want) {
			t.Errorf("AuthURL() = %q, missing %q", u, want)
		}
	}
}

func TestEventDate(t *testing.T) {
	if d := eventDate(nil); !d.IsZero() {
		t.Errorf("eventDate(nil) = %v", d)
	}
	if d := eventDate(&calendar.EventDateTime{DateTime: "garbage"}); !d.IsZero() {
		t.Errorf("eventDate(garbage) = %v", d)
	}
	d := eventDate(&calendar.EventDateTime{Date: "2025-01-31"})
	if !d.Equal(internal.NewDate(2025, time.January, 31)) {
		t.Errorf("eventDate(Date) = %v", d)
	}
}
