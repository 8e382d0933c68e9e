package extract

import (
	"errors"
	"testing"
	"time"

	"github.com/guilherme-santos/issuecalendar/internal"
)

func TestExtract_DefaultPattern(t *testing.T) {
	e, err := New(DefaultPattern, DefaultFormat)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	m, err := e.Extract("Hackathon Kickoff - 2024-03-15")
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if !m.Date.Equal(internal.NewDate(2024, time.March, 15)) {
		t.Errorf("Date = %v, want 2024-03-15", m.Date)
	}
	if m.Text != "2024-03-15" {
		t.Errorf("Text = %q, want 2024-03-15", m.Text)
	}
	if m.Summary != "Hackathon Kickoff -" {
		t.Errorf("Summary = %q, want %q", m.Summary, "Hackathon Kickoff -")
	}
}

func TestExtract_Misses(t *testing.T) {
	e, err := New("", "")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	tests := []struct {
		title string
		want  error
	}{
		{"Just a regular issue", ErrNoMatch},
		{"2024-03-15 date not at the end", ErrNoMatch},
		{"Leap day that is not - 2023-02-29", ErrUnparsable},
		{"Month thirteen - 2024-13-01", ErrUnparsable},
		{"", ErrNoMatch},
	}
	for _, tt := range tests {
		_, err := e.Extract(tt.title)
		if !errors.Is(err, tt.want) {
			t.Errorf("Extract(%q) error = %v, want %v", tt.title, err, tt.want)
		}
	}
}

func TestExtract_FirstMatchOnly(t *testing.T) {
	e, err := New(`\d{4}-\d{2}-\d{2}`, "YYYY-MM-DD")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	m, err := e.Extract("2024-01-02 moved to 2024-05-06")
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if m.Text != "2024-01-02" {
		t.Errorf("Text = %q, want the first match", m.Text)
	}
	if m.Summary != "moved to 2024-05-06" {
		t.Errorf("Summary = %q", m.Summary)
	}
}

func TestExtract_CustomFormats(t *testing.T) {
	tests := []struct {
		pattern string
		format  string
		title   string
		want    internal.Date
	}{
		{`\d{2}/\d{2}/\d{4}`, "DD/MM/YYYY", "Meetup 05/04/2024", internal.NewDate(2024, time.April, 5)},
		{`\d{2}\.\d{2}\.\d{2}$`, "DD.MM.YY", "Demo 31.12.25", internal.NewDate(2025, time.December, 31)},
		{`[A-Z][a-z]{2} \d{1,2}, \d{4}`, "MMM D, YYYY", "Launch Mar 7, 2025 party", internal.NewDate(2025, time.March, 7)},
		{`\d{4}-\d{2}-\d{2}`, "2006-01-02", "Go layout 2024-07-04", internal.NewDate(2024, time.July, 4)},
	}
	for _, tt := range tests {
		got, ok, err := Extract(tt.title, tt.pattern, tt.format)
		if err != nil {
			t.Fatalf("Extract(%q) error: %v", tt.title, err)
		}
		if !ok {
			t.Errorf("Extract(%q, %q, %q) found no date", tt.title, tt.pattern, tt.format)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("Extract(%q) = %v, want %v", tt.title, got, tt.want)
		}
	}
}

func TestExtract_Deterministic(t *testing.T) {
	first, ok1, _ := Extract("Retro - 2024-06-01", DefaultPattern, DefaultFormat)
	second, ok2, _ := Extract("Retro - 2024-06-01", DefaultPattern, DefaultFormat)
	if ok1 != ok2 || !first.Equal(second) {
		t.Fatalf("same input gave %v/%v and %v/%v", first, ok1, second, ok2)
	}
}

func TestNew_InvalidPattern(t *testing.T) {
	if _, err := New(`(\d{4}`, DefaultFormat); err == nil {
		t.Fatal("New accepted an invalid pattern")
	}
	if _, _, err := Extract("x", `(\d{4}`, DefaultFormat); err == nil {
		t.Fatal("Extract accepted an invalid pattern")
	}
}

func TestLayout(t *testing.T) {
	tests := map[string]string{
		"YYYY-MM-DD":       "2006-01-02",
		"DD/MM/YY":         "02/01/06",
		"MMMM D YYYY":      "January 2 2006",
		"ddd, MMM DD YYYY": "Mon, Jan 02 2006",
		"YYYY[W]MM":        "2006W01",
		"2006-01-02":       "2006-01-02",
	}
	for format, want := range tests {
		if got := Layout(format); got != want {
			t.Errorf("Layout(%q) = %q, want %q", format, got, want)
		}
	}
}
