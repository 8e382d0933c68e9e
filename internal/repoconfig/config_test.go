package repoconfig

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/guilherme-santos/issuecalendar/internal/extract"
	"github.com/guilherme-santos/issuecalendar/internal/tracker"
)

type fileMap map[string]string

func (f fileMap) ReadFile(_ context.Context, fullRepo, path string) ([]byte, error) {
	data, ok := f[fullRepo+":"+path]
	if !ok {
		return nil, tracker.ErrNotFound
	}
	return []byte(data), nil
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
gcal_token: c2VjcmV0
gcal_calendar: team@group.calendar.google.com
event_label: event
`))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if cfg.Regex != extract.DefaultPattern || cfg.Format != extract.DefaultFormat {
		t.Errorf("defaults not applied: regex=%q format=%q", cfg.Regex, cfg.Format)
	}
	if cfg.Platform != DefaultPlatform {
		t.Errorf("Platform = %q, want %q", cfg.Platform, DefaultPlatform)
	}
	if cfg.Token != "c2VjcmV0" || cfg.Calendar != "team@group.calendar.google.com" || cfg.EventLabel != "event" {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestParse_Overrides(t *testing.T) {
	cfg, err := Parse([]byte(`
regex: '\d{2}/\d{2}/\d{4}'
format: DD/MM/YYYY
calendar_platform: caldav
gcal_token: x
gcal_calendar: /dav/calendars/team/
`))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	s, err := cfg.Settings()
	if err != nil {
		t.Fatalf("Settings() error: %v", err)
	}
	if s.Platform != "caldav" {
		t.Errorf("Platform = %q", s.Platform)
	}
	m, err := s.Rules.Extractor.Extract("Meetup 05/04/2024")
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if m.Date.Month() != time.April || m.Date.Day() != 5 {
		t.Errorf("date = %v, want 2024-04-05", m.Date)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("regex: [unclosed")); err == nil {
		t.Fatal("Parse() succeeded on invalid YAML")
	}
}

func TestSettings_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"missing token", Config{Calendar: "c"}, ErrMissingToken},
		{"missing calendar", Config{Token: "t"}, ErrMissingCalendar},
		{"bad regex", Config{Token: "t", Calendar: "c", Regex: "(\\d"}, ErrInvalidPattern},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.Settings()
			if !errors.Is(err, tt.want) {
				t.Fatalf("Settings() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSettings_NoLabel(t *testing.T) {
	s, err := Config{Token: "t", Calendar: "c"}.Settings()
	if err != nil {
		t.Fatalf("Settings() error: %v", err)
	}
	if s.Rules.EventLabel != "" {
		t.Errorf("EventLabel = %q, want empty", s.Rules.EventLabel)
	}
	if s.Rules.Extractor.Pattern() != extract.DefaultPattern {
		t.Errorf("Pattern() = %q", s.Rules.Extractor.Pattern())
	}
	if s.Platform != DefaultPlatform {
		t.Errorf("Platform = %q", s.Platform)
	}
}

func TestLoader(t *testing.T) {
	files := fileMap{
		"octo/events:" + Path: "gcal_token: t\ngcal_calendar: c\n",
	}
	l := NewLoader(files)

	cfg, err := l.Load(context.Background(), "octo/events")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Token != "t" || cfg.Calendar != "c" {
		t.Errorf("unexpected config: %+v", cfg)
	}

	cfg, err = l.Load(context.Background(), "octo/empty")
	if err != nil {
		t.Fatalf("Load() of a repository without settings: %v", err)
	}
	if _, err := cfg.Settings(); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("Settings() error = %v, want %v", err, ErrMissingToken)
	}
}
