// Package extract pulls a whole-day date out of an issue title.
package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/guilherme-santos/issuecalendar/internal"
)

const (
	DefaultPattern = `(\d{4})-(\d{2})-(\d{2})$`
	DefaultFormat  = "YYYY-MM-DD"
)

var (
	// ErrNoMatch means the pattern did not match the title.
	ErrNoMatch = errors.New("extract: title does not match date pattern")
	// ErrUnparsable means the pattern matched but the text is not a valid date.
	ErrUnparsable = errors.New("extract: matched text is not a valid date")
)

// Match is a successful extraction.
type Match struct {
	Date internal.Date
	// Text is the substring matched by the pattern.
	Text string
	// Summary is the title with Text removed, trimmed.
	Summary string
}

// Extractor applies a compiled pattern and a parse layout. It holds no
// mutable state and is safe for concurrent use.
type Extractor struct {
	pattern *regexp.Regexp
	format  string
	layout  string
}

func New(pattern, format string) (*Extractor, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if format == "" {
		format = DefaultFormat
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("extract: compiling pattern %q: %w", pattern, err)
	}
	return &Extractor{
		pattern: re,
		format:  format,
		layout:  Layout(format),
	}, nil
}

func (e *Extractor) Pattern() string {
	return e.pattern.String()
}

// Extract returns ErrNoMatch or ErrUnparsable when the title carries no
// usable date. Only the first match is considered.
func (e *Extractor) Extract(title string) (Match, error) {
	loc := e.pattern.FindStringIndex(title)
	if loc == nil {
		return Match{}, ErrNoMatch
	}
	text := title[loc[0]:loc[1]]
	t, err := time.Parse(e.layout, text)
	if err != nil {
		return Match{}, fmt.Errorf("%w: %q with format %q: %v", ErrUnparsable, text, e.format, err)
	}
	return Match{
		Date:    internal.NewDateFromTime(t),
		Text:    text,
		Summary: strings.TrimSpace(title[:loc[0]] + title[loc[1]:]),
	}, nil
}

// Extract is a one-shot helper around New and Extractor.Extract. The
// boolean is false when the title has no usable date; err is only set for
// an invalid pattern.
func Extract(title, pattern, format string) (internal.Date, bool, error) {
	e, err := New(pattern, format)
	if err != nil {
		return internal.Date{}, false, err
	}
	m, err := e.Extract(title)
	if err != nil {
		return internal.Date{}, false, nil
	}
	return m.Date, true, nil
}
