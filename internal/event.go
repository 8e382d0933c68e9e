package internal

import (
	"strings"
	"unicode"
)

// Event is a whole-day entry in an external calendar.
type Event struct {
	ID          string
	Summary     string
	Description string
	StartsOn    Date
	EndsOn      Date
}

// IssueDescription builds the description of an event that represents an
// issue. The issue URL comes first so RepresentsIssue can find it again.
func IssueDescription(issueURL, body string) string {
	return issueURL + "\n\n" + body
}

// RepresentsIssue reports whether the event description begins with
// issueURL. The URL must be followed by whitespace or the end of the
// description: https://x/issues/1 does not match https://x/issues/12.
func (e Event) RepresentsIssue(issueURL string) bool {
	if issueURL == "" || !strings.HasPrefix(e.Description, issueURL) {
		return false
	}
	rest := e.Description[len(issueURL):]
	if rest == "" {
		return true
	}
	return unicode.IsSpace(rune(rest[0]))
}
