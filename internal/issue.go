package internal

import (
	"strconv"
	"strings"
)

// IssueRef is what the synchronizer needs to know about an issue. It is
// derived from each notification and never stored.
type IssueRef struct {
	Repo   string
	Number int
	URL    string
	Title  string
	Body   string
	Labels []string
}

func (i IssueRef) HasLabel(name string) bool {
	for _, l := range i.Labels {
		if l == name {
			return true
		}
	}
	return false
}

func (i IssueRef) String() string {
	if i.Number == 0 {
		return i.URL
	}
	return i.Repo + "#" + strconv.Itoa(i.Number)
}

// SplitRepo splits an "owner/repo" full name.
func SplitRepo(fullName string) (owner, repo string) {
	owner, repo, _ = strings.Cut(fullName, "/")
	return owner, repo
}
