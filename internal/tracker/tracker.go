// Package tracker talks to GitHub on behalf of the App installations.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v66/github"

	"github.com/guilherme-santos/issuecalendar/internal"
)

var ErrNotFound = errors.New("tracker: not found")

// Repos is the subset of the issue tracker API the app uses, scoped to a
// single installation.
type Repos interface {
	CreateIssue(ctx context.Context, fullRepo, title, body, assignee string) (int, error)
	CreateComment(ctx context.Context, fullRepo string, number int, body string) error
	// HasComment reports whether authorID already left a comment starting
	// with prefix on the issue.
	HasComment(ctx context.Context, fullRepo string, number int, authorID int64, prefix string) (bool, error)
	ReadFile(ctx context.Context, fullRepo, path string) ([]byte, error)
}

// App mints installation clients for a GitHub App.
type App struct {
	appID   int64
	key     []byte
	baseURL string

	mu      sync.Mutex
	clients map[int64]*Client
}

// NewApp validates the private key. baseURL is empty for github.com.
func NewApp(appID int64, privateKey []byte, baseURL string) (*App, error) {
	if _, err := ghinstallation.NewAppsTransport(http.DefaultTransport, appID, privateKey); err != nil {
		return nil, fmt.Errorf("tracker: loading app key: %w", err)
	}
	return &App{
		appID:   appID,
		key:     privateKey,
		baseURL: baseURL,
		clients: make(map[int64]*Client),
	}, nil
}

// Installation returns the client acting as the given installation.
// Clients are cached so installation tokens are reused until they expire.
func (a *App) Installation(id int64) (Repos, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if c, ok := a.clients[id]; ok {
		return c, nil
	}
	tr, err := ghinstallation.New(http.DefaultTransport, a.appID, id, a.key)
	if err != nil {
		return nil, fmt.Errorf("tracker: installation %d: %w", id, err)
	}
	if a.baseURL != "" {
		tr.BaseURL = strings.TrimSuffix(a.baseURL, "/")
	}
	c, err := NewClient(&http.Client{Transport: tr}, a.baseURL)
	if err != nil {
		return nil, err
	}
	a.clients[id] = c
	return c, nil
}

type Client struct {
	gh *github.Client
}

func NewClient(httpClient *http.Client, baseURL string) (*Client, error) {
	gh := github.NewClient(httpClient)
	if baseURL != "" {
		var err error
		gh, err = gh.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, fmt.Errorf("tracker: base url: %w", err)
		}
	}
	return &Client{gh: gh}, nil
}

func (c *Client) CreateIssue(ctx context.Context, fullRepo, title, body, assignee string) (int, error) {
	owner, repo := internal.SplitRepo(fullRepo)
	req := &github.IssueRequest{
		Title: github.String(title),
		Body:  github.String(body),
	}
	if assignee != "" {
		req.Assignee = github.String(assignee)
	}
	issue, _, err := c.gh.Issues.Create(ctx, owner, repo, req)
	if err != nil {
		return 0, fmt.Errorf("tracker: creating issue on %s: %w", fullRepo, wrapNotFound(err))
	}
	return issue.GetNumber(), nil
}

func (c *Client) CreateComment(ctx context.Context, fullRepo string, number int, body string) error {
	owner, repo := internal.SplitRepo(fullRepo)
	_, _, err := c.gh.Issues.CreateComment(ctx, owner, repo, number, &github.IssueComment{
		Body: github.String(body),
	})
	if err != nil {
		return fmt.Errorf("tracker: commenting on %s#%d: %w", fullRepo, number, wrapNotFound(err))
	}
	return nil
}

func (c *Client) HasComment(ctx context.Context, fullRepo string, number int, authorID int64, prefix string) (bool, error) {
	owner, repo := internal.SplitRepo(fullRepo)
	opts := &github.IssueListCommentsOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}
	for {
		comments, resp, err := c.gh.Issues.ListComments(ctx, owner, repo, number, opts)
		if err != nil {
			return false, fmt.Errorf("tracker: listing comments on %s#%d: %w", fullRepo, number, wrapNotFound(err))
		}
		for _, comment := range comments {
			if comment.GetUser().GetID() == authorID && strings.HasPrefix(comment.GetBody(), prefix) {
				return true, nil
			}
		}
		if resp.NextPage == 0 {
			return false, nil
		}
		opts.Page = resp.NextPage
	}
}

func (c *Client) ReadFile(ctx context.Context, fullRepo, path string) ([]byte, error) {
	owner, repo := internal.SplitRepo(fullRepo)
	file, _, _, err := c.gh.Repositories.GetContents(ctx, owner, repo, path, nil)
	if err != nil {
		return nil, fmt.Errorf("tracker: reading %s from %s: %w", path, fullRepo, wrapNotFound(err))
	}
	if file == nil {
		return nil, fmt.Errorf("tracker: %s in %s is a directory", path, fullRepo)
	}
	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("tracker: decoding %s from %s: %w", path, fullRepo, err)
	}
	return []byte(content), nil
}

func wrapNotFound(err error) error {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
