// Package onboarding turns an OAuth authorization code, pasted as a
// comment on the setup issue, into an encrypted calendar credential.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/oauth2"

	"github.com/guilherme-santos/issuecalendar/internal"
	"github.com/guilherme-santos/issuecalendar/internal/tracker"
	"github.com/guilherme-santos/issuecalendar/internal/vault"
)

const (
	IssueTitle = "[Issue Calendar] Configuration Needed"
	// ReplyMarker starts the comment that carries the encrypted token.
	ReplyMarker = "🌟"
)

const issueBody = "🎉 Thanks for installing Issue Calendar! It needs a little setup before it can add events.\n\n" +
	"Visit [this page](%s), accept the permissions, then comment on this issue with the code it shows you."

const replyBody = ReplyMarker + " Thanks! Use this value as `gcal_token` in `.github/calendar.yml`:\n" +
	"```\n%s\n```\n" +
	"You also need the ID of the calendar to add events to, set as `gcal_calendar`. " +
	"[This page](https://developers.google.com/calendar/v3/reference/calendarList/list) lists your calendars and their IDs.\n\n" +
	"That's it. Feel free to close this issue and delete the comment with the code."

type Authorizer interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

type Claims interface {
	ClaimReply(ctx context.Context, repo string, issueNumber int) (bool, error)
	ReleaseReply(ctx context.Context, repo string, issueNumber int) error
}

// Comment is a new comment on an issue.
type Comment struct {
	Repo          string
	IssueNumber   int
	IssueTitle    string
	IssueAuthorID int64
	AuthorID      int64
	Body          string
}

type Flow struct {
	logger    *slog.Logger
	auth      Authorizer
	vault     *vault.Vault
	claims    Claims
	appUserID int64
}

// New builds the flow. appUserID is the account the App posts as.
func New(logger *slog.Logger, auth Authorizer, v *vault.Vault, claims Claims, appUserID int64) *Flow {
	if logger == nil {
		logger = internal.Discard()
	}
	return &Flow{
		logger:    logger,
		auth:      auth,
		vault:     v,
		claims:    claims,
		appUserID: appUserID,
	}
}

// Installed opens the setup issue on every repository, assigned to the
// user who installed the App.
func (f *Flow) Installed(ctx context.Context, repos tracker.Repos, fullRepos []string, sender string) error {
	var errs []error
	for _, fullRepo := range fullRepos {
		body := fmt.Sprintf(issueBody, f.auth.AuthURL(fullRepo))
		n, err := repos.CreateIssue(ctx, fullRepo, IssueTitle, body, sender)
		if err != nil {
			f.logger.Error("Unable to open setup issue", "repo", fullRepo, "error", err)
			errs = append(errs, err)
			continue
		}
		f.logger.Info("Setup issue opened", "repo", fullRepo, "issue", n)
	}
	return errors.Join(errs...)
}

// Commented answers a code posted on the setup issue. Each setup issue is
// answered at most once; a failed exchange frees it for another code.
func (f *Flow) Commented(ctx context.Context, repos tracker.Repos, c Comment) error {
	logger := f.logger.With("repo", c.Repo, "issue", c.IssueNumber)

	if c.IssueTitle != IssueTitle || c.IssueAuthorID != f.appUserID {
		logger.Debug("Not a setup issue")
		return nil
	}
	if c.AuthorID == f.appUserID {
		return nil
	}

	replied, err := repos.HasComment(ctx, c.Repo, c.IssueNumber, f.appUserID, ReplyMarker)
	if err != nil {
		return err
	}
	if replied {
		logger.Info("Setup issue already answered")
		return nil
	}
	claimed, err := f.claims.ClaimReply(ctx, c.Repo, c.IssueNumber)
	if err != nil {
		return fmt.Errorf("claiming setup issue: %w", err)
	}
	if !claimed {
		logger.Info("Setup issue already answered")
		return nil
	}

	tok, err := f.auth.Exchange(ctx, strings.TrimSpace(c.Body))
	if err != nil {
		// The code was not redeemed, so a later comment may try again.
		if rerr := f.claims.ReleaseReply(context.WithoutCancel(ctx), c.Repo, c.IssueNumber); rerr != nil {
			logger.Error("Unable to release setup issue", "error", rerr)
		}
		return err
	}
	// From here on the code is spent. The claim stays so a redelivery does
	// not redeem it a second time.
	if err := f.reply(ctx, repos, c, tok); err != nil {
		logger.Error("Credential exchanged but reply failed", "error", err)
		return err
	}
	logger.Info("Credential posted")
	return nil
}

func (f *Flow) reply(ctx context.Context, repos tracker.Repos, c Comment, tok *oauth2.Token) error {
	ciphertext, err := f.vault.EncryptJSON(tok)
	if err != nil {
		return err
	}
	return repos.CreateComment(ctx, c.Repo, c.IssueNumber, fmt.Sprintf(replyBody, ciphertext))
}
