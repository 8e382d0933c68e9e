// Package dispatch routes issue tracker notifications to the onboarding
// flow or the event synchronizer.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/guilherme-santos/issuecalendar/internal"
	"github.com/guilherme-santos/issuecalendar/internal/onboarding"
	"github.com/guilherme-santos/issuecalendar/internal/repoconfig"
	"github.com/guilherme-santos/issuecalendar/internal/syncer"
	"github.com/guilherme-santos/issuecalendar/internal/tracker"
	"github.com/guilherme-santos/issuecalendar/internal/vault"
)

type Kind string

const (
	InstallationCreated Kind = "installation.created"
	CommentCreated      Kind = "issue_comment.created"
	IssueOpened         Kind = "issues.opened"
	IssueLabeled        Kind = "issues.labeled"
	IssueUnlabeled      Kind = "issues.unlabeled"
	IssueEdited         Kind = "issues.edited"
)

// Notification is one inbound event, already validated and decoded.
type Notification struct {
	Kind         Kind
	Delivery     string
	Installation int64
	Repo         string
	Sender       string

	// Repositories is set on InstallationCreated.
	Repositories []string
	// Issue is set on issue notifications.
	Issue internal.IssueRef
	// Label is the label added or removed.
	Label string
	// PreviousTitle is the title before an edit, when the edit changed it.
	PreviousTitle string
	// Comment is set on CommentCreated.
	Comment onboarding.Comment
}

type HandlerFunc func(ctx context.Context, n *Notification) error

// Installations hands out tracker clients acting as an App installation.
type Installations interface {
	Installation(id int64) (tracker.Repos, error)
}

type Dispatcher struct {
	logger     *slog.Logger
	apps       Installations
	syncer     *syncer.Syncer
	onboarding *onboarding.Flow
	vault      *vault.Vault
	handlers   map[Kind]HandlerFunc
}

func New(logger *slog.Logger, apps Installations, s *syncer.Syncer, flow *onboarding.Flow, v *vault.Vault) *Dispatcher {
	if logger == nil {
		logger = internal.Discard()
	}
	d := &Dispatcher{
		logger:     logger,
		apps:       apps,
		syncer:     s,
		onboarding: flow,
		vault:      v,
	}
	d.handlers = map[Kind]HandlerFunc{
		InstallationCreated: d.installed,
		CommentCreated:      d.commented,
		IssueOpened:         d.issue(syncer.Opened),
		IssueLabeled:        d.issue(syncer.Labeled),
		IssueUnlabeled:      d.issue(syncer.Unlabeled),
		IssueEdited:         d.issue(syncer.Edited),
	}
	return d
}

// Handles reports whether there is a handler for the kind.
func (d *Dispatcher) Handles(k Kind) bool {
	_, ok := d.handlers[k]
	return ok
}

// Dispatch runs the handler for n. Failures, panics included, are logged
// and returned; they never affect other notifications.
func (d *Dispatcher) Dispatch(ctx context.Context, n *Notification) (err error) {
	logger := d.logger.With("delivery", n.Delivery, "kind", string(n.Kind), "repo", n.Repo)
	if n.Issue.Number != 0 {
		logger = logger.With("issue", n.Issue.Number)
	}

	handler, ok := d.handlers[n.Kind]
	if !ok {
		logger.Debug("No handler for notification")
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch: panic handling %s: %v", n.Kind, r)
			logger.Error("Handler panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	if err := handler(ctx, n); err != nil {
		logger.Error("Unable to handle notification", "error", err)
		return err
	}
	logger.Debug("Notification handled")
	return nil
}

func (d *Dispatcher) installed(ctx context.Context, n *Notification) error {
	repos, err := d.apps.Installation(n.Installation)
	if err != nil {
		return err
	}
	return d.onboarding.Installed(ctx, repos, n.Repositories, n.Sender)
}

func (d *Dispatcher) commented(ctx context.Context, n *Notification) error {
	repos, err := d.apps.Installation(n.Installation)
	if err != nil {
		return err
	}
	return d.onboarding.Commented(ctx, repos, n.Comment)
}

func (d *Dispatcher) issue(kind syncer.Kind) HandlerFunc {
	return func(ctx context.Context, n *Notification) error {
		repos, err := d.apps.Installation(n.Installation)
		if err != nil {
			return err
		}
		cal, rules, err := d.resolve(ctx, repos, n.Repo)
		if err != nil {
			return err
		}
		_, err = d.syncer.Sync(ctx, cal, rules, syncer.Request{
			Kind:          kind,
			Issue:         n.Issue,
			Label:         n.Label,
			PreviousTitle: n.PreviousTitle,
		})
		return err
	}
}

// resolve builds the calendar and rules for a repository from its
// settings file. The credential is decrypted for this notification only.
func (d *Dispatcher) resolve(ctx context.Context, repos tracker.Repos, fullRepo string) (*internal.Calendar, syncer.Rules, error) {
	cfg, err := repoconfig.NewLoader(repos).Load(ctx, fullRepo)
	if err != nil {
		return nil, syncer.Rules{}, err
	}
	settings, err := cfg.Settings()
	if err != nil {
		return nil, syncer.Rules{}, err
	}
	cred, err := d.vault.DecryptCredential(settings.Token)
	if err != nil {
		return nil, syncer.Rules{}, err
	}
	cal := &internal.Calendar{
		ProviderID: settings.Calendar,
		Account: internal.Account{
			Platform: settings.Platform,
			Name:     fullRepo,
			Auth:     cred,
		},
	}
	return cal, settings.Rules, nil
}
