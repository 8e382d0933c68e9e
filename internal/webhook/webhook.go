// Package webhook receives GitHub App deliveries and turns them into
// dispatch notifications.
package webhook

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/go-github/v66/github"

	"github.com/guilherme-santos/issuecalendar/internal"
	"github.com/guilherme-santos/issuecalendar/internal/dispatch"
	"github.com/guilherme-santos/issuecalendar/internal/onboarding"
	"github.com/guilherme-santos/issuecalendar/internal/sqlite"
)

// GitHub caps payloads at 25 MB.
const maxBodySize = 25 << 20

// DeliveryLog remembers delivery ids. RecordDelivery returns the earlier
// delivery when id was already recorded.
type DeliveryLog interface {
	RecordDelivery(ctx context.Context, id, event string, receivedAt time.Time) (*sqlite.Delivery, error)
}

type Handler struct {
	secret     []byte
	logger     *slog.Logger
	deliveries DeliveryLog
	handles    func(dispatch.Kind) bool
	notify     func(*dispatch.Notification)
}

// NewHandler builds the webhook endpoint. handles filters the notification
// kinds worth passing to notify.
func NewHandler(secret []byte, logger *slog.Logger, deliveries DeliveryLog, handles func(dispatch.Kind) bool, notify func(*dispatch.Notification)) *Handler {
	if len(secret) == 0 {
		panic("webhook: secret is required")
	}
	if logger == nil {
		logger = internal.Discard()
	}
	return &Handler{
		secret:     secret,
		logger:     logger,
		deliveries: deliveries,
		handles:    handles,
		notify:     notify,
	}
}

// NewServeMux routes POST /webhook to h and answers GET /healthz.
func NewServeMux(h http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("POST /webhook", h)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	payload, err := github.ValidatePayload(r, h.secret)
	if err != nil {
		h.logger.Warn("Invalid webhook signature", "error", err, "remote_addr", r.RemoteAddr)
		http.Error(w, "", http.StatusUnauthorized)
		return
	}

	eventType := github.WebHookType(r)
	delivery := github.DeliveryID(r)
	if eventType == "" {
		http.Error(w, "missing X-GitHub-Event", http.StatusBadRequest)
		return
	}
	logger := h.logger.With("delivery", delivery, "event", eventType)

	if delivery != "" && h.deliveries != nil {
		prev, err := h.deliveries.RecordDelivery(r.Context(), delivery, eventType, time.Now())
		if err != nil {
			logger.Error("Unable to record delivery", "error", err)
		}
		if prev != nil {
			logger.Info("Duplicate delivery, ignoring", "first_received_at", prev.Received())
			w.WriteHeader(http.StatusOK)
			return
		}
	}

	n, err := translate(eventType, payload)
	if err != nil {
		// Retrying will not fix a payload we cannot parse.
		logger.Error("Unable to parse payload", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}
	if n == nil || !h.handles(n.Kind) {
		logger.Debug("Ignoring event")
		w.WriteHeader(http.StatusOK)
		return
	}

	n.Delivery = delivery
	logger.Info("Webhook received", "kind", string(n.Kind), "repo", n.Repo)
	h.notify(n)
	w.WriteHeader(http.StatusAccepted)
}

// translate returns nil for event types the app does not consume.
func translate(eventType string, payload []byte) (*dispatch.Notification, error) {
	switch eventType {
	case "installation", "issues", "issue_comment":
	default:
		return nil, nil
	}
	event, err := github.ParseWebHook(eventType, payload)
	if err != nil {
		return nil, err
	}

	switch e := event.(type) {
	case *github.InstallationEvent:
		n := &dispatch.Notification{
			Kind:         kind(eventType, e.GetAction()),
			Installation: e.GetInstallation().GetID(),
			Sender:       e.GetSender().GetLogin(),
		}
		for _, repo := range e.Repositories {
			n.Repositories = append(n.Repositories, repo.GetFullName())
		}
		return n, nil

	case *github.IssuesEvent:
		n := &dispatch.Notification{
			Kind:         kind(eventType, e.GetAction()),
			Installation: e.GetInstallation().GetID(),
			Repo:         e.GetRepo().GetFullName(),
			Sender:       e.GetSender().GetLogin(),
			Issue:        issueRef(e.GetRepo().GetFullName(), e.GetIssue()),
			Label:        e.GetLabel().GetName(),
		}
		if e.Changes != nil && e.Changes.Title != nil {
			n.PreviousTitle = e.Changes.Title.GetFrom()
		}
		return n, nil

	case *github.IssueCommentEvent:
		issue := e.GetIssue()
		return &dispatch.Notification{
			Kind:         kind(eventType, e.GetAction()),
			Installation: e.GetInstallation().GetID(),
			Repo:         e.GetRepo().GetFullName(),
			Sender:       e.GetSender().GetLogin(),
			Issue:        issueRef(e.GetRepo().GetFullName(), issue),
			Comment: onboarding.Comment{
				Repo:          e.GetRepo().GetFullName(),
				IssueNumber:   issue.GetNumber(),
				IssueTitle:    issue.GetTitle(),
				IssueAuthorID: issue.GetUser().GetID(),
				AuthorID:      e.GetComment().GetUser().GetID(),
				Body:          e.GetComment().GetBody(),
			},
		}, nil
	}
	return nil, nil
}

func kind(eventType, action string) dispatch.Kind {
	return dispatch.Kind(eventType + "." + action)
}

func issueRef(fullRepo string, issue *github.Issue) internal.IssueRef {
	ref := internal.IssueRef{
		Repo:   fullRepo,
		Number: issue.GetNumber(),
		URL:    issue.GetHTMLURL(),
		Title:  issue.GetTitle(),
		Body:   issue.GetBody(),
	}
	for _, l := range issue.Labels {
		ref.Labels = append(ref.Labels, l.GetName())
	}
	return ref
}
