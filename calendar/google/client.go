package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/guilherme-santos/issuecalendar/internal"
)

const Platform = "google"

type Client struct {
	oauthCfg *oauth2.Config
	logger   *slog.Logger

	// RetrySleep and MaxRetries bound the retries on rateLimitExceeded.
	RetrySleep time.Duration
	MaxRetries int
	// Endpoint overrides the Calendar API base URL, used by tests.
	Endpoint string
}

// NewClient builds a client from a Google OAuth client credentials file.
func NewClient(credJSON []byte, logger *slog.Logger) (*Client, error) {
	oauthCfg, err := google.ConfigFromJSON(credJSON, calendar.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("google: parsing credentials file: %v", err)
	}
	return NewClientFromConfig(oauthCfg, logger), nil
}

// NewOAuthConfig builds the OAuth client configuration from its parts.
func NewOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{calendar.CalendarEventsScope},
	}
}

func NewClientFromConfig(oauthCfg *oauth2.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = internal.Discard()
	}
	return &Client{
		oauthCfg:   oauthCfg,
		logger:     logger,
		RetrySleep: defaultSleep,
		MaxRetries: defaultMaxRetries,
	}
}

const (
	defaultSleep      = 5 * time.Second
	defaultMaxRetries = 3
)

func (c *Client) Events(ctx context.Context, cal *internal.Calendar, from, to time.Time) (internal.Iterator, error) {
	svc, err := c.calendarSvc(ctx, cal)
	if err != nil {
		return nil, err
	}
	eventsCall := svc.Events.
		List(cal.ProviderID).
		Context(ctx).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339))

	it := newEventIterator()
	go c.events(ctx, cal, eventsCall, it.events)
	return it, nil
}

func (c *Client) events(ctx context.Context, cal *internal.Calendar, call *calendar.EventsListCall, eventCh chan eventOrError) {
	logger := internal.CalendarLogger(c.logger, cal)
	logger.Debug("google: listing events")

	defer close(eventCh)

	var nextPageToken string
	for {
		var events *calendar.Events
		err := c.retry(ctx, func() error {
			var err error
			events, err = call.PageToken(nextPageToken).Do()
			return err
		})
		if err != nil {
			logger.Error("google: unable to get list of events", "error", err)
			select {
			case eventCh <- eventOrError{err: err}:
			case <-ctx.Done():
			}
			return
		}

		for _, item := range events.Items {
			select {
			case eventCh <- eventOrError{e: newEvent(item)}:
			case <-ctx.Done():
				return
			}
		}
		nextPageToken = events.NextPageToken
		if nextPageToken == "" {
			return
		}
	}
}

func (c *Client) CreateEvent(ctx context.Context, cal *internal.Calendar, req *internal.Event) (*internal.Event, error) {
	logger := internal.CalendarLogger(c.logger, cal).With("summary", req.Summary, "date", req.StartsOn.String())

	svc, err := c.calendarSvc(ctx, cal)
	if err != nil {
		logger.Error("google: creating event", "error", err)
		return nil, err
	}

	var gevent *calendar.Event
	err = c.retry(ctx, func() error {
		var err error
		gevent, err = svc.Events.Insert(cal.ProviderID, newGoogleEvent(req)).Context(ctx).Do()
		return err
	})
	if err != nil {
		logger.Error("google: creating event", "error", err)
		return nil, err
	}
	logger.Info("google: event created", "event_id", gevent.Id)
	return newEvent(gevent), nil
}

func (c *Client) UpdateEvent(ctx context.Context, cal *internal.Calendar, req *internal.Event) error {
	logger := internal.CalendarLogger(c.logger, cal).With("event_id", req.ID, "date", req.StartsOn.String())

	svc, err := c.calendarSvc(ctx, cal)
	if err != nil {
		logger.Error("google: updating event", "error", err)
		return err
	}
	err = c.retry(ctx, func() error {
		_, err := svc.Events.Update(cal.ProviderID, req.ID, newGoogleEvent(req)).Context(ctx).Do()
		return err
	})
	if err != nil {
		logger.Error("google: updating event", "error", err)
		return err
	}
	logger.Info("google: event updated")
	return nil
}

func (c *Client) DeleteEvent(ctx context.Context, cal *internal.Calendar, id string) error {
	logger := internal.CalendarLogger(c.logger, cal).With("event_id", id)

	svc, err := c.calendarSvc(ctx, cal)
	if err != nil {
		logger.Error("google: deleting event", "error", err)
		return err
	}
	err = c.retry(ctx, func() error {
		return svc.Events.Delete(cal.ProviderID, id).Context(ctx).Do()
	})
	if err != nil && !alreadyDeleted(err) {
		logger.Error("google: deleting event", "error", err)
		return err
	}
	logger.Info("google: event deleted")
	return nil
}

// retry runs fn until it succeeds, fails with something other than a rate
// limit, or MaxRetries is exhausted.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !shouldRetry(err) || attempt >= c.MaxRetries {
			return err
		}
		select {
		case <-time.After(c.RetrySleep):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// AuthURL is the consent page the user visits to grant calendar access.
func (c *Client) AuthURL(state string) string {
	return c.oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token.
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := c.oauthCfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("google: exchanging authorization code: %w", err)
	}
	return tok, nil
}

// Login runs the authorization flow against a local callback server on
// addr. showURL is called with the consent page URL.
func (c *Client) Login(ctx context.Context, addr string, showURL func(authURL string)) (*oauth2.Token, error) {
	state := fmt.Sprintf("issuecalendar-%d", time.Now().UTC().UnixNano())

	cfg := *c.oauthCfg
	cfg.RedirectURL = "http://" + loopbackAddr(addr) + "/issuecalendar"
	showURL(cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce))

	mux := http.NewServeMux()
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	var (
		token   *oauth2.Token
		authErr error
	)

	mux.HandleFunc("/issuecalendar", func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			go server.Shutdown(context.WithoutCancel(ctx))
		}()

		query := req.URL.Query()
		if query.Get("state") != state {
			authErr = errors.New("oauth link is not valid")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		token, authErr = cfg.Exchange(ctx, query.Get("code"))
		if authErr != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintln(w, "Unable to retrieve token:", authErr)
			return
		}

		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "All good, you can close this window!")
	})

	go func() {
		<-ctx.Done()
		server.Close()
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return nil, err
	}
	if authErr != nil {
		return nil, authErr
	}
	if token == nil {
		return nil, ctx.Err()
	}
	return token, nil
}

func loopbackAddr(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil || host == "" {
		return "localhost:" + port
	}
	return addr
}

func (c *Client) calendarSvc(ctx context.Context, cal *internal.Calendar) (*calendar.Service, error) {
	var tok *oauth2.Token
	err := json.Unmarshal([]byte(cal.Account.Auth), &tok)
	if err != nil {
		return nil, fmt.Errorf("google: decoding token: %w", err)
	}
	if tok == nil || (tok.AccessToken == "" && tok.RefreshToken == "") {
		return nil, errors.New("google: token has neither access nor refresh token")
	}
	opts := []option.ClientOption{option.WithHTTPClient(c.oauthCfg.Client(ctx, tok))}
	if c.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.Endpoint))
	}
	return calendar.NewService(ctx, opts...)
}

func shouldRetry(err error) bool {
	return errIsReason(err, "rateLimitExceeded")
}

func alreadyDeleted(err error) bool {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) && gErr.Code == http.StatusGone {
		return true
	}
	return errIsReason(err, "deleted")
}

func errIsReason(err error, reason string) bool {
	var gErr *googleapi.Error
	if !errors.As(err, &gErr) {
		return false
	}

	for _, err := range gErr.Errors {
		switch err.Reason {
		case reason:
			return true
		}
	}
	return false
}
