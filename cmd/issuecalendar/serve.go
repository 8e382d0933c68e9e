package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/robfig/cron/v3"

	"github.com/guilherme-santos/issuecalendar/calendar"
	"github.com/guilherme-santos/issuecalendar/calendar/caldav"
	"github.com/guilherme-santos/issuecalendar/calendar/google"
	"github.com/guilherme-santos/issuecalendar/internal"
	"github.com/guilherme-santos/issuecalendar/internal/dispatch"
	"github.com/guilherme-santos/issuecalendar/internal/onboarding"
	"github.com/guilherme-santos/issuecalendar/internal/sqlite"
	"github.com/guilherme-santos/issuecalendar/internal/syncer"
	"github.com/guilherme-santos/issuecalendar/internal/tracker"
	"github.com/guilherme-santos/issuecalendar/internal/webhook"
)

var ServeCommand = _serveCommand{
	Name:        "serve",
	Description: "Receive GitHub App webhooks and keep calendars in sync",
}

type _serveCommand struct {
	Name        string
	Description string
}

func (s _serveCommand) Run(ctx context.Context, args []string) error {
	r, _, err := loadRuntime(s.Name, args, nil)
	if err != nil {
		return err
	}
	if err := r.ValidateServe(); err != nil {
		return err
	}
	logger := internal.NewLogger(os.Stderr, r.Verbose)

	db, err := sqlite.Open(r.Database)
	if err != nil {
		return err
	}
	storage := sqlite.NewStorage(db)
	defer storage.Close()

	v, err := newVault(r)
	if err != nil {
		return err
	}
	googleCal, err := newGoogleClient(r, logger)
	if err != nil {
		return err
	}
	mux := calendar.NewMux()
	mux.Register(google.Platform, googleCal)
	mux.Register(caldav.Platform, caldav.NewClient(nil, logger))

	key, err := os.ReadFile(r.AppPrivateKeyFile)
	if err != nil {
		return fmt.Errorf("reading app private key: %w", err)
	}
	app, err := tracker.NewApp(r.AppID, key, r.GitHubURL)
	if err != nil {
		return err
	}

	flow := onboarding.New(logger, googleCal, v, storage, r.AppUserID)
	d := dispatch.New(logger, app, syncer.New(logger, mux), flow, v)
	// In-flight notifications outlive the shutdown signal, bounded by
	// their own timeout.
	runner := dispatch.NewRunner(context.WithoutCancel(ctx), d, r.Timeout)

	handler := webhook.NewHandler([]byte(r.WebhookSecret), logger, storage, d.Handles, runner.Go)
	server := &http.Server{
		Addr:              r.Listen,
		Handler:           webhook.NewServeMux(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sched := cron.New()
	_, err = sched.AddFunc(r.PruneSchedule, func() {
		n, err := storage.PruneDeliveries(context.Background(), time.Now().Add(-r.DeliveryRetention))
		if err != nil {
			logger.Error("Unable to prune deliveries", "error", err)
			return
		}
		logger.Debug("Deliveries pruned", "count", n)
	})
	if err != nil {
		return fmt.Errorf("prune schedule %q: %w", r.PruneSchedule, err)
	}
	sched.Start()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Listening for webhooks", "addr", r.Listen, "platforms", mux.Platforms())
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			<-sched.Stop().Done()
			return err
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), r.Timeout+5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Unable to shut down server", "error", err)
	}
	<-sched.Stop().Done()
	if err := runner.Wait(shutdownCtx); err != nil {
		return fmt.Errorf("waiting for in-flight notifications: %w", err)
	}
	return nil
}
