package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/guilherme-santos/issuecalendar/calendar/google"
	"github.com/guilherme-santos/issuecalendar/internal/config"
	"github.com/guilherme-santos/issuecalendar/internal/vault"
)

// loadRuntime parses args with the shared flags plus any declared by
// extra.
func loadRuntime(name string, args []string, extra func(*pflag.FlagSet)) (config.Runtime, *pflag.FlagSet, error) {
	fs := config.Flags(name)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s %s:\n\n", os.Args[0], name)
		fmt.Fprintln(os.Stderr, "Options:")
		fs.PrintDefaults()
	}
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		return config.Runtime{}, nil, err
	}
	r, err := config.Load(fs)
	if err != nil {
		return config.Runtime{}, nil, err
	}
	return r, fs, nil
}

func newVault(r config.Runtime) (*vault.Vault, error) {
	if r.TokenSecret == "" {
		return nil, errors.New("token-secret is required")
	}
	return vault.New(r.TokenSecret, r.WorkFactor)
}

func newGoogleClient(r config.Runtime, logger *slog.Logger) (*google.Client, error) {
	if r.GoogleCredentialsFile != "" {
		credFile, err := os.ReadFile(r.GoogleCredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("reading credentials file: %w", err)
		}
		return google.NewClient(credFile, logger)
	}
	if !r.HasGoogleClient() {
		return nil, errors.New("google-credentials-file or gcal-client-id and gcal-client-secret are required")
	}
	cfg := google.NewOAuthConfig(r.GoogleClientID, r.GoogleClientSecret, r.GoogleRedirectURL)
	return google.NewClientFromConfig(cfg, logger), nil
}
