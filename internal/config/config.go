// Package config loads the server's runtime settings from flags, the
// environment and an optional YAML file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "ISSUECALENDAR"

type Runtime struct {
	ConfigFile string
	Verbose    bool

	Listen   string
	Database string

	WebhookSecret     string
	AppID             int64
	AppPrivateKeyFile string
	// AppUserID is the account the App comments as.
	AppUserID int64
	// GitHubURL is the API base URL, empty for github.com.
	GitHubURL string

	GoogleCredentialsFile string
	GoogleClientID        string
	GoogleClientSecret    string
	GoogleRedirectURL     string

	TokenSecret string
	WorkFactor  int

	Timeout           time.Duration
	DeliveryRetention time.Duration
	PruneSchedule     string
}

// Flags declares every setting as a flag on a new set.
func Flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "YAML config file")
	fs.BoolP("verbose", "v", false, "debug logging")
	fs.String("listen", ":3000", "address to serve webhooks on")
	fs.String("database", "issuecalendar.db", "sqlite database file")
	fs.String("webhook-secret", "", "GitHub App webhook secret")
	fs.Int64("app-id", 0, "GitHub App id")
	fs.String("app-private-key-file", "", "GitHub App private key (PEM)")
	fs.Int64("app-user-id", 0, "user id the GitHub App posts as")
	fs.String("github-url", "", "GitHub API base URL (GitHub Enterprise)")
	fs.String("google-credentials-file", "", "Google OAuth client credentials JSON")
	fs.String("gcal-client-id", "", "Google OAuth client id")
	fs.String("gcal-client-secret", "", "Google OAuth client secret")
	fs.String("gcal-redirect-url", "", "Google OAuth redirect URL")
	fs.String("token-secret", "", "passphrase protecting calendar credentials")
	fs.Int("work-factor", 15, "scrypt work factor for new credentials")
	fs.Duration("timeout", 30*time.Second, "time allowed to handle one notification")
	fs.Duration("delivery-retention", 72*time.Hour, "how long webhook delivery ids are kept")
	fs.String("prune-schedule", "@hourly", "cron schedule for pruning delivery ids")
	return fs
}

// Load reads the settings. fs must come from Flags and be parsed.
func Load(fs *pflag.FlagSet) (Runtime, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return Runtime{}, fmt.Errorf("config: binding flags: %w", err)
	}
	_ = v.BindEnv("app-user-id", envPrefix+"_APP_USER_ID", "APP_USER_ID")
	_ = v.BindEnv("gcal-client-id", envPrefix+"_GCAL_CLIENT_ID", "GCAL_CLIENT_ID")
	_ = v.BindEnv("gcal-client-secret", envPrefix+"_GCAL_CLIENT_SECRET", "GCAL_CLIENT_SECRET")
	_ = v.BindEnv("gcal-redirect-url", envPrefix+"_GCAL_REDIRECT_URL", "GCAL_REDIRECT_URL")
	_ = v.BindEnv("token-secret", envPrefix+"_TOKEN_SECRET", "GCAL_TOKEN_SECRET")
	_ = v.BindEnv("webhook-secret", envPrefix+"_WEBHOOK_SECRET", "WEBHOOK_SECRET")
	_ = v.BindEnv("app-id", envPrefix+"_APP_ID", "APP_ID")

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Runtime{}, fmt.Errorf("config: reading %s: %w", file, err)
		}
	}

	r := Runtime{
		ConfigFile:            v.GetString("config"),
		Verbose:               v.GetBool("verbose"),
		Listen:                strings.TrimSpace(v.GetString("listen")),
		Database:              strings.TrimSpace(v.GetString("database")),
		WebhookSecret:         v.GetString("webhook-secret"),
		AppID:                 v.GetInt64("app-id"),
		AppPrivateKeyFile:     strings.TrimSpace(v.GetString("app-private-key-file")),
		AppUserID:             v.GetInt64("app-user-id"),
		GitHubURL:             strings.TrimSpace(v.GetString("github-url")),
		GoogleCredentialsFile: strings.TrimSpace(v.GetString("google-credentials-file")),
		GoogleClientID:        v.GetString("gcal-client-id"),
		GoogleClientSecret:    v.GetString("gcal-client-secret"),
		GoogleRedirectURL:     v.GetString("gcal-redirect-url"),
		TokenSecret:           v.GetString("token-secret"),
		WorkFactor:            v.GetInt("work-factor"),
		Timeout:               v.GetDuration("timeout"),
		DeliveryRetention:     v.GetDuration("delivery-retention"),
		PruneSchedule:         strings.TrimSpace(v.GetString("prune-schedule")),
	}
	if r.Timeout <= 0 {
		r.Timeout = 30 * time.Second
	}
	if r.DeliveryRetention <= 0 {
		r.DeliveryRetention = 72 * time.Hour
	}
	if r.PruneSchedule == "" {
		r.PruneSchedule = "@hourly"
	}
	return r, nil
}

// HasGoogleClient reports whether an OAuth client is configured.
func (r Runtime) HasGoogleClient() bool {
	return r.GoogleCredentialsFile != "" || (r.GoogleClientID != "" && r.GoogleClientSecret != "")
}

// ValidateServe lists every setting the webhook server cannot run without.
func (r Runtime) ValidateServe() error {
	var errs []error
	if r.WebhookSecret == "" {
		errs = append(errs, errors.New("webhook-secret is required"))
	}
	if r.AppID == 0 {
		errs = append(errs, errors.New("app-id is required"))
	}
	if r.AppPrivateKeyFile == "" {
		errs = append(errs, errors.New("app-private-key-file is required"))
	}
	if r.AppUserID == 0 {
		errs = append(errs, errors.New("app-user-id is required"))
	}
	if r.TokenSecret == "" {
		errs = append(errs, errors.New("token-secret is required"))
	}
	if !r.HasGoogleClient() {
		errs = append(errs, errors.New("google-credentials-file or gcal-client-id and gcal-client-secret are required"))
	}
	return errors.Join(errs...)
}
