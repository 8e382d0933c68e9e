// Package repoconfig reads the per-repository calendar settings kept in
// .github/calendar.yml.
package repoconfig

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/guilherme-santos/issuecalendar/internal/extract"
	"github.com/guilherme-santos/issuecalendar/internal/syncer"
	"github.com/guilherme-santos/issuecalendar/internal/tracker"
)

// Path is where the settings live inside the repository.
const Path = ".github/calendar.yml"

const DefaultPlatform = "google"

var (
	ErrMissingToken    = errors.New("repoconfig: no gcal_token set")
	ErrMissingCalendar = errors.New("repoconfig: no gcal_calendar set")
	ErrInvalidPattern  = errors.New("repoconfig: invalid regex")
)

type Config struct {
	Regex  string `yaml:"regex"`
	Format string `yaml:"format"`
	// Token is the encrypted credential produced by onboarding or the
	// encrypt command.
	Token      string `yaml:"gcal_token"`
	Calendar   string `yaml:"gcal_calendar"`
	EventLabel string `yaml:"event_label,omitempty"`
	Platform   string `yaml:"calendar_platform,omitempty"`
}

func Default() Config {
	return Config{
		Regex:    extract.DefaultPattern,
		Format:   extract.DefaultFormat,
		Platform: DefaultPlatform,
	}
}

// Normalize fills empty keys with their defaults.
func (c *Config) Normalize() {
	d := Default()
	if c.Regex == "" {
		c.Regex = d.Regex
	}
	if c.Format == "" {
		c.Format = d.Format
	}
	if c.Platform == "" {
		c.Platform = d.Platform
	}
}

// Parse merges the YAML document over the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("repoconfig: parsing %s: %w", Path, err)
	}
	cfg.Normalize()
	return cfg, nil
}

// Settings is a validated configuration ready for one notification.
type Settings struct {
	Token    string
	Calendar string
	Platform string
	Rules    syncer.Rules
}

// Settings validates the configuration and compiles its date rules.
func (c Config) Settings() (*Settings, error) {
	if c.Token == "" {
		return nil, ErrMissingToken
	}
	if c.Calendar == "" {
		return nil, ErrMissingCalendar
	}
	c.Normalize()
	ex, err := extract.New(c.Regex, c.Format)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	return &Settings{
		Token:    c.Token,
		Calendar: c.Calendar,
		Platform: c.Platform,
		Rules: syncer.Rules{
			Extractor:  ex,
			EventLabel: c.EventLabel,
		},
	}, nil
}

// FileReader fetches a file from a repository's default branch. It
// returns tracker.ErrNotFound when the file does not exist.
type FileReader interface {
	ReadFile(ctx context.Context, fullRepo, path string) ([]byte, error)
}

type Loader struct {
	files FileReader
}

func NewLoader(files FileReader) *Loader {
	return &Loader{files: files}
}

// Load returns the defaults when the repository has no settings file.
func (l *Loader) Load(ctx context.Context, fullRepo string) (Config, error) {
	data, err := l.files.ReadFile(ctx, fullRepo, Path)
	if errors.Is(err, tracker.ErrNotFound) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("repoconfig: reading %s from %s: %w", Path, fullRepo, err)
	}
	return Parse(data)
}
