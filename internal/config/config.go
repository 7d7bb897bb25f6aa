package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the preview API.
type BasicAuthConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// SlackConfig holds the Slack app credentials used by the token collector.
type SlackConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
}

// LogConfig selects log verbosity and format.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "console" or "json"
}

// Settings is the process-wide configuration. Per-user records live in
// IdentitiesDir, see LoadIdentities.
type Settings struct {
	// Timezone is the organization base timezone (IANA name) used for the
	// business-hours window and for deciding what "today" means.
	Timezone string `mapstructure:"timezone"`

	// WorkStart / WorkEnd are local wall-clock times in HH:MM.
	WorkStart string `mapstructure:"work_start"`
	WorkEnd   string `mapstructure:"work_end"`

	IdentitiesDir string `mapstructure:"identities_dir"`
	CacheDir      string `mapstructure:"cache_dir"`

	// Schedule is a cron expression driving `serve`.
	Schedule     string        `mapstructure:"schedule"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`

	Listen    string           `mapstructure:"listen"`
	BasicAuth *BasicAuthConfig `mapstructure:"basic_auth"`

	Log   LogConfig   `mapstructure:"log"`
	Slack SlackConfig `mapstructure:"slack"`
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() *Settings {
	return &Settings{
		Timezone:      "America/Denver",
		WorkStart:     "09:00",
		WorkEnd:       "17:00",
		IdentitiesDir: "/etc/calstatus/identities",
		CacheDir:      "/var/lib/calstatus/ics-cache",
		Schedule:      "*/5 * * * *",
		FetchTimeout:  15 * time.Second,
		Listen:        "127.0.0.1:8080",
		Log:           LogConfig{Level: "info", Format: "console"},
	}
}

// Normalize fills zero values with defaults so partially-filled files
// still behave.
func (s *Settings) Normalize() {
	def := DefaultSettings()
	if s.Timezone == "" {
		s.Timezone = def.Timezone
	}
	if s.WorkStart == "" {
		s.WorkStart = def.WorkStart
	}
	if s.WorkEnd == "" {
		s.WorkEnd = def.WorkEnd
	}
	if s.IdentitiesDir == "" {
		s.IdentitiesDir = def.IdentitiesDir
	}
	if s.Schedule == "" {
		s.Schedule = def.Schedule
	}
	if s.FetchTimeout <= 0 {
		s.FetchTimeout = def.FetchTimeout
	}
	if s.Listen == "" {
		s.Listen = def.Listen
	}
	if s.Log.Level == "" {
		s.Log.Level = def.Log.Level
	}
	switch s.Log.Format {
	case "console", "json":
	default:
		s.Log.Format = def.Log.Format
	}
	if s.BasicAuth != nil && (s.BasicAuth.Username == "" || s.BasicAuth.Password == "") {
		s.BasicAuth = nil
	}
}

// Validate checks values that cannot be defaulted.
func (s *Settings) Validate() error {
	if _, err := s.Location(); err != nil {
		return err
	}
	start, err := ParseClock(s.WorkStart)
	if err != nil {
		return fmt.Errorf("work_start: %w", err)
	}
	end, err := ParseClock(s.WorkEnd)
	if err != nil {
		return fmt.Errorf("work_end: %w", err)
	}
	if end <= start {
		return fmt.Errorf("work_end %s must be after work_start %s", s.WorkEnd, s.WorkStart)
	}
	return nil
}

// Location loads the configured timezone.
func (s *Settings) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// WorkHours returns the business window as offsets from local midnight.
// Call Validate first.
func (s *Settings) WorkHours() (time.Duration, time.Duration) {
	start, _ := ParseClock(s.WorkStart)
	end, _ := ParseClock(s.WorkEnd)
	return start, end
}

// ParseClock parses "HH:MM" into an offset from midnight.
func ParseClock(v string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q (want HH:MM)", v)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// LoadSettings reads settings from path (YAML), falling back to the
// standard search path when path is empty. A missing file is not an
// error. Environment variables prefixed CALSTATUS_ override file values,
// e.g. CALSTATUS_TIMEZONE or CALSTATUS_SLACK_CLIENT_SECRET.
func LoadSettings(path string) (*Settings, error) {
	v := viper.New()

	def := DefaultSettings()
	v.SetDefault("timezone", def.Timezone)
	v.SetDefault("work_start", def.WorkStart)
	v.SetDefault("work_end", def.WorkEnd)
	v.SetDefault("identities_dir", def.IdentitiesDir)
	v.SetDefault("cache_dir", def.CacheDir)
	v.SetDefault("schedule", def.Schedule)
	v.SetDefault("fetch_timeout", def.FetchTimeout)
	v.SetDefault("listen", def.Listen)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("slack.client_id", "")
	v.SetDefault("slack.client_secret", "")
	v.SetDefault("slack.redirect_url", "")

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("calstatus")
		v.AddConfigPath("/etc/calstatus")
		v.AddConfigPath("$HOME/.config/calstatus")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("CALSTATUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read settings: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	s.Normalize()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
