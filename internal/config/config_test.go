package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoadSettings_FileAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calstatus.yaml")
	writeFile(t, path, `
timezone: America/New_York
work_start: "08:30"
identities_dir: /srv/identities
fetch_timeout: 5s
basic_auth:
  username: admin
  password: secret
`)

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", s.Timezone)
	assert.Equal(t, "08:30", s.WorkStart)
	assert.Equal(t, "17:00", s.WorkEnd)
	assert.Equal(t, "/srv/identities", s.IdentitiesDir)
	assert.Equal(t, 5*time.Second, s.FetchTimeout)
	assert.Equal(t, "*/5 * * * *", s.Schedule)
	require.NotNil(t, s.BasicAuth)
	assert.Equal(t, "admin", s.BasicAuth.Username)

	start, end := s.WorkHours()
	assert.Equal(t, 8*time.Hour+30*time.Minute, start)
	assert.Equal(t, 17*time.Hour, end)
}

func TestLoadSettings_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calstatus.yaml")
	writeFile(t, path, "timezone: America/Denver\n")
	t.Setenv("CALSTATUS_TIMEZONE", "Europe/Berlin")
	t.Setenv("CALSTATUS_SLACK_CLIENT_ID", "123.456")

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", s.Timezone)
	assert.Equal(t, "123.456", s.Slack.ClientID)
}

func TestLoadSettings_Invalid(t *testing.T) {
	dir := t.TempDir()

	badTZ := filepath.Join(dir, "tz.yaml")
	writeFile(t, badTZ, "timezone: Mars/Olympus\n")
	_, err := LoadSettings(badTZ)
	assert.Error(t, err)

	badHours := filepath.Join(dir, "hours.yaml")
	writeFile(t, badHours, "work_start: \"18:00\"\nwork_end: \"09:00\"\n")
	_, err = LoadSettings(badHours)
	assert.Error(t, err)

	_, err = LoadSettings(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestNormalize_DropsIncompleteBasicAuth(t *testing.T) {
	s := &Settings{BasicAuth: &BasicAuthConfig{Username: "only-user"}, Log: LogConfig{Format: "xml"}}
	s.Normalize()
	assert.Nil(t, s.BasicAuth)
	assert.Equal(t, "console", s.Log.Format)
	assert.Equal(t, "America/Denver", s.Timezone)
}

func TestParseClock(t *testing.T) {
	d, err := ParseClock("09:15")
	require.NoError(t, err)
	assert.Equal(t, 9*time.Hour+15*time.Minute, d)

	_, err = ParseClock("9am")
	assert.Error(t, err)
}
