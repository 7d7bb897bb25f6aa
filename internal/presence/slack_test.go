package presence

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	slackapi "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calstatus/internal/model"
)

func TestSlack_SetStatus(t *testing.T) {
	var (
		gotPath    string
		gotProfile map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = r.ParseForm()
		_ = json.Unmarshal([]byte(r.FormValue("profile")), &gotProfile)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	s := NewSlack(slackapi.OptionAPIURL(srv.URL + "/"))
	err := s.SetStatus(context.Background(), "xoxp-test", model.StatusPayload{
		StatusText:  "Standup likely at my desk",
		StatusEmoji: ":coffee:",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(gotPath, "users.profile.set"))
	assert.Equal(t, "Standup likely at my desk", gotProfile["status_text"])
	assert.Equal(t, ":coffee:", gotProfile["status_emoji"])
}

func TestSlack_SetStatusAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":false,"error":"invalid_auth"}`))
	}))
	defer srv.Close()

	s := NewSlack(slackapi.OptionAPIURL(srv.URL + "/"))
	err := s.SetStatus(context.Background(), "xoxp-bad", model.StatusPayload{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_auth")
}

func TestSlack_EmptyToken(t *testing.T) {
	err := NewSlack().SetStatus(context.Background(), "", model.StatusPayload{})
	assert.Error(t, err)
}
