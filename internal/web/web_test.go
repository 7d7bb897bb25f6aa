package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calstatus/internal/config"
	appLog "calstatus/internal/log"
	"calstatus/internal/model"
)

type stubResolver struct {
	calls   int
	payload model.StatusPayload
	err     error
}

func (r *stubResolver) Resolve(_ context.Context, _ config.Identity) (model.StatusPayload, error) {
	r.calls++
	return r.payload, r.err
}

func identities() ([]config.Identity, error) {
	return []config.Identity{{Identity: "alice", CalendarURL: "https://cal/a.ics", Token: "xoxp-a"}}, nil
}

func TestHandleStatus(t *testing.T) {
	res := &stubResolver{payload: model.StatusPayload{StatusText: "Standup likely at my desk", StatusEmoji: ":coffee:"}}
	s := NewServer(res, identities, nil, appLog.Nop())
	s.now = func() time.Time { return time.Date(2024, 6, 4, 16, 30, 0, 0, time.UTC) }

	for range 2 {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status?identity=alice", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var body statusResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "alice", body.Identity)
		assert.Equal(t, "Standup likely at my desk", body.StatusText)
		assert.False(t, body.Clear)
	}
	assert.Equal(t, 1, res.calls, "second request should hit the cache")
}

func TestHandleStatus_Errors(t *testing.T) {
	res := &stubResolver{err: errors.New("fetch failed")}
	s := NewServer(res, identities, nil, appLog.Nop())

	tests := []struct {
		path string
		code int
	}{
		{path: "/api/status", code: http.StatusBadRequest},
		{path: "/api/status?identity=nobody", code: http.StatusNotFound},
		{path: "/api/status?identity=alice", code: http.StatusBadGateway},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		assert.Equal(t, tt.code, rec.Code, tt.path)
	}
}

func TestHandleIdentities(t *testing.T) {
	s := NewServer(&stubResolver{}, identities, nil, appLog.Nop())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/identities", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"identities":["alice"]}`, rec.Body.String())
}

func TestBasicAuth(t *testing.T) {
	auth := &config.BasicAuthConfig{Username: "admin", Password: "pw"}
	s := NewServer(&stubResolver{}, identities, auth, appLog.Nop())
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/identities", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/identities", nil)
	req.SetBasicAuth("admin", "pw")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
