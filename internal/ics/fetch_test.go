package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appLog "calstatus/internal/log"
)

func TestFetcher_ConditionalRequestUsesCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte("BEGIN:VCALENDAR"))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), time.Second, appLog.Nop())

	first, err := f.Fetch(context.Background(), srv.URL+"/private/feed.ics")
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, "BEGIN:VCALENDAR", string(first.Body))

	second, err := f.Fetch(context.Background(), srv.URL+"/private/feed.ics")
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Body, second.Body)
	assert.EqualValues(t, 2, calls.Load())
}

func TestFetcher_ServerErrorFallsBackToCache(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if fail.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("cached-body"))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), time.Second, appLog.Nop())
	_, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	fail.Store(true)
	feed, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, feed.FromCache)
	assert.Equal(t, "cached-body", string(feed.Body))
}

func TestFetcher_ServerErrorWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher("", time.Second, appLog.Nop())
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestFetcher_EmptyURL(t *testing.T) {
	f := NewFetcher("", 0, appLog.Nop())
	_, err := f.Fetch(context.Background(), "")
	assert.Error(t, err)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://outlook.office365.com/...(redacted)",
		RedactURL("https://outlook.office365.com/owa/calendar/abc/def/calendar.ics?token=secret"))
	assert.Equal(t, "ics://...(redacted)", RedactURL("not a url"))
}
