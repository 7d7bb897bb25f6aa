package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	appLog "calstatus/internal/log"
)

const defaultFetchTimeout = 15 * time.Second

// Feed is the outcome of fetching one calendar URL.
type Feed struct {
	URL       string
	Body      []byte
	FromCache bool // true if the body came from disk (304 or network failure)
}

// cacheMeta holds HTTP validators for one feed URL.
type cacheMeta struct {
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher downloads calendar feeds with conditional requests
// (ETag / Last-Modified) and keeps the last good body on disk. If the
// network or the server fails, the cached body is served instead.
type Fetcher struct {
	client   *http.Client
	cacheDir string
	logger   *appLog.Logger
}

// NewFetcher creates a Fetcher. An empty cacheDir disables the disk cache.
func NewFetcher(cacheDir string, timeout time.Duration, logger *appLog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		cacheDir: cacheDir,
		logger:   logger.With("component", "fetcher"),
	}
}

// Fetch returns the feed body for rawURL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Feed, error) {
	if rawURL == "" {
		return Feed{}, errors.New("calendar URL is empty")
	}
	redacted := RedactURL(rawURL)

	var (
		cachePath  string
		meta       cacheMeta
		cachedBody []byte
	)
	if f.cacheDir != "" {
		cachePath = f.cachePathForURL(rawURL)
		if err := os.MkdirAll(cachePath, 0o700); err != nil {
			return Feed{}, fmt.Errorf("create cache dir: %w", err)
		}
		meta, _ = loadCacheMeta(cachePath)
		cachedBody, _ = os.ReadFile(filepath.Join(cachePath, "body.ics"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Feed{}, fmt.Errorf("build request: %w", err)
	}
	if len(cachedBody) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	f.logger.Debug("calendar fetch start", "url", redacted)

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cachedBody) > 0 {
			f.logger.Error("calendar fetch failed, using cached body", err, "url", redacted)
			return Feed{URL: rawURL, Body: cachedBody, FromCache: true}, nil
		}
		return Feed{}, fmt.Errorf("fetch %s: %w", redacted, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return Feed{}, fmt.Errorf("read body %s: %w", redacted, err)
		}
		if cachePath != "" {
			newMeta := cacheMeta{
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
			}
			if err := saveCache(cachePath, newMeta, body); err != nil {
				f.logger.Error("calendar cache save failed", err, "url", redacted)
			}
		}
		f.logger.Debug("calendar fetch success", "url", redacted, "bytes", len(body))
		return Feed{URL: rawURL, Body: body}, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return Feed{}, fmt.Errorf("fetch %s: 304 Not Modified but no cached body", redacted)
		}
		f.logger.Debug("calendar not modified; using cache", "url", redacted)
		return Feed{URL: rawURL, Body: cachedBody, FromCache: true}, nil

	default:
		if len(cachedBody) > 0 {
			f.logger.Error("calendar fetch non-OK, using cached body", errors.New(resp.Status), "url", redacted)
			return Feed{URL: rawURL, Body: cachedBody, FromCache: true}, nil
		}
		return Feed{}, fmt.Errorf("fetch %s: %s", redacted, resp.Status)
	}
}

func (f *Fetcher) cachePathForURL(u string) string {
	sum := sha256.Sum256([]byte(u))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadCacheMeta(cachePath string) (cacheMeta, error) {
	var meta cacheMeta
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheMeta{}, err
	}
	return meta, nil
}

func saveCache(cachePath string, meta cacheMeta, body []byte) error {
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.ics"), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// RedactURL keeps only scheme and host. Calendar feed URLs usually embed a
// private token in the path or query.
func RedactURL(u string) string {
	const redactedSuffix = "/...(redacted)"
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "ics://...(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + redactedSuffix
}
