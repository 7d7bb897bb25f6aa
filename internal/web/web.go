package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"calstatus/internal/config"
	appLog "calstatus/internal/log"
	"calstatus/internal/model"
)

// previewCacheTTL bounds how often a preview request refetches a feed.
const previewCacheTTL = 30 * time.Second

// Resolver computes an identity's status without setting it.
type Resolver interface {
	Resolve(ctx context.Context, id config.Identity) (model.StatusPayload, error)
}

// IdentitySource lists the configured identities. Called per request so
// edits to the identities directory show up without a restart.
type IdentitySource func() ([]config.Identity, error)

// Server exposes /health and a read-only status preview API.
type Server struct {
	resolver   Resolver
	identities IdentitySource
	basicAuth  *config.BasicAuthConfig
	now        func() time.Time
	logger     *appLog.Logger
	mux        *http.ServeMux

	cacheMu sync.Mutex
	cache   map[string]cachedPreview
}

type cachedPreview struct {
	resp      statusResponse
	updatedAt time.Time
}

type statusResponse struct {
	Identity    string    `json:"identity"`
	StatusText  string    `json:"status_text"`
	StatusEmoji string    `json:"status_emoji"`
	Clear       bool      `json:"clear"`
	ResolvedAt  time.Time `json:"resolved_at"`
}

// NewServer constructs a Server. basicAuth may be nil.
func NewServer(resolver Resolver, identities IdentitySource, basicAuth *config.BasicAuthConfig, logger *appLog.Logger) *Server {
	s := &Server{
		resolver:   resolver,
		identities: identities,
		basicAuth:  basicAuth,
		now:        time.Now,
		logger:     logger.With("component", "web"),
		mux:        http.NewServeMux(),
		cache:      make(map[string]cachedPreview),
	}
	s.registerRoutes()
	return s
}

// Handler returns the root handler, wrapped in Basic Auth when configured.
func (s *Server) Handler() http.Handler {
	if s.basicAuthEnabled() {
		return s.basicAuthMiddleware(s.mux)
	}
	return s.mux
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "listen", "http://"+addr, "basic_auth", s.basicAuthEnabled())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) basicAuthEnabled() bool {
	return s.basicAuth != nil && s.basicAuth.Username != "" && s.basicAuth.Password != ""
}

// basicAuthMiddleware protects everything except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.basicAuth.Username
	password := s.basicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="calstatus", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/identities", s.handleIdentities)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleIdentities(w http.ResponseWriter, _ *http.Request) {
	ids, err := s.identities()
	if err != nil {
		s.logger.Error("api identities: load failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load identities")
		return
	}
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, id.Identity)
	}
	writeJSON(w, http.StatusOK, map[string][]string{"identities": names})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("identity")
	if name == "" {
		writeError(w, http.StatusBadRequest, "identity is required")
		return
	}

	now := s.now()
	s.cacheMu.Lock()
	cached, ok := s.cache[name]
	s.cacheMu.Unlock()
	if ok && now.Sub(cached.updatedAt) < previewCacheTTL {
		writeJSON(w, http.StatusOK, cached.resp)
		return
	}

	ids, err := s.identities()
	if err != nil {
		s.logger.Error("api status: load identities failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load identities")
		return
	}
	id, found := config.FindIdentity(ids, name)
	if !found {
		writeError(w, http.StatusNotFound, "unknown identity")
		return
	}

	payload, err := s.resolver.Resolve(r.Context(), id)
	if err != nil {
		s.logger.Error("api status: resolve failed", err, "identity", name)
		writeError(w, http.StatusBadGateway, "failed to resolve status")
		return
	}

	resp := statusResponse{
		Identity:    name,
		StatusText:  payload.StatusText,
		StatusEmoji: payload.StatusEmoji,
		Clear:       payload.IsClear(),
		ResolvedAt:  now,
	}
	s.cacheMu.Lock()
	s.cache[name] = cachedPreview{resp: resp, updatedAt: now}
	s.cacheMu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
