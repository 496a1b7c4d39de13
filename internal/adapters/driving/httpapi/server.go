// Package httpapi exposes the sync engine over a small REST surface.
// Routes live under /api/v1 and are gated per workspace through the
// Authorizer port; the OAuth handshake endpoints stay outside the gate
// because the provider redirects a plain browser to them.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/calsync/internal/core/domain"
	"github.com/custodia-labs/calsync/internal/core/ports/driven"
	"github.com/custodia-labs/calsync/internal/core/ports/driving"
	"github.com/custodia-labs/calsync/internal/logger"
)

// TokenSealer encrypts token material before it reaches a store.
// Implemented by services.AuthManager.
type TokenSealer interface {
	Encrypt(plaintext string) (domain.EncryptedToken, error)
}

// Config carries the server wiring.
type Config struct {
	// Addr is the bind address.
	Addr string
	// RedirectURL is the OAuth callback URL registered with the provider.
	RedirectURL string
	// Scopes are recorded on accounts created through the handshake.
	Scopes []string
}

// Server is the HTTP driving adapter.
type Server struct {
	cfg        Config
	accounts   driven.AccountStore
	events     driven.EventMirrorStore
	tasks      driven.TaskMirrorStore
	scheduler  driving.SyncScheduler
	writeback  driving.WriteBackCoordinator
	oauth      driven.OAuthProvider
	authorizer driven.Authorizer
	sealer     TokenSealer

	// Pending OAuth states, keyed by the random state value.
	statesMu sync.Mutex
	states   map[string]pendingState

	httpServer *http.Server
}

type pendingState struct {
	workspaceID string
	expiresAt   time.Time
}

// NewServer wires the REST surface to its ports.
func NewServer(
	cfg Config,
	accounts driven.AccountStore,
	events driven.EventMirrorStore,
	tasks driven.TaskMirrorStore,
	scheduler driving.SyncScheduler,
	writeback driving.WriteBackCoordinator,
	oauth driven.OAuthProvider,
	authorizer driven.Authorizer,
	sealer TokenSealer,
) *Server {
	return &Server{
		cfg:        cfg,
		accounts:   accounts,
		events:     events,
		tasks:      tasks,
		scheduler:  scheduler,
		writeback:  writeback,
		oauth:      oauth,
		authorizer: authorizer,
		sealer:     sealer,
		states:     make(map[string]pendingState),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()

	api.HandleFunc("GET /accounts/{workspace}", s.handleListAccounts)
	api.HandleFunc("GET /accounts/{workspace}/{account}", s.handleGetAccount)
	api.HandleFunc("PUT /accounts/{workspace}/{account}/settings", s.handleUpdateSettings)
	api.HandleFunc("DELETE /accounts/{workspace}/{account}", s.handleDisconnectAccount)

	api.HandleFunc("POST /sync/{workspace}/{account}", s.handleSyncNow)
	api.HandleFunc("GET /sync/{workspace}/active", s.handleActiveSlots)

	api.HandleFunc("GET /events/{workspace}", s.handleListEvents)
	api.HandleFunc("GET /tasks/{workspace}", s.handleListTasks)
	api.HandleFunc("PUT /tasks/{workspace}/{task}", s.handleUpdateTask)
	api.HandleFunc("DELETE /tasks/{workspace}/{task}", s.handleDeleteTask)
	api.HandleFunc("POST /tasks/{workspace}/{task}/resolve", s.handleResolveConflict)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", logging(api)))

	// The handshake endpoints serve browser redirects; no bearer token.
	mux.HandleFunc("GET /api/v1/auth/google/url", s.handleAuthURL)
	mux.HandleFunc("GET /api/v1/auth/google/callback", s.handleAuthCallback)

	mux.HandleFunc("GET /_health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return mux
}

// Start runs the server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	logger.Info("http: listening on %s", s.cfg.Addr)

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		return err
	}
}

// Shutdown stops the server, draining in-flight requests.
func (s *Server) Shutdown() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// authorize gates a workspace route. Writes the error response itself and
// reports whether the handler may proceed.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, workspaceID string) bool {
	credential := bearerToken(r)
	if err := s.authorizer.Authorize(r.Context(), workspaceID, credential); err != nil {
		writeError(w, err)
		return false
	}
	return true
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}
	return ""
}

func logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Debug("http: %d %s %s %s", wrapped.status, r.Method, r.URL.Path, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
