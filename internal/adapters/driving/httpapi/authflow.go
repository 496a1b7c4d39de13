package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/calsync/internal/core/domain"
	"github.com/custodia-labs/calsync/internal/logger"
)

// stateTTL bounds how long a handshake may sit between the consent URL
// being issued and the provider redirecting back.
const stateTTL = 10 * time.Minute

// handleAuthURL issues a consent URL for connecting a provider account
// to a workspace. The random state value ties the later callback back to
// the workspace.
func (s *Server) handleAuthURL(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.URL.Query().Get("workspace")
	if workspaceID == "" {
		writeError(w, fmt.Errorf("%w: workspace query parameter is required", domain.ErrValidation))
		return
	}
	if !s.authorize(w, r, workspaceID) {
		return
	}

	state, err := newState()
	if err != nil {
		writeError(w, err)
		return
	}

	s.statesMu.Lock()
	s.pruneStatesLocked(time.Now())
	s.states[state] = pendingState{
		workspaceID: workspaceID,
		expiresAt:   time.Now().Add(stateTTL),
	}
	s.statesMu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{
		"url":   s.oauth.AuthURL(state, s.cfg.RedirectURL),
		"state": state,
	})
}

// handleAuthCallback finishes the handshake: exchanges the code, looks up
// the provider identity, and merges the result into the workspace's
// accounts. Re-authenticating an email that already has an account updates
// that account in place. The first sync runs in the background so the
// browser response is immediate.
func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		desc := r.URL.Query().Get("error_description")
		writeCallbackPage(w, http.StatusBadRequest, "Connection failed", fmt.Sprintf("%s: %s", errParam, desc))
		return
	}

	state := r.URL.Query().Get("state")
	workspaceID, ok := s.takeState(state)
	if !ok {
		writeCallbackPage(w, http.StatusBadRequest, "Connection failed", "unknown or expired state parameter")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeCallbackPage(w, http.StatusBadRequest, "Connection failed", "no authorization code received")
		return
	}

	account, err := s.connectAccount(r.Context(), workspaceID, code)
	if err != nil {
		logger.Warn("http: oauth callback for workspace %s: %v", workspaceID, err)
		writeCallbackPage(w, http.StatusBadGateway, "Connection failed", "could not complete the token exchange")
		return
	}

	// First sync without blocking the redirect response.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := s.scheduler.SyncNow(ctx, account.WorkspaceID, account.ID, domain.SyncBoth); err != nil {
			logger.Warn("http: initial sync for account %s: %v", account.ID, err)
		}
	}()

	writeCallbackPage(w, http.StatusOK, "Account connected",
		fmt.Sprintf("%s is now syncing. You can close this window.", account.ExternalEmail))
}

// connectAccount exchanges the code and persists the account, encrypting
// tokens before they reach the store.
func (s *Server) connectAccount(ctx context.Context, workspaceID, code string) (*domain.IntegrationAccount, error) {
	token, err := s.oauth.ExchangeCode(ctx, code, s.cfg.RedirectURL)
	if err != nil {
		return nil, fmt.Errorf("exchanging code: %w", err)
	}

	email, err := s.oauth.UserEmail(ctx, token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("fetching identity: %w", err)
	}

	access, err := s.sealer.Encrypt(token.AccessToken)
	if err != nil {
		return nil, err
	}
	var refresh domain.EncryptedToken
	if token.RefreshToken != "" {
		if refresh, err = s.sealer.Encrypt(token.RefreshToken); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	account, err := s.accounts.FindByEmail(ctx, workspaceID, email)
	switch {
	case err == nil:
		// Re-authentication of a known identity updates in place.
		account.AccessToken = access
		if !refresh.IsZero() {
			account.RefreshToken = refresh
		}
		account.TokenExpiry = token.Expiry
		account.Status = domain.AccountActive
		account.UpdatedAt = now
	case errors.Is(err, domain.ErrNotFound):
		account = &domain.IntegrationAccount{
			ID:            uuid.NewString(),
			WorkspaceID:   workspaceID,
			ExternalEmail: email,
			AccessToken:   access,
			RefreshToken:  refresh,
			TokenExpiry:   token.Expiry,
			Scopes:        s.cfg.Scopes,
			Settings:      domain.DefaultSyncSettings(),
			Status:        domain.AccountActive,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	default:
		return nil, err
	}

	if err := s.accounts.Save(ctx, *account); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Server) takeState(state string) (string, bool) {
	if state == "" {
		return "", false
	}

	s.statesMu.Lock()
	defer s.statesMu.Unlock()

	pending, ok := s.states[state]
	if !ok {
		return "", false
	}
	delete(s.states, state)
	if time.Now().After(pending.expiresAt) {
		return "", false
	}
	return pending.workspaceID, true
}

func (s *Server) pruneStatesLocked(now time.Time) {
	for state, pending := range s.states {
		if now.After(pending.expiresAt) {
			delete(s.states, state)
		}
	}
}

func newState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func writeCallbackPage(w http.ResponseWriter, status int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>Calsync</title></head>
<body>
    <h1>%s</h1>
    <p>%s</p>
</body>
</html>`, html.EscapeString(title), html.EscapeString(message))
}
