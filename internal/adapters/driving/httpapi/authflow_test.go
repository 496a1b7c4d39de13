package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthURL_RequiresWorkspace(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/auth/google/url", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthURL_IssuesStatefulConsentURL(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/auth/google/url?workspace=ws-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[map[string]string](t, rec)
	require.NotEmpty(t, body["state"])
	assert.Contains(t, body["url"], "state="+body["state"])
}

func TestAuthCallback_UnknownStateRejected(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/callback?code=abc&state=bogus", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, env.provider.exchanged)
}

func TestAuthCallback_CreatesAccount(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/auth/google/url?workspace=ws-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decodeBody[map[string]string](t, rec)["state"]

	// The provider redirects a plain browser; no bearer token here.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/callback?code=auth-code&state="+state, nil)
	cbRec := httptest.NewRecorder()
	env.handler.ServeHTTP(cbRec, req)
	require.Equal(t, http.StatusOK, cbRec.Code)

	account, err := env.accounts.FindByEmail(context.Background(), "ws-1", "user@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, account.ID)
	assert.Equal(t, []string{"calendar.readonly", "tasks"}, account.Scopes)

	// Tokens are stored encrypted; the plaintext must not round-trip.
	assert.NotContains(t, account.AccessToken.Encode(), "access-auth-code")
	plaintext, err := env.sealer.Decrypt(account.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "access-auth-code", plaintext)

	// The first sync runs in the background.
	require.Eventually(t, func() bool {
		return len(env.scheduler.syncNowCalls()) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestAuthCallback_MergesByEmail(t *testing.T) {
	env := newTestEnv(t)
	existing := env.seedAccount(t)

	rec := env.do(t, http.MethodGet, "/api/v1/auth/google/url?workspace=ws-1", nil)
	state := decodeBody[map[string]string](t, rec)["state"]

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/callback?code=second-auth&state="+state, nil)
	cbRec := httptest.NewRecorder()
	env.handler.ServeHTTP(cbRec, req)
	require.Equal(t, http.StatusOK, cbRec.Code)

	accounts, err := env.accounts.ListByWorkspace(context.Background(), "ws-1")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, existing.ID, accounts[0].ID)

	plaintext, err := env.sealer.Decrypt(accounts[0].AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "access-second-auth", plaintext)
}

func TestAuthCallback_StateIsSingleUse(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/auth/google/url?workspace=ws-1", nil)
	state := decodeBody[map[string]string](t, rec)["state"]

	first := httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/callback?code=c1&state="+state, nil)
	firstRec := httptest.NewRecorder()
	env.handler.ServeHTTP(firstRec, first)
	require.Equal(t, http.StatusOK, firstRec.Code)

	second := httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/callback?code=c2&state="+state, nil)
	secondRec := httptest.NewRecorder()
	env.handler.ServeHTTP(secondRec, second)
	assert.Equal(t, http.StatusBadRequest, secondRec.Code)
}

func TestAuthCallback_ProviderErrorShown(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/auth/google/callback?error=access_denied&error_description=user+cancelled", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "access_denied")
}
