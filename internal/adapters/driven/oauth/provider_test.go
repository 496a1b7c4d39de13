package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/calsync/internal/core/domain"
)

func TestAuthURL(t *testing.T) {
	p := NewProvider(Config{ClientID: "client-1"})

	raw := p.AuthURL("state-xyz", "http://localhost:8080/callback")
	parsed, err := url.Parse(raw)
	require.NoError(t, err)

	q := parsed.Query()
	assert.Equal(t, "client-1", q.Get("client_id"))
	assert.Equal(t, "state-xyz", q.Get("state"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Contains(t, q.Get("scope"), "tasks")
}

func TestExchangeCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.FormValue("grant_type"))
		assert.Equal(t, "the-code", r.FormValue("code"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","refresh_token":"rt-1","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	p := NewProvider(Config{ClientID: "c", ClientSecret: "s", TokenEndpoint: srv.URL})

	token, err := p.ExchangeCode(context.Background(), "the-code", "http://localhost/callback")
	require.NoError(t, err)
	assert.Equal(t, "at-1", token.AccessToken)
	assert.Equal(t, "rt-1", token.RefreshToken)
	assert.False(t, token.Expiry.IsZero())
}

func TestRefreshAccessToken_InvalidGrantIsAuthExpired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Token has been revoked."}`))
	}))
	defer srv.Close()

	p := NewProvider(Config{ClientID: "c", ClientSecret: "s", TokenEndpoint: srv.URL})

	_, err := p.RefreshAccessToken(context.Background(), "revoked-token")
	assert.ErrorIs(t, err, domain.ErrAuthExpired)
}

func TestRefreshAccessToken_TransientFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewProvider(Config{ClientID: "c", ClientSecret: "s", TokenEndpoint: srv.URL})

	_, err := p.RefreshAccessToken(context.Background(), "rt-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrAuthExpired)
}

func TestUserEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"email":"user@example.com","verified_email":true}`))
	}))
	defer srv.Close()

	p := NewProvider(Config{UserInfoEndpoint: srv.URL})

	email, err := p.UserEmail(context.Background(), "at-1")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", email)
}

func TestUserEmail_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewProvider(Config{UserInfoEndpoint: srv.URL})

	_, err := p.UserEmail(context.Background(), "bad-token")
	assert.ErrorIs(t, err, domain.ErrAuthExpired)
}
