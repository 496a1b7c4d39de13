// Package oauth implements the OAuth provider port against Google's
// OAuth 2.0 endpoints.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/calsync/internal/core/domain"
	"github.com/custodia-labs/calsync/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.OAuthProvider = (*Provider)(nil)

const (
	authURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	tokenURL    = "https://oauth2.googleapis.com/token"
	userInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// DefaultScopes cover calendar reads, task reads and writes, and the
// user's email for account identity.
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/calendar.readonly",
	"https://www.googleapis.com/auth/tasks",
	"https://www.googleapis.com/auth/userinfo.email",
}

// Config holds the OAuth client registration. The endpoint fields default
// to Google's; tests point them at a local server.
type Config struct {
	ClientID     string
	ClientSecret string
	// Scopes defaults to DefaultScopes when empty.
	Scopes []string

	AuthEndpoint     string
	TokenEndpoint    string
	UserInfoEndpoint string
}

// Provider talks to Google's OAuth endpoints.
type Provider struct {
	cfg        Config
	httpClient *http.Client
}

// NewProvider creates an OAuth provider.
func NewProvider(cfg Config) *Provider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	if cfg.AuthEndpoint == "" {
		cfg.AuthEndpoint = authURL
	}
	if cfg.TokenEndpoint == "" {
		cfg.TokenEndpoint = tokenURL
	}
	if cfg.UserInfoEndpoint == "" {
		cfg.UserInfoEndpoint = userInfoURL
	}
	return &Provider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// AuthURL builds the consent URL for the handshake. Offline access and
// forced consent are requested so a refresh token is always issued.
func (p *Provider) AuthURL(state, redirectURI string) string {
	params := url.Values{}
	params.Set("client_id", p.cfg.ClientID)
	params.Set("redirect_uri", redirectURI)
	params.Set("response_type", "code")
	params.Set("scope", strings.Join(p.cfg.Scopes, " "))
	params.Set("state", state)
	params.Set("access_type", "offline")
	params.Set("prompt", "consent")
	return p.cfg.AuthEndpoint + "?" + params.Encode()
}

// tokenResponse is the provider's token endpoint payload.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
}

// ExchangeCode exchanges an authorization code for tokens.
func (p *Provider) ExchangeCode(ctx context.Context, code, redirectURI string) (*domain.OAuthToken, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("client_id", p.cfg.ClientID)
	data.Set("client_secret", p.cfg.ClientSecret)
	data.Set("code", code)
	data.Set("redirect_uri", redirectURI)

	return p.requestToken(ctx, data)
}

// RefreshAccessToken exchanges a refresh token for a new access token.
// An invalid_grant response means the refresh token was revoked or
// expired; this is fatal for the account and wraps domain.ErrAuthExpired.
func (p *Provider) RefreshAccessToken(ctx context.Context, refreshToken string) (*domain.OAuthToken, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("client_id", p.cfg.ClientID)
	data.Set("client_secret", p.cfg.ClientSecret)
	data.Set("refresh_token", refreshToken)

	return p.requestToken(ctx, data)
}

func (p *Provider) requestToken(ctx context.Context, data url.Values) (*domain.OAuthToken, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.TokenEndpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: token request: %v", domain.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error       string `json:"error"`
			Description string `json:"error_description"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
			if errResp.Error == "invalid_grant" {
				return nil, fmt.Errorf("%w: %s", domain.ErrAuthExpired, errResp.Error)
			}
			return nil, fmt.Errorf("token error: %s - %s", errResp.Error, errResp.Description)
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, fmt.Errorf("%w: token request failed with status %d", domain.ErrAuthExpired, resp.StatusCode)
		}
		return nil, fmt.Errorf("token request failed with status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access token")
	}

	return &domain.OAuthToken{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
		Expiry:       time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}

// UserEmail fetches the provider-side identity for an access token.
func (p *Provider) UserEmail(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.UserInfoEndpoint, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: fetch user info: %v", domain.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return "", fmt.Errorf("%w: user info request failed with status %d", domain.ErrAuthExpired, resp.StatusCode)
		}
		return "", fmt.Errorf("user info request failed with status %d", resp.StatusCode)
	}

	var info struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("decode user info: %w", err)
	}
	if info.Email == "" {
		return "", fmt.Errorf("user info response missing email")
	}
	return info.Email, nil
}
