package driven

import (
	"context"

	"github.com/custodia-labs/calsync/internal/core/domain"
)

// OAuthProvider talks to the identity provider's OAuth endpoints.
type OAuthProvider interface {
	// AuthURL builds the consent URL for the handshake.
	AuthURL(state, redirectURI string) string

	// ExchangeCode exchanges an authorization code for tokens.
	ExchangeCode(ctx context.Context, code, redirectURI string) (*domain.OAuthToken, error)

	// RefreshAccessToken exchanges a refresh token for a new access
	// token. An invalid or revoked refresh token yields an error wrapping
	// domain.ErrAuthExpired; this is fatal for the account and is not
	// retried.
	RefreshAccessToken(ctx context.Context, refreshToken string) (*domain.OAuthToken, error)

	// UserEmail fetches the provider-side identity for an access token.
	UserEmail(ctx context.Context, accessToken string) (string, error)
}
