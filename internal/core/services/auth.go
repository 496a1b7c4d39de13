// Package services contains the core engine: auth management, pull
// reconciliation, the scheduler, and write-back coordination.
package services

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/custodia-labs/calsync/internal/core/domain"
	"github.com/custodia-labs/calsync/internal/core/ports/driven"
	"github.com/custodia-labs/calsync/internal/logger"
)

// AuthManager owns OAuth token encryption, expiry checks, and refresh.
type AuthManager struct {
	aead         cipher.AEAD
	accounts     driven.AccountStore
	oauth        driven.OAuthProvider
	safetyWindow time.Duration
}

// NewAuthManager creates an auth manager with a 32-byte AES key.
// The safety window defaults to domain.DefaultSafetyWindow.
func NewAuthManager(key []byte, accounts driven.AccountStore, oauth driven.OAuthProvider) (*AuthManager, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: encryption key must be exactly 32 bytes", domain.ErrInvalidInput)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	return &AuthManager{
		aead:         aead,
		accounts:     accounts,
		oauth:        oauth,
		safetyWindow: domain.DefaultSafetyWindow,
	}, nil
}

// Encrypt encrypts a plaintext token with AES-256-GCM. A fresh random
// initialization vector is generated for every call and returned with the
// ciphertext; it is never reused.
func (m *AuthManager) Encrypt(plaintext string) (domain.EncryptedToken, error) {
	iv := make([]byte, m.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return domain.EncryptedToken{}, fmt.Errorf("generating iv: %w", err)
	}

	return domain.EncryptedToken{
		IV:         iv,
		Ciphertext: m.aead.Seal(nil, iv, []byte(plaintext), nil),
	}, nil
}

// Decrypt recovers the plaintext token.
func (m *AuthManager) Decrypt(token domain.EncryptedToken) (string, error) {
	if token.IsZero() {
		return "", fmt.Errorf("%w: empty encrypted token", domain.ErrInvalidInput)
	}
	if len(token.IV) != m.aead.NonceSize() {
		return "", fmt.Errorf("%w: bad iv length", domain.ErrInvalidInput)
	}

	plaintext, err := m.aead.Open(nil, token.IV, token.Ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypting token: %w", err)
	}
	return string(plaintext), nil
}

// TokenExpired reports whether the expiry falls within the safety window.
func (m *AuthManager) TokenExpired(expiry time.Time) bool {
	return domain.TokenExpiresWithin(expiry, m.safetyWindow)
}

// EnsureFreshToken returns a valid plaintext access token for the account,
// refreshing it first when the stored token is within the safety window of
// expiry. The caller must hold the account's cycle slot; this method is
// idempotent within a cycle because a freshly refreshed token is outside
// the window.
//
// A rejected refresh token transitions the account to expired, records the
// failure in its bounded error log, and returns domain.ErrAuthExpired. The
// account is skipped by future cycles until re-authenticated.
func (m *AuthManager) EnsureFreshToken(ctx context.Context, account *domain.IntegrationAccount) (string, error) {
	if !m.TokenExpired(account.TokenExpiry) {
		return m.Decrypt(account.AccessToken)
	}

	refreshToken, err := m.Decrypt(account.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("decrypting refresh token: %w", err)
	}

	logger.Debug("Refreshing access token for account %s", account.ID)

	fresh, err := m.oauth.RefreshAccessToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrAuthExpired) {
			account.Status = domain.AccountExpired
			account.RecordError("auth", "refresh token rejected; re-authentication required")
			if saveErr := m.accounts.Save(ctx, *account); saveErr != nil {
				logger.Warn("Failed to persist expired status for account %s: %v", account.ID, saveErr)
			}
			return "", fmt.Errorf("account %s: %w", account.ID, domain.ErrAuthExpired)
		}
		return "", fmt.Errorf("%w: refreshing token: %v", domain.ErrTransient, err)
	}

	encAccess, err := m.Encrypt(fresh.AccessToken)
	if err != nil {
		return "", fmt.Errorf("encrypting access token: %w", err)
	}
	account.AccessToken = encAccess
	account.TokenExpiry = fresh.Expiry

	// Some providers rotate the refresh token on use.
	if fresh.RefreshToken != "" {
		encRefresh, err := m.Encrypt(fresh.RefreshToken)
		if err != nil {
			return "", fmt.Errorf("encrypting refresh token: %w", err)
		}
		account.RefreshToken = encRefresh
	}

	if err := m.accounts.Save(ctx, *account); err != nil {
		return "", fmt.Errorf("persisting refreshed tokens: %w", err)
	}

	return fresh.AccessToken, nil
}
