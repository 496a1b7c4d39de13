package domain

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// EncryptedToken is an at-rest encrypted secret. The initialization vector
// is generated fresh for every encryption operation and stored with the
// ciphertext. The persisted form is "iv_hex:ciphertext_hex"; encoding and
// decoding happen only at the persistence boundary.
type EncryptedToken struct {
	// IV is the random initialization vector used for this ciphertext.
	IV []byte
	// Ciphertext is the encrypted token material.
	Ciphertext []byte
}

// IsZero returns true if no token material is present.
func (t EncryptedToken) IsZero() bool {
	return len(t.IV) == 0 && len(t.Ciphertext) == 0
}

// Encode renders the token in its persisted "iv_hex:ciphertext_hex" form.
func (t EncryptedToken) Encode() string {
	if t.IsZero() {
		return ""
	}
	return hex.EncodeToString(t.IV) + ":" + hex.EncodeToString(t.Ciphertext)
}

// String implements fmt.Stringer without exposing token material.
func (t EncryptedToken) String() string {
	return "EncryptedToken(redacted)"
}

// ParseEncryptedToken decodes the persisted "iv_hex:ciphertext_hex" form.
func ParseEncryptedToken(s string) (EncryptedToken, error) {
	if s == "" {
		return EncryptedToken{}, nil
	}

	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return EncryptedToken{}, fmt.Errorf("%w: encrypted token must be iv:ciphertext", ErrInvalidInput)
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return EncryptedToken{}, fmt.Errorf("%w: decoding iv: %v", ErrInvalidInput, err)
	}
	ct, err := hex.DecodeString(parts[1])
	if err != nil {
		return EncryptedToken{}, fmt.Errorf("%w: decoding ciphertext: %v", ErrInvalidInput, err)
	}

	return EncryptedToken{IV: iv, Ciphertext: ct}, nil
}

// OAuthToken represents tokens returned by the provider's OAuth endpoint.
type OAuthToken struct {
	// AccessToken is the bearer token for API access.
	AccessToken string `json:"access_token"`
	// RefreshToken is used to obtain new access tokens.
	RefreshToken string `json:"refresh_token,omitempty"`
	// TokenType is typically "Bearer".
	TokenType string `json:"token_type"`
	// Expiry is when the access token expires.
	Expiry time.Time `json:"expiry,omitempty"`
}

// DefaultSafetyWindow is the margin before expiry within which a token is
// proactively refreshed, so it cannot lapse mid-cycle.
const DefaultSafetyWindow = 5 * time.Minute

// TokenExpiresWithin reports whether the token expiry falls inside the
// given safety window from now. A zero expiry is treated as expired so that
// incomplete accounts always refresh before use.
func TokenExpiresWithin(expiry time.Time, window time.Duration) bool {
	if expiry.IsZero() {
		return true
	}
	return !time.Now().Add(window).Before(expiry)
}
