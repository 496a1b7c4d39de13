package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptedTokenEncodeParse(t *testing.T) {
	tok := EncryptedToken{
		IV:         []byte{0x01, 0x02, 0x03},
		Ciphertext: []byte{0xaa, 0xbb},
	}

	encoded := tok.Encode()
	assert.Equal(t, "010203:aabb", encoded)

	parsed, err := ParseEncryptedToken(encoded)
	require.NoError(t, err)
	assert.Equal(t, tok, parsed)
}

func TestEncryptedTokenParseEmpty(t *testing.T) {
	parsed, err := ParseEncryptedToken("")
	require.NoError(t, err)
	assert.True(t, parsed.IsZero())
	assert.Equal(t, "", parsed.Encode())
}

func TestEncryptedTokenParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing separator", "deadbeef"},
		{"bad iv hex", "zz:aabb"},
		{"bad ciphertext hex", "0102:qq"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEncryptedToken(tt.input)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestEncryptedTokenStringRedacts(t *testing.T) {
	tok := EncryptedToken{IV: []byte{1}, Ciphertext: []byte("secret")}
	assert.NotContains(t, tok.String(), "secret")
}

func TestTokenExpiresWithin(t *testing.T) {
	window := 5 * time.Minute

	// Inside the safety window: must refresh.
	assert.True(t, TokenExpiresWithin(time.Now().Add(3*time.Minute), window))

	// Outside the safety window: no refresh.
	assert.False(t, TokenExpiresWithin(time.Now().Add(10*time.Minute), window))

	// Already expired.
	assert.True(t, TokenExpiresWithin(time.Now().Add(-time.Minute), window))

	// Zero expiry is treated as expired.
	assert.True(t, TokenExpiresWithin(time.Time{}, window))
}
