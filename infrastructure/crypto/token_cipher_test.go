package crypto

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() string {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return base64.StdEncoding.EncodeToString(key)
}

func TestNewTokenCipher_RejectsBadKeys(t *testing.T) {
	_, err := NewTokenCipher("not-base64!!")
	require.Error(t, err)

	_, err = NewTokenCipher(base64.StdEncoding.EncodeToString([]byte("short")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "32 bytes")
}

func TestTokenCipher_RoundTrip(t *testing.T) {
	cipher, err := NewTokenCipher(testKey())
	require.NoError(t, err)

	plaintext := "EAAGm0PX4ZCpsBAKZCZBq-long-lived-page-token"
	encrypted, err := cipher.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, encrypted)
	assert.NotContains(t, encrypted, plaintext)

	decrypted, err := cipher.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

// TestTokenCipher_EmptyPassesThrough covers optional tokens: a connection
// without a refresh token stores an empty string, not a ciphertext.
func TestTokenCipher_EmptyPassesThrough(t *testing.T) {
	cipher, err := NewTokenCipher(testKey())
	require.NoError(t, err)

	encrypted, err := cipher.Encrypt("")
	require.NoError(t, err)
	assert.Equal(t, "", encrypted)

	decrypted, err := cipher.Decrypt("")
	require.NoError(t, err)
	assert.Equal(t, "", decrypted)
}

func TestTokenCipher_NonceMakesOutputUnique(t *testing.T) {
	cipher, err := NewTokenCipher(testKey())
	require.NoError(t, err)

	a, err := cipher.Encrypt("same token")
	require.NoError(t, err)
	b, err := cipher.Encrypt("same token")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

// TestTokenCipher_CorruptedInput verifies tampered or malformed records
// surface ErrDecrypt instead of silently yielding garbage.
func TestTokenCipher_CorruptedInput(t *testing.T) {
	cipher, err := NewTokenCipher(testKey())
	require.NoError(t, err)

	encrypted, err := cipher.Encrypt("token")
	require.NoError(t, err)

	for name, input := range map[string]string{
		"not base64":   "%%%not-base64%%%",
		"too short":    base64.StdEncoding.EncodeToString([]byte("abc")),
		"flipped bits": "A" + encrypted[1:],
	} {
		t.Run(name, func(t *testing.T) {
			_, err := cipher.Decrypt(input)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrDecrypt)
		})
	}
}

func TestTokenCipher_WrongKeyFails(t *testing.T) {
	cipherA, err := NewTokenCipher(testKey())
	require.NoError(t, err)
	other := make([]byte, 32)
	for i := range other {
		other[i] = byte(255 - i)
	}
	cipherB, err := NewTokenCipher(base64.StdEncoding.EncodeToString(other))
	require.NoError(t, err)

	encrypted, err := cipherA.Encrypt("token")
	require.NoError(t, err)

	_, err = cipherB.Decrypt(encrypted)
	assert.ErrorIs(t, err, ErrDecrypt)
}
