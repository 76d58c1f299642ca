package vault

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	v, err := New(key)
	require.NoError(t, err)
	return v
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v := newTestVault(t)

	for _, plaintext := range []string{
		"FLWSECK-abc123",
		"short",
		strings.Repeat("x", 100),
		"unicode: 🍕 pizza",
	} {
		enc, err := v.Encrypt(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, enc)

		dec, err := v.Decrypt(enc)
		require.NoError(t, err)
		assert.Equal(t, plaintext, dec)
	}
}

func TestEncryptProducesFreshCiphertext(t *testing.T) {
	v := newTestVault(t)

	a, err := v.Encrypt("same secret")
	require.NoError(t, err)
	b, err := v.Encrypt("same secret")
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "random IV must differ per call")
}

func TestEmptyValuePassesThrough(t *testing.T) {
	v := newTestVault(t)

	enc, err := v.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, enc)

	dec, err := v.Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, dec)
}

func TestLegacyPlaintextDetected(t *testing.T) {
	v := newTestVault(t)

	// Pre-encryption values are arbitrary strings, not base64 blocks.
	_, err := v.Decrypt("my-old-plaintext-api-key")
	assert.ErrorIs(t, err, ErrNotEncrypted)

	// Valid base64 but too short to hold an IV plus one block.
	short := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef"))
	_, err = v.Decrypt(short)
	assert.ErrorIs(t, err, ErrNotEncrypted)
}

func TestWrongKeyFailsDecrypt(t *testing.T) {
	v1 := newTestVault(t)
	v2 := newTestVault(t)

	enc, err := v1.Encrypt("secret value")
	require.NoError(t, err)

	// Wrong-key CBC output is garbage; usually the padding check catches it,
	// and when it accidentally passes the plaintext still must not leak.
	dec, err := v2.Decrypt(enc)
	if err != nil {
		assert.ErrorIs(t, err, ErrDecrypt)
	} else {
		assert.NotEqual(t, "secret value", dec)
	}
}

func TestNewRejectsBadKeys(t *testing.T) {
	_, err := New("not base64!!!")
	assert.Error(t, err)

	tooShort := base64.StdEncoding.EncodeToString([]byte("short"))
	_, err = New(tooShort)
	assert.Error(t, err)
}
