package secrets

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptor_RoundTrip(t *testing.T) {
	enc, err := NewEncryptor("correct horse battery staple")
	require.NoError(t, err)

	ciphertext, err := enc.Encrypt("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", ciphertext)

	plaintext, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", plaintext)
}

func TestEncryptor_NoncesAreUnique(t *testing.T) {
	enc, err := NewEncryptor("passphrase")
	require.NoError(t, err)

	a, err := enc.Encrypt("same value")
	require.NoError(t, err)
	b, err := enc.Encrypt("same value")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestEncryptor_RejectsTamperedCiphertext(t *testing.T) {
	enc, err := NewEncryptor("passphrase")
	require.NoError(t, err)

	ciphertext, err := enc.Encrypt("secret")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(raw)

	_, err = enc.Decrypt(tampered)
	assert.Error(t, err)
}

func TestEncryptor_RejectsWrongPassphrase(t *testing.T) {
	enc, err := NewEncryptor("passphrase")
	require.NoError(t, err)
	other, err := NewEncryptor("different")
	require.NoError(t, err)

	ciphertext, err := enc.Encrypt("secret")
	require.NoError(t, err)

	_, err = other.Decrypt(ciphertext)
	assert.Error(t, err)
}

func TestEncryptor_RejectsMalformedInput(t *testing.T) {
	enc, err := NewEncryptor("passphrase")
	require.NoError(t, err)

	_, err = enc.Decrypt("not base64!!!")
	assert.ErrorIs(t, err, ErrMalformedCiphertext)

	_, err = enc.Decrypt(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.ErrorIs(t, err, ErrMalformedCiphertext)
}

func TestNewEncryptor_RequiresPassphrase(t *testing.T) {
	_, err := NewEncryptor("")
	assert.Error(t, err)
}
