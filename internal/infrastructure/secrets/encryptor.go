// Package secrets encrypts operator-entered credentials at rest.
//
// The wire format is base64(nonce || tag || ciphertext) with AES-256-GCM and
// a 12-byte nonce; the key is derived once from the configured passphrase
// with scrypt.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

const (
	nonceLength = 12
	tagLength   = 16
)

// kdfSalt is fixed: there is exactly one passphrase per deployment and the
// derived key never leaves the process.
var kdfSalt = []byte("ordersync-secrets-v1")

// ErrMalformedCiphertext is returned when a stored value cannot be decoded
var ErrMalformedCiphertext = errors.New("secrets: malformed ciphertext")

// Encryptor seals and opens secret values with a key derived from the
// deployment passphrase
type Encryptor struct {
	aead cipher.AEAD
}

// NewEncryptor derives the encryption key from passphrase
func NewEncryptor(passphrase string) (*Encryptor, error) {
	if passphrase == "" {
		return nil, errors.New("secrets: passphrase is required")
	}

	key, err := scrypt.Key([]byte(passphrase), kdfSalt, 1<<15, 8, 1, 32)
	if err != nil {
		return nil, fmt.Errorf("secrets: key derivation failed: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secrets: cipher init failed: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, nonceLength)
	if err != nil {
		return nil, fmt.Errorf("secrets: AEAD init failed: %w", err)
	}

	return &Encryptor{aead: aead}, nil
}

// Encrypt seals value and returns the encoded ciphertext
func (e *Encryptor) Encrypt(value string) (string, error) {
	nonce := make([]byte, nonceLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("secrets: nonce generation failed: %w", err)
	}

	sealed := e.aead.Seal(nil, nonce, []byte(value), nil)
	ciphertext := sealed[:len(sealed)-tagLength]
	tag := sealed[len(sealed)-tagLength:]

	out := make([]byte, 0, nonceLength+tagLength+len(ciphertext))
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, ciphertext...)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt opens an encoded ciphertext produced by Encrypt
func (e *Encryptor) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrMalformedCiphertext
	}
	if len(raw) < nonceLength+tagLength {
		return "", ErrMalformedCiphertext
	}

	nonce := raw[:nonceLength]
	tag := raw[nonceLength : nonceLength+tagLength]
	ciphertext := raw[nonceLength+tagLength:]

	sealed := make([]byte, 0, len(ciphertext)+tagLength)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := e.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("secrets: decryption failed: %w", err)
	}
	return string(plaintext), nil
}
