// Package crypto seals values the portal keeps outside process memory. Bearer
// tokens persisted to Redis are stored as AES-256-GCM ciphertext so a dump of the
// session keyspace cannot be replayed against the backend.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// KeySize is the length of every key this package produces or accepts.
const KeySize = 32

var (
	// ErrKeyLengthInvalid is returned when a key is not exactly KeySize bytes.
	ErrKeyLengthInvalid = errors.New("crypto: key must be exactly 32 bytes for AES-256")
	// ErrCiphertextCorrupted is returned when the ciphertext fails base64 decoding or is too short to contain a nonce.
	ErrCiphertextCorrupted = errors.New("crypto: ciphertext is corrupted or tampered")
	// ErrDecryptionFailed is returned when GCM authentication fails, usually a wrong key.
	ErrDecryptionFailed = errors.New("crypto: decryption operation failed")
	// ErrEmptySecret is returned when a key would be derived from nothing.
	ErrEmptySecret = errors.New("crypto: cannot derive a key from an empty secret")
)

// Key derivation labels. Each purpose gets its own label so one secret can
// feed several keys without reuse.
const (
	PurposeCSRF         = "research-portal csrf"
	PurposeSessionToken = "research-portal session token"
)

// DeriveKey stretches secret into a KeySize key bound to purpose.
func DeriveKey(secret, purpose string) ([]byte, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(purpose)), key); err != nil {
		return nil, fmt.Errorf("crypto: derive %s key: %w", purpose, err)
	}
	return key, nil
}

// TokenCipher encrypts and decrypts bearer tokens.
type TokenCipher struct {
	aead cipher.AEAD
}

// NewTokenCipher creates a cipher from a KeySize master key.
func NewTokenCipher(masterKey []byte) (*TokenCipher, error) {
	if len(masterKey) != KeySize {
		return nil, ErrKeyLengthInvalid
	}
	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &TokenCipher{aead: aead}, nil
}

// DeriveTokenCipher creates a cipher keyed from the session secret.
func DeriveTokenCipher(secret string) (*TokenCipher, error) {
	key, err := DeriveKey(secret, PurposeSessionToken)
	if err != nil {
		return nil, err
	}
	return NewTokenCipher(key)
}

// Seal encrypts plaintext and returns URL-safe base64 ciphertext. The empty
// string seals to itself.
func (tc *TokenCipher) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, tc.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := tc.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func (tc *TokenCipher) Open(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}
	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrCiphertextCorrupted
	}
	n := tc.aead.NonceSize()
	if len(raw) < n {
		return "", ErrCiphertextCorrupted
	}
	plaintext, err := tc.aead.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// GenerateKey returns a random KeySize key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}
