// Package cipher protects diary tokens at rest. Tokens are sealed with
// AES-256-GCM under a single process-wide key loaded at startup; the random
// nonce is prepended to the ciphertext.
package cipher

import (
	"crypto/aes"
	stdcipher "crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

const KeySize = 32

// ErrDecrypt covers every decryption failure: truncated blob, key mismatch,
// tampered ciphertext. Callers treat it as "no usable token".
var ErrDecrypt = errors.New("decrypt token")

type AESGCM struct {
	aead stdcipher.AEAD
}

func NewAESGCM(key []byte) (*AESGCM, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := stdcipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	return &AESGCM{aead: aead}, nil
}

func (c *AESGCM) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (c *AESGCM) Decrypt(data []byte) ([]byte, error) {
	if len(data) < c.aead.NonceSize() {
		return nil, ErrDecrypt
	}
	nonce, ciphertext := data[:c.aead.NonceSize()], data[c.aead.NonceSize():]

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}
