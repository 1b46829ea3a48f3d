package services

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

var (
	ErrKeyEncryptionFailed = errors.New("key encryption failed")
	ErrKeyDecryptionFailed = errors.New("key decryption failed")
)

// SecretBox seals Layer-2 server keys with AES-256-GCM before they are stored
type SecretBox struct {
	encryptionKey []byte
}

// NewSecretBox creates a SecretBox; key must be 32 bytes
func NewSecretBox(key string) (*SecretBox, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	return &SecretBox{encryptionKey: []byte(key)}, nil
}

// Seal encrypts plaintext. The empty string stays empty so "no key" survives a round trip.
func (b *SecretBox) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	block, err := aes.NewCipher(b.encryptionKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyEncryptionFailed, err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyEncryptionFailed, err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyEncryptionFailed, err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Open decrypts a value produced by Seal
func (b *SecretBox) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}

	ciphertext, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyDecryptionFailed, err)
	}

	block, err := aes.NewCipher(b.encryptionKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyDecryptionFailed, err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyDecryptionFailed, err)
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", ErrKeyDecryptionFailed)
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyDecryptionFailed, err)
	}

	return string(plaintext), nil
}
