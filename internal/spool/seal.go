package spool

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeyEnv names the environment variable holding a hex spool key.
const KeyEnv = "RPLOG_SPOOL_KEY"

// KeySize is the length of a spool key in bytes.
const KeySize = chacha20poly1305.KeySize

var errKeySize = errors.New("spool key must be 32 bytes")

// LoadKey returns the spool key from the environment, from keyPath, or
// generates and saves a new one. The bool is true in the last case.
func LoadKey(keyPath string) ([]byte, bool, error) {
	// 1. Environment
	if envKey := os.Getenv(KeyEnv); envKey != "" {
		key, err := decodeKey(envKey)
		if err != nil {
			return nil, false, fmt.Errorf("invalid %s: %w", KeyEnv, err)
		}
		return key, false, nil
	}

	// 2. Key file
	data, err := os.ReadFile(keyPath)
	if err == nil {
		key, err := decodeKey(string(data))
		if err != nil {
			return nil, false, fmt.Errorf("invalid key file %s: %w", keyPath, err)
		}
		return key, false, nil
	}
	if !os.IsNotExist(err) {
		return nil, false, fmt.Errorf("failed to read key file: %w", err)
	}

	// 3. Generate
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, false, fmt.Errorf("failed to generate random key: %w", err)
	}
	if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(key)), 0600); err != nil {
		return nil, false, fmt.Errorf("failed to save spool key to %s: %w", keyPath, err)
	}
	return key, true, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	if len(key) != KeySize {
		return nil, errKeySize
	}
	return key, nil
}

// seal encrypts plaintext with XChaCha20-Poly1305 and returns nonce+ciphertext.
func seal(key, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// open reverses seal.
func open(key, data []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(data) < aead.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, nil)
}
