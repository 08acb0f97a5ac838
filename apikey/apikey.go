// Package apikey generates and verifies the server-to-server credentials
// that protect the license API. Keys are random, base58-encoded with a
// recognizable prefix, and stored only as bcrypt hashes.
package apikey

import (
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/bcrypt"
)

// Prefix marks AEGIS API keys so they are identifiable in config files and
// secret scanners without decoding.
const Prefix = "aeg_"

const rawKeyBytes = 32

// Generate returns a new plaintext API key and its bcrypt hash. The
// plaintext is shown to the operator exactly once; only the hash is stored.
func Generate() (plaintext, hash string, err error) {
	raw := make([]byte, rawKeyBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("apikey: generate: %w", err)
	}
	plaintext = Prefix + base58.Encode(raw)
	hash, err = Hash(plaintext)
	if err != nil {
		return "", "", err
	}
	return plaintext, hash, nil
}

// Hash bcrypt-hashes a plaintext key for storage.
func Hash(plaintext string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("apikey: hash: %w", err)
	}
	return string(h), nil
}

// Verify compares a stored bcrypt hash with a presented plaintext key.
func Verify(hash, plaintext string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err == bcrypt.ErrMismatchedHashAndPassword {
		return false, nil
	}
	return err == nil, err
}

// WellFormed reports whether a presented credential even looks like an
// AEGIS API key, letting the auth layer reject junk before any bcrypt work.
func WellFormed(plaintext string) bool {
	if !strings.HasPrefix(plaintext, Prefix) {
		return false
	}
	body := strings.TrimPrefix(plaintext, Prefix)
	if body == "" {
		return false
	}
	_, err := base58.Decode(body)
	return err == nil
}
