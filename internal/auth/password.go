// Package auth provides password hashing.
//
// WHY PBKDF2?
// Passwords are stretched with PBKDF2-HMAC-SHA512 at a high iteration count.
// Like bcrypt, PBKDF2 is deliberately slow, which makes brute-forcing a
// leaked hash expensive. Unlike bcrypt, the salt is stored separately from
// the hash, which matches the on-disk account format:
//
//	{"passwordHash": "<128 hex chars>", "passwordSalt": "<32 hex chars>"}
//
// The salt's hex text (not its raw bytes) is fed to PBKDF2, so hashes
// produced by earlier deployments of the gateway still verify.
//
// NEVER store passwords in plain text or with fast hashes (MD5, SHA-256).
package auth

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// defaultIterations is the PBKDF2 work factor.
	defaultIterations = 100_000
	keyLength         = 64
	saltLength        = 16
)

// ErrInvalidPassword is returned by Verify when the password does not match.
var ErrInvalidPassword = errors.New("auth: invalid password")

// PasswordService provides PBKDF2 hashing and verification.
//
// It's a struct (not free functions) so that the iteration count can be
// injected in tests; a few hundred iterations keep tests fast without
// changing the logic under test.
type PasswordService struct {
	iterations int
}

// NewPasswordService creates a PasswordService with the default iteration count.
func NewPasswordService() *PasswordService {
	return &PasswordService{iterations: defaultIterations}
}

// NewPasswordServiceForTest creates a PasswordService with a custom
// iteration count. Do NOT use in production.
func NewPasswordServiceForTest(iterations int) *PasswordService {
	return &PasswordService{iterations: iterations}
}

// Hash derives a hash for plaintext under a fresh random salt.
// Both values are hex encoded and must be stored together.
func (p *PasswordService) Hash(plaintext string) (hash, salt string, err error) {
	raw := make([]byte, saltLength)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("auth: generating salt: %w", err)
	}
	salt = hex.EncodeToString(raw)
	return p.derive(plaintext, salt), salt, nil
}

// Verify checks plaintext against a stored hash and salt.
//
// TIMING SAFETY:
// subtle.ConstantTimeCompare takes the same time no matter where the first
// differing byte is, so response timing leaks nothing about the hash.
func (p *PasswordService) Verify(hash, salt, plaintext string) error {
	if hash == "" || salt == "" {
		return ErrInvalidPassword
	}
	got := p.derive(plaintext, salt)
	if subtle.ConstantTimeCompare([]byte(got), []byte(hash)) != 1 {
		return ErrInvalidPassword
	}
	return nil
}

func (p *PasswordService) derive(plaintext, salt string) string {
	key := pbkdf2.Key([]byte(plaintext), []byte(salt), p.iterations, keyLength, sha512.New)
	return hex.EncodeToString(key)
}
