// Package cryptox provides the credential primitives used by the user
// store and the session registry: salted password digests and opaque
// random tokens.
package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Configuration for Argon2id hashing.
const (
	memory      = 19 * 1024 // Memory usage in KiB (19 MiB)
	iterations  = 2         // Iteration count
	parallelism = 1         // Number of threads
	keyLength   = 32        // Length of the generated digest
	saltLength  = 16        // Length of the salt in bytes
)

// NewSalt returns a fresh random salt, hex-encoded. The salt is stored
// alongside the digest; it is not a secret.
func NewSalt() (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return hex.EncodeToString(salt), nil
}

// HashPassword generates a random salt and returns it together with the
// Argon2id digest of the password keyed with that salt. Both values are
// hex-encoded.
func HashPassword(password string) (salt, digest string, err error) {
	salt, err = NewSalt()
	if err != nil {
		return "", "", err
	}
	return salt, HashPasswordWithSalt(password, salt), nil
}

// HashPasswordWithSalt computes the hex-encoded Argon2id digest of the
// password keyed with the given salt. Deterministic for given inputs.
func HashPasswordWithSalt(password, salt string) string {
	digest := argon2.IDKey([]byte(password), saltBytes(salt), iterations, memory, parallelism, keyLength)
	return hex.EncodeToString(digest)
}

// VerifyPassword recomputes the digest for the candidate password with the
// stored salt and compares it against the stored digest in constant time.
func VerifyPassword(password, salt, digest string) bool {
	computed := HashPasswordWithSalt(password, salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}

// saltBytes decodes a hex-encoded salt. Rows imported from older tables may
// carry the salt as an opaque string; those are keyed by their raw bytes.
func saltBytes(salt string) []byte {
	if b, err := hex.DecodeString(salt); err == nil {
		return b
	}
	return []byte(salt)
}
