package custody

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// Work factor fixed at creation time; decrypt recomputes with the same
	// parameters, so changing this only affects newly sealed records.
	kdfIterations = 100_000

	SaltSize = 16
	KeySize  = 32
)

// passphraseDomainTag namespaces derived keys to this application so the same
// password used elsewhere never derives the same key.
const passphraseDomainTag = "blink-wallet"

// DeriveKey stretches secret material into a 32-byte encryption key via
// PBKDF2-SHA256. Deterministic over its inputs, no side effects.
func DeriveKey(secretMaterial string, salt []byte) ([]byte, error) {
	if secretMaterial == "" {
		return nil, fmt.Errorf("%w: empty secret material", ErrInvalidInput)
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("%w: salt must be %d bytes, got %d", ErrInvalidInput, SaltSize, len(salt))
	}
	return pbkdf2.Key([]byte(secretMaterial), salt, kdfIterations, KeySize, sha256.New), nil
}

// passphraseMaterial combines the user secret with the per-wallet username
// and credential id so two accounts derive different keys even from equal
// passwords. The user secret is the baseline; the credential id only adds
// entropy on devices that have one.
func passphraseMaterial(secret, username, credentialID string) string {
	return secret + "\x00" + username + "\x00" + credentialID + "\x00" + passphraseDomainTag
}
