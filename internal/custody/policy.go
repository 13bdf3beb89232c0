package custody

import (
	"crypto/rand"
	"encoding/base64"

	"blink-wallet/go-backend/internal/credstore"
)

// Sealed is the at-rest form a policy produces for a secret key. Fields map
// onto the credential record; a plaintext policy leaves IV and Salt empty,
// which is exactly the legacy record shape.
type Sealed struct {
	Ciphertext string
	IV         string
	Salt       string
}

// Policy decides how the encoded secret key is protected at rest. Selected
// once at construction so production code paths can never fall through to an
// insecure branch at runtime.
type Policy interface {
	Name() string
	EncryptsAtRest() bool
	Seal(secretMaterial, encodedKey string) (Sealed, error)
	Open(secretMaterial string, rec credstore.Record) (string, error)
}

var blobEncoding = base64.RawURLEncoding

// EncryptedPolicy derives a key from the secret material with a fresh salt
// and seals the encoded secret key with AES-256-GCM.
type EncryptedPolicy struct{}

func (EncryptedPolicy) Name() string         { return "encrypted" }
func (EncryptedPolicy) EncryptsAtRest() bool { return true }

func (EncryptedPolicy) Seal(secretMaterial, encodedKey string) (Sealed, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return Sealed{}, err
	}
	key, err := DeriveKey(secretMaterial, salt)
	if err != nil {
		return Sealed{}, err
	}
	defer zeroBytes(key)

	ciphertext, nonce, err := Encrypt([]byte(encodedKey), key)
	if err != nil {
		return Sealed{}, err
	}
	return Sealed{
		Ciphertext: blobEncoding.EncodeToString(ciphertext),
		IV:         blobEncoding.EncodeToString(nonce),
		Salt:       blobEncoding.EncodeToString(salt),
	}, nil
}

func (EncryptedPolicy) Open(secretMaterial string, rec credstore.Record) (string, error) {
	salt, err := blobEncoding.DecodeString(rec.Salt)
	if err != nil {
		return "", ErrAuthenticationFailed
	}
	nonce, err := blobEncoding.DecodeString(rec.IV)
	if err != nil {
		return "", ErrAuthenticationFailed
	}
	ciphertext, err := blobEncoding.DecodeString(rec.EncryptedPrivateKey)
	if err != nil {
		return "", ErrAuthenticationFailed
	}
	key, err := DeriveKey(secretMaterial, salt)
	if err != nil {
		return "", err
	}
	defer zeroBytes(key)

	plaintext, err := Decrypt(ciphertext, nonce, key)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// PlaintextDemoPolicy stores the encoded secret key without encryption. Demo
// builds only; records it writes look like legacy records and are migrated if
// the wallet is later opened under the encrypted policy.
type PlaintextDemoPolicy struct{}

func (PlaintextDemoPolicy) Name() string         { return "plaintext-demo" }
func (PlaintextDemoPolicy) EncryptsAtRest() bool { return false }

func (PlaintextDemoPolicy) Seal(_, encodedKey string) (Sealed, error) {
	return Sealed{Ciphertext: encodedKey}, nil
}

func (PlaintextDemoPolicy) Open(_ string, rec credstore.Record) (string, error) {
	return rec.EncryptedPrivateKey, nil
}
