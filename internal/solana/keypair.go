package solana

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/mr-tron/base58/base58"
)

const (
	// SecretKeySize is the length of a Solana secret key: the 32-byte ed25519
	// seed followed by the 32-byte public key, matching the wire form used by
	// wallet tooling.
	SecretKeySize = ed25519.PrivateKeySize
	PublicKeySize = ed25519.PublicKeySize
	SeedSize      = ed25519.SeedSize
)

var (
	ErrInvalidSecretKey = errors.New("invalid secret key")
	ErrInvalidSeed      = errors.New("invalid seed")
)

// Keypair holds an ed25519 signing keypair whose public half is the wallet's
// on-chain address.
type Keypair struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

func Generate() (*Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Keypair{pub: pub, priv: priv}, nil
}

// FromSecretKey reconstructs a keypair from the 64-byte secret key form and
// verifies that the embedded public key matches the private half.
func FromSecretKey(secretKey []byte) (*Keypair, error) {
	if len(secretKey) != SecretKeySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidSecretKey, len(secretKey))
	}
	priv := ed25519.NewKeyFromSeed(secretKey[:SeedSize])
	pub := priv.Public().(ed25519.PublicKey)
	if !pub.Equal(ed25519.PublicKey(secretKey[SeedSize:])) {
		return nil, fmt.Errorf("%w: public key mismatch", ErrInvalidSecretKey)
	}
	return &Keypair{pub: pub, priv: priv}, nil
}

func FromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidSeed, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Keypair{pub: priv.Public().(ed25519.PublicKey), priv: priv}, nil
}

// PublicIdentifier returns the base58 address form of the public key.
func (k *Keypair) PublicIdentifier() string {
	return base58.Encode(k.pub)
}

func (k *Keypair) PublicKey() ed25519.PublicKey {
	return append(ed25519.PublicKey(nil), k.pub...)
}

// SecretKey returns a copy of the 64-byte secret key. Callers own the copy
// and should zero it when done.
func (k *Keypair) SecretKey() []byte {
	return append([]byte(nil), k.priv...)
}

// Seed returns a copy of the 32-byte ed25519 seed.
func (k *Keypair) Seed() []byte {
	return append([]byte(nil), k.priv.Seed()...)
}

func (k *Keypair) Sign(payload []byte) []byte {
	return ed25519.Sign(k.priv, payload)
}

// Zero overwrites the private key material in place. The keypair must not be
// used afterwards.
func (k *Keypair) Zero() {
	for i := range k.priv {
		k.priv[i] = 0
	}
}

func Verify(publicKey ed25519.PublicKey, payload, signature []byte) bool {
	if len(publicKey) != PublicKeySize || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(publicKey, payload, signature)
}

// EncodeSecretKey renders a secret key in the base58 transport form used at
// rest and in exports.
func EncodeSecretKey(secretKey []byte) string {
	return base58.Encode(secretKey)
}

func DecodeSecretKey(encoded string) ([]byte, error) {
	raw, err := base58.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecretKey, err)
	}
	if len(raw) != SecretKeySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidSecretKey, len(raw))
	}
	return raw, nil
}
