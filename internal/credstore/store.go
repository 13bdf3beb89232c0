// Package credstore persists the single wallet credential record. It performs
// no cryptography; encrypted and legacy fields pass through untouched.
package credstore

import (
	"encoding/json"
	"fmt"

	"blink-wallet/go-backend/internal/kvstore"
)

// Storage slot names are fixed; one record exists per device profile.
const (
	walletSlot   = "blink-passkey-wallet"
	usernameSlot = "blink-username"
)

// Record is the durable, at-rest form of the wallet credential. IV and Salt
// are base64url; EncryptedPrivateKey is base64url ciphertext, except in the
// legacy format where it holds the base58 secret key in plaintext and IV and
// Salt are absent.
type Record struct {
	CredentialID        string `json:"credentialId"`
	PublicKey           string `json:"publicKey"`
	EncryptedPrivateKey string `json:"encryptedPrivateKey"`
	IV                  string `json:"iv,omitempty"`
	Salt                string `json:"salt,omitempty"`
}

// IsLegacy reports whether the record predates encryption at rest and must be
// migrated on the next successful authentication.
func (r Record) IsLegacy() bool {
	return r.IV == "" || r.Salt == ""
}

type Store struct {
	kv kvstore.Store
}

func New(kv kvstore.Store) *Store {
	return &Store{kv: kv}
}

// Save replaces the active record and the display username. If the username
// write fails after the record was stored, the record is rolled back so a
// failed save never leaves partial wallet state.
func (s *Store) Save(rec Record, username string) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	prev, hadPrev, err := s.kv.Get(walletSlot)
	if err != nil {
		return err
	}
	if err := s.kv.Set(walletSlot, string(raw)); err != nil {
		return err
	}
	if err := s.kv.Set(usernameSlot, username); err != nil {
		if hadPrev {
			_ = s.kv.Set(walletSlot, prev)
		} else {
			_ = s.kv.Remove(walletSlot)
		}
		return err
	}
	return nil
}

// Load returns the active record. Absence is a normal state, not an error.
func (s *Store) Load() (Record, bool, error) {
	raw, ok, err := s.kv.Get(walletSlot)
	if err != nil || !ok {
		return Record{}, false, err
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Record{}, false, fmt.Errorf("corrupt credential record: %w", err)
	}
	return rec, true, nil
}

func (s *Store) Username() (string, bool) {
	v, ok, err := s.kv.Get(usernameSlot)
	if err != nil {
		return "", false
	}
	return v, ok
}

func (s *Store) Exists() bool {
	_, ok, err := s.kv.Get(walletSlot)
	return err == nil && ok
}

// Erase removes the record and username. Idempotent.
func (s *Store) Erase() error {
	if err := s.kv.Remove(walletSlot); err != nil {
		return err
	}
	return s.kv.Remove(usernameSlot)
}
