package custody

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tyler-smith/go-bip39"

	"blink-wallet/go-backend/internal/credstore"
	"blink-wallet/go-backend/internal/passkey"
	"blink-wallet/go-backend/internal/solana"
)

// fallbackUsername matches the display-name default used when a record exists
// but the username slot was lost.
const fallbackUsername = "user"

// Service owns the wallet lifecycle: create, authenticate, sign, delete. The
// single credential record slot is a critical section; create and delete
// never interleave.
type Service struct {
	mu        sync.Mutex
	store     *credstore.Store
	registrar passkey.Registrar
	policy    Policy
	log       *slog.Logger
	metrics   *serviceMetrics

	failedAttempts int
	lockedUntil    time.Time
	now            func() time.Time
}

type Option func(*Service)

func WithRegistrar(r passkey.Registrar) Option {
	return func(s *Service) { s.registrar = r }
}

func WithPolicy(p Policy) Option {
	return func(s *Service) { s.policy = p }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *Service) { s.metrics = newServiceMetrics(reg) }
}

func withClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store *credstore.Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		registrar: passkey.Disabled{},
		policy:    EncryptedPolicy{},
		log:       slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create generates a fresh keypair, seals it under the secret, and persists
// the credential record plus username. Fails with ErrAlreadyExists when a
// wallet is already registered; any later failure persists nothing.
func (s *Service) Create(ctx context.Context, username, secret string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || secret == "" {
		return "", fmt.Errorf("%w: username and secret are required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store.Exists() {
		return "", ErrAlreadyExists
	}

	kp, err := solana.Generate()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCreationFailed, err)
	}
	defer kp.Zero()

	return s.persistKeypairLocked(ctx, username, secret, kp)
}

// persistKeypairLocked runs steps 2-5 of creation for a ready keypair; shared
// with recovery-phrase import. Caller holds the mutex and zeroes the keypair.
func (s *Service) persistKeypairLocked(ctx context.Context, username, secret string, kp *solana.Keypair) (string, error) {
	credentialID := s.registerCredential(ctx, username)

	encoded := solana.EncodeSecretKey(kp.SecretKey())
	sealed, err := s.policy.Seal(passphraseMaterial(secret, username, credentialID), encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCreationFailed, err)
	}

	publicID := kp.PublicIdentifier()
	rec := credstore.Record{
		CredentialID:        credentialID,
		PublicKey:           publicID,
		EncryptedPrivateKey: sealed.Ciphertext,
		IV:                  sealed.IV,
		Salt:                sealed.Salt,
	}
	if err := s.store.Save(rec, username); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCreationFailed, err)
	}

	s.resetAttemptsLocked()
	s.metrics.observeCreate()
	s.log.Info("wallet created",
		slog.String("public_key", publicID),
		slog.String("policy", s.policy.Name()),
	)
	return publicID, nil
}

// registerCredential obtains a device-bound credential id when the platform
// supports one, and otherwise synthesizes a local id. Registration failure
// downgrades to the synthetic id: the password-derived key is the baseline
// and the credential id only adds entropy.
func (s *Service) registerCredential(ctx context.Context, username string) string {
	if s.registrar.Supported() {
		id, err := s.registrar.Register(ctx, username)
		if err == nil && id != "" {
			return id
		}
		s.log.Warn("platform credential registration failed, using local credential", slog.Any("error", err))
	}
	return "local-" + uuid.NewString()
}

// Authenticate loads the record, recovers the keypair under the supplied
// secret, and returns the public identifier with a transient keypair. The
// caller must not persist the keypair and should zero it after use.
func (s *Service) Authenticate(ctx context.Context, secret string) (string, *solana.Keypair, error) {
	if secret == "" {
		return "", nil, fmt.Errorf("%w: secret is required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureUnlockedLocked(); err != nil {
		s.metrics.observeAuth("locked")
		return "", nil, err
	}

	rec, ok, err := s.store.Load()
	if err != nil {
		s.metrics.observeAuth("error")
		return "", nil, err
	}
	if !ok {
		s.metrics.observeAuth("not_found")
		return "", nil, ErrNotFound
	}

	if s.registrar.Supported() {
		// User-presence check only; the stored credential id feeds the KDF.
		if _, err := s.registrar.Assert(ctx); err != nil {
			s.log.Warn("platform credential assertion failed, continuing on password path", slog.Any("error", err))
		}
	}

	username, ok := s.store.Username()
	if !ok || username == "" {
		username = fallbackUsername
	}

	if rec.IsLegacy() {
		kp, err := s.openLegacyLocked(rec, username, secret)
		if err != nil {
			return "", nil, err
		}
		s.resetAttemptsLocked()
		s.metrics.observeAuth("ok")
		return rec.PublicKey, kp, nil
	}

	encoded, err := s.policy.Open(passphraseMaterial(secret, username, rec.CredentialID), rec)
	if err != nil {
		if errors.Is(err, ErrAuthenticationFailed) {
			s.onFailedAttemptLocked()
			s.metrics.observeAuth("wrong_secret")
			return "", nil, ErrWrongSecret
		}
		s.metrics.observeAuth("error")
		return "", nil, err
	}

	kp, err := keypairFromEncoded(encoded, rec.PublicKey)
	if err != nil {
		s.onFailedAttemptLocked()
		s.metrics.observeAuth("wrong_secret")
		return "", nil, ErrWrongSecret
	}

	s.resetAttemptsLocked()
	s.metrics.observeAuth("ok")
	return rec.PublicKey, kp, nil
}

// openLegacyLocked handles records written before encryption at rest: the
// stored value is the base58 secret key itself. After reconstructing the
// keypair the record is re-sealed under the current policy so the plaintext
// form disappears on first successful authentication.
func (s *Service) openLegacyLocked(rec credstore.Record, username, secret string) (*solana.Keypair, error) {
	kp, err := keypairFromEncoded(rec.EncryptedPrivateKey, rec.PublicKey)
	if err != nil {
		s.onFailedAttemptLocked()
		s.metrics.observeAuth("wrong_secret")
		return nil, ErrWrongSecret
	}
	if !s.policy.EncryptsAtRest() {
		return kp, nil
	}

	sealed, err := s.policy.Seal(passphraseMaterial(secret, username, rec.CredentialID), rec.EncryptedPrivateKey)
	if err != nil {
		kp.Zero()
		return nil, err
	}
	migrated := rec
	migrated.EncryptedPrivateKey = sealed.Ciphertext
	migrated.IV = sealed.IV
	migrated.Salt = sealed.Salt
	if err := s.store.Save(migrated, username); err != nil {
		kp.Zero()
		return nil, err
	}
	s.metrics.observeMigration()
	s.log.Info("legacy wallet record migrated to encrypted form",
		slog.String("public_key", rec.PublicKey),
	)
	return kp, nil
}

// Sign authenticates and signs the payload in one call. The keypair never
// leaves this method.
func (s *Service) Sign(ctx context.Context, secret string, payload []byte) ([]byte, error) {
	_, kp, err := s.Authenticate(ctx, secret)
	if err != nil {
		return nil, err
	}
	defer kp.Zero()
	return kp.Sign(payload), nil
}

// Delete erases the credential record and username. Idempotent and
// irreversible; deleting a missing wallet is not an error.
func (s *Service) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Erase(); err != nil {
		return err
	}
	s.resetAttemptsLocked()
	s.metrics.observeDelete()
	s.log.Info("wallet deleted")
	return nil
}

// Has reports whether a wallet is registered on this device profile.
func (s *Service) Has() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Exists()
}

// Username returns the stored display name, if any.
func (s *Service) Username() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Username()
}

// PublicIdentifier returns the wallet address without requiring the secret.
func (s *Service) PublicIdentifier() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok, err := s.store.Load()
	if err != nil || !ok {
		return "", false
	}
	return rec.PublicKey, true
}

// IsBiometricSupported probes platform credential support. UI copy only; the
// password path works either way.
func (s *Service) IsBiometricSupported() bool {
	return s.registrar.Supported()
}

// ExportRecoveryPhrase authenticates and renders the keypair seed as a BIP-39
// mnemonic for offline backup.
func (s *Service) ExportRecoveryPhrase(ctx context.Context, secret string) (string, error) {
	_, kp, err := s.Authenticate(ctx, secret)
	if err != nil {
		return "", err
	}
	defer kp.Zero()
	seed := kp.Seed()
	defer zeroBytes(seed)
	return bip39.NewMnemonic(seed)
}

// ImportFromRecoveryPhrase recreates a wallet from a mnemonic produced by
// ExportRecoveryPhrase. Follows Create semantics, including ErrAlreadyExists.
func (s *Service) ImportFromRecoveryPhrase(ctx context.Context, username, mnemonic, secret string) (string, error) {
	username = strings.TrimSpace(username)
	mnemonic = strings.TrimSpace(mnemonic)
	if username == "" || secret == "" {
		return "", fmt.Errorf("%w: username and secret are required", ErrInvalidInput)
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return "", fmt.Errorf("%w: invalid recovery phrase", ErrInvalidInput)
	}
	entropy, err := bip39.EntropyFromMnemonic(mnemonic)
	if err != nil || len(entropy) != solana.SeedSize {
		return "", fmt.Errorf("%w: invalid recovery phrase", ErrInvalidInput)
	}
	defer zeroBytes(entropy)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store.Exists() {
		return "", ErrAlreadyExists
	}

	kp, err := solana.FromSeed(entropy)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCreationFailed, err)
	}
	defer kp.Zero()

	return s.persistKeypairLocked(ctx, username, secret, kp)
}

func keypairFromEncoded(encoded, wantPublicID string) (*solana.Keypair, error) {
	raw, err := solana.DecodeSecretKey(encoded)
	if err != nil {
		return nil, err
	}
	defer zeroBytes(raw)
	kp, err := solana.FromSecretKey(raw)
	if err != nil {
		return nil, err
	}
	if wantPublicID != "" && kp.PublicIdentifier() != wantPublicID {
		kp.Zero()
		return nil, ErrAuthenticationFailed
	}
	return kp, nil
}

func (s *Service) ensureUnlockedLocked() error {
	if s.lockedUntil.IsZero() {
		return nil
	}
	if s.now().Before(s.lockedUntil) {
		return ErrLocked
	}
	return nil
}

func (s *Service) onFailedAttemptLocked() {
	s.failedAttempts++
	s.lockedUntil = s.now().Add(failedAttemptBackoff(s.failedAttempts))
}

func (s *Service) resetAttemptsLocked() {
	s.failedAttempts = 0
	s.lockedUntil = time.Time{}
}

func failedAttemptBackoff(attempt int) time.Duration {
	if attempt <= 1 {
		// First wrong guess is free; a typo should not lock anyone out.
		return 0
	}
	shift := attempt - 2
	if shift > 5 {
		shift = 5
	}
	return time.Second * time.Duration(1<<shift)
}
