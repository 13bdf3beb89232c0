package custody

import "errors"

// Every public operation surfaces exactly one of these, errors.Is-matchable.
// Cryptographic failures collapse to ErrWrongSecret on purpose: the service
// never reveals whether a record was corrupted or the secret was wrong.
var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrAlreadyExists          = errors.New("wallet already exists")
	ErrNotFound               = errors.New("no wallet found")
	ErrWrongSecret            = errors.New("wrong secret")
	ErrCreationFailed         = errors.New("wallet creation failed")
	ErrUnsupportedEnvironment = errors.New("unsupported environment")
	ErrLocked                 = errors.New("too many failed attempts, try again later")

	// ErrAuthenticationFailed is the cipher-level failure; the service maps
	// it to ErrWrongSecret at its boundary.
	ErrAuthenticationFailed = errors.New("authentication failed")
)
