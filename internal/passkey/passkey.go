// Package passkey abstracts the platform credential API (WebAuthn or an OS
// keystore). The custody service only needs an opaque credential id; the
// challenge/response protocol stays behind this boundary. Platform credential
// support strengthens the derived secret material but never replaces the
// password path.
package passkey

import (
	"context"
	"errors"
)

var ErrUnsupported = errors.New("platform credentials are not supported in this environment")

// Registrar registers and asserts a device-bound credential.
type Registrar interface {
	// Supported reports whether the environment can do biometric-backed
	// registration. Used for UI copy only; callers must keep a working
	// password-only fallback.
	Supported() bool
	// Register creates a credential for the username and returns its id.
	Register(ctx context.Context, username string) (string, error)
	// Assert re-authenticates against the existing credential and returns
	// its id.
	Assert(ctx context.Context) (string, error)
}

// Disabled is the default registrar for headless environments.
type Disabled struct{}

func (Disabled) Supported() bool { return false }

func (Disabled) Register(context.Context, string) (string, error) {
	return "", ErrUnsupported
}

func (Disabled) Assert(context.Context) (string, error) {
	return "", ErrUnsupported
}
