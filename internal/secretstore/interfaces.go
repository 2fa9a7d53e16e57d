package secretstore

import (
	"context"
	"errors"
)

// ErrReadOnly is returned by Write on backends that cannot be written.
var ErrReadOnly = errors.New("secret storage is read-only")

// SecretStore reads and writes a single secret value.
type SecretStore interface {
	// Read returns the stored secret. Returns error if it is missing or empty.
	Read(ctx context.Context) (string, error)

	// Write persists the secret, replacing any previous value. Returns
	// ErrReadOnly if the backend cannot be written.
	Write(ctx context.Context, secret string) error
}
