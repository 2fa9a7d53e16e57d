package secretstore

import (
	"context"
	"fmt"

	"github.com/zalando/go-keyring"
)

// DefaultKeyringService is the keyring service name secrets are filed under.
const DefaultKeyringService = "correos-link"

// KeyringStore keeps a secret in the OS-native credential storage.
type KeyringStore struct {
	service string
	user    string
}

// Compile-time check to ensure KeyringStore implements SecretStore
var _ SecretStore = (*KeyringStore)(nil)

// NewKeyringStore creates a KeyringStore for the given service and user identifiers.
func NewKeyringStore(service, user string) (*KeyringStore, error) {
	if service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}
	if user == "" {
		return nil, fmt.Errorf("user cannot be empty")
	}

	return &KeyringStore{
		service: service,
		user:    user,
	}, nil
}

// Read returns the secret from the system keyring. Returns error if not found or empty.
func (k *KeyringStore) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	secret, err := keyring.Get(k.service, k.user)
	if err != nil {
		return "", fmt.Errorf("reading keyring entry %s/%s: %w", k.service, k.user, err)
	}
	if secret == "" {
		return "", fmt.Errorf("empty secret in keyring for service %s, user %s", k.service, k.user)
	}
	return secret, nil
}

// Write stores the secret in the system keyring, overwriting any existing value.
func (k *KeyringStore) Write(ctx context.Context, secret string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if secret == "" {
		return fmt.Errorf("refusing to store an empty secret")
	}
	return keyring.Set(k.service, k.user, secret)
}
