package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/florianilch/correos-link/internal/secretstore"
	"github.com/florianilch/correos-link/internal/tokensource"
)

// LazyCredentials supplies issuer credentials whose password lives in a
// SecretStore. The store is read on the first issuance; a failed read is
// retried on the next one.
type LazyCredentials struct {
	username string
	system   string
	store    secretstore.SecretStore

	mu       sync.Mutex
	password string
	loaded   bool
}

// Compile-time check to ensure LazyCredentials implements tokensource.CredentialsProvider
var _ tokensource.CredentialsProvider = (*LazyCredentials)(nil)

// NewLazyCredentials creates LazyCredentials. No I/O is performed until the
// first Credentials call.
func NewLazyCredentials(username, system string, store secretstore.SecretStore) (*LazyCredentials, error) {
	if username == "" {
		return nil, fmt.Errorf("missing username")
	}
	if store == nil {
		return nil, fmt.Errorf("missing password store")
	}

	return &LazyCredentials{
		username: username,
		system:   system,
		store:    store,
	}, nil
}

// readPassword returns the cached password or reads it from the store.
// Only successful reads are cached.
func (c *LazyCredentials) readPassword(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		return c.password, nil
	}

	password, err := c.store.Read(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	c.password, c.loaded = password, true
	return password, nil
}

// Credentials returns the account credentials, reading the password on first use.
func (c *LazyCredentials) Credentials(ctx context.Context) (tokensource.Credentials, error) {
	if err := ctx.Err(); err != nil {
		return tokensource.Credentials{}, err
	}

	password, err := c.readPassword(ctx)
	if err != nil {
		return tokensource.Credentials{}, err
	}

	return tokensource.Credentials{
		Username: c.username,
		Password: password,
		System:   c.system,
	}, nil
}
