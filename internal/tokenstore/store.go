package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// Default renewal settings.
const (
	DefaultRefreshBuffer  = 60 * time.Second
	DefaultRenewalTimeout = 30 * time.Second
)

// renewalKey is the single-flight key shared by all renewals of a Store.
const renewalKey = "renewal"

// Issuer obtains new access tokens.
type Issuer interface {
	Issue(ctx context.Context) (*oauth2.Token, error)
}

// Option configures a Store.
type Option func(*Store)

// WithRefreshBuffer sets the safety margin before expiry within which a
// cached token is no longer handed out. Defaults to DefaultRefreshBuffer.
func WithRefreshBuffer(buffer time.Duration) Option {
	return func(s *Store) {
		if buffer >= 0 {
			s.buffer = buffer
		}
	}
}

// WithRenewalTimeout bounds a shared issuance, which outlives the caller
// that started it. Defaults to DefaultRenewalTimeout.
func WithRenewalTimeout(timeout time.Duration) Option {
	return func(s *Store) {
		if timeout > 0 {
			s.renewalTimeout = timeout
		}
	}
}

// WithClock overrides the time source used for validity checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store holds at most one access token and renews it on demand.
// It is safe for concurrent use.
type Store struct {
	issuer         Issuer
	buffer         time.Duration
	renewalTimeout time.Duration
	now            func() time.Time

	mu    sync.RWMutex
	token *oauth2.Token

	renewals singleflight.Group
}

// New creates an empty Store. No token is issued until the first Get.
func New(issuer Issuer, opts ...Option) *Store {
	s := &Store{
		issuer:         issuer,
		buffer:         DefaultRefreshBuffer,
		renewalTimeout: DefaultRenewalTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a token valid for at least the refresh buffer. The cached token
// is returned without a network call unless forceRefresh is set, it is
// missing, or it expires within the buffer.
//
// Callers must not modify the returned token.
func (s *Store) Get(ctx context.Context, forceRefresh bool) (*oauth2.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !forceRefresh {
		if token := s.current(); token != nil {
			return token, nil
		}
	}

	return s.renew(ctx, forceRefresh, nil)
}

// Invalidate discards the stored token. The next Get always issues a new one.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.token = nil
	s.mu.Unlock()

	slog.Info("access token invalidated")
}

// Renew replaces a token the remote service rejected. The stored token is
// discarded only if it is still the rejected one; when another caller has
// already replaced it, the replacement is returned. Otherwise Renew forces a
// renewal, joining one that is already in flight.
func (s *Store) Renew(ctx context.Context, rejected *oauth2.Token) (*oauth2.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.token != nil && (rejected == nil || s.token.AccessToken == rejected.AccessToken) {
		s.token = nil
	}
	s.mu.Unlock()

	if token := s.current(); token != nil {
		slog.DebugContext(ctx, "rejected token already replaced")
		return token, nil
	}

	return s.renew(ctx, true, rejected)
}

// current returns the stored token if it is outside the refresh buffer.
func (s *Store) current() *oauth2.Token {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()

	if !s.valid(token) {
		return nil
	}
	return token
}

func (s *Store) valid(token *oauth2.Token) bool {
	if token == nil || token.AccessToken == "" || token.Expiry.IsZero() {
		return false
	}
	return s.now().Before(token.Expiry.Add(-s.buffer))
}

// renew issues a new token, coalescing concurrent callers into one issuance.
// A forced renewal of a rejected token is skipped when the stored token
// already differs from it.
//
// The issuance runs detached from ctx so that one caller giving up does not
// fail the others waiting on it; ctx only bounds how long this caller waits.
// A failed issuance stores nothing.
func (s *Store) renew(ctx context.Context, forced bool, rejected *oauth2.Token) (*oauth2.Token, error) {
	ch := s.renewals.DoChan(renewalKey, func() (any, error) {
		// A renewal may have completed between the cache check and here.
		if token := s.current(); token != nil {
			if !forced || (rejected != nil && token.AccessToken != rejected.AccessToken) {
				return token, nil
			}
		}

		issueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.renewalTimeout)
		defer cancel()

		slog.InfoContext(issueCtx, "renewing access token", "forced", forced)

		token, err := s.issuer.Issue(issueCtx)
		if err != nil {
			slog.ErrorContext(issueCtx, "access token renewal failed", "error", err)
			return nil, err
		}
		if token == nil || token.AccessToken == "" {
			return nil, errors.New("issuer returned an empty token")
		}

		s.mu.Lock()
		s.token = token
		s.mu.Unlock()

		return token, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("renewing access token: %w", res.Err)
		}
		return res.Val.(*oauth2.Token), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TokenSource returns an oauth2.TokenSource backed by the Store. Tokens are
// obtained with ctx.
func (s *Store) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &storeTokenSource{ctx: ctx, store: s}
}

type storeTokenSource struct {
	ctx   context.Context
	store *Store
}

// Compile-time check that storeTokenSource implements oauth2.TokenSource.
var _ oauth2.TokenSource = (*storeTokenSource)(nil)

func (ts *storeTokenSource) Token() (*oauth2.Token, error) {
	return ts.store.Get(ts.ctx, false)
}
