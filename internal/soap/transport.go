package soap

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
)

type tokenContextKey struct{}

// withToken returns a context carrying the token for TokenTransport.
func withToken(ctx context.Context, token *oauth2.Token) context.Context {
	return context.WithValue(ctx, tokenContextKey{}, token)
}

func tokenFromContext(ctx context.Context) *oauth2.Token {
	token, _ := ctx.Value(tokenContextKey{}).(*oauth2.Token)
	return token
}

// TokenTransport is an http.RoundTripper that adds Authorization and pToken
// headers for the token carried by the request context. Requests without a
// token pass through unchanged.
type TokenTransport struct {
	Base http.RoundTripper
}

// Compile-time check that TokenTransport implements http.RoundTripper.
var _ http.RoundTripper = (*TokenTransport)(nil)

// RoundTrip implements http.RoundTripper interface.
// Headers are set on a clone so the caller's request is never modified.
func (t *TokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	token := tokenFromContext(req.Context())
	if token == nil {
		return base.RoundTrip(req)
	}

	newReq := req.Clone(req.Context())
	token.SetAuthHeader(newReq)
	newReq.Header.Set(tokenParam, token.AccessToken)

	return base.RoundTrip(newReq)
}
