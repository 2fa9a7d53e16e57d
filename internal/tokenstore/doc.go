// Package tokenstore caches the current access token in process memory and
// coordinates its renewal.
//
// A Store hands out the cached token while it is outside the refresh buffer
// and issues a new one otherwise. Concurrent callers that need a renewal at
// the same time share a single in-flight issuance:
//
//	store := tokenstore.New(issuer, tokenstore.WithRefreshBuffer(time.Minute))
//	token, err := store.Get(ctx, false)
//
// After the remote service rejects a token, Renew replaces it with a fresh one
// while letting other callers rejected with the same token reuse the result.
//
// Tokens are never persisted and never mutated; a renewal replaces the stored
// token wholesale.
package tokenstore
