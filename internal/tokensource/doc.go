// Package tokensource obtains short-lived access tokens from the Correos de
// Costa Rica authentication endpoint.
//
// The endpoint deviates from OAuth2 in several ways that require custom handling:
//   - Credentials are posted as a JSON object ({"Username","Password","Sistema"})
//   - The response shape is not stable: a JSON object with one of several key
//     names, a bare JSON string, or a plain-text body are all seen in practice
//   - Tokens sometimes arrive with a "Bearer " prefix that the SOAP service rejects
//   - No expiry is returned, so it is read from the token's own "exp" claim
//
// # Issuing tokens
//
//	issuer := tokensource.NewIssuer(tokenURL, tokensource.StaticCredentials{
//		Username: "user",
//		Password: "secret",
//		System:   "PYMEXPRESS",
//	})
//	token, err := issuer.Issue(ctx)
//
// Issue never retries; caching and renewal belong to the tokenstore package.
//
// # Custom Base Transport
//
// Configure a custom base transport for issuance requests (e.g., for proxies or custom TLS roots):
//
//	issuer := tokensource.NewIssuer(
//		tokenURL,
//		credentials,
//		tokensource.WithTransport(customTransport),
//	)
package tokensource
