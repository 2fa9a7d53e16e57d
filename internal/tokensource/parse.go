package tokensource

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// knownTokenKeys lists the JSON object keys that carry the token, in lookup order.
var knownTokenKeys = []string{"token", "Token", "access_token", "AccessToken", "result"}

// response is the issuer response body, decoded once and shared by all strategies.
type response struct {
	raw    []byte
	isJSON bool
	doc    any
}

func newResponse(body []byte) *response {
	r := &response{raw: bytes.TrimSpace(body)}

	dec := json.NewDecoder(bytes.NewReader(r.raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err == nil && !dec.More() {
		r.isJSON = true
		r.doc = doc
	}
	return r
}

// strategy extracts a raw token value from a response.
// ok reports whether the strategy recognized the response shape.
type strategy struct {
	name    string
	extract func(r *response) (value string, ok bool)
}

// strategies are tried in order; the first one that recognizes the shape wins.
var strategies = []strategy{
	{name: "json-known-key", extract: fromKnownKey},
	{name: "json-single-key", extract: fromSingleKey},
	{name: "json-string", extract: fromJSONString},
	{name: "plain-text", extract: fromPlainText},
}

func fromKnownKey(r *response) (string, bool) {
	obj, ok := r.doc.(map[string]any)
	if !ok {
		return "", false
	}
	for _, key := range knownTokenKeys {
		if v, found := obj[key]; found {
			return scalarString(v)
		}
	}
	return "", false
}

func fromSingleKey(r *response) (string, bool) {
	obj, ok := r.doc.(map[string]any)
	if !ok || len(obj) != 1 {
		return "", false
	}
	for _, v := range obj {
		return scalarString(v)
	}
	return "", false
}

func fromJSONString(r *response) (string, bool) {
	if !r.isJSON {
		return "", false
	}
	switch v := r.doc.(type) {
	case string:
		return v, true
	case nil:
		// Literal JSON null: recognized, but empty.
		return "", true
	}
	return "", false
}

func fromPlainText(r *response) (string, bool) {
	if r.isJSON {
		return "", false
	}
	return string(r.raw), true
}

// scalarString converts a decoded JSON scalar to its string form.
// Nested objects and arrays are not usable token values.
func scalarString(v any) (string, bool) {
	switch s := v.(type) {
	case nil:
		return "", true
	case string:
		return s, true
	case json.Number:
		return s.String(), true
	case bool:
		return strconv.FormatBool(s), true
	default:
		return "", false
	}
}

// extractToken runs the strategies and returns the normalized token.
func extractToken(r *response) (string, error) {
	for _, s := range strategies {
		value, ok := s.extract(r)
		if !ok {
			continue
		}
		token := normalizeToken(value)
		if isEmptySentinel(token) {
			return "", &AuthError{Kind: ErrEmptyToken, Body: truncateBody(r.raw)}
		}
		return token, nil
	}
	return "", &AuthError{Kind: ErrParse, Body: truncateBody(r.raw)}
}

// normalizeToken trims whitespace and quotes and strips a "Bearer " scheme prefix.
// The SOAP service rejects tokens that carry the prefix.
func normalizeToken(value string) string {
	t := strings.TrimSpace(value)
	t = strings.Trim(t, `"'`)
	t = strings.TrimSpace(t)
	if len(t) >= len("bearer ") && strings.EqualFold(t[:len("bearer ")], "bearer ") {
		t = strings.TrimSpace(t[len("bearer "):])
	}
	return t
}

func isEmptySentinel(token string) bool {
	return token == "" || strings.EqualFold(token, "null") || strings.EqualFold(token, "none")
}

// expiresIn reads an optional numeric "expires_in" (seconds) from a JSON object response.
func expiresIn(r *response) (time.Duration, bool) {
	obj, ok := r.doc.(map[string]any)
	if !ok {
		return 0, false
	}
	var seconds int64
	switch v := obj["expires_in"].(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		seconds = int64(f)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		seconds = n
	default:
		return 0, false
	}
	if seconds <= 0 {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}

// claimsExpiry decodes token as a JWT without verifying it and returns its "exp" claim.
func claimsExpiry(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}

	claims := jwt.MapClaims{}
	// Claims are decoded before the signing method is looked up, so an
	// unknown or missing "alg" still leaves usable claims behind.
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil && !errors.Is(err, jwt.ErrTokenUnverifiable) {
		return time.Time{}, false
	}

	if exp, ok := claims["exp"].(string); ok {
		sec, err := strconv.ParseInt(strings.TrimSpace(exp), 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(sec, 0), true
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
