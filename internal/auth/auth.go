// Package auth validates the shared API token presented on HTTP requests and
// WebSocket upgrades.
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

var ErrUnauthorized = errors.New("auth: unauthorized")

// QueryParam carries the token on requests that cannot set headers, such as
// browser WebSocket upgrades.
const QueryParam = "token"

// Validator validates an authentication token.
type Validator interface {
	Validate(token string) error
}

// StaticToken accepts exactly one shared token. An empty Token rejects
// everything.
type StaticToken struct {
	Token string
}

func (s StaticToken) Validate(token string) error {
	if s.Token == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// FromConfig returns a StaticToken for a configured token, or nil when the
// API is left open.
func FromConfig(token string) Validator {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	return StaticToken{Token: token}
}

// TokenFromRequest extracts a bearer token, falling back to the token query
// parameter.
func TokenFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return strings.TrimSpace(r.URL.Query().Get(QueryParam))
}

// Check validates the request against v. A nil validator admits everything.
func Check(v Validator, r *http.Request) error {
	if v == nil {
		return nil
	}
	return v.Validate(TokenFromRequest(r))
}
