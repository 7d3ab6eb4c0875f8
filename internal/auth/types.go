// Package auth obtains bearer credentials for the IDM API by exchanging a
// signed service-account assertion (RFC 7523 JWT bearer grant) at the
// tenant's OAuth2 token endpoint.
package auth

import (
	"context"
	"net/http"
	"time"
)

// TokenSource hands out the bearer credential used on IDM requests.
//
// Token returns the current credential, fetching one on first use.
// Refresh unconditionally obtains a new credential and replaces the cached one.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// HTTPDoer is the subset of *http.Client used for the token exchange.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Token is an access token issued by the token endpoint.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type,omitempty"`
	ExpiresIn   int       `json:"expires_in,omitempty"`
	Scope       string    `json:"scope,omitempty"`
	IssuedAt    time.Time `json:"-"`
}

// tokenErrorResponse is the OAuth2 error body (RFC 6749 section 5.2).
type tokenErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// State represents the local configuration state of the service account credential.
type State int

const (
	// StateConfigured means the account id and a usable signing key are present.
	StateConfigured State = iota
	// StateMissing means a required setting or the key file is missing.
	StateMissing
	// StateInvalid means the key file exists but cannot be used for signing.
	StateInvalid
)

// String returns a short label for the state.
func (s State) String() string {
	switch s {
	case StateConfigured:
		return "configured"
	case StateMissing:
		return "missing"
	case StateInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON and YAML output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status reports the result of a local credential check.
type Status struct {
	State     State  `json:"state" yaml:"state"`
	Summary   string `json:"summary" yaml:"summary"`
	AccountID string `json:"account_id,omitempty" yaml:"account_id,omitempty"`
	KeyFile   string `json:"key_file,omitempty" yaml:"key_file,omitempty"`
	KeyFormat string `json:"key_format,omitempty" yaml:"key_format,omitempty"`
	KeyID     string `json:"key_id,omitempty" yaml:"key_id,omitempty"`
	KeyBits   int    `json:"key_bits,omitempty" yaml:"key_bits,omitempty"`
}
