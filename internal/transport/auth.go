package transport

import (
	"net/http"

	"github.com/agentstation/relink/pkg/constants"
)

// Authenticator applies a credential to HTTP requests.
type Authenticator interface {
	Apply(req *http.Request, token string)
}

// NoAuth implements no authentication.
type NoAuth struct{}

// Apply implements the Authenticator interface for NoAuth.
func (a *NoAuth) Apply(_ *http.Request, _ string) {
	// No authentication applied
}

// BearerAuth implements Bearer token authentication.
type BearerAuth struct{}

// Apply implements the Authenticator interface for BearerAuth.
func (a *BearerAuth) Apply(req *http.Request, token string) {
	if token == "" {
		return
	}
	req.Header.Set(constants.HeaderAuthorization, "Bearer "+token)
}

// HeaderAuth sends the raw token in a custom header. Useful against IDM
// deployments fronted by a gateway that expects its own header.
type HeaderAuth struct {
	Header string
}

// Apply implements the Authenticator interface for HeaderAuth.
func (a *HeaderAuth) Apply(req *http.Request, token string) {
	if a.Header == "" || token == "" {
		return
	}
	req.Header.Set(a.Header, token)
}
