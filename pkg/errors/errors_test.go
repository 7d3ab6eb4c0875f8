package errors_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/agentstation/relink/pkg/errors"
)

func TestNotFoundError(t *testing.T) {
	t.Run("basic error", func(t *testing.T) {
		err := &pkgerrors.NotFoundError{
			Resource: "reconciliation",
			ID:       "systemLdapAccounts_managedUser",
		}
		assert.Equal(t, "reconciliation with ID systemLdapAccounts_managedUser not found", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))
	})

	t.Run("wrapped error", func(t *testing.T) {
		wrapped := fmt.Errorf("locate: %w", pkgerrors.NewNotFoundError("link", "abc"))
		assert.True(t, pkgerrors.IsNotFound(wrapped))
	})
}

func TestValidationError(t *testing.T) {
	t.Run("with field", func(t *testing.T) {
		err := pkgerrors.NewValidationError("page_size", 0, "must be positive")
		assert.Equal(t, "validation failed for field page_size: must be positive", err.Error())
		assert.True(t, pkgerrors.IsValidationError(err))
	})

	t.Run("without field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{Message: "bad input"}
		assert.Equal(t, "validation failed: bad input", err.Error())
	})
}

func TestAPIError(t *testing.T) {
	t.Run("message includes request", func(t *testing.T) {
		err := &pkgerrors.APIError{
			Service:    "idm",
			Method:     http.MethodDelete,
			Endpoint:   "/repo/link/abc",
			StatusCode: http.StatusPreconditionFailed,
			Message:    "revision mismatch",
		}
		assert.Equal(t, "API error from idm DELETE /repo/link/abc (status 412): revision mismatch", err.Error())
	})

	t.Run("status classification", func(t *testing.T) {
		tests := []struct {
			status int
			target error
		}{
			{http.StatusNotFound, pkgerrors.ErrNotFound},
			{http.StatusUnauthorized, pkgerrors.ErrUnauthorized},
			{http.StatusForbidden, pkgerrors.ErrUnauthorized},
			{http.StatusPreconditionFailed, pkgerrors.ErrPreconditionFailed},
			{http.StatusTooManyRequests, pkgerrors.ErrRateLimited},
			{http.StatusBadGateway, pkgerrors.ErrProviderUnavailable},
		}
		for _, tt := range tests {
			err := pkgerrors.NewAPIError("idm", tt.status, "x")
			assert.True(t, errors.Is(err, tt.target), "status %d", tt.status)
		}
		assert.False(t, errors.Is(pkgerrors.NewAPIError("idm", http.StatusBadRequest, "x"), pkgerrors.ErrNotFound))
	})

	t.Run("unwrap", func(t *testing.T) {
		base := errors.New("connection reset")
		err := &pkgerrors.APIError{Service: "token", Message: "request failed", Err: base}
		assert.Equal(t, "API error from token: request failed", err.Error())
		assert.Equal(t, base, err.Unwrap())
	})
}

func TestAuthenticationError(t *testing.T) {
	base := errors.New("invalid_client")
	err := pkgerrors.NewAuthenticationError("token", "jwt-bearer", "token exchange failed", base)
	assert.Contains(t, err.Error(), "token")
	assert.Contains(t, err.Error(), "jwt-bearer")
	assert.Contains(t, err.Error(), "invalid_client")
	assert.True(t, pkgerrors.IsUnauthorized(err))
	assert.ErrorIs(t, err, base)
}

func TestConfigError(t *testing.T) {
	err := pkgerrors.NewConfigError("config", "tenant_host is required", nil)
	assert.Equal(t, "configuration error in config: tenant_host is required", err.Error())

	bare := &pkgerrors.ConfigError{Message: "missing"}
	assert.Equal(t, "configuration error: missing", bare.Error())
}

func TestWrapHelpers(t *testing.T) {
	assert.NoError(t, pkgerrors.WrapIO("read", "key.json", nil))
	assert.NoError(t, pkgerrors.WrapResource("delete", "link", "x", nil))
	assert.NoError(t, pkgerrors.WrapParse("json", "", nil))
	assert.NoError(t, pkgerrors.WrapValidation("mapping", nil))

	err := pkgerrors.WrapIO("read", "key.json", errors.New("permission denied"))
	var ioErr *pkgerrors.IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "read", ioErr.Operation)
	assert.Equal(t, "key.json", ioErr.Path)

	err = pkgerrors.WrapResource("delete", "link", "abc", pkgerrors.NewAPIError("idm", 412, "stale"))
	var resErr *pkgerrors.ResourceError
	require.ErrorAs(t, err, &resErr)
	assert.True(t, pkgerrors.IsPreconditionFailed(err))

	err = pkgerrors.WrapParse("jwk", "key.json", errors.New("unexpected EOF"))
	assert.Equal(t, "parse error in jwk file key.json: unexpected EOF", err.Error())

	err = pkgerrors.WrapParse("json", "", errors.New("unexpected EOF"))
	assert.Equal(t, "json parse error: unexpected EOF", err.Error())
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return false }

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unauthorized", pkgerrors.NewAPIError("idm", 401, "Access Denied"), true},
		{"token exchange", pkgerrors.NewAuthenticationError("token", "jwt-bearer", "rejected", nil), true},
		{"canceled", fmt.Errorf("send: %w", context.Canceled), true},
		{"deadline", pkgerrors.WrapResource("delete", "link", "l1", context.DeadlineExceeded), true},
		{"net timeout", pkgerrors.WrapResource("send", "request", "", timeoutErr{}), true},
		{"unauthorized sentinel", fmt.Errorf("delete: %w", pkgerrors.ErrUnauthorized), true},
		{"forbidden", pkgerrors.WrapResource("delete", "link", "l1", pkgerrors.NewAPIError("idm", 403, "Forbidden")), false},
		{"stale revision", pkgerrors.NewAPIError("idm", 412, "stale"), false},
		{"gone", pkgerrors.NewAPIError("idm", 404, "missing"), false},
		{"server error", pkgerrors.NewAPIError("idm", 500, "boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pkgerrors.IsFatal(tt.err))
		})
	}
}
