package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/relink/internal/auth"
	"github.com/agentstation/relink/pkg/errors"
)

// countingTokens hands out "token-N" where N counts issued tokens.
type countingTokens struct {
	mu        sync.Mutex
	issued    int
	refreshes int
}

func (c *countingTokens) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.issued == 0 {
		c.issued = 1
	}
	return tokenName(c.issued), nil
}

func (c *countingTokens) Refresh(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issued++
	c.refreshes++
	return tokenName(c.issued), nil
}

func tokenName(n int) string {
	return "token-" + strings.Repeat("i", n)
}

func TestClientGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openidm/recon", r.URL.Path)
		assert.Equal(t, `mapping eq "a"`, r.URL.Query().Get("_queryFilter"))
		assert.Equal(t, "Bearer token-i", r.Header.Get("Authorization"))
		assert.Equal(t, "resource=1.0", r.Header.Get("Accept-API-Version"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"name":"ok"}`))
	}))
	defer server.Close()

	client := New(server.URL+"/openidm/", &countingTokens{}, WithHTTPClient(server.Client()))
	assert.Equal(t, server.URL+"/openidm", client.BaseURL())

	var out struct {
		Name string `json:"name"`
	}
	err := client.Get(context.Background(), "/recon", url.Values{"_queryFilter": {`mapping eq "a"`}}, &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Name)
}

func TestClientDeleteSendsIfMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/repo/link/l1", r.URL.Path)
		if r.Header.Get("If-Match") != "3" {
			w.WriteHeader(http.StatusPreconditionFailed)
			_, _ = w.Write([]byte(`{"code":412,"reason":"Precondition Failed","message":"revision mismatch"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"_id":"l1","_rev":"3"}`))
	}))
	defer server.Close()

	client := New(server.URL, auth.StaticTokenSource("t"), WithHTTPClient(server.Client()))

	require.NoError(t, client.Delete(context.Background(), "/repo/link/l1", "3"))

	err := client.Delete(context.Background(), "/repo/link/l1", "2")
	require.Error(t, err)
	assert.True(t, errors.IsPreconditionFailed(err))
	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.MethodDelete, apiErr.Method)
	assert.Equal(t, "/repo/link/l1", apiErr.Endpoint)
	assert.Equal(t, "Precondition Failed: revision mismatch", apiErr.Message)
}

func TestClientRefreshesOnceOn401(t *testing.T) {
	var seen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		if r.Header.Get("Authorization") == "Bearer token-i" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	tokens := &countingTokens{}
	client := New(server.URL, tokens, WithHTTPClient(server.Client()))

	require.NoError(t, client.Get(context.Background(), "/recon", nil, &struct{}{}))
	assert.Equal(t, []string{"Bearer token-i", "Bearer token-ii"}, seen)
	assert.Equal(t, 1, tokens.refreshes)

	// the refreshed token is reused without another exchange
	require.NoError(t, client.Get(context.Background(), "/recon", nil, &struct{}{}))
	assert.Equal(t, 1, tokens.refreshes)
}

func TestClientSecond401IsFatal(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	tokens := &countingTokens{}
	client := New(server.URL, tokens, WithHTTPClient(server.Client()))

	err := client.Get(context.Background(), "/recon", nil, &struct{}{})
	require.Error(t, err)
	assert.True(t, errors.IsUnauthorized(err))
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, tokens.refreshes)

	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Unauthorized", apiErr.Message)
}

func TestClientErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		check  func(error) bool
	}{
		{http.StatusNotFound, errors.IsNotFound},
		{http.StatusForbidden, errors.IsUnauthorized},
		{http.StatusTooManyRequests, errors.IsRateLimited},
		{http.StatusBadGateway, errors.IsProviderUnavailable},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(strings.Repeat("x", 2000)))
			}))
			defer server.Close()

			client := New(server.URL, auth.StaticTokenSource("t"), WithHTTPClient(server.Client()))
			err := client.Get(context.Background(), "/x", nil, nil)
			require.Error(t, err)
			assert.True(t, tt.check(err))

			var apiErr *errors.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Less(t, len(apiErr.Message), 600)
		})
	}
}

func TestClientBadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"broken"`))
	}))
	defer server.Close()

	client := New(server.URL, nil, WithHTTPClient(server.Client()))
	err := client.Get(context.Background(), "/x", nil, &map[string]any{})
	var parseErr *errors.ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestClientCanceledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := New(server.URL, auth.StaticTokenSource("t"), WithHTTPClient(server.Client()))
	err := client.Get(ctx, "/x", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAuthenticators(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	(&NoAuth{}).Apply(req, "tok")
	assert.Empty(t, req.Header.Get("Authorization"))

	(&BearerAuth{}).Apply(req, "")
	assert.Empty(t, req.Header.Get("Authorization"))

	(&BearerAuth{}).Apply(req, "tok")
	assert.Equal(t, "Bearer tok", req.Header.Get("Authorization"))

	(&HeaderAuth{Header: "X-Gateway-Token"}).Apply(req, "tok")
	assert.Equal(t, "tok", req.Header.Get("X-Gateway-Token"))
}

func TestRequestBuilderURL(t *testing.T) {
	rb := NewRequestBuilder("https://tenant.example.com/openidm/")
	assert.Equal(t, "https://tenant.example.com/openidm/recon", rb.URL("recon", nil))
	assert.Equal(t,
		"https://tenant.example.com/openidm/repo/link?_pageSize=500",
		rb.URL("/repo/link", url.Values{"_pageSize": {"500"}}))
}
