// Package transport is the authenticated HTTP client for the IDM REST API.
package transport

import (
	"context"
	"net/http"
	"net/url"

	"github.com/agentstation/relink/internal/auth"
	"github.com/agentstation/relink/pkg/constants"
	"github.com/agentstation/relink/pkg/errors"
	"github.com/agentstation/relink/pkg/logging"
)

// DefaultHTTPTimeout is the default timeout for HTTP requests.
var DefaultHTTPTimeout = constants.DefaultHTTPTimeout

// Client sends IDM requests with a bearer credential. When the server answers
// 401 the client refreshes the credential once and retries the request once;
// whatever the retry returns is final.
type Client struct {
	http    auth.HTTPDoer
	tokens  auth.TokenSource
	auth    Authenticator
	builder *RequestBuilder
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(doer auth.HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

// WithAuthenticator replaces the default bearer authenticator.
func WithAuthenticator(a Authenticator) Option {
	return func(c *Client) {
		if a != nil {
			c.auth = a
		}
	}
}

// New creates a client for baseURL that takes credentials from tokens.
func New(baseURL string, tokens auth.TokenSource, opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: DefaultHTTPTimeout},
		tokens:  tokens,
		auth:    &BearerAuth{},
		builder: NewRequestBuilder(baseURL),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the IDM base URL the client targets.
func (c *Client) BaseURL() string {
	return c.builder.BaseURL()
}

// Get performs a GET request and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := c.Do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	return DecodeResponse(resp, out)
}

// Delete performs a conditional DELETE. rev is sent as If-Match; an empty rev
// makes the delete unconditional.
func (c *Client) Delete(ctx context.Context, path, rev string) error {
	var header http.Header
	if rev != "" {
		header = http.Header{constants.HeaderIfMatch: {rev}}
	}
	resp, err := c.Do(ctx, http.MethodDelete, path, nil, header)
	if err != nil {
		return err
	}
	return DecodeResponse(resp, nil)
}

// Do sends a request and returns the raw response. The caller closes the body.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, header http.Header) (*http.Response, error) {
	token, err := c.token(ctx, false)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, method, path, query, header, token)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	_ = resp.Body.Close()

	logging.FromContext(ctx).Debug().
		Str("method", method).
		Str("path", path).
		Msg("Access token rejected, refreshing")

	token, err = c.token(ctx, true)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, method, path, query, header, token)
}

func (c *Client) token(ctx context.Context, refresh bool) (string, error) {
	if c.tokens == nil {
		return "", nil
	}
	if refresh {
		return c.tokens.Refresh(ctx)
	}
	return c.tokens.Token(ctx)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, header http.Header, token string) (*http.Response, error) {
	target := c.builder.URL(path, query)
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, errors.WrapResource("create", "request", method+" "+path, err)
	}
	c.builder.AddIDMHeaders(req)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	c.auth.Apply(req, token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.WrapResource("send", "request", method+" "+path, err)
	}
	return resp, nil
}
