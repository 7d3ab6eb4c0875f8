package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/agentstation/relink/pkg/constants"
	"github.com/agentstation/relink/pkg/errors"
)

// RequestBuilder builds IDM requests relative to a base URL.
type RequestBuilder struct {
	baseURL    string
	apiVersion string
}

// NewRequestBuilder creates a request builder for the given base URL
// (for example https://tenant.example.com/openidm).
func NewRequestBuilder(baseURL string) *RequestBuilder {
	return &RequestBuilder{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiVersion: constants.APIVersion,
	}
}

// BaseURL returns the base URL without a trailing slash.
func (rb *RequestBuilder) BaseURL() string {
	return rb.baseURL
}

// URL joins path and the encoded query onto the base URL.
func (rb *RequestBuilder) URL(path string, query url.Values) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := rb.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// AddIDMHeaders adds the headers every IDM request carries.
func (rb *RequestBuilder) AddIDMHeaders(req *http.Request) {
	req.Header.Set(constants.HeaderAccept, "application/json")
	if rb.apiVersion != "" {
		req.Header.Set(constants.HeaderAPIVersion, rb.apiVersion)
	}
}

// DecodeResponse reads a response and decodes a 2xx JSON body into target.
// A nil target discards the body. Any other status becomes an *errors.APIError.
func DecodeResponse(resp *http.Response, target any) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxResponseBodyBytes))
	if err != nil {
		return errors.WrapIO("read", "response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &errors.APIError{
			Service:    "idm",
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.StatusCode, body),
		}
		if resp.Request != nil {
			apiErr.Method = resp.Request.Method
			apiErr.Endpoint = resp.Request.URL.Path
		}
		return apiErr
	}

	if target == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return errors.WrapParse("json", "response", err)
	}
	return nil
}

// crestError is the error envelope CREST endpoints return.
type crestError struct {
	Code    int    `json:"code"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func errorMessage(status int, body []byte) string {
	var ce crestError
	if err := json.Unmarshal(body, &ce); err == nil && ce.Message != "" {
		if ce.Reason != "" {
			return ce.Reason + ": " + ce.Message
		}
		return ce.Message
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return http.StatusText(status)
	}
	if len(msg) > constants.MaxErrorBodyLength {
		msg = msg[:constants.MaxErrorBodyLength] + "..."
	}
	return msg
}
