package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/agentstation/relink/pkg/constants"
	"github.com/agentstation/relink/pkg/errors"
	"github.com/agentstation/relink/pkg/logging"
)

// ServiceAccountConfig configures a ServiceAccountTokenSource.
type ServiceAccountConfig struct {
	TokenURL  string
	ClientID  string
	AccountID string
	Scope     string
	Key       *SigningKey

	// Lifetime of each assertion. Defaults to constants.AssertionLifetime.
	Lifetime time.Duration

	HTTP HTTPDoer
	Now  func() time.Time
}

// ServiceAccountTokenSource exchanges signed assertions for access tokens.
// It holds at most one issued token; there is no local expiry tracking, the
// API client calls Refresh when the IDM rejects the current token.
type ServiceAccountTokenSource struct {
	config ServiceAccountConfig

	mu    sync.Mutex
	token *Token
}

// NewServiceAccountTokenSource creates a token source. No network call is made
// until the first Token or Refresh.
func NewServiceAccountTokenSource(cfg ServiceAccountConfig) (*ServiceAccountTokenSource, error) {
	if strings.TrimSpace(cfg.TokenURL) == "" {
		return nil, errors.NewConfigError("auth", "token_url is required", nil)
	}
	if strings.TrimSpace(cfg.AccountID) == "" {
		return nil, errors.NewConfigError("auth", "service_account_id is required", nil)
	}
	if cfg.Key == nil || cfg.Key.Private == nil {
		return nil, errors.NewConfigError("auth", "service account signing key is required", nil)
	}
	if cfg.ClientID == "" {
		cfg.ClientID = constants.DefaultClientID
	}
	if cfg.Scope == "" {
		cfg.Scope = constants.DefaultScope
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = constants.AssertionLifetime
	}
	if cfg.HTTP == nil {
		cfg.HTTP = &http.Client{Timeout: constants.DefaultHTTPTimeout}
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &ServiceAccountTokenSource{config: cfg}, nil
}

// Token returns the cached access token, fetching one on first use.
func (s *ServiceAccountTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != nil && s.token.AccessToken != "" {
		return s.token.AccessToken, nil
	}
	return s.refreshLocked(ctx)
}

// Refresh obtains a new access token and replaces the cached one.
func (s *ServiceAccountTokenSource) Refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.refreshLocked(ctx)
}

// Current returns the last issued token, or nil before the first exchange.
func (s *ServiceAccountTokenSource) Current() *Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == nil {
		return nil
	}
	t := *s.token
	return &t
}

func (s *ServiceAccountTokenSource) refreshLocked(ctx context.Context) (string, error) {
	issuedAt := s.config.Now()
	assertion, err := SignAssertion(s.config.Key, AssertionClaims{
		AccountID: s.config.AccountID,
		Audience:  s.config.TokenURL,
		IssuedAt:  issuedAt,
		Lifetime:  s.config.Lifetime,
	})
	if err != nil {
		return "", err
	}

	token, err := s.exchange(ctx, assertion)
	if err != nil {
		return "", err
	}
	token.IssuedAt = issuedAt
	s.token = token

	logging.FromContext(ctx).Info().
		Int("expires_in", token.ExpiresIn).
		Msg("Access token acquired")

	return token.AccessToken, nil
}

func (s *ServiceAccountTokenSource) exchange(ctx context.Context, assertion string) (*Token, error) {
	form := url.Values{
		"client_id":  {s.config.ClientID},
		"grant_type": {constants.GrantTypeJWTBearer},
		"assertion":  {assertion},
		"scope":      {s.config.Scope},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, authError("create token request", err)
	}
	req.Header.Set(constants.HeaderContentType, "application/x-www-form-urlencoded")
	req.Header.Set(constants.HeaderAccept, "application/json")

	resp, err := s.config.HTTP.Do(req)
	if err != nil {
		return nil, authError("token request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxResponseBodyBytes))
	if err != nil {
		return nil, authError("read token response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &errors.APIError{
			Service:    "token",
			Method:     http.MethodPost,
			Endpoint:   s.config.TokenURL,
			StatusCode: resp.StatusCode,
			Message:    tokenErrorMessage(body),
		}
		return nil, authError("token endpoint rejected the assertion", apiErr)
	}

	var token Token
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, authError("decode token response", errors.WrapParse("json", "", err))
	}
	if token.AccessToken == "" {
		return nil, authError("token response has no access_token", nil)
	}
	return &token, nil
}

func tokenErrorMessage(body []byte) string {
	var oauthErr tokenErrorResponse
	if err := json.Unmarshal(body, &oauthErr); err == nil && oauthErr.Error != "" {
		if oauthErr.ErrorDescription != "" {
			return fmt.Sprintf("%s: %s", oauthErr.Error, oauthErr.ErrorDescription)
		}
		return oauthErr.Error
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > constants.MaxErrorBodyLength {
		msg = msg[:constants.MaxErrorBodyLength]
	}
	return msg
}

func authError(message string, err error) error {
	return errors.NewAuthenticationError("token", "jwt-bearer", message, err)
}

// StaticTokenSource always returns the same token. Refresh is a no-op, so a
// rejected static token surfaces as a fatal authorization error.
type StaticTokenSource string

// Token implements TokenSource.
func (s StaticTokenSource) Token(context.Context) (string, error) {
	return string(s), nil
}

// Refresh implements TokenSource.
func (s StaticTokenSource) Refresh(context.Context) (string, error) {
	return string(s), nil
}

var (
	_ TokenSource = (*ServiceAccountTokenSource)(nil)
	_ TokenSource = StaticTokenSource("")
)
