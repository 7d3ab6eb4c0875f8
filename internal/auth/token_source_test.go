package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/relink/pkg/constants"
	"github.com/agentstation/relink/pkg/errors"
)

func TestServiceAccountTokenSource(t *testing.T) {
	key := rsaKey(t)
	now := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

	var calls atomic.Int32
	var lastJTI string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.Equal(t, constants.DefaultClientID, r.PostForm.Get("client_id"))
		assert.Equal(t, constants.GrantTypeJWTBearer, r.PostForm.Get("grant_type"))
		assert.Equal(t, "fr:idm:*", r.PostForm.Get("scope"))

		parsed, err := jwt.NewParser(jwt.WithoutClaimsValidation()).Parse(r.PostForm.Get("assertion"), func(tok *jwt.Token) (any, error) {
			assert.Equal(t, "RS256", tok.Method.Alg())
			assert.Equal(t, "kid-1", tok.Header["kid"])
			return &key.PublicKey, nil
		})
		require.NoError(t, err)
		claims := parsed.Claims.(jwt.MapClaims)
		assert.Equal(t, "sa-1", claims["iss"])
		assert.Equal(t, "sa-1", claims["sub"])
		assert.Equal(t, "http://"+r.Host+"/am/oauth2/access_token", claims["aud"])
		assert.Equal(t, float64(now.Add(899*time.Second).Unix()), claims["exp"])
		jti, _ := claims["jti"].(string)
		assert.NotEmpty(t, jti)
		assert.NotEqual(t, lastJTI, jti)
		lastJTI = jti

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": map[int32]string{1: "token-1", 2: "token-2"}[n],
			"token_type":   "Bearer",
			"expires_in":   899,
			"scope":        "fr:idm:*",
		})
	}))
	defer server.Close()

	source, err := NewServiceAccountTokenSource(ServiceAccountConfig{
		TokenURL:  server.URL + "/am/oauth2/access_token",
		AccountID: "sa-1",
		Key:       &SigningKey{Private: key, KeyID: "kid-1"},
		HTTP:      server.Client(),
		Now:       func() time.Time { return now },
	})
	require.NoError(t, err)
	assert.Nil(t, source.Current())

	ctx := context.Background()

	token, err := source.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)

	token, err = source.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-1", token)
	assert.Equal(t, int32(1), calls.Load(), "cached token must not trigger a second exchange")

	token, err = source.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-2", token)
	assert.Equal(t, int32(2), calls.Load())

	current := source.Current()
	require.NotNil(t, current)
	assert.Equal(t, 899, current.ExpiresIn)
	assert.Equal(t, now, current.IssuedAt)
}

func TestServiceAccountTokenSource_Errors(t *testing.T) {
	key := &SigningKey{Private: rsaKey(t)}

	t.Run("rejected assertion", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_client","error_description":"bad assertion"}`))
		}))
		defer server.Close()

		source, err := NewServiceAccountTokenSource(ServiceAccountConfig{
			TokenURL: server.URL, AccountID: "sa-1", Key: key, HTTP: server.Client(),
		})
		require.NoError(t, err)

		_, err = source.Token(context.Background())
		require.Error(t, err)
		assert.True(t, errors.IsUnauthorized(err))
		var apiErr *errors.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		assert.Equal(t, "invalid_client: bad assertion", apiErr.Message)
	})

	t.Run("missing access token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"token_type":"Bearer"}`))
		}))
		defer server.Close()

		source, err := NewServiceAccountTokenSource(ServiceAccountConfig{
			TokenURL: server.URL, AccountID: "sa-1", Key: key, HTTP: server.Client(),
		})
		require.NoError(t, err)
		_, err = source.Refresh(context.Background())
		var authErr *errors.AuthenticationError
		require.ErrorAs(t, err, &authErr)
		assert.Contains(t, authErr.Message, "access_token")
	})

	t.Run("unreachable endpoint", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		source, err := NewServiceAccountTokenSource(ServiceAccountConfig{TokenURL: url, AccountID: "sa-1", Key: key})
		require.NoError(t, err)
		_, err = source.Token(context.Background())
		assert.True(t, errors.IsUnauthorized(err))
	})

	t.Run("config validation", func(t *testing.T) {
		_, err := NewServiceAccountTokenSource(ServiceAccountConfig{AccountID: "sa-1", Key: key})
		assert.Error(t, err)
		_, err = NewServiceAccountTokenSource(ServiceAccountConfig{TokenURL: "http://x", Key: key})
		assert.Error(t, err)
		_, err = NewServiceAccountTokenSource(ServiceAccountConfig{TokenURL: "http://x", AccountID: "sa-1"})
		var cfgErr *errors.ConfigError
		assert.ErrorAs(t, err, &cfgErr)
	})
}

func TestSignAssertion_Validation(t *testing.T) {
	key := &SigningKey{Private: rsaKey(t)}
	_, err := SignAssertion(nil, AssertionClaims{AccountID: "a", Audience: "b"})
	assert.True(t, errors.IsValidationError(err))
	_, err = SignAssertion(key, AssertionClaims{Audience: "b"})
	assert.True(t, errors.IsValidationError(err))
	_, err = SignAssertion(key, AssertionClaims{AccountID: "a"})
	assert.True(t, errors.IsValidationError(err))
}

func TestStaticTokenSource(t *testing.T) {
	src := StaticTokenSource("abc")
	tok, err := src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)
	tok, err = src.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)
}
