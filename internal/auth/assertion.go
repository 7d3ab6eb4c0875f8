package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/agentstation/relink/pkg/errors"
)

// AssertionClaims are the inputs of a JWT-bearer client assertion.
type AssertionClaims struct {
	AccountID string
	Audience  string
	IssuedAt  time.Time
	Lifetime  time.Duration
}

// SignAssertion builds and RS256-signs a client assertion. The service account
// is both issuer and subject, the token endpoint is the audience, and every
// assertion carries a fresh jti so the issuer can reject replays.
func SignAssertion(key *SigningKey, c AssertionClaims) (string, error) {
	if key == nil || key.Private == nil {
		return "", errors.NewValidationError("signing_key", nil, "signing key is required")
	}
	if c.AccountID == "" {
		return "", errors.NewValidationError("service_account_id", nil, "service account id is required")
	}
	if c.Audience == "" {
		return "", errors.NewValidationError("token_url", nil, "assertion audience is required")
	}

	claims := jwt.MapClaims{
		"iss": c.AccountID,
		"sub": c.AccountID,
		"aud": c.Audience,
		"exp": c.IssuedAt.Add(c.Lifetime).Unix(),
		"jti": uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if key.KeyID != "" {
		token.Header["kid"] = key.KeyID
	}

	signed, err := token.SignedString(key.Private)
	if err != nil {
		return "", errors.NewAuthenticationError("token", "jwt-bearer", "sign assertion", err)
	}
	return signed, nil
}
