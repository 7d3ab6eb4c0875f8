package auth

import (
	"bytes"
	"crypto/rsa"
	"os"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v4"

	"github.com/agentstation/relink/pkg/errors"
)

// Key formats accepted by LoadSigningKey.
const (
	KeyFormatJWK = "jwk"
	KeyFormatPEM = "pem"
)

// SigningKey is the service account's RSA private key.
type SigningKey struct {
	Private *rsa.PrivateKey
	KeyID   string
	Format  string
}

// LoadSigningKey reads a service account key from disk. The file may hold a
// JWK document (as downloaded from the tenant admin console) or a PEM-encoded
// RSA private key in PKCS#1 or PKCS#8 form.
func LoadSigningKey(path string) (*SigningKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	return ParseSigningKey(data, path)
}

// ParseSigningKey parses key material. name is only used in error messages.
func ParseSigningKey(data []byte, name string) (*SigningKey, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.NewParseError(KeyFormatJWK, name, "key file is empty", nil)
	}
	if trimmed[0] == '{' {
		return parseJWK(trimmed, name)
	}
	return parsePEM(trimmed, name)
}

func parseJWK(data []byte, name string) (*SigningKey, error) {
	var jwk jose.JSONWebKey
	if err := jwk.UnmarshalJSON(data); err != nil {
		return nil, errors.WrapParse(KeyFormatJWK, name, err)
	}
	if jwk.IsPublic() {
		return nil, errors.NewParseError(KeyFormatJWK, name, "key is public, a private key is required", nil)
	}
	private, ok := jwk.Key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.NewParseError(KeyFormatJWK, name, "key is not an RSA private key", nil)
	}
	return &SigningKey{Private: private, KeyID: jwk.KeyID, Format: KeyFormatJWK}, nil
}

func parsePEM(data []byte, name string) (*SigningKey, error) {
	private, err := jwt.ParseRSAPrivateKeyFromPEM(data)
	if err != nil {
		return nil, errors.WrapParse(KeyFormatPEM, name, err)
	}
	return &SigningKey{Private: private, Format: KeyFormatPEM}, nil
}
