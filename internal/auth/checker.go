package auth

import (
	"fmt"
	"os"
	"strings"

	"github.com/agentstation/relink/pkg/errors"
)

// Checker validates the local service account settings without contacting the tenant.
type Checker struct{}

// NewChecker creates a new credential checker.
func NewChecker() *Checker {
	return &Checker{}
}

// Check reports whether accountID and keyFile are usable for signing assertions.
func (c *Checker) Check(accountID, keyFile string) *Status {
	status := &Status{
		AccountID: strings.TrimSpace(accountID),
		KeyFile:   strings.TrimSpace(keyFile),
	}

	if status.AccountID == "" {
		status.State = StateMissing
		status.Summary = "service account id is not set"
		return status
	}
	if status.KeyFile == "" {
		status.State = StateMissing
		status.Summary = "service account key file is not set"
		return status
	}
	if _, err := os.Stat(status.KeyFile); err != nil {
		status.State = StateMissing
		status.Summary = fmt.Sprintf("key file not readable: %v", err)
		return status
	}

	key, err := LoadSigningKey(status.KeyFile)
	if err != nil {
		status.State = StateInvalid
		var parseErr *errors.ParseError
		if errors.As(err, &parseErr) {
			status.Summary = parseErr.Message
		} else {
			status.Summary = err.Error()
		}
		return status
	}

	status.State = StateConfigured
	status.KeyFormat = key.Format
	status.KeyID = key.KeyID
	status.KeyBits = key.Private.N.BitLen()
	status.Summary = fmt.Sprintf("%d-bit RSA key (%s)", status.KeyBits, key.Format)
	return status
}
