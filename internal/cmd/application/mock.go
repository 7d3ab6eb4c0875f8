package application

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/relink/internal/auth"
	"github.com/agentstation/relink/internal/idm"
	"github.com/agentstation/relink/pkg/constants"
)

// Mock provides a mock implementation of Application for testing.
// Each method can be customized by setting the corresponding function field.
// If a function field is nil, the method returns a default/zero value.
//
// Example Usage:
//
//	mock := &application.Mock{
//	    IDMFunc: func() (*idm.Service, error) {
//	        return idm.NewService(client), nil
//	    },
//	    MappingValue: "systemAdUsers_managedUser",
//	}
//	cmd := recon.NewCommand(mock)
type Mock struct {
	IDMFunc              func() (*idm.Service, error)
	TokenSourceFunc      func() (auth.TokenSource, error)
	CredentialStatusFunc func() *auth.Status
	LoggerFunc           func() *zerolog.Logger
	OutputFormatFunc     func() string

	MappingValue    string
	SampleSizeValue int
	PageSizeValue   int
}

// IDM returns the service from the mock function or nil.
func (m *Mock) IDM() (*idm.Service, error) {
	if m.IDMFunc != nil {
		return m.IDMFunc()
	}
	return nil, nil
}

// TokenSource returns the source from the mock function or nil.
func (m *Mock) TokenSource() (auth.TokenSource, error) {
	if m.TokenSourceFunc != nil {
		return m.TokenSourceFunc()
	}
	return nil, nil
}

// CredentialStatus returns the status from the mock function or a missing status.
func (m *Mock) CredentialStatus() *auth.Status {
	if m.CredentialStatusFunc != nil {
		return m.CredentialStatusFunc()
	}
	return &auth.Status{State: auth.StateMissing}
}

// Mapping returns MappingValue.
func (m *Mock) Mapping() string { return m.MappingValue }

// SampleSize returns SampleSizeValue.
func (m *Mock) SampleSize() int { return m.SampleSizeValue }

// PageSize returns PageSizeValue or the default page size.
func (m *Mock) PageSize() int {
	if m.PageSizeValue > 0 {
		return m.PageSizeValue
	}
	return constants.DefaultPageSize
}

// Logger returns a logger using the mock function or a no-op logger.
func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc != nil {
		return m.LoggerFunc()
	}
	logger := zerolog.Nop()
	return &logger
}

// OutputFormat returns the output format using the mock function or "json".
func (m *Mock) OutputFormat() string {
	if m.OutputFormatFunc != nil {
		return m.OutputFormatFunc()
	}
	return "json"
}

// Version returns "test".
func (m *Mock) Version() string { return "test" }

// Commit returns "unknown".
func (m *Mock) Commit() string { return "unknown" }

// Date returns "unknown".
func (m *Mock) Date() string { return "unknown" }

// BuiltBy returns "test".
func (m *Mock) BuiltBy() string { return "test" }

var _ Application = (*Mock)(nil)
