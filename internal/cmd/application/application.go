// Package application defines what commands need from the relink app.
package application

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/relink/internal/auth"
	"github.com/agentstation/relink/internal/idm"
)

// Application is implemented by cmd/relink/app.App. Commands accept it
// instead of the concrete type so they can be tested with Mock.
type Application interface {
	// IDM returns the IDM service, building the credential chain on first use.
	IDM() (*idm.Service, error)

	// TokenSource returns the credential source the IDM service uses.
	TokenSource() (auth.TokenSource, error)

	// CredentialStatus checks the configured service account locally.
	CredentialStatus() *auth.Status

	// Mapping, SampleSize and PageSize are the configured defaults that
	// command flags override.
	Mapping() string
	SampleSize() int
	PageSize() int

	Logger() *zerolog.Logger
	OutputFormat() string

	Version() string
	Commit() string
	Date() string
	BuiltBy() string
}
