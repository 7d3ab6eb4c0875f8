// Package constants provides shared constants used throughout the relink codebase.
// This includes timeouts, page sizes, protocol values and file permissions
// that should be consistent across the application.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout is the standard timeout for HTTP requests to the IDM and token endpoints
	DefaultHTTPTimeout = 30 * time.Second

	// ShutdownTimeout bounds cleanup after a failed or interrupted run
	ShutdownTimeout = 5 * time.Second

	// AssertionLifetime is how long a signed JWT-bearer assertion stays valid.
	// The token endpoint rejects assertions that live 15 minutes or longer.
	AssertionLifetime = 899 * time.Second
)

// Limit constants define various limits and capacities
const (
	// DefaultPageSize is the number of reconciliation entries requested per page
	DefaultPageSize = 500

	// MaxPageSize is the largest page size accepted from configuration
	MaxPageSize = 10000

	// MaxResponseBodyBytes caps how much of a response body is read into memory (10 MiB)
	MaxResponseBodyBytes int64 = 10 << 20

	// MaxErrorBodyLength is how much of a failed response body is kept in error messages
	MaxErrorBodyLength = 512
)

// Sample size modes
const (
	// SampleAll processes every flagged entry
	SampleAll = -1

	// SampleDryRun resolves links for every entry but never deletes
	SampleDryRun = 0
)

// Identity platform protocol values
const (
	// SituationFoundAlreadyLinked is the recon situation for pairs that were linked before the run
	SituationFoundAlreadyLinked = "FOUND_ALREADY_LINKED"

	// DefaultScope is the OAuth2 scope requested for the IDM API
	DefaultScope = "fr:idm:*"

	// DefaultClientID is the OAuth2 client that accepts service account assertions
	DefaultClientID = "service-account"

	// GrantTypeJWTBearer is the RFC 7523 grant type used for the token exchange
	GrantTypeJWTBearer = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// IDMPath is the path of the IDM REST API under the tenant host
	IDMPath = "/openidm"

	// TokenPath is the path of the OAuth2 token endpoint under the tenant host
	TokenPath = "/am/oauth2/access_token"

	// APIVersion is the CREST resource version sent with every IDM request
	APIVersion = "resource=1.0"
)

// HTTP header names
const (
	HeaderAuthorization = "Authorization"
	HeaderAPIVersion    = "Accept-API-Version"
	HeaderIfMatch       = "If-Match"
	HeaderAccept        = "Accept"
	HeaderContentType   = "Content-Type"
)

// File permission constants define standard Unix file permissions
const (
	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644

	// SecureFilePermissions is for sensitive files like signing keys (rw-------)
	SecureFilePermissions = 0600
)

// Path constants
const (
	// ConfigName is the base name of the config file searched in $HOME and the working directory
	ConfigName = ".relink"

	// EnvPrefix is the prefix for environment variables read by the CLI
	EnvPrefix = "RELINK"
)
