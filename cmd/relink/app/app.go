// Package app provides the application context and dependency management
// for the relink CLI. It centralizes configuration, the logger and the
// lazily built credential and IDM client chain.
package app

import (
	"context"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/agentstation/relink/internal/auth"
	"github.com/agentstation/relink/internal/cmd/output"
	"github.com/agentstation/relink/internal/idm"
	"github.com/agentstation/relink/internal/transport"
	"github.com/agentstation/relink/pkg/errors"
	"github.com/agentstation/relink/pkg/logging"
)

// App represents the relink application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	// Configuration
	viper  *viper.Viper
	config *Config

	// Logger
	logger *zerolog.Logger

	// Command output
	out    io.Writer
	errOut io.Writer

	// Client chain (lazy-initialized)
	mu         sync.Mutex
	httpClient *http.Client
	injected   auth.TokenSource
	tokens     auth.TokenSource
	service    *idm.Service
}

// New creates a new App instance with the given version information.
// Configuration is loaded from the environment, .env files and the default
// config file; flags are applied when a command runs.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
		viper:   viper.New(),
		out:     os.Stdout,
		errOut:  os.Stderr,
	}

	config, err := LoadConfig(app.viper, "")
	if err != nil {
		return nil, err
	}
	app.config = config

	app.setLogger(NewLogger(config, app.errOut))

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// OutputFormat returns the requested output format, or table on a terminal
// and JSON otherwise.
func (a *App) OutputFormat() string {
	return string(output.DetectFormat(a.config.Format))
}

// Mapping returns the configured mapping name.
func (a *App) Mapping() string {
	return a.config.Mapping
}

// SampleSize returns the configured sample size.
func (a *App) SampleSize() int {
	return a.config.SampleSize
}

// PageSize returns the configured entry page size.
func (a *App) PageSize() int {
	return a.config.PageSize
}

// CredentialStatus checks the configured service account key without
// contacting the tenant.
func (a *App) CredentialStatus() *auth.Status {
	return auth.NewChecker().Check(a.config.ServiceAccountID, a.config.ServiceAccountKeyFile)
}

// TokenSource returns the credential source, loading the signing key on first use.
func (a *App) TokenSource() (auth.TokenSource, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tokenSourceLocked()
}

func (a *App) tokenSourceLocked() (auth.TokenSource, error) {
	switch {
	case a.injected != nil:
		return a.injected, nil
	case a.tokens != nil:
		return a.tokens, nil
	case a.config.AccessToken != "":
		a.tokens = auth.StaticTokenSource(a.config.AccessToken)
		return a.tokens, nil
	}
	if err := a.config.Validate(); err != nil {
		return nil, err
	}

	key, err := auth.LoadSigningKey(a.config.ServiceAccountKeyFile)
	if err != nil {
		return nil, errors.NewConfigError(KeyServiceAccountKeyFile, "cannot load service account key", err)
	}

	tokens, err := auth.NewServiceAccountTokenSource(auth.ServiceAccountConfig{
		TokenURL:  a.config.TokenURL,
		ClientID:  a.config.ClientID,
		AccountID: a.config.ServiceAccountID,
		Scope:     a.config.Scope,
		Key:       key,
		HTTP:      a.httpClientLocked(),
	})
	if err != nil {
		return nil, err
	}
	a.tokens = tokens
	return tokens, nil
}

// IDM returns the IDM service, building the client chain on first use.
func (a *App) IDM() (*idm.Service, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.service != nil {
		return a.service, nil
	}
	if err := a.config.validateEndpoint(); err != nil {
		return nil, err
	}

	tokens, err := a.tokenSourceLocked()
	if err != nil {
		return nil, err
	}

	client := transport.New(a.config.IDMBaseURL, tokens, transport.WithHTTPClient(a.httpClientLocked()))
	a.service = idm.NewService(client, idm.WithPageSize(a.config.PageSize))
	return a.service, nil
}

func (a *App) httpClientLocked() *http.Client {
	if a.httpClient == nil {
		a.httpClient = &http.Client{Timeout: a.config.HTTPTimeout}
	}
	return a.httpClient
}

// Shutdown releases idle connections held by the HTTP client.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.httpClient != nil {
		a.httpClient.CloseIdleConnections()
	}
	return ctx.Err()
}

// reload re-reads configuration after flags are parsed and drops any client
// chain built from the previous configuration.
func (a *App) reload(configFile string) error {
	config, err := LoadConfig(a.viper, configFile)
	if err != nil {
		return err
	}
	a.config = config

	a.setLogger(NewLogger(config, a.errOut))

	a.mu.Lock()
	defer a.mu.Unlock()
	a.tokens = nil
	a.service = nil
	return nil
}

// setLogger makes logger the app logger and the package default, so code
// without a command context logs the same way.
func (a *App) setLogger(logger zerolog.Logger) {
	a.logger = &logger
	logging.SetDefault(logger)
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithOutput redirects command output and warnings.
func WithOutput(out, errOut io.Writer) Option {
	return func(a *App) error {
		if out != nil {
			a.out = out
		}
		if errOut != nil {
			a.errOut = errOut
		}
		return nil
	}
}

// WithHTTPClient sets the HTTP client used for the token endpoint and the IDM.
func WithHTTPClient(client *http.Client) Option {
	return func(a *App) error {
		a.httpClient = client
		return nil
	}
}

// WithStaticToken skips the assertion exchange and sends token as is.
func WithStaticToken(token string) Option {
	return func(a *App) error {
		if token == "" {
			return errors.NewValidationError("token", token, "static token must not be empty")
		}
		a.injected = auth.StaticTokenSource(token)
		return nil
	}
}
