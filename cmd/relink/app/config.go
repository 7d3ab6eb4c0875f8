package app

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/relink/pkg/constants"
	"github.com/agentstation/relink/pkg/errors"
)

// Config keys. Each is also read from RELINK_<KEY> and may be set in the config file.
const (
	KeyTenantHost            = "tenant_host"
	KeyServiceAccountID      = "service_account_id"
	KeyServiceAccountKeyFile = "service_account_key_file"
	KeyAccessToken           = "access_token"
	KeyMapping               = "mapping"
	KeyScope                 = "scope"
	KeyClientID              = "client_id"
	KeySampleSize            = "sample_size"
	KeyPageSize              = "page_size"
	KeyIDMBaseURL            = "idm_base_url"
	KeyTokenURL              = "token_url"
	KeyHTTPTimeout           = "http_timeout"
	KeyFormat                = "format"
	KeyLogLevel              = "log_level"
	KeyLogFormat             = "log_format"
	KeyLogOutput             = "log_output"
)

// Config holds the application configuration loaded from various sources
// including config files, environment variables, and .env files.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Config file
	ConfigFile string

	// Tenant and service account
	TenantHost            string
	ServiceAccountID      string
	ServiceAccountKeyFile string
	AccessToken           string // pre-issued bearer token; skips the assertion exchange
	Scope                 string
	ClientID              string
	IDMBaseURL            string
	TokenURL              string
	HTTPTimeout           time.Duration

	// Run settings
	Mapping    string
	SampleSize int
	PageSize   int

	// Logging configuration. LogLevel comes from --log-level or
	// RELINK_LOG_LEVEL; EnvLogLevel from the generic LOG_LEVEL.
	LogLevel    string
	EnvLogLevel string
	LogFormat   string
	LogOutput   string
}

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (bound by the root command)
// 2. Environment variables (RELINK_ prefix)
// 3. .env files
// 4. Config file (--config, or .relink.yaml in $HOME or the working directory)
// 5. Defaults
func LoadConfig(v *viper.Viper, configFile string) (*Config, error) {
	// Load .env files first (before Viper env binding)
	loadEnvFiles()

	setDefaults(v)
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.NewConfigError("config file", "cannot read "+configFile, err)
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(constants.ConfigName)

		// A missing default config file is fine; a broken one is not.
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.NewConfigError("config file", "cannot read "+v.ConfigFileUsed(), err)
			}
		}
	}

	config := &Config{
		Verbose: v.GetBool("verbose"),
		Quiet:   v.GetBool("quiet"),
		NoColor: v.GetBool("no-color"),
		Format:  v.GetString(KeyFormat),

		ConfigFile: v.ConfigFileUsed(),

		TenantHost:            strings.TrimSpace(v.GetString(KeyTenantHost)),
		ServiceAccountID:      strings.TrimSpace(v.GetString(KeyServiceAccountID)),
		ServiceAccountKeyFile: expandHome(strings.TrimSpace(v.GetString(KeyServiceAccountKeyFile))),
		AccessToken:           strings.TrimSpace(v.GetString(KeyAccessToken)),
		Scope:                 v.GetString(KeyScope),
		ClientID:              v.GetString(KeyClientID),
		IDMBaseURL:            v.GetString(KeyIDMBaseURL),
		TokenURL:              v.GetString(KeyTokenURL),
		HTTPTimeout:           v.GetDuration(KeyHTTPTimeout),

		Mapping:    v.GetString(KeyMapping),
		SampleSize: v.GetInt(KeySampleSize),
		PageSize:   v.GetInt(KeyPageSize),

		LogLevel:    v.GetString(KeyLogLevel),
		EnvLogLevel: os.Getenv("LOG_LEVEL"),
		LogFormat:   firstNonEmpty(v.GetString(KeyLogFormat), os.Getenv("LOG_FORMAT"), "auto"),
		LogOutput:   firstNonEmpty(v.GetString(KeyLogOutput), os.Getenv("LOG_OUTPUT"), "stderr"),
	}

	// Derived endpoints
	host := strings.TrimSuffix(strings.TrimPrefix(config.TenantHost, "https://"), "/")
	if config.IDMBaseURL == "" && host != "" {
		config.IDMBaseURL = "https://" + host + constants.IDMPath
	}
	if config.TokenURL == "" && host != "" {
		config.TokenURL = "https://" + host + constants.TokenPath
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyScope, constants.DefaultScope)
	v.SetDefault(KeyClientID, constants.DefaultClientID)
	v.SetDefault(KeySampleSize, constants.SampleAll)
	v.SetDefault(KeyPageSize, constants.DefaultPageSize)
	v.SetDefault(KeyHTTPTimeout, constants.DefaultHTTPTimeout)
}

// Validate checks the settings needed to obtain a token and talk to the
// tenant. It returns a *errors.ConfigError naming the first missing or
// invalid key.
func (c *Config) Validate() error {
	if err := c.validateEndpoint(); err != nil {
		return err
	}
	switch {
	case c.TokenURL == "":
		return errors.NewConfigError(KeyTenantHost, "tenant host or token_url is required", nil)
	case c.ServiceAccountID == "":
		return errors.NewConfigError(KeyServiceAccountID, "service account id is required", nil)
	case c.ServiceAccountKeyFile == "":
		return errors.NewConfigError(KeyServiceAccountKeyFile, "service account key file is required", nil)
	}
	return nil
}

func (c *Config) validateEndpoint() error {
	switch {
	case c.IDMBaseURL == "":
		return errors.NewConfigError(KeyTenantHost, "tenant host or idm_base_url is required", nil)
	case c.PageSize <= 0 || c.PageSize > constants.MaxPageSize:
		return errors.NewConfigError(KeyPageSize, "page size must be between 1 and 10000", nil)
	case c.HTTPTimeout <= 0:
		return errors.NewConfigError(KeyHTTPTimeout, "http timeout must be positive", nil)
	}
	return nil
}

// loadEnvFiles loads environment variables from .env files.
// Variables already set in the environment win.
func loadEnvFiles() {
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return home + path[1:]
		}
	}
	return path
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
