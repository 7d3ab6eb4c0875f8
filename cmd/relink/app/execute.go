package app

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/agentstation/relink/pkg/logging"
)

// Execute runs the relink CLI application with the given arguments.
// This is the main entry point called from main.go.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(a.out)
	rootCmd.SetErr(a.errOut)
	return rootCmd.ExecuteContext(ctx)
}

// createRootCommand creates the root cobra command with all subcommands.
func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "relink",
		Short:   "Resolve FOUND_ALREADY_LINKED reconciliation entries",
		Version: a.version,
		Long: `Relink clears stale identity links left behind by an IDM reconciliation.

It finds the latest reconciliation run for a mapping, pages through the
entries flagged FOUND_ALREADY_LINKED and deletes the link records behind
them, so the next reconciliation can link the accounts again.

Credentials come from a service account: set RELINK_TENANT_HOST,
RELINK_SERVICE_ACCOUNT_ID and RELINK_SERVICE_ACCOUNT_KEY_FILE, or put the
same keys in $HOME/.relink.yaml.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.AddGroup(&cobra.Group{
		ID:    "core",
		Title: "Core Commands:",
	})

	rootCmd.AddGroup(&cobra.Group{
		ID:    "inspect",
		Title: "Inspection Commands:",
	})

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default is $HOME/.relink.yaml)")
	flags.BoolP("verbose", "v", false, "verbose output (shortcut for --log-level=debug)")
	flags.BoolP("quiet", "q", false, "minimal output (shortcut for --log-level=warn)")
	flags.Bool("no-color", false, "disable colored output")
	flags.StringP("format", "o", "", "output format: table, json, yaml, wide")
	flags.String("log-level", "", "log level: trace, debug, info, warn, error (overrides -v/-q)")
	flags.String("tenant", "", "tenant host name")
	flags.String("service-account-id", "", "service account ID")
	flags.String("key-file", "", "service account private key (JWK or PEM)")
	flags.String("scope", "", "OAuth2 scope requested for the access token")
	a.bindFlags(flags)

	rootCmd.SetVersionTemplate("relink {{.Version}}\n")

	a.registerCommands(rootCmd)

	return rootCmd
}

// bindFlags ties persistent flags to their config keys so a flag set on the
// command line wins over the environment and the config file.
func (a *App) bindFlags(flags *pflag.FlagSet) {
	bindings := map[string]string{
		"verbose":            "verbose",
		"quiet":              "quiet",
		"no-color":           "no-color",
		"format":             KeyFormat,
		"log-level":          KeyLogLevel,
		"tenant":             KeyTenantHost,
		"service-account-id": KeyServiceAccountID,
		"key-file":           KeyServiceAccountKeyFile,
		"scope":              KeyScope,
	}
	for flag, key := range bindings {
		if err := a.viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic("programming error: failed to bind flag " + flag + ": " + err.Error())
		}
	}
}

// setupCommand is called before any command runs.
func (a *App) setupCommand(cmd *cobra.Command, _ []string) error {
	// Defined as a persistent flag in createRootCommand.
	configFile := mustGetString(cmd, "config")

	if err := a.reload(configFile); err != nil {
		return err
	}

	cmd.SetContext(logging.WithLogger(cmd.Context(), a.logger))
	return nil
}

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	// Core commands
	rootCmd.AddCommand(a.CreateResolveCommand())

	// Inspection commands
	rootCmd.AddCommand(a.CreateReconCommand())
	rootCmd.AddCommand(a.CreateEntriesCommand())
	rootCmd.AddCommand(a.CreateLinksCommand())
	rootCmd.AddCommand(a.CreateAuthCommand())

	// Utility commands
	rootCmd.AddCommand(a.CreateVersionCommand())
}

// ExitOnError is a helper that prints an error and exits with status 1.
// This is meant to be used in main.go for top-level error handling.
func ExitOnError(err error) {
	if err != nil {
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}

// mustGetString retrieves a string flag value or panics if the flag doesn't exist.
// This should only be used for flags defined in this package.
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic("programming error: failed to get flag " + name + ": " + err.Error())
	}
	return val
}
