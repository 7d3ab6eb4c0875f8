package auth

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/relink/internal/auth"
	"github.com/agentstation/relink/internal/cmd/application"
	"github.com/agentstation/relink/internal/cmd/output"
	"github.com/agentstation/relink/pkg/errors"
)

// NewStatusCommand creates the auth status subcommand using app context.
func NewStatusCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the service account credential is usable",
		Args:  cobra.NoArgs,
		Long: `Display the configured service account id and key file, and whether
the key parses as an RSA private key (JWK or PEM).

No request is made to the tenant. Use 'relink auth verify' for that.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status := app.CredentialStatus()
			format := output.Format(app.OutputFormat())
			if err := output.Render(cmd.OutOrStdout(), format, status, output.StatusToTableData(status)); err != nil {
				return err
			}
			if status.State != auth.StateConfigured {
				return errors.NewConfigError("service account", status.Summary, nil)
			}
			return nil
		},
	}
}
