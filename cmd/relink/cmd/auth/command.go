// Package auth provides the auth command and its status and verify
// subcommands for the service account credential.
package auth

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/relink/internal/cmd/application"
)

// NewCommand creates the auth command using app context.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Check the service account credential",
		Long: `Check the service account used to obtain IDM access tokens.

'status' inspects the configured account id and key file locally.
'verify' exchanges a signed assertion for an access token and makes one
read-only IDM call with it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(NewStatusCommand(app))
	cmd.AddCommand(NewVerifyCommand(app))

	return cmd
}
