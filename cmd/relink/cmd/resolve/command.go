// Package resolve provides the resolve command, which deletes the links
// behind FOUND_ALREADY_LINKED entries of the latest reconciliation.
package resolve

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/relink/internal/cmd/application"
	"github.com/agentstation/relink/internal/cmd/cmdutil"
)

// NewCommand creates the resolve command using app context.
func NewCommand(app application.Application) *cobra.Command {
	var flags *cmdutil.RunFlags

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Delete links behind FOUND_ALREADY_LINKED entries",
		Args:  cobra.NoArgs,
		Long: `Resolve finds the latest reconciliation run for a mapping, pages through
its FOUND_ALREADY_LINKED entries and deletes the matching link records.

Each link is deleted with its revision in If-Match, so a link changed since
it was read is reported as failed instead of being removed. Entries whose
link is already gone are reported as not found. The next reconciliation
relinks the affected accounts.

Use --dry-run (or --sample-size 0) to see which links would be deleted, and
--sample-size N to process only the first N entries.

The reconciliation must have run with persistAssociations enabled, otherwise
no entries are available.`,
		Example: `  relink resolve -m systemAdUsers_managedUser --dry-run   # Preview
  relink resolve -m systemAdUsers_managedUser -n 10        # First 10 entries
  relink resolve -m systemAdUsers_managedUser              # Everything
  relink resolve -m systemAdUsers_managedUser -o wide      # Per-link results`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := flags.Resolve(cmd, app); err != nil {
				return err
			}
			return Execute(cmd, app, flags)
		},
	}

	flags = cmdutil.AddRunFlags(cmd)

	return cmd
}
