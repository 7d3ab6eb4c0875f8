// Package links provides the links command, which shows the link records
// a resolve run would delete for a pair of object ids.
package links

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/relink/internal/cmd/application"
	"github.com/agentstation/relink/internal/cmd/cmdutil"
	"github.com/agentstation/relink/internal/cmd/output"
	"github.com/agentstation/relink/internal/idm"
	"github.com/agentstation/relink/pkg/errors"
)

// Flags holds the links command flags.
type Flags struct {
	cmdutil.MappingFlags
	Source string
	Target string
}

// NewCommand creates the links command using app context.
func NewCommand(app application.Application) *cobra.Command {
	flags := &Flags{}

	cmd := &cobra.Command{
		Use:   "links",
		Short: "Find the links of a mapping that touch an object",
		Args:  cobra.NoArgs,
		Long: `Links searches both endpoint columns of the link table for the given
source and target object ids and prints the links of the mapping, exactly as
resolve matches them for an entry. Nothing is deleted.`,
		Example: `  relink links -m systemAdUsers_managedUser --source 6f2a-ad-user
  relink links -m systemAdUsers_managedUser --source 6f2a-ad-user --target 91c0-managed-user -o yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if flags.Source == "" && flags.Target == "" {
				return errors.NewValidationError("source", "", "at least one of --source and --target is required")
			}
			mapping, err := flags.Resolve(cmd, app)
			if err != nil {
				return err
			}

			service, err := app.IDM()
			if err != nil {
				return err
			}
			found, err := service.ResolveLinks(cmd.Context(), flags.Source, flags.Target, mapping)
			if err != nil {
				return err
			}
			if found == nil {
				found = []idm.LinkRecord{}
			}
			return output.Render(cmd.OutOrStdout(), output.Format(app.OutputFormat()), found, output.LinksToTableData(found))
		},
	}

	flags.Bind(cmd)
	cmd.Flags().StringVar(&flags.Source, "source", "", "source object id")
	cmd.Flags().StringVar(&flags.Target, "target", "", "target object id")

	return cmd
}
