// Package recon provides the recon command, which shows reconciliation runs.
package recon

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/relink/internal/cmd/application"
	"github.com/agentstation/relink/internal/cmd/cmdutil"
	"github.com/agentstation/relink/internal/cmd/output"
)

// NewCommand creates the recon command using app context.
func NewCommand(app application.Application) *cobra.Command {
	var (
		flags *cmdutil.MappingFlags
		all   bool
	)

	cmd := &cobra.Command{
		Use:   "recon",
		Short: "Show the latest reconciliation run for a mapping",
		Args:  cobra.NoArgs,
		Long: `Recon shows the reconciliation run resolve would work on: the most
recently started run of the mapping, with its situation counts.

With --all it lists every run the IDM reports instead, optionally narrowed
to a mapping.`,
		Example: `  relink recon -m systemAdUsers_managedUser
  relink recon --all
  relink recon --all -m systemAdUsers_managedUser -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format := output.Format(app.OutputFormat())

			if all {
				mapping := flags.Mapping
				if !cmd.Flags().Changed("mapping") {
					mapping = app.Mapping()
				}
				return listRuns(cmd, app, format, mapping)
			}

			mapping, err := flags.Resolve(cmd, app)
			if err != nil {
				return err
			}
			service, err := app.IDM()
			if err != nil {
				return err
			}
			run, err := service.LatestRecon(cmd.Context(), mapping)
			if err != nil {
				return err
			}
			return output.Render(cmd.OutOrStdout(), format, run, output.ReconToTableData(run))
		},
	}

	flags = cmdutil.AddMappingFlags(cmd)
	cmd.Flags().BoolVar(&all, "all", false, "list all reconciliation runs")

	return cmd
}

func listRuns(cmd *cobra.Command, app application.Application, format output.Format, mapping string) error {
	service, err := app.IDM()
	if err != nil {
		return err
	}
	runs, err := service.Recons(cmd.Context())
	if err != nil {
		return err
	}
	if mapping != "" {
		filtered := runs[:0]
		for _, run := range runs {
			if run.Mapping == mapping {
				filtered = append(filtered, run)
			}
		}
		runs = filtered
	}
	return output.Render(cmd.OutOrStdout(), format, runs, output.ReconsToTableData(runs))
}
