// Package entries provides the entries command, which lists the
// FOUND_ALREADY_LINKED entries of a reconciliation run.
package entries

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/relink/internal/cmd/alerts"
	"github.com/agentstation/relink/internal/cmd/application"
	"github.com/agentstation/relink/internal/cmd/cmdutil"
	"github.com/agentstation/relink/internal/cmd/output"
	"github.com/agentstation/relink/internal/idm"
	"github.com/agentstation/relink/pkg/constants"
	"github.com/agentstation/relink/pkg/errors"
)

// Flags holds the entries command flags.
type Flags struct {
	cmdutil.MappingFlags
	ReconID  string
	PageSize int
	Limit    int
}

// NewCommand creates the entries command using app context.
func NewCommand(app application.Application) *cobra.Command {
	flags := &Flags{}

	cmd := &cobra.Command{
		Use:   "entries",
		Short: "List FOUND_ALREADY_LINKED entries of a reconciliation",
		Args:  cobra.NoArgs,
		Long: `Entries pages through the FOUND_ALREADY_LINKED association entries of a
reconciliation run. By default it reads the latest run of the mapping; use
--recon to read a specific run.

Table output is printed one page at a time as pages arrive.`,
		Example: `  relink entries -m systemAdUsers_managedUser
  relink entries --recon 0b3c6a4e-recon --limit 20
  relink entries -m systemAdUsers_managedUser --page-size 100 -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, app, flags)
		},
	}

	flags.Bind(cmd)
	cmd.Flags().StringVar(&flags.ReconID, "recon", "", "reconciliation run id (default: latest run of the mapping)")
	cmd.Flags().IntVar(&flags.PageSize, "page-size", 0, "entries per request (default from RELINK_PAGE_SIZE)")
	cmd.Flags().IntVarP(&flags.Limit, "limit", "l", 0, "stop after this many entries (0 for all)")

	return cmd
}

func run(cmd *cobra.Command, app application.Application, flags *Flags) error {
	if flags.Limit < 0 {
		return errors.NewValidationError("limit", flags.Limit, "limit must not be negative")
	}
	if cmd.Flags().Changed("page-size") && (flags.PageSize <= 0 || flags.PageSize > constants.MaxPageSize) {
		return errors.NewValidationError("page-size", flags.PageSize, "page size must be between 1 and 10000")
	}

	service, err := app.IDM()
	if err != nil {
		return err
	}
	if flags.PageSize > 0 {
		service = service.With(idm.WithPageSize(flags.PageSize))
	}

	runID := flags.ReconID
	if runID == "" {
		mapping, err := flags.Resolve(cmd, app)
		if err != nil {
			return err
		}
		latest, err := service.LatestRecon(cmd.Context(), mapping)
		if err != nil {
			return err
		}
		runID = latest.ID
	}

	format := output.Format(app.OutputFormat())
	pager := service.FlaggedEntries(runID)
	if format == output.FormatTable || format == output.FormatWide {
		return streamTables(cmd, pager, format, flags.Limit)
	}

	var entries []idm.ReconEntry
	for entry, err := range pager.All(cmd.Context()) {
		if err != nil {
			return err
		}
		entries = append(entries, entry)
		if flags.Limit > 0 && len(entries) == flags.Limit {
			break
		}
	}
	if entries == nil {
		entries = []idm.ReconEntry{}
	}
	return output.Render(cmd.OutOrStdout(), format, entries)
}

// streamTables prints each page as its own table, numbering entries across pages.
func streamTables(cmd *cobra.Command, pager *idm.EntryPager, format output.Format, limit int) error {
	formatter := output.NewFormatter(format)
	printed := 0
	for !pager.Done() {
		page, err := pager.Next(cmd.Context())
		if err != nil {
			return err
		}
		if limit > 0 && printed+len(page) > limit {
			page = page[:limit-printed]
		}
		if len(page) > 0 {
			if err := formatter.Format(cmd.OutOrStdout(), output.EntriesToTableData(page, printed+1)); err != nil {
				return err
			}
			printed += len(page)
		}
		if limit > 0 && printed >= limit {
			break
		}
	}

	if printed == 0 {
		return alerts.NewFormatWriter(cmd.ErrOrStderr(), format).
			WriteAlert(alerts.NewInfo("No FOUND_ALREADY_LINKED entries"))
	}
	return nil
}
