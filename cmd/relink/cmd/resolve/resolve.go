package resolve

import (
	"strconv"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agentstation/relink/internal/cmd/alerts"
	"github.com/agentstation/relink/internal/cmd/application"
	"github.com/agentstation/relink/internal/cmd/cmdutil"
	"github.com/agentstation/relink/internal/cmd/output"
	"github.com/agentstation/relink/internal/reconciler"
	"github.com/agentstation/relink/pkg/logging"
)

// Execute runs one relink pass and renders its summary. Failed deletes are
// reported but do not make the command fail.
func Execute(cmd *cobra.Command, app application.Application, flags *cmdutil.RunFlags) error {
	ctx := cmd.Context()
	logger := logging.FromContext(ctx)

	service, err := app.IDM()
	if err != nil {
		return err
	}

	r, err := reconciler.New(service, reconciler.Options{
		Mapping:    flags.Mapping,
		SampleSize: flags.SampleSize,
		OnEntry:    logProgress(logger),
	})
	if err != nil {
		return err
	}

	summary, err := r.Run(ctx)
	if err != nil {
		return err
	}

	format := output.Format(app.OutputFormat())
	tables := []output.Data{output.SummaryToTableData(summary)}
	if format == output.FormatWide && len(summary.Results) > 0 {
		tables = append(tables, output.ResultsToTableData(summary.Results))
	}
	if err := output.Render(cmd.OutOrStdout(), format, summary, tables...); err != nil {
		return err
	}

	return notify(alerts.NewFormatWriter(cmd.ErrOrStderr(), format), summary)
}

// logProgress reports each processed entry as an [i/n] line at info level.
func logProgress(logger *zerolog.Logger) func(reconciler.Progress) {
	return func(p reconciler.Progress) {
		logger.Info().
			Str("source", p.Entry.SourceObjectID).
			Str("target", p.Entry.TargetObjectID).
			Int("links", len(p.Results)).
			Msgf("[%d/%d] Entry processed", p.Index, p.Total)
	}
}

// notify writes the notices that follow a summary.
func notify(w alerts.Writer, summary *reconciler.Summary) error {
	var notices []*alerts.Alert

	switch summary.Outcome {
	case reconciler.OutcomeNothingToDo:
		notices = append(notices, alerts.NewSuccess("No FOUND_ALREADY_LINKED entries, nothing to do"))
	case reconciler.OutcomeNoEntries:
		notices = append(notices, alerts.NewWarning("The reconciliation reported entries but none were returned").
			WithDetails("Run the reconciliation with persistAssociations enabled and try again"))
	}

	if summary.Failed > 0 {
		notices = append(notices, alerts.NewWarning(strconv.Itoa(summary.Failed)+" link deletes failed").
			WithDetails("Re-run resolve to retry; links changed since they were read are skipped"))
	}

	if summary.DryRun() && summary.Outcome == reconciler.OutcomeCompleted {
		notices = append(notices, alerts.NewInfo("This was a dry run, nothing was deleted").
			WithDetails("Run again with --sample-size -1 to delete all matching links"))
	}

	for _, notice := range notices {
		if err := w.WriteAlert(notice); err != nil {
			return err
		}
	}
	return nil
}
