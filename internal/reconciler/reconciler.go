// Package reconciler drives a full relink pass: locate the latest
// reconciliation for a mapping, page in its FOUND_ALREADY_LINKED entries,
// resolve each entry to link records and delete them.
package reconciler

import (
	"context"

	"github.com/agentstation/relink/internal/idm"
	"github.com/agentstation/relink/pkg/errors"
	"github.com/agentstation/relink/pkg/logging"
)

// IDM is the part of *idm.Service the reconciler uses.
type IDM interface {
	LatestRecon(ctx context.Context, mapping string) (*idm.ReconciliationRun, error)
	FlaggedEntries(runID string) *idm.EntryPager
	ResolveLinks(ctx context.Context, sourceID, targetID, mapping string) ([]idm.LinkRecord, error)
	DeleteLink(ctx context.Context, link idm.LinkRecord) error
}

// Progress is reported once per processed entry, after its links were handled.
type Progress struct {
	Index   int
	Total   int
	Entry   idm.ReconEntry
	Results []LinkResult
}

// Options configures a run.
type Options struct {
	Mapping string

	// SampleSize selects entries: negative for all, zero for a dry run that
	// resolves every entry without deleting, N for the first N entries.
	SampleSize int

	// OnEntry, if set, is called after each entry.
	OnEntry func(Progress)
}

// Reconciler runs relink passes. Runs are strictly sequential.
type Reconciler struct {
	idm  IDM
	opts Options
}

// New creates a Reconciler.
func New(service IDM, opts Options) (*Reconciler, error) {
	if service == nil {
		return nil, errors.NewValidationError("service", nil, "IDM service is required")
	}
	if opts.Mapping == "" {
		return nil, errors.NewValidationError("mapping", opts.Mapping, "mapping is required")
	}
	return &Reconciler{idm: service, opts: opts}, nil
}

// Run performs one pass. Missing reconciliations, authentication failures,
// failed reads and cancellation end the run with an error. Entries without
// links and failed deletes are counted in the summary and the run continues.
func (r *Reconciler) Run(ctx context.Context) (*Summary, error) {
	ctx = logging.WithMapping(ctx, r.opts.Mapping)
	logger := logging.FromContext(ctx)

	summary := &Summary{
		Mapping:    r.opts.Mapping,
		Mode:       ModeFor(r.opts.SampleSize),
		SampleSize: r.opts.SampleSize,
	}

	run, err := r.idm.LatestRecon(ctx, r.opts.Mapping)
	if err != nil {
		return nil, err
	}
	summary.ReconID = run.ID
	summary.ReconState = run.State
	summary.ReconStarted = run.Started
	summary.Reported = run.FlaggedCount()

	ctx = logging.WithRecon(ctx, run.ID)
	logger = logging.FromContext(ctx)
	logger.Info().
		Str("state", run.State).
		Str("started", run.Started).
		Int("flagged", summary.Reported).
		Msg("Found latest reconciliation")

	if summary.Reported == 0 {
		summary.Outcome = OutcomeNothingToDo
		logger.Info().Msg("No FOUND_ALREADY_LINKED entries, nothing to do")
		return summary, nil
	}

	entries, err := r.idm.FlaggedEntries(run.ID).Collect(ctx)
	if err != nil {
		return nil, err
	}
	summary.Entries = len(entries)
	if summary.Entries != summary.Reported {
		logger.Warn().
			Int("reported", summary.Reported).
			Int("fetched", summary.Entries).
			Msg("Entry count differs from reconciliation summary")
	}
	if summary.Entries == 0 {
		summary.Outcome = OutcomeNoEntries
		logger.Warn().Msg("No association entries returned; was the reconciliation run with persistAssociations enabled?")
		return summary, nil
	}

	selected := selectEntries(entries, r.opts.SampleSize)
	logger.Info().
		Str("mode", string(summary.Mode)).
		Int("selected", len(selected)).
		Int("total", len(entries)).
		Msg("Processing entries")

	for i, entry := range selected {
		results, err := r.processEntry(ctx, i+1, entry, summary)
		if err != nil {
			return nil, err
		}
		summary.Processed++
		summary.Results = append(summary.Results, results...)
		if r.opts.OnEntry != nil {
			r.opts.OnEntry(Progress{Index: i + 1, Total: len(selected), Entry: entry, Results: results})
		}
	}

	summary.Outcome = OutcomeCompleted
	logger.Info().
		Int("processed", summary.Processed).
		Int("deleted", summary.Deleted).
		Int("would_delete", summary.WouldDelete).
		Int("not_found", summary.NotFound).
		Int("failed", summary.Failed).
		Msg("Run complete")
	return summary, nil
}

func (r *Reconciler) processEntry(ctx context.Context, index int, entry idm.ReconEntry, summary *Summary) ([]LinkResult, error) {
	ctx = logging.WithFields(ctx, map[string]any{
		"entry":  index,
		"source": entry.SourceObjectID,
		"target": entry.TargetObjectID,
	})
	logger := logging.FromContext(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	links, err := r.idm.ResolveLinks(ctx, entry.SourceObjectID, entry.TargetObjectID, r.opts.Mapping)
	if err != nil {
		return nil, err
	}

	if len(links) == 0 {
		summary.NotFound++
		logger.Warn().Msg("No matching link found")
		return []LinkResult{{
			Entry:    index,
			SourceID: entry.SourceObjectID,
			TargetID: entry.TargetObjectID,
			Action:   ActionNotFound,
		}}, nil
	}

	summary.LinksFound += len(links)
	results := make([]LinkResult, 0, len(links))
	for _, link := range links {
		result := LinkResult{
			Entry:    index,
			SourceID: entry.SourceObjectID,
			TargetID: entry.TargetObjectID,
			LinkID:   link.ID,
			Rev:      link.Rev,
			FirstID:  link.FirstID,
			SecondID: link.SecondID,
		}

		if summary.DryRun() {
			result.Action = ActionWouldDelete
			summary.WouldDelete++
			logger.Info().Str("link_id", link.ID).Msg("Would delete link")
			results = append(results, result)
			continue
		}

		if err := r.idm.DeleteLink(ctx, link); err != nil {
			if isFatal(ctx, err) {
				return nil, err
			}
			result.Action = ActionFailed
			result.Error = err.Error()
			summary.Failed++
			failedCtx := logging.WithError(logging.WithLink(ctx, link.ID), err)
			logging.FromContext(failedCtx).Error().Msg("Failed to delete link")
		} else {
			result.Action = ActionDeleted
			summary.Deleted++
			logger.Info().Str("link_id", link.ID).Msg("Deleted link")
		}
		results = append(results, result)
	}
	return results, nil
}

// isFatal reports whether a delete error must stop the run rather than be
// counted against the link.
func isFatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.IsFatal(err)
}

func selectEntries(entries []idm.ReconEntry, sampleSize int) []idm.ReconEntry {
	if sampleSize > 0 && sampleSize < len(entries) {
		return entries[:sampleSize]
	}
	return entries
}

var _ IDM = (*idm.Service)(nil)
