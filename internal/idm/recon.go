package idm

import (
	"context"

	"github.com/agentstation/relink/pkg/errors"
	"github.com/agentstation/relink/pkg/logging"
)

// Recons lists every reconciliation run the IDM reports.
func (s *Service) Recons(ctx context.Context) ([]ReconciliationRun, error) {
	var list reconList
	if err := s.client.Get(ctx, "/recon", nil, &list); err != nil {
		return nil, errors.WrapResource("fetch", "reconciliation", "", err)
	}
	return list.Reconciliations, nil
}

// LatestRecon returns the most recently started run for mapping. Start times
// are ISO-8601 strings, so the greatest string is the latest run.
func (s *Service) LatestRecon(ctx context.Context, mapping string) (*ReconciliationRun, error) {
	if mapping == "" {
		return nil, errors.NewValidationError("mapping", mapping, "mapping is required")
	}

	runs, err := s.Recons(ctx)
	if err != nil {
		return nil, err
	}

	var latest *ReconciliationRun
	matched := 0
	for i := range runs {
		if runs[i].Mapping != mapping {
			continue
		}
		matched++
		if latest == nil || runs[i].Started > latest.Started {
			latest = &runs[i]
		}
	}
	if latest == nil {
		return nil, &errors.NotFoundError{Resource: "reconciliation", ID: mapping}
	}

	logging.FromContext(ctx).Debug().
		Str("mapping", mapping).
		Int("runs", len(runs)).
		Int("matched", matched).
		Str("recon_id", latest.ID).
		Msg("Selected latest reconciliation")
	return latest, nil
}
