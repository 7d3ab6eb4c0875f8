package idm

import (
	"context"
	"iter"
	"net/url"
	"strconv"

	"github.com/agentstation/relink/pkg/constants"
	"github.com/agentstation/relink/pkg/errors"
	"github.com/agentstation/relink/pkg/logging"
)

// EntryPager walks the FOUND_ALREADY_LINKED entries of a run one page at a
// time. Paging ends on a page without a continuation cookie or on an empty
// page, whichever comes first. A pager is not safe for concurrent use.
type EntryPager struct {
	service *Service
	runID   string

	cookie string
	pages  int
	done   bool
}

// FlaggedEntries returns a pager over the run's FOUND_ALREADY_LINKED entries.
// No request is made until Next is called.
func (s *Service) FlaggedEntries(runID string) *EntryPager {
	return &EntryPager{service: s, runID: runID}
}

// Next fetches the next page. It returns nil once Done reports true.
func (p *EntryPager) Next(ctx context.Context) ([]ReconEntry, error) {
	if p.done {
		return nil, nil
	}
	if p.runID == "" {
		return nil, errors.NewValidationError("recon_id", p.runID, "reconciliation id is required")
	}

	query := url.Values{
		"_queryFilter": {EqualsFilter("situation", constants.SituationFoundAlreadyLinked)},
		"_pageSize":    {strconv.Itoa(p.service.pageSize)},
	}
	if p.cookie != "" {
		query.Set("_pagedResultsCookie", p.cookie)
	}

	var page QueryResult[ReconEntry]
	path := "/recon/assoc/" + url.PathEscape(p.runID) + "/entry"
	if err := p.service.client.Get(ctx, path, query, &page); err != nil {
		return nil, errors.WrapResource("query", "entry", p.runID, err)
	}

	p.pages++
	p.cookie = page.PagedResultsCookie
	if p.cookie == "" || len(page.Result) == 0 {
		p.done = true
	}

	logging.FromContext(ctx).Info().
		Str("recon_id", p.runID).
		Int("page", p.pages).
		Int("entries", len(page.Result)).
		Msg("Fetched entry page")
	return page.Result, nil
}

// Done reports whether the last page has been fetched.
func (p *EntryPager) Done() bool {
	return p.done
}

// Pages returns the number of pages fetched since the last reset.
func (p *EntryPager) Pages() int {
	return p.pages
}

// Reset rewinds the pager to the first page.
func (p *EntryPager) Reset() {
	p.cookie = ""
	p.pages = 0
	p.done = false
}

// All rewinds the pager and yields every entry lazily, fetching pages as the
// consumer advances. A fetch error is yielded once and ends the sequence.
func (p *EntryPager) All(ctx context.Context) iter.Seq2[ReconEntry, error] {
	return func(yield func(ReconEntry, error) bool) {
		p.Reset()
		for !p.done {
			batch, err := p.Next(ctx)
			if err != nil {
				yield(ReconEntry{}, err)
				return
			}
			for _, entry := range batch {
				if !yield(entry, nil) {
					return
				}
			}
		}
	}
}

// Collect fetches every page and returns the entries in server order.
func (p *EntryPager) Collect(ctx context.Context) ([]ReconEntry, error) {
	var entries []ReconEntry
	for entry, err := range p.All(ctx) {
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
