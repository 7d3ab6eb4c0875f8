package idm

import (
	"context"
	"net/url"

	"github.com/agentstation/relink/pkg/errors"
	"github.com/agentstation/relink/pkg/logging"
)

// linkFields are the two endpoint columns of a link. Which side holds the
// source object depends on how the link was created, so both are searched.
var linkFields = []string{"firstId", "secondId"}

// ResolveLinks finds the links of type mapping that touch sourceID or
// targetID in either endpoint column. Results are deduplicated by _id in the
// order first seen. An empty result is not an error.
func (s *Service) ResolveLinks(ctx context.Context, sourceID, targetID, mapping string) ([]LinkRecord, error) {
	if mapping == "" {
		return nil, errors.NewValidationError("mapping", mapping, "mapping is required")
	}

	seen := make(map[string]struct{})
	var links []LinkRecord
	candidates := 0
	for _, id := range candidateIDs(sourceID, targetID) {
		for _, field := range linkFields {
			found, err := s.QueryLinks(ctx, field, id)
			if err != nil {
				return nil, err
			}
			for _, link := range found {
				candidates++
				if _, dup := seen[link.ID]; dup {
					continue
				}
				seen[link.ID] = struct{}{}
				if link.LinkType == mapping {
					links = append(links, link)
				}
			}
		}
	}

	logging.FromContext(ctx).Debug().
		Str("source", sourceID).
		Str("target", targetID).
		Int("candidates", candidates).
		Int("matched", len(links)).
		Msg("Resolved links")
	return links, nil
}

// QueryLinks returns the links whose field equals id.
func (s *Service) QueryLinks(ctx context.Context, field, id string) ([]LinkRecord, error) {
	query := url.Values{"_queryFilter": {EqualsFilter(field, id)}}
	var result QueryResult[LinkRecord]
	if err := s.client.Get(ctx, "/repo/link", query, &result); err != nil {
		return nil, errors.WrapResource("query", "link", field+"="+id, err)
	}
	return result.Result, nil
}

// DeleteLink removes link, guarded by the revision read with it. A concurrent
// change makes the delete fail with a precondition error.
func (s *Service) DeleteLink(ctx context.Context, link LinkRecord) error {
	if link.ID == "" {
		return errors.NewValidationError("_id", link.ID, "link id is required")
	}
	if err := s.client.Delete(ctx, "/repo/link/"+url.PathEscape(link.ID), link.Rev); err != nil {
		return errors.WrapResource("delete", "link", link.ID, err)
	}
	return nil
}
