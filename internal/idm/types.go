// Package idm reads reconciliation results from the IDM REST API and finds
// and removes the persisted link records behind FOUND_ALREADY_LINKED entries.
package idm

import "github.com/agentstation/relink/pkg/constants"

// ReconciliationRun is one reconciliation pass as reported by GET /recon.
// Timestamps are kept as the server's ISO-8601 strings.
type ReconciliationRun struct {
	ID               string         `json:"_id" yaml:"id"`
	Mapping          string         `json:"mapping" yaml:"mapping"`
	State            string         `json:"state" yaml:"state"`
	Stage            string         `json:"stage,omitempty" yaml:"stage,omitempty"`
	Started          string         `json:"started,omitempty" yaml:"started,omitempty"`
	Ended            string         `json:"ended,omitempty" yaml:"ended,omitempty"`
	SituationSummary map[string]int `json:"situationSummary,omitempty" yaml:"situation_summary,omitempty"`
	Progress         map[string]any `json:"progress,omitempty" yaml:"progress,omitempty"`
}

// SituationCount returns the number of entries the run reported for a situation.
func (r *ReconciliationRun) SituationCount(situation string) int {
	if r == nil {
		return 0
	}
	return r.SituationSummary[situation]
}

// FlaggedCount returns the run's FOUND_ALREADY_LINKED count.
func (r *ReconciliationRun) FlaggedCount() int {
	return r.SituationCount(constants.SituationFoundAlreadyLinked)
}

// ReconEntry is a persisted association entry of a run.
type ReconEntry struct {
	ID             string `json:"_id,omitempty" yaml:"id,omitempty"`
	SourceObjectID string `json:"sourceObjectId,omitempty" yaml:"source_object_id,omitempty"`
	TargetObjectID string `json:"targetObjectId,omitempty" yaml:"target_object_id,omitempty"`
	Situation      string `json:"situation,omitempty" yaml:"situation,omitempty"`
	Action         string `json:"action,omitempty" yaml:"action,omitempty"`
	LinkQualifier  string `json:"linkQualifier,omitempty" yaml:"link_qualifier,omitempty"`
}

// CandidateIDs returns the entry's non-empty object ids, source first,
// without duplicates.
func (e ReconEntry) CandidateIDs() []string {
	return candidateIDs(e.SourceObjectID, e.TargetObjectID)
}

func candidateIDs(ids ...string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		dup := false
		for _, seen := range out {
			if seen == id {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, id)
		}
	}
	return out
}

// LinkRecord is a row of the repo/link table joining two objects under a mapping.
type LinkRecord struct {
	ID            string `json:"_id" yaml:"id"`
	Rev           string `json:"_rev" yaml:"rev"`
	FirstID       string `json:"firstId" yaml:"first_id"`
	SecondID      string `json:"secondId" yaml:"second_id"`
	LinkType      string `json:"linkType" yaml:"link_type"`
	LinkQualifier string `json:"linkQualifier,omitempty" yaml:"link_qualifier,omitempty"`
}

// QueryResult is the CREST query response envelope.
type QueryResult[T any] struct {
	Result                  []T    `json:"result"`
	ResultCount             int    `json:"resultCount,omitempty"`
	PagedResultsCookie      string `json:"pagedResultsCookie,omitempty"`
	TotalPagedResultsPolicy string `json:"totalPagedResultsPolicy,omitempty"`
	TotalPagedResults       int    `json:"totalPagedResults,omitempty"`
	RemainingPagedResults   int    `json:"remainingPagedResults,omitempty"`
}

type reconList struct {
	Reconciliations []ReconciliationRun `json:"reconciliations"`
}
