package reconciler

import "github.com/agentstation/relink/pkg/constants"

// Mode says whether a run deletes links and how many entries it covers.
type Mode string

// Run modes.
const (
	ModeAll    Mode = "all"
	ModeSample Mode = "sample"
	ModeDryRun Mode = "dry-run"
)

// ModeFor maps a sample size to its mode: negative processes everything,
// zero resolves without deleting, positive processes the first N entries.
func ModeFor(sampleSize int) Mode {
	switch {
	case sampleSize == constants.SampleDryRun:
		return ModeDryRun
	case sampleSize > 0:
		return ModeSample
	default:
		return ModeAll
	}
}

// Outcome is how a run ended.
type Outcome string

// Run outcomes. None of them is an error.
const (
	OutcomeCompleted   Outcome = "completed"
	OutcomeNothingToDo Outcome = "nothing-to-do"
	OutcomeNoEntries   Outcome = "no-entries"
)

// Action is what happened to one resolved link.
type Action string

// Link actions.
const (
	ActionDeleted     Action = "deleted"
	ActionWouldDelete Action = "would-delete"
	ActionFailed      Action = "failed"
	ActionNotFound    Action = "not-found"
)

// LinkResult records the handling of one entry/link pair. Entries without a
// matching link get a single result with ActionNotFound and no LinkID.
type LinkResult struct {
	Entry    int    `json:"entry" yaml:"entry"`
	SourceID string `json:"source_id,omitempty" yaml:"source_id,omitempty"`
	TargetID string `json:"target_id,omitempty" yaml:"target_id,omitempty"`
	LinkID   string `json:"link_id,omitempty" yaml:"link_id,omitempty"`
	Rev      string `json:"rev,omitempty" yaml:"rev,omitempty"`
	FirstID  string `json:"first_id,omitempty" yaml:"first_id,omitempty"`
	SecondID string `json:"second_id,omitempty" yaml:"second_id,omitempty"`
	Action   Action `json:"action" yaml:"action"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Summary is the report of one run.
type Summary struct {
	Mapping      string  `json:"mapping" yaml:"mapping"`
	ReconID      string  `json:"recon_id,omitempty" yaml:"recon_id,omitempty"`
	ReconState   string  `json:"recon_state,omitempty" yaml:"recon_state,omitempty"`
	ReconStarted string  `json:"recon_started,omitempty" yaml:"recon_started,omitempty"`
	Mode         Mode    `json:"mode" yaml:"mode"`
	SampleSize   int     `json:"sample_size" yaml:"sample_size"`
	Outcome      Outcome `json:"outcome" yaml:"outcome"`

	// Reported is the run's own FOUND_ALREADY_LINKED count, Entries the number
	// actually paged in. They may differ.
	Reported    int `json:"reported" yaml:"reported"`
	Entries     int `json:"entries" yaml:"entries"`
	Processed   int `json:"processed" yaml:"processed"`
	LinksFound  int `json:"links_found" yaml:"links_found"`
	Deleted     int `json:"deleted" yaml:"deleted"`
	WouldDelete int `json:"would_delete" yaml:"would_delete"`
	NotFound    int `json:"not_found" yaml:"not_found"`
	Failed      int `json:"failed" yaml:"failed"`

	Results []LinkResult `json:"results,omitempty" yaml:"results,omitempty"`
}

// DryRun reports whether the run was resolve-only.
func (s *Summary) DryRun() bool {
	return s.Mode == ModeDryRun
}
