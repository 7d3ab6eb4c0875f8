package output

import (
	"io"
	"sort"
	"strconv"

	"github.com/agentstation/relink/internal/auth"
	"github.com/agentstation/relink/internal/idm"
	"github.com/agentstation/relink/internal/reconciler"
)

// Render writes structured as JSON or YAML, or the given tables for the
// table formats.
func Render(w io.Writer, format Format, structured any, tables ...Data) error {
	formatter := NewFormatter(format)
	switch format {
	case FormatJSON, FormatYAML:
		return formatter.Format(w, structured)
	default:
		if len(tables) == 0 {
			return formatter.Format(w, structured)
		}
		return formatter.Format(w, tables)
	}
}

// SummaryToTableData converts a run summary into a property table.
func SummaryToTableData(s *reconciler.Summary) Data {
	rows := [][]string{
		{"Mapping", s.Mapping},
		{"Recon ID", dash(s.ReconID)},
		{"Recon State", dash(s.ReconState)},
		{"Recon Started", dash(s.ReconStarted)},
		{"Mode", modeLabel(s)},
		{"Outcome", string(s.Outcome)},
		{"Reported", strconv.Itoa(s.Reported)},
		{"Entries", strconv.Itoa(s.Entries)},
		{"Processed", strconv.Itoa(s.Processed)},
		{"Links Found", strconv.Itoa(s.LinksFound)},
	}
	if s.DryRun() {
		rows = append(rows, []string{"Would Delete", strconv.Itoa(s.WouldDelete)})
	} else {
		rows = append(rows, []string{"Deleted", strconv.Itoa(s.Deleted)})
	}
	rows = append(rows,
		[]string{"Not Found", strconv.Itoa(s.NotFound)},
		[]string{"Failed", strconv.Itoa(s.Failed)},
	)
	return Data{
		Headers:         []string{"Property", "Value"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignRight},
	}
}

// ResultsToTableData lists the per-link outcomes of a run.
func ResultsToTableData(results []reconciler.LinkResult) Data {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			strconv.Itoa(r.Entry),
			dash(r.SourceID),
			dash(r.TargetID),
			dash(r.LinkID),
			dash(r.Rev),
			string(r.Action),
			dash(r.Error),
		})
	}
	return Data{
		Headers:         []string{"#", "Source", "Target", "Link", "Rev", "Action", "Error"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignRight},
	}
}

// ReconToTableData converts a reconciliation run into a property table
// followed by its situation counts in name order.
func ReconToTableData(run *idm.ReconciliationRun) Data {
	rows := [][]string{
		{"ID", run.ID},
		{"Mapping", run.Mapping},
		{"State", dash(run.State)},
		{"Stage", dash(run.Stage)},
		{"Started", dash(run.Started)},
		{"Ended", dash(run.Ended)},
	}

	situations := make([]string, 0, len(run.SituationSummary))
	for name := range run.SituationSummary {
		situations = append(situations, name)
	}
	sort.Strings(situations)
	for _, name := range situations {
		rows = append(rows, []string{name, strconv.Itoa(run.SituationSummary[name])})
	}

	return Data{Headers: []string{"Property", "Value"}, Rows: rows}
}

// ReconsToTableData lists reconciliation runs with their flagged counts.
func ReconsToTableData(runs []idm.ReconciliationRun) Data {
	rows := make([][]string, 0, len(runs))
	for i := range runs {
		run := &runs[i]
		rows = append(rows, []string{
			run.ID,
			run.Mapping,
			dash(run.State),
			dash(run.Started),
			strconv.Itoa(run.FlaggedCount()),
		})
	}
	return Data{
		Headers:         []string{"ID", "Mapping", "State", "Started", "Already Linked"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignLeft, AlignLeft, AlignLeft, AlignRight},
	}
}

// EntriesToTableData lists recon entries numbered from start.
func EntriesToTableData(entries []idm.ReconEntry, start int) Data {
	rows := make([][]string, 0, len(entries))
	for i, e := range entries {
		rows = append(rows, []string{
			strconv.Itoa(start + i),
			dash(e.SourceObjectID),
			dash(e.TargetObjectID),
			dash(e.Action),
			dash(e.LinkQualifier),
		})
	}
	return Data{
		Headers:         []string{"#", "Source", "Target", "Action", "Qualifier"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignRight},
	}
}

// LinksToTableData lists link records.
func LinksToTableData(links []idm.LinkRecord) Data {
	rows := make([][]string, 0, len(links))
	for _, l := range links {
		rows = append(rows, []string{l.ID, l.Rev, l.FirstID, l.SecondID, l.LinkType, dash(l.LinkQualifier)})
	}
	return Data{
		Headers: []string{"ID", "Rev", "First ID", "Second ID", "Link Type", "Qualifier"},
		Rows:    rows,
	}
}

// StatusToTableData converts a credential check into a property table.
func StatusToTableData(status *auth.Status) Data {
	rows := [][]string{
		{"State", status.State.String()},
		{"Summary", status.Summary},
		{"Service Account", dash(status.AccountID)},
		{"Key File", dash(status.KeyFile)},
	}
	if status.State == auth.StateConfigured {
		rows = append(rows,
			[]string{"Key Format", status.KeyFormat},
			[]string{"Key ID", dash(status.KeyID)},
			[]string{"Key Bits", strconv.Itoa(status.KeyBits)},
		)
	}
	return Data{Headers: []string{"Property", "Value"}, Rows: rows}
}

func modeLabel(s *reconciler.Summary) string {
	if s.Mode == reconciler.ModeSample {
		return string(s.Mode) + " (" + strconv.Itoa(s.SampleSize) + ")"
	}
	return string(s.Mode)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
