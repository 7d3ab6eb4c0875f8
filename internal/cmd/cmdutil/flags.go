// Package cmdutil provides flags shared by relink commands.
package cmdutil

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/relink/internal/cmd/application"
	"github.com/agentstation/relink/pkg/constants"
	"github.com/agentstation/relink/pkg/errors"
)

// MappingFlags holds the --mapping flag.
type MappingFlags struct {
	Mapping string
}

// AddMappingFlags adds --mapping/-m to a command.
func AddMappingFlags(cmd *cobra.Command) *MappingFlags {
	flags := &MappingFlags{}
	flags.Bind(cmd)
	return flags
}

// Bind registers --mapping/-m on cmd, writing into f.
func (f *MappingFlags) Bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.Mapping, "mapping", "m", "",
		"IDM mapping name (default from RELINK_MAPPING)")
}

// Resolve fills the mapping from the configuration when the flag was not
// given and fails when neither names one.
func (f *MappingFlags) Resolve(cmd *cobra.Command, app application.Application) (string, error) {
	if !cmd.Flags().Changed("mapping") {
		f.Mapping = app.Mapping()
	}
	if f.Mapping == "" {
		return "", errors.NewValidationError("mapping", f.Mapping,
			"mapping is required (use --mapping or set RELINK_MAPPING)")
	}
	return f.Mapping, nil
}

// RunFlags holds the flags that select how much of a run is processed.
type RunFlags struct {
	MappingFlags
	SampleSize int
	DryRun     bool
}

// AddRunFlags adds --mapping, --sample-size and --dry-run to a command.
func AddRunFlags(cmd *cobra.Command) *RunFlags {
	flags := &RunFlags{}
	flags.Bind(cmd)
	cmd.Flags().IntVarP(&flags.SampleSize, "sample-size", "n", constants.SampleAll,
		"-1 processes every entry, 0 is a dry run, N processes the first N entries")
	cmd.Flags().BoolVar(&flags.DryRun, "dry-run", false,
		"resolve links without deleting them (same as --sample-size 0)")
	cmd.MarkFlagsMutuallyExclusive("sample-size", "dry-run")
	return flags
}

// Resolve applies configured defaults for flags that were not given. Any
// negative sample size means every entry and is normalized to SampleAll.
func (f *RunFlags) Resolve(cmd *cobra.Command, app application.Application) error {
	if _, err := f.MappingFlags.Resolve(cmd, app); err != nil {
		return err
	}
	switch {
	case f.DryRun:
		f.SampleSize = constants.SampleDryRun
	case !cmd.Flags().Changed("sample-size"):
		f.SampleSize = app.SampleSize()
	}
	if f.SampleSize < 0 {
		f.SampleSize = constants.SampleAll
	}
	return nil
}
