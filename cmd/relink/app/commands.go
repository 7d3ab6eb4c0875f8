package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/relink/cmd/relink/cmd/auth"
	"github.com/agentstation/relink/cmd/relink/cmd/entries"
	"github.com/agentstation/relink/cmd/relink/cmd/links"
	"github.com/agentstation/relink/cmd/relink/cmd/recon"
	"github.com/agentstation/relink/cmd/relink/cmd/resolve"
)

// CreateResolveCommand creates the resolve command with app dependencies.
func (a *App) CreateResolveCommand() *cobra.Command {
	cmd := resolve.NewCommand(a)
	cmd.GroupID = "core"
	return cmd
}

// CreateReconCommand creates the recon command with app dependencies.
func (a *App) CreateReconCommand() *cobra.Command {
	cmd := recon.NewCommand(a)
	cmd.GroupID = "inspect"
	return cmd
}

// CreateEntriesCommand creates the entries command with app dependencies.
func (a *App) CreateEntriesCommand() *cobra.Command {
	cmd := entries.NewCommand(a)
	cmd.GroupID = "inspect"
	return cmd
}

// CreateLinksCommand creates the links command with app dependencies.
func (a *App) CreateLinksCommand() *cobra.Command {
	cmd := links.NewCommand(a)
	cmd.GroupID = "inspect"
	return cmd
}

// CreateAuthCommand creates the auth command with app dependencies.
func (a *App) CreateAuthCommand() *cobra.Command {
	return auth.NewCommand(a)
}

// CreateVersionCommand creates the version command.
func (a *App) CreateVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "relink %s\n", a.version)
			_, _ = fmt.Fprintf(out, "  commit:   %s\n", a.commit)
			_, _ = fmt.Fprintf(out, "  built:    %s\n", a.date)
			_, _ = fmt.Fprintf(out, "  built by: %s\n", a.builtBy)
			return nil
		},
	}
}
