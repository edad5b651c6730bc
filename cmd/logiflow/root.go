package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the LogiFlow CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logiflow",
		Short: "LogiFlow - logistics back office",
		Long: `LogiFlow serves the logistics back office: browser sessions for
operators and bearer tokens for API clients.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewUsersCmd(openRoleStore))

	return cmd
}
