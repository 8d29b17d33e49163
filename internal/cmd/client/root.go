package client

import (
	"github.com/spf13/cobra"
)

// BaseURLFunc provides the base HTTP API URL (e.g., from env or flag).
type BaseURLFunc func() string

// AddCommands registers the client commands on root.
func AddCommands(root *cobra.Command, baseURL BaseURLFunc) {
	root.AddCommand(
		newUpdateCommand(baseURL),
		newHistoryCommand(baseURL),
		newDocHistoryCommand(baseURL),
		newSnapshotCommand(baseURL),
		newVacuumCommand(baseURL),
		newWatermarkCommand(baseURL),
		newTablesCommand(baseURL),
	)
}

// NewRoot constructs a root Cobra command holding only the client commands.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "tablehistory",
		Short: "Table history client commands",
	}
	AddCommands(root, baseURL)
	return root
}
