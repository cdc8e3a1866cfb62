package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tablesniper",
		Short: "Daemon that fills and submits restaurant reservation forms the instant bookings open",
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newKeysCmd())
	root.AddCommand(newHashPasswordCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newScheduleCmd())
	root.AddCommand(newCancelCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newFillCmd())
	root.AddCommand(newTabsCmd())

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
