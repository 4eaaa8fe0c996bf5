package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "helpdesk",
		Short: "Helpdesk - corporate ticket lifecycle service",
		Long:  `Helpdesk runs the ticket lifecycle and collaboration API and manages its database schema.`,
	}

	rootCmd.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newTokenCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
