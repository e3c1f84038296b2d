package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "acre",
	Short: "Retrieval and synchronization engine for the acre notebook assistant",
	Long: `acre keeps documents, meeting transcripts, and Airtable records in one
similarity-searchable store, assembles grounded context for the assistant,
and notifies downstream automations.`,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
}
