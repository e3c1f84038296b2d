package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/Julianb233/acre-notebook-lm/internal/database"
)

var (
	syncPartnerID string
	syncBaseID    string
	syncTables    []string
)

// syncCmd runs one sync of the tabular source.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull the Airtable base into the local store",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer func() { _ = database.Close() }()

		// Missing credentials fail fast before any partial work.
		if err := a.cfg.Airtable.Validate(); err != nil {
			return err
		}

		baseID := syncBaseID
		if baseID == "" {
			baseID = a.cfg.Airtable.BaseID
		}

		result, err := a.syncEngine.SyncBase(context.Background(), syncPartnerID, baseID, syncTables...)
		if err != nil {
			return err
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("TABLE", "RECORDS", "STATUS", "ERROR")
		for _, tr := range result.Tables {
			t.Row(tr.Name, strconv.Itoa(tr.SyncedCount), tr.Status, tr.Error)
		}
		fmt.Println(t)
		fmt.Printf("Total: %d records, success=%v, errors=%d\n",
			result.TotalRecords, result.Success, len(result.Errors))

		return nil
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncPartnerID, "partner", "", "tenant/partner identifier (required)")
	syncCmd.Flags().StringVar(&syncBaseID, "base", "", "base id (defaults to configured base)")
	syncCmd.Flags().StringSliceVar(&syncTables, "tables", nil, "restrict the run to these tables")
	_ = syncCmd.MarkFlagRequired("partner")

	rootCmd.AddCommand(syncCmd)
}
