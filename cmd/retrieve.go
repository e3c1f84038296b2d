package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Julianb233/acre-notebook-lm/internal/citation"
	"github.com/Julianb233/acre-notebook-lm/internal/database"
	"github.com/Julianb233/acre-notebook-lm/internal/retrieval"
)

var (
	retrievePartnerID string
	retrieveTopK      int
	retrieveThreshold float64
)

// retrieveCmd runs one retrieval from the command line, useful for
// inspecting what the assistant would be grounded on.
var retrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "Run a similarity search across all sources",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer func() { _ = database.Close() }()

		if a.retrieval == nil {
			return fmt.Errorf("embedding provider is not configured")
		}

		threshold := retrieveThreshold
		if threshold == 0 {
			threshold = a.cfg.Retrieval.SimilarityThreshold
		}

		result, err := a.retrieval.Retrieve(context.Background(), args[0], retrieval.Options{
			TopK:                retrieveTopK,
			SimilarityThreshold: threshold,
			PartnerID:           retrievePartnerID,
			MaxContextTokens:    a.cfg.Retrieval.MaxContextTokens,
		})
		if err != nil {
			return err
		}

		citations := citation.BuildCitations(result.Chunks)
		confidence := citation.BuildConfidence(citations)

		for i, c := range citations {
			fmt.Printf("%d. [%s] %s (%s) — %.2f %s\n   %s\n",
				i+1, c.Type, c.SourceName, c.Location, c.RelevanceScore, c.RelevanceLabel, c.Excerpt)
		}
		fmt.Printf("\nConfidence: %s (%.2f) — %s\n", confidence.Level, confidence.Score, confidence.Explanation)

		return nil
	},
}

func init() {
	retrieveCmd.Flags().StringVar(&retrievePartnerID, "partner", "", "tenant/partner identifier (required)")
	retrieveCmd.Flags().IntVar(&retrieveTopK, "top-k", 0, "max candidates (default from config)")
	retrieveCmd.Flags().Float64Var(&retrieveThreshold, "threshold", 0, "similarity threshold (default from config)")
	_ = retrieveCmd.MarkFlagRequired("partner")

	rootCmd.AddCommand(retrieveCmd)
}
