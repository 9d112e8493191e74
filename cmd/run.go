package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leadflow/leadflow-server/internal/pipeline"
)

var (
	runKeywords  string
	runLocations string
	runLimit     int
	runUser      string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one enrichment pass and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		run, err := env.Pipeline.Run(ctx, pipeline.Request{
			UserID:    runUser,
			Keywords:  runKeywords,
			Locations: runLocations,
			Limit:     runLimit,
		})
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("enrichment complete",
			zap.String("runId", run.ID),
			zap.Int("leadCount", run.LeadCount),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

func init() {
	runCmd.Flags().StringVar(&runKeywords, "keywords", "", "business keywords to search for (required)")
	runCmd.Flags().StringVar(&runLocations, "locations", "", "target cities or regions (required)")
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "number of candidates (default from config, max 50)")
	runCmd.Flags().StringVar(&runUser, "user", "cli", "user ID owning the run archive")
	_ = runCmd.MarkFlagRequired("keywords")
	_ = runCmd.MarkFlagRequired("locations")
	rootCmd.AddCommand(runCmd)
}
