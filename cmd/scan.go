package cmd

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run all detectors once and print a summary",
	Run:   runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(_ *cobra.Command, _ []string) {
	ctx := context.Background()

	cacheUsecase.Start(ctx)
	defer cacheUsecase.Stop()

	records, err := detectionUsecase.RunAll(ctx)
	if err != nil {
		logrus.Fatalf("scan failed: %v", err)
	}

	summary, err := detectionUsecase.GetSummary(ctx)
	if err != nil {
		logrus.Fatalf("failed to summarize scan: %v", err)
	}

	logrus.Infof("[SCAN] %d finding(s) across %d category(ies)", len(records), len(summary))
	for _, entry := range summary {
		logrus.Infof("[SCAN] %-20s total=%d critical=%d high=%d medium=%d low=%d",
			entry.Category,
			entry.Total,
			entry.Counts["critical"],
			entry.Counts["high"],
			entry.Counts["medium"],
			entry.Counts["low"],
		)
	}
}
