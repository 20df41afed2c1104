package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Run one crawl across all configured sources and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd.Context(), cfgFile)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.runOnce(cmd.Context())
			if err != nil {
				return fmt.Errorf("crawl run: %w", err)
			}

			a.logger.Info("crawl complete",
				zap.String("run_id", summary.RunID),
				zap.Int("processed", summary.TotalProcessed),
				zap.Int("new", summary.TotalNew),
				zap.Int("sources_failed", summary.SourcesFailed),
				zap.Duration("duration", summary.Duration))
			return nil
		},
	}
}
