package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/xharvest/internal/config"
	"github.com/user/xharvest/internal/merge"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <batch.json>",
	Short: "Merge an exported batch into the corpus",
	Long:  "Normalize, score and deduplicate a harvested batch against the existing corpus. The previous corpus is backed up before it is overwritten.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		report, err := merge.Run(cfg.CorpusPath(), args[0], time.Now())
		if err != nil {
			return err
		}

		fmt.Printf("corpus: %d existing + %d incoming - %d duplicates = %d records\n",
			report.Original, report.Incoming, report.DuplicatesRemoved, report.Final)
		fmt.Printf("batch quality: %d high / %d medium / %d flagged low\n",
			report.Batch.High, report.Batch.Medium, report.Batch.Low)
		fmt.Printf("corpus quality: %d high / %d medium / %d flagged low\n",
			report.Corpus.High, report.Corpus.Medium, report.Corpus.Low)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}
