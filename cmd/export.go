package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/xharvest/internal/bridge"
	"github.com/user/xharvest/internal/config"
	"github.com/user/xharvest/internal/merge"
	"github.com/user/xharvest/internal/record"
	"github.com/user/xharvest/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the last persisted snapshot as a batch file",
	Long:  "Write the most recent harvest snapshot to a timestamped batch file ready for merging. Useful when a session ended without an explicit export.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		st, err := store.NewStore(cfg.DBPath())
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer st.Close()

		raw, err := st.Get(bridge.SnapshotKey)
		if err != nil {
			return err
		}
		if raw == "" {
			return fmt.Errorf("no snapshot found, run a harvest first")
		}

		var records []record.Record
		if err := json.Unmarshal([]byte(raw), &records); err != nil {
			return fmt.Errorf("snapshot is corrupt: %w", err)
		}

		items := make([]merge.Item, 0, len(records))
		for i := range records {
			items = append(items, merge.ItemFromRecord(&records[i]))
		}

		if err := os.MkdirAll(cfg.ExportDir(), 0755); err != nil {
			return err
		}
		out := filepath.Join(cfg.ExportDir(), fmt.Sprintf("ai-prompts-%d.json", time.Now().UnixMilli()))
		if err := merge.WriteBatch(out, items); err != nil {
			return err
		}

		fmt.Printf("exported %d records to %s\n", len(items), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
