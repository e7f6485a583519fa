package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/xharvest/internal/bridge"
	"github.com/user/xharvest/internal/config"
	"github.com/user/xharvest/internal/merge"
	"github.com/user/xharvest/internal/store"
	"go.uber.org/zap"
)

var harvestDuration time.Duration

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Run a harvest session without the TUI",
	Long:  "Start a session against the configured timeline, run until the duration elapses or SIGINT, then export the collected batch.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logger, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer logger.Sync()

		p, err := newPipeline(cfg, logger)
		if err != nil {
			return err
		}
		defer p.close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		go p.source.Watch(ctx)
		go streamEvents(ctx, p.bridge.Events(), logger)

		opts := p.savedOptions()
		if payload, err := json.Marshal(opts); err == nil {
			_ = p.store.Set(store.SettingsKey, string(payload))
		}

		if err := p.session.Start(ctx, opts); err != nil {
			return err
		}

		wait(ctx, harvestDuration)
		p.session.Stop()

		records := p.session.Records()
		if len(records) == 0 {
			fmt.Println("no records collected")
			return nil
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

// streamEvents mirrors bridge traffic onto the log so a headless run
// is observable.
func streamEvents(ctx context.Context, events <-chan any, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev := ev.(type) {
			case bridge.LogEvent:
				logger.Info(ev.Message)
			case bridge.SnapshotEvent:
				logger.Info("snapshot", zap.Int("records", len(ev.Records)))
			case bridge.CompleteEvent:
				logger.Info("complete", zap.Int("records", ev.Count))
			}
		}
	}
}

// wait blocks until the duration elapses, SIGINT/SIGTERM arrives, or
// ctx is done. A zero duration means run until interrupted.
func wait(ctx context.Context, d time.Duration) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	var timeout <-chan time.Time
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-ctx.Done():
	case <-sig:
	case <-timeout:
	}
}

func init() {
	harvestCmd.Flags().DurationVar(&harvestDuration, "duration", 0, "How long to harvest (0 = until interrupted)")
	rootCmd.AddCommand(harvestCmd)
}
