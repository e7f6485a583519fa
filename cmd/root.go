package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/user/xharvest/internal/bridge"
	"github.com/user/xharvest/internal/config"
	"github.com/user/xharvest/internal/extract"
	"github.com/user/xharvest/internal/harvest"
	"github.com/user/xharvest/internal/source"
	"github.com/user/xharvest/internal/store"
	"github.com/user/xharvest/internal/tui"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "xharvest",
	Short: "Incremental AI-prompt harvester TUI",
	Long:  "Watch a timeline, extract AI-prompt posts as they render, and merge batches into a deduplicated corpus.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// The TUI owns the terminal; logs stay out of the way.
		p, err := newPipeline(cfg, zap.NewNop())
		if err != nil {
			return err
		}
		defer p.close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		go p.source.Watch(ctx)

		return tui.Run(ctx, p.session, p.bridge.Events(), p.store, p.savedOptions())
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("data-dir", "", "Data directory (default: ~/.xharvest)")
}

// pipeline is the wired harvest stack shared by the TUI and the
// headless command.
type pipeline struct {
	source  *source.PageSource
	store   *store.Store
	bridge  *bridge.Bridge
	session *harvest.Session
}

func newPipeline(cfg *config.Config, logger *zap.Logger) (*pipeline, error) {
	st, err := store.NewStore(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	src := source.New(source.Config{
		BaseURL:      cfg.Source.BaseURL,
		Query:        cfg.Source.Query,
		PollInterval: cfg.Source.PollInterval,
		Timeout:      cfg.Source.Timeout,
	}, logger)

	intervals := harvest.Intervals{
		Scroll:     cfg.Harvest.ScrollInterval,
		Extraction: cfg.Harvest.ExtractionInterval,
		Message:    cfg.Harvest.MessageInterval,
		Settle:     cfg.Harvest.SettleDelay,
	}
	gates := harvest.NewGates(intervals)
	br := bridge.New(gates.Message, st, logger)

	extractor := extract.NewWithMinLength(cfg.Harvest.MinTextLength)
	session := harvest.NewSession(src, extractor, br, gates, intervals, logger)

	return &pipeline{source: src, store: st, bridge: br, session: session}, nil
}

func (p *pipeline) close() {
	p.store.Close()
}

// savedOptions restores the options of the previous run, defaulting to
// everything enabled.
func (p *pipeline) savedOptions() harvest.Options {
	opts := harvest.Options{IncludeImages: true, IncludeText: true, IncludeMetadata: true}
	raw, err := p.store.Get(store.SettingsKey)
	if err != nil || raw == "" {
		return opts
	}
	if err := json.Unmarshal([]byte(raw), &opts); err != nil {
		return harvest.Options{IncludeImages: true, IncludeText: true, IncludeMetadata: true}
	}
	return opts
}
