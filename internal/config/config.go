package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	DataDir string        `mapstructure:"data_dir"`
	Source  SourceConfig  `mapstructure:"source"`
	Harvest HarvestConfig `mapstructure:"harvest"`
}

type SourceConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	Query        string        `mapstructure:"query"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type HarvestConfig struct {
	ScrollInterval     time.Duration `mapstructure:"scroll_interval"`
	ExtractionInterval time.Duration `mapstructure:"extraction_interval"`
	MessageInterval    time.Duration `mapstructure:"message_interval"`
	SettleDelay        time.Duration `mapstructure:"settle_delay"`
	MinTextLength      int           `mapstructure:"min_text_length"`
}

func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	defaultDataDir := filepath.Join(homeDir, ".xharvest")

	viper.SetDefault("data_dir", defaultDataDir)
	viper.SetDefault("source.base_url", "https://x.com")
	viper.SetDefault("source.query", "")
	viper.SetDefault("source.poll_interval", "3s")
	viper.SetDefault("source.timeout", "15s")
	viper.SetDefault("harvest.scroll_interval", "2s")
	viper.SetDefault("harvest.extraction_interval", "1s")
	viper.SetDefault("harvest.message_interval", "500ms")
	viper.SetDefault("harvest.settle_delay", "2s")
	viper.SetDefault("harvest.min_text_length", 30)

	// Environment variable overrides
	viper.SetEnvPrefix("XHARVEST")
	viper.AutomaticEnv()
	viper.BindEnv("data_dir", "XHARVEST_DATA_DIR")
	viper.BindEnv("source.base_url", "XHARVEST_SOURCE_BASE_URL")
	viper.BindEnv("source.query", "XHARVEST_SOURCE_QUERY")

	// Config file
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(defaultDataDir)

	// Read config file if exists (ignore error if not found)
	_ = viper.ReadInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Ensure data directory exists
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "xharvest.db")
}

func (c *Config) CorpusPath() string {
	return filepath.Join(c.DataDir, "corpus.json")
}

func (c *Config) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}
