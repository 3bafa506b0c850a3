package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	match "github.com/0x5487/orderbook-core"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

// KafkaConfig configures the trade publisher.
type KafkaConfig struct {
	Brokers        []string `yaml:"brokers"`
	Topic          string   `yaml:"topic"`
	MaxRetries     uint64   `yaml:"max_retries"`
	WriteTimeoutMs int      `yaml:"write_timeout_ms"`
}

// JournalConfig configures the pebble trade journal.
type JournalConfig struct {
	Dir string `yaml:"dir"`
	// CheckpointEvery saves the book state after this many trades (0 disables checkpoints).
	CheckpointEvery uint64 `yaml:"checkpoint_every"`
}

type AppConfig struct {
	MarketID         string         `yaml:"market_id"`
	TickSize         string         `yaml:"tick_size"`
	ArenaCapacity    int32          `yaml:"arena_capacity"`
	MaxOrders        int32          `yaml:"max_orders"`
	LogLevel         string         `yaml:"log_level"`
	MetricsNamespace string         `yaml:"metrics_namespace"`
	Kafka            *KafkaConfig   `yaml:"kafka"`
	Journal          *JournalConfig `yaml:"journal"`
}

// Load load config from file and environment variables.
// An empty filePath falls back to the CONFIG_FILE environment variable.
func Load(filePath string) (*AppConfig, error) {
	if len(filePath) == 0 {
		filePath = os.Getenv("CONFIG_FILE")
	}

	log := match.Logger().With("func", "config.Load", "file_path", filePath)
	log.Debug("load config")

	configBytes, err := os.ReadFile(filePath)
	if err != nil {
		log.Error("failed to load config file", "error", err)
		return nil, err
	}
	configBytes = []byte(os.ExpandEnv(string(configBytes)))

	cfg := &AppConfig{}

	err = yaml.Unmarshal(configBytes, cfg)
	if err != nil {
		log.Error("failed to parse config file", "error", err)
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Debug("config loaded", "market_id", cfg.MarketID, "tick_size", cfg.TickSize)

	return cfg, nil
}

// Validate checks the values that cannot be defaulted.
func (c *AppConfig) Validate() error {
	var errs []error

	if c.MarketID == "" {
		errs = append(errs, errors.New("config: market_id is required"))
	}
	if c.TickSize != "" {
		if _, err := match.NewTickSize(c.TickSize); err != nil {
			errs = append(errs, fmt.Errorf("config: %w", err))
		}
	}
	if c.ArenaCapacity < 0 || c.MaxOrders < 0 {
		errs = append(errs, errors.New("config: arena_capacity and max_orders must not be negative"))
	}
	if c.Kafka != nil && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		errs = append(errs, errors.New("config: kafka requires brokers and topic"))
	}
	if c.Journal != nil && c.Journal.Dir == "" {
		errs = append(errs, errors.New("config: journal requires dir"))
	}

	return errors.Join(errs...)
}

// EngineOptions converts the configuration into engine options.
// Metrics are registered with reg when a namespace is configured and reg is not nil.
func (c *AppConfig) EngineOptions(reg prometheus.Registerer) ([]match.Option, error) {
	opts := []match.Option{
		match.WithMarketID(c.MarketID),
	}

	if c.TickSize != "" {
		tick, err := match.NewTickSize(c.TickSize)
		if err != nil {
			return nil, err
		}
		opts = append(opts, match.WithTickSize(tick))
	}
	if c.ArenaCapacity > 0 {
		opts = append(opts, match.WithArenaCapacity(c.ArenaCapacity))
	}
	if c.MaxOrders > 0 {
		opts = append(opts, match.WithMaxOrders(c.MaxOrders))
	}
	if c.MetricsNamespace != "" && reg != nil {
		opts = append(opts, match.WithMetrics(match.NewMetrics(reg, c.MetricsNamespace)))
	}

	return opts, nil
}

// NewLogger builds a JSON logger writing to stdout at the given level (debug, info, warn, error).
// Unknown levels fall back to info.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
