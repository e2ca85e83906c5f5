package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/vitos/crypto_signal_bot/internal/infrastructure/indicators"
	"github.com/vitos/crypto_signal_bot/internal/usecase"
)

type Config struct {
	Logging struct {
		Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
		File  string `yaml:"file"`
	} `yaml:"logging"`

	Scoring    usecase.ScoringConfig  `yaml:"scoring"`
	Indicators indicators.Config      `yaml:"indicators"`
	Planner    usecase.PlannerConfig  `yaml:"planner"`
	Ledger     usecase.LedgerConfig   `yaml:"ledger"`
	Labeler    usecase.LabelerConfig  `yaml:"labeler"`
	Backtest   usecase.BacktestConfig `yaml:"backtest"`
	Runner     usecase.PipelineConfig `yaml:"runner"`

	Storage struct {
		Driver      string `yaml:"driver" validate:"oneof=json sqlite"`
		DataDir     string `yaml:"data_dir" validate:"required"`
		SQLitePath  string `yaml:"sqlite_path" validate:"required_if=Driver sqlite"`
		LedgerFile  string `yaml:"ledger_file"`
		HistoryFile string `yaml:"history_file"`
		SignalsFile string `yaml:"signals_file"`
	} `yaml:"storage"`

	Data struct {
		HistoryDir    string `yaml:"history_dir"`
		DataRawFile   string `yaml:"data_raw_file"`
		SentimentFile string `yaml:"sentiment_file"`
	} `yaml:"data"`

	Notify struct {
		PerSecond float64 `yaml:"per_second" validate:"gte=0"`
		Burst     int     `yaml:"burst" validate:"gte=0"`
	} `yaml:"notify"`

	Server struct {
		Port            int           `yaml:"port" validate:"gte=0,lte=65535"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
}

// Default returns the configuration used when a key is absent from the file.
func Default() *Config {
	cfg := &Config{
		Scoring:    usecase.DefaultScoringConfig(),
		Indicators: indicators.DefaultConfig(),
		Planner:    usecase.DefaultPlannerConfig(),
		Ledger:     usecase.DefaultLedgerConfig(),
		Labeler:    usecase.DefaultLabelerConfig(),
		Backtest:   usecase.DefaultBacktestConfig(),
		Runner:     usecase.DefaultPipelineConfig(),
	}
	cfg.Logging.Level = "info"
	cfg.Storage.Driver = "json"
	cfg.Storage.DataDir = "data"
	cfg.Storage.SQLitePath = "bot.db"
	cfg.Data.HistoryDir = "data/history"
	cfg.Data.DataRawFile = "data_raw.json"
	cfg.Notify.PerSecond = 1
	cfg.Notify.Burst = 3
	cfg.Server.Port = 8080
	cfg.Server.ShutdownTimeout = 5 * time.Second
	return cfg
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, Validate(cfg)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := Decode(f, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return cfg, Validate(cfg)
}

// Decode overlays YAML from r onto cfg.
func Decode(r io.Reader, cfg *Config) error {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LedgerPath, HistoryPath and SignalsPath resolve the JSON store files.
func (c *Config) LedgerPath() string {
	return c.dataFile(c.Storage.LedgerFile, "positions.json")
}

func (c *Config) HistoryPath() string {
	return c.dataFile(c.Storage.HistoryFile, "history.json")
}

func (c *Config) SignalsPath() string {
	return c.dataFile(c.Storage.SignalsFile, "signals.json")
}

func (c *Config) dataFile(name, fallback string) string {
	if name == "" {
		name = fallback
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Storage.DataDir, name)
}
