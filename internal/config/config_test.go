package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitos/crypto_signal_bot/internal/config"
	"github.com/vitos/crypto_signal_bot/internal/usecase"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, config.Default(), cfg)
	assert.Equal(t, 6*time.Hour, cfg.Ledger.Cooldown)
	assert.Equal(t, 0.70, cfg.Runner.ScoreThreshold)
	assert.Equal(t, "tech", cfg.Backtest.ScoreField)
	assert.Equal(t, usecase.MethodWick, cfg.Labeler.Method)
}

func TestLoad_ShippedConfig(t *testing.T) {
	cfg, err := config.Load(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.Runner.Symbols)
	assert.Equal(t, usecase.DefaultScoringConfig(), cfg.Scoring)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
runner:
  symbols: [BTCUSDT, ETHUSDT]
  interval: 15m
ledger:
  cooldown: 2h
  change_threshold_pct: 0.5
backtest:
  score_field: mix
  method: close
storage:
  driver: sqlite
  data_dir: /var/lib/bot
  sqlite_path: /var/lib/bot/bot.db
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Runner.Symbols)
	assert.Equal(t, 15*time.Minute, cfg.Runner.Interval)
	assert.Equal(t, 2*time.Hour, cfg.Ledger.Cooldown)
	assert.Equal(t, 0.5, cfg.Ledger.ChangeThresholdPct)
	assert.Equal(t, "mix", cfg.Backtest.ScoreField)
	assert.Equal(t, usecase.MethodClose, cfg.Backtest.Method)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)

	// Untouched keys keep their defaults.
	assert.Equal(t, 0.70, cfg.Runner.ScoreThreshold)
	assert.Equal(t, 200, cfg.Backtest.MaxTrades)
	assert.Equal(t, "/var/lib/bot/positions.json", cfg.LedgerPath())
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown field", "runner:\n  symbol: BTCUSDT\n", "symbol"},
		{"negative weight", "scoring:\n  rsi_weight: -1\n", "RSIWeight"},
		{"threshold above one", "runner:\n  score_threshold: 1.5\n", "ScoreThreshold"},
		{"bad score field", "backtest:\n  score_field: sent\n", "ScoreField"},
		{"bad method", "labeler:\n  method: midpoint\n", "Method"},
		{"slow ema not slower", "indicators:\n  ema_fast: 50\n  ema_slow: 20\n", "EMASlow"},
		{"unknown driver", "storage:\n  driver: postgres\n", "Driver"},
		{"malformed yaml", "runner: [\n", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.want), err.Error())
		})
	}
}

func TestStorePaths(t *testing.T) {
	cfg := config.Default()

	assert.Equal(t, filepath.Join("data", "positions.json"), cfg.LedgerPath())
	assert.Equal(t, filepath.Join("data", "history.json"), cfg.HistoryPath())
	assert.Equal(t, filepath.Join("data", "signals.json"), cfg.SignalsPath())

	cfg.Storage.HistoryFile = "/tmp/h.json"
	assert.Equal(t, "/tmp/h.json", cfg.HistoryPath())
}
