package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitos/crypto_signal_bot/internal/domain"
	"github.com/vitos/crypto_signal_bot/internal/infrastructure/storage"
	"github.com/vitos/crypto_signal_bot/internal/usecase"
)

func signalAt(symbol, strategy string, conf float64, at time.Time) domain.SignalRecord {
	return domain.SignalRecord{Signal: domain.Signal{
		ID: symbol + at.String(), Symbol: symbol, Strategy: strategy, Confidence: conf, CreatedAt: at,
	}}
}

func TestSignalSummary(t *testing.T) {
	since := t0.Add(-7 * 24 * time.Hour)
	records := []domain.SignalRecord{
		signalAt("BTCUSDT", "rsi+macd", 0.9, since.Add(-time.Second)), // outside the window
		signalAt("BTCUSDT", "rsi+macd", 0.8, since),
		signalAt("BTCUSDT", "ema", 0.6, t0.Add(-time.Hour)),
		signalAt("ETHUSDT", "rsi+macd", 0.7, t0.Add(-2*time.Hour)),
		signalAt("", "", 0.5, t0),
	}

	s := usecase.SignalSummary(records, since)

	assert.Equal(t, 4, s.Total)
	assert.InDelta(t, 0.65, s.AvgConfidence, 1e-9)
	require.Len(t, s.TopSymbols, 3)
	assert.Equal(t, "BTCUSDT", s.TopSymbols[0].Symbol)
	assert.Equal(t, 2, s.TopSymbols[0].Count)
	assert.InDelta(t, 0.7, s.TopSymbols[0].AvgConfidence, 1e-9)
	assert.Equal(t, "?", s.TopSymbols[1].Symbol)
	assert.Equal(t, "ETHUSDT", s.TopSymbols[2].Symbol)

	assert.Equal(t, []domain.StrategyCount{
		{Strategy: "rsi+macd", Count: 2},
		{Strategy: "N/A", Count: 1},
		{Strategy: "ema", Count: 1},
	}, s.TopStrategies)
}

func TestSignalSummary_CapsAtFive(t *testing.T) {
	var records []domain.SignalRecord
	for i, sym := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		for n := 0; n <= i; n++ {
			records = append(records, signalAt(sym, sym, 0.5, t0))
		}
	}

	s := usecase.SignalSummary(records, t0)

	assert.Equal(t, 28, s.Total)
	require.Len(t, s.TopSymbols, 5)
	assert.Equal(t, "G", s.TopSymbols[0].Symbol)
	assert.Equal(t, "C", s.TopSymbols[4].Symbol)
	require.Len(t, s.TopStrategies, 5)
	assert.Equal(t, 7, s.TopStrategies[0].Count)
}

func TestSignalSummary_Empty(t *testing.T) {
	s := usecase.SignalSummary(nil, t0)

	assert.Zero(t, s.Total)
	assert.Zero(t, s.AvgConfidence)
	assert.NotNil(t, s.TopSymbols)
	assert.NotNil(t, s.TopStrategies)
}

func TestLoadSignalSummary(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory([]domain.SignalRecord{
		signalAt("BTCUSDT", "rsi", 0.8, t0.Add(-24*time.Hour)),
		signalAt("ETHUSDT", "rsi", 0.6, t0.Add(-3*24*time.Hour)),
	})

	s, err := usecase.LoadSignalSummary(ctx, store, t0, 48*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Total)
	assert.Equal(t, t0.Add(-48*time.Hour), s.Since)

	s, err = usecase.LoadSignalSummary(ctx, store, t0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Total)
	assert.Equal(t, t0.Add(-usecase.DefaultReportWindow), s.Since)

	store.SetLoadErr(errors.New("corrupt"))
	_, err = usecase.LoadSignalSummary(ctx, store, t0, 0)
	assert.Error(t, err)
}
