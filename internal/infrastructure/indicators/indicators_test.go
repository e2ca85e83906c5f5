package indicators_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitos/crypto_signal_bot/internal/domain"
	"github.com/vitos/crypto_signal_bot/internal/infrastructure/indicators"
)

func series(n int, price func(i int) float64) []domain.Candle {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.Candle, n)
	for i := range out {
		p := price(i)
		out[i] = domain.Candle{
			Time:   start.Add(time.Duration(i) * 4 * time.Hour).UnixMilli(),
			Open:   p,
			High:   p * 1.01,
			Low:    p * 0.99,
			Close:  p,
			Volume: 1000,
		}
	}
	return out
}

func TestDefaultConfig_MinBars(t *testing.T) {
	assert.Equal(t, 51, indicators.DefaultConfig().MinBars())
}

func TestBuilder_ComputeSine(t *testing.T) {
	b := indicators.NewBuilder(indicators.DefaultConfig())
	candles := series(200, func(i int) float64 { return 100 + 10*math.Sin(float64(i)/7) })

	snap, err := b.Compute(candles)
	require.NoError(t, err)

	for _, key := range []string{
		domain.IndClose, domain.IndRSI, domain.IndMACDHist, domain.IndEMA20, domain.IndEMA50,
		domain.IndBBMid, domain.IndBBHigh, domain.IndADX, domain.IndPlusDI, domain.IndMinusDI,
		domain.IndATRRel, domain.IndCCI,
	} {
		v, ok := snap.Get(key)
		require.True(t, ok, key)
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), key)
	}

	assert.Equal(t, candles[len(candles)-1].Close, snap[domain.IndClose])
	assert.InDelta(t, 50, snap[domain.IndRSI], 50)
	assert.Greater(t, snap[domain.IndBBHigh], snap[domain.IndBBMid])
	assert.Greater(t, snap[domain.IndATRRel], 0.0)
	for _, key := range []string{domain.IndStochK, domain.IndStochD} {
		if v, ok := snap.Get(key); ok {
			assert.InDelta(t, 50, v, 50, key)
		}
	}
}

func TestBuilder_ComputeUptrend(t *testing.T) {
	b := indicators.NewBuilder(indicators.DefaultConfig())
	candles := series(120, func(i int) float64 { return 100 + float64(i) })

	snap, err := b.Compute(candles)
	require.NoError(t, err)

	assert.Greater(t, snap[domain.IndRSI], 70.0)
	assert.Greater(t, snap[domain.IndEMA20], snap[domain.IndEMA50])
	assert.Greater(t, snap[domain.IndMACDHist], -1e-9)
	assert.Greater(t, snap[domain.IndPlusDI], snap[domain.IndMinusDI])
}

func TestBuilder_InsufficientBars(t *testing.T) {
	b := indicators.NewBuilder(indicators.DefaultConfig())

	_, err := b.Compute(series(50, func(int) float64 { return 100 }))

	assert.ErrorIs(t, err, indicators.ErrInsufficientBars)
}
