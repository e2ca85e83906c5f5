package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vitos/crypto_signal_bot/internal/domain"
)

// MockNotifier records every event it receives.
type MockNotifier struct {
	mu     sync.Mutex
	Events []domain.Event
	Err    error
}

func (m *MockNotifier) Notify(ctx context.Context, event domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return m.Err
}

func (m *MockNotifier) Kinds() []domain.EventKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.EventKind, len(m.Events))
	for i, e := range m.Events {
		out[i] = e.Kind
	}
	return out
}

// MockCandles serves fixed bars per symbol.
type MockCandles map[string][]domain.Candle

func (m MockCandles) GetCandles(ctx context.Context, symbol string) ([]domain.Candle, error) {
	c, ok := m[symbol]
	if !ok {
		return nil, fmt.Errorf("%s: %w", symbol, domain.ErrNoBars)
	}
	return c, nil
}

// MockSentiment serves a fixed reading for every symbol.
type MockSentiment struct {
	Reading domain.SentimentReading
}

func (m MockSentiment) GetSentiment(ctx context.Context, symbol string) (domain.SentimentReading, error) {
	return m.Reading, nil
}

// MockBuilder returns a fixed snapshot with close set to the last bar.
type MockBuilder struct {
	Snap domain.Snapshot
	Err  error
}

func (m MockBuilder) Compute(candles []domain.Candle) (domain.Snapshot, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	out := domain.Snapshot{}
	for k, v := range m.Snap {
		out[k] = v
	}
	if len(candles) > 0 {
		out[domain.IndClose] = candles[len(candles)-1].Close
	}
	return out, nil
}

// bullish scores far above 0.7 and leaves the Bollinger and ATR readings
// out so the planner uses 1% of price as volatility.
func bullish() domain.Snapshot {
	return domain.Snapshot{
		domain.IndRSI:      70,
		domain.IndMACDHist: 5,
		domain.IndEMA20:    105,
		domain.IndEMA50:    100,
		domain.IndStochK:   90,
		domain.IndStochD:   90,
		domain.IndADX:      50,
		domain.IndPlusDI:   40,
		domain.IndMinusDI:  0,
		domain.IndCCI:      0,
	}
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *clock {
	return &clock{now: t}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// flatBars returns n bars at price p, one hour apart, starting at start.
func flatBars(start time.Time, n int, p float64) []domain.Candle {
	out := make([]domain.Candle, n)
	for i := range out {
		out[i] = domain.Candle{
			Time:  start.Add(time.Duration(i) * time.Hour).UnixMilli(),
			Open:  p,
			High:  p,
			Low:   p,
			Close: p,
		}
	}
	return out
}
