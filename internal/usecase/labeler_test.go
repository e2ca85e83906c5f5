package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vitos/crypto_signal_bot/internal/domain"
	"github.com/vitos/crypto_signal_bot/internal/infrastructure/storage"
	"github.com/vitos/crypto_signal_bot/internal/usecase"
)

type labelerFixture struct {
	clk      *clock
	ledger   *usecase.Ledger
	history  *storage.Memory[[]domain.HistoryRecord]
	notifier *MockNotifier
}

func newLabelerFixture(t *testing.T) *labelerFixture {
	t.Helper()
	clk := newClock(t0)
	return &labelerFixture{
		clk:      clk,
		ledger:   newTestLedger(t, storage.NewMemory(domain.Book{}), clk),
		history:  storage.NewMemory[[]domain.HistoryRecord](nil),
		notifier: &MockNotifier{},
	}
}

func (f *labelerFixture) labeler(candles domain.CandleSource, cfg usecase.LabelerConfig) *usecase.Labeler {
	return usecase.NewLabeler(f.ledger, candles, f.history, f.notifier, cfg, zap.NewNop())
}

func TestLabeler_ClosesOnStopLoss(t *testing.T) {
	f := newLabelerFixture(t)
	ctx := context.Background()
	require.True(t, f.ledger.Admit(ctx, btcSignal()).Accepted)

	// The bar before creation touches TP and must be ignored.
	bars := []domain.Candle{
		bar(t0.Add(-time.Hour).UnixMilli(), 100, 105, 99, 101),
		bar(t0.UnixMilli(), 101, 103, 99, 100),
		bar(t0.Add(time.Hour).UnixMilli(), 100, 101, 97.5, 98),
		bar(t0.Add(2*time.Hour).UnixMilli(), 98, 110, 97, 109),
	}
	f.clk.Advance(3 * time.Hour)

	report, err := f.labeler(MockCandles{"BTCUSDT": bars}, usecase.DefaultLabelerConfig()).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Checked)
	assert.Equal(t, 1, report.Losses)
	assert.Equal(t, 1, report.Closed())
	assert.Empty(t, f.ledger.Book().Open)

	records, err := f.history.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, "sig-1", rec.ID)
	assert.Equal(t, domain.OutcomeLoss, rec.Outcome)
	assert.Equal(t, domain.StatusHitSL, rec.Reason)
	assert.Equal(t, t0.Add(time.Hour), rec.ClosedAt)
	assert.Equal(t, t0, rec.CreatedAt)
	assert.Equal(t, 104.0, rec.TP)

	assert.Equal(t, []domain.EventKind{domain.EventPositionClosed, domain.EventLabelSummary}, f.notifier.Kinds())
}

func TestLabeler_LeavesUntouchedPositionsOpen(t *testing.T) {
	f := newLabelerFixture(t)
	ctx := context.Background()
	require.True(t, f.ledger.Admit(ctx, btcSignal()).Accepted)

	bars := flatBars(t0, 5, 100)
	report, err := f.labeler(MockCandles{"BTCUSDT": bars}, usecase.DefaultLabelerConfig()).Run(ctx)
	require.NoError(t, err)

	assert.Zero(t, report.Closed())
	assert.Len(t, f.ledger.Book().Open, 1)
	assert.Empty(t, f.notifier.Events)
}

func TestLabeler_ExpiresOldPositions(t *testing.T) {
	f := newLabelerFixture(t)
	ctx := context.Background()
	require.True(t, f.ledger.Admit(ctx, btcSignal()).Accepted)

	cfg := usecase.DefaultLabelerConfig()
	cfg.MaxAge = 48 * time.Hour
	f.clk.Advance(72 * time.Hour)

	report, err := f.labeler(MockCandles{"BTCUSDT": flatBars(t0, 72, 100)}, cfg).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Expired)
	book := f.ledger.Book()
	require.Len(t, book.Closed, 1)
	assert.Equal(t, domain.StatusExpired, book.Closed[0].Status)
	assert.Equal(t, t0.Add(72*time.Hour), *book.Closed[0].ClosedAt)

	records, err := f.history.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.OutcomeExpired, records[0].Outcome)
}

func TestLabeler_SkipsSymbolsWithoutBars(t *testing.T) {
	f := newLabelerFixture(t)
	ctx := context.Background()
	require.True(t, f.ledger.Admit(ctx, btcSignal()).Accepted)

	report, err := f.labeler(MockCandles{}, usecase.DefaultLabelerConfig()).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	assert.Len(t, f.ledger.Book().Open, 1)
}

func TestLabeler_HistoryFailureRecoversOnNextRun(t *testing.T) {
	f := newLabelerFixture(t)
	ctx := context.Background()
	require.True(t, f.ledger.Admit(ctx, btcSignal()).Accepted)
	f.history.SetSaveErr(errors.New("read-only"))

	bars := []domain.Candle{bar(t0.UnixMilli(), 100, 105, 99, 104)}
	labeler := f.labeler(MockCandles{"BTCUSDT": bars}, usecase.DefaultLabelerConfig())

	report, err := labeler.Run(ctx)
	assert.Error(t, err)
	assert.Equal(t, 1, report.Wins)
	assert.Empty(t, f.ledger.Book().Open)
	assert.Equal(t, 0, f.history.Saves())

	f.history.SetSaveErr(nil)
	report, err = labeler.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Closed())

	records, err := f.history.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "sig-1", records[0].ID)
	assert.Equal(t, domain.OutcomeWin, records[0].Outcome)

	// Nothing left to backfill.
	_, err = labeler.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.history.Saves())
}

func TestRecentBars(t *testing.T) {
	bars := flatBars(t0, 48, 100)

	assert.Len(t, usecase.RecentBars(bars, 24*time.Hour), 24)
	assert.Len(t, usecase.RecentBars(bars, 90*time.Minute), 2)
	assert.Len(t, usecase.RecentBars(bars, 0), 48)
	assert.Len(t, usecase.RecentBars(bars, 1000*time.Hour), 48)
	assert.Equal(t, time.Hour, usecase.InferInterval(bars))
	assert.Equal(t, 4*time.Hour, usecase.InferInterval(bars[:1]))
}

func TestBarsSince(t *testing.T) {
	bars := flatBars(t0, 5, 100)

	assert.Len(t, usecase.BarsSince(bars, t0.Add(2*time.Hour)), 3)
	assert.Len(t, usecase.BarsSince(bars, t0.Add(90*time.Minute)), 3)
	assert.Empty(t, usecase.BarsSince(bars, t0.Add(10*time.Hour)))
}
