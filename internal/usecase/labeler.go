package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/crypto_signal_bot/internal/domain"
)

const defaultBarInterval = 4 * time.Hour

type LabelerConfig struct {
	Method   ResolveMethod `yaml:"method" validate:"oneof=wick close"`
	Lookback time.Duration `yaml:"lookback" validate:"gt=0"`
	// MaxAge closes positions as expired once they are this old. Zero disables expiry.
	MaxAge time.Duration `yaml:"max_age" validate:"gte=0"`
}

func DefaultLabelerConfig() LabelerConfig {
	return LabelerConfig{
		Method:   MethodWick,
		Lookback: 24 * time.Hour,
		MaxAge:   7 * 24 * time.Hour,
	}
}

// LabelReport summarises one labeler pass.
type LabelReport struct {
	Checked int                    `json:"checked"`
	Skipped int                    `json:"skipped"`
	Wins    int                    `json:"wins"`
	Losses  int                    `json:"losses"`
	Expired int                    `json:"expired"`
	Records []domain.HistoryRecord `json:"records"`
}

func (r LabelReport) Closed() int {
	return r.Wins + r.Losses + r.Expired
}

// Labeler closes open positions whose TP or SL was touched by bars printed
// since the position was created, and records each close in the history.
type Labeler struct {
	ledger   *Ledger
	candles  domain.CandleSource
	history  domain.HistoryStore
	notifier domain.Notifier
	cfg      LabelerConfig
	logger   *zap.Logger
	now      func() time.Time
}

func NewLabeler(
	ledger *Ledger,
	candles domain.CandleSource,
	history domain.HistoryStore,
	notifier domain.Notifier,
	cfg LabelerConfig,
	logger *zap.Logger,
) *Labeler {
	if cfg.Method == "" {
		cfg.Method = MethodWick
	}
	return &Labeler{
		ledger:   ledger,
		candles:  candles,
		history:  history,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      ledger.now,
	}
}

func (l *Labeler) Run(ctx context.Context) (LabelReport, error) {
	var report LabelReport

	for _, pos := range l.ledger.OpenPositions() {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++

		reason, closedAt, ok := l.evaluate(ctx, pos)
		if !ok {
			report.Skipped++
			continue
		}
		if reason == "" {
			continue
		}

		closed, ok := l.ledger.close(ctx, pos.Symbol, reason, closedAt)
		if !ok {
			report.Skipped++
			continue
		}

		rec := historyRecord(closed)
		report.Records = append(report.Records, rec)
		switch rec.Outcome {
		case domain.OutcomeWin:
			report.Wins++
		case domain.OutcomeLoss:
			report.Losses++
		default:
			report.Expired++
		}

		l.logger.Info("Position closed",
			zap.String("symbol", rec.Symbol),
			zap.String("reason", string(reason)),
			zap.Time("closed_at", rec.ClosedAt),
		)
		l.notify(ctx, domain.Event{
			Kind:     domain.EventPositionClosed,
			Symbol:   rec.Symbol,
			Message:  fmt.Sprintf("%s closed: %s", rec.Symbol, reason),
			Position: &closed,
			Record:   &rec,
			Time:     l.now().UTC(),
		})
	}

	if err := l.syncHistory(ctx); err != nil {
		l.logger.Error("Failed to persist history", zap.Error(err))
		l.ledger.metrics.ObservePersistError("history")
		return report, err
	}
	if len(report.Records) == 0 {
		return report, nil
	}

	l.notify(ctx, domain.Event{
		Kind: domain.EventLabelSummary,
		Message: fmt.Sprintf("labeled %d positions: %d tp, %d sl, %d expired",
			report.Closed(), report.Wins, report.Losses, report.Expired),
		Time: l.now().UTC(),
	})
	return report, nil
}

// evaluate decides whether pos should close. ok is false when no bars
// could be loaded for it; an empty reason means it stays open.
func (l *Labeler) evaluate(ctx context.Context, pos domain.Position) (domain.PositionStatus, time.Time, bool) {
	now := l.now().UTC()
	expired := l.cfg.MaxAge > 0 && now.Sub(pos.CreatedAt) >= l.cfg.MaxAge

	candles, err := l.candles.GetCandles(ctx, pos.Symbol)
	if err != nil || len(candles) == 0 {
		l.logger.Warn("No bars for open position", zap.String("symbol", pos.Symbol), zap.Error(err))
		if expired {
			return domain.StatusExpired, now, true
		}
		return "", time.Time{}, false
	}

	bars := BarsSince(RecentBars(candles, l.cfg.Lookback), pos.CreatedAt)
	res := Resolve(bars, pos.TP, pos.SL, l.cfg.Method)
	if res.Resolved() {
		return res.Hit, time.UnixMilli(res.Time).UTC(), true
	}
	if expired {
		return domain.StatusExpired, now, true
	}
	return "", time.Time{}, true
}

// syncHistory appends a record for every closed ledger position that the
// history does not hold yet, so a failed save is repaired on the next run.
func (l *Labeler) syncHistory(ctx context.Context) error {
	closed := l.ledger.Book().Closed
	if len(closed) == 0 {
		return nil
	}
	existing, err := l.history.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	seen := make(map[string]struct{}, len(existing))
	for _, rec := range existing {
		seen[rec.ID] = struct{}{}
	}
	var missing []domain.HistoryRecord
	for _, p := range closed {
		if _, ok := seen[p.ID]; ok || p.ClosedAt == nil {
			continue
		}
		seen[p.ID] = struct{}{}
		missing = append(missing, historyRecord(p))
	}
	if len(missing) == 0 {
		return nil
	}

	if err := l.history.Save(ctx, append(existing, missing...)); err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	return nil
}

func historyRecord(p domain.Position) domain.HistoryRecord {
	return domain.HistoryRecord{
		ID:        p.ID,
		Symbol:    p.Symbol,
		Entry:     p.Entry,
		TP:        p.TP,
		SL:        p.SL,
		CreatedAt: p.CreatedAt,
		ClosedAt:  *p.ClosedAt,
		Outcome:   domain.OutcomeFor(p.Status),
		Reason:    p.Status,
	}
}

func (l *Labeler) notify(ctx context.Context, event domain.Event) {
	if l.notifier == nil {
		return
	}
	if err := l.notifier.Notify(ctx, event); err != nil {
		l.logger.Warn("Notification failed", zap.String("kind", string(event.Kind)), zap.Error(err))
	}
}

// RecentBars keeps the trailing bars covering lookback. The bar interval is
// inferred from the last two timestamps, falling back to four hours.
func RecentBars(candles []domain.Candle, lookback time.Duration) []domain.Candle {
	if lookback <= 0 || len(candles) == 0 {
		return candles
	}
	n := int(math.Ceil(float64(lookback) / float64(InferInterval(candles))))
	if n < 1 {
		n = 1
	}
	if n >= len(candles) {
		return candles
	}
	return candles[len(candles)-n:]
}

func InferInterval(candles []domain.Candle) time.Duration {
	if len(candles) < 2 {
		return defaultBarInterval
	}
	diff := candles[len(candles)-1].Time - candles[len(candles)-2].Time
	if diff <= 0 {
		return defaultBarInterval
	}
	return time.Duration(diff) * time.Millisecond
}

// BarsSince drops bars that opened before t.
func BarsSince(candles []domain.Candle, t time.Time) []domain.Candle {
	cutoff := t.UnixMilli()
	for i, c := range candles {
		if c.Time >= cutoff {
			return candles[i:]
		}
	}
	return nil
}
