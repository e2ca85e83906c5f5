package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/crypto_signal_bot/internal/domain"
)

// SnapshotBuilder computes indicator readings from the bars seen so far.
type SnapshotBuilder interface {
	Compute(candles []domain.Candle) (domain.Snapshot, error)
}

type BacktestConfig struct {
	MinBars        int           `yaml:"min_bars" validate:"gte=2"`
	ScoreThreshold float64       `yaml:"score_threshold" validate:"gte=0,lte=1"`
	ScoreField     string        `yaml:"score_field" validate:"oneof=tech mix"`
	MaxTrades      int           `yaml:"max_trades" validate:"gt=0"`
	MaxHoldBars    int           `yaml:"max_hold_bars" validate:"gt=0"`
	Method         ResolveMethod `yaml:"method" validate:"oneof=wick close"`
	ReportDir      string        `yaml:"report_dir"`
}

func DefaultBacktestConfig() BacktestConfig {
	return BacktestConfig{
		MinBars:        180,
		ScoreThreshold: 0.70,
		ScoreField:     "tech",
		MaxTrades:      200,
		MaxHoldBars:    60,
		Method:         MethodWick,
		ReportDir:      "reports",
	}
}

// Backtester replays bars through the scorer and planner and simulates
// each triggered trade with the shared TP/SL resolution rule.
type Backtester struct {
	builder SnapshotBuilder
	scorer  *Scorer
	planner *Planner
	cfg     BacktestConfig
	logger  *zap.Logger
	metrics Metrics
}

func NewBacktester(builder SnapshotBuilder, scorer *Scorer, planner *Planner, cfg BacktestConfig, logger *zap.Logger, metrics Metrics) *Backtester {
	if cfg.Method == "" {
		cfg.Method = MethodWick
	}
	return &Backtester{
		builder: builder,
		scorer:  scorer,
		planner: planner,
		cfg:     cfg,
		logger:  logger,
		metrics: orNop(metrics),
	}
}

// RunSymbol simulates one symbol. Fewer than MinBars bars is an error.
func (b *Backtester) RunSymbol(ctx context.Context, symbol string, candles []domain.Candle) (domain.SymbolReport, error) {
	if len(candles) < b.cfg.MinBars {
		return domain.SymbolReport{}, fmt.Errorf("%s: %d bars, need %d: %w", symbol, len(candles), b.cfg.MinBars, domain.ErrNoBars)
	}

	trades := []domain.BacktestTrade{}
	i := b.cfg.MinBars
	for i < len(candles)-2 && len(trades) < b.cfg.MaxTrades {
		if err := ctx.Err(); err != nil {
			return domain.SymbolReport{}, err
		}

		past := candles[:i]
		snap, err := b.builder.Compute(past)
		if err != nil {
			i++
			continue
		}
		score := Pick(b.scorer.Score(snap), b.cfg.ScoreField)
		if score < b.cfg.ScoreThreshold {
			i++
			continue
		}

		entry, tp, sl := b.levels(symbol, past[len(past)-1].Close, snap)
		future := candles[i:min(i+b.cfg.MaxHoldBars, len(candles))]
		res := Resolve(future, tp, sl, b.cfg.Method)

		trade := domain.BacktestTrade{
			Index:   i,
			Time:    candles[i-1].Time,
			Score:   round(score, 4),
			Entry:   entry,
			TP:      tp,
			SL:      sl,
			SameBar: res.SameBar,
		}
		switch res.Hit {
		case domain.StatusHitTP:
			trade.Result = domain.ResultWin
			trade.Bars = res.Index + 1
		case domain.StatusHitSL:
			trade.Result = domain.ResultLoss
			trade.Bars = res.Index + 1
		default:
			trade.Result = domain.ResultTimeout
			trade.Bars = len(future)
		}
		trade.RMult = round(RMultiple(entry, tp, sl, res), 3)

		trades = append(trades, trade)
		b.metrics.ObserveBacktestTrade(string(trade.Result), trade.RMult)
		i += max(trade.Bars, 1)
	}

	return domain.SymbolReport{Summary: Summarize(trades), Trades: trades}, nil
}

// Run backtests every symbol available from source. Symbols without
// enough bars are recorded in Skipped.
func (b *Backtester) Run(ctx context.Context, symbols []string, source domain.CandleSource, now time.Time) (domain.BacktestReport, error) {
	report := domain.BacktestReport{
		CreatedAt: now.UTC(),
		Params: domain.BacktestParams{
			MinBars:        b.cfg.MinBars,
			ScoreThreshold: b.cfg.ScoreThreshold,
			ScoreField:     b.cfg.ScoreField,
			MaxTrades:      b.cfg.MaxTrades,
			MaxHoldBars:    b.cfg.MaxHoldBars,
			UniverseSize:   len(symbols),
		},
		Symbols: make(map[string]domain.SymbolReport),
		Skipped: make(map[string]string),
	}

	var all []domain.BacktestTrade
	for _, sym := range symbols {
		candles, err := source.GetCandles(ctx, sym)
		if err == nil {
			var sr domain.SymbolReport
			sr, err = b.RunSymbol(ctx, sym, candles)
			if err == nil {
				report.Symbols[sym] = sr
				all = append(all, sr.Trades...)
				b.logger.Info("Backtest symbol done",
					zap.String("symbol", sym),
					zap.Int("n", sr.Summary.N),
					zap.Float64("win_rate", sr.Summary.WinRate),
					zap.Float64("r_total", sr.Summary.RTotal),
				)
				continue
			}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return report, ctxErr
		}
		b.logger.Warn("Backtest symbol skipped", zap.String("symbol", sym), zap.Error(err))
		report.Skipped[sym] = err.Error()
	}

	s := Summarize(all)
	report.Portfolio = domain.PortfolioSummary{
		Trades:  s.N,
		Wins:    s.Wins,
		Losses:  s.Losses,
		WinRate: s.WinRate,
		RTotal:  s.RTotal,
		RAvg:    s.RAvg,
	}
	return report, nil
}

// levels plans the trade from the snapshot, falling back to fixed
// percentages around the last close.
func (b *Backtester) levels(symbol string, lastClose float64, snap domain.Snapshot) (entry, tp, sl float64) {
	if sig, ok := b.planner.Plan(symbol, snap, domain.Score{}, time.Time{}); ok {
		return sig.Entry, sig.TP, sig.SL
	}
	tp, sl = b.planner.Fallback(lastClose)
	return lastClose, tp, sl
}

// Summarize aggregates trades. WinRate is a percentage of all trades.
func Summarize(trades []domain.BacktestTrade) domain.SymbolSummary {
	s := domain.SymbolSummary{N: len(trades)}
	var r float64
	for _, t := range trades {
		switch t.Result {
		case domain.ResultWin:
			s.Wins++
		case domain.ResultLoss:
			s.Losses++
		default:
			s.Timeouts++
		}
		r += t.RMult
	}
	s.RTotal = round(r, 3)
	if s.N > 0 {
		s.WinRate = round(100*float64(s.Wins)/float64(s.N), 2)
		s.RAvg = round(r/float64(s.N), 3)
	}
	return s
}

// ReportFileName names a report by its UTC creation minute.
func ReportFileName(t time.Time) string {
	return fmt.Sprintf("backtest_%s.json", t.UTC().Format("20060102_1504"))
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
