package usecase

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vitos/crypto_signal_bot/internal/domain"
)

type PlannerConfig struct {
	RR            float64 `yaml:"rr" validate:"gt=0"`
	FallbackTPPct float64 `yaml:"fallback_tp_pct" validate:"gt=0"`
	FallbackSLPct float64 `yaml:"fallback_sl_pct" validate:"gt=0,lt=1"`
}

func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		RR:            2.0,
		FallbackTPPct: 0.02,
		FallbackSLPct: 0.01,
	}
}

// Planner derives entry, take-profit and stop-loss levels for a long
// signal from the latest indicator readings.
type Planner struct {
	cfg     PlannerConfig
	scoring ScoringConfig
}

func NewPlanner(cfg PlannerConfig, scoring ScoringConfig) *Planner {
	if cfg.RR <= 0 {
		cfg.RR = 2.0
	}
	return &Planner{cfg: cfg, scoring: scoring}
}

// Plan returns false when the snapshot has no usable close.
func (p *Planner) Plan(symbol string, snap domain.Snapshot, score domain.Score, now time.Time) (domain.Signal, bool) {
	entry, ok := snap.Get(domain.IndClose)
	if !ok || entry <= 0 {
		return domain.Signal{}, false
	}

	vol := p.volatility(snap, entry)
	sl := entry - vol
	tp := entry + p.cfg.RR*vol
	rr := p.cfg.RR
	if sl <= 0 {
		tp, sl = p.Fallback(entry)
		rr = (tp - entry) / (entry - sl)
	}

	return domain.Signal{
		ID:         uuid.NewString(),
		Symbol:     strings.ToUpper(symbol),
		Entry:      entry,
		TP:         tp,
		SL:         sl,
		RR:         rr,
		Confidence: score.Mix,
		Strategy:   p.strategy(),
		CreatedAt:  now.UTC(),
	}, true
}

// Fallback levels used when no volatility-based plan is available.
func (p *Planner) Fallback(entry float64) (tp, sl float64) {
	return entry * (1 + p.cfg.FallbackTPPct), entry * (1 - p.cfg.FallbackSLPct)
}

// volatility prefers ATR when it is enabled, then a quarter of the
// Bollinger band width, then 1% of price.
func (p *Planner) volatility(snap domain.Snapshot, entry float64) float64 {
	if p.scoring.ATREnabled {
		if rel, ok := snap.Get(domain.IndATRRel); ok && rel > 0 {
			return rel * entry
		}
	}
	mid, ok1 := snap.Get(domain.IndBBMid)
	high, ok2 := snap.Get(domain.IndBBHigh)
	if ok1 && ok2 && high > mid {
		return 2 * (high - mid) / 4
	}
	return entry * 0.01
}

func (p *Planner) strategy() string {
	parts := []string{"rsi", "macd", "ema", "bb"}
	if p.scoring.StochRSIEnabled {
		parts = append(parts, "stochrsi")
	}
	if p.scoring.ADXEnabled {
		parts = append(parts, "adx")
	}
	if p.scoring.ATREnabled {
		parts = append(parts, "atr")
	}
	if p.scoring.CCIEnabled {
		parts = append(parts, "cci")
	}
	return strings.Join(parts, "+")
}
