package usecase

import (
	"math"

	"github.com/vitos/crypto_signal_bot/internal/domain"
)

// ResolveMethod selects which bar prices are compared against TP/SL.
type ResolveMethod string

const (
	// MethodWick compares high against TP and low against SL.
	MethodWick ResolveMethod = "wick"
	// MethodClose compares the bar close against both levels.
	MethodClose ResolveMethod = "close"
)

// Resolution is the outcome of scanning bars for a TP/SL touch.
// Hit is empty when neither level was touched.
type Resolution struct {
	Hit     domain.PositionStatus
	Index   int
	Time    int64
	SameBar bool
}

func (r Resolution) Resolved() bool {
	return r.Hit == domain.StatusHitTP || r.Hit == domain.StatusHitSL
}

// Resolve scans candles in order for a long position with the given
// levels. The first bar touching either level decides. When one bar
// touches both, the level closer to that bar's open wins; equal distance
// goes to SL. The labeler and the backtest both use this rule.
func Resolve(candles []domain.Candle, tp, sl float64, method ResolveMethod) Resolution {
	for i, c := range candles {
		hitTP, hitSL := touches(c, tp, sl, method)
		switch {
		case hitTP && hitSL:
			hit := domain.StatusHitSL
			if math.Abs(tp-c.Open) < math.Abs(c.Open-sl) {
				hit = domain.StatusHitTP
			}
			return Resolution{Hit: hit, Index: i, Time: c.Time, SameBar: true}
		case hitTP:
			return Resolution{Hit: domain.StatusHitTP, Index: i, Time: c.Time}
		case hitSL:
			return Resolution{Hit: domain.StatusHitSL, Index: i, Time: c.Time}
		}
	}
	return Resolution{Index: -1}
}

func touches(c domain.Candle, tp, sl float64, method ResolveMethod) (bool, bool) {
	if method == MethodClose {
		return c.Close >= tp, c.Close <= sl
	}
	return c.High >= tp, c.Low <= sl
}

// RMultiple scores a resolved trade in units of initial risk. A same-bar
// tie counts half: half the reward on TP, -0.5 on SL.
func RMultiple(entry, tp, sl float64, r Resolution) float64 {
	if !r.Resolved() {
		return 0
	}
	risk := math.Max(1e-9, math.Abs(entry-sl))
	unit := math.Abs(tp-entry) / risk
	switch {
	case r.Hit == domain.StatusHitTP && r.SameBar:
		return unit * 0.5
	case r.Hit == domain.StatusHitTP:
		return unit
	case r.SameBar:
		return -0.5
	default:
		return -1
	}
}
