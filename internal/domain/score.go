package domain

import "math"

// Indicator names used as Snapshot keys.
const (
	IndClose      = "close"
	IndRSI        = "rsi"
	IndMACDHist   = "macd_hist"
	IndEMA20      = "ema20"
	IndEMA50      = "ema50"
	IndBBMid      = "bb_mid"
	IndBBHigh     = "bb_high"
	IndStochK     = "stoch_k"
	IndStochD     = "stoch_d"
	IndADX        = "adx"
	IndPlusDI     = "plus_di"
	IndMinusDI    = "minus_di"
	IndATRRel     = "atr_rel"
	IndCCI        = "cci"
	IndNewsSent   = "news_sentiment"
	IndSocialSent = "social_sentiment"
)

// Snapshot holds scalar indicator readings for one symbol at one time.
type Snapshot map[string]float64

// Get returns the reading for key if it is present and finite.
func (s Snapshot) Get(key string) (float64, bool) {
	v, ok := s[key]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ParseSnapshot builds a Snapshot from loosely typed input, dropping
// entries that are not finite numbers. The dropped keys are returned.
func ParseSnapshot(raw map[string]any) (Snapshot, []string) {
	snap := make(Snapshot, len(raw))
	var dropped []string
	for k, v := range raw {
		if v == nil {
			continue
		}
		f, ok := ToFloat(v)
		if !ok {
			dropped = append(dropped, k)
			continue
		}
		snap[k] = f
	}
	return snap, dropped
}

type ScoreStatus string

const (
	// ScoreOK means every enabled reading was present.
	ScoreOK ScoreStatus = "ok"
	// ScoreDegraded means some readings fell back to neutral defaults.
	ScoreDegraded ScoreStatus = "degraded"
	// ScoreNeutral means nothing usable was present.
	ScoreNeutral ScoreStatus = "neutral"
)

// Score is the scorer output. Every component is within [0,1].
type Score struct {
	Tech      float64            `json:"tech"`
	Sent      float64            `json:"sent"`
	Mix       float64            `json:"mix"`
	Status    ScoreStatus        `json:"status"`
	Defaulted []string           `json:"defaulted,omitempty"`
	Parts     map[string]float64 `json:"parts,omitempty"`
}

// NeutralScore is returned when no reading could be used.
func NeutralScore() Score {
	return Score{Tech: 0.5, Sent: 0.5, Mix: 0.5, Status: ScoreNeutral}
}
