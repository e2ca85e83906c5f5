package usecase

import (
	"math"

	"github.com/vitos/crypto_signal_bot/internal/domain"
)

// ScoringConfig holds the indicator weights. Indicators with an Enabled
// flag set to false are excluded from both the numerator and the weight sum.
type ScoringConfig struct {
	RSIWeight       float64 `yaml:"rsi_weight" validate:"gte=0"`
	MACDWeight      float64 `yaml:"macd_weight" validate:"gte=0"`
	EMAWeight       float64 `yaml:"ema_weight" validate:"gte=0"`
	BBWeight        float64 `yaml:"bb_weight" validate:"gte=0"`
	StochRSIWeight  float64 `yaml:"stochrsi_weight" validate:"gte=0"`
	StochRSIEnabled bool    `yaml:"stochrsi_enabled"`
	ADXWeight       float64 `yaml:"adx_weight" validate:"gte=0"`
	ADXEnabled      bool    `yaml:"adx_enabled"`
	ATRWeight       float64 `yaml:"atr_weight" validate:"gte=0"`
	ATREnabled      bool    `yaml:"atr_enabled"`
	CCIWeight       float64 `yaml:"cci_weight" validate:"gte=0"`
	CCIEnabled      bool    `yaml:"cci_enabled"`
	TechWeight      float64 `yaml:"tech_weight" validate:"gte=0"`
	SentWeight      float64 `yaml:"sent_weight" validate:"gte=0"`
}

func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		RSIWeight:       1.0,
		MACDWeight:      1.0,
		EMAWeight:       1.0,
		BBWeight:        0.7,
		StochRSIWeight:  0.8,
		StochRSIEnabled: true,
		ADXWeight:       0.8,
		ADXEnabled:      true,
		ATRWeight:       0.0,
		ATREnabled:      false,
		CCIWeight:       0.5,
		CCIEnabled:      true,
		TechWeight:      1.5,
		SentWeight:      1.0,
	}
}

// Scorer turns an indicator snapshot into a composite score.
type Scorer struct {
	cfg ScoringConfig
}

func NewScorer(cfg ScoringConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

func (s *Scorer) Config() ScoringConfig {
	return s.cfg
}

type component struct {
	name    string
	weight  float64
	enabled bool
	eval    func(domain.Snapshot) (float64, bool)
}

func (s *Scorer) components() []component {
	c := s.cfg
	return []component{
		{"rsi", c.RSIWeight, true, rsiScore},
		{"macd", c.MACDWeight, true, macdScore},
		{"ema", c.EMAWeight, true, emaScore},
		{"bb", c.BBWeight, true, bollingerScore},
		{"stochrsi", c.StochRSIWeight, c.StochRSIEnabled, stochScore},
		{"adx", c.ADXWeight, c.ADXEnabled, adxScore},
		{"atr", c.ATRWeight, c.ATREnabled, atrScore},
		{"cci", c.CCIWeight, c.CCIEnabled, cciScore},
	}
}

// Score never panics. Components whose inputs are missing or non-finite
// contribute the neutral 0.5 and are listed in Score.Defaulted.
func (s *Scorer) Score(snap domain.Snapshot) domain.Score {
	parts := make(map[string]float64)
	var defaulted []string
	var num, den float64
	active := 0

	for _, c := range s.components() {
		w := c.weight
		if !c.enabled || w <= 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			continue
		}
		active++
		v, ok := c.eval(snap)
		if !ok {
			v = 0.5
			defaulted = append(defaulted, c.name)
		}
		v = clamp01(v)
		parts[c.name] = v
		num += v * w
		den += w
	}

	tech := 0.0
	if den > 0 {
		tech = clamp01(num / den)
	}

	sent, sentOK := sentimentScore(snap)

	wt := nonNegative(s.cfg.TechWeight)
	ws := nonNegative(s.cfg.SentWeight)
	mix := 0.5
	if wt+ws > 0 {
		mix = clamp01((tech*wt + sent*ws) / (wt + ws))
	}

	status := domain.ScoreOK
	switch {
	case active > 0 && len(defaulted) == active && !sentOK:
		status = domain.ScoreNeutral
	case len(defaulted) > 0:
		status = domain.ScoreDegraded
	}

	return domain.Score{
		Tech:      tech,
		Sent:      sent,
		Mix:       mix,
		Status:    status,
		Defaulted: defaulted,
		Parts:     parts,
	}
}

// ScoreRaw scores loosely typed input. Entries that could not be read as
// numbers are reported as defaulted and force a degraded status.
func (s *Scorer) ScoreRaw(raw map[string]any) domain.Score {
	snap, dropped := domain.ParseSnapshot(raw)
	score := s.Score(snap)
	if len(dropped) > 0 {
		score.Defaulted = append(score.Defaulted, dropped...)
		if score.Status == domain.ScoreOK {
			score.Status = domain.ScoreDegraded
		}
	}
	return score
}

// Pick returns the named score component, "tech" or "mix".
func Pick(score domain.Score, field string) float64 {
	if field == "tech" {
		return score.Tech
	}
	return score.Mix
}

func rsiScore(s domain.Snapshot) (float64, bool) {
	rsi, ok := s.Get(domain.IndRSI)
	if !ok {
		return 0, false
	}
	return clamp01((rsi - 30) / 40), true
}

func macdScore(s domain.Snapshot) (float64, bool) {
	hist, ok1 := s.Get(domain.IndMACDHist)
	price, ok2 := s.Get(domain.IndClose)
	if !ok1 || !ok2 || price == 0 {
		return 0, false
	}
	return squash(hist / math.Abs(price) * 100), true
}

func emaScore(s domain.Snapshot) (float64, bool) {
	fast, ok1 := s.Get(domain.IndEMA20)
	slow, ok2 := s.Get(domain.IndEMA50)
	if !ok1 || !ok2 || slow == 0 {
		return 0, false
	}
	return squash((fast - slow) / math.Abs(slow) * 100), true
}

func bollingerScore(s domain.Snapshot) (float64, bool) {
	price, ok1 := s.Get(domain.IndClose)
	mid, ok2 := s.Get(domain.IndBBMid)
	high, ok3 := s.Get(domain.IndBBHigh)
	if !ok1 || !ok2 || !ok3 {
		return 0, false
	}
	width := high - mid
	if width <= 0 {
		return 0, false
	}
	return squash((price - mid) / width), true
}

func stochScore(s domain.Snapshot) (float64, bool) {
	var sum float64
	n := 0
	for _, key := range []string{domain.IndStochK, domain.IndStochD} {
		v, ok := s.Get(key)
		if !ok {
			continue
		}
		if v > 1 {
			v /= 100
		}
		sum += clamp01(v)
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func adxScore(s domain.Snapshot) (float64, bool) {
	adx, ok1 := s.Get(domain.IndADX)
	plus, ok2 := s.Get(domain.IndPlusDI)
	minus, ok3 := s.Get(domain.IndMinusDI)
	if !ok1 || !ok2 || !ok3 {
		return 0, false
	}
	dir := 0.0
	if total := plus + minus; total > 0 {
		dir = (plus - minus) / total
	}
	strength := clamp01(adx / 50)
	return 0.5 + 0.5*dir*strength, true
}

// atrScore peaks at the middle of the 1%..5% relative volatility band.
func atrScore(s domain.Snapshot) (float64, bool) {
	rel, ok := s.Get(domain.IndATRRel)
	if !ok || rel < 0 {
		return 0, false
	}
	z := clamp01((rel - 0.01) / 0.04)
	return 1 - math.Abs(z-0.5)*2, true
}

func cciScore(s domain.Snapshot) (float64, bool) {
	cci, ok := s.Get(domain.IndCCI)
	if !ok {
		return 0, false
	}
	return 1 - math.Min(1, math.Abs(cci)/200), true
}

// sentimentScore averages the present sentiment readings. With none the
// result is exactly 0.5.
func sentimentScore(s domain.Snapshot) (float64, bool) {
	var sum float64
	n := 0
	for _, key := range []string{domain.IndNewsSent, domain.IndSocialSent} {
		if v, ok := s.Get(key); ok {
			sum += clamp01(v)
			n++
		}
	}
	if n == 0 {
		return 0.5, false
	}
	return clamp01(sum / float64(n)), true
}

func squash(x float64) float64 {
	return clamp01(0.5 + 0.5*math.Tanh(x))
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) {
		return 0.5
	}
	return math.Max(0, math.Min(1, x))
}

func nonNegative(x float64) float64 {
	if x < 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}
