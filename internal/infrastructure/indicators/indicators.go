package indicators

import (
	"errors"
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"github.com/vitos/crypto_signal_bot/internal/domain"
)

// ErrInsufficientBars is returned when there are too few bars to compute
// the slowest indicator.
var ErrInsufficientBars = errors.New("insufficient bars")

type Config struct {
	RSIPeriod      int     `yaml:"rsi_period" validate:"gt=1"`
	MACDFast       int     `yaml:"macd_fast" validate:"gt=1"`
	MACDSlow       int     `yaml:"macd_slow" validate:"gtfield=MACDFast"`
	MACDSignal     int     `yaml:"macd_signal" validate:"gt=1"`
	EMAFast        int     `yaml:"ema_fast" validate:"gt=1"`
	EMASlow        int     `yaml:"ema_slow" validate:"gtfield=EMAFast"`
	BBPeriod       int     `yaml:"bb_period" validate:"gt=1"`
	BBDev          float64 `yaml:"bb_dev" validate:"gt=0"`
	StochRSIPeriod int     `yaml:"stochrsi_period" validate:"gt=1"`
	StochK         int     `yaml:"stoch_k" validate:"gt=0"`
	StochD         int     `yaml:"stoch_d" validate:"gt=0"`
	ADXPeriod      int     `yaml:"adx_period" validate:"gt=1"`
	ATRPeriod      int     `yaml:"atr_period" validate:"gt=1"`
	CCIPeriod      int     `yaml:"cci_period" validate:"gt=1"`
}

func DefaultConfig() Config {
	return Config{
		RSIPeriod:      14,
		MACDFast:       12,
		MACDSlow:       26,
		MACDSignal:     9,
		EMAFast:        20,
		EMASlow:        50,
		BBPeriod:       20,
		BBDev:          2.0,
		StochRSIPeriod: 14,
		StochK:         3,
		StochD:         3,
		ADXPeriod:      14,
		ATRPeriod:      14,
		CCIPeriod:      20,
	}
}

// MinBars is the number of bars needed before every indicator is defined.
func (c Config) MinBars() int {
	n := c.EMASlow
	n = max(n, c.MACDSlow+c.MACDSignal)
	n = max(n, 2*c.ADXPeriod+1)
	n = max(n, c.StochRSIPeriod*2+c.StochK+c.StochD)
	n = max(n, c.BBPeriod, c.CCIPeriod, c.ATRPeriod+1, c.RSIPeriod+1)
	return n + 1
}

// Builder computes indicator snapshots with go-talib.
type Builder struct {
	cfg Config
}

func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg}
}

// Compute returns the readings at the last bar. Non-finite readings are
// left out of the snapshot so the scorer treats them as missing.
func (b *Builder) Compute(candles []domain.Candle) (domain.Snapshot, error) {
	if need := b.cfg.MinBars(); len(candles) < need {
		return nil, fmt.Errorf("%d bars, need %d: %w", len(candles), need, ErrInsufficientBars)
	}
	c := b.cfg
	highs, lows, closes := domain.HLC(candles)
	price := closes[len(closes)-1]

	snap := domain.Snapshot{}
	put := func(key string, v float64) {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			snap[key] = v
		}
	}

	put(domain.IndClose, price)
	put(domain.IndRSI, last(talib.Rsi(closes, c.RSIPeriod)))

	_, _, hist := talib.Macd(closes, c.MACDFast, c.MACDSlow, c.MACDSignal)
	put(domain.IndMACDHist, last(hist))

	put(domain.IndEMA20, last(talib.Ema(closes, c.EMAFast)))
	put(domain.IndEMA50, last(talib.Ema(closes, c.EMASlow)))

	upper, middle, _ := talib.BBands(closes, c.BBPeriod, c.BBDev, c.BBDev, talib.SMA)
	put(domain.IndBBMid, last(middle))
	put(domain.IndBBHigh, last(upper))

	k, d := talib.StochRsi(closes, c.StochRSIPeriod, c.StochK, c.StochD, talib.SMA)
	put(domain.IndStochK, last(k))
	put(domain.IndStochD, last(d))

	put(domain.IndADX, last(talib.Adx(highs, lows, closes, c.ADXPeriod)))
	put(domain.IndPlusDI, last(talib.PlusDI(highs, lows, closes, c.ADXPeriod)))
	put(domain.IndMinusDI, last(talib.MinusDI(highs, lows, closes, c.ADXPeriod)))

	if price > 0 {
		put(domain.IndATRRel, last(talib.Atr(highs, lows, closes, c.ATRPeriod))/price)
	}
	put(domain.IndCCI, last(talib.Cci(highs, lows, closes, c.CCIPeriod)))

	return snap, nil
}

func last(series []float64) float64 {
	if len(series) == 0 {
		return math.NaN()
	}
	return series[len(series)-1]
}
