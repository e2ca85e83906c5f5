package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Candle is one OHLC bar. Time is the bar open in Unix milliseconds.
type Candle struct {
	Time   int64   `json:"t"`
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v,omitempty"`
}

// OpenTime returns the bar timestamp as a UTC time.
func (c Candle) OpenTime() time.Time {
	return time.UnixMilli(c.Time).UTC()
}

// UnmarshalJSON accepts [ts,o,h,l,c,(v)] arrays as well as objects keyed
// either t/o/h/l/c or time/open/high/low/close.
func (c *Candle) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var row []any
		if err := json.Unmarshal(data, &row); err != nil {
			return err
		}
		return c.fromRow(row)
	}

	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	return c.fromObject(obj)
}

func (c *Candle) fromRow(row []any) error {
	if len(row) < 5 {
		return fmt.Errorf("candle row has %d fields, want at least 5", len(row))
	}
	vals := make([]float64, len(row))
	for i, v := range row {
		f, ok := ToFloat(v)
		if !ok {
			return fmt.Errorf("candle field %d: not a number: %v", i, v)
		}
		vals[i] = f
	}
	c.Time = int64(vals[0])
	c.Open, c.High, c.Low, c.Close = vals[1], vals[2], vals[3], vals[4]
	if len(vals) > 5 {
		c.Volume = vals[5]
	}
	return nil
}

func (c *Candle) fromObject(obj map[string]any) error {
	pick := func(keys ...string) (float64, bool) {
		for _, k := range keys {
			if v, ok := obj[k]; ok {
				if f, ok := ToFloat(v); ok {
					return f, true
				}
			}
		}
		return 0, false
	}

	var ok bool
	if c.Close, ok = pick("c", "close"); !ok {
		return errors.New("candle object has no close")
	}
	c.Open, _ = pick("o", "open")
	c.High, _ = pick("h", "high")
	c.Low, _ = pick("l", "low")
	c.Volume, _ = pick("v", "volume")
	t, _ := pick("t", "time", "ts")
	c.Time = int64(t)
	return nil
}

// ToFloat converts JSON-decoded values to a finite float64. Strings are
// parsed, single-element slices unwrapped.
func ToFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		p, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = p
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = p
	case []any:
		if len(x) == 0 {
			return 0, false
		}
		return ToFloat(x[0])
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Closes extracts the close series.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// HLC extracts high, low and close series.
func HLC(candles []Candle) (highs, lows, closes []float64) {
	highs = make([]float64, len(candles))
	lows = make([]float64, len(candles))
	closes = make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
	}
	return highs, lows, closes
}
