package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vitos/crypto_signal_bot/internal/domain"
)

// CacheDir reads per-symbol bar files at <dir>/ohlc/<SYMBOL>.json. A file
// holds either {"symbol":..,"bars":[..]} or a bare list of bars.
type CacheDir struct {
	dir string
}

func NewCacheDir(historyDir string) *CacheDir {
	return &CacheDir{dir: filepath.Join(historyDir, "ohlc")}
}

func (c *CacheDir) GetCandles(ctx context.Context, symbol string) ([]domain.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(c.dir, strings.ToUpper(symbol)+".json")
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", symbol, domain.ErrNoBars)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var candles []domain.Candle
	if trimmed := strings.TrimSpace(string(data)); strings.HasPrefix(trimmed, "{") {
		var doc struct {
			Bars []domain.Candle `json:"bars"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		candles = doc.Bars
	} else if err := json.Unmarshal(data, &candles); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return ordered(symbol, candles)
}

// Symbols lists the symbols with a cache file.
func (c *CacheDir) Symbols(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		out = append(out, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(out)
	return out, nil
}

// DataRaw reads bars from the snapshot file written by the collector:
// {"data":{SYM:[..]}} or {SYM:{"ohlc":[..]}}.
type DataRaw struct {
	path string
}

func NewDataRaw(path string) *DataRaw {
	return &DataRaw{path: path}
}

func (d *DataRaw) GetCandles(ctx context.Context, symbol string) ([]domain.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all, err := d.load()
	if err != nil {
		return nil, err
	}
	candles, ok := all[strings.ToUpper(symbol)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", symbol, domain.ErrNoBars)
	}
	return ordered(symbol, candles)
}

func (d *DataRaw) Symbols(ctx context.Context) ([]string, error) {
	all, err := d.load()
	if err != nil {
		if errors.Is(err, domain.ErrNoBars) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]string, 0, len(all))
	for sym := range all {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out, nil
}

func (d *DataRaw) load() (map[string][]domain.Candle, error) {
	data, err := os.ReadFile(d.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", d.path, domain.ErrNoBars)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", d.path, err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", d.path, err)
	}

	out := make(map[string][]domain.Candle)
	if raw, ok := doc["data"]; ok {
		var bySymbol map[string][]domain.Candle
		if err := json.Unmarshal(raw, &bySymbol); err != nil {
			return nil, fmt.Errorf("failed to decode %s data: %w", d.path, err)
		}
		for sym, candles := range bySymbol {
			out[strings.ToUpper(sym)] = candles
		}
		return out, nil
	}

	for sym, raw := range doc {
		var entry struct {
			OHLC []domain.Candle `json:"ohlc"`
		}
		if err := json.Unmarshal(raw, &entry); err != nil || entry.OHLC == nil {
			continue
		}
		out[strings.ToUpper(sym)] = entry.OHLC
	}
	return out, nil
}

// Chain tries each source in turn and returns the first result with at
// least minBars bars.
type Chain struct {
	sources []domain.CandleSource
	minBars int
}

func NewChain(minBars int, sources ...domain.CandleSource) *Chain {
	return &Chain{sources: sources, minBars: minBars}
}

func (c *Chain) GetCandles(ctx context.Context, symbol string) ([]domain.Candle, error) {
	var errs []error
	best := []domain.Candle(nil)
	for _, src := range c.sources {
		candles, err := src.GetCandles(ctx, symbol)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			errs = append(errs, err)
			continue
		}
		if len(candles) >= c.minBars {
			return candles, nil
		}
		if len(candles) > len(best) {
			best = candles
		}
	}
	if best != nil {
		return best, nil
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, domain.ErrNoBars)
	}
	return nil, errors.Join(errs...)
}

// Symbols merges the symbol lists of every source that can list them.
func (c *Chain) Symbols(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, src := range c.sources {
		lister, ok := src.(interface {
			Symbols(ctx context.Context) ([]string, error)
		})
		if !ok {
			continue
		}
		syms, err := lister.Symbols(ctx)
		if err != nil {
			return nil, err
		}
		for _, s := range syms {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func ordered(symbol string, candles []domain.Candle) ([]domain.Candle, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, domain.ErrNoBars)
	}
	sort.SliceStable(candles, func(i, j int) bool { return candles[i].Time < candles[j].Time })
	return candles, nil
}
