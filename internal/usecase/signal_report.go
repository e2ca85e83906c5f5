package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/vitos/crypto_signal_bot/internal/domain"
)

// DefaultReportWindow is the trailing window of the weekly signal report.
const DefaultReportWindow = 7 * 24 * time.Hour

const reportTopN = 5

// SignalSummary counts the signals created at or after since. Symbols and
// strategies are ranked by count, ties broken by name, and capped at five.
func SignalSummary(records []domain.SignalRecord, since time.Time) domain.SignalSummary {
	out := domain.SignalSummary{
		Since:         since.UTC(),
		TopSymbols:    []domain.SymbolCount{},
		TopStrategies: []domain.StrategyCount{},
	}

	type symAgg struct {
		n    int
		conf float64
	}
	bySymbol := map[string]*symAgg{}
	byStrategy := map[string]int{}
	var confSum float64

	for _, rec := range records {
		if rec.CreatedAt.Before(since) {
			continue
		}
		out.Total++

		conf := rec.Confidence
		if math.IsNaN(conf) || math.IsInf(conf, 0) {
			conf = 0
		}
		confSum += conf

		sym := rec.Symbol
		if sym == "" {
			sym = "?"
		}
		agg, ok := bySymbol[sym]
		if !ok {
			agg = &symAgg{}
			bySymbol[sym] = agg
		}
		agg.n++
		agg.conf += conf

		strat := rec.Strategy
		if strat == "" {
			strat = "N/A"
		}
		byStrategy[strat]++
	}
	if out.Total == 0 {
		return out
	}
	out.AvgConfidence = confSum / float64(out.Total)

	for sym, agg := range bySymbol {
		out.TopSymbols = append(out.TopSymbols, domain.SymbolCount{
			Symbol:        sym,
			Count:         agg.n,
			AvgConfidence: agg.conf / float64(agg.n),
		})
	}
	sort.Slice(out.TopSymbols, func(i, j int) bool {
		a, b := out.TopSymbols[i], out.TopSymbols[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Symbol < b.Symbol
	})

	for strat, n := range byStrategy {
		out.TopStrategies = append(out.TopStrategies, domain.StrategyCount{Strategy: strat, Count: n})
	}
	sort.Slice(out.TopStrategies, func(i, j int) bool {
		a, b := out.TopStrategies[i], out.TopStrategies[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Strategy < b.Strategy
	})

	out.TopSymbols = out.TopSymbols[:min(reportTopN, len(out.TopSymbols))]
	out.TopStrategies = out.TopStrategies[:min(reportTopN, len(out.TopStrategies))]
	return out
}

// LoadSignalSummary summarises the stored signal log over the window ending at now.
func LoadSignalSummary(ctx context.Context, signals domain.SignalStore, now time.Time, window time.Duration) (domain.SignalSummary, error) {
	if window <= 0 {
		window = DefaultReportWindow
	}
	since := now.Add(-window)
	if signals == nil {
		return SignalSummary(nil, since), nil
	}
	records, err := signals.Load(ctx)
	if err != nil {
		return domain.SignalSummary{}, fmt.Errorf("failed to load signals: %w", err)
	}
	return SignalSummary(records, since), nil
}
