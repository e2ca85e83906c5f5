package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vitos/crypto_signal_bot/internal/app"
	"github.com/vitos/crypto_signal_bot/internal/config"
	"github.com/vitos/crypto_signal_bot/internal/infrastructure/logger"
	"github.com/vitos/crypto_signal_bot/internal/usecase"
)

func main() {
	var (
		configPath string
		symbols    string
		minBars    int
		threshold  float64
		field      string
		maxTrades  int
		maxHold    int
		method     string
		reportDir  string
	)

	cmd := &cobra.Command{
		Use:          "backtest",
		Short:        "Replay local OHLC data through the scorer and simulate TP/SL outcomes",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			flags := cmd.Flags()
			if flags.Changed("symbols") {
				cfg.Runner.Symbols = splitSymbols(symbols)
			}
			if flags.Changed("min-bars") {
				cfg.Backtest.MinBars = minBars
			}
			if flags.Changed("threshold") {
				cfg.Backtest.ScoreThreshold = threshold
			}
			if flags.Changed("score-field") {
				cfg.Backtest.ScoreField = field
			}
			if flags.Changed("max-trades") {
				cfg.Backtest.MaxTrades = maxTrades
			}
			if flags.Changed("max-hold") {
				cfg.Backtest.MaxHoldBars = maxHold
			}
			if flags.Changed("method") {
				cfg.Backtest.Method = usecase.ResolveMethod(method)
			}
			if flags.Changed("report-dir") {
				cfg.Backtest.ReportDir = reportDir
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			log, err := logger.NewFileLogger(cfg.Logging.File, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("failed to init logger: %w", err)
			}
			defer log.Sync()

			a := app.NewBacktest(cmd.Context(), cfg, log)

			universe := a.Universe()
			log.Info("Starting backtest",
				zap.Int("universe", len(universe)),
				zap.Int("min_bars", cfg.Backtest.MinBars),
				zap.Float64("threshold", cfg.Backtest.ScoreThreshold),
			)

			report, err := a.Backtester.Run(cmd.Context(), universe, a.Candles, time.Now())
			if err != nil {
				return err
			}
			path, err := a.WriteReport(report)
			if err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}

			for sym, sr := range report.Symbols {
				s := sr.Summary
				fmt.Printf("%s: n=%d win%%=%.2f Rtot=%.3f Ravg=%.3f\n", sym, s.N, s.WinRate, s.RTotal, s.RAvg)
			}
			p := report.Portfolio
			fmt.Printf("Backtest done. n=%d Rtot=%.3f Ravg=%.3f\n", p.Trades, p.RTotal, p.RAvg)
			fmt.Printf("Report saved: %s\n", path)
			return nil
		},
	}

	defaults := config.Default()
	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", "config/config.yaml", "Path to config file")
	f.StringVar(&symbols, "symbols", "", "Comma-separated symbols (default: runner.symbols, or every symbol with local bars)")
	f.IntVar(&minBars, "min-bars", defaults.Backtest.MinBars, "Bars required before the first trade")
	f.Float64Var(&threshold, "threshold", defaults.Backtest.ScoreThreshold, "Minimum score to open a trade")
	f.StringVar(&field, "score-field", defaults.Backtest.ScoreField, "Score compared to the threshold (tech|mix)")
	f.IntVar(&maxTrades, "max-trades", defaults.Backtest.MaxTrades, "Maximum trades per symbol")
	f.IntVar(&maxHold, "max-hold", defaults.Backtest.MaxHoldBars, "Bars before a trade times out")
	f.StringVar(&method, "method", string(defaults.Backtest.Method), "TP/SL comparison (wick|close)")
	f.StringVar(&reportDir, "report-dir", defaults.Backtest.ReportDir, "Directory for JSON reports")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func splitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.ToUpper(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}
