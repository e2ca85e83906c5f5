package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
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
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "bot",
		Short:        "Crypto signal bot",
		Long:         "Scores symbols from local OHLC and sentiment data, tracks paper positions and labels their outcomes.",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "Path to config file")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the signal loop and the web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), configPath, func(ctx context.Context, a *app.App) error {
				srv := a.Server()
				go func() {
					if err := srv.Start(); err != nil {
						a.Logger.Error("Web server failed", zap.Error(err))
					}
				}()
				defer a.ShutdownServer(srv)
				return a.Pipeline.Run(ctx)
			})
		},
	}

	onceCmd := &cobra.Command{
		Use:   "once",
		Short: "Run a single scoring and labeling cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), configPath, func(ctx context.Context, a *app.App) error {
				report, err := a.Pipeline.RunOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Scored %d symbols\n", report.Scored)
				for sym, reason := range report.Admissions {
					fmt.Printf("- %s: %s (score %.3f)\n", sym, reason, report.Scores[sym])
				}
				for sym, why := range report.Skipped {
					fmt.Printf("- %s skipped: %s\n", sym, why)
				}
				return nil
			})
		},
	}

	labelCmd := &cobra.Command{
		Use:   "label",
		Short: "Close open positions whose TP or SL was touched",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), configPath, func(ctx context.Context, a *app.App) error {
				report, err := a.Labeler.Run(ctx)
				fmt.Printf("Checked %d open positions: %d tp, %d sl, %d expired, %d skipped\n",
					report.Checked, report.Wins, report.Losses, report.Expired, report.Skipped)
				return err
			})
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the positions API without running the signal loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), configPath, func(ctx context.Context, a *app.App) error {
				srv := a.Server()
				errCh := make(chan error, 1)
				go func() { errCh <- srv.Start() }()
				select {
				case err := <-errCh:
					return err
				case <-ctx.Done():
					a.ShutdownServer(srv)
					return nil
				}
			})
		},
	}

	var reportDays int
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Summarise the signals logged over the last days",
		RunE: func(cmd *cobra.Command, args []string) error {
			if reportDays <= 0 {
				return fmt.Errorf("--days must be positive, got %d", reportDays)
			}
			return withApp(cmd.Context(), configPath, func(ctx context.Context, a *app.App) error {
				window := time.Duration(reportDays) * 24 * time.Hour
				s, err := usecase.LoadSignalSummary(ctx, a.Signals, time.Now(), window)
				if err != nil {
					return err
				}
				fmt.Printf("Signal report since %s\n", s.Since.Format("2006-01-02 15:04 UTC"))
				if s.Total == 0 {
					fmt.Printf("No signals in the last %d days.\n", reportDays)
					return nil
				}
				fmt.Printf("Total signals: %d | avg confidence: %.1f%%\n", s.Total, 100*s.AvgConfidence)
				fmt.Println("Top symbols:")
				for _, sc := range s.TopSymbols {
					fmt.Printf("- %s: %d signals (avg confidence %.1f%%)\n", sc.Symbol, sc.Count, 100*sc.AvgConfidence)
				}
				fmt.Println("Top strategies:")
				for _, st := range s.TopStrategies {
					fmt.Printf("- %s: %d signals\n", st.Strategy, st.Count)
				}
				return nil
			})
		},
	}
	reportCmd.Flags().IntVar(&reportDays, "days", 7, "Trailing window in days")

	rootCmd.AddCommand(runCmd, onceCmd, labelCmd, serveCmd, reportCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func withApp(ctx context.Context, configPath string, fn func(context.Context, *app.App) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewFileLogger(cfg.Logging.File, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer log.Sync()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to init app", zap.Error(err))
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}
