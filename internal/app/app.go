package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/crypto_signal_bot/internal/config"
	"github.com/vitos/crypto_signal_bot/internal/domain"
	"github.com/vitos/crypto_signal_bot/internal/infrastructure/indicators"
	"github.com/vitos/crypto_signal_bot/internal/infrastructure/marketdata"
	"github.com/vitos/crypto_signal_bot/internal/infrastructure/metrics"
	"github.com/vitos/crypto_signal_bot/internal/infrastructure/notify"
	"github.com/vitos/crypto_signal_bot/internal/infrastructure/sentiment"
	"github.com/vitos/crypto_signal_bot/internal/infrastructure/storage"
	"github.com/vitos/crypto_signal_bot/internal/usecase"
	"github.com/vitos/crypto_signal_bot/internal/web"
)

// ErrUnknownDriver is returned for an unsupported storage driver.
var ErrUnknownDriver = errors.New("unknown storage driver")

// App is the wired object graph shared by the commands.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Registry

	Books   domain.BookStore
	History domain.HistoryStore
	Signals domain.SignalStore
	Candles *marketdata.Chain

	Builder    *indicators.Builder
	Scorer     *usecase.Scorer
	Planner    *usecase.Planner
	Ledger     *usecase.Ledger
	Labeler    *usecase.Labeler
	Pipeline   *usecase.Pipeline
	Backtester *usecase.Backtester
	Hub        *web.Hub

	closers []func() error
}

func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := newAnalysis(cfg, logger)

	if err := a.openStores(); err != nil {
		return nil, err
	}

	ledger, err := usecase.NewLedger(ctx, a.Books, cfg.Ledger, logger, usecase.WithMetrics(a.Metrics))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Ledger = ledger

	a.Hub = web.NewHub(logger)
	notifier := notify.Multi{
		notify.NewThrottled(notify.NewLogNotifier(logger), cfg.Notify.PerSecond, cfg.Notify.Burst, a.Metrics),
		a.Hub,
	}

	a.Labeler = usecase.NewLabeler(a.Ledger, a.Candles, a.History, notifier, cfg.Labeler, logger)

	a.resolveUniverse(ctx)

	var sent domain.SentimentSource
	if cfg.Data.SentimentFile != "" {
		sent = sentiment.NewFileSource(cfg.Data.SentimentFile)
	}
	a.Pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Candles:   a.Candles,
		Sentiment: sent,
		Builder:   a.Builder,
		Scorer:    a.Scorer,
		Planner:   a.Planner,
		Ledger:    a.Ledger,
		Labeler:   a.Labeler,
		Signals:   a.Signals,
		Notifier:  notifier,
	}, cfg.Runner, logger)

	return a, nil
}

// NewBacktest wires only what an offline backtest reads: local bars and the
// scoring chain. No store is opened, so a damaged ledger file cannot block it.
func NewBacktest(ctx context.Context, cfg *config.Config, logger *zap.Logger) *App {
	a := newAnalysis(cfg, logger)
	a.resolveUniverse(ctx)
	return a
}

func newAnalysis(cfg *config.Config, logger *zap.Logger) *App {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.NewRegistry(),
	}
	a.Candles = marketdata.NewChain(cfg.Backtest.MinBars,
		marketdata.NewCacheDir(cfg.Data.HistoryDir),
		marketdata.NewDataRaw(cfg.Data.DataRawFile),
	)
	a.Builder = indicators.NewBuilder(cfg.Indicators)
	a.Scorer = usecase.NewScorer(cfg.Scoring)
	a.Planner = usecase.NewPlanner(cfg.Planner, cfg.Scoring)
	a.Backtester = usecase.NewBacktester(a.Builder, a.Scorer, a.Planner, cfg.Backtest, logger, a.Metrics)
	return a
}

func (a *App) resolveUniverse(ctx context.Context) {
	if len(a.Config.Runner.Symbols) > 0 {
		return
	}
	syms, err := a.Candles.Symbols(ctx)
	if err != nil {
		a.Logger.Warn("Failed to list symbols with local bars", zap.Error(err))
	}
	a.Config.Runner.Symbols = syms
}

func (a *App) openStores() error {
	switch a.Config.Storage.Driver {
	case "json", "":
		a.Books = storage.NewJSONFile[domain.Book](a.Config.LedgerPath())
		a.History = storage.NewJSONFile[[]domain.HistoryRecord](a.Config.HistoryPath())
		a.Signals = storage.NewJSONFile[[]domain.SignalRecord](a.Config.SignalsPath())
	case "sqlite":
		store, err := storage.NewSQLiteStore(a.Config.Storage.SQLitePath)
		if err != nil {
			return fmt.Errorf("failed to init sqlite: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		a.Books = store.Book()
		a.History = store.History()
		a.Signals = store.Signals()
	default:
		return fmt.Errorf("%q: %w", a.Config.Storage.Driver, ErrUnknownDriver)
	}
	return nil
}

// Server builds the HTTP surface over the wired components.
func (a *App) Server() *web.Server {
	return web.NewServer(a.Config.Server.Port, web.ServerDeps{
		Ledger:   a.Ledger,
		History:  a.History,
		Signals:  a.Signals,
		Pipeline: a.Pipeline,
		Hub:      a.Hub,
		Metrics:  a.Metrics.Handler(),
	}, a.Logger)
}

// Universe returns the configured symbols, or every symbol with local bars.
func (a *App) Universe() []string {
	return a.Config.Runner.Symbols
}

// WriteReport stores a backtest report under the configured report dir.
func (a *App) WriteReport(report domain.BacktestReport) (string, error) {
	path := filepath.Join(a.Config.Backtest.ReportDir, usecase.ReportFileName(report.CreatedAt))
	if err := storage.WriteJSON(path, report); err != nil {
		return "", err
	}
	return path, nil
}

func (a *App) ShutdownServer(srv *web.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), max(a.Config.Server.ShutdownTimeout, time.Second))
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		a.Logger.Error("Server shutdown failed", zap.Error(err))
	}
}

func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
