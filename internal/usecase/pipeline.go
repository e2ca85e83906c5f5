package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/crypto_signal_bot/internal/domain"
)

const minCyclePause = 60 * time.Second

type PipelineConfig struct {
	Symbols        []string      `yaml:"symbols" validate:"dive,required"`
	ScoreThreshold float64       `yaml:"score_threshold" validate:"gte=0,lte=1"`
	Interval       time.Duration `yaml:"interval" validate:"gte=0"`
	Label          bool          `yaml:"label"`
}

func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		ScoreThreshold: 0.70,
		Interval:       time.Hour,
		Label:          true,
	}
}

// CycleReport describes one pipeline pass.
type CycleReport struct {
	StartedAt  time.Time              `json:"started_at"`
	Duration   time.Duration          `json:"duration"`
	Scored     int                    `json:"scored"`
	Skipped    map[string]string      `json:"skipped,omitempty"`
	Scores     map[string]float64     `json:"scores"`
	Admissions map[string]AdmitReason `json:"admissions"`
	Label      *LabelReport           `json:"label,omitempty"`
}

// Pipeline runs score -> plan -> admit -> notify -> label for every
// configured symbol.
type Pipeline struct {
	candles   domain.CandleSource
	sentiment domain.SentimentSource
	builder   SnapshotBuilder
	scorer    *Scorer
	planner   *Planner
	ledger    *Ledger
	labeler   *Labeler
	signals   domain.SignalStore
	notifier  domain.Notifier
	cfg       PipelineConfig
	logger    *zap.Logger

	mu   sync.RWMutex
	last *CycleReport
}

type PipelineDeps struct {
	Candles   domain.CandleSource
	Sentiment domain.SentimentSource
	Builder   SnapshotBuilder
	Scorer    *Scorer
	Planner   *Planner
	Ledger    *Ledger
	Labeler   *Labeler
	Signals   domain.SignalStore
	Notifier  domain.Notifier
}

func NewPipeline(deps PipelineDeps, cfg PipelineConfig, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		candles:   deps.Candles,
		sentiment: deps.Sentiment,
		builder:   deps.Builder,
		scorer:    deps.Scorer,
		planner:   deps.Planner,
		ledger:    deps.Ledger,
		labeler:   deps.Labeler,
		signals:   deps.Signals,
		notifier:  deps.Notifier,
		cfg:       cfg,
		logger:    logger,
	}
}

// RunOnce executes a single cycle. Per-symbol failures are logged and
// recorded in the report; only context cancellation aborts the cycle.
func (p *Pipeline) RunOnce(ctx context.Context) (CycleReport, error) {
	start := p.ledger.now()
	report := CycleReport{
		StartedAt:  start.UTC(),
		Skipped:    make(map[string]string),
		Scores:     make(map[string]float64),
		Admissions: make(map[string]AdmitReason),
	}

	var admitted []domain.SignalRecord
	for _, raw := range p.cfg.Symbols {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		symbol := strings.ToUpper(strings.TrimSpace(raw))

		snap, err := p.snapshot(ctx, symbol)
		if err != nil {
			p.logger.Warn("Symbol skipped", zap.String("symbol", symbol), zap.Error(err))
			report.Skipped[symbol] = err.Error()
			continue
		}

		score := p.scorer.Score(snap)
		p.ledger.metrics.ObserveScore(symbol, score.Mix)
		report.Scored++
		report.Scores[symbol] = score.Mix
		if score.Status != domain.ScoreOK {
			p.logger.Debug("Score degraded",
				zap.String("symbol", symbol),
				zap.String("status", string(score.Status)),
				zap.Strings("defaulted", score.Defaulted),
			)
		}
		if score.Mix < p.cfg.ScoreThreshold {
			continue
		}

		sig, ok := p.planner.Plan(symbol, snap, score, p.ledger.now())
		if !ok {
			report.Skipped[symbol] = "no plan"
			continue
		}

		adm := p.ledger.Admit(ctx, sig)
		report.Admissions[symbol] = adm.Reason
		if !adm.Accepted {
			if adm.Err != nil {
				p.logger.Warn("Signal not admitted", zap.String("symbol", symbol), zap.String("reason", string(adm.Reason)), zap.Error(adm.Err))
			}
			continue
		}

		admitted = append(admitted, domain.SignalRecord{
			Signal:    sig,
			TechScore: score.Tech,
			SentScore: score.Sent,
			MixScore:  score.Mix,
			Reason:    string(adm.Reason),
			Features:  snap,
		})

		kind := domain.EventSignalOpened
		if adm.Reason != ReasonNew {
			kind = domain.EventSignalUpdated
		}
		pos := adm.Position
		p.notify(ctx, domain.Event{
			Kind:     kind,
			Symbol:   symbol,
			Message:  fmt.Sprintf("%s %s: entry %.6g tp %.6g sl %.6g score %.2f", symbol, adm.Reason, pos.Entry, pos.TP, pos.SL, score.Mix),
			Position: &pos,
			Time:     p.ledger.now().UTC(),
		})
	}

	if len(admitted) > 0 && p.signals != nil {
		if err := p.appendSignals(ctx, admitted); err != nil {
			p.logger.Error("Failed to persist signal log", zap.Error(err))
			p.ledger.metrics.ObservePersistError("signals")
		}
	}

	if p.cfg.Label && p.labeler != nil {
		lr, err := p.labeler.Run(ctx)
		report.Label = &lr
		if err != nil {
			p.logger.Error("Labeler failed", zap.Error(err))
		}
	}

	report.Duration = p.ledger.now().Sub(start)
	p.mu.Lock()
	p.last = &report
	p.mu.Unlock()
	return report, nil
}

// Run loops until ctx is cancelled, pausing at least a minute between cycles.
func (p *Pipeline) Run(ctx context.Context) error {
	pause := max(p.cfg.Interval, minCyclePause)
	p.logger.Info("Starting pipeline", zap.Int("symbols", len(p.cfg.Symbols)), zap.Duration("interval", pause))

	for {
		report, err := p.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Error("Cycle failed", zap.Error(err))
		} else {
			p.logger.Info("Cycle done",
				zap.Int("scored", report.Scored),
				zap.Int("admitted", countAccepted(report.Admissions)),
				zap.Duration("took", report.Duration),
			)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(pause):
		}
	}
}

// LastCycle returns the most recent cycle report, if any.
func (p *Pipeline) LastCycle() (CycleReport, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return CycleReport{}, false
	}
	return *p.last, true
}

func (p *Pipeline) snapshot(ctx context.Context, symbol string) (domain.Snapshot, error) {
	candles, err := p.candles.GetCandles(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to load bars: %w", err)
	}
	snap, err := p.builder.Compute(candles)
	if err != nil {
		return nil, fmt.Errorf("failed to compute indicators: %w", err)
	}
	if snap == nil {
		snap = domain.Snapshot{}
	}
	if p.sentiment == nil {
		return snap, nil
	}

	reading, err := p.sentiment.GetSentiment(ctx, symbol)
	if err != nil {
		p.logger.Debug("No sentiment", zap.String("symbol", symbol), zap.Error(err))
		return snap, nil
	}
	if reading.News != nil {
		snap[domain.IndNewsSent] = *reading.News
	}
	if reading.Social != nil {
		snap[domain.IndSocialSent] = *reading.Social
	}
	return snap, nil
}

func (p *Pipeline) appendSignals(ctx context.Context, records []domain.SignalRecord) error {
	existing, err := p.signals.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load signals: %w", err)
	}
	return p.signals.Save(ctx, append(existing, records...))
}

func (p *Pipeline) notify(ctx context.Context, event domain.Event) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.Notify(ctx, event); err != nil {
		p.logger.Warn("Notification failed", zap.String("kind", string(event.Kind)), zap.Error(err))
	}
}

func countAccepted(admissions map[string]AdmitReason) int {
	n := 0
	for _, r := range admissions {
		if r == ReasonNew || r == ReasonChanged || r == ReasonCooldown {
			n++
		}
	}
	return n
}
