package usecase

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vitos/crypto_signal_bot/internal/domain"
)

type LedgerConfig struct {
	Cooldown           time.Duration `yaml:"cooldown" validate:"gte=0"`
	ChangeThresholdPct float64       `yaml:"change_threshold_pct" validate:"gte=0"`
}

func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		Cooldown:           6 * time.Hour,
		ChangeThresholdPct: 1.0,
	}
}

type AdmitReason string

const (
	ReasonNew           AdmitReason = "new"
	ReasonChanged       AdmitReason = "changed"
	ReasonCooldown      AdmitReason = "cooldown"
	ReasonDuplicate     AdmitReason = "duplicate"
	ReasonInvalid       AdmitReason = "invalid"
	ReasonPersistFailed AdmitReason = "persist_failed"
)

// Admission is the result of Ledger.Admit. Err is set only for
// ReasonInvalid and ReasonPersistFailed.
type Admission struct {
	Accepted bool            `json:"accepted"`
	Reason   AdmitReason     `json:"reason"`
	Position domain.Position `json:"position"`
	Err      error           `json:"-"`
}

type LedgerOption func(*Ledger)

func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

func WithMetrics(m Metrics) LedgerOption {
	return func(l *Ledger) { l.metrics = orNop(m) }
}

// Ledger tracks at most one open paper position per symbol. Every mutation
// is applied to a copy of the book, persisted, and only then made current,
// so a failed save leaves the in-memory state untouched.
type Ledger struct {
	store   domain.BookStore
	cfg     LedgerConfig
	logger  *zap.Logger
	metrics Metrics
	now     func() time.Time

	mu   sync.RWMutex
	book domain.Book
}

func NewLedger(ctx context.Context, store domain.BookStore, cfg LedgerConfig, logger *zap.Logger, opts ...LedgerOption) (*Ledger, error) {
	l := &Ledger{
		store:   store,
		cfg:     cfg,
		logger:  logger,
		metrics: nopMetrics{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	book, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	l.book = book.Clone()
	l.metrics.SetOpenPositions(len(l.book.Open))
	return l, nil
}

// Admit applies a candidate signal to the ledger.
func (l *Ledger) Admit(ctx context.Context, sig domain.Signal) Admission {
	symbol := strings.ToUpper(strings.TrimSpace(sig.Symbol))
	if err := validateLevels(symbol, sig); err != nil {
		l.metrics.ObserveAdmission(string(ReasonInvalid))
		return Admission{Reason: ReasonInvalid, Err: err}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()
	next := l.book.Clone()
	idx := next.FindOpen(symbol)

	var reason AdmitReason
	if idx < 0 {
		id := sig.ID
		if id == "" || idInUse(next, id) {
			id = uuid.NewString()
		}
		next.Open = append(next.Open, domain.Position{
			ID:         id,
			Symbol:     symbol,
			Entry:      sig.Entry,
			TP:         sig.TP,
			SL:         sig.SL,
			Strategy:   sig.Strategy,
			Status:     domain.StatusOpen,
			CreatedAt:  now,
			LastSentAt: now,
		})
		idx = len(next.Open) - 1
		reason = ReasonNew
	} else {
		p := &next.Open[idx]
		thr := l.cfg.ChangeThresholdPct
		switch {
		case pctDiff(p.Entry, sig.Entry) > thr || pctDiff(p.TP, sig.TP) > thr || pctDiff(p.SL, sig.SL) > thr:
			p.Entry, p.TP, p.SL = sig.Entry, sig.TP, sig.SL
			if sig.Strategy != "" {
				p.Strategy = sig.Strategy
			}
			p.LastSentAt = now
			reason = ReasonChanged
		case now.Sub(p.LastSentAt) >= l.cfg.Cooldown:
			p.LastSentAt = now
			reason = ReasonCooldown
		default:
			l.metrics.ObserveAdmission(string(ReasonDuplicate))
			return Admission{Reason: ReasonDuplicate, Position: *p}
		}
	}

	if err := l.store.Save(ctx, next); err != nil {
		l.logger.Error("Failed to persist ledger", zap.String("symbol", symbol), zap.Error(err))
		l.metrics.ObservePersistError("ledger")
		l.metrics.ObserveAdmission(string(ReasonPersistFailed))
		return Admission{Reason: ReasonPersistFailed, Err: err}
	}
	l.book = next
	l.metrics.ObserveAdmission(string(reason))
	l.metrics.SetOpenPositions(len(next.Open))

	return Admission{Accepted: true, Reason: reason, Position: next.Open[idx]}
}

// Close moves the open position for symbol to the closed list. It returns
// false when there is nothing to close, the reason is not terminal, or the
// change could not be persisted.
func (l *Ledger) Close(ctx context.Context, symbol string, reason domain.PositionStatus, closedAt time.Time) bool {
	_, ok := l.close(ctx, symbol, reason, closedAt)
	return ok
}

func (l *Ledger) close(ctx context.Context, symbol string, reason domain.PositionStatus, closedAt time.Time) (domain.Position, bool) {
	if !reason.IsCloseReason() {
		return domain.Position{}, false
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.book.FindOpen(symbol)
	if idx < 0 {
		return domain.Position{}, false
	}
	if closedAt.IsZero() {
		closedAt = l.now()
	}
	closedAt = closedAt.UTC()

	next := l.book.Clone()
	p := next.Open[idx]
	p.Status = reason
	p.ClosedAt = &closedAt
	next.Open = append(next.Open[:idx], next.Open[idx+1:]...)
	next.Closed = append(next.Closed, p)

	if err := l.store.Save(ctx, next); err != nil {
		l.logger.Error("Failed to persist ledger close", zap.String("symbol", symbol), zap.Error(err))
		l.metrics.ObservePersistError("ledger")
		return domain.Position{}, false
	}
	l.book = next
	l.metrics.ObserveClose(string(reason))
	l.metrics.SetOpenPositions(len(next.Open))
	return p, true
}

// Book returns a copy of the current ledger state.
func (l *Ledger) Book() domain.Book {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.book.Clone()
}

func (l *Ledger) OpenPositions() []domain.Position {
	return l.Book().Open
}

func (l *Ledger) Get(symbol string) (domain.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx := l.book.FindOpen(strings.ToUpper(symbol))
	if idx < 0 {
		return domain.Position{}, false
	}
	return l.book.Open[idx], true
}

// Summary counts closed positions by outcome.
func (l *Ledger) Summary() domain.LedgerSummary {
	book := l.Book()
	s := domain.LedgerSummary{Open: len(book.Open), Closed: len(book.Closed)}
	for _, p := range book.Closed {
		switch domain.OutcomeFor(p.Status) {
		case domain.OutcomeWin:
			s.Wins++
		case domain.OutcomeLoss:
			s.Losses++
		default:
			s.Expired++
		}
	}
	if decided := s.Wins + s.Losses; decided > 0 {
		s.WinRate = math.Round(10000*float64(s.Wins)/float64(decided)) / 100
	}
	return s
}

// idInUse reports whether any open or closed position already carries id.
func idInUse(book domain.Book, id string) bool {
	for _, list := range [][]domain.Position{book.Open, book.Closed} {
		for _, p := range list {
			if p.ID == id {
				return true
			}
		}
	}
	return false
}

func validateLevels(symbol string, sig domain.Signal) error {
	if symbol == "" {
		return fmt.Errorf("signal has no symbol")
	}
	for name, v := range map[string]float64{"entry": sig.Entry, "tp": sig.TP, "sl": sig.SL} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return fmt.Errorf("signal %s: invalid %s %v", symbol, name, v)
		}
	}
	return nil
}

// pctDiff is the absolute percent change from old to new. A zero stored
// value always counts as changed.
func pctDiff(old, new float64) float64 {
	if old == 0 {
		return 999
	}
	return math.Abs(new-old) / math.Abs(old) * 100
}
