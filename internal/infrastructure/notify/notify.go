package notify

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vitos/crypto_signal_bot/internal/domain"
)

// ErrThrottled is returned when an event is dropped by a rate limit.
var ErrThrottled = errors.New("notification throttled")

// Observer counts notification outcomes.
type Observer interface {
	ObserveNotification(kind, status string)
}

// LogNotifier writes every event to the logger.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, event domain.Event) error {
	fields := []zap.Field{
		zap.String("kind", string(event.Kind)),
		zap.String("symbol", event.Symbol),
		zap.Time("time", event.Time),
	}
	if p := event.Position; p != nil {
		fields = append(fields,
			zap.Float64("entry", p.Entry),
			zap.Float64("tp", p.TP),
			zap.Float64("sl", p.SL),
		)
	}
	n.logger.Info(event.Message, fields...)
	return nil
}

// Multi fans an event out to every notifier and joins their errors.
type Multi []domain.Notifier

func (m Multi) Notify(ctx context.Context, event domain.Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Throttled limits delivery per symbol. Summary events without a symbol
// share one limiter. Position closes happen once per position and are
// never throttled.
type Throttled struct {
	next     domain.Notifier
	limit    rate.Limit
	burst    int
	observer Observer

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewThrottled(next domain.Notifier, perSecond float64, burst int, observer Observer) *Throttled {
	if burst < 1 {
		burst = 1
	}
	return &Throttled{
		next:     next,
		limit:    rate.Limit(perSecond),
		burst:    burst,
		observer: observer,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (t *Throttled) Notify(ctx context.Context, event domain.Event) error {
	if event.Kind != domain.EventPositionClosed && !t.limiter(event.Symbol).Allow() {
		t.observe(event.Kind, "throttled")
		return ErrThrottled
	}
	if err := t.next.Notify(ctx, event); err != nil {
		t.observe(event.Kind, "error")
		return err
	}
	t.observe(event.Kind, "sent")
	return nil
}

func (t *Throttled) limiter(key string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.limiters[key]
	if !ok {
		l = rate.NewLimiter(t.limit, t.burst)
		t.limiters[key] = l
	}
	return l
}

func (t *Throttled) observe(kind domain.EventKind, status string) {
	if t.observer != nil {
		t.observer.ObserveNotification(string(kind), status)
	}
}
