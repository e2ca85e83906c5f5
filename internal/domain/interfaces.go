package domain

import (
	"context"
	"time"
)

// BookStore persists the position ledger wholesale.
type BookStore interface {
	Load(ctx context.Context) (Book, error)
	Save(ctx context.Context, book Book) error
}

// HistoryStore persists closed-position records wholesale.
type HistoryStore interface {
	Load(ctx context.Context) ([]HistoryRecord, error)
	Save(ctx context.Context, records []HistoryRecord) error
}

// SignalStore persists the log of admitted signals wholesale.
type SignalStore interface {
	Load(ctx context.Context) ([]SignalRecord, error)
	Save(ctx context.Context, records []SignalRecord) error
}

// CandleSource returns ordered OHLC bars for a symbol.
type CandleSource interface {
	GetCandles(ctx context.Context, symbol string) ([]Candle, error)
}

// SentimentReading holds optional sentiment scores in [0,1].
type SentimentReading struct {
	News   *float64 `json:"news,omitempty"`
	Social *float64 `json:"social,omitempty"`
}

// SentimentSource returns sentiment readings for a symbol.
type SentimentSource interface {
	GetSentiment(ctx context.Context, symbol string) (SentimentReading, error)
}

type EventKind string

const (
	EventSignalOpened   EventKind = "signal_opened"
	EventSignalUpdated  EventKind = "signal_updated"
	EventPositionClosed EventKind = "position_closed"
	EventLabelSummary   EventKind = "label_summary"
)

// Event is a ledger notification.
type Event struct {
	Kind     EventKind      `json:"kind"`
	Symbol   string         `json:"symbol,omitempty"`
	Message  string         `json:"message"`
	Position *Position      `json:"position,omitempty"`
	Record   *HistoryRecord `json:"record,omitempty"`
	Time     time.Time      `json:"time"`
}

// Notifier delivers events to an outer surface.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}
