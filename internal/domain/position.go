package domain

import "time"

type PositionStatus string

const (
	StatusOpen    PositionStatus = "open"
	StatusHitTP   PositionStatus = "hit_tp"
	StatusHitSL   PositionStatus = "hit_sl"
	StatusExpired PositionStatus = "expired"
)

// IsCloseReason reports whether s is a valid terminal status.
func (s PositionStatus) IsCloseReason() bool {
	return s == StatusHitTP || s == StatusHitSL || s == StatusExpired
}

// Position is a simulated (paper) position tracked by the ledger.
type Position struct {
	ID         string         `json:"id"`
	Symbol     string         `json:"symbol"`
	Entry      float64        `json:"entry"`
	TP         float64        `json:"tp"`
	SL         float64        `json:"sl"`
	Strategy   string         `json:"strategy,omitempty"`
	Status     PositionStatus `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	LastSentAt time.Time      `json:"last_sent_at"`
	ClosedAt   *time.Time     `json:"closed_at,omitempty"`
}

// Book is the persisted ledger state.
type Book struct {
	Open   []Position `json:"open"`
	Closed []Position `json:"closed"`
}

// Clone returns a deep copy so callers can mutate without touching b.
func (b Book) Clone() Book {
	out := Book{
		Open:   make([]Position, len(b.Open)),
		Closed: make([]Position, len(b.Closed)),
	}
	copy(out.Open, b.Open)
	copy(out.Closed, b.Closed)
	for i := range out.Closed {
		if t := out.Closed[i].ClosedAt; t != nil {
			tc := *t
			out.Closed[i].ClosedAt = &tc
		}
	}
	return out
}

// FindOpen returns the index of the open position for symbol, or -1.
func (b Book) FindOpen(symbol string) int {
	for i, p := range b.Open {
		if p.Symbol == symbol && p.Status == StatusOpen {
			return i
		}
	}
	return -1
}

type Outcome string

const (
	OutcomeWin     Outcome = "win"
	OutcomeLoss    Outcome = "loss"
	OutcomeExpired Outcome = "expired"
)

// OutcomeFor maps a close reason onto the history classification.
func OutcomeFor(reason PositionStatus) Outcome {
	switch reason {
	case StatusHitTP:
		return OutcomeWin
	case StatusHitSL:
		return OutcomeLoss
	default:
		return OutcomeExpired
	}
}

// HistoryRecord represents a closed position.
type HistoryRecord struct {
	ID        string         `json:"id"`
	Symbol    string         `json:"symbol"`
	Entry     float64        `json:"entry"`
	TP        float64        `json:"target_price"`
	SL        float64        `json:"stop_loss"`
	CreatedAt time.Time      `json:"created_at"`
	ClosedAt  time.Time      `json:"closed_at"`
	Outcome   Outcome        `json:"outcome"`
	Reason    PositionStatus `json:"reason"`
}
