package domain

import "time"

// Signal is a candidate trade produced by the scorer and planner.
type Signal struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Entry      float64   `json:"entry"`
	TP         float64   `json:"tp"`
	SL         float64   `json:"sl"`
	RR         float64   `json:"rr"`
	Confidence float64   `json:"confidence"`
	Strategy   string    `json:"strategy"`
	CreatedAt  time.Time `json:"created_at"`
}

// SignalRecord is an admitted signal together with the scores and the
// indicator readings it was derived from.
type SignalRecord struct {
	Signal
	TechScore float64  `json:"tech_score"`
	SentScore float64  `json:"sent_score"`
	MixScore  float64  `json:"mix_score"`
	Reason    string   `json:"reason"`
	Features  Snapshot `json:"features,omitempty"`
}
