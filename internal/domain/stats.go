package domain

import "time"

type TradeResult string

const (
	ResultWin     TradeResult = "win"
	ResultLoss    TradeResult = "loss"
	ResultTimeout TradeResult = "timeout"
)

// BacktestTrade is one simulated trade.
type BacktestTrade struct {
	Index   int         `json:"i"`
	Time    int64       `json:"time"`
	Result  TradeResult `json:"result"`
	Bars    int         `json:"bars"`
	RMult   float64     `json:"r_mult"`
	Score   float64     `json:"score"`
	Entry   float64     `json:"entry"`
	TP      float64     `json:"tp"`
	SL      float64     `json:"sl"`
	SameBar bool        `json:"same_bar,omitempty"`
}

// SymbolSummary aggregates trades for one symbol. WinRate is a percentage.
type SymbolSummary struct {
	N        int     `json:"n"`
	Wins     int     `json:"wins"`
	Losses   int     `json:"losses"`
	Timeouts int     `json:"timeouts"`
	WinRate  float64 `json:"win_rate"`
	RTotal   float64 `json:"r_total"`
	RAvg     float64 `json:"r_avg"`
}

type SymbolReport struct {
	Summary SymbolSummary   `json:"summary"`
	Trades  []BacktestTrade `json:"trades"`
}

type PortfolioSummary struct {
	Trades  int     `json:"trades"`
	Wins    int     `json:"wins"`
	Losses  int     `json:"losses"`
	WinRate float64 `json:"win_rate"`
	RTotal  float64 `json:"r_total"`
	RAvg    float64 `json:"r_avg"`
}

type BacktestParams struct {
	MinBars        int     `json:"min_bars"`
	ScoreThreshold float64 `json:"score_threshold"`
	ScoreField     string  `json:"score_field"`
	MaxTrades      int     `json:"max_trades"`
	MaxHoldBars    int     `json:"max_hold_bars"`
	UniverseSize   int     `json:"universe_size"`
}

// BacktestReport is the persisted result of a backtest run.
type BacktestReport struct {
	CreatedAt time.Time               `json:"created_at"`
	Params    BacktestParams          `json:"params"`
	Symbols   map[string]SymbolReport `json:"symbols"`
	Skipped   map[string]string       `json:"skipped,omitempty"`
	Portfolio PortfolioSummary        `json:"portfolio"`
}

// LedgerSummary counts closed positions by outcome.
type LedgerSummary struct {
	Open    int     `json:"open"`
	Closed  int     `json:"closed"`
	Wins    int     `json:"wins"`
	Losses  int     `json:"losses"`
	Expired int     `json:"expired"`
	WinRate float64 `json:"win_rate"`
}

// SignalSummary aggregates the signal log over a trailing window.
type SignalSummary struct {
	Since         time.Time       `json:"since"`
	Total         int             `json:"total"`
	AvgConfidence float64         `json:"avg_confidence"`
	TopSymbols    []SymbolCount   `json:"top_symbols"`
	TopStrategies []StrategyCount `json:"top_strategies"`
}

type SymbolCount struct {
	Symbol        string  `json:"symbol"`
	Count         int     `json:"count"`
	AvgConfidence float64 `json:"avg_confidence"`
}

type StrategyCount struct {
	Strategy string `json:"strategy"`
	Count    int    `json:"count"`
}
