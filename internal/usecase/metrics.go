package usecase

// Metrics receives counters from the ledger, labeler and backtester.
type Metrics interface {
	ObserveScore(symbol string, mix float64)
	ObserveAdmission(reason string)
	ObserveClose(reason string)
	SetOpenPositions(n int)
	ObserveBacktestTrade(result string, rMult float64)
	ObservePersistError(store string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveScore(string, float64)         {}
func (nopMetrics) ObserveAdmission(string)              {}
func (nopMetrics) ObserveClose(string)                  {}
func (nopMetrics) SetOpenPositions(int)                 {}
func (nopMetrics) ObserveBacktestTrade(string, float64) {}
func (nopMetrics) ObservePersistError(string)           {}

func orNop(m Metrics) Metrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}
