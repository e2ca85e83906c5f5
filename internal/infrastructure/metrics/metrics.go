package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the bot's Prometheus collectors on a private registry.
type Registry struct {
	reg *prometheus.Registry

	Scores         *prometheus.HistogramVec
	LastScore      *prometheus.GaugeVec
	Admissions     *prometheus.CounterVec
	Closes         *prometheus.CounterVec
	OpenPositions  prometheus.Gauge
	BacktestTrades *prometheus.CounterVec
	BacktestR      prometheus.Histogram
	PersistErrors  *prometheus.CounterVec
	Notifications  *prometheus.CounterVec
}

func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		Scores: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signalbot_score_mix",
				Help:    "Distribution of blended scores per cycle",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
			[]string{"symbol"},
		),
		LastScore: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "signalbot_score_last",
				Help: "Most recent blended score per symbol",
			},
			[]string{"symbol"},
		),
		Admissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalbot_admissions_total",
				Help: "Ledger admission results by reason",
			},
			[]string{"reason"},
		),
		Closes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalbot_closes_total",
				Help: "Closed positions by reason",
			},
			[]string{"reason"},
		),
		OpenPositions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "signalbot_open_positions",
				Help: "Number of open paper positions",
			},
		),
		BacktestTrades: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalbot_backtest_trades_total",
				Help: "Simulated trades by result",
			},
			[]string{"result"},
		),
		BacktestR: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "signalbot_backtest_r_multiple",
				Help:    "R-multiple of simulated trades",
				Buckets: []float64{-1, -0.5, 0, 0.5, 1, 1.5, 2, 3, 5},
			},
		),
		PersistErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalbot_persist_errors_total",
				Help: "Failed saves by store",
			},
			[]string{"store"},
		),
		Notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalbot_notifications_total",
				Help: "Notifications by kind and outcome",
			},
			[]string{"kind", "status"},
		),
	}

	r.reg.MustRegister(
		r.Scores, r.LastScore, r.Admissions, r.Closes, r.OpenPositions,
		r.BacktestTrades, r.BacktestR, r.PersistErrors, r.Notifications,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

func (r *Registry) ObserveScore(symbol string, mix float64) {
	r.Scores.WithLabelValues(symbol).Observe(mix)
	r.LastScore.WithLabelValues(symbol).Set(mix)
}

func (r *Registry) ObserveAdmission(reason string) {
	r.Admissions.WithLabelValues(reason).Inc()
}

func (r *Registry) ObserveClose(reason string) {
	r.Closes.WithLabelValues(reason).Inc()
}

func (r *Registry) SetOpenPositions(n int) {
	r.OpenPositions.Set(float64(n))
}

func (r *Registry) ObserveBacktestTrade(result string, rMult float64) {
	r.BacktestTrades.WithLabelValues(result).Inc()
	r.BacktestR.Observe(rMult)
}

func (r *Registry) ObservePersistError(store string) {
	r.PersistErrors.WithLabelValues(store).Inc()
}

func (r *Registry) ObserveNotification(kind, status string) {
	r.Notifications.WithLabelValues(kind, status).Inc()
}
