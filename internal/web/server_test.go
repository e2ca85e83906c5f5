package web_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vitos/crypto_signal_bot/internal/domain"
	"github.com/vitos/crypto_signal_bot/internal/infrastructure/storage"
	"github.com/vitos/crypto_signal_bot/internal/usecase"
	"github.com/vitos/crypto_signal_bot/internal/web"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	server *web.Server
	hub    *web.Hub
	ledger *usecase.Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	ledger, err := usecase.NewLedger(ctx, storage.NewMemory(domain.Book{}), usecase.DefaultLedgerConfig(), zap.NewNop(),
		usecase.WithClock(func() time.Time { return t0 }))
	require.NoError(t, err)

	for _, sym := range []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"} {
		adm := ledger.Admit(ctx, domain.Signal{ID: sym, Symbol: sym, Entry: 100, TP: 104, SL: 98, RR: 2})
		require.True(t, adm.Accepted)
	}
	require.True(t, ledger.Close(ctx, "ETHUSDT", domain.StatusHitTP, t0.Add(time.Hour)))
	require.True(t, ledger.Close(ctx, "SOLUSDT", domain.StatusHitSL, t0.Add(2*time.Hour)))

	history := storage.NewMemory([]domain.HistoryRecord{
		{ID: "ETHUSDT", Symbol: "ETHUSDT", Outcome: domain.OutcomeWin, Reason: domain.StatusHitTP, ClosedAt: t0.Add(time.Hour)},
		{ID: "SOLUSDT", Symbol: "SOLUSDT", Outcome: domain.OutcomeLoss, Reason: domain.StatusHitSL, ClosedAt: t0.Add(2 * time.Hour)},
		{ID: "old", Symbol: "ETHUSDT", Outcome: domain.OutcomeExpired, Reason: domain.StatusExpired, ClosedAt: t0.Add(3 * time.Hour)},
	})

	hub := web.NewHub(zap.NewNop())
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("signalbot_open_positions 1\n"))
	})
	s := web.NewServer(0, web.ServerDeps{
		Ledger:  ledger,
		History: history,
		Signals: storage.NewMemory[[]domain.SignalRecord](nil),
		Hub:     hub,
		Metrics: metricsHandler,
	}, zap.NewNop())

	return &fixture{server: s, hub: hub, ledger: ledger}
}

func (f *fixture) get(t *testing.T, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil && rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func TestServer_Positions(t *testing.T) {
	f := newFixture(t)

	var book domain.Book
	require.Equal(t, http.StatusOK, f.get(t, "/api/positions", &book).Code)
	assert.Len(t, book.Open, 1)
	assert.Len(t, book.Closed, 2)

	var open []domain.Position
	f.get(t, "/api/positions/open", &open)
	require.Len(t, open, 1)
	assert.Equal(t, "BTCUSDT", open[0].Symbol)

	var closed []domain.Position
	f.get(t, "/api/positions/closed?limit=1", &closed)
	require.Len(t, closed, 1)
	assert.Equal(t, "SOLUSDT", closed[0].Symbol)

	var one domain.Position
	require.Equal(t, http.StatusOK, f.get(t, "/api/positions/btcusdt", &one).Code)
	assert.Equal(t, 104.0, one.TP)

	assert.Equal(t, http.StatusNotFound, f.get(t, "/api/positions/ETHUSDT", nil).Code)
}

func TestServer_History(t *testing.T) {
	f := newFixture(t)

	var all []domain.HistoryRecord
	f.get(t, "/api/history", &all)
	assert.Len(t, all, 3)

	var eth []domain.HistoryRecord
	f.get(t, "/api/history?symbol=ethusdt&limit=1", &eth)
	require.Len(t, eth, 1)
	assert.Equal(t, "old", eth[0].ID)

	rec := f.get(t, "/api/signals", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestServer_SummaryAndStatus(t *testing.T) {
	f := newFixture(t)

	var summary domain.LedgerSummary
	f.get(t, "/api/summary", &summary)
	assert.Equal(t, domain.LedgerSummary{Open: 1, Closed: 2, Wins: 1, Losses: 1, WinRate: 50}, summary)

	var status map[string]any
	f.get(t, "/status", &status)
	assert.Equal(t, "ok", status["status"])
	assert.Equal(t, 1.0, status["open_positions"])
	assert.Equal(t, 0.0, status["ws_clients"])
	assert.NotContains(t, status, "last_cycle")

	rec := f.get(t, "/metrics", nil)
	assert.Contains(t, rec.Body.String(), "signalbot_open_positions")

	assert.Equal(t, http.StatusMethodNotAllowed, func() int {
		rec := httptest.NewRecorder()
		f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/summary", nil))
		return rec.Code
	}())
}

func TestServer_SignalSummary(t *testing.T) {
	f := newFixture(t)

	var empty domain.SignalSummary
	require.Equal(t, http.StatusOK, f.get(t, "/api/signals/summary", &empty).Code)
	assert.Zero(t, empty.Total)

	now := time.Now().UTC()
	signals := storage.NewMemory([]domain.SignalRecord{
		{Signal: domain.Signal{ID: "a", Symbol: "BTCUSDT", Strategy: "rsi+macd", Confidence: 0.8, CreatedAt: now.Add(-time.Hour)}},
		{Signal: domain.Signal{ID: "b", Symbol: "ETHUSDT", Strategy: "rsi+macd", Confidence: 0.6, CreatedAt: now.Add(-3 * 24 * time.Hour)}},
		{Signal: domain.Signal{ID: "c", Symbol: "ETHUSDT", Strategy: "ema", Confidence: 0.9, CreatedAt: now.Add(-10 * 24 * time.Hour)}},
	})
	s := web.NewServer(0, web.ServerDeps{Ledger: f.ledger, Signals: signals}, zap.NewNop())
	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	var week domain.SignalSummary
	rec := get("/api/signals/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &week))
	assert.Equal(t, 2, week.Total)
	assert.InDelta(t, 0.7, week.AvgConfidence, 1e-9)
	assert.Equal(t, []domain.StrategyCount{{Strategy: "rsi+macd", Count: 2}}, week.TopStrategies)

	var day domain.SignalSummary
	rec = get("/api/signals/summary?days=1")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &day))
	assert.Equal(t, 1, day.Total)
	require.Len(t, day.TopSymbols, 1)
	assert.Equal(t, "BTCUSDT", day.TopSymbols[0].Symbol)

	assert.Equal(t, http.StatusBadRequest, get("/api/signals/summary?days=0").Code)
	assert.Equal(t, http.StatusBadRequest, get("/api/signals/summary?days=week").Code)

	signals.SetLoadErr(errors.New("corrupt"))
	assert.Equal(t, http.StatusInternalServerError, get("/api/signals/summary").Code)
}

func TestServer_WebsocketStream(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var initial domain.Event
	require.NoError(t, conn.ReadJSON(&initial))
	assert.Equal(t, domain.EventSignalOpened, initial.Kind)
	assert.Equal(t, "BTCUSDT", initial.Symbol)

	require.Eventually(t, func() bool { return f.hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, f.hub.Notify(context.Background(), domain.Event{
		Kind:    domain.EventLabelSummary,
		Message: "labeled 1 positions",
		Time:    t0,
	}))

	var pushed domain.Event
	require.NoError(t, conn.ReadJSON(&pushed))
	assert.Equal(t, domain.EventLabelSummary, pushed.Kind)
	assert.Equal(t, "labeled 1 positions", pushed.Message)

	conn.Close()
	assert.Eventually(t, func() bool { return f.hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}
