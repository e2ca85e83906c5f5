package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/crypto_signal_bot/internal/domain"
	"github.com/vitos/crypto_signal_bot/internal/usecase"
)

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.ledger.Book())
}

func (s *Server) handleOpenPositions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.ledger.Book().Open)
}

func (s *Server) handleClosedPositions(w http.ResponseWriter, r *http.Request) {
	closed := s.ledger.Book().Closed
	s.writeJSON(w, tail(closed, limitParam(r)))
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	pos, ok := s.ledger.Get(r.PathValue("symbol"))
	if !ok {
		http.Error(w, "No open position", http.StatusNotFound)
		return
	}
	s.writeJSON(w, pos)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeJSON(w, []domain.HistoryRecord{})
		return
	}
	records, err := s.history.Load(r.Context())
	if err != nil {
		s.logger.Error("Failed to load history", zap.Error(err))
		http.Error(w, "Failed to load history", http.StatusInternalServerError)
		return
	}

	if sym := strings.ToUpper(r.URL.Query().Get("symbol")); sym != "" {
		filtered := records[:0:0]
		for _, rec := range records {
			if rec.Symbol == sym {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}
	if records == nil {
		records = []domain.HistoryRecord{}
	}
	s.writeJSON(w, tail(records, limitParam(r)))
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	if s.signals == nil {
		s.writeJSON(w, []domain.SignalRecord{})
		return
	}
	records, err := s.signals.Load(r.Context())
	if err != nil {
		s.logger.Error("Failed to load signals", zap.Error(err))
		http.Error(w, "Failed to load signals", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []domain.SignalRecord{}
	}
	s.writeJSON(w, tail(records, limitParam(r)))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.ledger.Summary())
}

// handleSignalSummary aggregates the signal log over the last ?days=N days (default 7).
func (s *Server) handleSignalSummary(w http.ResponseWriter, r *http.Request) {
	window := usecase.DefaultReportWindow
	if v := r.URL.Query().Get("days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days <= 0 {
			http.Error(w, "Invalid days", http.StatusBadRequest)
			return
		}
		window = time.Duration(days) * 24 * time.Hour
	}

	summary, err := usecase.LoadSignalSummary(r.Context(), s.signals, time.Now(), window)
	if err != nil {
		s.logger.Error("Failed to summarise signals", zap.Error(err))
		http.Error(w, "Failed to load signals", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, summary)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":         "ok",
		"uptime":         time.Since(s.started).Round(time.Second).String(),
		"open_positions": len(s.ledger.Book().Open),
	}
	if s.hub != nil {
		status["ws_clients"] = s.hub.Clients()
	}
	if s.pipeline != nil {
		if last, ok := s.pipeline.LastCycle(); ok {
			status["last_cycle"] = last
		}
	}
	s.writeJSON(w, status)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	var initial []domain.Event
	for _, p := range s.ledger.Book().Open {
		pos := p
		initial = append(initial, domain.Event{
			Kind:     domain.EventSignalOpened,
			Symbol:   pos.Symbol,
			Message:  "open position",
			Position: &pos,
			Time:     pos.LastSentAt,
		})
	}
	s.hub.Handle(w, r, initial)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func limitParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// tail returns the last n items, or all of them when n is zero.
func tail[T any](items []T, n int) []T {
	if n <= 0 || n >= len(items) {
		return items
	}
	return items[len(items)-n:]
}
