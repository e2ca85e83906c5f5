package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vitos/crypto_signal_bot/internal/domain"
	"github.com/vitos/crypto_signal_bot/internal/infrastructure/storage"
)

func main() {
	dbPath := flag.String("db", "bot.db", "SQLite database path")
	jsonDir := flag.String("json", "", "Read the JSON stores in this data dir instead of SQLite")
	flag.Parse()

	var (
		books   domain.BookStore
		history domain.HistoryStore
	)
	if *jsonDir != "" {
		books = storage.NewJSONFile[domain.Book](filepath.Join(*jsonDir, "positions.json"))
		history = storage.NewJSONFile[[]domain.HistoryRecord](filepath.Join(*jsonDir, "history.json"))
	} else {
		store, err := storage.NewSQLiteStore(*dbPath)
		if err != nil {
			fmt.Printf("Failed to init sqlite: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
		books = store.Book()
		history = store.History()
	}

	ctx := context.Background()
	book, err := books.Load(ctx)
	if err != nil {
		fmt.Printf("Failed to load ledger: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Found %d open positions:\n", len(book.Open))
	for _, p := range book.Open {
		fmt.Printf("- %s %s entry=%f tp=%f sl=%f created=%s last_sent=%s\n",
			p.ID, p.Symbol, p.Entry, p.TP, p.SL,
			p.CreatedAt.Format("2006-01-02 15:04"), p.LastSentAt.Format("2006-01-02 15:04"))
	}

	fmt.Printf("Found %d closed positions\n", len(book.Closed))

	records, err := history.Load(ctx)
	if err != nil {
		fmt.Printf("Failed to load history: %v\n", err)
		os.Exit(1)
	}
	wins, losses, expired := 0, 0, 0
	for _, r := range records {
		switch r.Outcome {
		case domain.OutcomeWin:
			wins++
		case domain.OutcomeLoss:
			losses++
		default:
			expired++
		}
	}
	fmt.Printf("History: %d records (%d win, %d loss, %d expired)\n", len(records), wins, losses, expired)
	for _, r := range records {
		fmt.Printf("  %s %s %s at %s\n", r.Symbol, r.Outcome, r.Reason, r.ClosedAt.Format("2006-01-02 15:04"))
	}
}
