package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/vitos/crypto_signal_bot/internal/domain"
)

// ErrNoReading is returned when the file has nothing for a symbol.
var ErrNoReading = errors.New("no sentiment reading")

// FileSource serves readings from a JSON file shaped
// {"BTCUSDT":{"news":0.6,"social":0.4}}. Values above 1 are read as
// percentages. The file is re-read when its modification time changes.
type FileSource struct {
	path string

	mu       sync.Mutex
	modTime  time.Time
	readings map[string]domain.SentimentReading
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (f *FileSource) GetSentiment(ctx context.Context, symbol string) (domain.SentimentReading, error) {
	if err := ctx.Err(); err != nil {
		return domain.SentimentReading{}, err
	}
	readings, err := f.load()
	if err != nil {
		return domain.SentimentReading{}, err
	}
	r, ok := readings[strings.ToUpper(symbol)]
	if !ok {
		return domain.SentimentReading{}, fmt.Errorf("%s: %w", symbol, ErrNoReading)
	}
	return r, nil
}

func (f *FileSource) load() (map[string]domain.SentimentReading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	info, err := os.Stat(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoReading
	}
	if err != nil {
		return nil, err
	}
	if f.readings != nil && info.ModTime().Equal(f.modTime) {
		return f.readings, nil
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
	}
	var raw map[string]map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", f.path, err)
	}

	readings := make(map[string]domain.SentimentReading, len(raw))
	for sym, fields := range raw {
		readings[strings.ToUpper(sym)] = domain.SentimentReading{
			News:   normalize(fields, "news", "news_sentiment"),
			Social: normalize(fields, "social", "twitter", "social_sentiment"),
		}
	}
	f.readings = readings
	f.modTime = info.ModTime()
	return readings, nil
}

func normalize(fields map[string]any, keys ...string) *float64 {
	for _, k := range keys {
		v, ok := fields[k]
		if !ok {
			continue
		}
		f, ok := domain.ToFloat(v)
		if !ok {
			continue
		}
		if f > 1 {
			f /= 100
		}
		f = max(0, min(1, f))
		return &f
	}
	return nil
}
