package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tgrelay/internal/config"
	"tgrelay/internal/domain"
	"tgrelay/internal/scraper"
)

// Handler receives messages produced by a feed.
type Handler interface {
	Handle(ctx context.Context, msg domain.Message)
}

// SeenStore remembers which feed items were already handled.
type SeenStore interface {
	MarkSeen(ctx context.Context, key string) (bool, error)
}

// MemorySeen is an in-process SeenStore.
type MemorySeen struct {
	mu   sync.Mutex
	seen map[string]bool
}

func NewMemorySeen() *MemorySeen {
	return &MemorySeen{seen: make(map[string]bool)}
}

func (m *MemorySeen) MarkSeen(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

// Feed polls one feed and hands new items to a Handler as messages from the
// feed's source id. When the seen-set knows none of the items on the first
// poll, that poll only records them, so a new feed does not replay its backlog.
type Feed struct {
	scraper  scraper.Scraper
	seen     SeenStore
	handler  Handler
	url      string
	source   int64
	interval time.Duration
	primed   bool
	log      zerolog.Logger
}

func NewFeed(s scraper.Scraper, seen SeenStore, h Handler, cfg config.FeedConfig, log zerolog.Logger) *Feed {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Feed{
		scraper:  s,
		seen:     seen,
		handler:  h,
		url:      cfg.URL,
		source:   cfg.SourceID,
		interval: interval,
		log: log.With().
			Str("component", "feed").
			Str("url", cfg.URL).
			Int64("source_id", cfg.SourceID).
			Logger(),
	}
}

func (w *Feed) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.scrape(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.scrape(ctx)
		}
	}
}

func (w *Feed) scrape(ctx context.Context) {
	messages, err := w.scraper.Scrape(ctx, w.url, w.source)
	if err != nil {
		w.log.Error().Err(err).Msg("feed fetch failed")
		return
	}

	var fresh []domain.Message
	dupCount := 0
	for _, msg := range messages {
		isNew, err := w.seen.MarkSeen(ctx, w.url+"|"+msg.ExternalID)
		if err != nil {
			w.log.Error().Err(err).Str("item", msg.ExternalID).Msg("seen-set update failed, skipping item")
			continue
		}
		if !isNew {
			dupCount++
			continue
		}
		fresh = append(fresh, msg)
	}

	if w.primed || dupCount > 0 {
		for _, msg := range fresh {
			w.handler.Handle(ctx, msg)
		}
	}

	w.log.Debug().
		Int("fetched", len(messages)).
		Int("new", len(fresh)).
		Int("duplicates", dupCount).
		Bool("primed", w.primed).
		Msg("feed polled")
	w.primed = true
}
