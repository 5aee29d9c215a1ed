package scraper

import (
	"context"

	"tgrelay/internal/domain"
)

// Scraper fetches the current items of a feed and reports them as messages
// posted in the source chat the feed is bound to.
type Scraper interface {
	Scrape(ctx context.Context, url string, source int64) ([]domain.Message, error)
}
