package scraper

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"tgrelay/internal/domain"
)

type Feed struct {
	client *http.Client
	parser *gofeed.Parser
}

func NewFeed() *Feed {
	return &Feed{
		client: &http.Client{Timeout: 15 * time.Second},
		parser: gofeed.NewParser(),
	}
}

func (f *Feed) Scrape(ctx context.Context, url string, source int64) ([]domain.Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", "tgrelay/1.0")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	feed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, err
	}

	messages := make([]domain.Message, 0, len(feed.Items))
	for _, item := range feed.Items {
		createdAt := time.Now()
		if item.PublishedParsed != nil {
			createdAt = *item.PublishedParsed
		}

		guid := item.GUID
		if guid == "" {
			guid = item.Link
		}

		messages = append(messages, domain.Message{
			ID:         generateID(guid),
			ExternalID: guid,
			ChatID:     source,
			Text:       itemText(item),
			Origin:     domain.OriginFeed,
			Link:       item.Link,
			Date:       createdAt,
		})
	}

	return messages, nil
}

func itemText(item *gofeed.Item) string {
	parts := make([]string, 0, 2)
	if t := strings.TrimSpace(item.Title); t != "" {
		parts = append(parts, t)
	}
	if d := strings.TrimSpace(item.Description); d != "" && d != item.Title {
		parts = append(parts, d)
	}
	return strings.Join(parts, "\n\n")
}

// generateID derives a stable positive id from a feed item's GUID.
func generateID(guid string) int64 {
	hash := md5.Sum([]byte(guid))
	return int64(binary.BigEndian.Uint64(hash[:8]) >> 1)
}
