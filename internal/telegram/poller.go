package telegram

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"tgrelay/internal/domain"
)

// Handler receives every message posted in a subscribed chat.
type Handler interface {
	Handle(ctx context.Context, msg domain.Message)
}

// Poller long-polls getUpdates and hands messages from subscribed chats to a
// Handler, one at a time in update order.
type Poller struct {
	client  *Client
	chats   map[int64]struct{}
	wait    time.Duration
	backoff time.Duration
	log     zerolog.Logger
}

func NewPoller(c *Client, chats []int64, wait time.Duration, log zerolog.Logger) *Poller {
	set := make(map[int64]struct{}, len(chats))
	for _, id := range chats {
		set[id] = struct{}{}
	}
	return &Poller{
		client:  c,
		chats:   set,
		wait:    wait,
		backoff: 3 * time.Second,
		log:     log.With().Str("component", "poller").Logger(),
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context, h Handler) error {
	var offset int64

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		updates, err := p.client.GetUpdates(ctx, offset, p.wait)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.log.Error().Err(err).Msg("getUpdates failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.backoff):
			}
			continue
		}

		for _, u := range updates {
			offset = u.UpdateID + 1

			post := u.Post()
			if post == nil {
				continue
			}
			if _, ok := p.chats[post.Chat.ID]; !ok {
				continue
			}

			h.Handle(ctx, toDomain(post))
		}
	}
}

func toDomain(m *Message) domain.Message {
	return domain.Message{
		ID:     m.MessageID,
		ChatID: m.Chat.ID,
		Text:   m.Body(),
		Origin: domain.OriginTelegram,
		Date:   time.Unix(m.Date, 0).UTC(),
	}
}
