package listener

import (
	"context"

	"github.com/rs/zerolog"

	"tgrelay/internal/domain"
	"tgrelay/internal/filter"
	"tgrelay/internal/queue"
	"tgrelay/internal/stats"
)

// Listener classifies inbound messages and queues forward jobs for the ones
// that match. It is safe for concurrent use.
type Listener struct {
	rules     *Rules
	publisher queue.Publisher
	stats     *stats.Counters
	log       zerolog.Logger
}

func New(rules *Rules, p queue.Publisher, c *stats.Counters, log zerolog.Logger) *Listener {
	return &Listener{
		rules:     rules,
		publisher: p,
		stats:     c,
		log:       log.With().Str("component", "listener").Logger(),
	}
}

func (l *Listener) Handle(ctx context.Context, msg domain.Message) {
	source := msg.ChatID
	l.stats.Received.Add(1)

	if !l.rules.Subscribed(source) {
		l.stats.Skipped.Add(1)
		l.log.Debug().Int64("source_id", source).Msg("source not configured, skipping")
		return
	}

	text := filter.Normalize(msg.Text)
	l.log.Debug().
		Int64("source_id", source).
		Int64("message_id", msg.ID).
		Str("text", text).
		Msg("new message")

	if sf, ok := l.rules.stopwords[source]; ok && sf.Stopped(text) {
		l.stats.Stopped.Add(1)
		l.log.Warn().Int64("source_id", source).Int64("message_id", msg.ID).Msg("message contains a stop-word, skipping")
		return
	}

	for _, g := range l.rules.groups {
		if !g.Covers(source) {
			continue
		}
		if !g.Match(text) {
			l.log.Debug().Str("filter", g.Name).Stringer("mode", g.Mode).Msg("message does not match filter")
			continue
		}

		targets := l.rules.routes.Lookup(source)
		if len(targets) == 0 {
			l.stats.Unrouted.Add(1)
			l.log.Warn().Int64("source_id", source).Str("filter", g.Name).Msg("no targets for source, skipping")
			continue
		}

		job := domain.ForwardJob{SourceID: source, Message: msg, Targets: targets}
		if err := l.publisher.Publish(ctx, job); err != nil {
			l.log.Error().Err(err).Int64("source_id", source).Int64("message_id", msg.ID).Msg("enqueue failed")
			continue
		}
		l.stats.Enqueued.Add(1)
		l.log.Info().
			Int64("source_id", source).
			Int64("message_id", msg.ID).
			Str("filter", g.Name).
			Ints64("targets", targets).
			Msg("message matches filter, queued")
	}
}
