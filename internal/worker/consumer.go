package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tgrelay/internal/domain"
	"tgrelay/internal/queue"
	"tgrelay/internal/resolver"
	"tgrelay/internal/stats"
)

// RestartPolicy decides what happens when handling a job panics.
type RestartPolicy int

const (
	// RestartResume logs the panic and moves on to the next job.
	RestartResume RestartPolicy = iota
	// RestartExit stops the worker and returns the panic as an error.
	RestartExit
)

func ParseRestartPolicy(s string) RestartPolicy {
	if strings.ToLower(strings.TrimSpace(s)) == "exit" {
		return RestartExit
	}
	return RestartResume
}

type Forwarder interface {
	Forward(ctx context.Context, target int64, msg domain.Message) error
}

type Broadcaster interface {
	Broadcast(msg string)
}

// Outcome is one delivery attempt, as broadcast to event subscribers.
type Outcome struct {
	SourceID   int64     `json:"source_id"`
	SourceName string    `json:"source_name"`
	MessageID  int64     `json:"message_id"`
	Target     int64     `json:"target"`
	OK         bool      `json:"ok"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

// Consumer is the single forward worker. It drains the queue one job at a
// time and delivers each job to its targets in order.
type Consumer struct {
	consumer    queue.Consumer
	resolver    resolver.Resolver
	forwarder   Forwarder
	broadcaster Broadcaster
	restart     RestartPolicy
	stats       *stats.Counters
	log         zerolog.Logger
}

func NewConsumer(c queue.Consumer, r resolver.Resolver, f Forwarder, b Broadcaster, restart RestartPolicy, s *stats.Counters, log zerolog.Logger) *Consumer {
	return &Consumer{
		consumer:    c,
		resolver:    r,
		forwarder:   f,
		broadcaster: b,
		restart:     restart,
		stats:       s,
		log:         log.With().Str("component", "worker").Logger(),
	}
}

// Start blocks until ctx is done or the queue is closed. It only returns an
// error under RestartExit.
func (w *Consumer) Start(ctx context.Context) error {
	return w.consumer.Consume(ctx, w.handleJob)
}

func (w *Consumer) handleJob(ctx context.Context, job domain.ForwardJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error().
				Interface("panic", r).
				Int64("source_id", job.SourceID).
				Int64("message_id", job.Message.ID).
				Msg("panic while forwarding job")
			if w.restart == RestartExit {
				err = fmt.Errorf("forward job for message %d: panic: %v", job.Message.ID, r)
			}
		}
	}()

	w.process(ctx, job)
	return nil
}

func (w *Consumer) process(ctx context.Context, job domain.ForwardJob) {
	msg := job.Message
	w.log.Debug().Int64("source_id", job.SourceID).Int64("message_id", msg.ID).Msg("processing message")

	name, err := w.resolver.Resolve(ctx, job.SourceID)
	if err != nil {
		w.log.Error().Err(err).Int64("source_id", job.SourceID).Msg("failed to get source name")
		name = resolver.Placeholder
	}

	for _, target := range job.Targets {
		err := w.forwarder.Forward(ctx, target, msg)
		if err != nil {
			w.stats.Failed.Add(1)
			w.log.Error().
				Err(err).
				Int64("message_id", msg.ID).
				Str("source", name).
				Int64("target", target).
				Msg("error forwarding message")
		} else {
			w.stats.Forwarded.Add(1)
			w.log.Info().
				Int64("message_id", msg.ID).
				Str("source", name).
				Int64("target", target).
				Msg("message forwarded")
		}
		w.broadcast(job, name, target, err)
	}
}

func (w *Consumer) broadcast(job domain.ForwardJob, name string, target int64, err error) {
	if w.broadcaster == nil {
		return
	}

	o := Outcome{
		SourceID:   job.SourceID,
		SourceName: name,
		MessageID:  job.Message.ID,
		Target:     target,
		OK:         err == nil,
		At:         time.Now().UTC(),
	}
	if err != nil {
		o.Error = err.Error()
	}

	data, mErr := json.Marshal(o)
	if mErr != nil {
		return
	}
	w.broadcaster.Broadcast(string(data))
}
