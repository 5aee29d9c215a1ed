package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"tgrelay/internal/domain"
)

// Overflow selects what a bounded queue does when it is full.
type Overflow int

const (
	// OverflowBlock makes Publish wait for space or ctx cancellation.
	OverflowBlock Overflow = iota
	// OverflowDropOldest evicts the oldest queued job to make room.
	OverflowDropOldest
)

func ParseOverflow(s string) (Overflow, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "block":
		return OverflowBlock, nil
	case "drop_oldest":
		return OverflowDropOldest, nil
	}
	return OverflowBlock, fmt.Errorf("unknown overflow policy %q", s)
}

// Memory is an in-process FIFO queue. It is safe for any number of publishers
// and is meant to be drained by a single consumer. Capacity 0 means unbounded.
type Memory struct {
	capacity int
	overflow Overflow
	log      zerolog.Logger

	mu      sync.Mutex
	items   []domain.ForwardJob
	changed chan struct{}
	closed  bool
	dropped int64
}

func NewMemory(capacity int, overflow Overflow, log zerolog.Logger) *Memory {
	if capacity < 0 {
		capacity = 0
	}
	return &Memory{
		capacity: capacity,
		overflow: overflow,
		log:      log.With().Str("component", "queue").Logger(),
		changed:  make(chan struct{}),
	}
}

// notify wakes every waiter. Must be called with mu held.
func (q *Memory) notify() {
	close(q.changed)
	q.changed = make(chan struct{})
}

func (q *Memory) Publish(ctx context.Context, job domain.ForwardJob) error {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return ErrClosed
		}

		if q.capacity == 0 || len(q.items) < q.capacity {
			q.items = append(q.items, job)
			q.notify()
			q.mu.Unlock()
			return nil
		}

		if q.overflow == OverflowDropOldest {
			evicted := q.items[0]
			q.items = append(q.items[1:], job)
			q.dropped++
			q.notify()
			q.mu.Unlock()
			q.log.Warn().
				Int64("source_id", evicted.SourceID).
				Int64("message_id", evicted.Message.ID).
				Msg("queue full, dropped oldest job")
			return nil
		}

		wait := q.changed
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wait:
		}
	}
}

// Dequeue blocks until a job is available, the queue is closed and empty, or
// ctx is done.
func (q *Memory) Dequeue(ctx context.Context) (domain.ForwardJob, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			job := q.items[0]
			q.items[0] = domain.ForwardJob{}
			q.items = q.items[1:]
			q.notify()
			q.mu.Unlock()
			return job, nil
		}
		if q.closed {
			q.mu.Unlock()
			return domain.ForwardJob{}, ErrClosed
		}
		wait := q.changed
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return domain.ForwardJob{}, ctx.Err()
		case <-wait:
		}
	}
}

// Consume hands jobs to handler one at a time in publish order. It returns nil
// when ctx is done or the queue is closed and drained, and the handler's error
// if it returns one.
func (q *Memory) Consume(ctx context.Context, handler Handler) error {
	for {
		job, err := q.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := handler(ctx, job); err != nil {
			return err
		}
	}
}

func (q *Memory) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns how many jobs were evicted under OverflowDropOldest.
func (q *Memory) Dropped() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

func (q *Memory) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		q.notify()
	}
	return nil
}
