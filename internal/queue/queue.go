package queue

import (
	"context"
	"errors"

	"tgrelay/internal/domain"
)

// ErrClosed is returned by Publish after Close, and ends Consume once the
// queue has been drained.
var ErrClosed = errors.New("queue closed")

// Handler processes one job. A non-nil error stops Consume.
type Handler func(ctx context.Context, job domain.ForwardJob) error

type Publisher interface {
	Publish(ctx context.Context, job domain.ForwardJob) error
	Close() error
}

type Consumer interface {
	Consume(ctx context.Context, handler Handler) error
	Close() error
}
