package stats

import "sync/atomic"

// Counters tracks pipeline totals since process start.
type Counters struct {
	Received  atomic.Int64
	Skipped   atomic.Int64
	Stopped   atomic.Int64
	Unrouted  atomic.Int64
	Enqueued  atomic.Int64
	Forwarded atomic.Int64
	Failed    atomic.Int64
}

type Snapshot struct {
	Received  int64 `json:"received"`
	Skipped   int64 `json:"skipped"`
	Stopped   int64 `json:"stopped"`
	Unrouted  int64 `json:"unrouted"`
	Enqueued  int64 `json:"enqueued"`
	Forwarded int64 `json:"forwarded"`
	Failed    int64 `json:"failed"`
}

func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Received:  c.Received.Load(),
		Skipped:   c.Skipped.Load(),
		Stopped:   c.Stopped.Load(),
		Unrouted:  c.Unrouted.Load(),
		Enqueued:  c.Enqueued.Load(),
		Forwarded: c.Forwarded.Load(),
		Failed:    c.Failed.Load(),
	}
}
