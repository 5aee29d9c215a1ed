package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"tgrelay/internal/domain"
	"tgrelay/internal/queue"
	"tgrelay/internal/resolver"
	"tgrelay/internal/stats"
)

type attempt struct {
	Target    int64
	MessageID int64
}

type fakeForwarder struct {
	mu       sync.Mutex
	attempts []attempt
	fail     map[int64]bool
	panicOn  int64
}

func (f *fakeForwarder) Forward(_ context.Context, target int64, msg domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOn != 0 && msg.ID == f.panicOn {
		panic("forwarder exploded")
	}
	f.attempts = append(f.attempts, attempt{Target: target, MessageID: msg.ID})
	if f.fail[target] {
		return &domain.ForwardError{Target: target, MessageID: msg.ID, Err: errors.New("chat not found")}
	}
	return nil
}

type fakeResolver struct {
	fail bool
}

func (f fakeResolver) Resolve(_ context.Context, chatID int64) (string, error) {
	if f.fail {
		return "", &domain.ResolutionError{ChatID: chatID, Err: errors.New("forbidden")}
	}
	return fmt.Sprintf("chat %d", chatID), nil
}

type recordingBroadcaster struct {
	mu   sync.Mutex
	msgs []string
}

func (b *recordingBroadcaster) Broadcast(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, msg)
}

func newJob(source, id int64, targets ...int64) domain.ForwardJob {
	return domain.ForwardJob{
		SourceID: source,
		Message:  domain.Message{ID: id, ChatID: source, Origin: domain.OriginTelegram},
		Targets:  targets,
	}
}

// runJobs publishes jobs, closes the queue and runs the worker to completion.
func runJobs(t *testing.T, w *Consumer, q *queue.Memory, jobs ...domain.ForwardJob) error {
	t.Helper()
	ctx := context.Background()
	for _, j := range jobs {
		if err := q.Publish(ctx, j); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	q.Close()
	return w.Start(ctx)
}

func TestFailedTargetDoesNotStopSiblings(t *testing.T) {
	q := queue.NewMemory(0, queue.OverflowBlock, zerolog.Nop())
	fwd := &fakeForwarder{fail: map[int64]bool{1: true}}
	c := &stats.Counters{}
	w := NewConsumer(q, fakeResolver{}, fwd, nil, RestartResume, c, zerolog.Nop())

	if err := runJobs(t, w, q, newJob(-100, 7, 1, 2), newJob(-100, 8, 2)); err != nil {
		t.Fatalf("Start: %v", err)
	}

	want := []attempt{{1, 7}, {2, 7}, {2, 8}}
	if !reflect.DeepEqual(fwd.attempts, want) {
		t.Fatalf("got attempts %v, want %v", fwd.attempts, want)
	}
	if c.Failed.Load() != 1 || c.Forwarded.Load() != 2 {
		t.Fatalf("unexpected counters %+v", c.Snapshot())
	}
}

func TestJobsProcessedInFIFOOrder(t *testing.T) {
	q := queue.NewMemory(0, queue.OverflowBlock, zerolog.Nop())
	fwd := &fakeForwarder{}
	w := NewConsumer(q, fakeResolver{}, fwd, nil, RestartResume, &stats.Counters{}, zerolog.Nop())

	if err := runJobs(t, w, q, newJob(-1, 1, 10, 11), newJob(-2, 2, 10, 11)); err != nil {
		t.Fatalf("Start: %v", err)
	}

	want := []attempt{{10, 1}, {11, 1}, {10, 2}, {11, 2}}
	if !reflect.DeepEqual(fwd.attempts, want) {
		t.Fatalf("m1 must finish before m2 starts: got %v", fwd.attempts)
	}
}

func TestResolutionFailureUsesPlaceholder(t *testing.T) {
	q := queue.NewMemory(0, queue.OverflowBlock, zerolog.Nop())
	fwd := &fakeForwarder{}
	b := &recordingBroadcaster{}
	w := NewConsumer(q, fakeResolver{fail: true}, fwd, b, RestartResume, &stats.Counters{}, zerolog.Nop())

	if err := runJobs(t, w, q, newJob(-100, 1, 5)); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if len(fwd.attempts) != 1 {
		t.Fatalf("job must continue after resolution failure, got %v", fwd.attempts)
	}
	if len(b.msgs) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(b.msgs))
	}
	var o Outcome
	if err := json.Unmarshal([]byte(b.msgs[0]), &o); err != nil {
		t.Fatalf("outcome is not JSON: %v", err)
	}
	if o.SourceName != resolver.Placeholder || !o.OK || o.Target != 5 {
		t.Fatalf("unexpected outcome %+v", o)
	}
}

func TestOutcomeCarriesError(t *testing.T) {
	q := queue.NewMemory(0, queue.OverflowBlock, zerolog.Nop())
	b := &recordingBroadcaster{}
	w := NewConsumer(q, fakeResolver{}, &fakeForwarder{fail: map[int64]bool{9: true}}, b, RestartResume, &stats.Counters{}, zerolog.Nop())

	runJobs(t, w, q, newJob(-100, 1, 9))

	var o Outcome
	json.Unmarshal([]byte(b.msgs[0]), &o)
	if o.OK || !strings.Contains(o.Error, "chat not found") {
		t.Fatalf("expected failed outcome with error, got %+v", o)
	}
	if o.SourceName != "chat -100" {
		t.Fatalf("got source name %q", o.SourceName)
	}
}

func TestPanicResume(t *testing.T) {
	q := queue.NewMemory(0, queue.OverflowBlock, zerolog.Nop())
	fwd := &fakeForwarder{panicOn: 1}
	w := NewConsumer(q, fakeResolver{}, fwd, nil, RestartResume, &stats.Counters{}, zerolog.Nop())

	if err := runJobs(t, w, q, newJob(-1, 1, 10), newJob(-1, 2, 10)); err != nil {
		t.Fatalf("resume policy must not return an error, got %v", err)
	}
	if want := []attempt{{10, 2}}; !reflect.DeepEqual(fwd.attempts, want) {
		t.Fatalf("expected worker to resume with next job, got %v", fwd.attempts)
	}
}

func TestPanicExit(t *testing.T) {
	q := queue.NewMemory(0, queue.OverflowBlock, zerolog.Nop())
	fwd := &fakeForwarder{panicOn: 1}
	w := NewConsumer(q, fakeResolver{}, fwd, nil, RestartExit, &stats.Counters{}, zerolog.Nop())

	err := runJobs(t, w, q, newJob(-1, 1, 10), newJob(-1, 2, 10))
	if err == nil || !strings.Contains(err.Error(), "panic") {
		t.Fatalf("expected panic error, got %v", err)
	}
	if len(fwd.attempts) != 0 {
		t.Fatalf("exit policy must stop before the next job, got %v", fwd.attempts)
	}
}

func TestParseRestartPolicy(t *testing.T) {
	if ParseRestartPolicy("exit") != RestartExit {
		t.Fatal("expected exit")
	}
	if ParseRestartPolicy("") != RestartResume || ParseRestartPolicy("resume") != RestartResume {
		t.Fatal("expected resume")
	}
}
