package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"
)

// Runs against a live server when RELAY_TEST_REDIS is set, e.g. localhost:6379.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("RELAY_TEST_REDIS")
	if addr == "" {
		t.Skip("RELAY_TEST_REDIS not set")
	}
	c, err := New(addr, time.Minute)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNameRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	id := -time.Now().UnixNano()

	if _, ok, err := c.GetName(ctx, id); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := c.SetName(ctx, id, "Bread Chat", time.Minute); err != nil {
		t.Fatalf("SetName: %v", err)
	}
	name, ok, err := c.GetName(ctx, id)
	if err != nil || !ok || name != "Bread Chat" {
		t.Fatalf("got %q ok=%v err=%v", name, ok, err)
	}
}

func TestMarkSeen(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	key := fmt.Sprintf("test|%d", time.Now().UnixNano())

	if fresh, err := c.MarkSeen(ctx, key); err != nil || !fresh {
		t.Fatalf("first mark: fresh=%v err=%v", fresh, err)
	}
	if fresh, err := c.MarkSeen(ctx, key); err != nil || fresh {
		t.Fatalf("second mark: fresh=%v err=%v", fresh, err)
	}
}
