package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"tgrelay/internal/resolver"
)

const seenPrefix = "seen:"

// Client backs the chat-name cache and the feed seen-set with Redis.
type Client struct {
	rdb     *redis.Client
	seenTTL time.Duration
}

func New(addr string, seenTTL time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Client{rdb: rdb, seenTTL: seenTTL}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Chat names
func (c *Client) GetName(ctx context.Context, chatID int64) (string, bool, error) {
	name, err := c.rdb.Get(ctx, resolver.Key(chatID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return name, true, nil
}

func (c *Client) SetName(ctx context.Context, chatID int64, name string, ttl time.Duration) error {
	return c.rdb.Set(ctx, resolver.Key(chatID), name, ttl).Err()
}

// Feed items

// MarkSeen records key and reports whether it was new.
func (c *Client) MarkSeen(ctx context.Context, key string) (bool, error) {
	return c.rdb.SetNX(ctx, seenPrefix+key, 1, c.seenTTL).Result()
}
