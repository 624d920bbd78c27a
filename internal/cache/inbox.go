package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"geonote/internal/models"
)

const inboxKeyPrefix = "inbox:"

// InboxCache keeps a short-lived copy of each recipient's inbox-all view
// in Redis. It is strictly an accelerator: any failure is logged and
// treated as a miss, never surfaced to the caller.
type InboxCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// New connects to Redis from a redis:// URL and verifies it with a ping.
func New(ctx context.Context, redisURL string, ttl time.Duration, logger *zap.Logger) (*InboxCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logger.Info("redis connection established", zap.String("addr", opts.Addr))
	return &InboxCache{client: client, ttl: ttl, logger: logger}, nil
}

func (c *InboxCache) Close() error {
	return c.client.Close()
}

func inboxKey(recipient uuid.UUID) string {
	return inboxKeyPrefix + recipient.String()
}

// Get returns the cached inbox for a recipient, or ok=false on miss.
func (c *InboxCache) Get(ctx context.Context, recipient uuid.UUID) ([]models.Message, bool) {
	raw, err := c.client.Get(ctx, inboxKey(recipient)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("inbox cache read failed", zap.Error(err))
		}
		return nil, false
	}

	var messages []models.Message
	if err := json.Unmarshal(raw, &messages); err != nil {
		c.logger.Warn("inbox cache entry corrupt, dropping", zap.Error(err))
		c.Invalidate(ctx, recipient)
		return nil, false
	}
	return messages, true
}

// Set stores a recipient's inbox with the configured TTL.
func (c *InboxCache) Set(ctx context.Context, recipient uuid.UUID, messages []models.Message) {
	raw, err := json.Marshal(messages)
	if err != nil {
		c.logger.Warn("inbox cache encode failed", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, inboxKey(recipient), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("inbox cache write failed", zap.Error(err))
	}
}

// Invalidate drops the cached inbox of the given recipients.
func (c *InboxCache) Invalidate(ctx context.Context, recipients ...uuid.UUID) {
	if len(recipients) == 0 {
		return
	}
	keys := make([]string, 0, len(recipients))
	for _, r := range recipients {
		keys = append(keys, inboxKey(r))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("inbox cache invalidation failed", zap.Error(err))
	}
}

// InvalidateAll drops every cached inbox. Used by delete-all, which
// cannot know the affected recipients up front.
func (c *InboxCache) InvalidateAll(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, inboxKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			c.logger.Warn("inbox cache invalidation failed", zap.Error(err))
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("inbox cache scan failed", zap.Error(err))
	}
}
