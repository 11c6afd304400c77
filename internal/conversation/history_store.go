package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const historyTTL = 24 * time.Hour

// HistoryCache keeps the model-facing turns of a session in Redis so a
// follow-up message does not need a database read.
type HistoryCache struct {
	redis  *redis.Client
	tracer trace.Tracer
}

// NewHistoryCache returns nil for a nil client; a nil cache is a no-op.
func NewHistoryCache(client *redis.Client) *HistoryCache {
	if client == nil {
		return nil
	}
	return &HistoryCache{
		redis:  client,
		tracer: otel.Tracer("medassist.internal.conversation.history"),
	}
}

// Save replaces the cached turns and refreshes the TTL.
func (c *HistoryCache) Save(ctx context.Context, sessionID string, history []ChatMessage) error {
	if c == nil {
		return nil
	}
	ctx, span := c.tracer.Start(ctx, "conversation.history.save")
	defer span.End()

	data, err := json.Marshal(history)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: marshal history: %w", err)
	}
	if err := c.redis.Set(ctx, historyKey(sessionID), data, historyTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: persist history: %w", err)
	}
	return nil
}

// Load returns the cached turns. ok is false on a cache miss.
func (c *HistoryCache) Load(ctx context.Context, sessionID string) (history []ChatMessage, ok bool, err error) {
	if c == nil {
		return nil, false, nil
	}
	ctx, span := c.tracer.Start(ctx, "conversation.history.load")
	defer span.End()

	data, err := c.redis.Get(ctx, historyKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, false, fmt.Errorf("conversation: load history: %w", err)
	}
	if err := json.Unmarshal(data, &history); err != nil {
		span.RecordError(err)
		return nil, false, fmt.Errorf("conversation: decode history: %w", err)
	}
	return history, true, nil
}

func historyKey(sessionID string) string {
	return fmt.Sprintf("chat:history:%s", sessionID)
}
