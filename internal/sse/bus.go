package sse

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/arcanelabs/tarot-backend/internal/logger"
	"github.com/arcanelabs/tarot-backend/internal/utils"
)

// Bus mirrors reading events onto a redis pub/sub channel so sibling
// instances (or an ops tail) can observe in-flight readings. Mirroring is
// fire-and-forget: publish failures are logged, never surfaced.
type Bus struct {
	log    *logger.Logger
	client *redis.Client
}

// NewBus returns nil when REDIS_ADDR is unset; a nil *Bus is safe to call.
func NewBus(log *logger.Logger) *Bus {
	addr := utils.GetEnv("REDIS_ADDR", "", log)
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: utils.GetEnv("REDIS_PASSWORD", "", log),
		DB:       utils.GetEnvAsInt("REDIS_DB", 0, log),
	})
	return &Bus{log: log.With("component", "SSEBus"), client: client}
}

func (b *Bus) Publish(ctx context.Context, readingID string, ev Event) {
	if b == nil {
		return
	}
	raw, err := ev.Marshal()
	if err != nil {
		return
	}
	if err := b.client.Publish(ctx, "reading:"+readingID, raw).Err(); err != nil {
		b.log.Warn("Event mirror publish failed", "reading_id", readingID, "error", err)
	}
}

func (b *Bus) Close() error {
	if b == nil {
		return nil
	}
	return b.client.Close()
}
