package quota

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lingvo-chat/chat-service/internal/domain"
)

// Gate — allow/deny по метрике на пользователя.
type Gate interface {
	Allow(ctx context.Context, userID int64, metric string) error
}

// RedisGate — fixed-window счётчики: INCR + EXPIRE на первом инкременте окна.
type RedisGate struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRedisGate(client *redis.Client, limit int, window time.Duration) *RedisGate {
	if window <= 0 {
		window = time.Minute
	}
	return &RedisGate{client: client, limit: limit, window: window}
}

func (g *RedisGate) Allow(ctx context.Context, userID int64, metric string) error {
	if g.limit <= 0 {
		return nil
	}
	bucket := time.Now().Unix() / int64(g.window/time.Second)
	key := "quota:" + metric + ":" + strconv.FormatInt(userID, 10) + ":" + strconv.FormatInt(bucket, 10)

	n, err := g.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("quota incr: %w", err)
	}
	if n == 1 {
		if err := g.client.Expire(ctx, key, g.window).Err(); err != nil {
			return fmt.Errorf("quota expire: %w", err)
		}
	}
	if n > int64(g.limit) {
		return domain.ErrQuotaExceeded
	}
	return nil
}

// NoopGate пропускает всё; для dev-конфигурации без Redis.
type NoopGate struct{}

func (NoopGate) Allow(context.Context, int64, string) error { return nil }
