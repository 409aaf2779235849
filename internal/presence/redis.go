package presence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lingvo-chat/chat-service/internal/domain"
)

const keyPrefix = "presence:"

// RedisTracker хранит presence в Redis: переживает рестарт инстанса и
// работает при нескольких репликах сервиса. Typing-ключи живут typingTTL
// и гаснут сами.
type RedisTracker struct {
	client    *redis.Client
	typingTTL time.Duration
}

func NewRedisTracker(client *redis.Client, typingTTL time.Duration) *RedisTracker {
	if typingTTL <= 0 {
		typingTTL = 6 * time.Second
	}
	return &RedisTracker{client: client, typingTTL: typingTTL}
}

func onlineKey(userID int64) string {
	return keyPrefix + "online:" + strconv.FormatInt(userID, 10)
}

func lastSeenKey(userID int64) string {
	return keyPrefix + "seen:" + strconv.FormatInt(userID, 10)
}

func typingKey(roomID string, userID int64) string {
	return keyPrefix + "typing:" + roomID + ":" + strconv.FormatInt(userID, 10)
}

func (t *RedisTracker) SetOnline(ctx context.Context, userID int64, online bool) error {
	now := time.Now().Unix()
	pipe := t.client.Pipeline()
	if online {
		pipe.Set(ctx, onlineKey(userID), "1", 0)
	} else {
		pipe.Del(ctx, onlineKey(userID))
	}
	pipe.Set(ctx, lastSeenKey(userID), now, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("presence set online: %w", err)
	}
	return nil
}

func (t *RedisTracker) Get(ctx context.Context, userID int64) (domain.Presence, error) {
	p := domain.Presence{UserID: userID}

	online, err := t.client.Exists(ctx, onlineKey(userID)).Result()
	if err != nil {
		return p, fmt.Errorf("presence get: %w", err)
	}
	p.Online = online > 0

	seen, err := t.client.Get(ctx, lastSeenKey(userID)).Int64()
	if err != nil && err != redis.Nil {
		return p, fmt.Errorf("presence get last seen: %w", err)
	}
	if seen > 0 {
		p.LastSeen = time.Unix(seen, 0)
	}
	return p, nil
}

func (t *RedisTracker) SetTyping(ctx context.Context, roomID string, userID int64, typing bool) error {
	key := typingKey(roomID, userID)
	if typing {
		if err := t.client.Set(ctx, key, "1", t.typingTTL).Err(); err != nil {
			return fmt.Errorf("presence set typing: %w", err)
		}
		return nil
	}
	if err := t.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("presence clear typing: %w", err)
	}
	return nil
}

func (t *RedisTracker) TypingUsers(ctx context.Context, roomID string) ([]int64, error) {
	pattern := keyPrefix + "typing:" + roomID + ":*"
	prefixLen := len(keyPrefix + "typing:" + roomID + ":")

	var users []int64
	var cursor uint64
	for {
		keys, next, err := t.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("presence scan typing: %w", err)
		}
		for _, k := range keys {
			if id, err := strconv.ParseInt(k[prefixLen:], 10, 64); err == nil {
				users = append(users, id)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return users, nil
}
