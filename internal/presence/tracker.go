package presence

import (
	"context"

	"github.com/lingvo-chat/chat-service/internal/domain"
)

// Tracker — эфемерное состояние online/last-seen и typing-наборы комнат.
// Записи пересоздаются на каждом подключении; typing-флаг обязан гаснуть
// сам по истечении TTL, даже если stop-событие потерялось.
type Tracker interface {
	SetOnline(ctx context.Context, userID int64, online bool) error
	Get(ctx context.Context, userID int64) (domain.Presence, error)

	SetTyping(ctx context.Context, roomID string, userID int64, typing bool) error
	TypingUsers(ctx context.Context, roomID string) ([]int64, error)
}
