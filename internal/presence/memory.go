package presence

import (
	"context"
	"sync"
	"time"

	"github.com/lingvo-chat/chat-service/internal/domain"
)

type typingEntry struct {
	timer *time.Timer
}

// MemoryTracker — in-process вариант для single-instance запуска и тестов.
// Typing-записи гасятся таймером через typingTTL.
type MemoryTracker struct {
	mu        sync.RWMutex
	online    map[int64]bool
	lastSeen  map[int64]time.Time
	typing    map[string]map[int64]*typingEntry // roomID -> userID -> entry
	typingTTL time.Duration
}

func NewMemoryTracker(typingTTL time.Duration) *MemoryTracker {
	if typingTTL <= 0 {
		typingTTL = 6 * time.Second
	}
	return &MemoryTracker{
		online:    make(map[int64]bool),
		lastSeen:  make(map[int64]time.Time),
		typing:    make(map[string]map[int64]*typingEntry),
		typingTTL: typingTTL,
	}
}

func (t *MemoryTracker) SetOnline(_ context.Context, userID int64, online bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if online {
		t.online[userID] = true
	} else {
		delete(t.online, userID)
	}
	t.lastSeen[userID] = time.Now()
	return nil
}

func (t *MemoryTracker) Get(_ context.Context, userID int64) (domain.Presence, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return domain.Presence{
		UserID:   userID,
		Online:   t.online[userID],
		LastSeen: t.lastSeen[userID],
	}, nil
}

func (t *MemoryTracker) SetTyping(_ context.Context, roomID string, userID int64, typing bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	room := t.typing[roomID]
	if !typing {
		if room != nil {
			if e, ok := room[userID]; ok {
				e.timer.Stop()
				delete(room, userID)
			}
			if len(room) == 0 {
				delete(t.typing, roomID)
			}
		}
		return nil
	}

	if room == nil {
		room = make(map[int64]*typingEntry)
		t.typing[roomID] = room
	}
	if e, ok := room[userID]; ok {
		// продлеваем окно
		e.timer.Reset(t.typingTTL)
		return nil
	}
	e := &typingEntry{}
	e.timer = time.AfterFunc(t.typingTTL, func() {
		t.expire(roomID, userID)
	})
	room[userID] = e
	return nil
}

func (t *MemoryTracker) expire(roomID string, userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if room, ok := t.typing[roomID]; ok {
		delete(room, userID)
		if len(room) == 0 {
			delete(t.typing, roomID)
		}
	}
}

func (t *MemoryTracker) TypingUsers(_ context.Context, roomID string) ([]int64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	room := t.typing[roomID]
	users := make([]int64, 0, len(room))
	for id := range room {
		users = append(users, id)
	}
	return users, nil
}
