package ws

import (
	"strconv"

	"github.com/lingvo-chat/chat-service/internal/domain"
)

// Типы событий, которые уходят клиентам
const (
	TypeNewMessage  = "newMessage"      // сообщение, уже на языке получателя
	TypeRoomHistory = "roomHistory"     // снапшот истории при join
	TypeOnline      = "onlineStatus"    // онлайн/оффлайн пользователя
	TypeTyping      = "typingIndicator" // набор текста в комнате
	TypeError       = "error"           // ошибка dispatch после персиста
)

// Типы кадров от клиента
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
)

type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type MessagePayload struct {
	MessageID    string  `json:"message_id"`
	RoomID       string  `json:"room_id"`
	SenderID     string  `json:"sender_id"`
	Seq          int64   `json:"seq"`
	Language     string  `json:"language"`
	Content      string  `json:"content"`
	AttachmentID *string `json:"attachment_id,omitempty"`
	TSUnix       int64   `json:"ts_unix"`
}

type HistoryPayload struct {
	RoomID   string           `json:"room_id"`
	Messages []MessagePayload `json:"messages"`
}

type OnlinePayload struct {
	UserID   string `json:"user_id"`
	IsOnline bool   `json:"is_online"`
}

type TypingPayload struct {
	ChatID   string `json:"chat_id"`
	UserID   string `json:"user_id"`
	IsTyping bool   `json:"is_typing"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// кадр подписки от клиента
type SubscribePayload struct {
	Channel string `json:"channel"`
}

type TypingRequest struct {
	ChatID   string `json:"chat_id"`
	RoomKind string `json:"room_kind"`
	IsTyping bool   `json:"is_typing"`
}

// --- имена каналов ---

const StatusChannel = "status"

func UserChannel(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10)
}

func RoomChannel(kind domain.RoomKind, roomID string) string {
	return "room:" + string(kind) + ":" + roomID
}
