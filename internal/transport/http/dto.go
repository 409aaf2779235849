package http

import "time"

type ErrorResponse struct {
	Error string `json:"error"`
}

type CreateRoomRequest struct {
	Kind      string  `json:"kind"` // direct|group|assistant
	Name      string  `json:"name,omitempty"`
	InviteeID int64   `json:"invitee_id,omitempty"`
	MemberIDs []int64 `json:"member_ids,omitempty"`
}

type RoomItem struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	Name         string    `json:"name,omitempty"`
	OwnerID      string    `json:"owner_id,omitempty"`
	LastSeq      int64     `json:"last_seq"`
	LastActivity time.Time `json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
}

type RoomsListResponse struct {
	Items []RoomItem `json:"items"`
}

type SendRequest struct {
	RoomID       string  `json:"room_id"`
	RoomKind     string  `json:"room_kind"`
	Content      string  `json:"content"`
	Language     string  `json:"language,omitempty"` // пусто — определяем сами
	AttachmentID *string `json:"attachment_id,omitempty"`
}

type SendResponse struct {
	MessageID string `json:"message_id"`
	Seq       int64  `json:"seq"`
	Delivered bool   `json:"delivered"`
}

type JoinRequest struct {
	RoomID   string `json:"room_id"`
	RoomKind string `json:"room_kind"`
}

type JoinResponse struct {
	RoomID  string        `json:"room_id"`
	History []MessageItem `json:"history"`
}

type LeaveRequest struct {
	RoomID string `json:"room_id"`
}

type MessageItem struct {
	ID           string            `json:"id"`
	RoomID       string            `json:"room_id"`
	SenderID     string            `json:"sender_id"`
	Seq          int64             `json:"seq"`
	Language     string            `json:"language"`
	Content      string            `json:"content"`
	Translations map[string]string `json:"translations,omitempty"`
	AttachmentID *string           `json:"attachment_id,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

type HistoryResponse struct {
	Items      []MessageItem `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

type ReadRequest struct {
	MessageIDs []string `json:"message_ids"`
}

type TypingRequest struct {
	IsTyping bool `json:"is_typing"`
}

type ParticipantItem struct {
	UserID   string    `json:"user_id"`
	Status   string    `json:"status"`
	IsOnline bool      `json:"is_online"`
	JoinedAt time.Time `json:"joined_at"`
	LastSeen time.Time `json:"last_seen"`
}

type ParticipantsResponse struct {
	Items []ParticipantItem `json:"items"`
}

type TypingUsersResponse struct {
	UserIDs []string `json:"user_ids"`
}

type ReadReceiptsResponse struct {
	UserIDs []string `json:"user_ids"`
}
