package domain

import "time"

type RoomKind string

const (
	KindDirect    RoomKind = "direct"    // ровно 2 участника, может быть half-open
	KindGroup     RoomKind = "group"     // именованная, есть владелец
	KindAssistant RoomKind = "assistant" // 1 человек + бот
)

func (k RoomKind) Valid() bool {
	switch k {
	case KindDirect, KindGroup, KindAssistant:
		return true
	}
	return false
}

type Room struct {
	ID           string    `db:"id"`
	Kind         RoomKind  `db:"kind"`
	Name         string    `db:"name"` // только для групп
	OwnerID      *int64    `db:"owner_id"`
	LastSeq      int64     `db:"last_seq"`
	CreatedAt    time.Time `db:"created_at"`
	LastActivity time.Time `db:"last_activity"`
}

type ParticipantStatus string

const (
	ParticipantActive  ParticipantStatus = "active"
	ParticipantInvited ParticipantStatus = "invited" // half-open слот direct-комнаты
)

type Participant struct {
	RoomID   string            `db:"room_id"`
	UserID   int64             `db:"user_id"`
	Status   ParticipantStatus `db:"status"`
	JoinedAt time.Time         `db:"joined_at"`
	LastSeen time.Time         `db:"last_seen"`
}

// Recipient — участник на момент dispatch, с актуальным языком из users.
type Recipient struct {
	UserID   int64
	Language string
}
