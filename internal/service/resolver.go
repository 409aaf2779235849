package service

import (
	"context"
	"fmt"

	"github.com/lingvo-chat/chat-service/internal/domain"
	"github.com/lingvo-chat/chat-service/internal/postgres"
)

// RoomResolver отдаёт получателей сообщения с их актуальными языками.
// Язык читается на момент dispatch: пользователь мог сменить предпочтение
// между отправками.
type RoomResolver struct {
	roomRepo        *postgres.RoomRepository
	participantRepo *postgres.ParticipantRepository
}

func NewRoomResolver(roomRepo *postgres.RoomRepository, participantRepo *postgres.ParticipantRepository) *RoomResolver {
	return &RoomResolver{roomRepo: roomRepo, participantRepo: participantRepo}
}

// Resolve возвращает активных получателей комнаты.
//   - direct: оба участника; half-open комната (invited-слот не принят) —
//     ErrRoomNotReady, доставлять некому.
//   - group: текущее членство на момент вызова, без mid-flight гарантий.
//   - assistant: единственный человек; AI-ветку выбирает dispatcher по kind.
func (r *RoomResolver) Resolve(ctx context.Context, roomID string, kind domain.RoomKind) ([]domain.Recipient, error) {
	room, err := r.roomRepo.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if kind != "" && room.Kind != kind {
		return nil, domain.ErrKindMismatch
	}

	recipients, err := r.participantRepo.ListRecipients(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}

	switch room.Kind {
	case domain.KindDirect:
		if len(recipients) < 2 {
			return nil, domain.ErrRoomNotReady
		}
	case domain.KindAssistant:
		if len(recipients) != 1 {
			return nil, domain.ErrRoomNotReady
		}
	}
	return recipients, nil
}
