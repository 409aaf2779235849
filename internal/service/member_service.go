package service

import (
	"context"

	"github.com/lingvo-chat/chat-service/internal/domain"
	"github.com/lingvo-chat/chat-service/internal/postgres"
)

type MemberService struct {
	roomRepo        *postgres.RoomRepository
	participantRepo *postgres.ParticipantRepository
}

func NewMemberService(roomRepo *postgres.RoomRepository, participantRepo *postgres.ParticipantRepository) *MemberService {
	return &MemberService{
		roomRepo:        roomRepo,
		participantRepo: participantRepo,
	}
}

// JoinRoom добавляет участника в group-комнату. Для direct используется
// AcceptInvite, для assistant комната создаётся сразу с участником.
func (s *MemberService) JoinRoom(ctx context.Context, roomID string, userID int64) (*domain.Participant, error) {
	room, err := s.roomRepo.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.Kind != domain.KindGroup {
		return nil, domain.ErrKindMismatch
	}

	exists, err := s.participantRepo.Exists(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrAlreadyJoined
	}

	p := &domain.Participant{
		RoomID: roomID,
		UserID: userID,
		Status: domain.ParticipantActive,
	}
	if err := s.participantRepo.Add(ctx, p, groupMaxParticipants); err != nil {
		return nil, err
	}
	return p, nil
}

// IsMember — проверка для авторизации подписки на room-канал.
func (s *MemberService) IsMember(ctx context.Context, roomID string, userID int64) (bool, error) {
	return s.participantRepo.Exists(ctx, roomID, userID)
}

func (s *MemberService) ListParticipants(ctx context.Context, roomID string) ([]domain.Participant, error) {
	return s.participantRepo.ListByRoom(ctx, roomID)
}

func (s *MemberService) TouchHeartbeat(ctx context.Context, roomID string, userID int64) error {
	return s.participantRepo.TouchHeartbeat(ctx, roomID, userID)
}
