package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lingvo-chat/chat-service/internal/domain"
	"github.com/lingvo-chat/chat-service/internal/postgres"
)

const groupMaxParticipants = 256

type RoomService struct {
	roomRepo        *postgres.RoomRepository
	participantRepo *postgres.ParticipantRepository
}

func NewRoomService(roomRepo *postgres.RoomRepository, participantRepo *postgres.ParticipantRepository) *RoomService {
	return &RoomService{roomRepo: roomRepo, participantRepo: participantRepo}
}

// CreateDirect создаёт one-on-one комнату в half-open состоянии:
// создатель active, приглашённый invited до акцепта.
func (s *RoomService) CreateDirect(ctx context.Context, creatorID, inviteeID int64) (*domain.Room, error) {
	if creatorID == inviteeID {
		return nil, errors.New("cannot invite self")
	}
	room := &domain.Room{Kind: domain.KindDirect}
	if err := s.roomRepo.Create(ctx, room); err != nil {
		return nil, fmt.Errorf("roomRepo.Create: %w", err)
	}

	creator := &domain.Participant{RoomID: room.ID, UserID: creatorID, Status: domain.ParticipantActive}
	if err := s.participantRepo.Add(ctx, creator, 2); err != nil {
		return nil, fmt.Errorf("add creator: %w", err)
	}
	invitee := &domain.Participant{RoomID: room.ID, UserID: inviteeID, Status: domain.ParticipantInvited}
	if err := s.participantRepo.Add(ctx, invitee, 2); err != nil {
		return nil, fmt.Errorf("add invitee: %w", err)
	}
	return room, nil
}

func (s *RoomService) CreateGroup(ctx context.Context, ownerID int64, name string, memberIDs []int64) (*domain.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("group name is required")
	}
	room := &domain.Room{Kind: domain.KindGroup, Name: name, OwnerID: &ownerID}
	if err := s.roomRepo.Create(ctx, room); err != nil {
		return nil, fmt.Errorf("roomRepo.Create: %w", err)
	}

	owner := &domain.Participant{RoomID: room.ID, UserID: ownerID, Status: domain.ParticipantActive}
	if err := s.participantRepo.Add(ctx, owner, groupMaxParticipants); err != nil {
		return nil, fmt.Errorf("add owner: %w", err)
	}
	for _, id := range memberIDs {
		if id == ownerID {
			continue
		}
		p := &domain.Participant{RoomID: room.ID, UserID: id, Status: domain.ParticipantActive}
		if err := s.participantRepo.Add(ctx, p, groupMaxParticipants); err != nil {
			return nil, fmt.Errorf("add member %d: %w", id, err)
		}
	}
	return room, nil
}

// CreateAssistant — комната один человек + бот; бот не хранится участником.
func (s *RoomService) CreateAssistant(ctx context.Context, userID int64) (*domain.Room, error) {
	room := &domain.Room{Kind: domain.KindAssistant}
	if err := s.roomRepo.Create(ctx, room); err != nil {
		return nil, fmt.Errorf("roomRepo.Create: %w", err)
	}
	p := &domain.Participant{RoomID: room.ID, UserID: userID, Status: domain.ParticipantActive}
	if err := s.participantRepo.Add(ctx, p, 1); err != nil {
		return nil, fmt.Errorf("add participant: %w", err)
	}
	return room, nil
}

// AcceptInvite закрывает half-open слот direct-комнаты.
func (s *RoomService) AcceptInvite(ctx context.Context, roomID string, userID int64) error {
	room, err := s.roomRepo.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if room.Kind != domain.KindDirect {
		return domain.ErrKindMismatch
	}
	return s.participantRepo.Accept(ctx, roomID, userID)
}

func (s *RoomService) GetRoom(ctx context.Context, id string) (*domain.Room, error) {
	return s.roomRepo.Get(ctx, id)
}

func (s *RoomService) ListRooms(ctx context.Context, userID int64, limit int) ([]domain.Room, error) {
	return s.roomRepo.ListByUser(ctx, userID, limit)
}

// Leave убирает участника. Пустая комната удаляется; если ушёл владелец
// группы — владение переходит к самому раннему из оставшихся.
func (s *RoomService) Leave(ctx context.Context, roomID string, userID int64) error {
	room, err := s.roomRepo.Get(ctx, roomID)
	if err != nil {
		return err
	}

	if err := s.participantRepo.Leave(ctx, roomID, userID); err != nil {
		return err
	}

	rest, err := s.participantRepo.ListByRoom(ctx, roomID)
	if err != nil {
		return fmt.Errorf("list after leave: %w", err)
	}
	if len(rest) == 0 {
		return s.roomRepo.Delete(ctx, roomID)
	}

	if room.Kind == domain.KindGroup && room.OwnerID != nil && *room.OwnerID == userID {
		// ListByRoom отсортирован по joined_at
		if err := s.roomRepo.TransferOwner(ctx, roomID, rest[0].UserID); err != nil {
			return fmt.Errorf("transfer owner: %w", err)
		}
	}
	return nil
}
