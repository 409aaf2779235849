package service

import (
	"context"

	"github.com/lingvo-chat/chat-service/internal/domain"
)

// MessageStore — срез репозитория сообщений, нужный сервису.
type MessageStore interface {
	History(ctx context.Context, roomID, after string, limit int) ([]domain.Message, string, error)
	Get(ctx context.Context, id string) (*domain.Message, error)
	MarkRead(ctx context.Context, userID int64, messageIDs []string) error
	ReadBy(ctx context.Context, messageID string) ([]int64, error)
}

type MessageService struct {
	messageRepo MessageStore
}

func NewMessageService(messageRepo MessageStore) *MessageService {
	return &MessageService{messageRepo: messageRepo}
}

func (s *MessageService) History(ctx context.Context, roomID, after string, limit int) ([]domain.Message, string, error) {
	return s.messageRepo.History(ctx, roomID, after, limit)
}

// MarkRead подтверждает прочтение. Каждый id сверяется с roomID: receipt
// нельзя вставить в чужую комнату по угаданному id сообщения.
func (s *MessageService) MarkRead(ctx context.Context, roomID string, userID int64, messageIDs []string) error {
	for _, id := range messageIDs {
		m, err := s.messageRepo.Get(ctx, id)
		if err != nil {
			return err
		}
		if m.RoomID != roomID {
			return domain.ErrMessageNotFound
		}
	}
	return s.messageRepo.MarkRead(ctx, userID, messageIDs)
}

// ReadReceipts — кто прочитал сообщение. roomID сверяется, чтобы не
// подсматривать receipts чужих комнат по угаданному id.
func (s *MessageService) ReadReceipts(ctx context.Context, roomID, messageID string) ([]int64, error) {
	m, err := s.messageRepo.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if m.RoomID != roomID {
		return nil, domain.ErrMessageNotFound
	}
	return s.messageRepo.ReadBy(ctx, messageID)
}
