package postgres

import (
	"context"

	"github.com/lingvo-chat/chat-service/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type ParticipantRepository struct {
	db *pgxpool.Pool
}

func NewParticipantRepository(db *pgxpool.Pool) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

func (r *ParticipantRepository) Exists(ctx context.Context, roomID string, userID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM room_participants WHERE room_id=$1 AND user_id=$2 AND status='active')`,
		roomID, userID).Scan(&exists)
	return exists, err
}

// Add — защищён от гонок по лимиту участников комнаты.
// Два параллельных Add по одной комнате не пробьют cap (direct=2).
func (r *ParticipantRepository) Add(ctx context.Context, p *domain.Participant, maxParticipants int) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Блокируем строку комнаты. Параллельные транзакции по той же комнате будут ждать.
	var kind domain.RoomKind
	if err := tx.QueryRow(ctx, `SELECT kind FROM rooms WHERE id=$1 FOR UPDATE`, p.RoomID).Scan(&kind); err != nil {
		return err
	}

	var count int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM room_participants WHERE room_id=$1`, p.RoomID).Scan(&count); err != nil {
		return err
	}
	if maxParticipants > 0 && count >= maxParticipants {
		return domain.ErrRoomFull
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO room_participants (room_id, user_id, status)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, p.RoomID, p.UserID, p.Status); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Accept переводит invited-слот direct-комнаты в active.
func (r *ParticipantRepository) Accept(ctx context.Context, roomID string, userID int64) error {
	cmd, err := r.db.Exec(ctx,
		`UPDATE room_participants SET status='active', joined_at=now() WHERE room_id=$1 AND user_id=$2 AND status='invited'`,
		roomID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotInvited
	}
	return nil
}

func (r *ParticipantRepository) Leave(ctx context.Context, roomID string, userID int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM room_participants WHERE room_id=$1 AND user_id=$2`, roomID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotInRoom
	}
	return nil
}

func (r *ParticipantRepository) ListByRoom(ctx context.Context, roomID string) ([]domain.Participant, error) {
	rows, err := r.db.Query(ctx,
		`SELECT room_id, user_id, status, joined_at, last_seen FROM room_participants WHERE room_id=$1 ORDER BY joined_at ASC`,
		roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.RoomID, &p.UserID, &p.Status, &p.JoinedAt, &p.LastSeen); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// ListRecipients — активные участники с актуальным языком из users.
// Читается на момент dispatch, на сообщении язык не кэшируется.
func (r *ParticipantRepository) ListRecipients(ctx context.Context, roomID string) ([]domain.Recipient, error) {
	const q = `
SELECT p.user_id, u.preferred_language
FROM room_participants AS p
JOIN users AS u ON u.id = p.user_id
WHERE p.room_id = $1 AND p.status = 'active'
ORDER BY p.joined_at;
`
	rows, err := r.db.Query(ctx, q, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Recipient, 0, 8)
	for rows.Next() {
		var rc domain.Recipient
		if err := rows.Scan(&rc.UserID, &rc.Language); err != nil {
			return nil, err
		}
		out = append(out, rc)
	}

	return out, rows.Err()
}

func (r *ParticipantRepository) TouchHeartbeat(ctx context.Context, roomID string, userID int64) error {
	cmd, err := r.db.Exec(ctx,
		`UPDATE room_participants SET last_seen=now() WHERE room_id=$1 AND user_id=$2`,
		roomID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotInRoom
	}
	return nil
}
