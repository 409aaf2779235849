package postgres

import (
	"context"

	"github.com/lingvo-chat/chat-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RoomRepository struct {
	db *pgxpool.Pool
}

func NewRoomRepository(db *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{db: db}
}

func (r *RoomRepository) Create(ctx context.Context, room *domain.Room) error {
	query := `
		INSERT INTO rooms (kind, name, owner_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, last_activity`
	err := r.db.QueryRow(ctx, query, room.Kind, room.Name, room.OwnerID).
		Scan(&room.ID, &room.CreatedAt, &room.LastActivity)
	if err != nil {
		return err
	}
	return nil
}

func (r *RoomRepository) Get(ctx context.Context, id string) (*domain.Room, error) {
	var rm domain.Room
	query := `SELECT id, kind, name, owner_id, last_seq, created_at, last_activity FROM rooms WHERE id=$1`
	err := r.db.QueryRow(ctx, query, id).
		Scan(&rm.ID, &rm.Kind, &rm.Name, &rm.OwnerID, &rm.LastSeq, &rm.CreatedAt, &rm.LastActivity)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrRoomNotFound
		}
		return nil, err
	}
	return &rm, nil
}

// ListByUser — комнаты пользователя для chat-list, свежие сверху.
func (r *RoomRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]domain.Room, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT rm.id, rm.kind, rm.name, rm.owner_id, rm.last_seq, rm.created_at, rm.last_activity
		FROM rooms rm
		JOIN room_participants p ON p.room_id = rm.id
		WHERE p.user_id = $1
		ORDER BY rm.last_activity DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []domain.Room
	for rows.Next() {
		var rm domain.Room
		if err := rows.Scan(&rm.ID, &rm.Kind, &rm.Name, &rm.OwnerID, &rm.LastSeq, &rm.CreatedAt, &rm.LastActivity); err != nil {
			return nil, err
		}
		rooms = append(rooms, rm)
	}
	return rooms, rows.Err()
}

func (r *RoomRepository) TransferOwner(ctx context.Context, roomID string, newOwner int64) error {
	cmd, err := r.db.Exec(ctx, `UPDATE rooms SET owner_id=$2 WHERE id=$1`, roomID, newOwner)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

func (r *RoomRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM rooms WHERE id=$1`, id)
	return err
}
