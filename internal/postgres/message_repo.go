package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lingvo-chat/chat-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append сохраняет сообщение и выдаёт ему per-room seq в одной транзакции.
// Строка комнаты блокируется, поэтому seq строго растёт при параллельных send.
func (r *MessageRepository) Append(ctx context.Context, m *domain.Message) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		UPDATE rooms SET last_seq = last_seq + 1, last_activity = now()
		WHERE id = $1
		RETURNING last_seq
	`, m.RoomID).Scan(&m.Seq)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.ErrRoomNotFound
		}
		return err
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO room_messages (room_id, sender_id, seq, original_language, original_content, attachment_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, m.RoomID, m.SenderID, m.Seq, m.OriginalLanguage, m.OriginalContent, m.AttachmentID)
	if err := row.Scan(&m.ID, &m.CreatedAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// SetTranslations дописывает переводы в jsonb; оригинальный текст не трогается.
func (r *MessageRepository) SetTranslations(ctx context.Context, messageID string, translations map[string]string) error {
	if len(translations) == 0 {
		return nil
	}
	data, err := json.Marshal(translations)
	if err != nil {
		return fmt.Errorf("marshal translations: %w", err)
	}
	cmd, err := r.db.Exec(ctx,
		`UPDATE room_messages SET translations = translations || $2::jsonb WHERE id=$1`,
		messageID, data)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

// History возвращает историю комнаты с курсорной пагинацией (seq DESC).
func (r *MessageRepository) History(ctx context.Context, roomID, after string, limit int) ([]domain.Message, string, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	cur, err := DecodeCursor(after)
	if err != nil {
		return nil, "", fmt.Errorf("decode cursor: %w", err)
	}
	const baseQuery = `
		SELECT id, room_id, sender_id, seq, original_language, original_content, translations, attachment_id, created_at
		FROM room_messages
		WHERE room_id = $1
		  AND ($2::bigint IS NULL OR seq < $2)
		ORDER BY seq DESC
		LIMIT $3
	`

	var afterSeq any
	if cur != nil {
		afterSeq = cur.Seq
	}

	rows, err := r.db.Query(ctx, baseQuery, roomID, afterSeq, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var next string
	if len(out) == limit {
		last := out[len(out)-1]
		if c, e := EncodeCursor(Cursor{Seq: last.Seq, ID: last.ID}); e == nil {
			next = c
		}
	}
	return out, next, nil
}

func (r *MessageRepository) Get(ctx context.Context, id string) (*domain.Message, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, room_id, sender_id, seq, original_language, original_content, translations, attachment_id, created_at
		FROM room_messages WHERE id=$1
	`, id)
	m, err := scanMessage(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}
	return &m, nil
}

// MarkRead — read-receipts; повторное подтверждение не ошибка.
func (r *MessageRepository) MarkRead(ctx context.Context, userID int64, messageIDs []string) error {
	for _, id := range messageIDs {
		if _, err := r.db.Exec(ctx, `
			INSERT INTO message_reads (message_id, user_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, id, userID); err != nil {
			return err
		}
	}
	return nil
}

func (r *MessageRepository) ReadBy(ctx context.Context, messageID string) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT user_id FROM message_reads WHERE message_id=$1 ORDER BY read_at`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (domain.Message, error) {
	var m domain.Message
	var translations []byte
	if err := row.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Seq,
		&m.OriginalLanguage, &m.OriginalContent, &translations, &m.AttachmentID, &m.CreatedAt); err != nil {
		return m, err
	}
	if len(translations) > 0 {
		if err := json.Unmarshal(translations, &m.Translations); err != nil {
			return m, fmt.Errorf("decode translations: %w", err)
		}
	}
	return m, nil
}
