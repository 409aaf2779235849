package domain

import "time"

// AssistantUserID — sender-идентификатор бота.
const AssistantUserID int64 = -1

type Message struct {
	ID               string            `db:"id"`
	RoomID           string            `db:"room_id"`
	SenderID         int64             `db:"sender_id"`
	Seq              int64             `db:"seq"` // строго растёт внутри комнаты
	OriginalLanguage string            `db:"original_language"`
	OriginalContent  string            `db:"original_content"`
	Translations     map[string]string `db:"translations"` // lang -> text, заполняется лениво
	AttachmentID     *string           `db:"attachment_id"`
	CreatedAt        time.Time         `db:"created_at"`
}

// ContentFor resolves the message body for a recipient language.
// The original-language slot is authoritative and never translated;
// a missing translation falls back to the original text.
func (m *Message) ContentFor(lang string) string {
	if lang == m.OriginalLanguage {
		return m.OriginalContent
	}
	if t, ok := m.Translations[lang]; ok && t != "" {
		return t
	}
	return m.OriginalContent
}

func (m *Message) FromAssistant() bool { return m.SenderID == AssistantUserID }
