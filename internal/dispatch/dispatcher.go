package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/lingvo-chat/chat-service/internal/domain"
	"github.com/lingvo-chat/chat-service/internal/translate"
	"github.com/lingvo-chat/chat-service/internal/transport/ws"
)

type MessageStore interface {
	Append(ctx context.Context, m *domain.Message) error
	SetTranslations(ctx context.Context, messageID string, translations map[string]string) error
}

type Resolver interface {
	Resolve(ctx context.Context, roomID string, kind domain.RoomKind) ([]domain.Recipient, error)
}

type Publisher interface {
	Publish(channel string, ev ws.Event) error
}

// Responder генерирует ответ бота для assistant-комнат.
type Responder interface {
	Reply(ctx context.Context, prompt, language string) (string, error)
}

// Dispatcher — конвейер send-а: персист -> получатели -> переводы по
// различным языкам -> публикация по user-каналам. Dispatch-и одной комнаты
// сериализованы per-room локом, поэтому порядок доставки совпадает с seq.
type Dispatcher struct {
	store      MessageStore
	resolver   Resolver
	translator translate.Translator
	publisher  Publisher
	responder  Responder // nil — assistant-комнаты отключены

	rooms sync.Map // roomID -> *sync.Mutex; живёт до конца процесса
}

func New(store MessageStore, resolver Resolver, translator translate.Translator, publisher Publisher, responder Responder) *Dispatcher {
	return &Dispatcher{
		store:      store,
		resolver:   resolver,
		translator: translator,
		publisher:  publisher,
		responder:  responder,
	}
}

func (d *Dispatcher) roomLock(roomID string) *sync.Mutex {
	v, _ := d.rooms.LoadOrStore(roomID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Dispatch проводит сообщение через весь конвейер.
// Ошибка персиста фатальна; ошибки переводов и публикаций — нет.
func (d *Dispatcher) Dispatch(ctx context.Context, senderID int64, roomID string, kind domain.RoomKind, content, sourceLang string, attachmentID *string) (*domain.Message, error) {
	if sourceLang == "" {
		lang, err := d.translator.DetectLanguage(ctx, content)
		if err != nil {
			slog.Warn("dispatch.DetectLanguage:", slog.Any("err", err))
			lang = "en"
		}
		sourceLang = lang
	}
	sourceLang = translate.NormalizeLang(sourceLang)

	mu := d.roomLock(roomID)
	mu.Lock()
	defer mu.Unlock()

	return d.dispatchLocked(ctx, senderID, roomID, kind, content, sourceLang, attachmentID)
}

func (d *Dispatcher) dispatchLocked(ctx context.Context, senderID int64, roomID string, kind domain.RoomKind, content, sourceLang string, attachmentID *string) (*domain.Message, error) {
	msg := &domain.Message{
		RoomID:           roomID,
		SenderID:         senderID,
		OriginalLanguage: sourceLang,
		OriginalContent:  content,
		AttachmentID:     attachmentID,
	}
	if err := d.store.Append(ctx, msg); err != nil {
		// ничего не опубликовано — send не состоялся
		return nil, fmt.Errorf("append message: %w", err)
	}

	recipients, err := d.resolver.Resolve(ctx, roomID, kind)
	if err != nil {
		// сообщение сохранено, но live-доставки не будет
		return msg, err
	}

	msg.Translations = d.translateAll(ctx, msg, recipients)

	if len(msg.Translations) > 0 {
		if err := d.store.SetTranslations(ctx, msg.ID, msg.Translations); err != nil {
			slog.Warn("dispatch.SetTranslations:", slog.Any("err", err))
		}
	}

	if kind == domain.KindAssistant && !msg.FromAssistant() {
		d.assistantBranch(ctx, msg, recipients)
		return msg, nil
	}

	d.fanOut(msg, recipients)
	return msg, nil
}

// translateAll зовёт переводчик один раз на каждый отличный от исходного
// язык получателей — не на каждого получателя. Неудавшийся язык просто
// не попадает в карту: получатель увидит оригинал.
func (d *Dispatcher) translateAll(ctx context.Context, msg *domain.Message, recipients []domain.Recipient) map[string]string {
	targets := make(map[string]struct{})
	for _, rc := range recipients {
		lang := translate.NormalizeLang(rc.Language)
		if lang == "" || lang == msg.OriginalLanguage {
			continue
		}
		targets[lang] = struct{}{}
	}
	if len(targets) == 0 {
		return nil
	}

	var mu sync.Mutex
	out := make(map[string]string, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	for lang := range targets {
		lang := lang
		g.Go(func() error {
			text, err := d.translator.Translate(gctx, msg.OriginalContent, msg.OriginalLanguage, lang)
			if err != nil {
				slog.Warn("dispatch.Translate:",
					"room", msg.RoomID, "msg", msg.ID, "lang", lang, slog.Any("err", err))
				return nil // деградация, не отмена остальных
			}
			mu.Lock()
			out[lang] = text
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// fanOut публикует per-user событие с контентом на языке получателя.
// Сбой одного получателя не трогает остальных; отправителю уходит error-событие.
func (d *Dispatcher) fanOut(msg *domain.Message, recipients []domain.Recipient) {
	for _, rc := range recipients {
		ev := ws.Event{
			Type:    ws.TypeNewMessage,
			Payload: messagePayload(msg, translate.NormalizeLang(rc.Language)),
		}
		if err := d.publisher.Publish(ws.UserChannel(rc.UserID), ev); err != nil {
			slog.Warn("dispatch.Publish:",
				"room", msg.RoomID, "msg", msg.ID, "recipient", rc.UserID, slog.Any("err", err))
			d.notifySendError(msg.SenderID, "delivery failed for message "+msg.ID)
		}
	}
}

// assistantBranch: человеку уходит эхо его сообщения, затем ответ бота
// проходит тот же конвейер от имени sentinel-отправителя.
func (d *Dispatcher) assistantBranch(ctx context.Context, msg *domain.Message, recipients []domain.Recipient) {
	human := recipients[0]
	d.fanOut(msg, recipients)

	prompt := msg.ContentFor(translate.NormalizeLang(human.Language))
	reply, err := d.responderReply(ctx, prompt, human.Language)
	if err != nil {
		slog.Error("dispatch.AssistantReply:", "room", msg.RoomID, slog.Any("err", err))
		d.notifySendError(human.UserID, "assistant is unavailable")
		return
	}

	// лок комнаты уже держим — без повторного Dispatch
	if _, err := d.dispatchLocked(ctx, domain.AssistantUserID, msg.RoomID, domain.KindAssistant,
		reply, translate.NormalizeLang(human.Language), nil); err != nil {
		slog.Error("dispatch.AssistantDispatch:", "room", msg.RoomID, slog.Any("err", err))
		d.notifySendError(human.UserID, "assistant reply was not delivered")
	}
}

func (d *Dispatcher) responderReply(ctx context.Context, prompt, language string) (string, error) {
	if d.responder == nil {
		return "", fmt.Errorf("assistant responder not configured")
	}
	return d.responder.Reply(ctx, prompt, language)
}

func (d *Dispatcher) notifySendError(userID int64, text string) {
	ev := ws.Event{Type: ws.TypeError, Payload: ws.ErrorPayload{Message: text}}
	if err := d.publisher.Publish(ws.UserChannel(userID), ev); err != nil {
		slog.Debug("dispatch.NotifyError:", "user", userID, slog.Any("err", err))
	}
}

func messagePayload(msg *domain.Message, lang string) ws.MessagePayload {
	if lang == "" {
		lang = msg.OriginalLanguage
	}
	content := msg.ContentFor(lang)
	if content == "" {
		content = msg.OriginalContent
	}
	resolved := lang
	if _, ok := msg.Translations[lang]; !ok && lang != msg.OriginalLanguage {
		resolved = msg.OriginalLanguage // fallback на оригинал
	}
	return ws.MessagePayload{
		MessageID:    msg.ID,
		RoomID:       msg.RoomID,
		SenderID:     strconv.FormatInt(msg.SenderID, 10),
		Seq:          msg.Seq,
		Language:     resolved,
		Content:      content,
		AttachmentID: msg.AttachmentID,
		TSUnix:       msg.CreatedAt.Unix(),
	}
}
