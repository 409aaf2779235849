package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/lingvo-chat/chat-service/internal/domain"
	"github.com/lingvo-chat/chat-service/internal/postgres"
	"github.com/lingvo-chat/chat-service/internal/presence"
	"github.com/lingvo-chat/chat-service/internal/quota"
	httpmw "github.com/lingvo-chat/chat-service/internal/transport/http/middleware"
	"github.com/lingvo-chat/chat-service/internal/transport/ws"

	"github.com/go-chi/chi/v5"
)

// Dispatcher — конвейер persist→translate→fan-out.
type Dispatcher interface {
	Dispatch(ctx context.Context, senderID int64, roomID string, kind domain.RoomKind, content, sourceLang string, attachmentID *string) (*domain.Message, error)
}

// Publisher публикует ws-события в каналы.
type Publisher interface {
	Publish(channel string, ev ws.Event) error
}

type RoomSvc interface {
	CreateDirect(ctx context.Context, creatorID, inviteeID int64) (*domain.Room, error)
	CreateGroup(ctx context.Context, ownerID int64, name string, memberIDs []int64) (*domain.Room, error)
	CreateAssistant(ctx context.Context, userID int64) (*domain.Room, error)
	AcceptInvite(ctx context.Context, roomID string, userID int64) error
	GetRoom(ctx context.Context, id string) (*domain.Room, error)
	ListRooms(ctx context.Context, userID int64, limit int) ([]domain.Room, error)
	Leave(ctx context.Context, roomID string, userID int64) error
}

type MemberSvc interface {
	JoinRoom(ctx context.Context, roomID string, userID int64) (*domain.Participant, error)
	IsMember(ctx context.Context, roomID string, userID int64) (bool, error)
	ListParticipants(ctx context.Context, roomID string) ([]domain.Participant, error)
}

type MessageSvc interface {
	History(ctx context.Context, roomID, after string, limit int) ([]domain.Message, string, error)
	MarkRead(ctx context.Context, roomID string, userID int64, messageIDs []string) error
	ReadReceipts(ctx context.Context, roomID, messageID string) ([]int64, error)
}

type Handler struct {
	roomSvc   RoomSvc
	memberSvc MemberSvc
	msgSvc    MessageSvc
	dispatch  Dispatcher
	quota     quota.Gate
	presence  presence.Tracker
	pub       Publisher
}

func NewHandler(room RoomSvc, member MemberSvc, msg MessageSvc,
	d Dispatcher, gate quota.Gate, tracker presence.Tracker, pub Publisher) *Handler {
	return &Handler{
		roomSvc:   room,
		memberSvc: member,
		msgSvc:    msg,
		dispatch:  d,
		quota:     gate,
		presence:  tracker,
		pub:       pub,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// POST /send
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}
	kind := domain.RoomKind(req.RoomKind)
	if req.RoomID == "" || req.Content == "" || !kind.Valid() {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "room_id, room_kind and content are required"})
		return
	}

	if err := h.quota.Allow(r.Context(), userID, "send"); err != nil {
		if errors.Is(err, domain.ErrQuotaExceeded) {
			writeJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: "send quota exceeded"})
			return
		}
		slog.Error("handler.Send.Quota:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	ok, err := h.memberSvc.IsMember(r.Context(), req.RoomID, userID)
	if err != nil {
		slog.Error("handler.Send.IsMember:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	if !ok {
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "not in room"})
		return
	}

	msg, err := h.dispatch.Dispatch(r.Context(), userID, req.RoomID, kind, req.Content, req.Language, req.AttachmentID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, SendResponse{MessageID: msg.ID, Seq: msg.Seq, Delivered: true})
	case errors.Is(err, domain.ErrRoomNotReady):
		// сообщение сохранено, доставка будет после accept
		writeJSON(w, http.StatusAccepted, SendResponse{MessageID: msg.ID, Seq: msg.Seq, Delivered: false})
	case errors.Is(err, domain.ErrRoomNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "room not found"})
	case errors.Is(err, domain.ErrKindMismatch):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "room kind mismatch"})
	default:
		slog.Error("handler.Send:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}

// POST /join
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	var req JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	// действующий участник любой комнаты получает историю без insert-а;
	// вступление с нуля возможно только в группы
	member, err := h.memberSvc.IsMember(r.Context(), req.RoomID, userID)
	if err != nil {
		slog.Error("handler.Join.IsMember:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	if !member {
		if _, err := h.memberSvc.JoinRoom(r.Context(), req.RoomID, userID); err != nil {
			switch {
			case errors.Is(err, domain.ErrRoomNotFound):
				writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "room not found"})
				return
			case errors.Is(err, domain.ErrRoomFull):
				writeJSON(w, http.StatusConflict, ErrorResponse{Error: "room full"})
				return
			case errors.Is(err, domain.ErrKindMismatch):
				writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "membership is by invite only"})
				return
			case errors.Is(err, domain.ErrAlreadyJoined):
				// гонка с параллельным join — считаем успехом
			default:
				slog.Error("handler.Join:", slog.Any("err", err))
				writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
				return
			}
		}
	}

	items, _, err := h.msgSvc.History(r.Context(), req.RoomID, "", 50)
	if err != nil {
		slog.Error("handler.Join.History:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	resp := JoinResponse{RoomID: req.RoomID, History: make([]MessageItem, 0, len(items))}
	histPayload := ws.HistoryPayload{RoomID: req.RoomID}
	for _, m := range items {
		resp.History = append(resp.History, messageItem(m))
		histPayload.Messages = append(histPayload.Messages, ws.MessagePayload{
			MessageID: m.ID,
			RoomID:    m.RoomID,
			SenderID:  strconv.FormatInt(m.SenderID, 10),
			Seq:       m.Seq,
			Language:  m.OriginalLanguage,
			Content:   m.OriginalContent,
			TSUnix:    m.CreatedAt.Unix(),
		})
	}
	kind := domain.RoomKind(req.RoomKind)
	if kind.Valid() {
		if err := h.pub.Publish(ws.RoomChannel(kind, req.RoomID), ws.Event{Type: ws.TypeRoomHistory, Payload: histPayload}); err != nil {
			slog.Debug("handler.Join.Publish:", slog.Any("err", err))
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// POST /leave
func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	var req LeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	if err := h.roomSvc.Leave(r.Context(), req.RoomID, userID); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotInRoom):
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "user not in room"})
		case errors.Is(err, domain.ErrRoomNotFound):
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "room not found"})
		default:
			slog.Error("handler.Leave:", slog.Any("err", err))
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "left"})
}

// POST /rooms
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	var (
		room *domain.Room
		err  error
	)
	switch domain.RoomKind(req.Kind) {
	case domain.KindDirect:
		if req.InviteeID == 0 || req.InviteeID == userID {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invitee_id is required"})
			return
		}
		room, err = h.roomSvc.CreateDirect(r.Context(), userID, req.InviteeID)
	case domain.KindGroup:
		if req.Name == "" {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "name is required for group"})
			return
		}
		room, err = h.roomSvc.CreateGroup(r.Context(), userID, req.Name, req.MemberIDs)
	case domain.KindAssistant:
		room, err = h.roomSvc.CreateAssistant(r.Context(), userID)
	default:
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "unknown room kind"})
		return
	}
	if err != nil {
		slog.Error("handler.CreateRoom:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, roomItem(room))
}

// GET /rooms
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}

	rooms, err := h.roomSvc.ListRooms(r.Context(), userID, limit)
	if err != nil {
		slog.Error("handler.ListRooms:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	resp := RoomsListResponse{Items: make([]RoomItem, 0, len(rooms))}
	for i := range rooms {
		resp.Items = append(resp.Items, roomItem(&rooms[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

// POST /rooms/{id}/accept
func (h *Handler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	userID := httpmw.UserIDFromCtx(r.Context())

	if err := h.roomSvc.AcceptInvite(r.Context(), roomID, userID); err != nil {
		switch {
		case errors.Is(err, domain.ErrRoomNotFound):
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "room not found"})
		case errors.Is(err, domain.ErrNotInvited):
			writeJSON(w, http.StatusConflict, ErrorResponse{Error: "no pending invite"})
		default:
			slog.Error("handler.AcceptInvite:", slog.Any("err", err))
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// GET /rooms/{id}/messages?after=&limit=
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	userID := httpmw.UserIDFromCtx(r.Context())

	ok, err := h.memberSvc.IsMember(r.Context(), roomID, userID)
	if err != nil {
		slog.Error("handler.GetMessages.IsMember:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	if !ok {
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "not in room"})
		return
	}

	after := r.URL.Query().Get("after")
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}

	items, next, err := h.msgSvc.History(r.Context(), roomID, after, limit)
	if err != nil {
		if errors.Is(err, postgres.ErrInvalidCursor) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_cursor"})
			return
		}
		slog.Error("handler.GetMessages:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	resp := HistoryResponse{Items: make([]MessageItem, 0, len(items)), NextCursor: next}
	for _, m := range items {
		resp.Items = append(resp.Items, messageItem(m))
	}

	writeJSON(w, http.StatusOK, resp)
}

// POST /rooms/{id}/read
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	userID := httpmw.UserIDFromCtx(r.Context())
	var req ReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.MessageIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "message_ids are required"})
		return
	}

	ok, err := h.memberSvc.IsMember(r.Context(), roomID, userID)
	if err != nil {
		slog.Error("handler.MarkRead.IsMember:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	if !ok {
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "not in room"})
		return
	}

	if err := h.msgSvc.MarkRead(r.Context(), roomID, userID, req.MessageIDs); err != nil {
		if errors.Is(err, domain.ErrMessageNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "message not found"})
			return
		}
		slog.Error("handler.MarkRead:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

// POST /rooms/{id}/typing
func (h *Handler) Typing(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	userID := httpmw.UserIDFromCtx(r.Context())
	var req TypingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	room, err := h.roomSvc.GetRoom(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		slog.Error("handler.Typing:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.presence.SetTyping(r.Context(), roomID, userID, req.IsTyping); err != nil {
		slog.Warn("handler.Typing.SetTyping:", slog.Any("err", err))
	}
	ev := ws.Event{Type: ws.TypeTyping, Payload: ws.TypingPayload{
		ChatID:   roomID,
		UserID:   strconv.FormatInt(userID, 10),
		IsTyping: req.IsTyping,
	}}
	if err := h.pub.Publish(ws.RoomChannel(room.Kind, roomID), ev); err != nil {
		slog.Debug("handler.Typing.Publish:", slog.Any("err", err))
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /rooms/{id}/participants
func (h *Handler) GetParticipants(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	userID := httpmw.UserIDFromCtx(r.Context())

	ok, err := h.memberSvc.IsMember(r.Context(), roomID, userID)
	if err != nil {
		slog.Error("handler.GetParticipants.IsMember:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	if !ok {
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "not in room"})
		return
	}

	items, err := h.memberSvc.ListParticipants(r.Context(), roomID)
	if err != nil {
		slog.Error("handler.GetParticipants:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	resp := ParticipantsResponse{Items: make([]ParticipantItem, 0, len(items))}
	for _, p := range items {
		it := ParticipantItem{
			UserID:   strconv.FormatInt(p.UserID, 10),
			Status:   string(p.Status),
			JoinedAt: p.JoinedAt,
			LastSeen: p.LastSeen,
		}
		// онлайн-флаг — best-effort из presence
		if pr, err := h.presence.Get(r.Context(), p.UserID); err == nil {
			it.IsOnline = pr.Online
		}
		resp.Items = append(resp.Items, it)
	}

	writeJSON(w, http.StatusOK, resp)
}

// GET /rooms/{id}/typing
func (h *Handler) GetTyping(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	userID := httpmw.UserIDFromCtx(r.Context())

	ok, err := h.memberSvc.IsMember(r.Context(), roomID, userID)
	if err != nil {
		slog.Error("handler.GetTyping.IsMember:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	if !ok {
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "not in room"})
		return
	}

	ids, err := h.presence.TypingUsers(r.Context(), roomID)
	if err != nil {
		slog.Error("handler.GetTyping:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	resp := TypingUsersResponse{UserIDs: make([]string, 0, len(ids))}
	for _, id := range ids {
		resp.UserIDs = append(resp.UserIDs, strconv.FormatInt(id, 10))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GET /rooms/{id}/messages/{mid}/reads
func (h *Handler) GetReadReceipts(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	messageID := chi.URLParam(r, "mid")
	userID := httpmw.UserIDFromCtx(r.Context())

	ok, err := h.memberSvc.IsMember(r.Context(), roomID, userID)
	if err != nil {
		slog.Error("handler.GetReadReceipts.IsMember:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	if !ok {
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "not in room"})
		return
	}

	ids, err := h.msgSvc.ReadReceipts(r.Context(), roomID, messageID)
	if err != nil {
		if errors.Is(err, domain.ErrMessageNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "message not found"})
			return
		}
		slog.Error("handler.GetReadReceipts:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	resp := ReadReceiptsResponse{UserIDs: make([]string, 0, len(ids))}
	for _, id := range ids {
		resp.UserIDs = append(resp.UserIDs, strconv.FormatInt(id, 10))
	}

	writeJSON(w, http.StatusOK, resp)
}

func roomItem(rm *domain.Room) RoomItem {
	it := RoomItem{
		ID:           rm.ID,
		Kind:         string(rm.Kind),
		Name:         rm.Name,
		LastSeq:      rm.LastSeq,
		LastActivity: rm.LastActivity,
		CreatedAt:    rm.CreatedAt,
	}
	if rm.OwnerID != nil {
		it.OwnerID = strconv.FormatInt(*rm.OwnerID, 10)
	}
	return it
}

func messageItem(m domain.Message) MessageItem {
	return MessageItem{
		ID:           m.ID,
		RoomID:       m.RoomID,
		SenderID:     strconv.FormatInt(m.SenderID, 10),
		Seq:          m.Seq,
		Language:     m.OriginalLanguage,
		Content:      m.OriginalContent,
		Translations: m.Translations,
		AttachmentID: m.AttachmentID,
		CreatedAt:    m.CreatedAt,
	}
}
