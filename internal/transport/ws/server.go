package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

type TokenVerifier interface {
	VerifyToken(token string) (int64, error)
}

type MemberSvc interface {
	IsMember(ctx context.Context, roomID string, userID int64) (bool, error)
}

type PresenceSvc interface {
	SetOnline(ctx context.Context, userID int64, online bool) error
	SetTyping(ctx context.Context, roomID string, userID int64, typing bool) error
}

type Server struct {
	upgrader  websocket.Upgrader
	hub       *Hub
	verifier  TokenVerifier
	memberSvc MemberSvc
	presence  PresenceSvc

	pingEvery time.Duration
}

func NewServer(hub *Hub, verifier TokenVerifier, member MemberSvc, presence PresenceSvc) *Server {
	return &Server{
		hub:       hub,
		verifier:  verifier,
		memberSvc: member,
		presence:  presence,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEvery: 15 * time.Second,
	}
}

// WS endpoint: GET /ws?access_token=...
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	accessToken := strings.TrimSpace(r.URL.Query().Get("access_token"))
	if accessToken == "" {
		http.Error(w, "missing access_token", http.StatusUnauthorized)
		return
	}
	uid, err := s.verifier.VerifyToken(accessToken)
	if err != nil {
		http.Error(w, "invalid access_token", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err)
		return
	}

	c := newWsConn(conn, uid)

	// собственный user-канал и статусный — без явной подписки
	s.hub.Subscribe(c, UserChannel(uid))
	s.hub.Subscribe(c, StatusChannel)

	if err := s.presence.SetOnline(r.Context(), uid, true); err != nil {
		slog.Debug("ws presence online failed", "user", uid, "err", err)
	}
	s.broadcastOnline(uid, true)

	go s.writeLoop(r.Context(), c)
	s.readLoop(r.Context(), c)

	s.hub.Remove(c)

	// disconnect detection -> presence update
	if err := s.presence.SetOnline(r.Context(), uid, false); err != nil {
		slog.Debug("ws presence offline failed", "user", uid, "err", err)
	}
	s.broadcastOnline(uid, false)

	if err := c.Close(); err != nil {
		slog.Debug("ws close failed", "user", uid, "err", err)
	}
}

func (s *Server) broadcastOnline(userID int64, online bool) {
	_ = s.hub.Publish(StatusChannel, Event{
		Type: TypeOnline,
		Payload: OnlinePayload{
			UserID:   strconv.FormatInt(userID, 10),
			IsOnline: online,
		},
	})
}

// authorize — только собственный user-канал, status и комнаты,
// где пользователь состоит.
func (s *Server) authorize(ctx context.Context, userID int64, channel string) bool {
	switch {
	case channel == StatusChannel:
		return true
	case strings.HasPrefix(channel, "user:"):
		return channel == UserChannel(userID)
	case strings.HasPrefix(channel, "room:"):
		parts := strings.SplitN(channel, ":", 3)
		if len(parts) != 3 || parts[2] == "" {
			return false
		}
		ok, err := s.memberSvc.IsMember(ctx, parts[2], userID)
		if err != nil {
			slog.Warn("ws membership check failed", "channel", channel, "user", userID, "err", err)
			return false
		}
		return ok
	default:
		return false
	}
}

func (s *Server) readLoop(ctx context.Context, c *wsConn) {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(1 << 20)
	c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}

		switch ev.Type {
		case TypeSubscribe:
			var p SubscribePayload
			if decode(ev.Payload, &p) != nil || p.Channel == "" {
				continue
			}
			if !s.authorize(ctx, c.userID, p.Channel) {
				_ = c.Send(Event{Type: TypeError, Payload: ErrorPayload{Message: "subscription denied: " + p.Channel}})
				continue
			}
			s.hub.Subscribe(c, p.Channel)

		case TypeUnsubscribe:
			var p SubscribePayload
			if decode(ev.Payload, &p) == nil && p.Channel != "" {
				s.hub.Unsubscribe(c, p.Channel)
			}

		case TypeTyping:
			var p TypingRequest
			if decode(ev.Payload, &p) != nil || p.ChatID == "" {
				continue
			}
			// клиент дебаунсит сами кадры; сервер дополнительно
			// гасит залипшие индикаторы TTL-ом в presence-трекере
			if err := s.presence.SetTyping(ctx, p.ChatID, c.userID, p.IsTyping); err != nil {
				slog.Debug("ws set typing failed", "room", p.ChatID, "user", c.userID, "err", err)
			}
			channel := "room:" + p.RoomKind + ":" + p.ChatID
			if !s.authorize(ctx, c.userID, channel) {
				continue
			}
			_ = s.hub.Publish(channel, Event{
				Type: TypeTyping,
				Payload: TypingPayload{
					ChatID:   p.ChatID,
					UserID:   strconv.FormatInt(c.userID, 10),
					IsTyping: p.IsTyping,
				},
			})

		default:
			// ignore
		}
	}
}

func (s *Server) writeLoop(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		}
	}
}

// --- helpers ---

func decode(payload interface{}, dst interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return json.Unmarshal(b, dst)
}

type wsConn struct {
	conn   *websocket.Conn
	userID int64
	sendMu chan struct{}
	closed chan struct{}
}

func newWsConn(c *websocket.Conn, userID int64) *wsConn {
	return &wsConn{
		conn:   c,
		userID: userID,
		sendMu: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

func (c *wsConn) Send(ev Event) error {
	c.sendMu <- struct{}{}
	defer func() { <-c.sendMu }()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	return c.conn.WriteJSON(ev)
}

func (c *wsConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}

	return c.conn.Close()
}

func (c *wsConn) UserID() int64 { return c.userID }
