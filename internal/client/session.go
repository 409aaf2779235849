package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lingvo-chat/chat-service/internal/transport/ws"

	"github.com/gorilla/websocket"
)

type State string

const (
	StateIdle           State = "idle"
	StateConnecting     State = "connecting"
	StateAuthenticating State = "authenticating"
	StateSubscribed     State = "subscribed"
	StateReconnecting   State = "reconnecting"
	StateDisconnected   State = "disconnected" // терминальное до ручного Reconnect
)

const (
	defaultMaxAttempts = 5
	defaultBackoff     = 2 * time.Second
)

// Conn — минимум от websocket-соединения, нужный сессии.
type Conn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	Close() error
}

type DialFunc func(ctx context.Context) (Conn, error)

// Session держит ws-подключение клиента: авторизуется, восстанавливает
// подписки после обрыва и ограничивает число подряд неудачных попыток.
type Session struct {
	dial        DialFunc
	maxAttempts int
	backoff     time.Duration

	mu       sync.Mutex
	state    State
	channels map[string]struct{} // желаемые подписки, реплеятся на reconnect
	conn     Conn

	events chan ws.Event
	retry  chan struct{}
	done   chan struct{}
	once   sync.Once
}

// Dial подключается к GET /ws?access_token=... через gorilla-dialer.
func Dial(url, accessToken string) DialFunc {
	return func(ctx context.Context) (Conn, error) {
		c, _, err := websocket.DefaultDialer.DialContext(ctx, url+"?access_token="+accessToken, nil)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

func NewSession(dial DialFunc) *Session {
	return &Session{
		dial:        dial,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
		state:       StateIdle,
		channels:    make(map[string]struct{}),
		events:      make(chan ws.Event, 64),
		retry:       make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
}

// WithBackoff настраивает паузу между попытками. Нужен тестам и мобильным
// клиентам с агрессивным roaming.
func (s *Session) WithBackoff(d time.Duration) *Session {
	s.backoff = d
	return s
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Events — поток входящих событий сервера.
func (s *Session) Events() <-chan ws.Event {
	return s.events
}

// Subscribe запоминает канал и, если сессия активна, шлёт subscribe-кадр.
// Запомненные каналы переподписываются после каждого reconnect.
func (s *Session) Subscribe(channel string) error {
	s.mu.Lock()
	s.channels[channel] = struct{}{}
	conn := s.conn
	st := s.state
	s.mu.Unlock()

	if st != StateSubscribed || conn == nil {
		return nil
	}
	return conn.WriteJSON(ws.Event{Type: ws.TypeSubscribe, Payload: ws.SubscribePayload{Channel: channel}})
}

func (s *Session) Unsubscribe(channel string) error {
	s.mu.Lock()
	delete(s.channels, channel)
	conn := s.conn
	st := s.state
	s.mu.Unlock()

	if st != StateSubscribed || conn == nil {
		return nil
	}
	return conn.WriteJSON(ws.Event{Type: ws.TypeUnsubscribe, Payload: ws.SubscribePayload{Channel: channel}})
}

// Reconnect — ручной триггер после исчерпания попыток.
func (s *Session) Reconnect() {
	select {
	case s.retry <- struct{}{}:
	default:
	}
}

// Start запускает цикл подключения. Возвращается сразу.
func (s *Session) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *Session) Close() {
	s.once.Do(func() { close(s.done) })
	s.mu.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.mu.Unlock()
}

func (s *Session) run(ctx context.Context) {
	defer close(s.events)

	for {
		attempts := 0
		for attempts < s.maxAttempts {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			default:
			}

			conn, err := s.connect(ctx)
			if err != nil {
				attempts++
				slog.Warn("session.Connect:", "attempt", attempts, slog.Any("err", err))
				s.setState(StateReconnecting)
				if !s.sleep(ctx, s.backoff) {
					return
				}
				continue
			}

			// успешное подключение сбрасывает счётчик
			attempts = 0
			s.readUntilClosed(conn)

			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			default:
			}
			s.setState(StateReconnecting)
		}

		// попытки исчерпаны: ждём ручного Reconnect
		s.setState(StateDisconnected)
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-s.retry:
		}
	}
}

// connect: dial → авторизация в рукопожатии → реплей подписок.
func (s *Session) connect(ctx context.Context) (Conn, error) {
	s.setState(StateConnecting)
	conn, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	s.setState(StateAuthenticating)

	// токен проверяется сервером при рукопожатии; dial вернулся — мы внутри
	s.mu.Lock()
	s.conn = conn
	subs := make([]string, 0, len(s.channels))
	for ch := range s.channels {
		subs = append(subs, ch)
	}
	s.mu.Unlock()

	for _, ch := range subs {
		if err := conn.WriteJSON(ws.Event{Type: ws.TypeSubscribe, Payload: ws.SubscribePayload{Channel: ch}}); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	s.setState(StateSubscribed)
	return conn, nil
}

func (s *Session) readUntilClosed(conn Conn) {
	for {
		var ev ws.Event
		if err := conn.ReadJSON(&ev); err != nil {
			_ = conn.Close()
			s.mu.Lock()
			s.conn = nil
			s.mu.Unlock()
			return
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

func (s *Session) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-s.done:
		return false
	case <-t.C:
		return true
	}
}
