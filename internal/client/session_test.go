package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lingvo-chat/chat-service/internal/transport/ws"
)

type fakeConn struct {
	mu       sync.Mutex
	written  []ws.Event
	incoming chan ws.Event
	closed   chan struct{}
	once     sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{incoming: make(chan ws.Event, 8), closed: make(chan struct{})}
}

func (c *fakeConn) ReadJSON(v any) error {
	select {
	case ev := <-c.incoming:
		*(v.(*ws.Event)) = ev
		return nil
	case <-c.closed:
		return errors.New("connection closed")
	}
}

func (c *fakeConn) WriteJSON(v any) error {
	select {
	case <-c.closed:
		return errors.New("connection closed")
	default:
	}
	c.mu.Lock()
	c.written = append(c.written, v.(ws.Event))
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) subscribedChannels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, ev := range c.written {
		if ev.Type == ws.TypeSubscribe {
			out = append(out, ev.Payload.(ws.SubscribePayload).Channel)
		}
	}
	return out
}

func waitState(t *testing.T, s *Session, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("state = %s, want %s", s.State(), want)
}

func TestSession_ConnectAndReceive(t *testing.T) {
	conn := newFakeConn()
	s := NewSession(func(context.Context) (Conn, error) { return conn, nil }).WithBackoff(time.Millisecond)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	waitState(t, s, StateSubscribed)

	conn.incoming <- ws.Event{Type: ws.TypeNewMessage}
	select {
	case ev := <-s.Events():
		if ev.Type != ws.TypeNewMessage {
			t.Fatalf("event type = %s", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestSession_CappedRetriesThenManualReconnect(t *testing.T) {
	var mu sync.Mutex
	dials := 0
	allow := false
	conn := newFakeConn()
	dial := func(context.Context) (Conn, error) {
		mu.Lock()
		defer mu.Unlock()
		dials++
		if !allow {
			return nil, errors.New("network unreachable")
		}
		return conn, nil
	}

	s := NewSession(dial).WithBackoff(time.Millisecond)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	// 5 подряд неудач — терминальный Disconnected
	waitState(t, s, StateDisconnected)
	mu.Lock()
	if dials != 5 {
		mu.Unlock()
		t.Fatalf("dial attempts = %d, want 5", dials)
	}
	mu.Unlock()

	// без ручного триггера попыток больше нет
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	if dials != 5 {
		mu.Unlock()
		t.Fatalf("dial attempts after idle = %d, want still 5", dials)
	}
	allow = true
	mu.Unlock()

	s.Reconnect()
	waitState(t, s, StateSubscribed)
}

func TestSession_ResubscribesAfterDrop(t *testing.T) {
	var mu sync.Mutex
	var conns []*fakeConn
	dial := func(context.Context) (Conn, error) {
		c := newFakeConn()
		mu.Lock()
		conns = append(conns, c)
		mu.Unlock()
		return c, nil
	}

	s := NewSession(dial).WithBackoff(time.Millisecond)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	waitState(t, s, StateSubscribed)

	if err := s.Subscribe("room:group:r1"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	// обрыв первого соединения
	mu.Lock()
	first := conns[0]
	mu.Unlock()
	first.Close()

	// дождаться второго коннекта в состоянии Subscribed
	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(conns)
		mu.Unlock()
		if n >= 2 && s.State() == StateSubscribed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no reconnect happened")
		}
		time.Sleep(2 * time.Millisecond)
	}

	mu.Lock()
	second := conns[1]
	mu.Unlock()
	subs := second.subscribedChannels()
	if len(subs) != 1 || subs[0] != "room:group:r1" {
		t.Fatalf("replayed subscriptions = %v", subs)
	}
}
