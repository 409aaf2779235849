package ws

import (
	"errors"
	"testing"
)

type fakeConn struct {
	userID int64
	sent   []Event
	fail   bool
}

func (f *fakeConn) Send(ev Event) error {
	if f.fail {
		return errors.New("send failed")
	}
	f.sent = append(f.sent, ev)
	return nil
}

func (f *fakeConn) Close() error  { return nil }
func (f *fakeConn) UserID() int64 { return f.userID }

func TestHub_PublishToChannel(t *testing.T) {
	h := NewHub()
	a := &fakeConn{userID: 1}
	b := &fakeConn{userID: 2}

	h.Subscribe(a, UserChannel(1))
	h.Subscribe(b, UserChannel(2))

	ev := Event{Type: TypeNewMessage, Payload: MessagePayload{MessageID: "m1"}}
	if err := h.Publish(UserChannel(1), ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(a.sent) != 1 {
		t.Fatalf("subscriber a got %d events, want 1", len(a.sent))
	}
	if len(b.sent) != 0 {
		t.Fatalf("subscriber b got %d events, want 0", len(b.sent))
	}
}

func TestHub_MultipleConnsPerUser(t *testing.T) {
	h := NewHub()
	phone := &fakeConn{userID: 7}
	laptop := &fakeConn{userID: 7}

	h.Subscribe(phone, UserChannel(7))
	h.Subscribe(laptop, UserChannel(7))

	if err := h.Publish(UserChannel(7), Event{Type: TypeNewMessage}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(phone.sent) != 1 || len(laptop.sent) != 1 {
		t.Fatalf("both devices must receive: phone=%d laptop=%d", len(phone.sent), len(laptop.sent))
	}
}

func TestHub_RemoveDropsAllChannels(t *testing.T) {
	h := NewHub()
	c := &fakeConn{userID: 1}

	h.Subscribe(c, UserChannel(1))
	h.Subscribe(c, StatusChannel)
	h.Subscribe(c, "room:group:r1")

	h.Remove(c)

	for _, ch := range []string{UserChannel(1), StatusChannel, "room:group:r1"} {
		if n := h.Subscribers(ch); n != 0 {
			t.Errorf("channel %s still has %d subscribers after Remove", ch, n)
		}
	}

	if err := h.Publish(UserChannel(1), Event{Type: TypeNewMessage}); err != nil {
		t.Fatalf("Publish to empty channel: %v", err)
	}
	if len(c.sent) != 0 {
		t.Fatalf("removed conn received %d events", len(c.sent))
	}
}

func TestHub_PublishReportsFailedSends(t *testing.T) {
	h := NewHub()
	ok := &fakeConn{userID: 1}
	bad := &fakeConn{userID: 1, fail: true}

	h.Subscribe(ok, UserChannel(1))
	h.Subscribe(bad, UserChannel(1))

	err := h.Publish(UserChannel(1), Event{Type: TypeNewMessage})
	if err == nil {
		t.Fatal("expected error when one send fails")
	}
	// доставка остальным не прерывается
	if len(ok.sent) != 1 {
		t.Fatalf("healthy conn got %d events, want 1", len(ok.sent))
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	h := NewHub()
	c := &fakeConn{userID: 3}

	h.Subscribe(c, "room:group:r2")
	h.Unsubscribe(c, "room:group:r2")

	if err := h.Publish("room:group:r2", Event{Type: TypeTyping}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(c.sent) != 0 {
		t.Fatalf("unsubscribed conn received %d events", len(c.sent))
	}
}
