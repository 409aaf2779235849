package presence

import (
	"context"
	"testing"
	"time"
)

func TestMemoryTracker_OnlineOffline(t *testing.T) {
	ctx := context.Background()
	tr := NewMemoryTracker(time.Second)

	if err := tr.SetOnline(ctx, 1, true); err != nil {
		t.Fatalf("SetOnline: %v", err)
	}
	p, err := tr.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !p.Online {
		t.Fatal("expected online")
	}
	if p.LastSeen.IsZero() {
		t.Fatal("expected last seen set")
	}

	if err := tr.SetOnline(ctx, 1, false); err != nil {
		t.Fatalf("SetOnline(false): %v", err)
	}
	p, _ = tr.Get(ctx, 1)
	if p.Online {
		t.Fatal("expected offline")
	}
}

func TestMemoryTracker_TypingSetAndClear(t *testing.T) {
	ctx := context.Background()
	tr := NewMemoryTracker(time.Minute)

	_ = tr.SetTyping(ctx, "r1", 1, true)
	_ = tr.SetTyping(ctx, "r1", 2, true)

	users, err := tr.TypingUsers(ctx, "r1")
	if err != nil {
		t.Fatalf("TypingUsers: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("typing users = %v, want 2 entries", users)
	}

	_ = tr.SetTyping(ctx, "r1", 1, false)
	users, _ = tr.TypingUsers(ctx, "r1")
	if len(users) != 1 || users[0] != 2 {
		t.Fatalf("typing users after clear = %v, want [2]", users)
	}
}

// Залипший индикатор должен погаснуть сам, без stop-события.
func TestMemoryTracker_TypingExpires(t *testing.T) {
	ctx := context.Background()
	tr := NewMemoryTracker(30 * time.Millisecond)

	_ = tr.SetTyping(ctx, "r1", 1, true)

	users, _ := tr.TypingUsers(ctx, "r1")
	if len(users) != 1 {
		t.Fatalf("typing users = %v, want 1 entry before expiry", users)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		users, _ = tr.TypingUsers(ctx, "r1")
		if len(users) == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("typing entry did not expire: %v", users)
}

func TestMemoryTracker_TypingRefreshExtendsWindow(t *testing.T) {
	ctx := context.Background()
	tr := NewMemoryTracker(60 * time.Millisecond)

	_ = tr.SetTyping(ctx, "r1", 1, true)
	time.Sleep(40 * time.Millisecond)
	_ = tr.SetTyping(ctx, "r1", 1, true) // refresh
	time.Sleep(40 * time.Millisecond)

	// суммарно прошло больше TTL, но refresh продлил окно
	users, _ := tr.TypingUsers(ctx, "r1")
	if len(users) != 1 {
		t.Fatalf("typing entry expired despite refresh: %v", users)
	}
}
