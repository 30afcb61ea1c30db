package notify

import (
	"fmt"
	"testing"
)

func TestPushPrependsNewestFirst(t *testing.T) {
	f := NewFeed()
	f.Push(Notification{Message: "first"})
	f.Push(Notification{Message: "second"})

	got := f.List()
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Message != "second" || got[1].Message != "first" {
		t.Errorf("order = [%s, %s], want newest first", got[0].Message, got[1].Message)
	}
	if got[0].ID == "" || got[0].CreatedAt.IsZero() {
		t.Error("push did not assign id and timestamp")
	}
}

func TestFeedBoundedAtCapacity(t *testing.T) {
	f := NewFeed()
	for i := 0; i < 15; i++ {
		f.Push(Notification{Message: fmt.Sprintf("n%d", i)})
	}

	got := f.List()
	if len(got) != Capacity {
		t.Fatalf("len = %d, want %d", len(got), Capacity)
	}
	// Newest survive, oldest were evicted
	if got[0].Message != "n14" {
		t.Errorf("newest = %s, want n14", got[0].Message)
	}
	if got[Capacity-1].Message != "n5" {
		t.Errorf("oldest kept = %s, want n5", got[Capacity-1].Message)
	}
}

func TestUnreadLifecycle(t *testing.T) {
	f := NewFeed()
	f.Push(Notification{Message: "a"})
	f.Push(Notification{Message: "b"})

	if !f.Unread() {
		t.Fatal("Unread = false after pushes")
	}

	got := f.Open()
	if len(got) != 2 {
		t.Errorf("Open returned %d entries, want 2", len(got))
	}
	for _, n := range got {
		if !n.Read {
			t.Errorf("entry %q not marked read by Open", n.Message)
		}
	}
	if f.Unread() {
		t.Error("Unread = true after Open")
	}

	f.Push(Notification{Message: "c"})
	if !f.Unread() {
		t.Error("Unread = false after new push")
	}
	got = f.List()
	if got[0].Read {
		t.Error("fresh push arrived already read")
	}
	if !got[1].Read {
		t.Error("earlier entry lost its read flag")
	}
}

func TestOpenAlreadyReadIsNoOp(t *testing.T) {
	f := NewFeed()
	f.Push(Notification{Message: "a"})
	f.Open()

	// Flip one entry back manually; a second Open must not touch it
	// because the unread indicator is down.
	f.mu.Lock()
	f.entries[0].Read = false
	f.mu.Unlock()

	got := f.Open()
	if got[0].Read {
		t.Error("Open with unread=false rewrote read flags")
	}
}

func TestClearResetsEverything(t *testing.T) {
	f := NewFeed()
	f.Push(Notification{Message: "a"})
	f.Clear()

	if len(f.List()) != 0 {
		t.Error("entries remain after Clear")
	}
	if f.Unread() {
		t.Error("unread indicator raised after Clear")
	}
}

func TestOnPushHook(t *testing.T) {
	f := NewFeed()
	var seen []string
	f.OnPush = func(n Notification) { seen = append(seen, n.Message) }

	f.Push(Notification{Message: "a"})
	f.Push(Notification{Message: "b"})

	if len(seen) != 2 || seen[0] != "a" || seen[1] != "b" {
		t.Errorf("hook saw %v, want [a b]", seen)
	}
}

func TestSimulatorDeterministicWithSeed(t *testing.T) {
	a := NewSimulator(42)
	b := NewSimulator(42)

	for i := 0; i < 5; i++ {
		na, nb := a.Next(), b.Next()
		if na.Message != nb.Message || na.Kind != nb.Kind {
			t.Fatalf("divergence at %d: %+v vs %+v", i, na, nb)
		}
		if na.Actor == "" || na.Message == "" {
			t.Fatalf("empty notification: %+v", na)
		}
	}
}
