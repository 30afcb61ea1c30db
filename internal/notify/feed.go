// Package notify keeps a small, bounded in-memory activity log. Newest
// entries come first and the log never grows past Capacity.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vistoria/vistoria/internal/metrics"
)

// Capacity is the maximum number of notifications retained. Pushing onto
// a full log drops the oldest entry.
const Capacity = 10

// Kind classifies a notification.
type Kind string

const (
	KindLike    Kind = "like"
	KindComment Kind = "comment"
	KindFollow  Kind = "follow"
	KindSave    Kind = "save"
)

// Notification is one activity log entry.
type Notification struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Actor     string    `json:"actor"`
	Avatar    string    `json:"avatar,omitempty"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Feed is the bounded notification log plus an unread indicator. Safe
// for concurrent use.
type Feed struct {
	mu      sync.Mutex
	entries []Notification
	unread  bool

	// OnPush, if set, is invoked after each push with the new entry,
	// outside the feed lock. Used to fan out to websocket clients.
	OnPush func(Notification)
}

// NewFeed creates an empty notification feed.
func NewFeed() *Feed {
	return &Feed{entries: make([]Notification, 0, Capacity)}
}

// Push prepends an unread notification, evicting the oldest entry when
// the log is full, and raises the unread indicator.
func (f *Feed) Push(n Notification) Notification {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	n.Read = false

	f.mu.Lock()
	if len(f.entries) >= Capacity {
		f.entries = f.entries[:Capacity-1]
	}
	f.entries = append([]Notification{n}, f.entries...)
	f.unread = true
	hook := f.OnPush
	f.mu.Unlock()

	metrics.NotificationsPushed.Inc()
	if hook != nil {
		hook(n)
	}
	return n
}

// List returns the notifications, newest first.
func (f *Feed) List() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot()
}

// Unread reports whether anything arrived since the last read.
func (f *Feed) Unread() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unread
}

// MarkAllRead flags every entry read and lowers the unread indicator.
func (f *Feed) MarkAllRead() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markAllReadLocked()
}

// Open returns the notifications the way opening the panel does: entries
// are marked read only if the unread indicator was raised. Opening an
// already-read panel leaves read state untouched.
func (f *Feed) Open() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unread {
		f.markAllReadLocked()
	}
	return f.snapshot()
}

// Clear empties the log. Nothing remains to be unread afterwards.
func (f *Feed) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = f.entries[:0]
	f.unread = false
}

func (f *Feed) markAllReadLocked() {
	for i := range f.entries {
		f.entries[i].Read = true
	}
	f.unread = false
}

func (f *Feed) snapshot() []Notification {
	out := make([]Notification, len(f.entries))
	copy(out, f.entries)
	return out
}
