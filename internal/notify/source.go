package notify

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"time"
)

// Source produces notifications for the feed.
type Source interface {
	Next() Notification
}

// Simulator fabricates plausible social activity. Each Next call picks a
// random actor and action.
type Simulator struct {
	rng *rand.Rand
}

// NewSimulator creates a simulator seeded from the given value. A zero
// seed uses the current time.
func NewSimulator(seed int64) *Simulator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Simulator{rng: rand.New(rand.NewSource(seed))}
}

var (
	simActors = []string{"Maya Chen", "Luca Romano", "Priya Nair", "Tomás Silva", "Ingrid Berg", "Kofi Mensah"}

	simActions = []struct {
		kind    Kind
		message string
	}{
		{KindLike, "liked your pin"},
		{KindComment, "commented on your pin"},
		{KindFollow, "started following you"},
		{KindSave, "saved your pin to a board"},
	}
)

// Next returns a random notification.
func (s *Simulator) Next() Notification {
	actor := simActors[s.rng.Intn(len(simActors))]
	action := simActions[s.rng.Intn(len(simActions))]
	return Notification{
		Kind:    action.kind,
		Actor:   actor,
		Avatar:  "https://api.dicebear.com/9.x/avataaars/svg?seed=" + url.QueryEscape(actor),
		Message: fmt.Sprintf("%s %s", actor, action.message),
	}
}

// Run pushes a notification from the source onto the feed on roughly 40%
// of ticks, until the context is cancelled.
func Run(ctx context.Context, feed *Feed, src Source, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for {
		select {
		case <-ticker.C:
			if rng.Float64() < 0.4 {
				feed.Push(src.Next())
			}
		case <-ctx.Done():
			return
		}
	}
}
