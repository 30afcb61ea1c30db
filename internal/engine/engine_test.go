package engine

import (
	"context"
	"testing"
	"time"

	"github.com/vistoria/vistoria/internal/feed"
	"github.com/vistoria/vistoria/internal/provider"
	"github.com/vistoria/vistoria/internal/store"
)

func testEngine(t *testing.T, client provider.Client) *Engine {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db, client)
}

func generated(titles ...string) []store.Pin {
	pins := make([]store.Pin, len(titles))
	for i, title := range titles {
		pins[i] = store.Pin{
			Title:       title,
			Description: title + " description",
			ImageURL:    "https://example.com/" + title + ".jpg",
			Author:      store.Author{Name: "Model"},
			Source:      store.SourceGenerated,
		}
	}
	return pins
}

func TestLoadMoreAppends(t *testing.T) {
	mock := &provider.MockClient{Batch: &provider.Batch{Pins: generated("g1", "g2")}}
	eng := testEngine(t, mock)

	pins, err := eng.LoadMore(context.Background(), 2)
	if err != nil {
		t.Fatalf("LoadMore: %v", err)
	}
	if len(pins) != 2 {
		t.Fatalf("returned %d pins, want 2", len(pins))
	}

	stored, _ := eng.DB.ListPins()
	if len(stored) != 2 {
		t.Errorf("store has %d pins, want 2", len(stored))
	}

	calls := mock.Calls()
	if len(calls) != 1 || calls[0].Count != 2 || calls[0].Query != "" {
		t.Errorf("calls = %+v, want one call with count 2 and no query", calls)
	}
}

func TestLoadMoreCarriesSearchQuery(t *testing.T) {
	mock := &provider.MockClient{Batch: &provider.Batch{Pins: generated("r1")}}
	eng := testEngine(t, mock)

	if _, err := eng.SubmitSearch(context.Background(), "tokyo ramen", 1); err != nil {
		t.Fatalf("SubmitSearch: %v", err)
	}
	if _, err := eng.LoadMore(context.Background(), 1); err != nil {
		t.Fatalf("LoadMore: %v", err)
	}

	calls := mock.Calls()
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(calls))
	}
	if calls[1].Query != "tokyo ramen" {
		t.Errorf("load-more query = %q, want the active search query", calls[1].Query)
	}
}

func TestLoadMoreSingleFlight(t *testing.T) {
	mock := &provider.MockClient{
		Batch:   &provider.Batch{Pins: generated("g1")},
		Started: make(chan struct{}),
		Block:   make(chan struct{}),
	}
	eng := testEngine(t, mock)

	done := make(chan error, 1)
	go func() {
		_, err := eng.LoadMore(context.Background(), 1)
		done <- err
	}()
	<-mock.Started

	if !eng.Loading() {
		t.Error("Loading() = false with a fetch in flight")
	}
	if _, err := eng.LoadMore(context.Background(), 1); err != ErrFetchInFlight {
		t.Errorf("second LoadMore err = %v, want ErrFetchInFlight", err)
	}

	close(mock.Block)
	if err := <-done; err != nil {
		t.Fatalf("first LoadMore: %v", err)
	}

	if len(mock.Calls()) != 1 {
		t.Errorf("provider called %d times, want 1", len(mock.Calls()))
	}
	if eng.Loading() {
		t.Error("Loading() = true after fetch completed")
	}
}

func TestLoadMoreDiscardsStaleBatch(t *testing.T) {
	mock := &provider.MockClient{
		Batch:   &provider.Batch{Pins: generated("late")},
		Started: make(chan struct{}),
		Block:   make(chan struct{}),
	}
	eng := testEngine(t, mock)

	done := make(chan []store.Pin, 1)
	go func() {
		pins, _ := eng.LoadMore(context.Background(), 1)
		done <- pins
	}()
	<-mock.Started

	// The user types before the fetch lands
	eng.SetQuery("something else")
	close(mock.Block)

	if pins := <-done; pins != nil {
		t.Errorf("stale LoadMore returned %d pins, want discarded", len(pins))
	}
	stored, _ := eng.DB.ListPins()
	if len(stored) != 0 {
		t.Errorf("store has %d pins, want 0 (stale batch must not land)", len(stored))
	}
}

func TestLoadMoreProviderFailure(t *testing.T) {
	mock := &provider.MockClient{Err: context.DeadlineExceeded}
	eng := testEngine(t, mock)

	seed := store.Pin{Title: "existing", Description: "d", ImageURL: "u", Author: store.Author{Name: "a"}}
	if err := eng.DB.CreatePin(&seed); err != nil {
		t.Fatalf("CreatePin: %v", err)
	}

	pins, err := eng.LoadMore(context.Background(), 3)
	if err != nil {
		t.Fatalf("LoadMore after provider failure: %v, want nil (collapses to empty)", err)
	}
	if len(pins) != 0 {
		t.Errorf("returned %d pins, want 0", len(pins))
	}

	stored, _ := eng.DB.ListPins()
	if len(stored) != 1 {
		t.Errorf("store has %d pins, want 1 untouched", len(stored))
	}
}

func TestLocationBiasForwarded(t *testing.T) {
	mock := &provider.MockClient{Batch: &provider.Batch{Pins: generated("g")}}
	eng := testEngine(t, mock)

	eng.SetLocation(&provider.Location{Latitude: 35.68, Longitude: 139.69})
	if _, err := eng.LoadMore(context.Background(), 1); err != nil {
		t.Fatalf("LoadMore: %v", err)
	}
	if _, err := eng.SubmitSearch(context.Background(), "ramen", 1); err != nil {
		t.Fatalf("SubmitSearch: %v", err)
	}

	eng.SetLocation(nil)
	if _, err := eng.LoadMore(context.Background(), 1); err != nil {
		t.Fatalf("LoadMore without bias: %v", err)
	}

	calls := mock.Calls()
	if len(calls) != 3 {
		t.Fatalf("got %d calls, want 3", len(calls))
	}
	for i := 0; i < 2; i++ {
		if calls[i].Location == nil || calls[i].Location.Latitude != 35.68 {
			t.Errorf("call %d location = %+v, want the configured bias", i, calls[i].Location)
		}
	}
	if calls[2].Location != nil {
		t.Errorf("call 2 location = %+v, want nil after clearing", calls[2].Location)
	}
}

func TestLoadMoreWithoutProvider(t *testing.T) {
	eng := testEngine(t, nil)
	pins, err := eng.LoadMore(context.Background(), 3)
	if err != nil || pins != nil {
		t.Errorf("LoadMore without provider = (%v, %v), want (nil, nil)", pins, err)
	}
}

func TestSubmitSearchReplacesGenerated(t *testing.T) {
	grounding := &provider.Grounding{Chunks: []provider.GroundingChunk{
		{Maps: &provider.GroundingRef{URI: "maps://x", Title: "Ichiran"}},
	}}
	mock := &provider.MockClient{Batch: &provider.Batch{Pins: generated("fresh"), Grounding: grounding}}
	eng := testEngine(t, mock)

	mine := store.Pin{Title: "mine", Description: "d", ImageURL: "u", Author: store.Author{Name: "me"}}
	if err := eng.DB.CreatePin(&mine); err != nil {
		t.Fatalf("CreatePin: %v", err)
	}
	if err := eng.DB.AppendPins(generated("old")); err != nil {
		t.Fatalf("AppendPins: %v", err)
	}

	pins, err := eng.SubmitSearch(context.Background(), "ramen", 1)
	if err != nil {
		t.Fatalf("SubmitSearch: %v", err)
	}
	if len(pins) != 1 || pins[0].Title != "fresh" {
		t.Fatalf("returned %v, want the fresh batch", pins)
	}

	stored, _ := eng.DB.ListPins()
	byTitle := map[string]bool{}
	for _, p := range stored {
		byTitle[p.Title] = true
	}
	if !byTitle["mine"] {
		t.Error("user pin lost during search replace")
	}
	if byTitle["old"] {
		t.Error("previous generated pin survived search replace")
	}
	if !byTitle["fresh"] {
		t.Error("search results missing from store")
	}

	if v := eng.View(); v.Mode != feed.ModeSearch || v.Query != "ramen" {
		t.Errorf("view = %+v, want search mode with query ramen", v)
	}
	if g := eng.Grounding(); g == nil || len(g.Chunks) != 1 {
		t.Errorf("grounding = %+v, want captured chunks", g)
	}
}

func TestSubmitSearchFailureKeepsStore(t *testing.T) {
	mock := &provider.MockClient{Err: context.DeadlineExceeded}
	eng := testEngine(t, mock)

	if err := eng.DB.AppendPins(generated("old")); err != nil {
		t.Fatalf("AppendPins: %v", err)
	}

	pins, err := eng.SubmitSearch(context.Background(), "ramen", 1)
	if err != nil {
		t.Fatalf("SubmitSearch after provider failure: %v, want nil", err)
	}
	if len(pins) != 0 {
		t.Errorf("returned %d pins, want 0", len(pins))
	}

	stored, _ := eng.DB.ListPins()
	if len(stored) != 1 || stored[0].Title != "old" {
		t.Errorf("store changed on provider failure: %v", stored)
	}
	if eng.Grounding() != nil {
		t.Error("grounding set despite provider failure")
	}
}

func TestSubmitSearchDiscardedAfterQueryCleared(t *testing.T) {
	mock := &provider.MockClient{
		Batch:   &provider.Batch{Pins: generated("late"), Grounding: &provider.Grounding{}},
		Started: make(chan struct{}),
		Block:   make(chan struct{}),
	}
	eng := testEngine(t, mock)

	done := make(chan []store.Pin, 1)
	go func() {
		pins, _ := eng.SubmitSearch(context.Background(), "ramen", 1)
		done <- pins
	}()
	<-mock.Started

	// The user clears the query before results arrive
	eng.SetQuery("")
	close(mock.Block)

	if pins := <-done; pins != nil {
		t.Errorf("stale search returned %d pins, want discarded", len(pins))
	}
	stored, _ := eng.DB.ListPins()
	if len(stored) != 0 {
		t.Errorf("store has %d pins, want 0", len(stored))
	}
	if eng.Grounding() != nil {
		t.Error("grounding captured from a discarded search")
	}
	if v := eng.View(); v.Mode != feed.ModeHome {
		t.Errorf("view mode = %q, want home after query cleared", v.Mode)
	}
}

func TestSetQueryClearingRevertsToHome(t *testing.T) {
	mock := &provider.MockClient{Batch: &provider.Batch{
		Pins:      generated("r"),
		Grounding: &provider.Grounding{Chunks: []provider.GroundingChunk{{}}},
	}}
	eng := testEngine(t, mock)

	if _, err := eng.SubmitSearch(context.Background(), "ramen", 1); err != nil {
		t.Fatalf("SubmitSearch: %v", err)
	}
	if eng.Grounding() == nil {
		t.Fatal("grounding not captured")
	}

	eng.SetQuery("")
	if v := eng.View(); v.Mode != feed.ModeHome || v.Query != "" {
		t.Errorf("view = %+v, want home with empty query", v)
	}
	if eng.Grounding() != nil {
		t.Error("grounding survived query clear")
	}
}

func TestCreatePinAnonymousFallback(t *testing.T) {
	eng := testEngine(t, nil)

	pin, err := eng.CreatePin(Draft{Title: "t", Description: "d", ImageURL: "u"})
	if err != nil {
		t.Fatalf("CreatePin: %v", err)
	}
	if pin.Author.Name != AnonymousAuthor {
		t.Errorf("author = %q, want %q", pin.Author.Name, AnonymousAuthor)
	}
	if pin.Author.ID != "" {
		t.Errorf("anonymous pin has author id %q", pin.Author.ID)
	}
	if pin.Source != store.SourceUser {
		t.Errorf("source = %q, want user", pin.Source)
	}
	// Anonymous creators stay where they are; the pin shows up in home
	if v := eng.View(); v.Mode != feed.ModeHome {
		t.Errorf("view mode = %q, want home", v.Mode)
	}

	got := eng.mustResolve(t)
	if len(got) != 1 || got[0].Title != "t" {
		t.Errorf("home feed = %v, want the new pin", got)
	}
}

func (e *Engine) mustResolve(t *testing.T) []store.Pin {
	t.Helper()
	pins, err := e.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return pins
}

func TestCreatePinSignedInFollowsToProfile(t *testing.T) {
	eng := testEngine(t, nil)
	eng.SetUser(&User{ID: "u1", Name: "Maya", Avatar: "a"})

	pin, err := eng.CreatePin(Draft{Title: "t", Description: "d", ImageURL: "u"})
	if err != nil {
		t.Fatalf("CreatePin: %v", err)
	}
	if pin.Author.ID != "u1" || pin.Author.Name != "Maya" {
		t.Errorf("author = %+v, want the signed-in user", pin.Author)
	}
	if v := eng.View(); v.Mode != feed.ModeProfile || v.ProfileTab != feed.TabCreated {
		t.Errorf("view = %+v, want profile/created", v)
	}
}

func TestTrashClearsSelection(t *testing.T) {
	eng := testEngine(t, nil)

	pin, err := eng.CreatePin(Draft{Title: "t", Description: "d", ImageURL: "u"})
	if err != nil {
		t.Fatalf("CreatePin: %v", err)
	}
	if _, err := eng.Select(pin.ID); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if eng.Selected() != pin.ID {
		t.Fatal("pin not selected")
	}

	if err := eng.MoveToTrash(pin.ID); err != nil {
		t.Fatalf("MoveToTrash: %v", err)
	}
	if eng.Selected() != "" {
		t.Error("selection survived trashing the focused pin")
	}

	// A trashed pin cannot be focused
	got, err := eng.Select(pin.ID)
	if err != nil {
		t.Fatalf("Select trashed: %v", err)
	}
	if got != nil || eng.Selected() != "" {
		t.Error("trashed pin was focusable")
	}
}

func TestPurgeClearsSelection(t *testing.T) {
	eng := testEngine(t, nil)

	pin, _ := eng.CreatePin(Draft{Title: "t", Description: "d", ImageURL: "u"})
	eng.Select(pin.ID)

	if err := eng.Purge(pin.ID); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if eng.Selected() != "" {
		t.Error("selection survived purging the focused pin")
	}
	if p, _ := eng.DB.GetPin(pin.ID); p != nil {
		t.Error("pin still present after purge")
	}
}

func TestTrashRestoreRoundTrip(t *testing.T) {
	eng := testEngine(t, nil)

	pin, _ := eng.CreatePin(Draft{Title: "t", Description: "d", ImageURL: "u"})
	if err := eng.MoveToTrash(pin.ID); err != nil {
		t.Fatalf("MoveToTrash: %v", err)
	}
	if err := eng.Restore(pin.ID); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	got, _ := eng.DB.GetPin(pin.ID)
	if got.Trashed() {
		t.Error("pin still trashed after restore")
	}

	eng.SetView(feed.ModeHome, "")
	pins := eng.mustResolve(t)
	if len(pins) != 1 {
		t.Errorf("home feed = %d pins, want the restored pin back", len(pins))
	}
}

func TestSweepHonorsRetentionWindow(t *testing.T) {
	eng := testEngine(t, nil)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	eng.Clock = func() time.Time { return base }

	old, _ := eng.CreatePin(Draft{Title: "old", Description: "d", ImageURL: "u"})
	fresh, _ := eng.CreatePin(Draft{Title: "fresh", Description: "d", ImageURL: "u"})

	eng.MoveToTrash(old.ID)
	eng.Clock = func() time.Time { return base.Add(24 * time.Hour) }
	eng.MoveToTrash(fresh.ID)

	// 31 days after the first deletion: old is past the window, fresh is not
	eng.Clock = func() time.Time { return base.Add(31 * 24 * time.Hour) }
	n, err := eng.Sweep()
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Errorf("swept %d pins, want 1", n)
	}
	if p, _ := eng.DB.GetPin(old.ID); p != nil {
		t.Error("expired pin survived the sweep")
	}
	if p, _ := eng.DB.GetPin(fresh.ID); p == nil {
		t.Error("pin inside the window was swept")
	}
}

func TestSweepExactly30DaysKeeps(t *testing.T) {
	eng := testEngine(t, nil)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	eng.Clock = func() time.Time { return base }

	pin, _ := eng.CreatePin(Draft{Title: "edge", Description: "d", ImageURL: "u"})
	eng.MoveToTrash(pin.ID)

	eng.Clock = func() time.Time { return base.Add(RetentionWindow) }
	n, err := eng.Sweep()
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 0 {
		t.Errorf("swept %d pins at exactly 30 days, want 0", n)
	}
	if p, _ := eng.DB.GetPin(pin.ID); p == nil {
		t.Error("pin at exactly 30 days was purged")
	}
}

func TestSweepClearsVanishedSelection(t *testing.T) {
	eng := testEngine(t, nil)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	eng.Clock = func() time.Time { return base }

	pin, _ := eng.CreatePin(Draft{Title: "t", Description: "d", ImageURL: "u"})
	eng.Select(pin.ID)
	eng.MoveToTrash(pin.ID)

	// Trashing already cleared it; re-select directly to simulate a focus
	// acquired through another path before the sweep runs.
	eng.mu.Lock()
	eng.selected = pin.ID
	eng.mu.Unlock()

	eng.Clock = func() time.Time { return base.Add(31 * 24 * time.Hour) }
	if _, err := eng.Sweep(); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if eng.Selected() != "" {
		t.Error("selection points at a purged pin")
	}
}

func TestTrashPinsCountdown(t *testing.T) {
	eng := testEngine(t, nil)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	eng.Clock = func() time.Time { return base }

	pin, _ := eng.CreatePin(Draft{Title: "t", Description: "d", ImageURL: "u"})
	eng.MoveToTrash(pin.ID)

	eng.Clock = func() time.Time { return base.Add(5 * 24 * time.Hour) }
	trash, err := eng.TrashPins()
	if err != nil {
		t.Fatalf("TrashPins: %v", err)
	}
	if len(trash) != 1 {
		t.Fatalf("trash has %d pins, want 1", len(trash))
	}
	if trash[0].DaysRemaining != 25 {
		t.Errorf("DaysRemaining = %d, want 25", trash[0].DaysRemaining)
	}
}

// Full lifecycle: anonymous creation, soft delete, countdown, sweep.
func TestPinLifecycleScenario(t *testing.T) {
	eng := testEngine(t, nil)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	eng.Clock = func() time.Time { return base }

	pin, err := eng.CreatePin(Draft{Title: "A", Description: "d", ImageURL: "u"})
	if err != nil {
		t.Fatalf("CreatePin: %v", err)
	}
	if pin.Author.Name != AnonymousAuthor {
		t.Fatalf("author = %q, want anonymous fallback", pin.Author.Name)
	}
	if home := eng.mustResolve(t); len(home) != 1 {
		t.Fatalf("home feed = %d pins, want the new pin", len(home))
	}

	if err := eng.MoveToTrash(pin.ID); err != nil {
		t.Fatalf("MoveToTrash: %v", err)
	}
	if home := eng.mustResolve(t); len(home) != 0 {
		t.Error("trashed pin still in home feed")
	}
	trash, _ := eng.TrashPins()
	if len(trash) != 1 || trash[0].DaysRemaining != 30 {
		t.Fatalf("trash = %+v, want one pin with 30 days remaining", trash)
	}

	eng.Clock = func() time.Time { return base.Add(31 * 24 * time.Hour) }
	if _, err := eng.Sweep(); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	trash, _ = eng.TrashPins()
	if len(trash) != 0 {
		t.Error("swept pin still in trash view")
	}
	if p, _ := eng.DB.GetPin(pin.ID); p != nil {
		t.Error("swept pin still retrievable")
	}
}

func TestToggleTagOnEngine(t *testing.T) {
	eng := testEngine(t, nil)

	if got := eng.ToggleTag("travel"); got != "travel" {
		t.Errorf("ToggleTag = %q, want travel", got)
	}
	if got := eng.ToggleTag("travel"); got != "" {
		t.Errorf("ToggleTag same tag = %q, want cleared", got)
	}
}
