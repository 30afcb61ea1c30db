// Package engine coordinates the pin lifecycle: retrieval from the
// content provider, view-state transitions, the focused-pin contract,
// and the 30-day trash retention sweep.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vistoria/vistoria/internal/feed"
	"github.com/vistoria/vistoria/internal/metrics"
	"github.com/vistoria/vistoria/internal/provider"
	"github.com/vistoria/vistoria/internal/store"
)

// ErrFetchInFlight is returned when a fetch is requested while another is
// still running. Duplicates are refused, not queued.
var ErrFetchInFlight = errors.New("feed fetch already in flight")

// AnonymousAuthor is the attribution fallback when no user is signed in.
const AnonymousAuthor = "Anonymous"

// User is the identity consumed by the engine. Absence means anonymous.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
	Verified bool   `json:"is_verified"`
}

// Engine owns the mutable session state (view, selection, grounding) and
// serializes it behind one mutex. Store mutations go through the DB;
// provider calls run outside the lock with a sequence-number staleness
// guard so a late completion never clobbers newer user intent.
type Engine struct {
	DB       *store.DB
	Provider provider.Client

	// Clock is injectable so retention logic is testable without real
	// time passing.
	Clock func() time.Time

	mu        sync.Mutex
	view      feed.ViewState
	grounding *provider.Grounding
	location  *provider.Location
	selected  string
	user      *User
	inflight  bool
	fetchSeq  uint64

	stopCh chan struct{}
}

// New creates a new Engine.
func New(db *store.DB, client provider.Client) *Engine {
	return &Engine{
		DB:       db,
		Provider: client,
		Clock:    time.Now,
		view:     feed.DefaultView(),
		stopCh:   make(chan struct{}),
	}
}

// StartRetentionTimer sweeps the trash on startup and then daily.
func (e *Engine) StartRetentionTimer() {
	if n, err := e.Sweep(); err != nil {
		log.Printf("retention sweep error: %v", err)
	} else if n > 0 {
		log.Printf("retention sweep: purged %d pins", n)
	}

	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if n, err := e.Sweep(); err != nil {
					log.Printf("retention sweep error: %v", err)
				} else if n > 0 {
					log.Printf("retention sweep: purged %d pins", n)
				}
			case <-e.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the engine's background goroutines.
func (e *Engine) Stop() {
	close(e.stopCh)
}

// Sweep purges every trashed pin older than the retention window.
// Idempotent; pins still inside the window are never touched.
func (e *Engine) Sweep() (int, error) {
	n, err := e.DB.SweepExpired(purgeCutoff(e.Clock()))
	if err != nil {
		return 0, fmt.Errorf("sweep expired: %w", err)
	}
	if n > 0 {
		metrics.PinsPurged.WithLabelValues("retention").Add(float64(n))
		e.reconcileSelection()
	}
	return n, nil
}

// SetUser sets or clears the current identity.
func (e *Engine) SetUser(u *User) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.user = u
}

// CurrentUser returns the current identity, or nil when anonymous.
func (e *Engine) CurrentUser() *User {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.user
}

// SetLocation records an optional geolocation bias for provider calls.
func (e *Engine) SetLocation(loc *provider.Location) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.location = loc
}

// View returns the current view state.
func (e *Engine) View() feed.ViewState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view
}

// Grounding returns the metadata captured by the last search, if any.
func (e *Engine) Grounding() *provider.Grounding {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.grounding
}

// Loading reports whether a provider fetch is in flight.
func (e *Engine) Loading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inflight
}

// SetView switches the view mode and, optionally, the profile sub-tab.
func (e *Engine) SetView(mode feed.ViewMode, tab feed.ProfileTab) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.view.Mode = mode
	if tab != "" {
		e.view.ProfileTab = tab
	}
}

// ToggleTag applies a tag click and returns the resulting active tag
// ("" when cleared).
func (e *Engine) ToggleTag(tag string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.view = e.view.ToggleTag(tag)
	return e.view.ActiveTag
}

// SetQuery applies a typing update. Clearing the query while in search
// mode reverts to home, discards grounding metadata, and invalidates any
// in-flight fetch.
func (e *Engine) SetQuery(q string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if q == e.view.Query {
		return
	}
	e.view = e.view.WithQuery(q)
	e.fetchSeq++
	if q == "" {
		e.grounding = nil
	}
}

// Resolve returns the pins displayed for the current view state.
func (e *Engine) Resolve() ([]store.Pin, error) {
	e.mu.Lock()
	view := e.view
	userID := ""
	if e.user != nil {
		userID = e.user.ID
	}
	e.mu.Unlock()

	pins, err := e.DB.ListPins()
	if err != nil {
		return nil, fmt.Errorf("list pins: %w", err)
	}
	return feed.Resolve(pins, view, userID), nil
}

// TrashedPin is a trash-view entry with its display countdown.
type TrashedPin struct {
	store.Pin
	DaysRemaining int `json:"days_remaining"`
}

// TrashPins returns the trashed pins with days remaining until purge.
func (e *Engine) TrashPins() ([]TrashedPin, error) {
	pins, err := e.DB.ListPins()
	if err != nil {
		return nil, fmt.Errorf("list pins: %w", err)
	}
	now := e.Clock()

	out := make([]TrashedPin, 0)
	for _, p := range pins {
		if !p.Trashed() {
			continue
		}
		deletedAt := time.UnixMilli(*p.DeletedAt)
		out = append(out, TrashedPin{Pin: p, DaysRemaining: DaysRemaining(deletedAt, now)})
	}
	return out, nil
}

// Draft is the validated input for pin creation. The boundary (HTTP
// handler) rejects missing title/description/image before this point.
type Draft struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	ImageURL    string   `json:"image_url"`
	Tags        []string `json:"tags"`
}

// CreatePin creates a pin attributed to the current user, or to the
// anonymous fallback author when nobody is signed in. The new pin is
// prepended to the store and the view follows it to the profile tab for
// signed-in creators.
func (e *Engine) CreatePin(draft Draft) (*store.Pin, error) {
	e.mu.Lock()
	user := e.user
	e.mu.Unlock()

	author := store.Author{
		Name:   AnonymousAuthor,
		Avatar: "https://api.dicebear.com/9.x/avataaars/svg?seed=Anonymous",
	}
	if user != nil {
		author = store.Author{
			Name:     user.Name,
			Avatar:   user.Avatar,
			ID:       user.ID,
			Verified: user.Verified,
		}
	}

	tags := draft.Tags
	if tags == nil {
		tags = []string{}
	}
	pin := &store.Pin{
		ID:          uuid.NewString(),
		Title:       draft.Title,
		Description: draft.Description,
		ImageURL:    draft.ImageURL,
		AspectRatio: "square",
		Author:      author,
		Tags:        tags,
		Comments:    []store.Comment{},
		Source:      store.SourceUser,
	}
	if err := e.DB.CreatePin(pin); err != nil {
		return nil, fmt.Errorf("create pin: %w", err)
	}
	metrics.PinsCreated.Inc()

	if user != nil {
		e.mu.Lock()
		e.view.Mode = feed.ModeProfile
		e.view.ProfileTab = feed.TabCreated
		e.mu.Unlock()
	}
	return pin, nil
}

// UpdatePin merges a patch into a pin. Stale ids are silent no-ops.
func (e *Engine) UpdatePin(id string, patch store.PinPatch) error {
	return e.DB.UpdatePin(id, patch)
}

// Select marks a pin as the focused detail item and returns it. Trashed
// or missing pins cannot be focused; selecting one clears the focus.
func (e *Engine) Select(id string) (*store.Pin, error) {
	p, err := e.DB.GetPin(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if p == nil || p.Trashed() {
		if e.selected == id {
			e.selected = ""
		}
		return nil, nil
	}
	e.selected = id
	return p, nil
}

// Selected returns the focused pin id, or "" if none.
func (e *Engine) Selected() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected
}

// ClearSelection drops the focused pin.
func (e *Engine) ClearSelection() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selected = ""
}

// MoveToTrash soft-deletes a pin at the current instant. If the pin was
// focused, the focus is cleared: a trashed pin is inaccessible for detail
// viewing. Stale ids are silent no-ops.
func (e *Engine) MoveToTrash(id string) error {
	if err := e.DB.SoftDeletePin(id, e.Clock().UnixMilli()); err != nil {
		return err
	}
	e.dropSelection(id)
	return nil
}

// Restore clears a pin's deletion marker. Stale ids are silent no-ops.
func (e *Engine) Restore(id string) error {
	return e.DB.RestorePin(id)
}

// Purge removes a pin permanently, ahead of the retention sweep.
func (e *Engine) Purge(id string) error {
	if err := e.DB.PurgePin(id); err != nil {
		return err
	}
	metrics.PinsPurged.WithLabelValues("manual").Inc()
	e.dropSelection(id)
	return nil
}

func (e *Engine) dropSelection(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.selected == id {
		e.selected = ""
	}
}

// reconcileSelection clears the focus if the focused pin no longer
// exists (e.g. removed by the retention sweep).
func (e *Engine) reconcileSelection() {
	e.mu.Lock()
	id := e.selected
	e.mu.Unlock()
	if id == "" {
		return
	}
	p, err := e.DB.GetPin(id)
	if err != nil || p == nil {
		e.dropSelection(id)
	}
}

// LoadMore fetches count additional pins and appends them to the store.
// In search mode with a live query, more of that query is requested.
// Returns ErrFetchInFlight if another fetch is running. Provider failure
// collapses to an empty batch: the store is untouched and the caller may
// retry on the next user action.
func (e *Engine) LoadMore(ctx context.Context, count int) ([]store.Pin, error) {
	e.mu.Lock()
	if e.inflight {
		e.mu.Unlock()
		return nil, ErrFetchInFlight
	}
	if e.Provider == nil {
		e.mu.Unlock()
		return nil, nil
	}
	e.inflight = true
	seq := e.fetchSeq
	query := ""
	if e.view.Mode == feed.ModeSearch && e.view.Query != "" {
		query = e.view.Query
	}
	loc := e.location
	e.mu.Unlock()

	metrics.ProviderFetches.WithLabelValues("append").Inc()
	batch, err := e.Provider.GenerateFeed(ctx, count, query, loc)

	e.mu.Lock()
	e.inflight = false
	stale := e.fetchSeq != seq
	e.mu.Unlock()

	if err != nil {
		metrics.ProviderFailures.Inc()
		log.Printf("load more: provider unavailable: %v", err)
		return nil, nil
	}
	if stale {
		log.Printf("load more: discarding stale batch for query %q", query)
		return nil, nil
	}

	if err := e.DB.AppendPins(batch.Pins); err != nil {
		return nil, fmt.Errorf("append pins: %w", err)
	}
	return batch.Pins, nil
}

// SubmitSearch issues a fresh query and, on completion, replaces the
// store's generated contents with exactly the returned set, capturing any
// grounding metadata for separate presentation. A completion that arrives
// after the query was cleared or changed is discarded wholesale. On
// provider failure the store is left as it was.
func (e *Engine) SubmitSearch(ctx context.Context, query string, count int) ([]store.Pin, error) {
	e.mu.Lock()
	if e.inflight {
		e.mu.Unlock()
		return nil, ErrFetchInFlight
	}
	e.view = e.view.WithSearch(query)
	e.grounding = nil
	e.fetchSeq++
	if e.Provider == nil {
		e.mu.Unlock()
		return nil, nil
	}
	e.inflight = true
	seq := e.fetchSeq
	loc := e.location
	e.mu.Unlock()

	metrics.ProviderFetches.WithLabelValues("replace").Inc()
	batch, err := e.Provider.GenerateFeed(ctx, count, query, loc)

	e.mu.Lock()
	e.inflight = false
	stale := e.fetchSeq != seq
	fresh := !stale && err == nil
	if fresh {
		e.grounding = batch.Grounding
	}
	e.mu.Unlock()

	if err != nil {
		metrics.ProviderFailures.Inc()
		log.Printf("search %q: provider unavailable: %v", query, err)
		return nil, nil
	}
	if stale {
		log.Printf("search %q: discarding stale results", query)
		return nil, nil
	}

	if err := e.DB.ReplaceGenerated(batch.Pins); err != nil {
		return nil, fmt.Errorf("replace generated: %w", err)
	}
	return batch.Pins, nil
}
