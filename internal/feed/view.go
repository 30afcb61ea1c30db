// Package feed derives the displayed pin set from the item store and the
// current view state. Everything here is pure: identical inputs always
// produce identical output, so the filtering rules are testable without a
// database or a clock.
package feed

// ViewMode selects the base set of pins to display.
type ViewMode string

const (
	ModeHome    ViewMode = "home"
	ModeSearch  ViewMode = "search"
	ModeSaved   ViewMode = "saved"
	ModeProfile ViewMode = "profile"
	ModeTrash   ViewMode = "trash"
)

// ValidMode reports whether s names a known view mode.
func ValidMode(s string) bool {
	switch ViewMode(s) {
	case ModeHome, ModeSearch, ModeSaved, ModeProfile, ModeTrash:
		return true
	}
	return false
}

// ProfileTab selects the sub-tab inside the profile view.
type ProfileTab string

const (
	TabCreated ProfileTab = "created"
	TabSaved   ProfileTab = "saved"
)

// ViewState is the complete filter input: view mode, free-text query,
// single-select active tag, and profile sub-tab.
type ViewState struct {
	Mode       ViewMode   `json:"mode"`
	Query      string     `json:"query"`
	ActiveTag  string     `json:"active_tag"`
	ProfileTab ProfileTab `json:"profile_tab"`
}

// DefaultView returns the initial view state.
func DefaultView() ViewState {
	return ViewState{Mode: ModeHome, ProfileTab: TabCreated}
}

// ToggleTag returns the state after clicking a tag: clicking the active
// tag clears it, clicking any other tag switches to it (single-select).
func (v ViewState) ToggleTag(tag string) ViewState {
	if v.ActiveTag == tag {
		v.ActiveTag = ""
	} else {
		v.ActiveTag = tag
	}
	return v
}

// WithQuery returns the state after a typing update. Clearing the query
// while in search mode reverts to home; the caller is responsible for
// discarding grounding metadata alongside.
func (v ViewState) WithQuery(q string) ViewState {
	v.Query = q
	if q == "" && v.Mode == ModeSearch {
		v.Mode = ModeHome
	}
	return v
}

// WithSearch returns the state after submitting a query.
func (v ViewState) WithSearch(q string) ViewState {
	v.Query = q
	v.Mode = ModeSearch
	return v
}
