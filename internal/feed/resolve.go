package feed

import (
	"strings"

	"github.com/vistoria/vistoria/internal/store"
)

// Resolve computes the displayed pin list for a view state. Filters apply
// in order and compound: base set by mode, typing-substring filter, then
// active tag. Arrival order is preserved; no re-sort happens here.
//
// Trashed pins appear only in the trash view. In search mode the query is
// not re-applied as a substring filter: the results were already shaped by
// the retrieval fetch for that query.
func Resolve(pins []store.Pin, v ViewState, currentUserID string) []store.Pin {
	out := make([]store.Pin, 0, len(pins))

	for _, p := range pins {
		if !baseMatch(&p, v, currentUserID) {
			continue
		}
		if v.Query != "" && v.Mode != ModeSearch && !queryMatch(&p, v.Query) {
			continue
		}
		if v.ActiveTag != "" && !hasTag(&p, v.ActiveTag) {
			continue
		}
		out = append(out, p)
	}

	return out
}

func baseMatch(p *store.Pin, v ViewState, currentUserID string) bool {
	if v.Mode == ModeTrash {
		return p.Trashed()
	}
	if p.Trashed() {
		return false
	}

	switch v.Mode {
	case ModeSaved:
		return p.IsSaved
	case ModeProfile:
		if v.ProfileTab == TabSaved {
			return p.IsSaved
		}
		// An anonymous viewer owns nothing; pins without an author id
		// belong to no one.
		return p.Author.ID != "" && p.Author.ID == currentUserID
	default: // home, search
		return true
	}
}

func queryMatch(p *store.Pin, query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(p.Title), q) ||
		strings.Contains(strings.ToLower(p.Description), q) ||
		strings.Contains(strings.ToLower(p.Author.Name), q)
}

func hasTag(p *store.Pin, tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
