package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vistoria/vistoria/internal/engine"
	"github.com/vistoria/vistoria/internal/feed"
	"github.com/vistoria/vistoria/internal/provider"
	"github.com/vistoria/vistoria/internal/store"
)

const defaultPageSize = 12

// batchSize resolves the pin count for a fetch request.
func (s *Server) batchSize(requested int) int {
	if requested <= 0 {
		return s.pageSize
	}
	return requested
}

func (s *Server) handleGetFeed(w http.ResponseWriter, r *http.Request) {
	pins, err := s.engine.Resolve()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	view := s.engine.View()
	resp := map[string]any{
		"pins":      pins,
		"view":      view,
		"loading":   s.engine.Loading(),
		"selected":  s.engine.Selected(),
		"user":      s.engine.CurrentUser(),
		"unread":    false,
		"grounding": s.engine.Grounding(),
	}
	if s.notices != nil {
		resp["unread"] = s.notices.Unread()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSetView(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode       string `json:"mode"`
		ProfileTab string `json:"profile_tab"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if !feed.ValidMode(req.Mode) {
		writeError(w, http.StatusBadRequest, "unknown view mode")
		return
	}
	s.engine.SetView(feed.ViewMode(req.Mode), feed.ProfileTab(req.ProfileTab))
	writeJSON(w, http.StatusOK, map[string]any{"view": s.engine.View()})
}

func (s *Server) handleSetQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	s.engine.SetQuery(req.Query)
	writeJSON(w, http.StatusOK, map[string]any{"view": s.engine.View()})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
		Count int    `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query required")
		return
	}

	pins, err := s.engine.SubmitSearch(r.Context(), req.Query, s.batchSize(req.Count))
	if err == engine.ErrFetchInFlight {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"pins":      pins,
		"view":      s.engine.View(),
		"grounding": s.engine.Grounding(),
	})
}

func (s *Server) handleLoadMore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Count int `json:"count"`
	}
	// Body is optional for load-more.
	_ = json.NewDecoder(r.Body).Decode(&req)

	pins, err := s.engine.LoadMore(r.Context(), s.batchSize(req.Count))
	if err == engine.ErrFetchInFlight {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"pins": pins})
}

func (s *Server) handleToggleTag(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tag string `json:"tag"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Tag == "" {
		writeError(w, http.StatusBadRequest, "tag required")
		return
	}
	active := s.engine.ToggleTag(req.Tag)
	writeJSON(w, http.StatusOK, map[string]string{"active_tag": active})
}

func (s *Server) handleCreatePin(w http.ResponseWriter, r *http.Request) {
	var draft engine.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if draft.Title == "" || draft.Description == "" || draft.ImageURL == "" {
		writeError(w, http.StatusBadRequest, "title, description and image_url required")
		return
	}

	pin, err := s.engine.CreatePin(draft)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, pin)
}

func (s *Server) handleGetPin(w http.ResponseWriter, r *http.Request) {
	pin, err := s.db.GetPin(chi.URLParam(r, "pinID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if pin == nil {
		writeError(w, http.StatusNotFound, "pin not found")
		return
	}
	writeJSON(w, http.StatusOK, pin)
}

func (s *Server) handleUpdatePin(w http.ResponseWriter, r *http.Request) {
	var patch store.PinPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.engine.UpdatePin(chi.URLParam(r, "pinID"), patch); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTrashPin(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.MoveToTrash(chi.URLParam(r, "pinID")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "trashed"})
}

func (s *Server) handleRestorePin(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Restore(chi.URLParam(r, "pinID")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "restored"})
}

func (s *Server) handlePurgePin(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Purge(chi.URLParam(r, "pinID")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "purged"})
}

func (s *Server) handleGetTrash(w http.ResponseWriter, r *http.Request) {
	pins, err := s.engine.TrashPins()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pins": pins})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	pin, err := s.engine.Select(req.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if pin == nil {
		writeError(w, http.StatusNotFound, "pin not available")
		return
	}
	writeJSON(w, http.StatusOK, pin)
}

func (s *Server) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	s.engine.ClearSelection()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetNotifications(w http.ResponseWriter, r *http.Request) {
	if s.notices == nil {
		writeError(w, http.StatusServiceUnavailable, "notifications disabled")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": s.notices.List(),
		"unread":        s.notices.Unread(),
	})
}

// handleReadNotifications opens the panel: entries come back and are
// marked read only if the unread indicator was raised.
func (s *Server) handleReadNotifications(w http.ResponseWriter, r *http.Request) {
	if s.notices == nil {
		writeError(w, http.StatusServiceUnavailable, "notifications disabled")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": s.notices.Open(),
		"unread":        false,
	})
}

func (s *Server) handleClearNotifications(w http.ResponseWriter, r *http.Request) {
	if s.notices == nil {
		writeError(w, http.StatusServiceUnavailable, "notifications disabled")
		return
	}
	s.notices.Clear()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// handleSetUser installs the identity used for pin attribution and the
// profile/created view.
func (s *Server) handleSetUser(w http.ResponseWriter, r *http.Request) {
	var u engine.User
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if u.ID == "" || u.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name required")
		return
	}
	s.engine.SetUser(&u)
	writeJSON(w, http.StatusOK, u)
}

// handleClearUser drops the identity; the session is anonymous again.
func (s *Server) handleClearUser(w http.ResponseWriter, r *http.Request) {
	s.engine.SetUser(nil)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSetLocation(w http.ResponseWriter, r *http.Request) {
	var loc provider.Location
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	s.engine.SetLocation(&loc)
	writeJSON(w, http.StatusOK, loc)
}

func (s *Server) handleClearLocation(w http.ResponseWriter, r *http.Request) {
	s.engine.SetLocation(nil)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := s.db.GetPref(store.PrefTheme)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if theme == "" {
		theme = "light"
	}
	writeJSON(w, http.StatusOK, map[string]string{"theme": theme})
}

func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Theme string `json:"theme"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Theme != "light" && req.Theme != "dark" {
		writeError(w, http.StatusBadRequest, "theme must be light or dark")
		return
	}
	if err := s.db.SetPref(store.PrefTheme, req.Theme); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"theme": req.Theme})
}
