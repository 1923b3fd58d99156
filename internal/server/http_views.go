package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/deptexhq/deptex/internal/idgen"
	"github.com/deptexhq/deptex/internal/model"
)

// builtinPreferences are the defaults served when a user has not set a key.
// A fresh install reads as a viewer on the system theme until someone says
// otherwise.
var builtinPreferences = map[string]string{
	model.PrefRole:  "viewer",
	model.PrefTheme: "system",
}

// handleListViews handles GET /v1/views.
func (s *GatewayServer) handleListViews(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	views, err := s.store.ListViews(r.Context(), requestUser(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list views")
		return
	}
	if views == nil {
		views = []*model.SavedView{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"views": views, "total": len(views)})
}

// handleGetView handles GET /v1/views/{name}.
func (s *GatewayServer) handleGetView(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	view, err := s.store.GetView(r.Context(), requestUser(r), r.PathValue("name"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "view not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get view")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleSaveView handles PUT /v1/views/{name}. Upsert by (user, name); the
// id is minted on first save and stable across updates.
func (s *GatewayServer) handleSaveView(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	var in struct {
		Scope   string          `json:"scope"`
		Filters json.RawMessage `json:"filters"`
		Layout  json.RawMessage `json:"layout"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	id, err := idgen.New(idgen.PrefixView)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate id")
		return
	}
	view := &model.SavedView{
		ID:      id,
		UserID:  requestUser(r),
		Name:    r.PathValue("name"),
		Scope:   in.Scope,
		Filters: in.Filters,
		Layout:  in.Layout,
	}
	if err := model.ValidateSavedView(view); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.SaveView(r.Context(), view); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save view")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleDeleteView handles DELETE /v1/views/{name}.
func (s *GatewayServer) handleDeleteView(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	err := s.store.DeleteView(r.Context(), requestUser(r), r.PathValue("name"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "view not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete view")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleListPreferences handles GET /v1/preferences, merging in builtin
// defaults that have not been overridden.
func (s *GatewayServer) handleListPreferences(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	prefs, err := s.store.ListPreferences(r.Context(), requestUser(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list preferences")
		return
	}

	stored := make(map[string]struct{}, len(prefs))
	for _, p := range prefs {
		stored[p.Key] = struct{}{}
	}
	for key, value := range builtinPreferences {
		if _, ok := stored[key]; !ok {
			prefs = append(prefs, &model.Preference{UserID: requestUser(r), Key: key, Value: value})
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"preferences": prefs, "total": len(prefs)})
}

// handleGetPreference handles GET /v1/preferences/{key}.
func (s *GatewayServer) handleGetPreference(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	key := r.PathValue("key")
	pref, err := s.store.GetPreference(r.Context(), requestUser(r), key)
	if errors.Is(err, sql.ErrNoRows) {
		if value, ok := builtinPreferences[key]; ok {
			writeJSON(w, http.StatusOK, &model.Preference{UserID: requestUser(r), Key: key, Value: value})
			return
		}
		writeError(w, http.StatusNotFound, "preference not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get preference")
		return
	}
	writeJSON(w, http.StatusOK, pref)
}

// handleSetPreference handles PUT /v1/preferences/{key}.
func (s *GatewayServer) handleSetPreference(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	var in struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	pref := &model.Preference{
		UserID: requestUser(r),
		Key:    r.PathValue("key"),
		Value:  in.Value,
	}
	if err := s.store.SetPreference(r.Context(), pref); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to set preference")
		return
	}
	writeJSON(w, http.StatusOK, pref)
}

// handleDeletePreference handles DELETE /v1/preferences/{key}. Deleting a
// key with a builtin default reverts to the default rather than 404ing on
// the next read.
func (s *GatewayServer) handleDeletePreference(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	err := s.store.DeletePreference(r.Context(), requestUser(r), r.PathValue("key"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "preference not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete preference")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
