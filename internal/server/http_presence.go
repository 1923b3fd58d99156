package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/deptexhq/deptex/internal/presence"
)

// handleHeartbeat handles POST /v1/presence/heartbeat. Clients that cannot
// ride an SSE connection (the polling fallback) announce themselves here.
func (s *GatewayServer) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Scope string `json:"scope"`
		User  string `json:"user"`
		Via   string `json:"via"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.Scope == "" {
		writeError(w, http.StatusBadRequest, "scope is required")
		return
	}
	if in.User == "" {
		in.User = requestUser(r)
	}
	if in.Via == "" {
		in.Via = "poll"
	}

	if s.Presence != nil {
		s.Presence.RecordHeartbeat(presence.Heartbeat{Scope: in.Scope, User: in.User, Via: in.Via})
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePresence handles GET /v1/presence/{scope}.
// Returns who is viewing the scope right now, for the graph HUD badge.
func (s *GatewayServer) handlePresence(w http.ResponseWriter, r *http.Request) {
	scope := r.PathValue("scope")
	if s.Presence == nil {
		writeJSON(w, http.StatusOK, map[string]any{"scope": scope, "viewers": []any{}, "count": 0})
		return
	}

	// Parse optional stale_threshold_secs query param (default: 2 min, the
	// reaper's gone threshold).
	staleThreshold := 2 * time.Minute
	if v := r.URL.Query().Get("stale_threshold_secs"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			staleThreshold = time.Duration(secs) * time.Second
		}
	}

	viewers := s.Presence.Roster(scope, staleThreshold)
	if viewers == nil {
		viewers = []presence.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scope":   scope,
		"viewers": viewers,
		"count":   s.Presence.Count(scope),
	})
}
