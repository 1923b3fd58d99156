package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/deptexhq/deptex/internal/upstream"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *GatewayServer) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/orgs", s.handleListOrgs)
	mux.HandleFunc("GET /v1/orgs/{org}", s.handleGetOrg)
	mux.HandleFunc("GET /v1/orgs/{org}/teams", s.handleListTeams)
	mux.HandleFunc("GET /v1/orgs/{org}/graph", s.handleOrgGraph)
	mux.HandleFunc("GET /v1/teams/{team}", s.handleGetTeam)
	mux.HandleFunc("GET /v1/teams/{team}/projects", s.handleListProjects)
	mux.HandleFunc("GET /v1/teams/{team}/graph", s.handleTeamGraph)
	mux.HandleFunc("GET /v1/projects/{project}", s.handleGetProject)
	mux.HandleFunc("GET /v1/projects/{project}/graph", s.handleProjectGraph)
	mux.HandleFunc("GET /v1/projects/{project}/dependencies", s.handleListDependencies)
	mux.HandleFunc("GET /v1/projects/{project}/vulnerabilities", s.handleListVulnerabilities)
	mux.HandleFunc("GET /v1/projects/{project}/violations", s.handleProjectViolations)
	mux.HandleFunc("POST /v1/score", s.handleScore)
	mux.HandleFunc("GET /v1/orgs/{org}/bans", s.handleListBans)
	mux.HandleFunc("POST /v1/orgs/{org}/bans", s.handleCreateBan)
	mux.HandleFunc("DELETE /v1/orgs/{org}/bans/{id}", s.handleRemoveBan)
	mux.HandleFunc("GET /v1/orgs/{org}/exceptions", s.handleListExceptions)
	mux.HandleFunc("POST /v1/orgs/{org}/exceptions", s.handleCreateException)
	mux.HandleFunc("GET /v1/orgs/{org}/bump-prs", s.handleListBumpPRs)
	mux.HandleFunc("GET /v1/orgs/{org}/violations", s.handleOrgViolations)
	mux.HandleFunc("GET /v1/views", s.handleListViews)
	mux.HandleFunc("GET /v1/views/{name}", s.handleGetView)
	mux.HandleFunc("PUT /v1/views/{name}", s.handleSaveView)
	mux.HandleFunc("DELETE /v1/views/{name}", s.handleDeleteView)
	mux.HandleFunc("GET /v1/preferences", s.handleListPreferences)
	mux.HandleFunc("GET /v1/preferences/{key}", s.handleGetPreference)
	mux.HandleFunc("PUT /v1/preferences/{key}", s.handleSetPreference)
	mux.HandleFunc("DELETE /v1/preferences/{key}", s.handleDeletePreference)
	mux.HandleFunc("POST /v1/agent/chat", s.handleAgentChat)
	mux.HandleFunc("GET /v1/agent/ws", s.handleAgentWS)
	mux.HandleFunc("GET /v1/agent/conversations", s.handleListConversations)
	mux.HandleFunc("GET /v1/agent/conversations/{id}", s.handleConversationHistory)
	mux.HandleFunc("POST /v1/watch", s.handleStartWatch)
	mux.HandleFunc("GET /v1/watch", s.handleListWatches)
	mux.HandleFunc("GET /v1/watch/{scope}", s.handleWatchGraph)
	mux.HandleFunc("DELETE /v1/watch/{scope}", s.handleStopWatch)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	mux.HandleFunc("GET /v1/events", s.handleListEvents)
	mux.HandleFunc("POST /v1/presence/heartbeat", s.handleHeartbeat)
	mux.HandleFunc("GET /v1/presence/{scope}", s.handlePresence)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	return AuthMiddleware(authToken, mux)
}

// handleHealth handles GET /v1/health. The upstream probe is best-effort;
// the gateway reports itself healthy even when the core API is down so load
// balancers do not flap with the backend.
func (s *GatewayServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	out := map[string]string{"status": "ok"}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if upstreamStatus, err := s.repo.Health(ctx); err != nil {
		out["upstream"] = "unreachable"
	} else {
		out["upstream"] = upstreamStatus
	}
	writeJSON(w, http.StatusOK, out)
}

// handleListEvents handles GET /v1/events: the local audit log, newest
// first, optionally filtered by subject.
func (s *GatewayServer) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	limit := parseLimit(r, 100)
	evts, err := s.store.ListEvents(r.Context(), r.URL.Query().Get("subject"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": evts, "total": len(evts)})
}

// requestUser resolves the acting user for a request.
func requestUser(r *http.Request) string {
	if u := r.Header.Get("X-Deptex-User"); u != "" {
		return u
	}
	return defaultUser
}

// requireStore guards endpoints that need local persistence.
func (s *GatewayServer) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "local store not configured")
		return false
	}
	return true
}

// parseLimit reads a positive limit query param, defaulting when absent or
// malformed.
func parseLimit(r *http.Request, def int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// writeUpstreamError maps core-API failures onto gateway responses. Input
// errors stay 400 and not found stays 404; anything else is a 502 because
// the gateway itself is healthy.
func (s *GatewayServer) writeUpstreamError(w http.ResponseWriter, err error, what string) {
	var in inputError
	if errors.As(err, &in) {
		writeError(w, http.StatusBadRequest, in.Error())
		return
	}
	if upstream.IsNotFound(err) {
		writeError(w, http.StatusNotFound, what+" not found")
		return
	}
	s.logger.Error("upstream request failed", "what", what, "error", err)
	writeError(w, http.StatusBadGateway, "failed to fetch "+what)
}

// writeJSON renders data as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Encode errors are unreportable; the status is already on the wire.
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes the {"error": message} envelope every handler uses.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// AuthMiddleware guards every route behind a shared bearer token. An empty
// token disables the check entirely. The health endpoint stays open so load
// balancers can probe without credentials.
func AuthMiddleware(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	want := []byte(token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/v1/health" {
			next.ServeHTTP(w, r)
			return
		}
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		switch {
		case !ok:
			writeError(w, http.StatusUnauthorized, "bearer token required")
		case subtle.ConstantTimeCompare([]byte(got), want) != 1:
			writeError(w, http.StatusUnauthorized, "invalid token")
		default:
			next.ServeHTTP(w, r)
		}
	})
}
