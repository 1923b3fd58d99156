package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/deptexhq/deptex/internal/canvas"
	"github.com/deptexhq/deptex/internal/events"
)

// watchEntry is one scope registered for continuous layout.
type watchEntry struct {
	Scope         string    `json:"scope"`
	Label         string    `json:"label"`
	Version       string    `json:"version,omitempty"`
	ReachableOnly bool      `json:"reachable_only,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func (e *watchEntry) flags() []string {
	var flags []string
	if e.Version != "" {
		flags = append(flags, "version="+e.Version)
	}
	if e.ReachableOnly {
		flags = append(flags, "reachable_only")
	}
	return flags
}

// handleStartWatch handles POST /v1/watch. The scope's session rebuilds on
// change events and commits debounced, deduplicated layouts to the SSE
// stream. Re-registering a scope replaces its version and filter settings.
func (s *GatewayServer) handleStartWatch(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Scope         string `json:"scope"`
		Version       string `json:"version"`
		ReachableOnly bool   `json:"reachable_only"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	kind, id, ok := strings.Cut(in.Scope, ":")
	if !ok || id == "" {
		writeError(w, http.StatusBadRequest, "scope must be project:<id>, team:<id>, or org:<id>")
		return
	}
	switch kind {
	case "project", "package", "team", "org":
	default:
		writeError(w, http.StatusBadRequest, "unknown scope kind: "+kind)
		return
	}

	entry := &watchEntry{
		Scope:         in.Scope,
		Label:         id,
		Version:       in.Version,
		ReachableOnly: in.ReachableOnly,
		CreatedAt:     time.Now().UTC(),
	}
	s.watchMu.Lock()
	s.watches[in.Scope] = entry
	s.watchMu.Unlock()

	// First build happens off-request; the session serves its skeleton until
	// the layout commits.
	go s.rebuildScope(context.Background(), entry)

	writeJSON(w, http.StatusAccepted, entry)
}

// handleListWatches handles GET /v1/watch.
func (s *GatewayServer) handleListWatches(w http.ResponseWriter, r *http.Request) {
	type watchStatus struct {
		watchEntry
		Committed bool          `json:"committed"`
		Stats     *canvas.Stats `json:"stats,omitempty"`
	}

	s.watchMu.Lock()
	entries := make([]*watchEntry, 0, len(s.watches))
	for _, e := range s.watches {
		entries = append(entries, e)
	}
	s.watchMu.Unlock()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Scope < entries[j].Scope })

	statuses := make([]watchStatus, 0, len(entries))
	for _, e := range entries {
		sess := s.sessions.Get(e.Scope, e.Label)
		ws := watchStatus{watchEntry: *e, Committed: sess.HasCommitted()}
		if ws.Committed {
			stats := sess.Committed().Stats
			ws.Stats = &stats
		}
		statuses = append(statuses, ws)
	}

	writeJSON(w, http.StatusOK, map[string]any{"watches": statuses, "total": len(statuses)})
}

// handleWatchGraph handles GET /v1/watch/{scope}: the last committed layout
// for a watched scope, or the skeleton placeholder before the first commit
// lands.
func (s *GatewayServer) handleWatchGraph(w http.ResponseWriter, r *http.Request) {
	scope := r.PathValue("scope")
	s.watchMu.Lock()
	entry, ok := s.watches[scope]
	s.watchMu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "scope not watched")
		return
	}
	sess := s.sessions.Get(scope, entry.Label)
	writeJSON(w, http.StatusOK, sess.Committed())
}

// handleStopWatch handles DELETE /v1/watch/{scope}.
func (s *GatewayServer) handleStopWatch(w http.ResponseWriter, r *http.Request) {
	scope := r.PathValue("scope")
	s.watchMu.Lock()
	_, ok := s.watches[scope]
	delete(s.watches, scope)
	s.watchMu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "scope not watched")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// rebuildScope recomputes a watched scope's layout and proposes it to the
// session. Build failures are logged and dropped; the last committed graph
// keeps serving.
func (s *GatewayServer) rebuildScope(ctx context.Context, e *watchEntry) {
	sess := s.sessions.Get(e.Scope, e.Label)
	req := sess.NextRequest()
	g, _, err := s.buildScopeGraph(ctx, e.Scope, e.Version, e.ReachableOnly)
	if err != nil {
		s.logger.Warn("watch rebuild failed", "scope", e.Scope, "error", err)
		return
	}
	sess.Propose(req, g, e.flags()...)
}

// proposeIfWatched routes an already-built graph into the scope's session
// when the scope is watched and the build settings line up.
func (s *GatewayServer) proposeIfWatched(scope string, g canvas.Graph, version string, reachableOnly bool) {
	s.watchMu.Lock()
	entry, ok := s.watches[scope]
	s.watchMu.Unlock()
	if !ok || entry.Version != version || entry.ReachableOnly != reachableOnly {
		return
	}
	sess := s.sessions.Get(entry.Scope, entry.Label)
	sess.Propose(sess.NextRequest(), g, entry.flags()...)
}

// StartWatchSubscriber rebuilds watched scopes when policy or advisory
// events arrive on the bus. Coalescing is the session machine's job; this
// just kicks builds. Returns after subscribing; the loop runs until ctx is
// canceled.
func (s *GatewayServer) StartWatchSubscriber(ctx context.Context, sub events.Subscriber) error {
	topics := []string{"deptex.policy.>", events.TopicVulnDisclosed}

	var chans []<-chan []byte
	var cancels []func()
	for _, topic := range topics {
		ch, cancel, err := sub.Subscribe(topic)
		if err != nil {
			for _, c := range cancels {
				c()
			}
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
		chans = append(chans, ch)
		cancels = append(cancels, cancel)
	}

	go func() {
		defer func() {
			for _, c := range cancels {
				c()
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-chans[0]:
			case <-chans[1]:
			}
			s.rebuildWatched(ctx)
		}
	}()
	return nil
}

// rebuildWatched kicks a rebuild for every watched scope.
func (s *GatewayServer) rebuildWatched(ctx context.Context) {
	s.watchMu.Lock()
	entries := make([]*watchEntry, 0, len(s.watches))
	for _, e := range s.watches {
		entries = append(entries, e)
	}
	s.watchMu.Unlock()

	for _, e := range entries {
		s.rebuildScope(ctx, e)
	}
}
