// Package presence tracks live graph viewers per scope.
//
// The Tracker maintains an in-memory map of viewers keyed by graph
// scope ("project:...", "team:...", "org:..."), updated directly by the
// server when a viewer attaches to the event stream, renders a graph,
// or polls the roster. A background reaper marks idle viewers gone
// after a configurable threshold and later evicts them, so abandoned
// browser tabs drain out of the roster on their own.
package presence

import (
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Entry represents a single viewer's live presence state within a scope.
type Entry struct {
	User             string    `json:"user"`
	Scope            string    `json:"scope"`
	LastSeen         time.Time `json:"last_seen"`
	FirstSeen        time.Time `json:"first_seen"`
	Via              string    `json:"via,omitempty"`      // "stream", "graph", "poll"
	IdleSecs         float64   `json:"idle_secs"`          // seconds since last heartbeat
	Heartbeats       int64     `json:"heartbeats"`         // total heartbeats seen
	ViewDurationSecs float64   `json:"view_duration_secs"` // seconds since first heartbeat
	Gone             bool      `json:"gone,omitempty"`     // true if reaper marked gone
	GoneAt           time.Time `json:"gone_at,omitempty"`  // when marked gone
}

// Heartbeat is the data the tracker needs to refresh a viewer.
type Heartbeat struct {
	Scope string // graph scope the viewer is looking at
	User  string // viewer identity (from the auth principal)
	Via   string // what produced the heartbeat: "stream", "graph", "poll"
}

// ReaperConfig configures the background idle-viewer reaper.
type ReaperConfig struct {
	// GoneThreshold is how long a viewer must be idle before being marked
	// gone. Stream keepalives arrive well inside this window, so a healthy
	// tab never trips it. Default: 2 minutes.
	GoneThreshold time.Duration

	// EvictAfter is how long after being marked gone before a viewer is
	// removed from the map entirely. Prevents unbounded growth from
	// one-off page loads. Default: 10 minutes.
	EvictAfter time.Duration

	// SweepInterval is how often the reaper scans for idle viewers.
	// Default: 30 seconds.
	SweepInterval time.Duration

	// OnGone is called for each viewer newly marked gone.
	// Called outside the lock, safe to make blocking calls.
	OnGone func(scope, user string)
}

// Tracker maintains an in-memory roster of graph viewers per scope.
type Tracker struct {
	mu     sync.RWMutex
	scopes map[string]map[string]*viewerState

	stopReaper func() // set by StartReaper; blocks until the goroutine exits
}

type viewerState struct {
	firstSeen  time.Time
	lastSeen   time.Time
	via        string
	heartbeats int64
	gone       bool
	goneAt     time.Time
}

// entry builds the wire form of one viewer at a given instant.
func (s *viewerState) entry(scope, user string, now time.Time) Entry {
	return Entry{
		User:             user,
		Scope:            scope,
		LastSeen:         s.lastSeen,
		FirstSeen:        s.firstSeen,
		Via:              s.via,
		IdleSecs:         now.Sub(s.lastSeen).Seconds(),
		Heartbeats:       s.heartbeats,
		ViewDurationSecs: now.Sub(s.firstSeen).Seconds(),
		Gone:             s.gone,
		GoneAt:           s.goneAt,
	}
}

// New creates a new presence tracker.
func New() *Tracker {
	return &Tracker{scopes: make(map[string]map[string]*viewerState)}
}

// RecordHeartbeat refreshes the presence state for a viewer on a scope.
// Called by the server on stream attach, keepalive, and graph render.
func (t *Tracker) RecordHeartbeat(hb Heartbeat) {
	if hb.Scope == "" || hb.User == "" {
		return
	}

	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	viewers, ok := t.scopes[hb.Scope]
	if !ok {
		viewers = make(map[string]*viewerState)
		t.scopes[hb.Scope] = viewers
	}

	state, ok := viewers[hb.User]
	if !ok {
		state = &viewerState{firstSeen: now}
		viewers[hb.User] = state
	}

	// A gone viewer that heartbeats again is back.
	if state.gone {
		slog.Info("presence: viewer returned", "scope", hb.Scope, "user", hb.User)
		state.gone = false
		state.goneAt = time.Time{}
	}

	state.lastSeen = now
	state.heartbeats++

	if hb.Via != "" {
		state.via = hb.Via
	}
}

// Roster returns a snapshot of a scope's viewers, most recently active
// first. staleThreshold excludes viewers idle longer than it; pass 0 to
// include every viewer still tracked, gone ones included.
func (t *Tracker) Roster(scope string, staleThreshold time.Duration) []Entry {
	now := time.Now()

	t.mu.RLock()
	defer t.mu.RUnlock()

	entries := make([]Entry, 0, len(t.scopes[scope]))
	for user, state := range t.scopes[scope] {
		if staleThreshold > 0 && now.Sub(state.lastSeen) > staleThreshold {
			continue
		}
		entries = append(entries, state.entry(scope, user, now))
	}

	slices.SortFunc(entries, func(a, b Entry) int {
		return b.LastSeen.Compare(a.LastSeen)
	})
	return entries
}

// Count returns the number of viewers on a scope not yet marked gone.
// Feeds the "N viewers" badge on the graph HUD.
func (t *Tracker) Count(scope string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, state := range t.scopes[scope] {
		if !state.gone {
			n++
		}
	}
	return n
}

// StartReaper launches a background goroutine that periodically marks idle
// viewers gone. Call Stop to shut it down.
func (t *Tracker) StartReaper(cfg *ReaperConfig) {
	if cfg == nil {
		cfg = &ReaperConfig{}
	}
	if cfg.GoneThreshold == 0 {
		cfg.GoneThreshold = 2 * time.Minute
	}
	if cfg.EvictAfter == 0 {
		cfg.EvictAfter = 10 * time.Minute
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 30 * time.Second
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	t.stopReaper = func() {
		close(stop)
		<-done
	}

	go func() {
		defer close(done)

		tick := time.NewTicker(cfg.SweepInterval)
		defer tick.Stop()
		for {
			select {
			case <-tick.C:
				t.sweep(cfg)
			case <-stop:
				return
			}
		}
	}()

	slog.Info("presence: reaper started",
		"gone_threshold", cfg.GoneThreshold,
		"evict_after", cfg.EvictAfter,
		"sweep_interval", cfg.SweepInterval)
}

// Stop waits for the reaper goroutine to exit. A Tracker whose reaper
// was never started stops trivially, and repeated calls are no-ops.
func (t *Tracker) Stop() {
	if t.stopReaper == nil {
		return
	}
	t.stopReaper()
	t.stopReaper = nil
}

func (t *Tracker) sweep(cfg *ReaperConfig) {
	type key struct{ scope, user string }

	now := time.Now()
	var marked []key

	t.mu.Lock()
	for scope, viewers := range t.scopes {
		for user, state := range viewers {
			if state.gone {
				// Viewers with only a handful of heartbeats are drive-by
				// page loads; evict those after a minute.
				evictThreshold := cfg.EvictAfter
				if state.heartbeats < 5 {
					evictThreshold = time.Minute
				}
				if !state.goneAt.IsZero() && now.Sub(state.goneAt) > evictThreshold {
					delete(viewers, user)
				}
				continue
			}
			if now.Sub(state.lastSeen) > cfg.GoneThreshold {
				state.gone = true
				state.goneAt = now
				marked = append(marked, key{scope: scope, user: user})
			}
		}
		if len(viewers) == 0 {
			delete(t.scopes, scope)
		}
	}
	t.mu.Unlock()

	for _, k := range marked {
		slog.Info("presence: reaper marked viewer gone",
			"scope", k.scope,
			"user", k.user,
			"threshold", cfg.GoneThreshold)
		if cfg.OnGone != nil {
			cfg.OnGone(k.scope, k.user)
		}
	}
}
