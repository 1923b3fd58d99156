// Package session tracks the graph shown for one scope as an explicit
// pending/committed state machine. Layout rebuilds are proposed with a
// request number; stale proposals lose, identical layouts are dropped, and
// surviving proposals commit after a short debounce so bursts of filter
// changes coalesce into one commit.
package session

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/deptexhq/deptex/internal/canvas"
)

// DefaultDebounce is the commit delay applied when none is configured.
const DefaultDebounce = 40 * time.Millisecond

// Session holds the committed graph for a scope and debounces proposals.
// All methods are safe for concurrent use.
type Session struct {
	scope    string
	label    string
	debounce time.Duration
	onCommit func(canvas.Graph)

	nextReq atomic.Uint64

	mu            sync.Mutex
	stopped       bool
	lastReq       uint64
	committedOnce bool
	committed     canvas.Graph
	committedSig  string
	pending       *canvas.Graph
	pendingSig    string
	timer         *time.Timer
}

// New creates a session for a scope. The label names the placeholder shown
// before the first commit. A non-positive debounce falls back to
// DefaultDebounce; onCommit may be nil.
func New(scope, label string, debounce time.Duration, onCommit func(canvas.Graph)) *Session {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Session{
		scope:    scope,
		label:    label,
		debounce: debounce,
		onCommit: onCommit,
	}
}

// Scope returns the scope key this session renders.
func (s *Session) Scope() string {
	return s.scope
}

// Signature fingerprints a layout: node count, sorted node ids, and any
// extra flags (filter toggles, version pins). Two graphs with equal
// signatures are considered the same layout.
func Signature(g canvas.Graph, flags ...string) string {
	ids := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		ids[i] = n.ID
	}
	sort.Strings(ids)
	return fmt.Sprintf("%d|%s|%s", len(ids), strings.Join(ids, ","), strings.Join(flags, "|"))
}

// NextRequest allocates a request number. Callers take one before starting
// a rebuild and pass it to Propose so overlapping rebuilds resolve
// last-request-wins.
func (s *Session) NextRequest() uint64 {
	return s.nextReq.Add(1)
}

// Propose offers a rebuilt graph. Proposals older than the newest seen are
// dropped, as are layouts whose signature matches what is already committed
// or pending. Accepted proposals commit after the debounce window; a newer
// proposal arriving first replaces the pending one and restarts the window.
func (s *Session) Propose(req uint64, g canvas.Graph, flags ...string) {
	sig := Signature(g, flags...)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || req < s.lastReq {
		return
	}
	s.lastReq = req
	if s.committedOnce && sig == s.committedSig {
		// Newest request matches what is already on screen; abandon any
		// in-flight pending layout.
		s.pending = nil
		s.pendingSig = ""
		if s.timer != nil {
			s.timer.Stop()
		}
		return
	}
	if s.pending != nil && sig == s.pendingSig {
		return
	}

	s.pending = &g
	s.pendingSig = sig
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, s.commit)
}

func (s *Session) commit() {
	s.mu.Lock()
	if s.stopped || s.pending == nil {
		s.mu.Unlock()
		return
	}
	s.committed = *s.pending
	s.committedSig = s.pendingSig
	s.committedOnce = true
	s.pending = nil
	s.pendingSig = ""
	g := s.committed
	hook := s.onCommit
	s.mu.Unlock()

	if hook != nil {
		hook(g)
	}
}

// Committed returns the current graph, or the skeleton placeholder if
// nothing has committed yet.
func (s *Session) Committed() canvas.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.committedOnce {
		return canvas.Skeleton(s.scope, s.label)
	}
	return s.committed
}

// HasCommitted reports whether at least one proposal has landed.
func (s *Session) HasCommitted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committedOnce
}

// Stop cancels any pending commit and puts the session in a terminal state.
// Further proposals are ignored.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Manager hands out one session per scope, creating them on demand.
type Manager struct {
	debounce time.Duration
	onCommit func(canvas.Graph)

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a manager whose sessions share a debounce and commit
// hook. The hook receives every committed graph from every scope.
func NewManager(debounce time.Duration, onCommit func(canvas.Graph)) *Manager {
	return &Manager{
		debounce: debounce,
		onCommit: onCommit,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session for a scope, creating it if needed. The label is
// only used when the session does not exist yet.
func (m *Manager) Get(scope, label string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[scope]; ok {
		return s
	}
	s := New(scope, label, m.debounce, m.onCommit)
	m.sessions[scope] = s
	return s
}

// Stop stops every session and forgets them.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		s.Stop()
	}
	m.sessions = make(map[string]*Session)
}
