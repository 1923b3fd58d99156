package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/deptexhq/deptex/internal/canvas"
	"github.com/deptexhq/deptex/internal/events"
	"github.com/deptexhq/deptex/internal/model"
)

// awaitCommit waits for the next graph commit broadcast on the hub.
func awaitCommit(t *testing.T, client *sseClient) events.GraphCommitted {
	t.Helper()
	for {
		select {
		case evt := <-client.ch:
			if evt.Topic != events.TopicGraphCommitted {
				continue
			}
			var gc events.GraphCommitted
			if err := json.Unmarshal(evt.Data, &gc); err != nil {
				t.Fatalf("bad commit payload: %v", err)
			}
			return gc
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for graph commit")
		}
	}
}

func TestHandleWatch_Lifecycle(t *testing.T) {
	srv, repo, _, handler := newTestServer()
	seedHierarchy(repo)

	client := srv.sseHub.subscribe([]string{events.TopicGraphCommitted})
	defer srv.sseHub.unsubscribe(client)

	rec := doJSON(t, handler, "POST", "/v1/watch", map[string]any{"scope": "project:prj-1"})
	requireStatus(t, rec, 202)
	var entry watchEntry
	decodeJSON(t, rec, &entry)
	if entry.Scope != "project:prj-1" || entry.Label != "prj-1" {
		t.Fatalf("unexpected watch entry: %+v", entry)
	}

	// The off-request build commits and announces itself.
	gc := awaitCommit(t, client)
	if gc.Scope != "project:prj-1" {
		t.Fatalf("expected commit for project:prj-1, got %q", gc.Scope)
	}
	if gc.Nodes != 4 || gc.Worst != model.SeverityCritical {
		t.Fatalf("unexpected commit stats: %+v", gc)
	}

	// The committed layout is served on demand.
	rec = doJSON(t, handler, "GET", "/v1/watch/project:prj-1", nil)
	requireStatus(t, rec, 200)
	var g canvas.Graph
	decodeJSON(t, rec, &g)
	if len(g.Nodes) != 4 {
		t.Fatalf("expected 4 committed nodes, got %d", len(g.Nodes))
	}

	rec = doJSON(t, handler, "GET", "/v1/watch", nil)
	requireStatus(t, rec, 200)
	var list struct {
		Watches []struct {
			Scope     string        `json:"scope"`
			Committed bool          `json:"committed"`
			Stats     *canvas.Stats `json:"stats"`
		} `json:"watches"`
		Total int `json:"total"`
	}
	decodeJSON(t, rec, &list)
	if list.Total != 1 || !list.Watches[0].Committed {
		t.Fatalf("unexpected watch list: %+v", list)
	}
	if list.Watches[0].Stats == nil || list.Watches[0].Stats.Nodes != 4 {
		t.Fatalf("expected committed stats in list, got %+v", list.Watches[0].Stats)
	}

	rec = doJSON(t, handler, "DELETE", "/v1/watch/project:prj-1", nil)
	requireStatus(t, rec, 200)
	rec = doJSON(t, handler, "DELETE", "/v1/watch/project:prj-1", nil)
	requireStatus(t, rec, 404)
}

func TestHandleWatch_SkeletonBeforeCommit(t *testing.T) {
	_, repo, _, handler := newTestServer()
	seedHierarchy(repo)
	repo.treeErr = fmt.Errorf("upstream down")

	rec := doJSON(t, handler, "POST", "/v1/watch", map[string]any{"scope": "project:prj-1"})
	requireStatus(t, rec, 202)

	// Give the failed off-request build time to run and drop.
	time.Sleep(50 * time.Millisecond)

	rec = doJSON(t, handler, "GET", "/v1/watch/project:prj-1", nil)
	requireStatus(t, rec, 200)
	var g canvas.Graph
	decodeJSON(t, rec, &g)
	if g.Scope != "project:prj-1" {
		t.Fatalf("expected skeleton scope project:prj-1, got %q", g.Scope)
	}
	if len(g.Nodes) != 1 || g.Nodes[0].Type != canvas.NodeSkeleton {
		t.Fatalf("expected a single skeleton node, got %+v", g.Nodes)
	}

	rec = doJSON(t, handler, "GET", "/v1/watch", nil)
	requireStatus(t, rec, 200)
	var list struct {
		Watches []struct {
			Committed bool `json:"committed"`
		} `json:"watches"`
	}
	decodeJSON(t, rec, &list)
	if len(list.Watches) != 1 || list.Watches[0].Committed {
		t.Fatalf("expected an uncommitted watch, got %+v", list.Watches)
	}
}

// TestGraphFetchFeedsWatchedScope verifies a plain graph GET doubles as a
// session proposal when the scope is watched with the same settings.
func TestGraphFetchFeedsWatchedScope(t *testing.T) {
	srv, repo, _, handler := newTestServer()
	seedHierarchy(repo)

	client := srv.sseHub.subscribe([]string{events.TopicGraphCommitted})
	defer srv.sseHub.unsubscribe(client)

	rec := doJSON(t, handler, "POST", "/v1/watch", map[string]any{"scope": "project:prj-1"})
	requireStatus(t, rec, 202)
	if gc := awaitCommit(t, client); gc.Nodes != 4 {
		t.Fatalf("expected initial commit of 4 nodes, got %d", gc.Nodes)
	}

	// The tree grows a dependency; a plain fetch should re-propose the new
	// layout into the watched session.
	repo.mu.Lock()
	repo.trees["prj-1"].Dependencies = append(repo.trees["prj-1"].Dependencies, &model.DependencyNode{
		Dependency: model.Dependency{Name: "express", Version: "4.18.0", Ecosystem: model.EcosystemNpm, Direct: true},
	})
	repo.mu.Unlock()

	rec = doJSON(t, handler, "GET", "/v1/projects/prj-1/graph", nil)
	requireStatus(t, rec, 200)

	if gc := awaitCommit(t, client); gc.Nodes != 5 {
		t.Fatalf("expected re-commit with 5 nodes, got %d", gc.Nodes)
	}
}

// TestGraphFetchSkipsMismatchedWatch verifies a fetch with different build
// settings does not leak into the watched session.
func TestGraphFetchSkipsMismatchedWatch(t *testing.T) {
	srv, repo, _, handler := newTestServer()
	seedHierarchy(repo)

	client := srv.sseHub.subscribe([]string{events.TopicGraphCommitted})
	defer srv.sseHub.unsubscribe(client)

	rec := doJSON(t, handler, "POST", "/v1/watch", map[string]any{"scope": "project:prj-1"})
	requireStatus(t, rec, 202)
	awaitCommit(t, client)

	// reachable_only does not match the registration; no proposal follows.
	rec = doJSON(t, handler, "GET", "/v1/projects/prj-1/graph?reachable_only=true", nil)
	requireStatus(t, rec, 200)

	select {
	case evt := <-client.ch:
		t.Fatalf("unexpected commit from mismatched fetch: %s", evt.Data)
	case <-time.After(150 * time.Millisecond):
	}
}

// mockSubscriber hands out in-memory channels per topic.
type mockSubscriber struct {
	mu       sync.Mutex
	chans    map[string]chan []byte
	canceled int
	failOn   string
}

func newMockSubscriber() *mockSubscriber {
	return &mockSubscriber{chans: make(map[string]chan []byte)}
}

func (m *mockSubscriber) Subscribe(topic string) (<-chan []byte, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if topic == m.failOn {
		return nil, nil, fmt.Errorf("subscribe failed for %s", topic)
	}
	ch := make(chan []byte, 16)
	m.chans[topic] = ch
	return ch, func() {
		m.mu.Lock()
		m.canceled++
		m.mu.Unlock()
	}, nil
}

func (m *mockSubscriber) Close() error { return nil }

func (m *mockSubscriber) push(topic string, payload []byte) {
	m.mu.Lock()
	ch := m.chans[topic]
	m.mu.Unlock()
	ch <- payload
}

func (m *mockSubscriber) canceledCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.canceled
}

func TestStartWatchSubscriber(t *testing.T) {
	srv, repo, _, handler := newTestServer()
	seedHierarchy(repo)

	client := srv.sseHub.subscribe([]string{events.TopicGraphCommitted})
	defer srv.sseHub.unsubscribe(client)

	rec := doJSON(t, handler, "POST", "/v1/watch", map[string]any{"scope": "project:prj-1"})
	requireStatus(t, rec, 202)
	awaitCommit(t, client)

	sub := newMockSubscriber()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := srv.StartWatchSubscriber(ctx, sub); err != nil {
		t.Fatalf("StartWatchSubscriber: %v", err)
	}

	// Lifting the ban changes left-pad's annotation; the bus event triggers
	// the rebuild that picks it up.
	repo.mu.Lock()
	repo.bans["org-1"] = nil
	repo.mu.Unlock()
	sub.push("deptex.policy.>", []byte(`{"ban_id":"ban-seed"}`))

	// Same node ids, same count; the signature covers ids and flags only, so
	// an annotation-only change does not re-commit. Grow the tree instead.
	repo.mu.Lock()
	repo.trees["prj-1"].Dependencies = append(repo.trees["prj-1"].Dependencies, &model.DependencyNode{
		Dependency: model.Dependency{Name: "express", Version: "4.18.0", Ecosystem: model.EcosystemNpm, Direct: true},
	})
	repo.mu.Unlock()
	sub.push(events.TopicVulnDisclosed, []byte(`{"package":"express"}`))

	if gc := awaitCommit(t, client); gc.Nodes != 5 {
		t.Fatalf("expected bus-triggered re-commit with 5 nodes, got %d", gc.Nodes)
	}

	// Canceling the context releases both subscriptions.
	cancel()
	deadline := time.Now().Add(time.Second)
	for sub.canceledCount() != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("expected 2 canceled subscriptions, got %d", sub.canceledCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStartWatchSubscriber_SubscribeError(t *testing.T) {
	srv, _, _, _ := newTestServer()

	sub := newMockSubscriber()
	sub.failOn = events.TopicVulnDisclosed

	err := srv.StartWatchSubscriber(context.Background(), sub)
	if err == nil {
		t.Fatal("expected subscribe error")
	}
	// The earlier successful subscription was released.
	if got := sub.canceledCount(); got != 1 {
		t.Fatalf("expected 1 canceled subscription, got %d", got)
	}
}
