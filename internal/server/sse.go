package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/deptexhq/deptex/internal/presence"
)

const (
	// sseRingCap bounds how many recent events are retained for
	// Last-Event-ID replay.
	sseRingCap = 1000

	// sseClientBuffer is the per-connection delivery buffer. A consumer that
	// overruns it loses events live but can recover them by reconnecting
	// with Last-Event-ID.
	sseClientBuffer = 64

	// sseKeepalive paces comment lines that keep idle connections open
	// through proxies.
	sseKeepalive = 15 * time.Second
)

// sseEvent is one broadcast: a sequence number, its bus topic, and the
// JSON payload.
type sseEvent struct {
	ID    uint64
	Topic string
	Data  []byte
}

// sseHub fans events out to connected stream handlers and retains the last
// sseRingCap of them for replay. Sequence numbers are contiguous from 1, so
// the ring needs no per-entry bookkeeping: event ID n lives at (n-1) mod cap
// once the buffer has wrapped.
type sseHub struct {
	mu      sync.Mutex
	seq     uint64
	buf     []sseEvent
	clients map[*sseClient]struct{}
}

// sseClient is one connected consumer. An empty topics list means every
// event.
type sseClient struct {
	topics []string
	ch     chan sseEvent
}

func newSSEHub() *sseHub {
	return &sseHub{clients: make(map[*sseClient]struct{})}
}

// broadcast assigns the next sequence number, retains the event, and offers
// it to every matching client without blocking.
func (h *sseHub) broadcast(topic string, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	evt := sseEvent{ID: h.seq, Topic: topic, Data: payload}
	if len(h.buf) < sseRingCap {
		h.buf = append(h.buf, evt)
	} else {
		h.buf[(evt.ID-1)%sseRingCap] = evt
	}

	for c := range h.clients {
		if !c.matches(topic) {
			continue
		}
		select {
		case c.ch <- evt:
		default:
			// Consumer overran its buffer; it can replay on reconnect.
		}
	}
}

func (h *sseHub) subscribe(topics []string) *sseClient {
	c := &sseClient{topics: topics, ch: make(chan sseEvent, sseClientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *sseHub) unsubscribe(c *sseClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// eventsSince returns copies of the retained events with IDs after lastID,
// oldest first. A lastID that already fell out of the ring replays whatever
// is still retained.
func (h *sseHub) eventsSince(lastID uint64) []sseEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.buf) == 0 || lastID >= h.seq {
		return nil
	}
	from := lastID + 1
	if oldest := h.seq - uint64(len(h.buf)) + 1; from < oldest {
		from = oldest
	}

	out := make([]sseEvent, 0, h.seq-from+1)
	for id := from; id <= h.seq; id++ {
		out = append(out, h.buf[(id-1)%sseRingCap])
	}
	return out
}

func (c *sseClient) matches(topic string) bool {
	if len(c.topics) == 0 {
		return true
	}
	return slices.ContainsFunc(c.topics, func(pattern string) bool {
		return matchTopicPattern(pattern, topic)
	})
}

// matchTopicPattern compares dot-separated subjects the way the bus does:
// "*" consumes exactly one segment, a trailing ">" consumes one or more.
func matchTopicPattern(pattern, topic string) bool {
	segs := strings.Split(pattern, ".")
	parts := strings.Split(topic, ".")
	for len(segs) > 0 {
		if segs[0] == ">" {
			return len(parts) > 0
		}
		if len(parts) == 0 || (segs[0] != "*" && segs[0] != parts[0]) {
			return false
		}
		segs, parts = segs[1:], parts[1:]
	}
	return len(parts) == 0
}

// parseTopicFilters splits the comma-separated topics query parameter,
// dropping empty entries.
func parseTopicFilters(q string) []string {
	if q == "" {
		return nil
	}
	var topics []string
	for _, t := range strings.Split(q, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}

// handleEventStream serves GET /v1/events/stream. The optional scope query
// parameter doubles as a presence heartbeat: the connection marks its user as
// viewing that scope and refreshes the mark on every keepalive tick.
func (s *GatewayServer) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	topics := parseTopicFilters(r.URL.Query().Get("topics"))
	scope := r.URL.Query().Get("scope")
	user := requestUser(r)
	heartbeat := func() {
		if scope != "" && s.Presence != nil {
			s.Presence.RecordHeartbeat(presence.Heartbeat{Scope: scope, User: user, Via: "stream"})
		}
	}
	heartbeat()

	client := s.sseHub.subscribe(topics)
	defer s.sseHub.unsubscribe(client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// A reconnecting client names the last event it saw; replay what it
	// missed before going live.
	if lastIDStr := r.Header.Get("Last-Event-ID"); lastIDStr != "" {
		if lastID, err := strconv.ParseUint(lastIDStr, 10, 64); err == nil {
			for _, evt := range s.sseHub.eventsSince(lastID) {
				if client.matches(evt.Topic) {
					writeSSEEvent(w, evt)
				}
			}
			flusher.Flush()
		}
	}

	ctx := r.Context()
	tick := time.NewTicker(sseKeepalive)
	defer tick.Stop()

	for {
		select {
		case evt := <-client.ch:
			writeSSEEvent(w, evt)
			flusher.Flush()
		case <-tick.C:
			fmt.Fprint(w, ":keepalive\n\n")
			flusher.Flush()
			heartbeat()
		case <-ctx.Done():
			return
		}
	}
}

func writeSSEEvent(w io.Writer, evt sseEvent) {
	fmt.Fprintf(w, "id:%d\nevent:%s\ndata:%s\n\n", evt.ID, evt.Topic, evt.Data)
}

// broadcastEvent mirrors a bus event onto connected SSE streams.
func (s *GatewayServer) broadcastEvent(topic string, event any) {
	if s.sseHub == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("dropping SSE broadcast", "topic", topic, "error", err)
		return
	}
	s.sseHub.broadcast(topic, payload)
}
