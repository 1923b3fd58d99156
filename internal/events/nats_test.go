package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/deptexhq/deptex/internal/model"
)

// startBus boots an embedded NATS server for the test and returns its client
// URL. The server is torn down with the test.
func startBus(t *testing.T) string {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS never became ready")
	}
	return srv.ClientURL()
}

func dialPair(t *testing.T, url string) (*NATSPublisher, *NATSSubscriber) {
	t.Helper()
	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("NewNATSPublisher: %v", err)
	}
	t.Cleanup(func() { pub.Close() })
	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("NewNATSSubscriber: %v", err)
	}
	t.Cleanup(func() { sub.Close() })
	return pub, sub
}

func TestNATSRoundTrip(t *testing.T) {
	pub, sub := dialPair(t, startBus(t))

	ch, cancel, err := sub.Subscribe(TopicGraphCommitted)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	sent := GraphCommitted{
		Scope:       "project:prj-roundtrip",
		Nodes:       57,
		Edges:       56,
		Worst:       model.SeverityCritical,
		GeneratedAt: time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC),
	}
	if err := pub.Publish(context.Background(), TopicGraphCommitted, sent); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case payload := <-ch:
		var got GraphCommitted
		if err := json.Unmarshal(payload, &got); err != nil {
			t.Fatalf("unmarshal delivered payload: %v", err)
		}
		if got.Scope != sent.Scope || got.Nodes != sent.Nodes || got.Edges != sent.Edges || got.Worst != sent.Worst {
			t.Errorf("delivered %+v, published %+v", got, sent)
		}
		if !got.GeneratedAt.Equal(sent.GeneratedAt) {
			t.Errorf("delivered generated_at %v, published %v", got.GeneratedAt, sent.GeneratedAt)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestNATSSubscribeWildcardScoping(t *testing.T) {
	pub, sub := dialPair(t, startBus(t))

	ch, cancel, err := sub.Subscribe("deptex.policy.>")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	ctx := context.Background()
	if err := pub.Publish(ctx, TopicGraphCommitted, GraphCommitted{Scope: "org:org-1"}); err != nil {
		t.Fatalf("Publish graph: %v", err)
	}
	if err := pub.Publish(ctx, TopicBanCreated, BanCreated{Ban: &model.BannedVersion{ID: "ban-w1", Package: "event-stream"}}); err != nil {
		t.Fatalf("Publish ban: %v", err)
	}

	// Only the policy event may arrive.
	select {
	case payload := <-ch:
		var got BanCreated
		if err := json.Unmarshal(payload, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Ban == nil || got.Ban.ID != "ban-w1" {
			t.Errorf("got %s, want the ban event", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the policy event")
	}
	select {
	case payload := <-ch:
		t.Fatalf("graph event leaked through policy subscription: %s", payload)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNATSPublishCanceledContext(t *testing.T) {
	pub, _ := dialPair(t, startBus(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := pub.Publish(ctx, TopicChatMessage, ChatMessagePosted{Message: &model.ChatMessage{ID: "chat-1", Role: model.RoleUser}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestNATSPublishAfterClose(t *testing.T) {
	url := startBus(t)
	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("NewNATSPublisher: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := pub.Publish(context.Background(), TopicGraphCommitted, GraphCommitted{}); err == nil {
		t.Fatal("expected an error publishing on a closed connection")
	}
}

func TestNATSCancelClosesChannel(t *testing.T) {
	_, sub := dialPair(t, startBus(t))

	ch, cancel, err := sub.Subscribe("deptex.>")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	cancel()
	if _, open := <-ch; open {
		t.Fatal("channel still open after cancel")
	}
	// A second cancel must be a no-op, not a double close.
	cancel()
}

func TestNATSCancelDuringDelivery(t *testing.T) {
	pub, sub := dialPair(t, startBus(t))

	ch, cancel, err := sub.Subscribe("deptex.>")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	flood := make(chan struct{})
	go func() {
		defer close(flood)
		for range 200 {
			_ = pub.conn.Publish(TopicVulnDisclosed, []byte(`{"package":"minimist"}`))
		}
		pub.conn.Flush()
	}()

	cancel()
	<-flood

	if _, open := <-ch; open {
		t.Fatal("channel still open after cancel")
	}
}

func TestNATSSubscriberExtraOptions(t *testing.T) {
	url := startBus(t)

	sub, err := NewNATSSubscriber(url, nats.DisconnectErrHandler(func(*nats.Conn, error) {}), nats.ReconnectHandler(func(*nats.Conn) {}))
	if err != nil {
		t.Fatalf("NewNATSSubscriber with options: %v", err)
	}
	defer sub.Close()
	if !sub.conn.IsConnected() {
		t.Fatal("connection not established with extra options")
	}
}
