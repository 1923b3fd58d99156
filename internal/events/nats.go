package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// subscriberBuffer bounds undelivered payloads per subscription. A consumer
// that falls further behind loses messages rather than stalling the bus.
const subscriberBuffer = 64

// NATSPublisher emits JSON-encoded events onto NATS subjects.
type NATSPublisher struct {
	conn *nats.Conn
}

var _ Publisher = (*NATSPublisher)(nil)

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("deptex-gateway"))
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{conn: nc}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling %s event: %w", topic, err)
	}
	if err := p.conn.Publish(topic, data); err != nil {
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	return nil
}

// Close flushes buffered publishes before dropping the connection, so events
// emitted right before shutdown still reach the server.
func (p *NATSPublisher) Close() error {
	err := p.conn.FlushTimeout(2 * time.Second)
	p.conn.Close()
	return err
}

// NATSSubscriber consumes events from NATS subjects. The connection reconnects
// indefinitely, so a bus restart pauses delivery instead of killing downstream
// watchers.
type NATSSubscriber struct {
	conn *nats.Conn
}

var _ Subscriber = (*NATSSubscriber)(nil)

// NewNATSSubscriber connects to the bus. Extra nats.Option values (disconnect
// handlers, credentials) are applied after the reconnect defaults.
func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	connOpts := append([]nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}, opts...)
	nc, err := nats.Connect(url, connOpts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSSubscriber{conn: nc}, nil
}

// Subscribe starts delivering payloads published to topic. Delivery rides a
// forwarding goroutine between the NATS client's channel and the caller's, so
// a slow caller drops payloads without ever blocking the client. Cancel is
// idempotent and closes the channel after discarding anything still buffered.
func (s *NATSSubscriber) Subscribe(topic string) (<-chan []byte, func(), error) {
	msgs := make(chan *nats.Msg, subscriberBuffer)
	sub, err := s.conn.ChanSubscribe(topic, msgs)
	if err != nil {
		return nil, nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	// Round-trip to the server so the subscription is live before we return;
	// without it, a publish racing this call on another connection is lost.
	if err := s.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, nil, fmt.Errorf("flushing subscription to %s: %w", topic, err)
	}

	out := make(chan []byte, subscriberBuffer)
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			case m := <-msgs:
				select {
				case out <- m.Data:
				default:
					// Consumer backlog full; drop.
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			_ = sub.Unsubscribe()
			close(stop)
			<-done
			for {
				select {
				case <-out:
				default:
					close(out)
					return
				}
			}
		})
	}

	return out, cancel, nil
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
