package forwarder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/oshokin/sensor-node/internal/logger"
	"github.com/oshokin/sensor-node/internal/observe"
)

// Publisher sends a message; *amqp.Channel satisfies it.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Subscriber opens observe subscriptions; *observe.Hub satisfies it.
type Subscriber interface {
	Subscribe(nameOrPath string) (*observe.Subscription, observe.Notification, error)
}

// Event is the message body published for each notification.
type Event struct {
	Resource    string    `json:"resource"`
	Path        string    `json:"path"`
	Sequence    uint64    `json:"sequence"`
	Payload     string    `json:"payload"`
	ContentType string    `json:"content_type"`
	At          time.Time `json:"at"`
}

// ErrNoResources is returned when Run is given nothing to forward.
var ErrNoResources = errors.New("no resources to forward")

// Forwarder publishes notifications of the given resources to a queue.
type Forwarder struct {
	publisher Publisher
	queue     string
	timeout   time.Duration
}

// New creates a forwarder publishing to queue through the default exchange.
func New(publisher Publisher, queue string, timeout time.Duration) *Forwarder {
	return &Forwarder{
		publisher: publisher,
		queue:     queue,
		timeout:   timeout,
	}
}

// Dial connects to the broker and declares a durable queue.
func Dial(uri, queue string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()

		return nil, nil, fmt.Errorf("open amqp channel: %w", err)
	}

	if _, err = ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()

		return nil, nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}

	return conn, ch, nil
}

// Run subscribes to names and forwards notifications until ctx is done.
// The representation current at subscription time is not forwarded.
func (f *Forwarder) Run(ctx context.Context, subscriber Subscriber, names ...string) error {
	subs, err := Subscribe(subscriber, names...)
	if err != nil {
		return err
	}

	f.Forward(ctx, subs)

	return nil
}

// Subscribe registers one subscription per name; on failure none is left behind.
// Notifications raised after it returns are queued for Forward.
func Subscribe(subscriber Subscriber, names ...string) ([]*observe.Subscription, error) {
	if len(names) == 0 {
		return nil, ErrNoResources
	}

	subs := make([]*observe.Subscription, 0, len(names))

	for _, name := range names {
		sub, _, err := subscriber.Subscribe(name)
		if err != nil {
			for _, s := range subs {
				s.Cancel()
			}

			return nil, fmt.Errorf("subscribe %s: %w", name, err)
		}

		subs = append(subs, sub)
	}

	return subs, nil
}

// Forward publishes notifications of subs until ctx is done, then cancels them.
func (f *Forwarder) Forward(ctx context.Context, subs []*observe.Subscription) {
	ctx = logger.WithName(ctx, "forwarder")
	logger.InfoKV(ctx, "Forwarding notifications", "queue", f.queue, "resources", len(subs))

	var wg sync.WaitGroup

	for _, sub := range subs {
		wg.Go(func() {
			f.forward(ctx, sub)
		})
	}

	wg.Wait()
}

// forward drains one subscription until ctx is done or the hub closes it.
func (f *Forwarder) forward(ctx context.Context, sub *observe.Subscription) {
	defer sub.Cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-sub.C():
			if !ok {
				return
			}

			if err := f.Publish(ctx, n); err != nil {
				logger.ErrorKV(ctx, "Failed to forward notification", "resource", n.Name, "error", err)
			}
		}
	}
}

// Publish sends one notification.
func (f *Forwarder) Publish(ctx context.Context, n observe.Notification) error {
	body, err := json.Marshal(Event{
		Resource:    n.Name,
		Path:        n.Path,
		Sequence:    n.Sequence,
		Payload:     string(n.Response.Payload),
		ContentType: n.Response.ContentType,
		At:          n.At.UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	err = f.publisher.PublishWithContext(ctx, "", f.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    n.At,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", f.queue, err)
	}

	logger.DebugKV(ctx, "Notification forwarded", "resource", n.Name, "sequence", n.Sequence)

	return nil
}
