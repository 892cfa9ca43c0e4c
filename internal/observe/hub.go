package observe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/oshokin/sensor-node/internal/logger"
	"github.com/oshokin/sensor-node/internal/resource"
)

// Notification is one representation pushed to observers.
type Notification struct {
	// Name is the resource identity.
	Name string
	// Path is the URI path of the resource.
	Path string
	// Sequence increases by one per notification of the resource.
	Sequence uint64
	// Response is the rendered representation.
	Response resource.Response
	// At is when the representation was rendered.
	At time.Time
}

// Resolver finds resources and their paths.
type Resolver interface {
	Lookup(nameOrPath string) (resource.Resource, error)
	Path(name string) string
}

// Recorder receives dispatch statistics.
type Recorder interface {
	Notified(name string, subscribers int)
	Observers(count int)
}

var (
	// ErrNotObservable is returned when subscribing to a resource without notifications.
	ErrNotObservable = errors.New("resource is not observable")
	// ErrClosed is returned when subscribing to a closed hub.
	ErrClosed = errors.New("observe hub is closed")
)

// subscriptionBuffer is the queue depth of each subscriber.
const subscriptionBuffer = 1

// Hub fans out notifications to subscribers keyed by resource name.
type Hub struct {
	resolver Resolver
	recorder Recorder
	now      func() time.Time

	mu       sync.Mutex
	subs     map[string]map[xid.ID]*Subscription
	sequence map[string]uint64
	count    int
	closed   bool
}

// Option customises a Hub.
type Option func(*Hub)

// WithRecorder attaches a statistics recorder.
func WithRecorder(recorder Recorder) Option {
	return func(h *Hub) {
		if recorder != nil {
			h.recorder = recorder
		}
	}
}

// WithClock overrides the clock stamping notifications.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHub creates a hub reading representations from the resolver.
func NewHub(resolver Resolver, opts ...Option) *Hub {
	h := &Hub{
		resolver: resolver,
		recorder: nopRecorder{},
		now:      time.Now,
		subs:     make(map[string]map[xid.ID]*Subscription),
		sequence: make(map[string]uint64),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Subscribe registers an observer and returns the current representation.
func (h *Hub) Subscribe(nameOrPath string) (*Subscription, Notification, error) {
	res, err := h.resolver.Lookup(nameOrPath)
	if err != nil {
		return nil, Notification{}, err
	}

	if !res.Observable() {
		return nil, Notification{}, fmt.Errorf("%s: %w", res.Name(), ErrNotObservable)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, Notification{}, ErrClosed
	}

	// Rendered under mu so a concurrent Notify is either included here or delivered after.
	current := h.render(res)

	sub := &Subscription{
		ID:   xid.New(),
		Name: res.Name(),
		c:    make(chan Notification, subscriptionBuffer),
		hub:  h,
	}

	if h.subs[sub.Name] == nil {
		h.subs[sub.Name] = make(map[xid.ID]*Subscription)
	}

	h.subs[sub.Name][sub.ID] = sub
	h.count++
	h.recorder.Observers(h.count)

	current.Sequence = h.sequence[sub.Name]

	return sub, current, nil
}

// Notify renders the resource once and delivers it to all its subscribers.
func (h *Hub) Notify(ctx context.Context, name string) {
	res, err := h.resolver.Lookup(name)
	if err != nil {
		logger.WarnKV(ctx, "Notification for unknown resource", "resource", name, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	n := h.render(res)

	h.sequence[n.Name]++
	n.Sequence = h.sequence[n.Name]

	subs := h.subs[n.Name]
	for _, sub := range subs {
		sub.deliver(n)
	}

	h.recorder.Notified(n.Name, len(subs))
	logger.DebugKV(ctx, "Notified observers", "resource", n.Name, "observers", len(subs), "sequence", n.Sequence)
}

// Observers returns the number of active subscriptions.
func (h *Hub) Observers() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.count
}

// Close cancels every subscription and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	h.closed = true

	for name, subs := range h.subs {
		for id, sub := range subs {
			close(sub.c)
			delete(subs, id)
		}

		delete(h.subs, name)
	}

	h.count = 0
	h.recorder.Observers(0)
}

// render reads the resource into a fresh notification. Called with mu held.
func (h *Hub) render(res resource.Resource) Notification {
	return Notification{
		Name:     res.Name(),
		Path:     h.resolver.Path(res.Name()),
		Response: res.Read(make([]byte, 0, resource.MaxChunkSize)),
		At:       h.now(),
	}
}

// cancel removes a subscription; it is a no-op once the hub dropped it.
func (h *Hub) cancel(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subs[sub.Name]
	if _, ok := subs[sub.ID]; !ok {
		return
	}

	delete(subs, sub.ID)
	close(sub.c)

	if len(subs) == 0 {
		delete(h.subs, sub.Name)
	}

	h.count--
	h.recorder.Observers(h.count)
}

// Subscription receives notifications of one resource.
type Subscription struct {
	// ID uniquely identifies the subscription.
	ID xid.ID
	// Name is the observed resource.
	Name string

	c   chan Notification
	hub *Hub
}

// C returns the notification channel; it is closed on Cancel or hub Close.
func (s *Subscription) C() <-chan Notification {
	return s.c
}

// Cancel stops the subscription.
func (s *Subscription) Cancel() {
	s.hub.cancel(s)
}

// deliver enqueues n, replacing a stale pending notification. Called with hub.mu held.
func (s *Subscription) deliver(n Notification) {
	select {
	case s.c <- n:
		return
	default:
	}

	select {
	case <-s.c:
	default:
	}

	select {
	case s.c <- n:
	default:
	}
}

// nopRecorder discards statistics.
type nopRecorder struct{}

func (nopRecorder) Notified(string, int) {}
func (nopRecorder) Observers(int)        {}
