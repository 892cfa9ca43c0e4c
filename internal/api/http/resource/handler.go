package resource

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oshokin/sensor-node/internal/logger"
	"github.com/oshokin/sensor-node/internal/observe"
	domain "github.com/oshokin/sensor-node/internal/resource"
)

// Catalog abstracts the registry operations the facade depends on.
type Catalog interface {
	Lookup(nameOrPath string) (domain.Resource, error)
	Path(name string) string
	LinkFormat() string
}

// Subscriber abstracts the observe hub.
type Subscriber interface {
	Subscribe(nameOrPath string) (*observe.Subscription, observe.Notification, error)
}

// Message is the websocket frame sent per representation.
type Message struct {
	Resource      string    `json:"resource"`
	Path          string    `json:"path"`
	Sequence      uint64    `json:"sequence"`
	Payload       string    `json:"payload"`
	ContentType   string    `json:"content_type"`
	MaxAgeSeconds int64     `json:"max_age_seconds"`
	At            time.Time `json:"at"`
}

const (
	// DiscoveryPath serves the link-format document.
	DiscoveryPath = "/.well-known/core"
	// MetricsPath serves Prometheus metrics.
	MetricsPath = "/metrics"
	// ObserveParam turns a GET into an observe registration.
	ObserveParam = "observe"

	contentTypeLinkFormat = "application/link-format"
	defaultWriteTimeout   = 5 * time.Second
)

// Handler routes facade requests.
type Handler struct {
	catalog      Catalog
	subscriber   Subscriber
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	mux          *http.ServeMux
}

// Option customises a Handler.
type Option func(*Handler)

// WithMetrics mounts a metrics handler on /metrics.
func WithMetrics(metrics http.Handler) Option {
	return func(h *Handler) {
		if metrics != nil {
			h.mux.Handle(MetricsPath, metrics)
		}
	}
}

// WithWriteTimeout bounds each websocket write.
func WithWriteTimeout(timeout time.Duration) Option {
	return func(h *Handler) {
		if timeout > 0 {
			h.writeTimeout = timeout
		}
	}
}

// NewHandler wires the registry and the hub into an http.Handler.
func NewHandler(catalog Catalog, subscriber Subscriber, opts ...Option) *Handler {
	h := &Handler{
		catalog:      catalog,
		subscriber:   subscriber,
		writeTimeout: defaultWriteTimeout,
		mux:          http.NewServeMux(),
	}

	h.mux.HandleFunc(DiscoveryPath, h.discover)
	h.mux.HandleFunc("/", h.serveResource)

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// discover writes the link-format document.
func (h *Handler) discover(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	w.Header().Set("Content-Type", contentTypeLinkFormat)
	_, _ = w.Write([]byte(h.catalog.LinkFormat()))
}

// serveResource reads or observes one resource.
func (h *Handler) serveResource(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	res, err := h.catalog.Lookup(r.URL.Path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	if r.URL.Query().Has(ObserveParam) {
		h.observe(w, r, res.Name())
		return
	}

	// Sensor reads advance the simulation, so HEAD answers from headers alone.
	if _, sampling := res.(*domain.Sensor); sampling && r.Method == http.MethodHead {
		w.Header().Set("Content-Type", domain.ContentTypeText)
		w.Header().Set("Cache-Control", cacheControl(0))

		return
	}

	response := res.Read(make([]byte, 0, domain.MaxChunkSize))

	w.Header().Set("Content-Type", response.ContentType)
	w.Header().Set("Cache-Control", cacheControl(response.MaxAge))

	if response.Truncated {
		w.Header().Set("X-Truncated", "true")
	}

	_, _ = w.Write(response.Payload)
}

// observe upgrades to a websocket and streams notifications until either side leaves.
func (h *Handler) observe(w http.ResponseWriter, r *http.Request, name string) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "observe requires a websocket upgrade", http.StatusUpgradeRequired)
		return
	}

	sub, current, err := h.subscriber.Subscribe(name)
	if err != nil {
		http.Error(w, err.Error(), subscribeStatus(err))
		return
	}

	defer sub.Cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		return
	}

	defer conn.Close()

	ctx := logger.WithKV(r.Context(), "resource", sub.Name, "subscription", sub.ID.String())
	logger.Info(ctx, "Websocket observer registered")

	defer logger.Info(ctx, "Websocket observer deregistered")

	gone := readUntilClosed(conn)

	if err = h.write(conn, current); err != nil {
		logger.WarnKV(ctx, "Failed to write representation", "error", err)
		return
	}

	for {
		select {
		case <-gone:
			return
		case <-ctx.Done():
			return
		case n, ok := <-sub.C():
			if !ok {
				h.closeGoingAway(conn)
				return
			}

			if err = h.write(conn, n); err != nil {
				logger.WarnKV(ctx, "Failed to write representation", "error", err)
				return
			}
		}
	}
}

// write sends one notification as a JSON frame.
func (h *Handler) write(conn *websocket.Conn, n observe.Notification) error {
	if err := conn.SetWriteDeadline(time.Now().Add(h.writeTimeout)); err != nil {
		return err
	}

	return conn.WriteJSON(Message{
		Resource:      n.Name,
		Path:          n.Path,
		Sequence:      n.Sequence,
		Payload:       string(n.Response.Payload),
		ContentType:   n.Response.ContentType,
		MaxAgeSeconds: int64(n.Response.MaxAge / time.Second),
		At:            n.At.UTC(),
	})
}

// closeGoingAway tells the client the node is shutting down.
func (h *Handler) closeGoingAway(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "node is shutting down")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.writeTimeout))
}

// readUntilClosed drains client frames; the returned channel closes when the peer leaves.
func readUntilClosed(conn *websocket.Conn) <-chan struct{} {
	gone := make(chan struct{})

	go func() {
		defer close(gone)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	return gone
}

// allowGet rejects everything but GET and HEAD with 405.
func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}

	w.Header().Set("Allow", "GET, HEAD")
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)

	return false
}

// cacheControl renders the freshness lifetime of a representation.
func cacheControl(maxAge time.Duration) string {
	if maxAge <= 0 {
		return "no-cache"
	}

	return "max-age=" + strconv.FormatInt(int64(maxAge/time.Second), 10)
}

// subscribeStatus maps hub errors to HTTP statuses.
func subscribeStatus(err error) int {
	switch {
	case errors.Is(err, observe.ErrNotObservable):
		return http.StatusBadRequest
	case errors.Is(err, observe.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Serve runs srv until ctx is done, then shuts it down within timeout.
func Serve(ctx context.Context, srv *http.Server, timeout time.Duration) error {
	errCh := make(chan error, 1)

	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	return nil
}
