//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	api "github.com/oshokin/sensor-node/internal/api/grpc/resource"
	"github.com/oshokin/sensor-node/internal/config"
)

// Client wraps the gRPC ResourceService client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the node.
	conn *grpc.ClientConn
	// api is the ResourceService stub.
	api *api.Client

	// callTimeout is the default timeout for unary calls.
	callTimeout time.Duration
	// userAgent identifies this client in node logs.
	userAgent string
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for unary calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithUserAgent sets the user agent sent to the node.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errResourceRequired is returned when a resource name is missing.
	errResourceRequired = errors.New("resource must be provided")
)

// Dial establishes a gRPC connection to the node.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy until native TLS is added.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	client := &Client{
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	dialOptions := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if client.userAgent != "" {
		dialOptions = append(dialOptions, grpc.WithUserAgent(client.userAgent))
	}

	conn, err := grpc.NewClient(address, dialOptions...)
	if err != nil {
		return nil, fmt.Errorf("dial node: %w", err)
	}

	client.conn = conn
	client.api = api.NewClient(conn)

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// List returns the resources registered on the node.
func (c *Client) List(ctx context.Context) ([]api.Link, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.List(callCtx)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}

	return api.FromListValue(resp)
}

// Get reads one resource.
func (c *Client) Get(ctx context.Context, resource string) (api.Representation, error) {
	if resource == "" {
		return api.Representation{}, errResourceRequired
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.Get(callCtx, resource)
	if err != nil {
		return api.Representation{}, fmt.Errorf("get %s: %w", resource, err)
	}

	return api.FromStruct(resp)
}

// Observe calls fn with the current representation of resource and then with
// every notification, until ctx is done, the node closes the stream or fn fails.
func (c *Client) Observe(ctx context.Context, resource string, fn func(api.Representation) error) error {
	if resource == "" {
		return errResourceRequired
	}

	stream, err := c.api.Observe(ctx, resource)
	if err != nil {
		return fmt.Errorf("observe %s: %w", resource, err)
	}

	for {
		msg, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("observe %s: %w", resource, err)
		}

		rep, err := api.FromStruct(msg)
		if err != nil {
			return err
		}

		if err = fn(rep); err != nil {
			return err
		}
	}
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
