package observer

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	api "github.com/oshokin/sensor-node/internal/api/grpc/resource"
	"github.com/oshokin/sensor-node/internal/config"
	"github.com/oshokin/sensor-node/internal/logger"
	"github.com/oshokin/sensor-node/internal/service/common"
)

// Options controls the observer connection.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// NodeAddress overrides the node gRPC address.
	NodeAddress string
	// Output receives the printed representations; nil means stdout.
	Output io.Writer
}

// Client is the subset of the resource client the commands use.
type Client interface {
	List(ctx context.Context) ([]api.Link, error)
	Get(ctx context.Context, resource string) (api.Representation, error)
	Observe(ctx context.Context, resource string, fn func(api.Representation) error) error
}

// connect loads settings and dials the node.
func connect(ctx context.Context, opts *Options) (*common.Client, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	address := cfg.ListenAddress
	if opts.NodeAddress != "" {
		address = opts.NodeAddress
	}

	actor, err := common.DetectActor()
	if err != nil {
		logger.WarnKV(ctx, "Failed to detect actor", "error", err)

		actor = "node-observer"
	}

	client, err := common.Dial(ctx, address,
		common.WithCallTimeout(cfg.Timeout),
		common.WithUserAgent(actor))
	if err != nil {
		return nil, fmt.Errorf("dial node: %w", err)
	}

	logger.DebugKV(ctx, "Connected to node", "address", address)

	return client, nil
}

// withClient dials, runs fn and closes the connection.
func withClient(ctx context.Context, opts *Options, fn func(Client, io.Writer) error) error {
	client, err := connect(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	return fn(client, out)
}

// RunList prints every resource of the node.
func RunList(ctx context.Context, opts *Options) error {
	return withClient(ctx, opts, func(c Client, out io.Writer) error {
		return List(ctx, c, out)
	})
}

// RunGet prints the current representation of each resource.
func RunGet(ctx context.Context, opts *Options, resources ...string) error {
	return withClient(ctx, opts, func(c Client, out io.Writer) error {
		return Get(ctx, c, out, resources...)
	})
}

// RunObserve prints notifications of the resources until ctx is done.
func RunObserve(ctx context.Context, opts *Options, resources ...string) error {
	return withClient(ctx, opts, func(c Client, out io.Writer) error {
		return Observe(ctx, c, out, resources...)
	})
}

// RunWatch runs the adaptive monitor until ctx is done.
func RunWatch(ctx context.Context, opts *Options, watchOpts ...WatchOption) error {
	return withClient(ctx, opts, func(c Client, out io.Writer) error {
		return NewWatcher(c, out, watchOpts...).Run(ctx)
	})
}

// List writes a table of resources.
func List(ctx context.Context, c Client, out io.Writer) error {
	links, err := c.List(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PATH\tTITLE\tOBSERVABLE")

	for _, link := range links {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%t\n", link.Path, link.Title, link.Observable)
	}

	return w.Flush()
}

// Get prints the current representation of each resource.
func Get(ctx context.Context, c Client, out io.Writer, resources ...string) error {
	p := newPrinter(out)

	for _, resource := range resources {
		rep, err := c.Get(ctx, resource)
		if err != nil {
			return err
		}

		p.print(rep)
	}

	return nil
}

// Observe prints notifications of every resource until ctx is done or a stream fails.
func Observe(ctx context.Context, c Client, out io.Writer, resources ...string) error {
	p := newPrinter(out)
	group, groupCtx := errgroup.WithContext(ctx)

	for _, resource := range resources {
		group.Go(func() error {
			return c.Observe(groupCtx, resource, func(rep api.Representation) error {
				p.print(rep)

				return nil
			})
		})
	}

	return group.Wait()
}

// printer serialises output lines from concurrent streams.
type printer struct {
	mu  sync.Mutex
	out io.Writer
}

func newPrinter(out io.Writer) *printer {
	return &printer{out: out}
}

// print writes one representation per line.
func (p *printer) print(rep api.Representation) {
	p.mu.Lock()
	defer p.mu.Unlock()

	at := rep.At
	if at.IsZero() {
		at = time.Now()
	}

	line := fmt.Sprintf("%s %s", at.Format(time.RFC3339), rep.Path)
	if rep.Sequence > 0 {
		line += fmt.Sprintf(" #%d", rep.Sequence)
	}

	_, _ = fmt.Fprintf(p.out, "%s %s\n", line, rep.Payload)
}
