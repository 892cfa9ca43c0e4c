package resource

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/sensor-node/internal/logger"
	"github.com/oshokin/sensor-node/internal/observe"
	domain "github.com/oshokin/sensor-node/internal/resource"
)

// Catalog abstracts the registry operations the transport depends on.
type Catalog interface {
	Resources() []domain.Resource
	Lookup(nameOrPath string) (domain.Resource, error)
	Path(name string) string
}

// Subscriber abstracts the observe hub.
type Subscriber interface {
	Subscribe(nameOrPath string) (*observe.Subscription, observe.Notification, error)
}

// Server implements the ResourceService gRPC API.
type Server struct {
	// catalog resolves and reads resources.
	catalog Catalog
	// subscriber registers observers.
	subscriber Subscriber
}

var _ ResourceServiceServer = (*Server)(nil)

// NewServer wires the registry and the hub into a gRPC handler.
func NewServer(catalog Catalog, subscriber Subscriber) *Server {
	return &Server{
		catalog:    catalog,
		subscriber: subscriber,
	}
}

// List returns every registered resource in registration order.
func (s *Server) List(_ context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	resources := s.catalog.Resources()
	links := make([]Link, 0, len(resources))

	for _, res := range resources {
		links = append(links, LinkOf(res, s.catalog.Path(res.Name())))
	}

	return ToListValue(links), nil
}

// Get reads one resource. Sensors are sampled; alarms return their last status.
func (s *Server) Get(_ context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	name := strings.TrimSpace(req.GetValue())
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "resource is required")
	}

	res, err := s.catalog.Lookup(name)
	if err != nil {
		return nil, toStatus(err)
	}

	response := res.Read(make([]byte, 0, domain.MaxChunkSize))

	return ToStruct(Representation{
		Name:        res.Name(),
		Path:        s.catalog.Path(res.Name()),
		Payload:     string(response.Payload),
		ContentType: response.ContentType,
		MaxAge:      response.MaxAge,
		Truncated:   response.Truncated,
	}), nil
}

// Observe sends the current representation and then one message per
// notification until the client goes away or the hub closes.
func (s *Server) Observe(req *wrapperspb.StringValue, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	name := strings.TrimSpace(req.GetValue())
	if name == "" {
		return status.Error(codes.InvalidArgument, "resource is required")
	}

	sub, current, err := s.subscriber.Subscribe(name)
	if err != nil {
		return toStatus(err)
	}

	defer sub.Cancel()

	ctx := logger.WithKV(stream.Context(),
		"resource", sub.Name,
		"subscription", sub.ID.String(),
		"observer", observerOf(stream.Context()))
	logger.Info(ctx, "Observer registered")

	defer logger.Info(ctx, "Observer deregistered")

	if err = stream.Send(ToStruct(FromNotification(current))); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-sub.C():
			if !ok {
				return status.Error(codes.Unavailable, "node is shutting down")
			}

			if err = stream.Send(ToStruct(FromNotification(n))); err != nil {
				return err
			}
		}
	}
}

// toStatus maps domain errors to gRPC status errors.
func toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, observe.ErrNotObservable):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, observe.ErrClosed):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// observerOf returns the user agent of the calling client, if any.
func observerOf(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "unknown"
	}

	if agents := md.Get("user-agent"); len(agents) > 0 {
		return agents[0]
	}

	return "unknown"
}
