package resource

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "node.v1.ResourceService"

	// ListFullMethod lists the registered resources.
	ListFullMethod = "/" + ServiceName + "/List"
	// GetFullMethod reads one resource.
	GetFullMethod = "/" + ServiceName + "/Get"
	// ObserveFullMethod streams notifications of one resource.
	ObserveFullMethod = "/" + ServiceName + "/Observe"
)

// ResourceServiceServer is the server API of node.v1.ResourceService.
type ResourceServiceServer interface {
	List(ctx context.Context, req *emptypb.Empty) (*structpb.ListValue, error)
	Get(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	Observe(req *wrapperspb.StringValue, stream grpc.ServerStreamingServer[structpb.Struct]) error
}

// ResourceServiceDesc is the grpc.ServiceDesc of node.v1.ResourceService.
//
//nolint:gochecknoglobals // Service descriptors are package-level by grpc convention.
var ResourceServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ResourceServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "List",
			Handler:    listHandler,
		},
		{
			MethodName: "Get",
			Handler:    getHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Observe",
			Handler:       observeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "node/v1/resource.proto",
}

// RegisterResourceServiceServer registers srv on the gRPC server.
func RegisterResourceServiceServer(s grpc.ServiceRegistrar, srv ResourceServiceServer) {
	s.RegisterService(&ResourceServiceDesc, srv)
}

func listHandler(
	srv any,
	ctx context.Context, //nolint:revive // Signature fixed by grpc.MethodHandler.
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(ResourceServiceServer).List(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ListFullMethod,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ResourceServiceServer).List(ctx, req.(*emptypb.Empty))
	}

	return interceptor(ctx, in, info, handler)
}

func getHandler(
	srv any,
	ctx context.Context, //nolint:revive // Signature fixed by grpc.MethodHandler.
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(ResourceServiceServer).Get(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: GetFullMethod,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ResourceServiceServer).Get(ctx, req.(*wrapperspb.StringValue))
	}

	return interceptor(ctx, in, info, handler)
}

func observeHandler(srv any, stream grpc.ServerStream) error {
	in := new(wrapperspb.StringValue)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}

	return srv.(ResourceServiceServer).Observe(in, &grpc.GenericServerStream[wrapperspb.StringValue, structpb.Struct]{
		ServerStream: stream,
	})
}

// Client is the client stub of node.v1.ResourceService.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// List calls ResourceService.List.
func (c *Client) List(ctx context.Context, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, ListFullMethod, new(emptypb.Empty), out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// Get calls ResourceService.Get.
func (c *Client) Get(ctx context.Context, nameOrPath string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetFullMethod, wrapperspb.String(nameOrPath), out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// Observe opens a ResourceService.Observe stream.
func (c *Client) Observe(
	ctx context.Context,
	nameOrPath string,
	opts ...grpc.CallOption,
) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &ResourceServiceDesc.Streams[0], ObserveFullMethod, opts...)
	if err != nil {
		return nil, err
	}

	x := &grpc.GenericClientStream[wrapperspb.StringValue, structpb.Struct]{ClientStream: stream}
	if err = x.ClientStream.SendMsg(wrapperspb.String(nameOrPath)); err != nil {
		return nil, err
	}

	if err = x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}

	return x, nil
}
