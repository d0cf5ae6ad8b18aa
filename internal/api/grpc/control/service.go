package control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "desktopupdater.v1.UpdaterControl"

// Full method names.
const (
	GetCurrentVersionMethod        = "/" + ServiceName + "/GetCurrentVersion"
	GetExecutablePathMethod        = "/" + ServiceName + "/GetExecutablePath"
	GetPlatformVersionMethod       = "/" + ServiceName + "/GetPlatformVersion"
	TriggerUpdateAndRelaunchMethod = "/" + ServiceName + "/TriggerUpdateAndRelaunch"
)

// UpdaterControlServer is the server API for the UpdaterControl service.
// Messages are protobuf well-known types, so no generated code is needed.
type UpdaterControlServer interface {
	GetCurrentVersion(ctx context.Context, req *emptypb.Empty) (*wrapperspb.StringValue, error)
	GetExecutablePath(ctx context.Context, req *emptypb.Empty) (*wrapperspb.StringValue, error)
	GetPlatformVersion(ctx context.Context, req *emptypb.Empty) (*wrapperspb.StringValue, error)
	TriggerUpdateAndRelaunch(ctx context.Context, req *emptypb.Empty) (*emptypb.Empty, error)
}

// ServiceDesc describes UpdaterControl for grpc.Server.RegisterService.
//
//nolint:gochecknoglobals // Descriptor tables are package-level in grpc-go.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*UpdaterControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetCurrentVersion",
			Handler:    unary(GetCurrentVersionMethod, UpdaterControlServer.GetCurrentVersion),
		},
		{
			MethodName: "GetExecutablePath",
			Handler:    unary(GetExecutablePathMethod, UpdaterControlServer.GetExecutablePath),
		},
		{
			MethodName: "GetPlatformVersion",
			Handler:    unary(GetPlatformVersionMethod, UpdaterControlServer.GetPlatformVersion),
		},
		{
			MethodName: "TriggerUpdateAndRelaunch",
			Handler:    unary(TriggerUpdateAndRelaunchMethod, UpdaterControlServer.TriggerUpdateAndRelaunch),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "desktopupdater/v1/control.proto",
}

// RegisterUpdaterControlServer registers srv on s.
func RegisterUpdaterControlServer(s grpc.ServiceRegistrar, srv UpdaterControlServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// unary adapts a typed method to grpc.MethodHandler, honoring interceptors.
func unary[Req, Resp any](
	fullMethod string,
	call func(UpdaterControlServer, context.Context, *Req) (*Resp, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}

		server, _ := srv.(UpdaterControlServer)

		if interceptor == nil {
			return call(server, ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}

		handler := func(ctx context.Context, req any) (any, error) {
			typed, _ := req.(*Req)
			return call(server, ctx, typed)
		}

		return interceptor(ctx, in, info, handler)
	}
}

// UpdaterControlClient is the client API for the UpdaterControl service.
type UpdaterControlClient interface {
	GetCurrentVersion(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	GetExecutablePath(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	GetPlatformVersion(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	TriggerUpdateAndRelaunch(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error)
}

type updaterControlClient struct {
	cc grpc.ClientConnInterface
}

// NewUpdaterControlClient creates a client bound to cc.
func NewUpdaterControlClient(cc grpc.ClientConnInterface) UpdaterControlClient {
	return &updaterControlClient{cc: cc}
}

func (c *updaterControlClient) GetCurrentVersion(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, GetCurrentVersionMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *updaterControlClient) GetExecutablePath(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, GetExecutablePathMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *updaterControlClient) GetPlatformVersion(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, GetPlatformVersionMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *updaterControlClient) TriggerUpdateAndRelaunch(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, TriggerUpdateAndRelaunchMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}
