package grpc_control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Messages are protobuf well-known types, so the service needs no generated code.

const serviceName = "marketpipeline.Control"

// ControlServer is the server side of marketpipeline.Control.
type ControlServer interface {
	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ListMarkets(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	SetSymbols(context.Context, *structpb.Struct) (*structpb.Struct, error)
	InvalidateHeatmap(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterControlServer attaches srv to a grpc server.
func RegisterControlServer(s grpc.ServiceRegistrar, srv ControlServer) {
	s.RegisterService(&Control_ServiceDesc, srv)
}

// -----------------------------------------------------------------------------

// unary builds a method handler for a request type Req.
func unary[Req any](method string, call func(ControlServer, context.Context, *Req) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ControlServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + method}
			return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(ControlServer), ctx, req.(*Req))
			})
		},
	}
}

var Control_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetStatus", ControlServer.GetStatus),
		unary("ListMarkets", ControlServer.ListMarkets),
		unary("SetSymbols", ControlServer.SetSymbols),
		unary("InvalidateHeatmap", ControlServer.InvalidateHeatmap),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "marketpipeline/control",
}

// -----------------------------------------------------------------------------
// Client
// -----------------------------------------------------------------------------

// ControlClient calls marketpipeline.Control over a connection.
type ControlClient struct {
	cc grpc.ClientConnInterface
}

func NewControlClient(cc grpc.ClientConnInterface) *ControlClient {
	return &ControlClient{cc: cc}
}

func (c *ControlClient) invoke(ctx context.Context, method string, in interface{}, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ControlClient) GetStatus(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetStatus", &emptypb.Empty{}, opts...)
}

func (c *ControlClient) ListMarkets(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ListMarkets", &emptypb.Empty{}, opts...)
}

func (c *ControlClient) SetSymbols(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "SetSymbols", in, opts...)
}

func (c *ControlClient) InvalidateHeatmap(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "InvalidateHeatmap", in, opts...)
}
