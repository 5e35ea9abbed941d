package grpccas

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "xdao.collapse.storage.grpccas.v1.CAS"

// CASServer is the server side of the service. Messages are protobuf
// well-known types, so no generated code is needed.
//
//	Put          bytes       -> cid string
//	Get          cid string  -> bytes
//	Has          cid string  -> bool
//	VerifyChain  chain cid   -> {chain_hash, items: [{name, hash, present}]}
type CASServer interface {
	Put(context.Context, *wrapperspb.BytesValue) (*wrapperspb.StringValue, error)
	Get(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error)
	Has(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	VerifyChain(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
}

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

// message is a protobuf message reachable through a pointer to T.
type message[T any] interface {
	*T
	proto.Message
}

// unary binds one CASServer method to its wire name.
func unary[Req any, In message[Req], Out proto.Message](name string, call func(CASServer, context.Context, In) (Out, error)) grpc.MethodDesc {
	full := fullMethod(name)
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, icpt grpc.UnaryServerInterceptor) (any, error) {
			in := In(new(Req))
			if err := dec(in); err != nil {
				return nil, err
			}
			h := func(ctx context.Context, req any) (any, error) {
				return call(srv.(CASServer), ctx, req.(In))
			}
			if icpt == nil {
				return h(ctx, in)
			}
			return icpt(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: full}, h)
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CASServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Put", CASServer.Put),
		unary("Get", CASServer.Get),
		unary("Has", CASServer.Has),
		unary("VerifyChain", CASServer.VerifyChain),
	},
	Metadata: "collapse/cas.proto",
}

// RegisterCASServer registers the service on s.
func RegisterCASServer(s grpc.ServiceRegistrar, srv CASServer) {
	s.RegisterService(&serviceDesc, srv)
}

// invoke calls name on cc and decodes the reply into a fresh Resp.
func invoke[Resp any, Out message[Resp]](ctx context.Context, cc grpc.ClientConnInterface, name string, in proto.Message, opts ...grpc.CallOption) (Out, error) {
	out := Out(new(Resp))
	if err := cc.Invoke(ctx, fullMethod(name), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
