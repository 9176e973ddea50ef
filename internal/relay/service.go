// Package relay exposes a request facility over gRPC so that hosts without
// direct access can still run helper program calls.
//
// The service is described by hand with well-known message types only, so no
// generated code is needed:
//
//	service Relay {
//	  rpc Fetch(google.protobuf.Struct) returns (google.protobuf.Struct);
//	  rpc Call(google.protobuf.Struct) returns (google.protobuf.StringValue);
//	  rpc GetUser(google.protobuf.Empty) returns (google.protobuf.Struct);
//	}
package relay

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "ccl.relay.v1.Relay"

const (
	fetchMethod   = "/" + ServiceName + "/Fetch"
	callMethod    = "/" + ServiceName + "/Call"
	getUserMethod = "/" + ServiceName + "/GetUser"
)

// Request and response field names
const (
	fieldArgs       = "args"
	fieldProgram    = "program"
	fieldAvailable  = "available"
	fieldText       = "text"
	fieldSubroutine = "subroutine"
	fieldArgument   = "argument"
)

// relayServer is the handler contract for the Relay service
type relayServer interface {
	Fetch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Call(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error)
	GetUser(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*relayServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Fetch", Handler: fetchHandler},
		{MethodName: "Call", Handler: callHandler},
		{MethodName: "GetUser", Handler: getUserHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ccl/relay/v1/relay.proto",
}

func fetchHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(relayServer).Fetch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fetchMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(relayServer).Fetch(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func callHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(relayServer).Call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: callMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(relayServer).Call(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getUserHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(relayServer).GetUser(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getUserMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(relayServer).GetUser(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}
