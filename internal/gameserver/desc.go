package gameserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "powers.v1.PowerService"

// Method names.
const (
	MethodConnect          = "Connect"
	MethodDisconnect       = "Disconnect"
	MethodSelect           = "Select"
	MethodRandomSelect     = "RandomSelect"
	MethodClear            = "Clear"
	MethodReset            = "Reset"
	MethodCurrent          = "Current"
	MethodList             = "List"
	MethodReload           = "Reload"
	MethodEncryptionStatus = "EncryptionStatus"
	MethodEvents           = "Events"
)

// PowerServiceServer is the server API for powers.v1.PowerService.
type PowerServiceServer interface {
	Connect(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Disconnect(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Select(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RandomSelect(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Clear(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reset(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Current(context.Context, *structpb.Struct) (*structpb.Struct, error)
	List(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reload(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EncryptionStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Events(*structpb.Struct, grpc.ServerStream) error
}

type unaryCall func(PowerServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PowerServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ServiceName + "/" + method,
		}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(PowerServiceServer), ctx, req.(*structpb.Struct))
		})
	}
}

func eventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(PowerServiceServer).Events(in, stream)
}

// ServiceDesc describes powers.v1.PowerService. Every message is a
// google.protobuf.Struct.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PowerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodConnect, Handler: unaryHandler(MethodConnect, PowerServiceServer.Connect)},
		{MethodName: MethodDisconnect, Handler: unaryHandler(MethodDisconnect, PowerServiceServer.Disconnect)},
		{MethodName: MethodSelect, Handler: unaryHandler(MethodSelect, PowerServiceServer.Select)},
		{MethodName: MethodRandomSelect, Handler: unaryHandler(MethodRandomSelect, PowerServiceServer.RandomSelect)},
		{MethodName: MethodClear, Handler: unaryHandler(MethodClear, PowerServiceServer.Clear)},
		{MethodName: MethodReset, Handler: unaryHandler(MethodReset, PowerServiceServer.Reset)},
		{MethodName: MethodCurrent, Handler: unaryHandler(MethodCurrent, PowerServiceServer.Current)},
		{MethodName: MethodList, Handler: unaryHandler(MethodList, PowerServiceServer.List)},
		{MethodName: MethodReload, Handler: unaryHandler(MethodReload, PowerServiceServer.Reload)},
		{MethodName: MethodEncryptionStatus, Handler: unaryHandler(MethodEncryptionStatus, PowerServiceServer.EncryptionStatus)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: MethodEvents, Handler: eventsHandler, ServerStreams: true},
	},
	Metadata: "powers/v1/powers.proto",
}

// Client calls powers.v1.PowerService.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes a unary method by name.
func (c *Client) Call(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if req == nil {
		req = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Events opens the notice stream for actorID. Recv returns io.EOF once the
// actor disconnects.
func (c *Client) Events(ctx context.Context, actorID string, opts ...grpc.CallOption) (*EventStream, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], "/"+ServiceName+"/"+MethodEvents, opts...)
	if err != nil {
		return nil, err
	}
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldActorID: structpb.NewStringValue(actorID),
	}}
	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &EventStream{stream: stream}, nil
}

// EventStream receives notices from Events.
type EventStream struct {
	stream grpc.ClientStream
}

// Recv blocks for the next notice.
func (e *EventStream) Recv() (string, error) {
	msg := new(structpb.Struct)
	if err := e.stream.RecvMsg(msg); err != nil {
		return "", err
	}
	return stringField(msg, FieldMessage), nil
}
