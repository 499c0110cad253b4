package ledgergrpc

import (
	"context"
	"fmt"

	"github.com/blockberries/ledger/types"

	"google.golang.org/grpc"
)

const (
	commandServiceName = "ledger.protocol.CommandService_v1"
	queryServiceName   = "ledger.protocol.QueryService_v1"
)

// CommandServiceServer is the server side of transaction submission and
// status tracking.
type CommandServiceServer interface {
	Torii(context.Context, *types.TransactionWire) (*Empty, error)
	ListTorii(context.Context, *TxList) (*Empty, error)
	Status(context.Context, *TxStatusRequest) (*types.StatusEvent, error)
	StatusStream(*TxStatusRequest, grpc.ServerStream) error
}

// QueryServiceServer is the server side of read-only queries.
type QueryServiceServer interface {
	Find(context.Context, *types.SignedQueryWire) (*types.QueryResponse, error)
}

// RegisterCommandServiceServer registers srv on a gRPC server.
func RegisterCommandServiceServer(s *grpc.Server, srv CommandServiceServer) {
	s.RegisterService(&commandServiceDesc, srv)
}

// RegisterQueryServiceServer registers srv on a gRPC server.
func RegisterQueryServiceServer(s *grpc.Server, srv QueryServiceServer) {
	s.RegisterService(&queryServiceDesc, srv)
}

// --- Handler functions ---

func handlerTorii(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(types.TransactionWire)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(CommandServiceServer).Torii(ctx, req)
}

func handlerListTorii(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(TxList)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(CommandServiceServer).ListTorii(ctx, req)
}

func handlerStatus(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(TxStatusRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(CommandServiceServer).Status(ctx, req)
}

func handlerStatusStream(srv any, stream grpc.ServerStream) error {
	req := new(TxStatusRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(CommandServiceServer).StatusStream(req, stream)
}

func handlerFind(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(types.SignedQueryWire)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(QueryServiceServer).Find(ctx, req)
}

// fullMethod builds the full gRPC method path.
func fullMethod(service, method string) string {
	return fmt.Sprintf("/%s/%s", service, method)
}

var commandServiceDesc = grpc.ServiceDesc{
	ServiceName: commandServiceName,
	HandlerType: (*CommandServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Torii", Handler: handlerTorii},
		{MethodName: "ListTorii", Handler: handlerListTorii},
		{MethodName: "Status", Handler: handlerStatus},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StatusStream",
			Handler:       handlerStatusStream,
			ServerStreams: true,
		},
	},
}

var queryServiceDesc = grpc.ServiceDesc{
	ServiceName: queryServiceName,
	HandlerType: (*QueryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Find", Handler: handlerFind},
	},
}
