package ledgergrpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/blockberries/ledger"
	"github.com/blockberries/ledger/server"
	"github.com/blockberries/ledger/types"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// Compile-time interface checks.
var (
	_ CommandServiceServer = (*GRPCServer)(nil)
	_ QueryServiceServer   = (*GRPCServer)(nil)
)

// GRPCServer exposes a ledger node over gRPC. Requests pass through the
// same gatekeeper as in-process connections.
type GRPCServer struct {
	srv *server.Server
}

// NewGRPCServer creates a gRPC server in front of node.
func NewGRPCServer(node ledger.Node, opts ...server.Option) *GRPCServer {
	return &GRPCServer{
		srv: server.New(node, opts...),
	}
}

// Register adds the command and query services to a gRPC server.
func (s *GRPCServer) Register(gs *grpc.Server) {
	RegisterCommandServiceServer(gs, s)
	RegisterQueryServiceServer(gs, s)
}

// Serve starts a gRPC server on the given listener.
func (s *GRPCServer) Serve(lis net.Listener, opts ...grpc.ServerOption) error {
	gs := grpc.NewServer(opts...)
	s.Register(gs)
	return gs.Serve(lis)
}

// Stop gracefully stops gs and refuses further calls.
func (s *GRPCServer) Stop(gs *grpc.Server) {
	s.srv.Close()
	gs.GracefulStop()
}

// Server returns the underlying server for advanced use.
func (s *GRPCServer) Server() *server.Server {
	return s.srv
}

// --- CommandService RPCs ---

func (s *GRPCServer) Torii(ctx context.Context, req *types.TransactionWire) (*Empty, error) {
	tx, err := req.Transaction()
	if err != nil {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "decode transaction: %v", err)
	}
	if err := s.srv.SubmitTransaction(ctx, tx); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) ListTorii(ctx context.Context, req *TxList) (*Empty, error) {
	txs := make([]types.Transaction, 0, len(req.Transactions))
	for i, w := range req.Transactions {
		tx, err := w.Transaction()
		if err != nil {
			return nil, grpcstatus.Errorf(codes.InvalidArgument, "decode transaction %d: %v", i, err)
		}
		txs = append(txs, tx)
	}
	if err := s.srv.SubmitTransactions(ctx, txs); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *GRPCServer) Status(ctx context.Context, req *TxStatusRequest) (*types.StatusEvent, error) {
	ev, err := s.srv.Status(ctx, req.TxHash)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ev, nil
}

func (s *GRPCServer) StatusStream(req *TxStatusRequest, stream grpc.ServerStream) error {
	st, err := s.srv.StatusStream(stream.Context(), req.TxHash)
	if err != nil {
		return toStatus(err)
	}
	defer st.Close()
	for {
		ev, err := st.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return toStatus(err)
		}
		if err := stream.SendMsg(&ev); err != nil {
			return err
		}
	}
}

// --- QueryService RPCs ---

func (s *GRPCServer) Find(ctx context.Context, req *types.SignedQueryWire) (*types.QueryResponse, error) {
	q, err := req.Query()
	if err != nil {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "decode query: %v", err)
	}
	resp, err := s.srv.Query(ctx, q)
	if err != nil {
		return nil, toStatus(err)
	}
	return &resp, nil
}

// toStatus maps node errors onto gRPC status codes. The client maps
// them back in fromStatus.
func toStatus(err error) error {
	switch {
	case errors.Is(err, ledger.ErrMalformedPayload):
		return grpcstatus.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ledger.ErrClosed):
		return grpcstatus.Error(codes.Unavailable, ledger.ErrClosed.Error())
	case errors.Is(err, context.Canceled):
		return grpcstatus.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return grpcstatus.Error(codes.DeadlineExceeded, err.Error())
	default:
		return grpcstatus.Error(codes.Internal, fmt.Sprintf("node: %v", err))
	}
}
