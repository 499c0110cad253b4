package ledgergrpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"

	"github.com/blockberries/ledger"
	"github.com/blockberries/ledger/types"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// Compile-time interface check.
var _ ledger.Connection = (*Client)(nil)

// Client implements ledger.Connection for remote nodes over gRPC using
// cramberry serialization.
//
// The client never retries: every failure to reach the node is reported
// as a *ledger.TransportError and the caller decides what to do.
type Client struct {
	cc *grpc.ClientConn
}

// Dial connects to a ledger node at addr.
func Dial(ctx context.Context, addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append(opts, grpc.WithDefaultCallOptions(
		grpc.ForceCodec(CramberryCodec{}),
	))
	cc, err := grpc.DialContext(ctx, addr, opts...)
	if err != nil {
		return nil, ledger.NewTransportError("Dial", fmt.Errorf("dial %s: %w", addr, err))
	}
	return &Client{cc: cc}, nil
}

// DialEndpoint connects to host:port.
func DialEndpoint(ctx context.Context, host string, port int, opts ...grpc.DialOption) (*Client, error) {
	return Dial(ctx, net.JoinHostPort(host, strconv.Itoa(port)), opts...)
}

func (c *Client) Close() error {
	return c.cc.Close()
}

// --- CommandService ---

func (c *Client) SubmitTransaction(ctx context.Context, tx types.Transaction) error {
	req := tx.Wire()
	if err := c.cc.Invoke(ctx, fullMethod(commandServiceName, "Torii"), &req, new(Empty)); err != nil {
		return fromStatus("Torii", err)
	}
	return nil
}

func (c *Client) SubmitTransactions(ctx context.Context, txs []types.Transaction) error {
	req := &TxList{Transactions: make([]types.TransactionWire, 0, len(txs))}
	for _, tx := range txs {
		req.Transactions = append(req.Transactions, tx.Wire())
	}
	if err := c.cc.Invoke(ctx, fullMethod(commandServiceName, "ListTorii"), req, new(Empty)); err != nil {
		return fromStatus("ListTorii", err)
	}
	return nil
}

func (c *Client) Status(ctx context.Context, hash types.Hash) (types.StatusEvent, error) {
	resp := new(types.StatusEvent)
	if err := c.cc.Invoke(ctx, fullMethod(commandServiceName, "Status"), &TxStatusRequest{TxHash: hash}, resp); err != nil {
		return types.StatusEvent{}, fromStatus("Status", err)
	}
	return *resp, nil
}

func (c *Client) StatusStream(ctx context.Context, hash types.Hash) (ledger.StatusStream, error) {
	ctx, cancel := context.WithCancel(ctx)
	stream, err := c.cc.NewStream(ctx, &grpc.StreamDesc{
		StreamName:    "StatusStream",
		ServerStreams: true,
	}, fullMethod(commandServiceName, "StatusStream"))
	if err != nil {
		cancel()
		return nil, fromStatus("StatusStream", err)
	}
	if err := stream.SendMsg(&TxStatusRequest{TxHash: hash}); err != nil {
		cancel()
		return nil, fromStatus("StatusStream", err)
	}
	if err := stream.CloseSend(); err != nil {
		cancel()
		return nil, fromStatus("StatusStream", err)
	}
	return &clientStream{stream: stream, cancel: cancel}, nil
}

// --- QueryService ---

func (c *Client) Query(ctx context.Context, q types.Query) (types.QueryResponse, error) {
	req := q.Wire()
	resp := new(types.QueryResponse)
	if err := c.cc.Invoke(ctx, fullMethod(queryServiceName, "Find"), &req, resp); err != nil {
		return types.QueryResponse{}, fromStatus("Find", err)
	}
	resp.Normalize()
	return *resp, nil
}

// clientStream adapts a server-streaming RPC to ledger.StatusStream.
//
// Once the node has delivered an event, losing the connection ends the
// stream with io.EOF: the node went away without a terminal status and
// the caller re-queries out of band. Failures before the first event
// are transport failures.
type clientStream struct {
	stream grpc.ClientStream
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	received bool
}

func (s *clientStream) Recv() (types.StatusEvent, error) {
	ev := new(types.StatusEvent)
	err := s.stream.RecvMsg(ev)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		s.received = true
		return *ev, nil
	}
	if errors.Is(err, io.EOF) || s.closed {
		return types.StatusEvent{}, io.EOF
	}
	if s.received && grpcstatus.Code(err) == codes.Unavailable {
		return types.StatusEvent{}, io.EOF
	}
	return types.StatusEvent{}, fromStatus("StatusStream", err)
}

func (s *clientStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	return nil
}

// fromStatus maps a gRPC error back onto the ledger error taxonomy.
func fromStatus(op string, err error) error {
	st, ok := grpcstatus.FromError(err)
	if !ok {
		return ledger.NewTransportError(op, err)
	}
	switch st.Code() {
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ledger.ErrMalformedPayload, st.Message())
	case codes.Unavailable:
		if st.Message() == ledger.ErrClosed.Error() {
			return ledger.NewTransportError(op, ledger.ErrClosed)
		}
	case codes.Canceled:
		return ledger.NewTransportError(op, context.Canceled)
	case codes.DeadlineExceeded:
		return ledger.NewTransportError(op, context.DeadlineExceeded)
	}
	return ledger.NewTransportError(op, err)
}
