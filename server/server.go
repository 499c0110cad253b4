// Package server is the node-side gatekeeper shared by every transport.
//
// It wraps a ledger.Node, rejects structurally broken requests before
// they reach the node and refuses all calls once closed. The gRPC
// server and the in-process connection both route through it.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/blockberries/ledger"
	"github.com/blockberries/ledger/types"
)

// DefaultMaxBatch is the largest transaction list accepted in one call.
const DefaultMaxBatch = 256

// Option configures a Server.
type Option func(*Server)

// WithMaxBatch caps the size of SubmitTransactions batches.
func WithMaxBatch(n int) Option {
	return func(s *Server) { s.maxBatch = n }
}

// WithLogger sets the logger used for refused requests.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// Server wraps a node with request validation and a closed state.
type Server struct {
	node     ledger.Node
	maxBatch int
	log      *slog.Logger
	closed   atomic.Bool
}

// Compile-time interface check.
var _ ledger.Node = (*Server)(nil)

// New creates a Server in front of node.
func New(node ledger.Node, opts ...Option) *Server {
	s := &Server{
		node:     node,
		maxBatch: DefaultMaxBatch,
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Node returns the wrapped node.
func (s *Server) Node() ledger.Node { return s.node }

// Close refuses all further calls. Closing twice is a no-op.
func (s *Server) Close() error {
	s.closed.Store(true)
	return nil
}

// IsClosed reports whether Close was called.
func (s *Server) IsClosed() bool { return s.closed.Load() }

func (s *Server) check(op string) error {
	if s.closed.Load() {
		return ledger.NewTransportError(op, ledger.ErrClosed)
	}
	return nil
}

// SubmitTransaction validates the shape of tx and forwards it.
// Signatures are left to the node: a badly signed transaction is
// accepted here and rejected through its status stream.
func (s *Server) SubmitTransaction(ctx context.Context, tx types.Transaction) error {
	if err := s.check("SubmitTransaction"); err != nil {
		return err
	}
	if err := ValidateTransaction(tx); err != nil {
		s.log.Warn("refusing transaction", "hash", tx.Hash(), "err", err)
		return err
	}
	return s.node.SubmitTransaction(ctx, tx)
}

// SubmitTransactions validates every transaction of the batch before
// forwarding any of them.
func (s *Server) SubmitTransactions(ctx context.Context, txs []types.Transaction) error {
	if err := s.check("SubmitTransactions"); err != nil {
		return err
	}
	if len(txs) == 0 {
		return fmt.Errorf("%w: empty batch", ledger.ErrMalformedPayload)
	}
	if len(txs) > s.maxBatch {
		return fmt.Errorf("%w: batch of %d exceeds limit %d", ledger.ErrMalformedPayload, len(txs), s.maxBatch)
	}
	for i, tx := range txs {
		if err := ValidateTransaction(tx); err != nil {
			s.log.Warn("refusing batch", "index", i, "hash", tx.Hash(), "err", err)
			return fmt.Errorf("transaction %d: %w", i, err)
		}
	}
	return s.node.SubmitTransactions(ctx, txs)
}

// Query validates the shape of q and forwards it.
func (s *Server) Query(ctx context.Context, q types.Query) (types.QueryResponse, error) {
	if err := s.check("Query"); err != nil {
		return types.QueryResponse{}, err
	}
	if err := ValidateQuery(q); err != nil {
		return types.QueryResponse{}, err
	}
	return s.node.Query(ctx, q)
}

// Status forwards a status lookup.
func (s *Server) Status(ctx context.Context, hash types.Hash) (types.StatusEvent, error) {
	if err := s.check("Status"); err != nil {
		return types.StatusEvent{}, err
	}
	return s.node.Status(ctx, hash)
}

// StatusStream forwards a status subscription.
func (s *Server) StatusStream(ctx context.Context, hash types.Hash) (ledger.StatusStream, error) {
	if err := s.check("StatusStream"); err != nil {
		return nil, err
	}
	return s.node.StatusStream(ctx, hash)
}

// ValidateTransaction checks the structural invariants every transaction
// must satisfy regardless of ledger state.
func ValidateTransaction(tx types.Transaction) error {
	p := tx.Payload
	if err := p.Creator.Validate(); err != nil {
		return fmt.Errorf("%w: creator: %v", ledger.ErrMalformedPayload, err)
	}
	if len(p.Commands) == 0 {
		return fmt.Errorf("%w: no commands", ledger.ErrMalformedPayload)
	}
	for i, c := range p.Commands {
		if c == nil {
			return fmt.Errorf("%w: command %d is nil", ledger.ErrMalformedPayload, i)
		}
	}
	if p.Quorum == 0 {
		return fmt.Errorf("%w: zero quorum", ledger.ErrMalformedPayload)
	}
	return nil
}

// ValidateQuery checks the structural invariants of a query.
func ValidateQuery(q types.Query) error {
	if err := q.Payload.Creator.Validate(); err != nil {
		return fmt.Errorf("%w: creator: %v", ledger.ErrMalformedPayload, err)
	}
	if q.Payload.Query == nil {
		return fmt.Errorf("%w: no query", ledger.ErrMalformedPayload)
	}
	return nil
}
