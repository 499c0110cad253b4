// Package ledgertest provides test utilities for code built on the
// ledger client: a configurable mock node, a test harness that builds,
// signs and awaits transactions, and a compliance suite every Node
// implementation should pass.
package ledgertest

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/blockberries/ledger"
	"github.com/blockberries/ledger/types"
)

// Compile-time check that MockNode satisfies the connection interface.
var _ ledger.Connection = (*MockNode)(nil)

// CommitScript is the status sequence MockNode streams by default.
var CommitScript = []types.TxStatus{
	types.StatusEnqueued,
	types.StatusStatelessValidationSuccess,
	types.StatusStatefulValidationSuccess,
	types.StatusCommitted,
}

// MockNode is a configurable mock ledger node for client testing.
// All methods are configurable via function fields. Unconfigured
// methods accept everything and stream CommitScript.
type MockNode struct {
	mu        sync.Mutex
	submitted []types.Transaction

	// Configurable handlers. If nil, defaults are used.
	SubmitTransactionFn func(context.Context, types.Transaction) error
	QueryFn             func(context.Context, types.Query) (types.QueryResponse, error)
	StatusFn            func(context.Context, types.Hash) (types.StatusEvent, error)
	StatusStreamFn      func(context.Context, types.Hash) (ledger.StatusStream, error)

	// Call counters (atomic for concurrent access).
	SubmitCalls       atomic.Int64
	QueryCalls        atomic.Int64
	StatusCalls       atomic.Int64
	StatusStreamCalls atomic.Int64
	CloseCalls        atomic.Int64
}

func (m *MockNode) SubmitTransaction(ctx context.Context, tx types.Transaction) error {
	m.SubmitCalls.Add(1)
	m.mu.Lock()
	m.submitted = append(m.submitted, tx)
	m.mu.Unlock()
	if m.SubmitTransactionFn != nil {
		return m.SubmitTransactionFn(ctx, tx)
	}
	return nil
}

func (m *MockNode) SubmitTransactions(ctx context.Context, txs []types.Transaction) error {
	for _, tx := range txs {
		if err := m.SubmitTransaction(ctx, tx); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockNode) Query(ctx context.Context, q types.Query) (types.QueryResponse, error) {
	m.QueryCalls.Add(1)
	if m.QueryFn != nil {
		return m.QueryFn(ctx, q)
	}
	return types.NewErrorResponse(q.Hash(), types.ErrorNotSupported, 0, "mock has no query handler"), nil
}

func (m *MockNode) Status(ctx context.Context, hash types.Hash) (types.StatusEvent, error) {
	m.StatusCalls.Add(1)
	if m.StatusFn != nil {
		return m.StatusFn(ctx, hash)
	}
	return types.StatusEvent{Hash: hash, Status: types.StatusCommitted}, nil
}

func (m *MockNode) StatusStream(ctx context.Context, hash types.Hash) (ledger.StatusStream, error) {
	m.StatusStreamCalls.Add(1)
	if m.StatusStreamFn != nil {
		return m.StatusStreamFn(ctx, hash)
	}
	return NewScriptedStream(hash, CommitScript...), nil
}

func (m *MockNode) Close() error {
	m.CloseCalls.Add(1)
	return nil
}

// Submitted returns a copy of every transaction handed to the mock.
func (m *MockNode) Submitted() []types.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.Transaction(nil), m.submitted...)
}

// ScriptedStream replays a fixed list of events and then reports io.EOF,
// or Err if set.
type ScriptedStream struct {
	mu     sync.Mutex
	events []types.StatusEvent
	closed bool

	// Err replaces io.EOF at the end of the script.
	Err error
}

// NewScriptedStream creates a stream emitting statuses for hash.
func NewScriptedStream(hash types.Hash, statuses ...types.TxStatus) *ScriptedStream {
	events := make([]types.StatusEvent, len(statuses))
	for i, st := range statuses {
		events[i] = types.StatusEvent{Hash: hash, Status: st}
	}
	return &ScriptedStream{events: events}
}

// NewEventStream creates a stream emitting events verbatim.
func NewEventStream(events ...types.StatusEvent) *ScriptedStream {
	return &ScriptedStream{events: append([]types.StatusEvent(nil), events...)}
}

func (s *ScriptedStream) Recv() (types.StatusEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || len(s.events) == 0 {
		if s.Err != nil && !s.closed {
			return types.StatusEvent{}, s.Err
		}
		return types.StatusEvent{}, io.EOF
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, nil
}

func (s *ScriptedStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (s *ScriptedStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
