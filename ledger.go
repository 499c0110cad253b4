// Package ledger defines the client side of the ledger node protocol:
// the operations a node exposes to clients and the error taxonomy every
// transport reports through.
//
// The [Node] interface is what the rest of the module programs against.
// Transports (gRPC in package ledgergrpc, in-process in package local)
// and the reference in-memory node (package memledger) all implement it.
package ledger

import (
	"context"

	"github.com/blockberries/ledger/types"
)

// Node is a ledger peer as seen by a client.
//
// Submission is at-most-once: no implementation retries on its own.
// Whether a transaction was accepted is observed only through its
// status, never through the return value of SubmitTransaction.
type Node interface {
	// SubmitTransaction hands a signed transaction to the node.
	// A nil error means the node received it, not that it will commit.
	SubmitTransaction(ctx context.Context, tx types.Transaction) error

	// SubmitTransactions hands several signed transactions to the node
	// in one call. Each one is tracked independently by its hash.
	SubmitTransactions(ctx context.Context, txs []types.Transaction) error

	// Query sends a signed query and waits for the answer. A ledger-side
	// refusal is returned as a response with Kind == ResponseError, not
	// as an error.
	Query(ctx context.Context, q types.Query) (types.QueryResponse, error)

	// Status returns the latest known status of a transaction without
	// waiting. Unknown hashes report StatusNotReceived.
	Status(ctx context.Context, hash types.Hash) (types.StatusEvent, error)

	// StatusStream opens a server-push stream of status events for hash.
	// The node closes the stream after a terminal status; it may also
	// close it earlier.
	StatusStream(ctx context.Context, hash types.Hash) (StatusStream, error)
}

// StatusStream is a lazily produced sequence of status events.
type StatusStream interface {
	// Recv blocks until the next event. It returns io.EOF when the
	// producer closed the stream cleanly, or a *TransportError when the
	// channel broke.
	Recv() (types.StatusEvent, error)

	// Close abandons the stream. It is safe to call more than once.
	Close() error
}

// Connection is a Node reached over some transport that holds
// resources until closed.
type Connection interface {
	Node

	// Close terminates the connection.
	Close() error
}
