// Package local provides an in-process ledger connection.
//
// For nodes compiled into the same binary as the client (tests, the
// --local mode of the example CLI), this adapter routes calls through
// the same request validation as the gRPC server with no serialization
// in between.
package local

import (
	"context"

	"github.com/blockberries/ledger"
	"github.com/blockberries/ledger/server"
	"github.com/blockberries/ledger/types"
)

// Compile-time interface check.
var _ ledger.Connection = (*Connection)(nil)

// Connection wraps an in-process node.
type Connection struct {
	srv *server.Server
}

// NewConnection creates an in-process connection to node.
func NewConnection(node ledger.Node, opts ...server.Option) *Connection {
	return &Connection{srv: server.New(node, opts...)}
}

func (c *Connection) SubmitTransaction(ctx context.Context, tx types.Transaction) error {
	return c.srv.SubmitTransaction(ctx, tx)
}

func (c *Connection) SubmitTransactions(ctx context.Context, txs []types.Transaction) error {
	return c.srv.SubmitTransactions(ctx, txs)
}

func (c *Connection) Query(ctx context.Context, q types.Query) (types.QueryResponse, error) {
	return c.srv.Query(ctx, q)
}

func (c *Connection) Status(ctx context.Context, hash types.Hash) (types.StatusEvent, error) {
	return c.srv.Status(ctx, hash)
}

func (c *Connection) StatusStream(ctx context.Context, hash types.Hash) (ledger.StatusStream, error) {
	return c.srv.StatusStream(ctx, hash)
}

// Close detaches the connection. The node itself keeps running.
func (c *Connection) Close() error { return c.srv.Close() }

// Server returns the underlying server for advanced use cases.
func (c *Connection) Server() *server.Server {
	return c.srv
}
