package ledgergrpc

import "github.com/blockberries/ledger/types"

// Transport-specific wrapper types for RPC methods whose parameters
// don't map to a single domain wire type.

// TxList is the request of ListTorii.
type TxList struct {
	Transactions []types.TransactionWire `cramberry:"1"`
}

// TxStatusRequest names the transaction whose status is wanted.
type TxStatusRequest struct {
	TxHash types.Hash `cramberry:"1"`
}

// Empty is the response of the submission RPCs.
type Empty struct{}
