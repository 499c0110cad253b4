package ledger

import (
	"errors"
	"fmt"

	"github.com/blockberries/ledger/types"
)

// ErrMalformedPayload reports a transaction or query that violates a
// structural invariant at build time (empty command list, nil command,
// malformed creator id). It is never retried.
var ErrMalformedPayload = errors.New("malformed payload")

// ErrInvalidKeyMaterial reports a key of the wrong length or encoding.
var ErrInvalidKeyMaterial = errors.New("invalid key material")

// ErrClosed is returned, wrapped in a TransportError, by calls made on a
// connection or server that has been closed.
var ErrClosed = errors.New("connection closed")

// SignatureError reports a signature that does not verify against its
// claimed public key and the canonical payload encoding.
type SignatureError struct {
	Hash      types.Hash
	PublicKey types.PublicKey
	Reason    string
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("signature verification failed for %s by %s: %s", e.Hash, e.PublicKey, e.Reason)
}

// IsSignatureFailure checks whether an error is a SignatureError and returns it.
func IsSignatureFailure(err error) (*SignatureError, bool) {
	var s *SignatureError
	if errors.As(err, &s) {
		return s, true
	}
	return nil, false
}

// TransportError reports a failure to talk to the node: connection
// refused, timeout, broken stream. Callers may retry; the client never
// does so on its own.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NewTransportError wraps err as a transport failure of op.
func NewTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err}
}

// IsTransport checks whether an error is a TransportError and returns it.
func IsTransport(err error) (*TransportError, bool) {
	var t *TransportError
	if errors.As(err, &t) {
		return t, true
	}
	return nil, false
}

// RejectionError reports that the ledger refused a transaction or a
// query. Resubmitting an identical transaction is pointless: its hash,
// and therefore its verdict, does not change.
type RejectionError struct {
	// Hash is the transaction or query hash.
	Hash types.Hash
	// Status is the terminal transaction status. Zero for queries.
	Status types.TxStatus
	// QueryReason is set for query error responses.
	QueryReason types.ErrorReason
	Reason      string
	ErrorCode   uint32
}

func (e *RejectionError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transaction %s %s: %s (code %d)", e.Hash, e.Status, e.Reason, e.ErrorCode)
	}
	return fmt.Sprintf("query %s refused %s: %s (code %d)", e.Hash, e.QueryReason, e.Reason, e.ErrorCode)
}

// IsRejection checks whether an error is a RejectionError and returns it.
func IsRejection(err error) (*RejectionError, bool) {
	var r *RejectionError
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// StreamClosedError reports that a status stream ended before a terminal
// status arrived. Last is the last status seen, zero if none. Callers
// can re-query the status out of band.
type StreamClosedError struct {
	Hash types.Hash
	Last types.TxStatus
}

func (e *StreamClosedError) Error() string {
	if e.Last == 0 {
		return fmt.Sprintf("status stream for %s closed before any status", e.Hash)
	}
	return fmt.Sprintf("status stream for %s closed without terminal status (last %s)", e.Hash, e.Last)
}

// IsStreamClosed checks whether an error is a StreamClosedError and returns it.
func IsStreamClosed(err error) (*StreamClosedError, bool) {
	var s *StreamClosedError
	if errors.As(err, &s) {
		return s, true
	}
	return nil, false
}
