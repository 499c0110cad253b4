package types

import "fmt"

// TxStatus is a stage a transaction passes through on the ledger node.
type TxStatus uint8

const (
	StatusNotReceived TxStatus = iota + 1
	StatusEnqueued
	StatusReceivedByPeer
	StatusStatelessValidationSuccess
	StatusStatelessValidationFailed
	StatusStatefulValidationSuccess
	StatusStatefulValidationFailed
	StatusMSTPending
	StatusEnoughSignaturesCollected
	StatusRejected
	StatusCommitted
	StatusMSTExpired
)

func (s TxStatus) String() string {
	switch s {
	case StatusNotReceived:
		return "NOT_RECEIVED"
	case StatusEnqueued:
		return "ENQUEUED"
	case StatusReceivedByPeer:
		return "RECEIVED_BY_PEER"
	case StatusStatelessValidationSuccess:
		return "STATELESS_VALIDATION_SUCCESS"
	case StatusStatelessValidationFailed:
		return "STATELESS_VALIDATION_FAILED"
	case StatusStatefulValidationSuccess:
		return "STATEFUL_VALIDATION_SUCCESS"
	case StatusStatefulValidationFailed:
		return "STATEFUL_VALIDATION_FAILED"
	case StatusMSTPending:
		return "MST_PENDING"
	case StatusEnoughSignaturesCollected:
		return "ENOUGH_SIGNATURES_COLLECTED"
	case StatusRejected:
		return "REJECTED"
	case StatusCommitted:
		return "COMMITTED"
	case StatusMSTExpired:
		return "MST_EXPIRED"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// IsTerminal reports whether no further status follows s.
func (s TxStatus) IsTerminal() bool {
	switch s {
	case StatusCommitted,
		StatusRejected,
		StatusStatelessValidationFailed,
		StatusStatefulValidationFailed,
		StatusMSTExpired:
		return true
	default:
		return false
	}
}

// StatusEvent is one message of a transaction's status stream.
type StatusEvent struct {
	Hash   Hash     `cramberry:"1"`
	Status TxStatus `cramberry:"2"`
	// Reason is set for rejections and failures.
	Reason string `cramberry:"3"`
	// ErrorCode is the ledger's numeric error code for a failed command.
	ErrorCode uint32 `cramberry:"4"`
	// FailedCommandIndex is the index of the command that failed
	// stateful validation.
	FailedCommandIndex uint32 `cramberry:"5"`
}

func (e StatusEvent) String() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s %s", e.Hash, e.Status)
	}
	return fmt.Sprintf("%s %s: %s (code %d)", e.Hash, e.Status, e.Reason, e.ErrorCode)
}
