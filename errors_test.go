package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/blockberries/ledger/types"
)

func TestRejectionError(t *testing.T) {
	err := &RejectionError{
		Hash:      types.Hash{0x01},
		Status:    types.StatusStatefulValidationFailed,
		Reason:    "not enough balance",
		ErrorCode: 6,
	}
	expected := fmt.Sprintf("transaction %s STATEFUL_VALIDATION_FAILED: not enough balance (code 6)", types.Hash{0x01})
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}

	q := &RejectionError{QueryReason: types.ErrorNoAccount, Reason: "no such account"}
	if q.Error() == "" {
		t.Fatal("empty message for query rejection")
	}
}

func TestIsRejection(t *testing.T) {
	rej := &RejectionError{Status: types.StatusRejected, Reason: "bad signature"}

	// Direct.
	r, ok := IsRejection(rej)
	if !ok {
		t.Fatal("expected IsRejection to return true")
	}
	if r.Reason != "bad signature" {
		t.Errorf("unexpected reason %q", r.Reason)
	}

	// Wrapped.
	wrapped := fmt.Errorf("wrapped: %w", rej)
	if _, ok := IsRejection(wrapped); !ok {
		t.Fatal("expected IsRejection to unwrap wrapped error")
	}

	// Other kinds.
	if _, ok := IsRejection(&StreamClosedError{}); ok {
		t.Fatal("stream closure is not a rejection")
	}

	// Nil.
	if _, ok := IsRejection(nil); ok {
		t.Fatal("expected IsRejection to return false for nil")
	}
}

func TestTransportError_Unwrap(t *testing.T) {
	err := fmt.Errorf("submit: %w", NewTransportError("Torii", context.DeadlineExceeded))

	te, ok := IsTransport(err)
	if !ok {
		t.Fatal("expected IsTransport to return true")
	}
	if te.Op != "Torii" {
		t.Errorf("unexpected op %q", te.Op)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("transport error should unwrap to its cause")
	}
}

func TestStreamClosedError(t *testing.T) {
	err := &StreamClosedError{Hash: types.Hash{0x02}, Last: types.StatusEnqueued}
	s, ok := IsStreamClosed(fmt.Errorf("await: %w", err))
	if !ok {
		t.Fatal("expected IsStreamClosed to unwrap")
	}
	if s.Last != types.StatusEnqueued {
		t.Errorf("unexpected last status %s", s.Last)
	}
	if _, ok := IsRejection(err); ok {
		t.Fatal("stream closure must stay distinct from rejection")
	}
}

func TestSignatureError(t *testing.T) {
	err := fmt.Errorf("verify: %w", &SignatureError{Reason: "bad signature"})
	if _, ok := IsSignatureFailure(err); !ok {
		t.Fatal("expected IsSignatureFailure to unwrap")
	}
}

func TestSentinels(t *testing.T) {
	if !errors.Is(fmt.Errorf("build: %w", ErrMalformedPayload), ErrMalformedPayload) {
		t.Fatal("ErrMalformedPayload should survive wrapping")
	}
	if errors.Is(ErrMalformedPayload, ErrInvalidKeyMaterial) {
		t.Fatal("sentinels must be distinct")
	}
}
