// Package status interprets the status stream a ledger node emits for a
// submitted transaction.
//
// Raw node statuses are folded into a small client-side state machine:
//
//	Submitted -> Enqueued -> Processing -> {Committed | Rejected | Failed | Expired}
//
// Non-terminal events never move a transaction backwards, so repeated or
// reordered events are harmless. Terminal states are absorbing.
package status

import (
	"fmt"
	"sync/atomic"

	"github.com/blockberries/ledger/types"
)

// State is the client's view of a transaction's progress.
type State uint32

const (
	// StateSubmitted: handed to the node, nothing heard back yet.
	StateSubmitted State = iota
	// StateEnqueued: the node has the transaction in its queue.
	StateEnqueued
	// StateProcessing: validation or signature collection under way.
	StateProcessing
	// StateCommitted: included in a block.
	StateCommitted
	// StateRejected: refused before execution (signatures, stateless checks).
	StateRejected
	// StateFailed: a command failed stateful validation.
	StateFailed
	// StateExpired: pending multisignature collection timed out.
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateSubmitted:
		return "Submitted"
	case StateEnqueued:
		return "Enqueued"
	case StateProcessing:
		return "Processing"
	case StateCommitted:
		return "Committed"
	case StateRejected:
		return "Rejected"
	case StateFailed:
		return "Failed"
	case StateExpired:
		return "Expired"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(s))
	}
}

// IsTerminal reports whether s is final.
func (s State) IsTerminal() bool {
	return s >= StateCommitted && s <= StateExpired
}

// rank orders states along the progress axis. All terminal states share
// the top rank.
func (s State) rank() int {
	switch {
	case s.IsTerminal():
		return 3
	case s == StateProcessing:
		return 2
	case s == StateEnqueued:
		return 1
	default:
		return 0
	}
}

// Classify maps a node status to a client state. NOT_RECEIVED and
// unknown statuses carry no information and report false.
func Classify(st types.TxStatus) (State, bool) {
	switch st {
	case types.StatusEnqueued:
		return StateEnqueued, true
	case types.StatusReceivedByPeer,
		types.StatusStatelessValidationSuccess,
		types.StatusStatefulValidationSuccess,
		types.StatusMSTPending,
		types.StatusEnoughSignaturesCollected:
		return StateProcessing, true
	case types.StatusRejected, types.StatusStatelessValidationFailed:
		return StateRejected, true
	case types.StatusStatefulValidationFailed:
		return StateFailed, true
	case types.StatusMSTExpired:
		return StateExpired, true
	case types.StatusCommitted:
		return StateCommitted, true
	default:
		return StateSubmitted, false
	}
}

// Machine tracks the state of one transaction. It is safe for
// concurrent use; Apply is lock-free.
type Machine struct {
	state    atomic.Uint32
	terminal atomic.Pointer[types.StatusEvent]
}

// NewMachine creates a machine in the Submitted state.
func NewMachine() *Machine {
	m := &Machine{}
	m.state.Store(uint32(StateSubmitted))
	return m
}

// State returns the current state.
func (m *Machine) State() State {
	return State(m.state.Load())
}

// Terminal returns the event that moved the machine into its terminal
// state, if any.
func (m *Machine) Terminal() (types.StatusEvent, bool) {
	ev := m.terminal.Load()
	if ev == nil {
		return types.StatusEvent{}, false
	}
	return *ev, true
}

// Apply folds ev into the machine and returns the resulting state and
// whether it changed. Events that would move the state backwards, or
// arrive after a terminal state, are ignored.
func (m *Machine) Apply(ev types.StatusEvent) (State, bool) {
	next, ok := Classify(ev.Status)
	for {
		cur := State(m.state.Load())
		if !ok || cur.IsTerminal() || next.rank() <= cur.rank() {
			return cur, false
		}
		if next.IsTerminal() {
			// Publish the event before the state so that a reader who
			// observes a terminal state always finds its event.
			if !m.terminal.CompareAndSwap(nil, &ev) {
				return State(m.state.Load()), false
			}
			m.state.Store(uint32(next))
			return next, true
		}
		if m.state.CompareAndSwap(uint32(cur), uint32(next)) {
			return next, true
		}
	}
}
