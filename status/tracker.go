package status

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/blockberries/ledger"
	"github.com/blockberries/ledger/types"
)

// DefaultTTL is how long a tracked hash survives without new events.
const DefaultTTL = 10 * time.Minute

// Outcome is the final verdict on a transaction.
type Outcome struct {
	Hash  types.Hash
	State State
	// Status is the raw node status that ended tracking.
	Status             types.TxStatus
	Reason             string
	ErrorCode          uint32
	FailedCommandIndex uint32
	// Events holds every event received, in arrival order.
	Events []types.StatusEvent
}

// Committed reports whether the transaction made it into the ledger.
func (o Outcome) Committed() bool { return o.State == StateCommitted }

// Err returns nil for a committed transaction and a *ledger.RejectionError
// for any other terminal outcome.
func (o Outcome) Err() error {
	if o.Committed() {
		return nil
	}
	return &ledger.RejectionError{
		Hash:      o.Hash,
		Status:    o.Status,
		Reason:    o.Reason,
		ErrorCode: o.ErrorCode,
	}
}

type entry struct {
	machine *Machine
	events  []types.StatusEvent
	touched time.Time
}

func (e *entry) last() types.TxStatus {
	if len(e.events) == 0 {
		return 0
	}
	return e.events[len(e.events)-1].Status
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithTTL sets how long an idle hash is kept.
func WithTTL(d time.Duration) TrackerOption {
	return func(t *Tracker) { t.ttl = d }
}

// WithNow replaces the time source used for eviction.
func WithNow(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

// Tracker keeps a state machine per transaction hash. Entries that see
// no events for the configured TTL are evicted, so a client that never
// awaits a transaction does not leak its state.
type Tracker struct {
	mu      sync.Mutex
	entries map[types.Hash]*entry
	ttl     time.Duration
	now     func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		entries: make(map[types.Hash]*entry),
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Track registers hash in the Submitted state. Tracking an already
// known hash returns its existing machine.
func (t *Tracker) Track(hash types.Hash) *Machine {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sweepLocked()
	return t.entryLocked(hash).machine
}

// Observe folds ev into the machine for ev.Hash, registering the hash if
// needed.
func (t *Tracker) Observe(ev types.StatusEvent) (State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entryLocked(ev.Hash)
	e.events = append(e.events, ev)
	e.touched = t.now()
	return e.machine.Apply(ev)
}

// State returns the current state of hash.
func (t *Tracker) State(hash types.Hash) (State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[hash]
	if !ok {
		return 0, false
	}
	return e.machine.State(), true
}

// Forget drops all state for hash.
func (t *Tracker) Forget(hash types.Hash) {
	t.mu.Lock()
	delete(t.entries, hash)
	t.mu.Unlock()
}

// Len returns the number of tracked hashes.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Sweep evicts idle entries and returns how many were removed.
func (t *Tracker) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sweepLocked()
}

func (t *Tracker) sweepLocked() int {
	if t.ttl <= 0 {
		return 0
	}
	cutoff := t.now().Add(-t.ttl)
	n := 0
	for h, e := range t.entries {
		if e.touched.Before(cutoff) {
			delete(t.entries, h)
			n++
		}
	}
	return n
}

func (t *Tracker) entryLocked(hash types.Hash) *entry {
	e, ok := t.entries[hash]
	if !ok {
		e = &entry{machine: NewMachine()}
		t.entries[hash] = e
	}
	e.touched = t.now()
	return e
}

func (t *Tracker) outcome(hash types.Hash) Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[hash]
	if !ok {
		return Outcome{Hash: hash}
	}
	o := Outcome{
		Hash:   hash,
		State:  e.machine.State(),
		Events: append([]types.StatusEvent(nil), e.events...),
	}
	if ev, ok := e.machine.Terminal(); ok {
		o.Status = ev.Status
		o.Reason = ev.Reason
		o.ErrorCode = ev.ErrorCode
		o.FailedCommandIndex = ev.FailedCommandIndex
	}
	return o
}

func (t *Tracker) lastStatus(hash types.Hash) types.TxStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[hash]; ok {
		return e.last()
	}
	return 0
}

type recvResult struct {
	ev  types.StatusEvent
	err error
}

// Await consumes stream until a terminal status for hash arrives and
// returns the outcome. It always closes stream.
//
// A stream that ends before a terminal status yields a
// *ledger.StreamClosedError carrying the last status seen; the caller
// may re-query the status. A broken stream yields a
// *ledger.TransportError. If ctx ends first, tracking of hash is
// abandoned and ctx.Err() is returned.
func (t *Tracker) Await(ctx context.Context, hash types.Hash, stream ledger.StatusStream) (Outcome, error) {
	defer stream.Close()
	t.Track(hash)

	done := make(chan struct{})
	defer close(done)

	results := make(chan recvResult)
	go func() {
		for {
			ev, err := stream.Recv()
			select {
			case results <- recvResult{ev: ev, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			t.Forget(hash)
			return Outcome{}, ctx.Err()
		case r := <-results:
			if errors.Is(r.err, io.EOF) {
				return Outcome{}, &ledger.StreamClosedError{Hash: hash, Last: t.lastStatus(hash)}
			}
			if r.err != nil {
				if _, ok := ledger.IsTransport(r.err); ok {
					return Outcome{}, r.err
				}
				return Outcome{}, ledger.NewTransportError("StatusStream", r.err)
			}
			ev := r.ev
			if ev.Hash.IsZero() {
				ev.Hash = hash
			} else if ev.Hash != hash {
				continue
			}
			if state, _ := t.Observe(ev); state.IsTerminal() {
				return t.outcome(hash), nil
			}
		}
	}
}
