// Package builder assembles unsigned transactions and queries.
//
// A Builder stamps each payload with a creation time and, for queries, a
// counter. Both are kept per builder: timestamps are strictly increasing
// so two builds of the same commands never share a hash, and counters
// never repeat.
package builder

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blockberries/ledger"
	"github.com/blockberries/ledger/types"
)

// DefaultQuorum is the quorum stamped on transactions unless WithQuorum
// overrides it.
const DefaultQuorum = 1

// Clock returns the current time in milliseconds since the Unix epoch.
type Clock func() uint64

// SystemClock reads the wall clock.
func SystemClock() uint64 {
	return types.TimeToMillis(time.Now())
}

// Option configures a Builder.
type Option func(*Builder)

// WithQuorum sets the quorum stamped on every transaction.
func WithQuorum(q uint32) Option {
	return func(b *Builder) { b.quorum = q }
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c Clock) Option {
	return func(b *Builder) { b.clock = c }
}

// Builder produces payloads for one default creator. It is safe for
// concurrent use.
type Builder struct {
	creator types.AccountID
	quorum  uint32
	clock   Clock

	mu   sync.Mutex
	last uint64

	counter atomic.Uint64
}

// New returns a builder for creator.
func New(creator types.AccountID, opts ...Option) *Builder {
	b := &Builder{
		creator: creator,
		quorum:  DefaultQuorum,
		clock:   SystemClock,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Creator returns the default creator.
func (b *Builder) Creator() types.AccountID { return b.creator }

// Transaction builds an unsigned transaction from cmds, in order.
func (b *Builder) Transaction(cmds ...types.Command) (types.Transaction, error) {
	return b.TransactionAs(b.creator, cmds...)
}

// TransactionAs builds an unsigned transaction on behalf of creator.
func (b *Builder) TransactionAs(creator types.AccountID, cmds ...types.Command) (types.Transaction, error) {
	if err := creator.Validate(); err != nil {
		return types.Transaction{}, fmt.Errorf("%w: creator: %v", ledger.ErrMalformedPayload, err)
	}
	if len(cmds) == 0 {
		return types.Transaction{}, fmt.Errorf("%w: no commands", ledger.ErrMalformedPayload)
	}
	for i, c := range cmds {
		if c == nil {
			return types.Transaction{}, fmt.Errorf("%w: command %d is nil", ledger.ErrMalformedPayload, i)
		}
	}
	if b.quorum == 0 {
		return types.Transaction{}, fmt.Errorf("%w: quorum must be positive", ledger.ErrMalformedPayload)
	}
	return types.Transaction{Payload: types.TxPayload{
		Creator:         creator,
		CreatedAtMillis: b.now(),
		Commands:        append([]types.Command(nil), cmds...),
		Quorum:          b.quorum,
	}}, nil
}

// Query builds an unsigned query.
func (b *Builder) Query(q types.QueryKind) (types.Query, error) {
	return b.QueryAs(b.creator, q)
}

// QueryAs builds an unsigned query on behalf of creator.
func (b *Builder) QueryAs(creator types.AccountID, q types.QueryKind) (types.Query, error) {
	if err := creator.Validate(); err != nil {
		return types.Query{}, fmt.Errorf("%w: creator: %v", ledger.ErrMalformedPayload, err)
	}
	if q == nil {
		return types.Query{}, fmt.Errorf("%w: no query", ledger.ErrMalformedPayload)
	}
	return types.Query{Payload: types.QueryPayload{
		Creator:         creator,
		CreatedAtMillis: b.now(),
		Counter:         b.counter.Add(1),
		Query:           q,
	}}, nil
}

// now returns the clock reading, bumped past the previous one if the
// clock stalled or went backwards.
func (b *Builder) now() uint64 {
	t := b.clock()
	b.mu.Lock()
	defer b.mu.Unlock()
	if t <= b.last {
		t = b.last + 1
	}
	b.last = t
	return t
}
