// Package actor binds an account identity to a ledger connection.
//
// An Actor is constructed explicitly from an account id, its key pair
// and a connection; there is no ambient default identity. Every public
// operation logs an "entering" and a "leaving" record carrying an
// operation id, the key fingerprint and, where known, the transaction
// hash. Private key material never reaches the log.
package actor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/blockberries/ledger"
	"github.com/blockberries/ledger/builder"
	"github.com/blockberries/ledger/crypto"
	"github.com/blockberries/ledger/metrics"
	"github.com/blockberries/ledger/status"
	"github.com/blockberries/ledger/types"
)

// DefaultAwaitTimeout bounds Await when the caller's context has no
// deadline of its own.
const DefaultAwaitTimeout = 30 * time.Second

// Option configures an Actor.
type Option func(*Actor)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Actor) { a.log = l }
}

// WithMetrics records operations into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Actor) { a.metrics = m }
}

// WithRateLimit throttles submissions to rps per second with the given
// burst. A non-positive rps disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(a *Actor) {
		if rps <= 0 {
			a.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		a.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithAwaitTimeout bounds every wait for a terminal status.
func WithAwaitTimeout(d time.Duration) Option {
	return func(a *Actor) { a.awaitTimeout = d }
}

// WithBuilderOptions passes options to the actor's builder.
func WithBuilderOptions(opts ...builder.Option) Option {
	return func(a *Actor) { a.builderOpts = append(a.builderOpts, opts...) }
}

// WithTracker shares a status tracker between actors.
func WithTracker(t *status.Tracker) Option {
	return func(a *Actor) { a.tracker = t }
}

// Actor submits transactions and queries on behalf of one account.
// It is safe for concurrent use.
type Actor struct {
	id      types.AccountID
	key     crypto.KeyPair
	conn    ledger.Node
	builder *builder.Builder
	tracker *status.Tracker

	builderOpts  []builder.Option
	log          *slog.Logger
	metrics      *metrics.Metrics
	limiter      *rate.Limiter
	awaitTimeout time.Duration
}

// New creates an actor for account id signing with key over conn.
func New(id types.AccountID, key crypto.KeyPair, conn ledger.Node, opts ...Option) (*Actor, error) {
	if err := id.Validate(); err != nil {
		return nil, fmt.Errorf("%w: actor account: %v", ledger.ErrMalformedPayload, err)
	}
	if key.IsZero() {
		return nil, fmt.Errorf("%w: actor %s has no key", ledger.ErrInvalidKeyMaterial, id)
	}
	if conn == nil {
		return nil, errors.New("actor: nil connection")
	}
	a := &Actor{
		id:           id,
		key:          key,
		conn:         conn,
		log:          slog.Default(),
		awaitTimeout: DefaultAwaitTimeout,
	}
	for _, o := range opts {
		o(a)
	}
	a.builder = builder.New(id, a.builderOpts...)
	if a.tracker == nil {
		a.tracker = status.NewTracker()
	}
	a.log = a.log.With("account", string(id), "key", crypto.Fingerprint(key.PublicKey()))
	return a, nil
}

// ID returns the actor's account id.
func (a *Actor) ID() types.AccountID { return a.id }

// PublicKey returns the actor's public key.
func (a *Actor) PublicKey() types.PublicKey { return a.key.PublicKey() }

// Conn returns the connection the actor talks through.
func (a *Actor) Conn() ledger.Node { return a.conn }

// trace logs the entering record of op and returns the function that
// logs the leaving record.
func (a *Actor) trace(ctx context.Context, op string, attrs ...any) func(err error, more ...any) {
	start := time.Now()
	l := a.log.With(append([]any{"op", op, "op_id", uuid.NewString()}, attrs...)...)
	l.DebugContext(ctx, "entering")
	return func(err error, more ...any) {
		a.metrics.Since(op, start)
		more = append(more, "elapsed", time.Since(start))
		if err != nil {
			l.DebugContext(ctx, "leaving", append(more, "err", err)...)
			return
		}
		l.DebugContext(ctx, "leaving", more...)
	}
}

// ---------------------------------------------------------------------------
// Transactions
// ---------------------------------------------------------------------------

// Prepare builds a transaction of cmds and signs it with the actor's key.
func (a *Actor) Prepare(cmds ...types.Command) (types.Transaction, error) {
	tx, err := a.builder.Transaction(cmds...)
	if err != nil {
		return types.Transaction{}, err
	}
	if err := crypto.SignTransaction(&tx, a.key); err != nil {
		return types.Transaction{}, err
	}
	return tx, nil
}

// Sign adds the actor's signature to tx, which may have been created by
// another account.
func (a *Actor) Sign(tx *types.Transaction) error {
	return crypto.SignTransaction(tx, a.key)
}

// Submit builds, signs and submits a transaction of cmds and returns its
// hash. A nil error means the node received it; use Await for the
// verdict.
func (a *Actor) Submit(ctx context.Context, cmds ...types.Command) (hash types.Hash, err error) {
	leave := a.trace(ctx, "Submit", "commands", len(cmds))
	defer func() { leave(err, "hash", hash) }()

	tx, err := a.Prepare(cmds...)
	if err != nil {
		return types.Hash{}, err
	}
	return a.submit(ctx, tx)
}

// SubmitTx submits an already built and signed transaction.
func (a *Actor) SubmitTx(ctx context.Context, tx types.Transaction) (hash types.Hash, err error) {
	leave := a.trace(ctx, "SubmitTx", "hash", tx.Hash())
	defer func() { leave(err) }()
	return a.submit(ctx, tx)
}

func (a *Actor) submit(ctx context.Context, tx types.Transaction) (types.Hash, error) {
	if err := a.wait(ctx); err != nil {
		return types.Hash{}, err
	}
	hash := tx.Hash()
	a.tracker.Track(hash)
	err := a.conn.SubmitTransaction(ctx, tx)
	a.metrics.Submitted(1, err)
	if err != nil {
		a.tracker.Forget(hash)
		return types.Hash{}, err
	}
	return hash, nil
}

// SubmitBatch submits several signed transactions in one call. Each is
// tracked independently.
func (a *Actor) SubmitBatch(ctx context.Context, txs []types.Transaction) (hashes []types.Hash, err error) {
	leave := a.trace(ctx, "SubmitBatch", "transactions", len(txs))
	defer func() { leave(err) }()

	if err := a.wait(ctx); err != nil {
		return nil, err
	}
	hashes = make([]types.Hash, len(txs))
	for i, tx := range txs {
		hashes[i] = tx.Hash()
		a.tracker.Track(hashes[i])
	}
	err = a.conn.SubmitTransactions(ctx, txs)
	a.metrics.Submitted(len(txs), err)
	if err != nil {
		for _, h := range hashes {
			a.tracker.Forget(h)
		}
		return nil, err
	}
	return hashes, nil
}

func (a *Actor) wait(ctx context.Context) error {
	if a.limiter == nil {
		return nil
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("submission throttled: %w", err)
	}
	return nil
}

// Await follows the status stream of hash until a terminal status. A
// transaction that did not commit yields its outcome together with a
// *ledger.RejectionError.
func (a *Actor) Await(ctx context.Context, hash types.Hash) (out status.Outcome, err error) {
	leave := a.trace(ctx, "Await", "hash", hash)
	defer func() { leave(err, "state", out.State) }()

	if _, ok := ctx.Deadline(); !ok && a.awaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.awaitTimeout)
		defer cancel()
	}
	stream, err := a.conn.StatusStream(ctx, hash)
	if err != nil {
		return status.Outcome{Hash: hash}, err
	}
	out, err = a.tracker.Await(ctx, hash, stream)
	if err != nil {
		return out, err
	}
	a.tracker.Forget(hash)
	a.metrics.Outcome(out.State.String())
	return out, out.Err()
}

// Execute submits a transaction of cmds and waits for its outcome.
func (a *Actor) Execute(ctx context.Context, cmds ...types.Command) (status.Outcome, error) {
	hash, err := a.Submit(ctx, cmds...)
	if err != nil {
		return status.Outcome{}, err
	}
	return a.Await(ctx, hash)
}

// CoSign adds the actor's signature to a transaction collecting
// signatures and resubmits it. The node merges the new signature into
// the pending transaction.
func (a *Actor) CoSign(ctx context.Context, tx types.Transaction) (hash types.Hash, err error) {
	leave := a.trace(ctx, "CoSign", "hash", tx.Hash(), "creator", string(tx.Payload.Creator))
	defer func() { leave(err) }()

	tx.Signatures = append([]types.Signature(nil), tx.Signatures...)
	if err := a.Sign(&tx); err != nil {
		return types.Hash{}, err
	}
	return a.submit(ctx, tx)
}

// Status returns the latest status of hash without waiting.
func (a *Actor) Status(ctx context.Context, hash types.Hash) (ev types.StatusEvent, err error) {
	leave := a.trace(ctx, "Status", "hash", hash)
	defer func() { leave(err, "status", ev.Status) }()
	return a.conn.Status(ctx, hash)
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// Query signs and sends q. A ledger error response is returned both as
// the response and as a *ledger.RejectionError.
func (a *Actor) Query(ctx context.Context, q types.QueryKind) (resp types.QueryResponse, err error) {
	name := "<nil>"
	if q != nil {
		name = q.QueryName()
	}
	leave := a.trace(ctx, "Query", "query", name)
	defer func() { leave(err, "kind", resp.Kind) }()

	query, err := a.builder.Query(q)
	if err != nil {
		return types.QueryResponse{}, err
	}
	if err := crypto.SignQuery(&query, a.key); err != nil {
		return types.QueryResponse{}, err
	}
	resp, err = a.conn.Query(ctx, query)
	a.metrics.Query(name, err == nil && resp.IsError(), err)
	if err != nil {
		return types.QueryResponse{}, err
	}
	if resp.IsError() {
		e := resp.ErrorDetail()
		return resp, &ledger.RejectionError{
			Hash:        query.Hash(),
			QueryReason: e.Reason,
			Reason:      e.Message,
			ErrorCode:   e.ErrorCode,
		}
	}
	return resp, nil
}
