// Package memledger implements a complete in-memory ledger node.
//
// It is the reference peer for tests and for the --local mode of the
// example CLI. A submitted transaction walks the same status pipeline a
// real peer reports:
//
//	ENQUEUED -> STATELESS_VALIDATION_{SUCCESS,FAILED}
//	         -> [MST_PENDING -> ENOUGH_SIGNATURES_COLLECTED | MST_EXPIRED]
//	         -> STATEFUL_VALIDATION_{SUCCESS,FAILED} -> COMMITTED
//
// Every transaction is its own block. Commands run against a copy of
// the world state which replaces the live state only if every command
// succeeds.
package memledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/blockberries/ledger"
	"github.com/blockberries/ledger/crypto"
	"github.com/blockberries/ledger/types"
)

// DefaultMSTExpiry is how long a transaction may wait for signatures.
const DefaultMSTExpiry = 5 * time.Minute

// DefaultExpiryCheck is how often pending transactions are checked for
// expiry in the background.
const DefaultExpiryCheck = time.Second

// Genesis roles and domain.
const (
	AdminRole types.RoleID = "admin"
	UserRole  types.RoleID = "user"
)

// Compile-time interface check.
var _ ledger.Node = (*Node)(nil)

// Option configures a Node.
type Option func(*Node)

// WithStageDelay pauses between pipeline stages and makes processing
// asynchronous, so status streams observe the stages as they happen.
func WithStageDelay(d time.Duration) Option {
	return func(n *Node) { n.delay = d }
}

// WithMSTExpiry sets how long a transaction may wait for signatures.
func WithMSTExpiry(d time.Duration) Option {
	return func(n *Node) { n.mstExpiry = d }
}

// WithExpiryCheck sets how often the background sweep expires pending
// transactions. Zero disables the sweep; expiry is then checked only on
// submissions and status lookups.
func WithExpiryCheck(d time.Duration) Option {
	return func(n *Node) { n.expiryCheck = d }
}

// WithClock replaces the time source used for MST expiry.
func WithClock(now func() time.Time) Option {
	return func(n *Node) { n.now = now }
}

// WithLogger sets the node's logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Node) { n.log = l }
}

type pendingTx struct {
	tx    types.Transaction
	since time.Time
}

// Node is an in-memory ledger peer.
type Node struct {
	// execMu serializes the validation pipeline.
	execMu sync.Mutex

	mu        sync.RWMutex
	current   *state
	committed []types.Transaction
	txIndex   map[types.Hash]int
	history   map[types.Hash][]types.StatusEvent
	subs      map[types.Hash]map[*memStream]struct{}
	pending   map[types.Hash]*pendingTx
	closed    bool

	delay       time.Duration
	mstExpiry   time.Duration
	expiryCheck time.Duration
	now         func() time.Time
	log         *slog.Logger
	wg          sync.WaitGroup
	stop        chan struct{}
	stopOnce    sync.Once
}

// New creates a node whose genesis holds domain admin.Domain() with
// default role "user", the roles "admin" and "user", and the admin
// account signed for by adminKey.
//
// The admin role carries every permission except can_set_detail:
// writing another account's details always takes that account's grant.
func New(admin types.AccountID, adminKey types.PublicKey, opts ...Option) (*Node, error) {
	if err := admin.Validate(); err != nil {
		return nil, fmt.Errorf("memledger: admin account: %w", err)
	}
	n := &Node{
		current:   newState(),
		txIndex:   make(map[types.Hash]int),
		history:   make(map[types.Hash][]types.StatusEvent),
		subs:      make(map[types.Hash]map[*memStream]struct{}),
		pending:   make(map[types.Hash]*pendingTx),
		mstExpiry:   DefaultMSTExpiry,
		expiryCheck: DefaultExpiryCheck,
		now:         time.Now,
		log:         slog.Default(),
		stop:        make(chan struct{}),
	}
	for _, o := range opts {
		o(n)
	}

	s := n.current
	adminPerms := make(map[types.RolePermission]bool)
	for _, p := range types.AllRolePermissions() {
		if p != types.CanSetDetail {
			adminPerms[p] = true
		}
	}
	s.roles[AdminRole] = adminPerms
	s.roles[UserRole] = map[types.RolePermission]bool{
		types.CanAddSignatory:               true,
		types.CanRemoveSignatory:            true,
		types.CanSetQuorum:                  true,
		types.CanTransfer:                   true,
		types.CanReceive:                    true,
		types.CanGetMyAccount:               true,
		types.CanGetMySignatories:           true,
		types.CanGetMyAccAst:                true,
		types.CanGetMyAccDetail:             true,
		types.CanGetMyAccTxs:                true,
		types.CanGetMyAccAstTxs:             true,
		types.CanGetMyTxs:                   true,
		types.CanReadAssets:                 true,
		types.CanGetRoles:                   true,
		types.CanGrantCanAddMySignatory:     true,
		types.CanGrantCanRemoveMySignatory:  true,
		types.CanGrantCanSetMyQuorum:        true,
		types.CanGrantCanSetMyAccountDetail: true,
		types.CanGrantCanTransferMyAssets:   true,
	}
	s.domains[admin.Domain()] = UserRole
	acct := newAccount(admin, adminKey, AdminRole)
	acct.roles = append(acct.roles, UserRole)
	s.accounts[admin] = acct

	if n.expiryCheck > 0 {
		n.wg.Add(1)
		go n.expireLoop()
	}
	return n, nil
}

func (n *Node) expireLoop() {
	defer n.wg.Done()
	ticker := time.NewTicker(n.expiryCheck)
	defer ticker.Stop()
	for {
		select {
		case <-n.stop:
			return
		case <-ticker.C:
			if k := n.ExpirePending(); k > 0 {
				n.log.Debug("expired pending transactions", "count", k)
			}
		}
	}
}

// Close stops accepting work, waits for in-flight transactions and ends
// every open status stream.
func (n *Node) Close() error {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()

	n.stopOnce.Do(func() { close(n.stop) })
	n.wg.Wait()

	n.mu.Lock()
	defer n.mu.Unlock()
	for h, set := range n.subs {
		for s := range set {
			s.end()
		}
		delete(n.subs, h)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Submission pipeline
// ---------------------------------------------------------------------------

// SubmitTransaction enqueues tx. Resubmitting a known hash is a no-op,
// except while the transaction waits for signatures: then the new
// signatures are merged in and the transaction is re-evaluated.
func (n *Node) SubmitTransaction(ctx context.Context, tx types.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.ExpirePending()

	hash := tx.Hash()
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return ledger.NewTransportError("SubmitTransaction", ledger.ErrClosed)
	}
	if p, ok := n.pending[hash]; ok {
		for _, sig := range tx.Signatures {
			if !p.tx.HasSignatory(sig.PublicKey) {
				p.tx.Signatures = append(p.tx.Signatures, sig)
			}
		}
		merged := p.tx
		merged.Signatures = append([]types.Signature(nil), p.tx.Signatures...)
		n.mu.Unlock()
		n.log.Debug("merged signatures into pending transaction", "hash", hash, "signatures", len(merged.Signatures))
		n.dispatch(merged)
		return nil
	}
	if _, seen := n.history[hash]; seen {
		n.mu.Unlock()
		n.log.Debug("ignoring replayed transaction", "hash", hash)
		return nil
	}
	n.history[hash] = nil
	n.mu.Unlock()

	n.emit(types.StatusEvent{Hash: hash, Status: types.StatusEnqueued})
	n.dispatch(tx)
	return nil
}

// SubmitTransactions submits each transaction independently.
func (n *Node) SubmitTransactions(ctx context.Context, txs []types.Transaction) error {
	for i, tx := range txs {
		if err := n.SubmitTransaction(ctx, tx); err != nil {
			return fmt.Errorf("transaction %d: %w", i, err)
		}
	}
	return nil
}

func (n *Node) dispatch(tx types.Transaction) {
	if n.delay <= 0 {
		n.process(tx)
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.process(tx)
	}()
}

func (n *Node) pause() {
	if n.delay > 0 {
		time.Sleep(n.delay)
	}
}

func (n *Node) process(tx types.Transaction) {
	n.execMu.Lock()
	defer n.execMu.Unlock()

	hash := tx.Hash()
	creator := tx.Payload.Creator

	n.pause()
	if err := crypto.VerifyTransaction(tx); err != nil {
		n.mu.Lock()
		delete(n.pending, hash)
		n.mu.Unlock()
		n.emit(types.StatusEvent{Hash: hash, Status: types.StatusStatelessValidationFailed, Reason: err.Error()})
		return
	}
	n.emit(types.StatusEvent{Hash: hash, Status: types.StatusStatelessValidationSuccess})

	n.pause()
	n.mu.Lock()
	if n.isTerminalLocked(hash) {
		// Expired while this evaluation was queued.
		n.mu.Unlock()
		return
	}
	acct, ok := n.current.accounts[creator]
	if !ok {
		delete(n.pending, hash)
		n.mu.Unlock()
		n.emit(types.StatusEvent{Hash: hash, Status: types.StatusStatefulValidationFailed,
			Reason: fmt.Sprintf("creator account %s does not exist", creator), ErrorCode: CodeNotFound})
		return
	}
	for _, sig := range tx.Signatures {
		if !acct.hasSignatory(sig.PublicKey) {
			delete(n.pending, hash)
			n.mu.Unlock()
			n.emit(types.StatusEvent{Hash: hash, Status: types.StatusRejected,
				Reason: fmt.Sprintf("key %s is not a signatory of %s", crypto.Fingerprint(sig.PublicKey), creator)})
			return
		}
	}
	need := max(acct.quorum, tx.Payload.Quorum)
	if uint32(len(tx.Signatures)) < need {
		if p, waiting := n.pending[hash]; waiting {
			p.tx = tx
		} else {
			n.pending[hash] = &pendingTx{tx: tx, since: n.now()}
		}
		n.mu.Unlock()
		n.emit(types.StatusEvent{Hash: hash, Status: types.StatusMSTPending,
			Reason: fmt.Sprintf("%d of %d signatures", len(tx.Signatures), need)})
		return
	}
	_, wasPending := n.pending[hash]
	delete(n.pending, hash)
	next := n.current.clone()
	n.mu.Unlock()

	if wasPending {
		n.emit(types.StatusEvent{Hash: hash, Status: types.StatusEnoughSignaturesCollected})
	}

	for i, cmd := range tx.Payload.Commands {
		if cerr := execute(next, creator, cmd); cerr != nil {
			n.log.Info("command failed", "hash", hash, "index", i, "command", cmd.CommandName(), "reason", cerr.reason)
			n.emit(types.StatusEvent{
				Hash:               hash,
				Status:             types.StatusStatefulValidationFailed,
				Reason:             cerr.reason,
				ErrorCode:          cerr.code,
				FailedCommandIndex: uint32(i),
			})
			return
		}
	}
	n.emit(types.StatusEvent{Hash: hash, Status: types.StatusStatefulValidationSuccess})

	n.pause()
	n.mu.Lock()
	n.current = next
	n.txIndex[hash] = len(n.committed)
	n.committed = append(n.committed, tx)
	height := len(n.committed)
	n.mu.Unlock()

	n.log.Info("committed transaction", "hash", hash, "height", height, "creator", creator)
	n.emit(types.StatusEvent{Hash: hash, Status: types.StatusCommitted})
}

// ExpirePending ends the wait of every transaction that has been
// collecting signatures for longer than the MST expiry. It returns the
// number of expired transactions.
func (n *Node) ExpirePending() int {
	now := n.now()
	n.mu.Lock()
	var expired []types.Hash
	for h, p := range n.pending {
		if now.Sub(p.since) >= n.mstExpiry {
			expired = append(expired, h)
			delete(n.pending, h)
		}
	}
	n.mu.Unlock()

	for _, h := range expired {
		n.emit(types.StatusEvent{Hash: h, Status: types.StatusMSTExpired, Reason: "signature collection timed out"})
	}
	return len(expired)
}

func (n *Node) isTerminalLocked(hash types.Hash) bool {
	h := n.history[hash]
	return len(h) > 0 && h[len(h)-1].Status.IsTerminal()
}

// emit records ev and fans it out to subscribers. Streams are closed
// after a terminal status.
func (n *Node) emit(ev types.StatusEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.isTerminalLocked(ev.Hash) {
		return
	}
	n.history[ev.Hash] = append(n.history[ev.Hash], ev)
	for s := range n.subs[ev.Hash] {
		s.push(ev)
	}
	if ev.Status.IsTerminal() {
		delete(n.subs, ev.Hash)
	}
}

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

// Status returns the latest status of hash.
func (n *Node) Status(ctx context.Context, hash types.Hash) (types.StatusEvent, error) {
	if err := ctx.Err(); err != nil {
		return types.StatusEvent{}, err
	}
	n.ExpirePending()

	n.mu.RLock()
	defer n.mu.RUnlock()
	h := n.history[hash]
	if len(h) == 0 {
		return types.StatusEvent{Hash: hash, Status: types.StatusNotReceived}, nil
	}
	return h[len(h)-1], nil
}

// History returns every status emitted for hash, in order.
func (n *Node) History(hash types.Hash) []types.StatusEvent {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]types.StatusEvent(nil), n.history[hash]...)
}

// StatusStream replays the history of hash and then follows it live
// until a terminal status. An unknown hash first yields NOT_RECEIVED.
func (n *Node) StatusStream(ctx context.Context, hash types.Hash) (ledger.StatusStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n.ExpirePending()

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil, ledger.NewTransportError("StatusStream", ledger.ErrClosed)
	}

	s := &memStream{
		ctx:    ctx,
		node:   n,
		hash:   hash,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	h := n.history[hash]
	if len(h) == 0 {
		s.push(types.StatusEvent{Hash: hash, Status: types.StatusNotReceived})
	}
	for _, ev := range h {
		s.push(ev)
	}
	if s.ended {
		return s, nil
	}
	if n.subs[hash] == nil {
		n.subs[hash] = make(map[*memStream]struct{})
	}
	n.subs[hash][s] = struct{}{}
	return s, nil
}

func (n *Node) unsubscribe(s *memStream) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if set, ok := n.subs[s.hash]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(n.subs, s.hash)
		}
	}
}

// memStream queues events without bound so a slow reader never loses
// one. A hash sees only a handful of events, so the queue stays short.
type memStream struct {
	ctx       context.Context
	node      *Node
	hash      types.Hash
	notify    chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	mu    sync.Mutex
	queue []types.StatusEvent
	ended bool
}

// push queues ev. A terminal status ends the stream after delivery.
func (s *memStream) push(ev types.StatusEvent) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, ev)
	if ev.Status.IsTerminal() {
		s.ended = true
	}
	s.mu.Unlock()
	s.wake()
}

// end marks the stream finished once the queue drains.
func (s *memStream) end() {
	s.mu.Lock()
	s.ended = true
	s.mu.Unlock()
	s.wake()
}

func (s *memStream) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *memStream) Recv() (types.StatusEvent, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			ev := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return ev, nil
		}
		ended := s.ended
		s.mu.Unlock()
		if ended {
			return types.StatusEvent{}, io.EOF
		}

		select {
		case <-s.notify:
		case <-s.done:
			return types.StatusEvent{}, io.EOF
		case <-s.ctx.Done():
			return types.StatusEvent{}, ledger.NewTransportError("StatusStream", s.ctx.Err())
		}
	}
}

func (s *memStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.node.unsubscribe(s)
	})
	return nil
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// Query validates the envelope and answers q from the committed state.
func (n *Node) Query(ctx context.Context, q types.Query) (types.QueryResponse, error) {
	if err := ctx.Err(); err != nil {
		return types.QueryResponse{}, err
	}
	qh := q.Hash()
	if err := crypto.VerifyQuery(q); err != nil {
		return types.NewErrorResponse(qh, types.ErrorStatelessInvalid, 0, err.Error()), nil
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return types.QueryResponse{}, ledger.NewTransportError("Query", ledger.ErrClosed)
	}
	creator := q.Payload.Creator
	acct, ok := n.current.accounts[creator]
	if !ok {
		return types.NewErrorResponse(qh, types.ErrorStatefulInvalid, 0, "no account "+string(creator)), nil
	}
	for _, sig := range q.Signatures {
		if !acct.hasSignatory(sig.PublicKey) {
			return types.NewErrorResponse(qh, types.ErrorStatefulInvalid, 0,
				"key "+crypto.Fingerprint(sig.PublicKey)+" is not a signatory of "+string(creator)), nil
		}
	}
	return n.answer(n.current, qh, creator, q.Payload.Query), nil
}

// ---------------------------------------------------------------------------
// Inspection helpers
// ---------------------------------------------------------------------------

// ErrUnknown is returned by the inspection helpers for missing entities.
var ErrUnknown = errors.New("memledger: unknown entity")

// Balance returns the committed balance of asset on acct.
func (n *Node) Balance(acct types.AccountID, asset types.AssetID) (types.Amount, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	a, ok := n.current.accounts[acct]
	if !ok {
		return "", fmt.Errorf("%w: account %s", ErrUnknown, acct)
	}
	def, ok := n.current.assets[asset]
	if !ok {
		return "", fmt.Errorf("%w: asset %s", ErrUnknown, asset)
	}
	return formatAmount(balance(a, asset), def.Precision), nil
}

// Detail returns the value writer stored under key on acct.
func (n *Node) Detail(acct, writer types.AccountID, key string) (string, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	a, ok := n.current.accounts[acct]
	if !ok {
		return "", false
	}
	v, ok := a.details[writer][key]
	return v, ok
}

// Height returns the number of committed transactions.
func (n *Node) Height() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.committed)
}

// PendingCount returns the number of transactions collecting signatures.
func (n *Node) PendingCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.pending)
}
