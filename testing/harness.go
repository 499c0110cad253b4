package ledgertest

import (
	"context"
	"testing"
	"time"

	"github.com/blockberries/ledger"
	"github.com/blockberries/ledger/builder"
	"github.com/blockberries/ledger/crypto"
	"github.com/blockberries/ledger/status"
	"github.com/blockberries/ledger/types"
)

// Defaults of the example network.
const (
	AdminAccount types.AccountID = "admin@test"
	AdminKeyHex                  = "f101537e319568c765b2cc89698325604991dca57b9716b58016b253506cab70"
)

// AwaitTimeout bounds every harness wait.
const AwaitTimeout = 10 * time.Second

// AdminKey returns the example network's admin key pair.
func AdminKey(t testing.TB) crypto.KeyPair {
	t.Helper()
	kp, err := crypto.KeyPairFromHex(AdminKeyHex)
	if err != nil {
		t.Fatalf("admin key: %v", err)
	}
	return kp
}

// NewKey generates a fresh key pair.
func NewKey(t testing.TB) crypto.KeyPair {
	t.Helper()
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	return kp
}

// Harness drives a ledger connection from a test: it builds, signs,
// submits and awaits transactions and fails the test on any
// unexpected error.
type Harness struct {
	t       testing.TB
	conn    ledger.Node
	admin   types.AccountID
	key     crypto.KeyPair
	builder *builder.Builder
	tracker *status.Tracker
}

// NewHarness creates a harness acting as admin on conn.
func NewHarness(t testing.TB, conn ledger.Node, admin types.AccountID, key crypto.KeyPair) *Harness {
	t.Helper()
	return &Harness{
		t:       t,
		conn:    conn,
		admin:   admin,
		key:     key,
		builder: builder.New(admin),
		tracker: status.NewTracker(),
	}
}

// Conn returns the connection under test.
func (h *Harness) Conn() ledger.Node { return h.conn }

// Admin returns the admin account id.
func (h *Harness) Admin() types.AccountID { return h.admin }

// AdminKey returns the admin key pair.
func (h *Harness) AdminKey() crypto.KeyPair { return h.key }

// Build builds an unsigned transaction on behalf of creator.
func (h *Harness) Build(creator types.AccountID, cmds ...types.Command) types.Transaction {
	h.t.Helper()
	tx, err := h.builder.TransactionAs(creator, cmds...)
	if err != nil {
		h.t.Fatalf("build: %v", err)
	}
	return tx
}

// Sign adds one signature per key.
func (h *Harness) Sign(tx *types.Transaction, keys ...crypto.KeyPair) {
	h.t.Helper()
	for _, k := range keys {
		if err := crypto.SignTransaction(tx, k); err != nil {
			h.t.Fatalf("sign: %v", err)
		}
	}
}

// Submit hands tx to the node.
func (h *Harness) Submit(tx types.Transaction) types.Hash {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), AwaitTimeout)
	defer cancel()
	if err := h.conn.SubmitTransaction(ctx, tx); err != nil {
		h.t.Fatalf("submit %s: %v", tx.Hash(), err)
	}
	return tx.Hash()
}

// Await waits for the terminal outcome of hash.
func (h *Harness) Await(hash types.Hash) status.Outcome {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), AwaitTimeout)
	defer cancel()
	stream, err := h.conn.StatusStream(ctx, hash)
	if err != nil {
		h.t.Fatalf("status stream %s: %v", hash, err)
	}
	out, err := h.tracker.Await(ctx, hash, stream)
	if err != nil {
		h.t.Fatalf("await %s: %v", hash, err)
	}
	return out
}

// Run builds a transaction for creator, signs it with keys, submits it
// and returns its outcome.
func (h *Harness) Run(creator types.AccountID, keys []crypto.KeyPair, cmds ...types.Command) status.Outcome {
	h.t.Helper()
	tx := h.Build(creator, cmds...)
	h.Sign(&tx, keys...)
	return h.Await(h.Submit(tx))
}

// MustCommit runs an admin transaction and asserts it committed.
func (h *Harness) MustCommit(cmds ...types.Command) status.Outcome {
	h.t.Helper()
	return h.MustCommitAs(h.admin, []crypto.KeyPair{h.key}, cmds...)
}

// MustCommitAs runs a transaction and asserts it committed.
func (h *Harness) MustCommitAs(creator types.AccountID, keys []crypto.KeyPair, cmds ...types.Command) status.Outcome {
	h.t.Helper()
	out := h.Run(creator, keys, cmds...)
	if !out.Committed() {
		h.t.Fatalf("expected commit, got %s: %v", out.State, out.Err())
	}
	return out
}

// MustFailAs runs a transaction and asserts it did not commit.
func (h *Harness) MustFailAs(creator types.AccountID, keys []crypto.KeyPair, cmds ...types.Command) status.Outcome {
	h.t.Helper()
	out := h.Run(creator, keys, cmds...)
	if out.Committed() {
		h.t.Fatalf("expected %v to be refused, but it committed", cmds)
	}
	return out
}

// Query signs q as creator with key and returns the response.
func (h *Harness) Query(creator types.AccountID, key crypto.KeyPair, q types.QueryKind) types.QueryResponse {
	h.t.Helper()
	query, err := h.builder.QueryAs(creator, q)
	if err != nil {
		h.t.Fatalf("build query: %v", err)
	}
	if err := crypto.SignQuery(&query, key); err != nil {
		h.t.Fatalf("sign query: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), AwaitTimeout)
	defer cancel()
	resp, err := h.conn.Query(ctx, query)
	if err != nil {
		h.t.Fatalf("query %s: %v", q.QueryName(), err)
	}
	return resp
}

// AdminQuery runs q as the admin.
func (h *Harness) AdminQuery(q types.QueryKind) types.QueryResponse {
	h.t.Helper()
	return h.Query(h.admin, h.key, q)
}

// Balance reads the balance of asset on acct through GetAccountAssets.
// A missing line reads as "".
func (h *Harness) Balance(acct types.AccountID, asset types.AssetID) types.Amount {
	h.t.Helper()
	resp := h.AdminQuery(types.GetAccountAssets{AccountID: acct})
	if resp.IsError() {
		h.t.Fatalf("GetAccountAssets(%s): %+v", acct, resp.ErrorDetail())
	}
	for _, a := range resp.AccountAssets.Assets {
		if a.AssetID == asset {
			return a.Balance
		}
	}
	return ""
}

// SetupCoin creates domain "domain" with asset "coin#domain" at
// precision 2 and credits the admin with amount.
func (h *Harness) SetupCoin(amount types.Amount) {
	h.t.Helper()
	h.MustCommit(
		types.CreateDomain{DomainID: "domain", DefaultRole: "user"},
		types.CreateAsset{AssetName: "coin", DomainID: "domain", Precision: 2},
	)
	h.MustCommit(types.AddAssetQuantity{AssetID: "coin#domain", Amount: amount})
}

// CreateUser creates name@domain and returns its id and key.
func (h *Harness) CreateUser(name string) (types.AccountID, crypto.KeyPair) {
	h.t.Helper()
	key := NewKey(h.t)
	h.MustCommit(types.CreateAccount{AccountName: name, DomainID: "domain", PublicKey: key.PublicKey()})
	return types.NewAccountID(name, "domain"), key
}

// WaitFor polls the unary status of hash until it reports want. It
// fails the test on a terminal status or after AwaitTimeout.
func (h *Harness) WaitFor(hash types.Hash, want types.TxStatus) {
	h.t.Helper()
	deadline := time.Now().Add(AwaitTimeout)
	for {
		ev, err := h.conn.Status(context.Background(), hash)
		if err != nil {
			h.t.Fatalf("status %s: %v", hash, err)
		}
		if ev.Status == want {
			return
		}
		if ev.Status.IsTerminal() {
			h.t.Fatalf("waiting for %s: %s reached %s", want, hash, ev.Status)
		}
		if time.Now().After(deadline) {
			h.t.Fatalf("waiting for %s: %s still %s", want, hash, ev.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
