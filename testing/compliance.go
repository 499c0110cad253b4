package ledgertest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/blockberries/ledger"
	"github.com/blockberries/ledger/crypto"
	"github.com/blockberries/ledger/status"
	"github.com/blockberries/ledger/types"
)

// NodeFactory returns a fresh node whose genesis holds the admin
// account admin, signed for by adminKey, with the "user" role available
// as a default role. The factory registers its own cleanup.
type NodeFactory func(t *testing.T, admin types.AccountID, adminKey types.PublicKey) ledger.Node

// RunNodeCompliance runs the standard behavior suite against a node
// implementation or a transport in front of one.
func RunNodeCompliance(t *testing.T, factory NodeFactory) {
	t.Helper()

	setup := func(t *testing.T) *Harness {
		key := AdminKey(t)
		return NewHarness(t, factory(t, AdminAccount, key.PublicKey()), AdminAccount, key)
	}

	t.Run("unknown_hash_not_received", func(t *testing.T) {
		h := setup(t)
		ev, err := h.Conn().Status(context.Background(), types.Hash{0xde, 0xad})
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if ev.Status != types.StatusNotReceived {
			t.Fatalf("expected NOT_RECEIVED, got %s", ev.Status)
		}
	})

	t.Run("simple_transfer_commits", func(t *testing.T) {
		h := setup(t)
		h.SetupCoin("1000.00")
		user, _ := h.CreateUser("userone")

		out := h.MustCommit(types.TransferAsset{
			SrcAccountID:  h.Admin(),
			DestAccountID: user,
			AssetID:       "coin#domain",
			Description:   "init top up",
			Amount:        "2.00",
		})
		if out.Events[len(out.Events)-1].Status != types.StatusCommitted {
			t.Fatalf("last event %s", out.Events[len(out.Events)-1].Status)
		}
		if got := h.Balance(user, "coin#domain"); got != "2.00" {
			t.Fatalf("user balance = %q, want 2.00", got)
		}
		if got := h.Balance(h.Admin(), "coin#domain"); got != "998.00" {
			t.Fatalf("admin balance = %q, want 998.00", got)
		}

		ev, err := h.Conn().Status(context.Background(), out.Hash)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if ev.Status != types.StatusCommitted {
			t.Fatalf("unary status %s, want COMMITTED", ev.Status)
		}
	})

	t.Run("overdraft_rejected_balance_unchanged", func(t *testing.T) {
		h := setup(t)
		h.SetupCoin("1000.00")
		user, userKey := h.CreateUser("userone")
		h.MustCommit(types.TransferAsset{
			SrcAccountID: h.Admin(), DestAccountID: user, AssetID: "coin#domain", Amount: "2.00",
		})

		out := h.MustFailAs(user, []crypto.KeyPair{userKey}, types.TransferAsset{
			SrcAccountID:  user,
			DestAccountID: h.Admin(),
			AssetID:       "coin#domain",
			Description:   "get back",
			Amount:        "5.00",
		})
		if out.State != status.StateFailed {
			t.Fatalf("state %s, want Failed", out.State)
		}
		rej, ok := ledger.IsRejection(out.Err())
		if !ok || rej.Reason == "" {
			t.Fatalf("expected rejection with reason, got %v", out.Err())
		}
		if got := h.Balance(user, "coin#domain"); got != "2.00" {
			t.Fatalf("user balance changed to %q", got)
		}
	})

	t.Run("failed_command_rolls_back_transaction", func(t *testing.T) {
		h := setup(t)
		h.SetupCoin("10.00")
		user, _ := h.CreateUser("userone")

		out := h.MustFailAs(h.Admin(), []crypto.KeyPair{h.AdminKey()},
			types.TransferAsset{SrcAccountID: h.Admin(), DestAccountID: user, AssetID: "coin#domain", Amount: "1.00"},
			types.TransferAsset{SrcAccountID: h.Admin(), DestAccountID: user, AssetID: "coin#domain", Amount: "100.00"},
		)
		if out.FailedCommandIndex != 1 {
			t.Fatalf("failed command index %d, want 1", out.FailedCommandIndex)
		}
		if got := h.Balance(h.Admin(), "coin#domain"); got != "10.00" {
			t.Fatalf("first command leaked: admin balance %q", got)
		}
	})

	t.Run("detail_needs_grant", func(t *testing.T) {
		h := setup(t)
		h.SetupCoin("1.00")
		user, userKey := h.CreateUser("userone")
		setAge := types.SetAccountDetail{AccountID: user, Key: "age", Value: "18"}

		out := h.MustFailAs(h.Admin(), []crypto.KeyPair{h.AdminKey()}, setAge)
		if _, ok := ledger.IsRejection(out.Err()); !ok {
			t.Fatalf("expected rejection, got %v", out.Err())
		}

		h.MustCommitAs(user, []crypto.KeyPair{userKey}, types.GrantPermission{
			AccountID: h.Admin(), Permission: types.CanSetMyAccountDetail,
		})
		h.MustCommit(setAge)

		resp := h.AdminQuery(types.GetAccountDetail{AccountID: user})
		if resp.IsError() {
			t.Fatalf("GetAccountDetail: %+v", resp.ErrorDetail())
		}
		entries, err := resp.AccountDetail.Entries()
		if err != nil {
			t.Fatalf("Entries: %v", err)
		}
		if entries[h.Admin()]["age"] != "18" {
			t.Fatalf("detail not stored: %v", entries)
		}
	})

	t.Run("bad_signature_rejected", func(t *testing.T) {
		h := setup(t)
		tx := h.Build(h.Admin(), types.CreateDomain{DomainID: "domain", DefaultRole: "user"})
		h.Sign(&tx, h.AdminKey())
		tx.Signatures[0].Signature[0] ^= 0xff

		out := h.Await(h.Submit(tx))
		if out.State != status.StateRejected {
			t.Fatalf("state %s, want Rejected", out.State)
		}
	})

	t.Run("foreign_signatory_rejected", func(t *testing.T) {
		h := setup(t)
		out := h.Run(h.Admin(), []crypto.KeyPair{NewKey(t)},
			types.CreateDomain{DomainID: "domain", DefaultRole: "user"})
		if out.Committed() {
			t.Fatal("transaction signed by a stranger committed")
		}
	})

	t.Run("resubmission_is_noop", func(t *testing.T) {
		h := setup(t)
		h.SetupCoin("10.00")
		tx := h.Build(h.Admin(), types.AddAssetQuantity{AssetID: "coin#domain", Amount: "1.00"})
		h.Sign(&tx, h.AdminKey())

		h.Submit(tx)
		if out := h.Await(tx.Hash()); !out.Committed() {
			t.Fatalf("first submission: %v", out.Err())
		}
		h.Submit(tx)
		if out := h.Await(tx.Hash()); !out.Committed() {
			t.Fatalf("replayed status: %v", out.Err())
		}
		if got := h.Balance(h.Admin(), "coin#domain"); got != "11.00" {
			t.Fatalf("replay applied twice: balance %q", got)
		}
	})

	t.Run("multisignature_collection", func(t *testing.T) {
		h := setup(t)
		h.SetupCoin("10.00")
		user, userKey := h.CreateUser("userone")
		second := NewKey(t)
		h.MustCommitAs(user, []crypto.KeyPair{userKey},
			types.AddSignatory{AccountID: user, PublicKey: second.PublicKey()},
			types.SetAccountQuorum{AccountID: user, Quorum: 2},
		)

		tx := h.Build(user, types.SetAccountDetail{AccountID: user, Key: "k", Value: "v"})
		h.Sign(&tx, userKey)
		hash := h.Submit(tx)

		h.WaitFor(hash, types.StatusMSTPending)

		cosigned := tx
		cosigned.Signatures = nil
		h.Sign(&cosigned, second)
		h.Submit(cosigned)

		out := h.Await(hash)
		if !out.Committed() {
			t.Fatalf("co-signed transaction: %v", out.Err())
		}
	})

	t.Run("query_error_response", func(t *testing.T) {
		h := setup(t)
		resp := h.AdminQuery(types.GetAccount{AccountID: "nobody@test"})
		if !resp.IsError() {
			t.Fatalf("expected error response, got kind %d", resp.Kind)
		}
		if resp.ErrorDetail().Reason != types.ErrorNoAccount {
			t.Fatalf("reason %s, want NO_ACCOUNT", resp.ErrorDetail().Reason)
		}
	})

	t.Run("paginated_transactions", func(t *testing.T) {
		h := setup(t)
		h.SetupCoin("100.00")
		user, _ := h.CreateUser("userone")
		for i := 0; i < 3; i++ {
			h.MustCommit(types.TransferAsset{
				SrcAccountID: h.Admin(), DestAccountID: user, AssetID: "coin#domain", Amount: "1.00",
			})
		}

		first := h.AdminQuery(types.GetAccountAssetTransactions{
			AccountID: user, AssetID: "coin#domain", Pagination: types.Pagination{PageSize: 2},
		})
		if first.IsError() {
			t.Fatalf("page 1: %+v", first.ErrorDetail())
		}
		page := first.TransactionsPage
		if len(page.Transactions) != 2 || page.AllTransactionsSize != 3 || page.NextTxHash == nil {
			t.Fatalf("page 1: %d txs of %d, next %v", len(page.Transactions), page.AllTransactionsSize, page.NextTxHash)
		}

		second := h.AdminQuery(types.GetAccountAssetTransactions{
			AccountID: user, AssetID: "coin#domain",
			Pagination: types.Pagination{PageSize: 2, FirstTxHash: page.NextTxHash},
		})
		if second.IsError() {
			t.Fatalf("page 2: %+v", second.ErrorDetail())
		}
		if n := len(second.TransactionsPage.Transactions); n != 1 || second.TransactionsPage.NextTxHash != nil {
			t.Fatalf("page 2: %d txs, next %v", n, second.TransactionsPage.NextTxHash)
		}
	})

	t.Run("concurrent_queries", func(t *testing.T) {
		h := setup(t)
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				q, err := h.builder.Query(types.GetRoles{})
				if err != nil {
					t.Errorf("build: %v", err)
					return
				}
				if err := crypto.SignQuery(&q, h.AdminKey()); err != nil {
					t.Errorf("sign: %v", err)
					return
				}
				resp, err := h.Conn().Query(context.Background(), q)
				if err != nil {
					t.Errorf("concurrent Query failed: %v", err)
					return
				}
				if resp.IsError() {
					t.Errorf("GetRoles refused: %+v", resp.ErrorDetail())
				}
			}()
		}
		wg.Wait()
	})

	t.Run("zero_valued_query_answered", func(t *testing.T) {
		h := setup(t)
		resp := h.AdminQuery(types.GetTransactions{})
		if resp.IsError() {
			t.Fatalf("GetTransactions{} refused: %+v", resp.ErrorDetail())
		}
		if resp.Kind != types.ResponseTransactions || resp.Transactions == nil {
			t.Fatalf("unexpected response %+v", resp)
		}
		if n := len(resp.Transactions.Transactions); n != 0 {
			t.Fatalf("expected no transactions, got %d", n)
		}
	})

	t.Run("malformed_submission_refused", func(t *testing.T) {
		h := setup(t)
		tx := types.Transaction{Payload: types.TxPayload{Creator: h.Admin(), Quorum: 1}}
		err := h.Conn().SubmitTransaction(context.Background(), tx)
		if err == nil {
			// Nodes without a gatekeeper report the problem through the
			// status stream instead.
			if out := h.Await(tx.Hash()); out.Committed() {
				t.Fatal("empty transaction committed")
			}
			return
		}
		if !errors.Is(err, ledger.ErrMalformedPayload) {
			t.Fatalf("expected ErrMalformedPayload, got %v", err)
		}
	})
}
