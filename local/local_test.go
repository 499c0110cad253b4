package local

import (
	"context"
	"errors"
	"testing"

	"github.com/blockberries/ledger"
	"github.com/blockberries/ledger/example/memledger"
	ledgertest "github.com/blockberries/ledger/testing"
	"github.com/blockberries/ledger/types"
)

func newConnection(t *testing.T, admin types.AccountID, adminKey types.PublicKey) *Connection {
	t.Helper()
	node, err := memledger.New(admin, adminKey)
	if err != nil {
		t.Fatalf("memledger.New: %v", err)
	}
	conn := NewConnection(node)
	t.Cleanup(func() {
		conn.Close()
		node.Close()
	})
	return conn
}

func TestLocalConnection_Compliance(t *testing.T) {
	ledgertest.RunNodeCompliance(t, func(t *testing.T, admin types.AccountID, adminKey types.PublicKey) ledger.Node {
		return newConnection(t, admin, adminKey)
	})
}

func TestLocalConnection_FullCycle(t *testing.T) {
	key := ledgertest.AdminKey(t)
	conn := newConnection(t, ledgertest.AdminAccount, key.PublicKey())
	h := ledgertest.NewHarness(t, conn, ledgertest.AdminAccount, key)

	h.SetupCoin("1000.00")
	user, userKey := h.CreateUser("userone")
	h.MustCommit(types.TransferAsset{
		SrcAccountID: h.Admin(), DestAccountID: user, AssetID: "coin#domain",
		Description: "init top up", Amount: "2.00",
	})

	resp := h.Query(user, userKey, types.GetAccountAssets{AccountID: user})
	if resp.IsError() {
		t.Fatalf("user reading own assets: %+v", resp.ErrorDetail())
	}
	if len(resp.AccountAssets.Assets) != 1 || resp.AccountAssets.Assets[0].Balance != "2.00" {
		t.Fatalf("unexpected assets %+v", resp.AccountAssets.Assets)
	}
}

func TestLocalConnection_Closed(t *testing.T) {
	key := ledgertest.AdminKey(t)
	conn := newConnection(t, ledgertest.AdminAccount, key.PublicKey())

	if err := conn.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !conn.Server().IsClosed() {
		t.Fatal("server not marked closed")
	}

	_, err := conn.Status(context.Background(), types.Hash{1})
	te, ok := ledger.IsTransport(err)
	if !ok {
		t.Fatalf("expected transport error, got %v", err)
	}
	if !errors.Is(te, ledger.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", te.Err)
	}

	// Closing twice is harmless.
	if err := conn.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
