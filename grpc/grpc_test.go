package ledgergrpc_test

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/blockberries/ledger"
	"github.com/blockberries/ledger/crypto"
	"github.com/blockberries/ledger/example/memledger"
	ledgergrpc "github.com/blockberries/ledger/grpc"
	"github.com/blockberries/ledger/status"
	ledgertest "github.com/blockberries/ledger/testing"
	"github.com/blockberries/ledger/types"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// startServer starts a gRPC server on a random port and returns the
// listener address and the *grpc.Server.
func startServer(t *testing.T, gs *ledgergrpc.GRPCServer) (string, *grpc.Server) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s := grpc.NewServer()
	gs.Register(s)

	go func() {
		// Serve returns after Stop; nothing to report.
		_ = s.Serve(lis)
	}()
	t.Cleanup(s.Stop)
	return lis.Addr().String(), s
}

func dial(t *testing.T, addr string) *ledgergrpc.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := ledgergrpc.Dial(ctx, addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func newNode(t *testing.T, admin types.AccountID, adminKey types.PublicKey, opts ...memledger.Option) *memledger.Node {
	t.Helper()
	node, err := memledger.New(admin, adminKey, opts...)
	if err != nil {
		t.Fatalf("memledger.New: %v", err)
	}
	t.Cleanup(func() { node.Close() })
	return node
}

func TestGRPC_Compliance(t *testing.T) {
	ledgertest.RunNodeCompliance(t, func(t *testing.T, admin types.AccountID, adminKey types.PublicKey) ledger.Node {
		addr, _ := startServer(t, ledgergrpc.NewGRPCServer(newNode(t, admin, adminKey)))
		return dial(t, addr)
	})
}

func TestGRPC_ComplianceAsync(t *testing.T) {
	ledgertest.RunNodeCompliance(t, func(t *testing.T, admin types.AccountID, adminKey types.PublicKey) ledger.Node {
		node := newNode(t, admin, adminKey, memledger.WithStageDelay(time.Millisecond))
		addr, _ := startServer(t, ledgergrpc.NewGRPCServer(node))
		return dial(t, addr)
	})
}

func TestGRPC_TxExampleFlow(t *testing.T) {
	key := ledgertest.AdminKey(t)
	addr, _ := startServer(t, ledgergrpc.NewGRPCServer(newNode(t, ledgertest.AdminAccount, key.PublicKey())))
	client := dial(t, addr)
	h := ledgertest.NewHarness(t, client, ledgertest.AdminAccount, key)

	h.SetupCoin("1000.00")
	user, userKey := h.CreateUser("userone")
	h.MustCommit(types.TransferAsset{
		SrcAccountID: h.Admin(), DestAccountID: user, AssetID: "coin#domain",
		Description: "init top up", Amount: "2.00",
	})
	back := h.MustCommitAs(user, []crypto.KeyPair{userKey}, types.TransferAsset{
		SrcAccountID: user, DestAccountID: h.Admin(), AssetID: "coin#domain",
		Description: "get back", Amount: "1.10",
	})
	h.MustCommitAs(user, []crypto.KeyPair{userKey}, types.GrantPermission{
		AccountID: h.Admin(), Permission: types.CanSetMyAccountDetail,
	})
	h.MustCommit(types.SetAccountDetail{AccountID: user, Key: "age", Value: "18"})

	if got := h.Balance(user, "coin#domain"); got != "0.90" {
		t.Fatalf("user balance %q, want 0.90", got)
	}

	info := h.AdminQuery(types.GetAssetInfo{AssetID: "coin#domain"})
	if info.IsError() || info.Asset.Asset.Precision != 2 {
		t.Fatalf("GetAssetInfo: %+v", info)
	}

	txs := h.AdminQuery(types.GetAccountTransactions{AccountID: user, Pagination: types.Pagination{PageSize: 10}})
	if txs.IsError() {
		t.Fatalf("GetAccountTransactions: %+v", txs.ErrorDetail())
	}
	if n := len(txs.TransactionsPage.Transactions); n != 2 {
		t.Fatalf("user created %d transactions, want 2", n)
	}
	first, err := txs.TransactionsPage.Transactions[0].Transaction()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first.Hash() != back.Hash {
		t.Fatal("hash changed across the wire")
	}
}

func TestGRPC_MalformedRefused(t *testing.T) {
	key := ledgertest.AdminKey(t)
	addr, _ := startServer(t, ledgergrpc.NewGRPCServer(newNode(t, ledgertest.AdminAccount, key.PublicKey())))
	client := dial(t, addr)

	err := client.SubmitTransactions(context.Background(), nil)
	if !errors.Is(err, ledger.ErrMalformedPayload) {
		t.Fatalf("empty batch: expected ErrMalformedPayload, got %v", err)
	}
}

func TestGRPC_ClosedServer(t *testing.T) {
	key := ledgertest.AdminKey(t)
	gs := ledgergrpc.NewGRPCServer(newNode(t, ledgertest.AdminAccount, key.PublicKey()))
	addr, _ := startServer(t, gs)
	client := dial(t, addr)

	gs.Server().Close()
	_, err := client.Status(context.Background(), types.Hash{1})
	te, ok := ledger.IsTransport(err)
	if !ok {
		t.Fatalf("expected transport error, got %v", err)
	}
	if !errors.Is(te, ledger.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", te.Err)
	}
}

func TestGRPC_Unreachable(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := lis.Addr().String()
	lis.Close()

	client := dial(t, addr)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = client.Status(ctx, types.Hash{1})
	if _, ok := ledger.IsTransport(err); !ok {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestGRPC_StreamClose(t *testing.T) {
	key := ledgertest.AdminKey(t)
	addr, _ := startServer(t, ledgergrpc.NewGRPCServer(newNode(t, ledgertest.AdminAccount, key.PublicKey())))
	client := dial(t, addr)

	stream, err := client.StatusStream(context.Background(), types.Hash{9})
	if err != nil {
		t.Fatalf("StatusStream: %v", err)
	}
	ev, err := stream.Recv()
	if err != nil || ev.Status != types.StatusNotReceived {
		t.Fatalf("first event %v, %v", ev, err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := stream.Recv()
		done <- err
	}()
	stream.Close()
	select {
	case err := <-done:
		if !errors.Is(err, io.EOF) {
			t.Fatalf("expected io.EOF after Close, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Recv still blocked after Close")
	}
	if err := stream.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

// firstEventStream signals once the first event has been handed out.
type firstEventStream struct {
	ledger.StatusStream
	first chan struct{}
	once  bool
}

func (s *firstEventStream) Recv() (types.StatusEvent, error) {
	ev, err := s.StatusStream.Recv()
	if err == nil && !s.once {
		s.once = true
		close(s.first)
	}
	return ev, err
}

func TestGRPC_NodeGoneMidStream(t *testing.T) {
	key := ledgertest.AdminKey(t)
	addr, s := startServer(t, ledgergrpc.NewGRPCServer(newNode(t, ledgertest.AdminAccount, key.PublicKey())))
	client := dial(t, addr)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	hash := types.Hash{7}
	raw, err := client.StatusStream(ctx, hash)
	if err != nil {
		t.Fatalf("StatusStream: %v", err)
	}
	stream := &firstEventStream{StatusStream: raw, first: make(chan struct{})}

	done := make(chan error, 1)
	go func() {
		_, err := status.NewTracker().Await(ctx, hash, stream)
		done <- err
	}()

	select {
	case <-stream.first:
	case <-time.After(5 * time.Second):
		t.Fatal("no event before stopping the server")
	}
	s.Stop()

	select {
	case err := <-done:
		sc, ok := ledger.IsStreamClosed(err)
		if !ok {
			t.Fatalf("expected StreamClosedError, got %v", err)
		}
		if sc.Last != types.StatusNotReceived {
			t.Fatalf("last status %s, want NOT_RECEIVED", sc.Last)
		}
		if _, ok := ledger.IsTransport(err); ok {
			t.Fatal("a dropped stream must not be reported as a transport failure")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Await still blocked after the server stopped")
	}
}

func TestGRPC_StreamOpenFailureIsTransport(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := lis.Addr().String()
	lis.Close()

	client := dial(t, addr)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	stream, err := client.StatusStream(ctx, types.Hash{1})
	if err == nil {
		_, err = stream.Recv()
		stream.Close()
	}
	if _, ok := ledger.IsTransport(err); !ok {
		t.Fatalf("expected transport error, got %v", err)
	}
}
