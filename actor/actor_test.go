package actor

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/ledger"
	"github.com/blockberries/ledger/crypto"
	"github.com/blockberries/ledger/example/memledger"
	"github.com/blockberries/ledger/local"
	"github.com/blockberries/ledger/metrics"
	"github.com/blockberries/ledger/status"
	ledgertest "github.com/blockberries/ledger/testing"
	"github.com/blockberries/ledger/types"
)

func newMockActor(t *testing.T, mock *ledgertest.MockNode, opts ...Option) *Actor {
	t.Helper()
	a, err := New(ledgertest.AdminAccount, ledgertest.AdminKey(t), mock, opts...)
	require.NoError(t, err)
	return a
}

// network is an admin and a user actor on a fresh reference node.
type network struct {
	admin *Actor
	user  *Actor
}

func newNetwork(t *testing.T) network {
	t.Helper()
	ctx := context.Background()
	adminKey := ledgertest.AdminKey(t)
	node, err := memledger.New(ledgertest.AdminAccount, adminKey.PublicKey())
	require.NoError(t, err)
	conn := local.NewConnection(node)
	t.Cleanup(func() {
		conn.Close()
		node.Close()
	})

	admin, err := New(ledgertest.AdminAccount, adminKey, conn, WithAwaitTimeout(10*time.Second))
	require.NoError(t, err)

	_, err = admin.Execute(ctx,
		types.CreateDomain{DomainID: "domain", DefaultRole: memledger.UserRole},
		types.CreateAsset{AssetName: "coin", DomainID: "domain", Precision: 2},
	)
	require.NoError(t, err)
	_, err = admin.Execute(ctx, types.AddAssetQuantity{AssetID: "coin#domain", Amount: "1000.00"})
	require.NoError(t, err)

	userKey := ledgertest.NewKey(t)
	_, err = admin.Execute(ctx, types.CreateAccount{AccountName: "userone", DomainID: "domain", PublicKey: userKey.PublicKey()})
	require.NoError(t, err)
	user, err := New("userone@domain", userKey, conn, WithAwaitTimeout(10*time.Second))
	require.NoError(t, err)
	return network{admin: admin, user: user}
}

func balance(t *testing.T, a *Actor, acct types.AccountID) types.Amount {
	t.Helper()
	resp, err := a.Query(context.Background(), types.GetAccountAssets{AccountID: acct})
	require.NoError(t, err)
	for _, line := range resp.AccountAssets.Assets {
		if line.AssetID == "coin#domain" {
			return line.Balance
		}
	}
	return ""
}

func TestNew_Validation(t *testing.T) {
	mock := &ledgertest.MockNode{}
	_, err := New("nodomain", ledgertest.AdminKey(t), mock)
	require.ErrorIs(t, err, ledger.ErrMalformedPayload)

	_, err = New(ledgertest.AdminAccount, crypto.KeyPair{}, mock)
	require.ErrorIs(t, err, ledger.ErrInvalidKeyMaterial)

	_, err = New(ledgertest.AdminAccount, ledgertest.AdminKey(t), nil)
	require.Error(t, err)
}

func TestExecute_Mock(t *testing.T) {
	mock := &ledgertest.MockNode{}
	reg := prometheus.NewRegistry()
	a := newMockActor(t, mock, WithMetrics(metrics.New(reg)))

	out, err := a.Execute(context.Background(), types.CreateDomain{DomainID: "domain", DefaultRole: "user"})
	require.NoError(t, err)
	require.True(t, out.Committed())
	require.Len(t, out.Events, len(ledgertest.CommitScript))

	sent := mock.Submitted()
	require.Len(t, sent, 1)
	require.Equal(t, out.Hash, sent[0].Hash())
	require.NoError(t, crypto.VerifyTransaction(sent[0]))
	require.Equal(t, int64(1), mock.StatusStreamCalls.Load())
}

func TestExecute_SubmitTransportFailure(t *testing.T) {
	boom := ledger.NewTransportError("Torii", errors.New("connection refused"))
	mock := &ledgertest.MockNode{
		SubmitTransactionFn: func(context.Context, types.Transaction) error { return boom },
	}
	a := newMockActor(t, mock)

	_, err := a.Execute(context.Background(), types.CreateDomain{DomainID: "domain", DefaultRole: "user"})
	_, ok := ledger.IsTransport(err)
	require.True(t, ok, "expected transport error, got %v", err)
	require.Equal(t, int64(1), mock.SubmitCalls.Load(), "the client must not retry")
	require.Zero(t, mock.StatusStreamCalls.Load())
	require.Zero(t, a.tracker.Len(), "failed submission left tracking state behind")
}

func TestAwait_StreamEndsEarly(t *testing.T) {
	mock := &ledgertest.MockNode{
		StatusStreamFn: func(_ context.Context, h types.Hash) (ledger.StatusStream, error) {
			return ledgertest.NewScriptedStream(h, types.StatusEnqueued), nil
		},
	}
	a := newMockActor(t, mock)

	_, err := a.Execute(context.Background(), types.CreateDomain{DomainID: "domain", DefaultRole: "user"})
	sc, ok := ledger.IsStreamClosed(err)
	require.True(t, ok, "expected stream closed error, got %v", err)
	require.Equal(t, types.StatusEnqueued, sc.Last)
	_, isRejection := ledger.IsRejection(err)
	require.False(t, isRejection)
}

func TestAwait_Timeout(t *testing.T) {
	mock := &ledgertest.MockNode{
		StatusStreamFn: func(ctx context.Context, h types.Hash) (ledger.StatusStream, error) {
			return &stalledStream{ctx: ctx}, nil
		},
	}
	a := newMockActor(t, mock, WithAwaitTimeout(50*time.Millisecond))

	_, err := a.Execute(context.Background(), types.CreateDomain{DomainID: "domain", DefaultRole: "user"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

// stalledStream never produces an event.
type stalledStream struct{ ctx context.Context }

func (s *stalledStream) Recv() (types.StatusEvent, error) {
	<-s.ctx.Done()
	return types.StatusEvent{}, ledger.NewTransportError("StatusStream", s.ctx.Err())
}

func (s *stalledStream) Close() error { return nil }

func TestQuery_ErrorResponseIsRejection(t *testing.T) {
	a := newMockActor(t, &ledgertest.MockNode{})

	resp, err := a.Query(context.Background(), types.GetRoles{})
	rej, ok := ledger.IsRejection(err)
	require.True(t, ok, "expected rejection, got %v", err)
	require.Equal(t, types.ErrorNotSupported, rej.QueryReason)
	require.True(t, resp.IsError())

	_, err = a.Query(context.Background(), nil)
	require.ErrorIs(t, err, ledger.ErrMalformedPayload)
}

func TestTraceRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	key := ledgertest.AdminKey(t)
	a, err := New(ledgertest.AdminAccount, key, &ledgertest.MockNode{}, WithLogger(logger))
	require.NoError(t, err)

	_, err = a.Submit(context.Background(), types.CreateDomain{DomainID: "domain", DefaultRole: "user"})
	require.NoError(t, err)

	out := buf.String()
	require.Contains(t, out, `"msg":"entering"`)
	require.Contains(t, out, `"msg":"leaving"`)
	require.Contains(t, out, `"op_id"`)
	require.Contains(t, out, crypto.Fingerprint(key.PublicKey()))
	require.False(t, strings.Contains(out, key.PrivateKeyHex()), "private key leaked into the log")
}

func TestRateLimit(t *testing.T) {
	a := newMockActor(t, &ledgertest.MockNode{}, WithRateLimit(1, 1))
	ctx := context.Background()

	_, err := a.Submit(ctx, types.CreateDomain{DomainID: "one", DefaultRole: "user"})
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = a.Submit(short, types.CreateDomain{DomainID: "two", DefaultRole: "user"})
	require.Error(t, err, "second submission inside the same second was not throttled")
}

func TestScenario_SimpleTransfer(t *testing.T) {
	n := newNetwork(t)
	out, err := n.admin.Execute(context.Background(), types.TransferAsset{
		SrcAccountID: n.admin.ID(), DestAccountID: n.user.ID(), AssetID: "coin#domain",
		Description: "init top up", Amount: "2.00",
	})
	require.NoError(t, err)
	require.Equal(t, status.StateCommitted, out.State)
	require.Equal(t, types.Amount("2.00"), balance(t, n.admin, n.user.ID()))
}

func TestScenario_RejectedTransfer(t *testing.T) {
	n := newNetwork(t)
	before := balance(t, n.admin, n.admin.ID())

	out, err := n.admin.Execute(context.Background(), types.TransferAsset{
		SrcAccountID: n.admin.ID(), DestAccountID: n.user.ID(), AssetID: "coin#domain",
		Amount: "5000.00",
	})
	rej, ok := ledger.IsRejection(err)
	require.True(t, ok, "expected rejection, got %v", err)
	require.Equal(t, types.StatusStatefulValidationFailed, rej.Status)
	require.Equal(t, "not enough balance", rej.Reason)
	require.Equal(t, memledger.CodeInsufficientBalance, rej.ErrorCode)
	require.Equal(t, status.StateFailed, out.State)
	require.Equal(t, before, balance(t, n.admin, n.admin.ID()))
}

func TestScenario_GrantThenSetDetail(t *testing.T) {
	n := newNetwork(t)
	ctx := context.Background()
	setAge := types.SetAccountDetail{AccountID: n.user.ID(), Key: "age", Value: "18"}

	_, err := n.admin.Execute(ctx, setAge)
	_, ok := ledger.IsRejection(err)
	require.True(t, ok, "detail write without grant: %v", err)

	_, err = n.user.Execute(ctx, types.GrantPermission{AccountID: n.admin.ID(), Permission: types.CanSetMyAccountDetail})
	require.NoError(t, err)
	_, err = n.admin.Execute(ctx, setAge)
	require.NoError(t, err)

	resp, err := n.admin.Query(ctx, types.GetAccountDetail{AccountID: n.user.ID(), Writer: n.admin.ID(), Key: "age"})
	require.NoError(t, err)
	entries, err := resp.AccountDetail.Entries()
	require.NoError(t, err)
	require.Equal(t, "18", entries[n.admin.ID()]["age"])
}

func TestScenario_CoSign(t *testing.T) {
	n := newNetwork(t)
	ctx := context.Background()

	second, err := New(n.user.ID(), ledgertest.NewKey(t), n.user.Conn())
	require.NoError(t, err)
	_, err = n.user.Execute(ctx,
		types.AddSignatory{AccountID: n.user.ID(), PublicKey: second.PublicKey()},
		types.SetAccountQuorum{AccountID: n.user.ID(), Quorum: 2},
	)
	require.NoError(t, err)

	tx, err := n.user.Prepare(types.SetAccountDetail{AccountID: n.user.ID(), Key: "k", Value: "v"})
	require.NoError(t, err)
	hash, err := n.user.SubmitTx(ctx, tx)
	require.NoError(t, err)
	ev, err := n.user.Status(ctx, hash)
	require.NoError(t, err)
	require.Equal(t, types.StatusMSTPending, ev.Status)

	_, err = second.CoSign(ctx, tx)
	require.NoError(t, err)
	require.Len(t, tx.Signatures, 1, "CoSign mutated the caller's transaction")

	out, err := n.user.Await(ctx, hash)
	require.NoError(t, err)
	require.True(t, out.Committed())
}

func TestSubmitBatch(t *testing.T) {
	n := newNetwork(t)
	ctx := context.Background()

	var txs []types.Transaction
	for _, amount := range []types.Amount{"1.00", "2.00"} {
		tx, err := n.admin.Prepare(types.TransferAsset{
			SrcAccountID: n.admin.ID(), DestAccountID: n.user.ID(), AssetID: "coin#domain", Amount: amount,
		})
		require.NoError(t, err)
		txs = append(txs, tx)
	}
	hashes, err := n.admin.SubmitBatch(ctx, txs)
	require.NoError(t, err)
	require.Len(t, hashes, 2)
	for _, h := range hashes {
		_, err := n.admin.Await(ctx, h)
		require.NoError(t, err)
	}
	require.Equal(t, types.Amount("3.00"), balance(t, n.admin, n.user.ID()))

	_, err = n.admin.SubmitBatch(ctx, nil)
	require.ErrorIs(t, err, ledger.ErrMalformedPayload)
}
