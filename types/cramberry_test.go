package types_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/blockberries/ledger/types"

	"github.com/blockberries/cramberry/pkg/cramberry"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// roundTrip marshals v, unmarshals into a new T, and returns it.
func roundTrip[T any](t *testing.T, v T) T {
	t.Helper()
	data, err := cramberry.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var out T
	if err := cramberry.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	return out
}

func transferPayload(creator types.AccountID, created uint64, amounts ...types.Amount) types.TxPayload {
	cmds := make([]types.Command, len(amounts))
	for i, a := range amounts {
		cmds[i] = types.TransferAsset{
			SrcAccountID:  "admin@test",
			DestAccountID: "userone@domain",
			AssetID:       "coin#domain",
			Description:   "init top up",
			Amount:        a,
		}
	}
	return types.TxPayload{
		Creator:         creator,
		CreatedAtMillis: created,
		Commands:        cmds,
		Quorum:          1,
	}
}

func TestTxPayload_Deterministic(t *testing.T) {
	a := transferPayload("admin@test", 1700000000000, "2.00")
	b := transferPayload("admin@test", 1700000000000, "2.00")

	if !bytes.Equal(a.Bytes(), a.Bytes()) {
		t.Fatal("repeated encoding of the same payload differs")
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Fatal("independently built identical payloads encode differently")
	}
	if a.Hash() != b.Hash() {
		t.Fatalf("hash mismatch: %s != %s", a.Hash(), b.Hash())
	}
}

func TestTxPayload_FieldsChangeEncoding(t *testing.T) {
	base := transferPayload("admin@test", 1700000000000, "2.00", "1.10")

	creator := base
	creator.Creator = "userone@domain"

	created := base
	created.CreatedAtMillis++

	quorum := base
	quorum.Quorum = 2

	reordered := base
	reordered.Commands = []types.Command{base.Commands[1], base.Commands[0]}

	for name, p := range map[string]types.TxPayload{
		"creator":   creator,
		"timestamp": created,
		"quorum":    quorum,
		"order":     reordered,
	} {
		if bytes.Equal(base.Bytes(), p.Bytes()) {
			t.Errorf("%s: encoding did not change", name)
		}
		if base.Hash() == p.Hash() {
			t.Errorf("%s: hash did not change", name)
		}
	}
}

func TestTxPayload_EmptyStringVsMissingField(t *testing.T) {
	// Shifting bytes between adjacent string fields must not collide.
	a := types.TxPayload{Creator: "admin@test", Commands: []types.Command{
		types.SetAccountDetail{AccountID: "a@b", Key: "ab", Value: "c"},
	}}
	b := types.TxPayload{Creator: "admin@test", Commands: []types.Command{
		types.SetAccountDetail{AccountID: "a@b", Key: "a", Value: "bc"},
	}}
	if bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Fatal("length-prefixed fields collided")
	}
}

func TestProperty_PayloadEncodingDeterministicAndInjective(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("same fields encode identically", prop.ForAll(
		func(created uint64, amount string) bool {
			a := transferPayload("admin@test", created, types.Amount(amount))
			b := transferPayload("admin@test", created, types.Amount(amount))
			return bytes.Equal(a.Bytes(), b.Bytes())
		},
		gen.UInt64(),
		gen.NumString(),
	))

	properties.Property("distinct timestamps encode differently", prop.ForAll(
		func(created uint64, delta uint64) bool {
			if delta == 0 {
				return true
			}
			a := transferPayload("admin@test", created, "2.00")
			b := transferPayload("admin@test", created+delta, "2.00")
			return !bytes.Equal(a.Bytes(), b.Bytes())
		},
		gen.UInt64Range(0, 1<<62),
		gen.UInt64Range(0, 1<<20),
	))

	properties.Property("distinct amounts encode differently", prop.ForAll(
		func(x, y string) bool {
			if x == y {
				return true
			}
			a := transferPayload("admin@test", 1, types.Amount(x))
			b := transferPayload("admin@test", 1, types.Amount(y))
			return !bytes.Equal(a.Bytes(), b.Bytes())
		},
		gen.NumString(),
		gen.NumString(),
	))

	properties.Property("swapping two distinct commands changes the encoding", prop.ForAll(
		func(x, y string) bool {
			if x == y {
				return true
			}
			a := transferPayload("admin@test", 1, types.Amount(x), types.Amount(y))
			b := transferPayload("admin@test", 1, types.Amount(y), types.Amount(x))
			return a.Hash() != b.Hash()
		},
		gen.NumString(),
		gen.NumString(),
	))

	properties.TestingRun(t)
}

func TestTransactionWire_RoundTrip(t *testing.T) {
	old := "17"
	tx := types.Transaction{
		Payload: types.TxPayload{
			Creator:         "admin@test",
			CreatedAtMillis: 1700000000000,
			Quorum:          1,
			Commands: []types.Command{
				types.CreateDomain{DomainID: "domain", DefaultRole: "user"},
				types.CreateAsset{AssetName: "coin", DomainID: "domain", Precision: 2},
				types.CompareAndSetAccountDetail{AccountID: "userone@domain", Key: "age", Value: "18", OldValue: &old},
				types.CreateRole{RoleName: "auditor", Permissions: []types.RolePermission{types.CanGetAllAccAst}},
			},
		},
		Signatures: []types.Signature{{PublicKey: types.PublicKey{1}, Signature: types.SignatureBytes{2}}},
	}

	got := roundTrip(t, tx.Wire())
	back, err := got.Transaction()
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}
	if back.Hash() != tx.Hash() {
		t.Fatalf("hash changed across the wire: %s != %s", back.Hash(), tx.Hash())
	}
	if len(back.Payload.Commands) != 4 {
		t.Fatalf("expected 4 commands, got %d", len(back.Payload.Commands))
	}
	cas, ok := back.Payload.Commands[2].(types.CompareAndSetAccountDetail)
	if !ok || cas.OldValue == nil || *cas.OldValue != "17" {
		t.Fatalf("CompareAndSetAccountDetail mangled: %+v", back.Payload.Commands[2])
	}
	if len(back.Signatures) != 1 || back.Signatures[0].PublicKey != (types.PublicKey{1}) {
		t.Fatalf("signatures mangled: %+v", back.Signatures)
	}
}

func TestSignedQueryWire_FieldlessVariant(t *testing.T) {
	kinds := []types.QueryKind{
		types.GetRoles{},
		types.GetAccount{},
		types.GetSignatories{},
		types.GetAssetInfo{},
		types.GetAccountAssets{},
		types.GetAccountAssetTransactions{},
		types.GetAccountTransactions{},
		types.GetTransactions{},
		types.GetAccountDetail{},
		types.GetRolePermissions{},
	}
	for _, kind := range kinds {
		q := types.Query{Payload: types.QueryPayload{
			Creator:         "admin@test",
			CreatedAtMillis: 1,
			Counter:         7,
			Query:           kind,
		}}
		back, err := roundTrip(t, q.Wire()).Query()
		if err != nil {
			t.Fatalf("%T: Query: %v", kind, err)
		}
		if fmt.Sprintf("%T", back.Payload.Query) != fmt.Sprintf("%T", kind) {
			t.Fatalf("expected %T, got %T", kind, back.Payload.Query)
		}
		if back.Hash() != q.Hash() {
			t.Fatalf("%T: query hash changed across the wire", kind)
		}
	}
}

func TestTransactionWire_ZeroValuedCommands(t *testing.T) {
	cmds := []types.Command{
		types.CreateDomain{},
		types.CreateAsset{},
		types.AddAssetQuantity{},
		types.SubtractAssetQuantity{},
		types.CreateAccount{},
		types.TransferAsset{},
		types.GrantPermission{},
		types.RevokePermission{},
		types.SetAccountDetail{},
		types.CompareAndSetAccountDetail{},
		types.AddSignatory{},
		types.RemoveSignatory{},
		types.SetAccountQuorum{},
		types.CreateRole{},
		types.AppendRole{},
		types.DetachRole{},
	}
	tx := types.Transaction{Payload: types.TxPayload{
		Creator:         "admin@test",
		CreatedAtMillis: 1,
		Quorum:          1,
		Commands:        cmds,
	}}
	back, err := roundTrip(t, tx.Wire()).Transaction()
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}
	if len(back.Payload.Commands) != len(cmds) {
		t.Fatalf("expected %d commands, got %d", len(cmds), len(back.Payload.Commands))
	}
	for i, c := range back.Payload.Commands {
		if fmt.Sprintf("%T", c) != fmt.Sprintf("%T", cmds[i]) {
			t.Fatalf("command %d: expected %T, got %T", i, cmds[i], c)
		}
	}
	if back.Hash() != tx.Hash() {
		t.Fatal("hash changed across the wire")
	}
}

func TestQueryResponse_NormalizeEmptyBody(t *testing.T) {
	resp := roundTrip(t, types.QueryResponse{Kind: types.ResponseRoles, Roles: &types.RolesResponse{}})
	resp.Normalize()
	if resp.Roles == nil {
		t.Fatal("empty roles body not restored")
	}
	if len(resp.Roles.Roles) != 0 {
		t.Fatalf("unexpected roles %v", resp.Roles.Roles)
	}

	full := types.QueryResponse{Kind: types.ResponseRoles, Roles: &types.RolesResponse{Roles: []types.RoleID{"admin"}}}
	full.Normalize()
	if len(full.Roles.Roles) != 1 {
		t.Fatal("Normalize replaced a present body")
	}
}

func TestQueryPayload_CounterChangesHash(t *testing.T) {
	a := types.QueryPayload{Creator: "admin@test", Counter: 1, Query: types.GetAssetInfo{AssetID: "coin#domain"}}
	b := a
	b.Counter = 2
	if a.Hash() == b.Hash() {
		t.Fatal("counter must be part of the query hash")
	}
}

func TestCommandWire_UnknownKind(t *testing.T) {
	if _, err := (types.CommandWire{Kind: 200}).Command(); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	c, err := (types.CommandWire{Kind: types.KindTransferAsset}).Command()
	if err != nil {
		t.Fatalf("missing body: %v", err)
	}
	if c != (types.TransferAsset{}) {
		t.Fatalf("missing body decoded as %+v", c)
	}
}

func TestWrapCommand_NilPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for nil command")
		}
	}()
	types.WrapCommand(nil)
}

func TestQueryResponse_RoundTrip(t *testing.T) {
	resp := types.QueryResponse{
		Kind: types.ResponseAccountAssets,
		AccountAssets: &types.AccountAssetsResponse{
			Assets: []types.AccountAsset{{AssetID: "coin#domain", AccountID: "userone@domain", Balance: "2.00"}},
		},
	}
	got := roundTrip(t, resp)
	if got.AccountAssets == nil || len(got.AccountAssets.Assets) != 1 {
		t.Fatalf("account assets lost: %+v", got)
	}
	if got.AccountAssets.Assets[0].Balance != "2.00" {
		t.Fatalf("balance: got %q", got.AccountAssets.Assets[0].Balance)
	}
}

func TestStatusEvent_RoundTrip(t *testing.T) {
	v := types.StatusEvent{
		Hash:               types.Hash{0xAB},
		Status:             types.StatusStatefulValidationFailed,
		Reason:             "not enough balance",
		ErrorCode:          6,
		FailedCommandIndex: 0,
	}
	if got := roundTrip(t, v); got != v {
		t.Fatalf("StatusEvent round-trip failed: got %+v, want %+v", got, v)
	}
}
