package crypto

import (
	"errors"
	"testing"

	"github.com/blockberries/ledger"
	"github.com/blockberries/ledger/types"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Default admin key of the example network.
const adminKeyHex = "f101537e319568c765b2cc89698325604991dca57b9716b58016b253506cab70"

func mustKeyPair(t *testing.T) KeyPair {
	t.Helper()
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	return kp
}

func sampleTx() types.Transaction {
	return types.Transaction{Payload: types.TxPayload{
		Creator:         "admin@test",
		CreatedAtMillis: 1700000000000,
		Quorum:          1,
		Commands: []types.Command{types.TransferAsset{
			SrcAccountID:  "admin@test",
			DestAccountID: "userone@domain",
			AssetID:       "coin#domain",
			Description:   "init top up",
			Amount:        "2.00",
		}},
	}}
}

func TestDerivePublicKey_Deterministic(t *testing.T) {
	a, err := KeyPairFromHex(adminKeyHex)
	if err != nil {
		t.Fatalf("KeyPairFromHex: %v", err)
	}
	b, err := KeyPairFromHex(adminKeyHex)
	if err != nil {
		t.Fatalf("KeyPairFromHex: %v", err)
	}
	if a.PublicKey() != b.PublicKey() {
		t.Fatal("public key derivation is not deterministic")
	}
	if a.PrivateKeyHex() != adminKeyHex {
		t.Fatalf("private key changed: %s", a.PrivateKeyHex())
	}
}

func TestInvalidKeyMaterial(t *testing.T) {
	for _, bad := range []string{"", "zz", "f101", adminKeyHex + "00"} {
		if _, err := KeyPairFromHex(bad); !errors.Is(err, ledger.ErrInvalidKeyMaterial) {
			t.Errorf("%q: expected ErrInvalidKeyMaterial, got %v", bad, err)
		}
	}
	if _, err := Sign([]byte{1, 2, 3}, []byte("data")); !errors.Is(err, ledger.ErrInvalidKeyMaterial) {
		t.Fatalf("Sign with short key: expected ErrInvalidKeyMaterial, got %v", err)
	}
	tx := sampleTx()
	if err := SignTransaction(&tx, KeyPair{}); !errors.Is(err, ledger.ErrInvalidKeyMaterial) {
		t.Fatalf("SignTransaction with zero key: expected ErrInvalidKeyMaterial, got %v", err)
	}
}

func TestSignVerify_BitFlips(t *testing.T) {
	kp := mustKeyPair(t)
	data := sampleTx().Payload.Bytes()
	sig := kp.Sign(data)

	if !Verify(kp.PublicKey(), data, sig) {
		t.Fatal("valid signature rejected")
	}

	for i := range data {
		mutated := append([]byte(nil), data...)
		mutated[i] ^= 0x01
		if Verify(kp.PublicKey(), mutated, sig) {
			t.Fatalf("signature verified after flipping payload byte %d", i)
		}
	}
	for i := range sig {
		mutated := sig
		mutated[i] ^= 0x80
		if Verify(kp.PublicKey(), data, mutated) {
			t.Fatalf("mutated signature byte %d verified", i)
		}
	}
}

func TestProperty_SignVerifyRoundTrip(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("verify(pub, b, sign(priv, b)) holds", prop.ForAll(
		func(seed []byte, data []byte) bool {
			kp, err := NewKeyPair(seed)
			if err != nil {
				return false
			}
			return Verify(kp.PublicKey(), data, kp.Sign(data))
		},
		gen.SliceOfN(PrivateKeySize, gen.UInt8()),
		gen.SliceOf(gen.UInt8()),
	))

	properties.Property("a single flipped bit breaks verification", prop.ForAll(
		func(seed []byte, data []byte, bit int) bool {
			if len(data) == 0 {
				return true
			}
			kp, err := NewKeyPair(seed)
			if err != nil {
				return false
			}
			sig := kp.Sign(data)
			mutated := append([]byte(nil), data...)
			idx := bit % (len(data) * 8)
			mutated[idx/8] ^= 1 << (idx % 8)
			return !Verify(kp.PublicKey(), mutated, sig)
		},
		gen.SliceOfN(PrivateKeySize, gen.UInt8()),
		gen.SliceOf(gen.UInt8()),
		gen.IntRange(0, 1<<16),
	))

	properties.TestingRun(t)
}

func TestSignTransaction_MultiSignature(t *testing.T) {
	admin := mustKeyPair(t)
	user := mustKeyPair(t)
	tx := sampleTx()

	if err := SignTransaction(&tx, admin); err != nil {
		t.Fatalf("SignTransaction(admin): %v", err)
	}
	if err := SignTransaction(&tx, user); err != nil {
		t.Fatalf("SignTransaction(user): %v", err)
	}
	if len(tx.Signatures) != 2 {
		t.Fatalf("expected 2 signatures, got %d", len(tx.Signatures))
	}
	payload := tx.Payload.Bytes()
	for _, s := range tx.Signatures {
		if !Verify(s.PublicKey, payload, s.Signature) {
			t.Fatalf("signature by %s does not verify", s.PublicKey)
		}
	}

	// Same key again: no duplicate.
	if err := SignTransaction(&tx, admin); err != nil {
		t.Fatalf("SignTransaction(admin again): %v", err)
	}
	if len(tx.Signatures) != 2 {
		t.Fatalf("re-signing duplicated an entry: %d signatures", len(tx.Signatures))
	}
	if err := VerifyTransaction(tx); err != nil {
		t.Fatalf("VerifyTransaction: %v", err)
	}
}

func TestSignTransaction_HashUnaffected(t *testing.T) {
	tx := sampleTx()
	before := tx.Hash()
	if err := SignTransaction(&tx, mustKeyPair(t)); err != nil {
		t.Fatalf("SignTransaction: %v", err)
	}
	if tx.Hash() != before {
		t.Fatal("signatures must not take part in the hash")
	}
}

func TestVerifyTransaction_Failures(t *testing.T) {
	tx := sampleTx()
	if _, ok := ledger.IsSignatureFailure(VerifyTransaction(tx)); !ok {
		t.Fatal("unsigned transaction must fail verification")
	}

	kp := mustKeyPair(t)
	if err := SignTransaction(&tx, kp); err != nil {
		t.Fatalf("SignTransaction: %v", err)
	}
	tampered := tx
	tampered.Payload.Commands = []types.Command{types.TransferAsset{
		SrcAccountID:  "admin@test",
		DestAccountID: "userone@domain",
		AssetID:       "coin#domain",
		Amount:        "2000.00",
	}}
	se, ok := ledger.IsSignatureFailure(VerifyTransaction(tampered))
	if !ok {
		t.Fatal("tampered payload must fail verification")
	}
	if se.PublicKey != kp.PublicKey() {
		t.Fatalf("failure attributed to wrong key %s", se.PublicKey)
	}

	dup := tx
	dup.Signatures = append(append([]types.Signature(nil), tx.Signatures...), tx.Signatures[0])
	if _, ok := ledger.IsSignatureFailure(VerifyTransaction(dup)); !ok {
		t.Fatal("duplicate signatory must fail verification")
	}
}

func TestSignQuery(t *testing.T) {
	kp := mustKeyPair(t)
	q := types.Query{Payload: types.QueryPayload{
		Creator: "admin@test",
		Counter: 1,
		Query:   types.GetAssetInfo{AssetID: "coin#domain"},
	}}
	if err := SignQuery(&q, kp); err != nil {
		t.Fatalf("SignQuery: %v", err)
	}
	if err := VerifyQuery(q); err != nil {
		t.Fatalf("VerifyQuery: %v", err)
	}
}

func TestKeyPairFromMnemonic(t *testing.T) {
	m, err := NewMnemonic()
	if err != nil {
		t.Fatalf("NewMnemonic: %v", err)
	}
	a, err := KeyPairFromMnemonic(m, "")
	if err != nil {
		t.Fatalf("KeyPairFromMnemonic: %v", err)
	}
	b, err := KeyPairFromMnemonic("  "+m+"\n", "")
	if err != nil {
		t.Fatalf("KeyPairFromMnemonic: %v", err)
	}
	if a.PublicKey() != b.PublicKey() {
		t.Fatal("mnemonic derivation is not deterministic")
	}
	c, err := KeyPairFromMnemonic(m, "other passphrase")
	if err != nil {
		t.Fatalf("KeyPairFromMnemonic: %v", err)
	}
	if a.PublicKey() == c.PublicKey() {
		t.Fatal("passphrase must change the derived key")
	}
	if _, err := KeyPairFromMnemonic("not a mnemonic", ""); !errors.Is(err, ledger.ErrInvalidKeyMaterial) {
		t.Fatalf("expected ErrInvalidKeyMaterial, got %v", err)
	}
}

func TestFingerprint(t *testing.T) {
	kp := mustKeyPair(t)
	fp := Fingerprint(kp.PublicKey())
	if len(fp) < 4 || fp[:2] != "ed" {
		t.Fatalf("unexpected fingerprint %q", fp)
	}
	if kp.String() != "KeyPair("+fp+")" {
		t.Fatalf("String leaked something unexpected: %q", kp.String())
	}
}
