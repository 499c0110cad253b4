package crypto

import (
	"crypto/ed25519"
	"fmt"

	"github.com/blockberries/ledger"
	"github.com/blockberries/ledger/types"
)

// Digest returns the SHA3-256 digest of data.
func Digest(data []byte) types.Hash {
	return types.Sum(data)
}

// Sign signs data with a 32-byte private key seed. ed25519 signatures
// are deterministic: the same key and data always yield the same bytes.
func Sign(seed []byte, data []byte) (types.SignatureBytes, error) {
	kp, err := NewKeyPair(seed)
	if err != nil {
		return types.SignatureBytes{}, err
	}
	return kp.Sign(data), nil
}

// Sign signs data with the key pair's private key.
func (k KeyPair) Sign(data []byte) types.SignatureBytes {
	var sig types.SignatureBytes
	copy(sig[:], ed25519.Sign(k.private, data))
	return sig
}

// Verify reports whether sig is pub's signature over data.
func Verify(pub types.PublicKey, data []byte, sig types.SignatureBytes) bool {
	return ed25519.Verify(ed25519.PublicKey(pub[:]), data, sig[:])
}

// SignTransaction appends the key pair's signature over the canonical
// payload encoding. Signing again with a key that already signed is a
// no-op, so the signature set stays deduplicated by public key.
func SignTransaction(tx *types.Transaction, kp KeyPair) error {
	if kp.IsZero() {
		return fmt.Errorf("%w: empty key pair", ledger.ErrInvalidKeyMaterial)
	}
	if tx.HasSignatory(kp.public) {
		return nil
	}
	tx.Signatures = append(tx.Signatures, types.Signature{
		PublicKey: kp.public,
		Signature: kp.Sign(tx.Payload.Bytes()),
	})
	return nil
}

// SignQuery appends the key pair's signature to a query envelope.
func SignQuery(q *types.Query, kp KeyPair) error {
	if kp.IsZero() {
		return fmt.Errorf("%w: empty key pair", ledger.ErrInvalidKeyMaterial)
	}
	if q.HasSignatory(kp.public) {
		return nil
	}
	q.Signatures = append(q.Signatures, types.Signature{
		PublicKey: kp.public,
		Signature: kp.Sign(q.Payload.Bytes()),
	})
	return nil
}

// VerifyTransaction checks that the transaction carries at least one
// signature, that no key signed twice, and that every signature verifies
// against the canonical payload encoding.
func VerifyTransaction(tx types.Transaction) error {
	return verifyAll(tx.Hash(), tx.Payload.Bytes(), tx.Signatures)
}

// VerifyQuery applies the same checks as VerifyTransaction to a query.
func VerifyQuery(q types.Query) error {
	return verifyAll(q.Hash(), q.Payload.Bytes(), q.Signatures)
}

func verifyAll(hash types.Hash, payload []byte, sigs []types.Signature) error {
	if len(sigs) == 0 {
		return &ledger.SignatureError{Hash: hash, Reason: "no signatures"}
	}
	seen := make(map[types.PublicKey]struct{}, len(sigs))
	for _, s := range sigs {
		if _, dup := seen[s.PublicKey]; dup {
			return &ledger.SignatureError{Hash: hash, PublicKey: s.PublicKey, Reason: "duplicate signatory"}
		}
		seen[s.PublicKey] = struct{}{}
		if !Verify(s.PublicKey, payload, s.Signature) {
			return &ledger.SignatureError{Hash: hash, PublicKey: s.PublicKey, Reason: "bad signature"}
		}
	}
	return nil
}
