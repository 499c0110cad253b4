// Package types defines the data model of the ledger client protocol:
// commands, queries, payloads, signed envelopes, status events and
// query responses.
//
// Every type that crosses the wire or feeds a signature carries
// cramberry struct tags for deterministic binary serialization.
// Command and query catalogs are sealed interfaces; their wire form is
// a tagged union (see wire.go) so the canonical encoding can be
// produced without reflection over interface values.
package types

import "encoding/hex"

// Hash is a 32-byte SHA3-256 digest. Transaction hashes identify a
// submission and key its status stream.
type Hash [32]byte

// String returns the lowercase hex form of the hash.
func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool { return h == Hash{} }

// ParseHash decodes a hex-encoded 32-byte hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	raw, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	if len(raw) != len(h) {
		return h, hex.ErrLength
	}
	copy(h[:], raw)
	return h, nil
}

// PublicKey is a 32-byte ed25519 public key.
type PublicKey [32]byte

// String returns the lowercase hex form of the key.
func (k PublicKey) String() string { return hex.EncodeToString(k[:]) }

// SignatureBytes is a 64-byte ed25519 signature.
type SignatureBytes [64]byte

// Signature pairs a signatory's public key with its signature over the
// canonical payload encoding.
type Signature struct {
	PublicKey PublicKey      `cramberry:"1"`
	Signature SignatureBytes `cramberry:"2"`
}

// Amount is a decimal quantity carried as a string with the precision
// of its asset (e.g. "2.00"). It is opaque to the client and must never
// be converted to a binary floating point value.
type Amount string
