// Package crypto signs and verifies ledger payloads.
//
// Keys are ed25519. Digests are SHA3-256 over the canonical payload
// encoding produced by package types, so any verifier that rebuilds the
// payload reproduces the same bytes.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/blockberries/ledger"
	"github.com/blockberries/ledger/types"

	"github.com/mr-tron/base58/base58"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/hkdf"
)

// PrivateKeySize is the length of a private key seed.
const PrivateKeySize = ed25519.SeedSize

const hkdfInfoSigning = "ledgerclient/account/signing/v1"

// KeyPair is an account's signing identity. The public half is always
// derived from the private half.
type KeyPair struct {
	private ed25519.PrivateKey
	public  types.PublicKey
}

// NewKeyPair derives a key pair from a 32-byte private key seed.
func NewKeyPair(seed []byte) (KeyPair, error) {
	if len(seed) != PrivateKeySize {
		return KeyPair{}, fmt.Errorf("%w: private key is %d bytes, want %d",
			ledger.ErrInvalidKeyMaterial, len(seed), PrivateKeySize)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	var pub types.PublicKey
	copy(pub[:], priv.Public().(ed25519.PublicKey))
	return KeyPair{private: priv, public: pub}, nil
}

// KeyPairFromHex derives a key pair from a hex-encoded private key seed.
func KeyPairFromHex(s string) (KeyPair, error) {
	seed, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return KeyPair{}, fmt.Errorf("%w: %v", ledger.ErrInvalidKeyMaterial, err)
	}
	return NewKeyPair(seed)
}

// GenerateKeyPair creates a fresh random key pair.
func GenerateKeyPair() (KeyPair, error) {
	return generateFrom(rand.Reader)
}

func generateFrom(r io.Reader) (KeyPair, error) {
	seed := make([]byte, PrivateKeySize)
	if _, err := io.ReadFull(r, seed); err != nil {
		return KeyPair{}, fmt.Errorf("generate key: %w", err)
	}
	return NewKeyPair(seed)
}

// NewMnemonic returns a fresh 24-word recovery phrase.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", fmt.Errorf("generate entropy: %w", err)
	}
	return bip39.NewMnemonic(entropy)
}

// KeyPairFromMnemonic derives a key pair from a bip39 recovery phrase.
// The signing seed is expanded from the bip39 seed with HKDF-SHA256.
func KeyPairFromMnemonic(mnemonic, passphrase string) (KeyPair, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	if !bip39.IsMnemonicValid(mnemonic) {
		return KeyPair{}, fmt.Errorf("%w: invalid mnemonic", ledger.ErrInvalidKeyMaterial)
	}
	seed := bip39.NewSeed(mnemonic, passphrase)
	reader := hkdf.New(sha256.New, seed, nil, []byte(hkdfInfoSigning))
	return generateFrom(reader)
}

// DerivePublicKey returns the public key of a 32-byte private key seed.
func DerivePublicKey(seed []byte) (types.PublicKey, error) {
	kp, err := NewKeyPair(seed)
	if err != nil {
		return types.PublicKey{}, err
	}
	return kp.public, nil
}

// PublicKey returns the public half.
func (k KeyPair) PublicKey() types.PublicKey { return k.public }

// PrivateKeyHex returns the hex-encoded private key seed.
func (k KeyPair) PrivateKeyHex() string {
	if k.private == nil {
		return ""
	}
	return hex.EncodeToString(k.private.Seed())
}

// IsZero reports whether the key pair was never initialized.
func (k KeyPair) IsZero() bool { return k.private == nil }

// String never prints private material.
func (k KeyPair) String() string { return "KeyPair(" + Fingerprint(k.public) + ")" }

// Fingerprint returns a short base58 id of a public key, suitable for logs.
func Fingerprint(pub types.PublicKey) string {
	h := types.Sum(pub[:])
	return "ed" + base58.Encode(h[:8])
}
