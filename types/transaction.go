package types

import (
	"fmt"

	"github.com/blockberries/cramberry/pkg/cramberry"
	"golang.org/x/crypto/sha3"
)

// TxPayload is the signed part of a transaction. Command order is
// significant and is preserved exactly by the encoding.
type TxPayload struct {
	Creator         AccountID
	CreatedAtMillis uint64
	Commands        []Command
	// Quorum is the number of signatures the transaction needs before
	// the ledger will process it.
	Quorum uint32
}

// TxPayloadWire is the canonical wire form of a TxPayload.
type TxPayloadWire struct {
	Commands        []CommandWire `cramberry:"1"`
	Creator         AccountID     `cramberry:"2"`
	CreatedAtMillis uint64        `cramberry:"3"`
	Quorum          uint32        `cramberry:"4"`
}

// Wire converts the payload into its canonical wire form.
func (p TxPayload) Wire() TxPayloadWire {
	cmds := make([]CommandWire, len(p.Commands))
	for i, c := range p.Commands {
		cmds[i] = WrapCommand(c)
	}
	return TxPayloadWire{
		Commands:        cmds,
		Creator:         p.Creator,
		CreatedAtMillis: p.CreatedAtMillis,
		Quorum:          p.Quorum,
	}
}

// Payload converts the wire form back into a TxPayload.
func (w TxPayloadWire) Payload() (TxPayload, error) {
	cmds := make([]Command, len(w.Commands))
	for i, cw := range w.Commands {
		c, err := cw.Command()
		if err != nil {
			return TxPayload{}, fmt.Errorf("command %d: %w", i, err)
		}
		cmds[i] = c
	}
	return TxPayload{
		Creator:         w.Creator,
		CreatedAtMillis: w.CreatedAtMillis,
		Commands:        cmds,
		Quorum:          w.Quorum,
	}, nil
}

// Bytes returns the canonical encoding of the payload: the exact bytes
// that are hashed and signed.
func (p TxPayload) Bytes() []byte {
	return mustMarshal(p.Wire())
}

// Hash returns the SHA3-256 digest of the canonical payload encoding.
func (p TxPayload) Hash() Hash {
	return Sum(p.Bytes())
}

// Transaction is a signed envelope around a TxPayload. Signatures are
// deduplicated by public key and never take part in the hash.
type Transaction struct {
	Payload    TxPayload
	Signatures []Signature
}

// TransactionWire is the wire form of a Transaction.
type TransactionWire struct {
	Payload    TxPayloadWire `cramberry:"1"`
	Signatures []Signature   `cramberry:"2"`
}

// Hash returns the transaction hash, computed over the payload only.
func (t Transaction) Hash() Hash { return t.Payload.Hash() }

// Wire converts the transaction into its wire form.
func (t Transaction) Wire() TransactionWire {
	return TransactionWire{
		Payload:    t.Payload.Wire(),
		Signatures: append([]Signature(nil), t.Signatures...),
	}
}

// Transaction converts the wire form back into a Transaction.
func (w TransactionWire) Transaction() (Transaction, error) {
	p, err := w.Payload.Payload()
	if err != nil {
		return Transaction{}, err
	}
	return Transaction{
		Payload:    p,
		Signatures: append([]Signature(nil), w.Signatures...),
	}, nil
}

// HasSignatory reports whether pub already signed the transaction.
func (t Transaction) HasSignatory(pub PublicKey) bool {
	return hasSignatory(t.Signatures, pub)
}

// QueryPayload is the signed part of a query.
type QueryPayload struct {
	Creator         AccountID
	CreatedAtMillis uint64
	// Counter is a per-creator nonce that keeps repeated queries distinct.
	Counter uint64
	Query   QueryKind
}

// QueryPayloadWire is the canonical wire form of a QueryPayload.
type QueryPayloadWire struct {
	Creator         AccountID `cramberry:"1"`
	CreatedAtMillis uint64    `cramberry:"2"`
	Counter         uint64    `cramberry:"3"`
	Query           QueryWire `cramberry:"4"`
}

// Wire converts the payload into its canonical wire form.
func (p QueryPayload) Wire() QueryPayloadWire {
	return QueryPayloadWire{
		Creator:         p.Creator,
		CreatedAtMillis: p.CreatedAtMillis,
		Counter:         p.Counter,
		Query:           WrapQuery(p.Query),
	}
}

// Payload converts the wire form back into a QueryPayload.
func (w QueryPayloadWire) Payload() (QueryPayload, error) {
	q, err := w.Query.Query()
	if err != nil {
		return QueryPayload{}, err
	}
	return QueryPayload{
		Creator:         w.Creator,
		CreatedAtMillis: w.CreatedAtMillis,
		Counter:         w.Counter,
		Query:           q,
	}, nil
}

// Bytes returns the canonical encoding of the query payload.
func (p QueryPayload) Bytes() []byte {
	return mustMarshal(p.Wire())
}

// Hash returns the SHA3-256 digest of the canonical payload encoding.
func (p QueryPayload) Hash() Hash {
	return Sum(p.Bytes())
}

// Query is a signed envelope around a QueryPayload.
type Query struct {
	Payload    QueryPayload
	Signatures []Signature
}

// SignedQueryWire is the wire form of a Query.
type SignedQueryWire struct {
	Payload    QueryPayloadWire `cramberry:"1"`
	Signatures []Signature      `cramberry:"2"`
}

// Hash returns the query hash, computed over the payload only.
func (q Query) Hash() Hash { return q.Payload.Hash() }

// Wire converts the query into its wire form.
func (q Query) Wire() SignedQueryWire {
	return SignedQueryWire{
		Payload:    q.Payload.Wire(),
		Signatures: append([]Signature(nil), q.Signatures...),
	}
}

// Query converts the wire form back into a Query.
func (w SignedQueryWire) Query() (Query, error) {
	p, err := w.Payload.Payload()
	if err != nil {
		return Query{}, err
	}
	return Query{
		Payload:    p,
		Signatures: append([]Signature(nil), w.Signatures...),
	}, nil
}

// HasSignatory reports whether pub already signed the query.
func (q Query) HasSignatory(pub PublicKey) bool {
	return hasSignatory(q.Signatures, pub)
}

// Sum returns the SHA3-256 digest of data.
func Sum(data []byte) Hash {
	return Hash(sha3.Sum256(data))
}

func hasSignatory(sigs []Signature, pub PublicKey) bool {
	for _, s := range sigs {
		if s.PublicKey == pub {
			return true
		}
	}
	return false
}

// mustMarshal encodes a wire payload. Wire payloads are built only from
// tagged scalar, string, slice and struct fields, so a marshal failure is
// a bug in this package rather than a condition callers can handle.
func mustMarshal(v any) []byte {
	data, err := cramberry.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("types: canonical encoding failed: %v", err))
	}
	return data
}
