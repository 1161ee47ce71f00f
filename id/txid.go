package id

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// TxID identifies a locked transaction. It is a 32-byte keccak256 digest
// rendered as 0x-prefixed hex.
type TxID = common.Hash

// NilTxID is the zero TxID. No generator ever returns it in practice.
var NilTxID TxID

// TxGenerator allocates transaction identifiers.
//
// Each identifier is keccak256(salt ‖ user ‖ token ‖ amount ‖ counter). The
// counter is strictly increasing within a generator, so two calls with the
// same user, token and amount in the same instant still differ. The salt is
// a random UUID drawn once per generator so that a restarted process does not
// replay identifiers from a previous run.
type TxGenerator struct {
	salt    [16]byte
	counter atomic.Uint64
}

// NewTxGenerator returns a generator with a fresh random salt.
func NewTxGenerator() *TxGenerator {
	return &TxGenerator{salt: uuid.New()}
}

// NewTxGeneratorWithSalt returns a deterministic generator. The first
// identifier uses counter start+1.
func NewTxGeneratorWithSalt(salt uuid.UUID, start uint64) *TxGenerator {
	g := &TxGenerator{salt: salt}
	g.counter.Store(start)
	return g
}

// Next allocates the identifier for an initiation by user on token for amount.
func (g *TxGenerator) Next(user, token common.Address, amount *big.Int) TxID {
	n := g.counter.Add(1)

	var ctr [8]byte
	binary.BigEndian.PutUint64(ctr[:], n)

	var amt []byte
	if amount != nil {
		amt = common.LeftPadBytes(amount.Bytes(), 32)
	} else {
		amt = make([]byte, 32)
	}

	return crypto.Keccak256Hash(g.salt[:], user.Bytes(), token.Bytes(), amt, ctr[:])
}

// Counter returns the number of identifiers allocated so far.
func (g *TxGenerator) Counter() uint64 { return g.counter.Load() }

// ParseTxID parses a 0x-prefixed, 32-byte hex string.
func ParseTxID(s string) (TxID, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return NilTxID, fmt.Errorf("id: parse tx id %q: %w", s, err)
	}
	if len(b) != common.HashLength {
		return NilTxID, fmt.Errorf("id: parse tx id %q: want %d bytes, got %d", s, common.HashLength, len(b))
	}
	return common.BytesToHash(b), nil
}

// MustParseTxID is like ParseTxID but panics on error.
func MustParseTxID(s string) TxID {
	t, err := ParseTxID(s)
	if err != nil {
		panic(err.Error())
	}
	return t
}
