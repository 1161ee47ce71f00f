package id_test

import (
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/xraph/fiatbridge/id"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	usdc  = common.HexToAddress("0x0000000000000000000000000000000000005dc0")
)

func TestTxGeneratorIdenticalInputs(t *testing.T) {
	g := id.NewTxGenerator()
	amount := big.NewInt(1_000_000_000)

	a := g.Next(alice, usdc, amount)
	b := g.Next(alice, usdc, amount)
	if a == b {
		t.Fatalf("identical inputs produced the same id %s", a.Hex())
	}
	if g.Counter() != 2 {
		t.Errorf("counter: got %d, want 2", g.Counter())
	}
}

func TestTxGeneratorDeterministicWithSalt(t *testing.T) {
	salt := uuid.MustParse("6f1c2a7e-3d44-4b7a-9a43-0c8d2f5e1b90")
	amount := big.NewInt(42)

	g1 := id.NewTxGeneratorWithSalt(salt, 0)
	g2 := id.NewTxGeneratorWithSalt(salt, 0)
	if g1.Next(alice, usdc, amount) != g2.Next(alice, usdc, amount) {
		t.Error("same salt and counter should give the same id")
	}

	g3 := id.NewTxGeneratorWithSalt(salt, 10)
	if g3.Next(alice, usdc, amount) == id.NewTxGeneratorWithSalt(salt, 0).Next(alice, usdc, amount) {
		t.Error("different counters should give different ids")
	}
}

func TestTxGeneratorSaltsDiffer(t *testing.T) {
	amount := big.NewInt(7)
	a := id.NewTxGenerator().Next(alice, usdc, amount)
	b := id.NewTxGenerator().Next(alice, usdc, amount)
	if a == b {
		t.Error("independent generators collided")
	}
}

func TestTxGeneratorConcurrent(t *testing.T) {
	g := id.NewTxGenerator()
	amount := big.NewInt(1)

	const n = 256
	ids := make(chan id.TxID, n)
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- g.Next(alice, usdc, amount)
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[id.TxID]struct{}, n)
	for v := range ids {
		if _, dup := seen[v]; dup {
			t.Fatalf("duplicate id %s", v.Hex())
		}
		seen[v] = struct{}{}
	}
}

func TestParseTxID(t *testing.T) {
	want := id.NewTxGenerator().Next(alice, usdc, big.NewInt(5))

	got, err := id.ParseTxID(want.Hex())
	if err != nil {
		t.Fatalf("ParseTxID failed: %v", err)
	}
	if got != want {
		t.Errorf("round-trip mismatch: %s != %s", got.Hex(), want.Hex())
	}

	bad := []string{"", "0x", "0x1234", "not-hex", alice.Hex()}
	for _, s := range bad {
		if _, err := id.ParseTxID(s); err == nil {
			t.Errorf("expected error for %q", s)
		}
	}
}
