// Package types provides value types shared across FiatBridge.
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
)

// BpsDenominator is the number of basis points in 100%.
const BpsDenominator = 10_000

var (
	zero     = new(big.Int)
	bpsDenom = big.NewInt(BpsDenominator)
)

// Amount is an arbitrary-precision token quantity in the token's smallest
// unit. The zero value is 0. Amounts are immutable: every arithmetic method
// returns a new value and never modifies its receiver or argument.
type Amount struct {
	v *big.Int
}

// NewAmount creates an Amount from an int64.
func NewAmount(n int64) Amount { return Amount{v: big.NewInt(n)} }

// AmountFromBig creates an Amount from a copy of b. A nil b is zero.
func AmountFromBig(b *big.Int) Amount {
	if b == nil {
		return Amount{}
	}
	return Amount{v: new(big.Int).Set(b)}
}

// Units returns whole * 10^decimals, the on-chain representation of a whole
// token quantity ("1000 USDC" with 6 decimals is Units(1000, 6)).
func Units(whole int64, decimals uint8) Amount {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return Amount{v: scale.Mul(scale, big.NewInt(whole))}
}

// ParseAmount parses a base-10 integer string.
func ParseAmount(s string) (Amount, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("types: invalid amount %q", s)
	}
	return Amount{v: v}, nil
}

// MustParseAmount is like ParseAmount but panics on error.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err.Error())
	}
	return a
}

// Sum adds all amounts.
func Sum(amounts ...Amount) Amount {
	total := new(big.Int)
	for _, a := range amounts {
		total.Add(total, a.big())
	}
	return Amount{v: total}
}

func (a Amount) big() *big.Int {
	if a.v == nil {
		return zero
	}
	return a.v
}

// Big returns a copy of the underlying integer.
func (a Amount) Big() *big.Int { return new(big.Int).Set(a.big()) }

// Sign returns -1, 0 or +1.
func (a Amount) Sign() int { return a.big().Sign() }

// IsZero reports whether the amount is 0.
func (a Amount) IsZero() bool { return a.Sign() == 0 }

// IsPositive reports whether the amount is > 0.
func (a Amount) IsPositive() bool { return a.Sign() > 0 }

// IsNegative reports whether the amount is < 0.
func (a Amount) IsNegative() bool { return a.Sign() < 0 }

// Add returns a + b.
func (a Amount) Add(b Amount) Amount { return Amount{v: new(big.Int).Add(a.big(), b.big())} }

// Sub returns a - b. The result may be negative.
func (a Amount) Sub(b Amount) Amount { return Amount{v: new(big.Int).Sub(a.big(), b.big())} }

// Cmp compares a and b and returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int { return a.big().Cmp(b.big()) }

// Equal reports whether a == b.
func (a Amount) Equal(b Amount) bool { return a.Cmp(b) == 0 }

// LessThan reports whether a < b.
func (a Amount) LessThan(b Amount) bool { return a.Cmp(b) < 0 }

// GreaterThan reports whether a > b.
func (a Amount) GreaterThan(b Amount) bool { return a.Cmp(b) > 0 }

// Bps returns floor(a * bps / 10000) for non-negative a.
func (a Amount) Bps(bps uint16) Amount {
	v := new(big.Int).Mul(a.big(), big.NewInt(int64(bps)))
	return Amount{v: v.Quo(v, bpsDenom)}
}

// Float64 returns the nearest float64, for metrics only.
func (a Amount) Float64() float64 {
	f, _ := new(big.Float).SetInt(a.big()).Float64()
	return f
}

// String returns the base-10 representation.
func (a Amount) String() string { return a.big().String() }

// MarshalText implements encoding.TextMarshaler.
func (a Amount) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*a = Amount{}
		return nil
	}
	parsed, err := ParseAmount(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalJSON encodes the amount as a decimal string so that values above
// 2^53 survive JavaScript consumers.
func (a Amount) MarshalJSON() ([]byte, error) { return json.Marshal(a.String()) }

// UnmarshalJSON accepts either a decimal string or a bare JSON number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = Amount{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		return a.UnmarshalText([]byte(s))
	}
	return a.UnmarshalText(data)
}
