package types

import (
	"encoding/json"
	"math/big"
	"testing"
)

func TestAmountConstructors(t *testing.T) {
	tests := []struct {
		name string
		got  Amount
		want string
	}{
		{"int64", NewAmount(4900), "4900"},
		{"zero value", Amount{}, "0"},
		{"units 6 decimals", Units(1000, 6), "1000000000"},
		{"units 18 decimals", Units(1000, 18), "1000000000000000000000"},
		{"from nil big", AmountFromBig(nil), "0"},
		{"parse", MustParseAmount("123456789012345678901234567890"), "123456789012345678901234567890"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got.String() != tt.want {
				t.Errorf("got %s, want %s", tt.got.String(), tt.want)
			}
		})
	}
}

func TestParseAmountInvalid(t *testing.T) {
	for _, s := range []string{"", "abc", "1.5", "0x10"} {
		if _, err := ParseAmount(s); err == nil {
			t.Errorf("expected error for %q", s)
		}
	}
}

func TestAmountArithmetic(t *testing.T) {
	a := NewAmount(1000)
	b := NewAmount(300)

	if got := a.Add(b); got.String() != "1300" {
		t.Errorf("Add: got %s", got)
	}
	if got := a.Sub(b); got.String() != "700" {
		t.Errorf("Sub: got %s", got)
	}
	if got := b.Sub(a); !got.IsNegative() {
		t.Errorf("Sub: expected negative, got %s", got)
	}
	if a.String() != "1000" || b.String() != "300" {
		t.Error("arithmetic mutated its operands")
	}
	if !b.LessThan(a) || !a.GreaterThan(b) || a.Equal(b) {
		t.Error("comparison mismatch")
	}
	if got := Sum(a, b, NewAmount(1)); got.String() != "1301" {
		t.Errorf("Sum: got %s", got)
	}
}

func TestAmountBigIsCopy(t *testing.T) {
	a := NewAmount(10)
	b := a.Big()
	b.Add(b, big.NewInt(5))
	if a.String() != "10" {
		t.Errorf("Big leaked internal state: %s", a)
	}

	src := big.NewInt(7)
	c := AmountFromBig(src)
	src.SetInt64(99)
	if c.String() != "7" {
		t.Errorf("AmountFromBig aliased its argument: %s", c)
	}
}

func TestAmountBps(t *testing.T) {
	tests := []struct {
		name   string
		amount Amount
		bps    uint16
		want   string
	}{
		{"1% of 1000", NewAmount(1000), 100, "10"},
		{"2% of 1000", NewAmount(1000), 200, "20"},
		{"5% of 1000 USDC", Units(1000, 6), 500, "50000000"},
		{"floors fractional fee", NewAmount(99), 100, "0"},
		{"floors 1.99", NewAmount(199), 100, "1"},
		{"zero rate", NewAmount(1000), 0, "0"},
		{"zero amount", Amount{}, 500, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.amount.Bps(tt.bps); got.String() != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAmountJSON(t *testing.T) {
	a := MustParseAmount("1000000000000000000000")
	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `"1000000000000000000000"` {
		t.Errorf("got %s", data)
	}

	var decoded Amount
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !decoded.Equal(a) {
		t.Errorf("mismatch: %s != %s", decoded, a)
	}

	var fromNumber Amount
	if err := json.Unmarshal([]byte(`1500`), &fromNumber); err != nil {
		t.Fatalf("Unmarshal number failed: %v", err)
	}
	if fromNumber.String() != "1500" {
		t.Errorf("got %s", fromNumber)
	}
}
