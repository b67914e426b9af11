package core

import (
	"bytes"
	"encoding/json"
	"fmt"

	"lukechampine.com/uint128"
)

// Amount is an unsigned 128-bit quantity of an asset. Balances and supplies
// only ever change through SaturatingAdd and SaturatingSub, so an Amount can
// neither wrap past the 128-bit ceiling nor go below zero.
type Amount struct {
	u uint128.Uint128
}

// MaxAmount is the saturation ceiling, 2^128-1.
var MaxAmount = Amount{u: uint128.Max}

// ZeroAmount is the empty balance.
var ZeroAmount = Amount{}

// NewAmount returns v as an Amount.
func NewAmount(v uint64) Amount {
	return Amount{u: uint128.From64(v)}
}

// ParseAmount parses a base-10 string.
func ParseAmount(s string) (Amount, error) {
	if s == "" {
		return Amount{}, fmt.Errorf("empty amount")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return Amount{}, fmt.Errorf("invalid amount %q: not a base-10 integer", s)
		}
	}
	u, err := uint128.FromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Amount{u: u}, nil
}

// MustParseAmount is ParseAmount for constants and tests. Panics on error.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// SaturatingAdd returns a+b, clamped at MaxAmount.
func SaturatingAdd(a, b Amount) Amount {
	sum := a.u.AddWrap(b.u)
	if sum.Cmp(a.u) < 0 {
		return MaxAmount
	}
	return Amount{u: sum}
}

// SaturatingSub returns a-b, clamped at zero.
func SaturatingSub(a, b Amount) Amount {
	if a.u.Cmp(b.u) <= 0 {
		return ZeroAmount
	}
	return Amount{u: a.u.Sub(b.u)}
}

// IsZero reports whether a is zero.
func (a Amount) IsZero() bool { return a.u.IsZero() }

// Cmp compares a and b and returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int { return a.u.Cmp(b.u) }

// Equal reports whether a == b.
func (a Amount) Equal(b Amount) bool { return a.u.Equals(b.u) }

// Uint128 exposes the underlying value for encoders.
func (a Amount) Uint128() uint128.Uint128 { return a.u }

func (a Amount) String() string { return a.u.String() }

// MarshalJSON encodes a as a decimal string; 128-bit values do not survive
// a round trip through JSON numbers in most clients.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.u.String())
}

// UnmarshalJSON accepts a decimal string or a bare JSON integer.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ZeroAmount
		return nil
	}
	s := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}
	v, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
