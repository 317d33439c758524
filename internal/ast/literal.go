package ast

import (
	"math"
	"strconv"
	"strings"
)

// Constant is a compile-time literal. Marked constant; Execute always
// returns the same value however it was reached, including via folding.
type Constant struct {
	Base
	value uint64
}

func NewConstant(loc Location, value uint64) *Constant {
	return &Constant{Base: NewBase(loc), value: value}
}

func (c *Constant) IsConstant() bool               { return true }
func (c *Constant) Execute(Runtime) (uint64, error) { return c.value, nil }
func (c *Constant) CloneToConst(Runtime) (Node, bool) { return c, true }

// ParseInt accepts "0b[01]+", "0x[0-9a-f]+" (case-insensitive) or decimal,
// with trailing whitespace only. Returns ok=false on anything else.
func ParseInt(s string) (value uint64, ok bool) {
	s = strings.TrimRight(s, " \t\r\n")
	switch {
	case strings.HasPrefix(s, "0b") || strings.HasPrefix(s, "0B"):
		v, err := strconv.ParseUint(s[2:], 2, 64)
		return v, err == nil && s[2:] != ""
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		v, err := strconv.ParseUint(s[2:], 16, 64)
		return v, err == nil && s[2:] != ""
	default:
		v, err := strconv.ParseUint(s, 10, 64)
		return v, err == nil
	}
}

// NewConstantFromInt parses s as an integer literal and builds a Constant,
// or returns ok=false if s is not a valid integer literal.
func NewConstantFromInt(loc Location, s string) (*Constant, bool) {
	v, ok := ParseInt(s)
	if !ok {
		return nil, false
	}
	return NewConstant(loc, v), true
}

// ParseFloat accepts a valid double literal and returns its raw IEEE-754
// 64-bit encoding.
func ParseFloat(s string) (value uint64, ok bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return math.Float64bits(f), true
}

// NewConstantFromFloat parses s as a float literal and builds a Constant
// carrying its raw bit pattern (the value is always manipulated as u64).
func NewConstantFromFloat(loc Location, s string) (*Constant, bool) {
	v, ok := ParseFloat(s)
	if !ok {
		return nil, false
	}
	return NewConstant(loc, v), true
}
