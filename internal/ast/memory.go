package ast

import "github.com/hammelm/mempeek/internal/mapping"

// lookupForAccess resolves addr/width against the engine and reports the
// two mapping-specific error kinds shared by Peek and Poke.
func lookupForAccess(rt Runtime, loc Location, addr uint64, width int) (*mapping.Mapping, error) {
	size := uint64(width / 8)
	m := rt.Mappings().Lookup(addr, size)
	if m == nil {
		return nil, NewError(KindNoMapping, loc, "no mapping covers address 0x%x", addr)
	}
	return m, nil
}

func busErrorIfFailed(m *mapping.Mapping, loc Location) error {
	if m.HasFailed() {
		return NewError(KindBusError, loc, "bus error accessing mapped memory")
	}
	return nil
}

// Peek loads a typed word from a mapped address.
type Peek struct {
	Base
	addr  Node
	width int
}

func NewPeek(loc Location, rt Runtime, addr Node, width int) *Peek {
	n := &Peek{Base: NewBase(loc), width: width}
	n.addr = n.AddChild(rt, addr)
	return n
}

func (n *Peek) Execute(rt Runtime) (uint64, error) {
	addr, err := n.addr.Execute(rt)
	if err != nil {
		return 0, err
	}
	m, err := lookupForAccess(rt, n.Loc(), addr, n.width)
	if err != nil {
		return 0, err
	}
	var v uint64
	switch n.width {
	case 8:
		v = uint64(mapping.Peek[uint8](m, addr))
	case 16:
		v = uint64(mapping.Peek[uint16](m, addr))
	case 32:
		v = uint64(mapping.Peek[uint32](m, addr))
	default:
		v = mapping.Peek[uint64](m, addr)
	}
	if err := busErrorIfFailed(m, n.Loc()); err != nil {
		return 0, err
	}
	return v, nil
}

// Poke stores a typed word at a mapped address, optionally restricted to
// a mask via clear-then-set.
type Poke struct {
	Base
	addr, value, mask Node // mask is nil for the unmasked form
	width             int
}

func NewPoke(loc Location, rt Runtime, addr, value Node, width int) *Poke {
	n := &Poke{Base: NewBase(loc), width: width}
	n.addr = n.AddChild(rt, addr)
	n.value = n.AddChild(rt, value)
	return n
}

func NewPokeMasked(loc Location, rt Runtime, addr, value, mask Node, width int) *Poke {
	n := &Poke{Base: NewBase(loc), width: width}
	n.addr = n.AddChild(rt, addr)
	n.value = n.AddChild(rt, value)
	n.mask = n.AddChild(rt, mask)
	return n
}

func (n *Poke) Execute(rt Runtime) (uint64, error) {
	addr, err := n.addr.Execute(rt)
	if err != nil {
		return 0, err
	}
	value, err := n.value.Execute(rt)
	if err != nil {
		return 0, err
	}
	m, err := lookupForAccess(rt, n.Loc(), addr, n.width)
	if err != nil {
		return 0, err
	}

	if n.mask != nil {
		mask, err := n.mask.Execute(rt)
		if err != nil {
			return 0, err
		}
		switch n.width {
		case 8:
			mapping.Clear(m, addr, uint8(mask))
			mapping.Set(m, addr, uint8(value&mask))
		case 16:
			mapping.Clear(m, addr, uint16(mask))
			mapping.Set(m, addr, uint16(value&mask))
		case 32:
			mapping.Clear(m, addr, uint32(mask))
			mapping.Set(m, addr, uint32(value&mask))
		default:
			mapping.Clear(m, addr, mask)
			mapping.Set(m, addr, value&mask)
		}
	} else {
		switch n.width {
		case 8:
			mapping.Poke(m, addr, uint8(value))
		case 16:
			mapping.Poke(m, addr, uint16(value))
		case 32:
			mapping.Poke(m, addr, uint32(value))
		default:
			mapping.Poke(m, addr, value)
		}
	}

	if err := busErrorIfFailed(m, n.Loc()); err != nil {
		return 0, err
	}
	return value, nil
}
