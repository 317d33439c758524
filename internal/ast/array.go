package ast

import "github.com/hammelm/mempeek/internal/storage"

// Array accesses a resolved array by optional index: with no index child it
// returns the array's size; with one index child it returns the element.
// ArrayResult always returns the bound array regardless of index presence.
type Array struct {
	Base
	arr   storage.Array
	index Node // nil when constructed as Array(name)
}

// NewArraySize builds the size-returning form, Array(name).
func NewArraySize(loc Location, arr storage.Array) *Array {
	return &Array{Base: NewBase(loc), arr: arr}
}

// NewArrayIndex builds the element-returning form, Array(name, index).
func NewArrayIndex(loc Location, rt Runtime, arr storage.Array, index Node) *Array {
	n := &Array{Base: NewBase(loc), arr: arr}
	n.index = n.AddChild(rt, index)
	return n
}

func (n *Array) Execute(rt Runtime) (uint64, error) {
	if n.index == nil {
		return n.arr.Size(), nil
	}
	idx, err := n.index.Execute(rt)
	if err != nil {
		return 0, err
	}
	v, err := n.arr.Get(idx)
	if err != nil {
		return 0, NewError(KindOutOfBounds, n.Loc(), "%v", err)
	}
	return v, nil
}

func (n *Array) ArrayResult(Runtime) (storage.Array, bool) { return n.arr, true }

// Range returns a def's symbolic range, or an offset-checked element within
// it: name.Get() + name.Size()*index, validated against name.Range().
type Range struct {
	Base
	def   storage.Var
	index Node // nil for the range-only form
}

// NewRangeOnly builds Range(name).
func NewRangeOnly(loc Location, def storage.Var) *Range {
	return &Range{Base: NewBase(loc), def: def}
}

// NewRangeIndexed builds Range(name, index).
func NewRangeIndexed(loc Location, rt Runtime, def storage.Var, index Node) *Range {
	n := &Range{Base: NewBase(loc), def: def}
	n.index = n.AddChild(rt, index)
	return n
}

func (n *Range) IsConstant() bool {
	if n.index == nil {
		return true
	}
	return n.index.IsConstant()
}

func (n *Range) Execute(rt Runtime) (uint64, error) {
	if n.index == nil {
		return n.def.Range(), nil
	}
	idx, err := n.index.Execute(rt)
	if err != nil {
		return 0, err
	}
	if idx >= n.def.Range() {
		return 0, NewError(KindOutOfBounds, n.Loc(), "range index %d out of bounds (range %d)", idx, n.def.Range())
	}
	return n.def.Get() + uint64(n.def.Size())*idx, nil
}

func (n *Range) CloneToConst(rt Runtime) (Node, bool) {
	v, err := n.Execute(rt)
	if err != nil {
		return nil, false
	}
	return NewConstant(n.Loc(), v), true
}
