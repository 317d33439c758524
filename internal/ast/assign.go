package ast

import "github.com/hammelm/mempeek/internal/storage"

type assignKind int

const (
	assignScalar assignKind = iota
	assignElement
	assignList
	assignCopy
)

// Assign covers the four assignment forms: a bare scalar, a single array
// element, a list literal resizing and filling an array in one shot, and
// an array-to-array copy that resizes the destination to match the
// source before copying every element.
type Assign struct {
	Base
	kind  assignKind
	v     storage.Var
	arr   storage.Array
	index Node
	value Node
	list  []Node
	src   Node
}

// NewAssignScalar builds `v = value`.
func NewAssignScalar(loc Location, rt Runtime, v storage.Var, value Node) *Assign {
	n := &Assign{Base: NewBase(loc), kind: assignScalar, v: v}
	n.value = n.AddChild(rt, value)
	return n
}

// NewAssignElement builds `arr[index] = value`.
func NewAssignElement(loc Location, rt Runtime, arr storage.Array, index, value Node) *Assign {
	n := &Assign{Base: NewBase(loc), kind: assignElement, arr: arr}
	n.index = n.AddChild(rt, index)
	n.value = n.AddChild(rt, value)
	return n
}

// NewAssignList builds `arr = { e0, e1, ... }`, resizing arr to len(list).
func NewAssignList(loc Location, rt Runtime, arr storage.Array, list []Node) *Assign {
	n := &Assign{Base: NewBase(loc), kind: assignList, arr: arr}
	for _, e := range list {
		n.list = append(n.list, n.AddChild(rt, e))
	}
	return n
}

// NewAssignCopy builds `arr = src`, where src resolves to another array.
func NewAssignCopy(loc Location, rt Runtime, arr storage.Array, src Node) *Assign {
	n := &Assign{Base: NewBase(loc), kind: assignCopy, arr: arr}
	n.src = n.AddChild(rt, src)
	return n
}

// GetVar exposes the scalar target so a `for` loop can reuse the same
// binding as its induction variable.
func (n *Assign) GetVar() storage.Var { return n.v }

func (n *Assign) Execute(rt Runtime) (uint64, error) {
	switch n.kind {
	case assignScalar:
		v, err := n.value.Execute(rt)
		if err != nil {
			return 0, err
		}
		n.v.Set(v)
		return v, nil

	case assignElement:
		idx, err := n.index.Execute(rt)
		if err != nil {
			return 0, err
		}
		v, err := n.value.Execute(rt)
		if err != nil {
			return 0, err
		}
		if err := n.arr.Set(idx, v); err != nil {
			return 0, NewError(KindOutOfBounds, n.Loc(), "%v", err)
		}
		return v, nil

	case assignList:
		n.arr.Resize(uint64(len(n.list)))
		var last uint64
		for i, e := range n.list {
			v, err := e.Execute(rt)
			if err != nil {
				return 0, err
			}
			if err := n.arr.Set(uint64(i), v); err != nil {
				return 0, NewError(KindOutOfBounds, n.Loc(), "%v", err)
			}
			last = v
		}
		return last, nil

	case assignCopy:
		ar, ok := n.src.(ArrayResultNode)
		if !ok {
			return 0, NewError(KindArgTypeMismatch, n.Loc(), "assignment source is not an array")
		}
		if _, err := n.src.Execute(rt); err != nil {
			return 0, err
		}
		srcArr, ok := ar.ArrayResult(rt)
		if !ok {
			return 0, NewError(KindArgTypeMismatch, n.Loc(), "assignment source is not an array")
		}
		size := srcArr.Size()
		n.arr.Resize(size)
		for i := uint64(0); i < size; i++ {
			v, err := srcArr.Get(i)
			if err != nil {
				return 0, NewError(KindOutOfBounds, n.Loc(), "%v", err)
			}
			if err := n.arr.Set(i, v); err != nil {
				return 0, NewError(KindOutOfBounds, n.Loc(), "%v", err)
			}
		}
		return size, nil
	}
	return 0, NewError(KindArgTypeMismatch, n.Loc(), "unknown assignment kind")
}

func (n *Assign) ArrayResult(Runtime) (storage.Array, bool) {
	if n.kind == assignElement || n.kind == assignScalar {
		return nil, false
	}
	return n.arr, true
}

// AssignArg resizes a declared array to match the vararg array found at
// a given vararg index and copies its elements: `name = arg(expr)` in
// array-copy form. The vararg at that index must itself be an array.
type AssignArg struct {
	Base
	arr   storage.Array
	index Node
}

func NewAssignArg(loc Location, rt Runtime, arr storage.Array, index Node) *AssignArg {
	n := &AssignArg{Base: NewBase(loc), arr: arr}
	n.index = n.AddChild(rt, index)
	return n
}

func (n *AssignArg) Execute(rt Runtime) (uint64, error) {
	idx, err := n.index.Execute(rt)
	if err != nil {
		return 0, err
	}
	if int(idx) >= rt.NumVarargs() {
		return 0, NewError(KindOutOfBounds, n.Loc(), "vararg index %d out of bounds (%d varargs)", idx, rt.NumVarargs())
	}
	if !rt.VarargIsArray(int(idx)) {
		return 0, NewError(KindArgTypeMismatch, n.Loc(), "vararg %d is not an array", idx)
	}
	src, _ := rt.VarargArray(int(idx))
	size := src.Size()
	n.arr.Resize(size)
	for i := uint64(0); i < size; i++ {
		v, err := src.Get(i)
		if err != nil {
			return 0, NewError(KindOutOfBounds, n.Loc(), "%v", err)
		}
		if err := n.arr.Set(i, v); err != nil {
			return 0, NewError(KindOutOfBounds, n.Loc(), "%v", err)
		}
	}
	return size, nil
}

func (n *AssignArg) ArrayResult(Runtime) (storage.Array, bool) { return n.arr, true }
