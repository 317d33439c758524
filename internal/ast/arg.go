package ast

// ArgQuery selects what Arg(index) with no array index resolves to.
type ArgQuery int

const (
	ArgGetVar ArgQuery = iota
	ArgGetArraySize
	ArgGetType
)

// Arg reads the current subroutine call's vararg list: arg() (count),
// arg(i) (value / array-size / type-tag depending on query), or
// arg(i, j) (element j of vararg array i).
type Arg struct {
	Base
	index    Node // nil for the count-only form
	arrIndex Node // non-nil for the two-argument indexed form
	query    ArgQuery
}

// NewArgCount builds arg().
func NewArgCount(loc Location) *Arg {
	return &Arg{Base: NewBase(loc)}
}

// NewArgQuery builds arg(i) under the given query.
func NewArgQuery(loc Location, rt Runtime, index Node, query ArgQuery) *Arg {
	n := &Arg{Base: NewBase(loc), query: query}
	n.index = n.AddChild(rt, index)
	return n
}

// NewArgIndexed builds arg(i, j).
func NewArgIndexed(loc Location, rt Runtime, index, arrIndex Node) *Arg {
	n := &Arg{Base: NewBase(loc)}
	n.index = n.AddChild(rt, index)
	n.arrIndex = n.AddChild(rt, arrIndex)
	return n
}

func (n *Arg) Execute(rt Runtime) (uint64, error) {
	if n.index == nil {
		return uint64(rt.NumVarargs()), nil
	}

	idx, err := n.index.Execute(rt)
	if err != nil {
		return 0, err
	}
	if int(idx) >= rt.NumVarargs() {
		return 0, NewError(KindOutOfBounds, n.Loc(), "vararg index %d out of bounds (%d varargs)", idx, rt.NumVarargs())
	}

	isArray := rt.VarargIsArray(int(idx))

	if n.arrIndex != nil {
		if !isArray {
			return 0, NewError(KindArgTypeMismatch, n.Loc(), "vararg %d is not an array", idx)
		}
		arr, _ := rt.VarargArray(int(idx))
		arrIdx, err := n.arrIndex.Execute(rt)
		if err != nil {
			return 0, err
		}
		v, err := arr.Get(arrIdx)
		if err != nil {
			return 0, NewError(KindOutOfBounds, n.Loc(), "%v", err)
		}
		return v, nil
	}

	switch n.query {
	case ArgGetVar:
		if isArray {
			return 0, NewError(KindArgTypeMismatch, n.Loc(), "vararg %d is an array, not a scalar", idx)
		}
		v, _ := rt.VarargValue(int(idx))
		return v, nil
	case ArgGetArraySize:
		if !isArray {
			return 0, NewError(KindArgTypeMismatch, n.Loc(), "vararg %d is not an array", idx)
		}
		arr, _ := rt.VarargArray(int(idx))
		return arr.Size(), nil
	case ArgGetType:
		if isArray {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, NewError(KindArgTypeMismatch, n.Loc(), "unknown arg query")
	}
}
