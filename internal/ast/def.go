package ast

import "github.com/hammelm/mempeek/internal/storage"

// Def allocates nothing itself (the environment calls VarManager.AllocDef
// before constructing one); it compile-time evaluates the initializer and
// stores it into the slot it was given. It is always constant: by the
// time it is reachable at runtime the value is already fixed.
type Def struct {
	Base
	v     storage.Var
	value uint64
}

// NewDef compile-time evaluates expr and stores the result into v.
func NewDef(loc Location, v storage.Var, expr Node) (*Def, error) {
	value, err := ConstExec(expr)
	if err != nil {
		return nil, err
	}
	v.Set(value)
	return &Def{Base: NewBase(loc), v: v, value: value}, nil
}

// NewDefRanged is the range/size-carrying variant: `def X[range] := expr
// size s`.
func NewDefRanged(loc Location, v storage.Var, expr Node, rangeLen uint64, size int) (*Def, error) {
	d, err := NewDef(loc, v, expr)
	if err != nil {
		return nil, err
	}
	v.SetRange(rangeLen)
	v.SetSize(size)
	return d, nil
}

// NewDefFromValue installs a precomputed value with no expression to
// evaluate, used by the environment when replicating struct members for
// `def X from Y`.
func NewDefFromValue(loc Location, v storage.Var, value uint64) *Def {
	v.Set(value)
	return &Def{Base: NewBase(loc), v: v, value: value}
}

func (n *Def) IsConstant() bool                { return true }
func (n *Def) Execute(Runtime) (uint64, error) { return n.value, nil }
func (n *Def) CloneToConst(Runtime) (Node, bool) {
	return NewConstant(n.Loc(), n.value), true
}

// Dim resizes a bound array to the value of a size expression, evaluated
// fresh on every execution.
type Dim struct {
	Base
	arr  storage.Array
	size Node
}

func NewDim(loc Location, rt Runtime, arr storage.Array, size Node) *Dim {
	n := &Dim{Base: NewBase(loc), arr: arr}
	n.size = n.AddChild(rt, size)
	return n
}

func (n *Dim) Execute(rt Runtime) (uint64, error) {
	size, err := n.size.Execute(rt)
	if err != nil {
		return 0, err
	}
	n.arr.Resize(size)
	return size, nil
}

func (n *Dim) ArrayResult(Runtime) (storage.Array, bool) { return n.arr, true }
