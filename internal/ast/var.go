package ast

import "github.com/hammelm/mempeek/internal/storage"

// Var returns the value bound to a resolved scalar variable. It is marked
// constant iff the binding is a def, since def slots never change at
// runtime once the defining Def node has executed at construction time.
type Var struct {
	Base
	v storage.Var
}

// NewVar wraps an already-resolved storage.Var. Resolution (name lookup)
// happens once, at parse/construction time; ast never looks names up again
// at execute time.
func NewVar(loc Location, v storage.Var) *Var {
	return &Var{Base: NewBase(loc), v: v}
}

func (n *Var) IsConstant() bool { return n.v.IsDef() }

func (n *Var) Execute(Runtime) (uint64, error) {
	return n.v.Get(), nil
}

func (n *Var) CloneToConst(Runtime) (Node, bool) {
	if !n.v.IsDef() {
		return nil, false
	}
	return NewConstant(n.Loc(), n.v.Get()), true
}

// GetVar exposes the bound variable so Assign/For can reuse the same slot
// as their iteration/assignment target.
func (n *Var) GetVar() storage.Var { return n.v }
