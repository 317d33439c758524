// Package ast implements the execution tree model: a uniformly typed tree
// of polymorphic nodes whose leaves resolve variable/array references at
// construction time, whose constructors perform compile-time evaluation of
// constant subtrees, and whose Execute methods implement the language
// semantics.
package ast

import (
	"io"

	"github.com/hammelm/mempeek/internal/mapping"
	"github.com/hammelm/mempeek/internal/storage"
)

// Runtime is everything a node needs from the Environment Facade at
// execution time, beyond the storage.Var/storage.Array references its
// constructor already resolved. It is implemented by internal/env; ast
// depends only on this narrow interface to avoid an import cycle with the
// package that owns and wires up the full environment.
type Runtime interface {
	PushVarargFrame()
	AppendVarargValue(v uint64)
	AppendVarargArray(a storage.Array)
	PopVarargFrame()
	NumVarargs() int
	VarargValue(i int) (uint64, bool)
	VarargArray(i int) (storage.Array, bool)
	VarargIsArray(i int) bool

	Mappings() *mapping.Engine

	DefaultWordSize() int
	SetDefaultWordSize(size int)
	DefaultPrintModifier() uint64
	SetDefaultPrintModifier(mod uint64)

	Terminated() bool

	Stdout() io.Writer

	NowMicros() uint64
	SleepMicros(micros uint64)
}

// Node is the capability every execution-tree node implements.
type Node interface {
	Loc() Location
	IsConstant() bool
	Execute(rt Runtime) (uint64, error)
}

// ArrayResultNode is implemented by nodes whose result can also be consumed
// as an array (Array, String, Assign-copy, ArrayBlock, array-function call
// sites).
type ArrayResultNode interface {
	Node
	ArrayResult(rt Runtime) (storage.Array, bool)
}

// ConstFolder is implemented by pure expression nodes that can replace
// themselves with a precomputed Constant once every child is constant.
type ConstFolder interface {
	Node
	CloneToConst(rt Runtime) (Node, bool)
}

// Base is embedded by every concrete node to provide the common location
// and child-list bookkeeping. Concrete nodes override IsConstant/Execute/
// CloneToConst as needed; Base's own IsConstant default is false.
type Base struct {
	loc      Location
	Children []Node
}

func NewBase(loc Location) Base { return Base{loc: loc} }

func (b *Base) Loc() Location    { return b.loc }
func (b *Base) IsConstant() bool { return false }

// AddChild appends child to the node's child list, first asking it to
// constant-fold itself if it is marked constant. Only pure arithmetic and
// logical expression nodes ever report IsConstant() == true; nodes with
// side effects (peek, print, assign, call) never do, so they are never
// folded here.
func (b *Base) AddChild(rt Runtime, child Node) Node {
	if child.IsConstant() {
		if folder, ok := child.(ConstFolder); ok {
			if folded, ok := folder.CloneToConst(rt); ok {
				b.Children = append(b.Children, folded)
				return folded
			}
		}
	}
	b.Children = append(b.Children, child)
	return child
}

// ConstExec requires n.IsConstant() and runs n.Execute(nil). Any
// division-by-zero raised while doing so is reclassified from the runtime
// KindDivisionByZero into the compile-time KindConstDivisionByZero, since a
// divide-by-zero caught during constant folding is a compile-time error,
// not a runtime one.
func ConstExec(n Node) (uint64, error) {
	if !n.IsConstant() {
		return 0, NewError(KindNonConstExpression, n.Loc(), "expression is not constant")
	}
	v, err := n.Execute(nil)
	if err != nil {
		if e, ok := err.(*Error); ok && e.Kind == KindDivisionByZero {
			return 0, &Error{Kind: KindConstDivisionByZero, Loc: e.Loc, Msg: e.Msg}
		}
		return 0, err
	}
	return v, nil
}
