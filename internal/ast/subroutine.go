package ast

import "github.com/hammelm/mempeek/internal/storage"

// SubroutineKind distinguishes the three call protocols: a procedure
// returns nothing, a function returns a scalar, an array-function returns
// an array bound to its own RetArr.
type SubroutineKind int

const (
	Procedure SubroutineKind = iota
	Function
	ArrayFunction
)

// Param describes one declared parameter: by name and whether it binds a
// ref-array (passed by reference, aliasing the caller's array) rather than
// a scalar value.
type Param struct {
	Name    string
	IsArray bool
}

// Subroutine is the compiled body of a procedure/function/array-function:
// its own local variable and array storage, its declared parameters, and
// (for functions) the return slot. Call holds only a weak reference to
// one of these, so dropping a subroutine (redefinition, re-import) does
// not keep outstanding call sites alive; they instead fail with
// KindDroppedSubroutine the next time they execute.
type Subroutine struct {
	Kind       SubroutineKind
	Loc        Location
	Name       string
	Params     []Param
	HasVarargs bool
	Body       Node
	Vars       *storage.VarManager
	Arrays     *storage.ArrManager
	RetVal     storage.Var
	RetArr     storage.Array

	dropped bool
}

// Drop marks the subroutine dropped: outstanding Call nodes holding a
// weak reference to it will raise KindDroppedSubroutine on their next
// execution, independent of when the garbage collector actually
// reclaims the object.
func (s *Subroutine) Drop() { s.dropped = true }

// Dropped reports whether Drop has been called.
func (s *Subroutine) Dropped() bool { return s.dropped }
