// Package storage implements the name/storage model: scoped variable and
// array managers with four storage classes (def, global, local, delegate)
// plus by-reference array parameters.
package storage

// Var is a scalar 64-bit slot. Concrete kinds are defVar, structVar,
// globalVar, localVar and delegateVar.
type Var interface {
	IsDef() bool
	IsLocal() bool

	SetRange(rng uint64)
	Range() uint64

	Size() int
	SetSize(size int)

	Get() uint64
	Set(value uint64)
}

// DefaultSizeFunc resolves the interpreter's current default word size in
// bytes (1/2/4/8) for vars that were never given an explicit size, e.g.
// Environment.DefaultWordSize (which is in bits) divided by 8. Wired by
// internal/env at startup; nil panics
// on first use so a misconfigured environment fails loudly rather than
// silently defaulting.
var DefaultSizeFunc func() int

type baseVar struct{}

func (baseVar) IsDef() bool     { return false }
func (baseVar) IsLocal() bool   { return false }
func (baseVar) SetRange(uint64) {}
func (baseVar) Range() uint64   { return 0 }
func (baseVar) SetSize(int)     {}
func (baseVar) Size() int       { return DefaultSizeFunc() }

// defVar is a compile-time constant slot.
type defVar struct {
	baseVar
	value uint64
}

func newDefVar() *defVar { return &defVar{} }

func (v *defVar) IsDef() bool        { return true }
func (v *defVar) Get() uint64        { return v.value }
func (v *defVar) Set(value uint64)   { v.value = value }

// structVar is a struct-member def rooted at a base defVar: get() returns
// base.Get() + offset. Its "value" (as set by Def nodes) IS the offset.
type structVar struct {
	offset uint64
	rng    uint64
	size   int
	base   Var
}

func newStructVar(base Var) *structVar { return &structVar{base: base} }

func (v *structVar) IsDef() bool      { return true }
func (v *structVar) IsLocal() bool    { return false }
func (v *structVar) SetRange(r uint64) { v.rng = r }
func (v *structVar) Range() uint64    { return v.rng }
func (v *structVar) SetSize(s int)    { v.size = s }
func (v *structVar) Size() int        { return v.size }
func (v *structVar) Get() uint64      { return v.base.Get() + v.offset }
func (v *structVar) Set(offset uint64) { v.offset = offset }

// globalVar owns a 64-bit cell for the lifetime of its manager.
type globalVar struct {
	baseVar
	value uint64
}

func newGlobalVar() *globalVar { return &globalVar{} }

func (v *globalVar) Get() uint64      { return v.value }
func (v *globalVar) Set(value uint64) { v.value = value }

// localVar indexes into the owning VarManager's active stack frame. The
// frame slice itself is swapped out from under the var on Push/Pop, so the
// var only ever holds a stable offset plus a pointer back to the manager.
type localVar struct {
	baseVar
	mgr    *VarManager
	offset int
}

func newLocalVar(mgr *VarManager, offset int) *localVar {
	return &localVar{mgr: mgr, offset: offset}
}

func (v *localVar) IsLocal() bool  { return true }
func (v *localVar) Get() uint64    { return v.mgr.frameGet(v.offset) }
func (v *localVar) Set(value uint64) { v.mgr.frameSet(v.offset, value) }

// delegateVar forwards every operation to another var, possibly owned by a
// different manager/scope.
type delegateVar struct {
	target Var
}

func newDelegateVar(target Var) *delegateVar { return &delegateVar{target: target} }

func (v *delegateVar) IsDef() bool       { return v.target.IsDef() }
func (v *delegateVar) IsLocal() bool     { return v.target.IsLocal() }
func (v *delegateVar) SetRange(r uint64) { v.target.SetRange(r) }
func (v *delegateVar) Range() uint64     { return v.target.Range() }
func (v *delegateVar) Size() int         { return v.target.Size() }
func (v *delegateVar) SetSize(s int)     { v.target.SetSize(s) }
func (v *delegateVar) Get() uint64       { return v.target.Get() }
func (v *delegateVar) Set(value uint64)  { v.target.Set(value) }
