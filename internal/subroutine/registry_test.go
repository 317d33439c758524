package subroutine

import (
	"bytes"
	"io"
	"testing"

	"github.com/hammelm/mempeek/internal/ast"
	"github.com/hammelm/mempeek/internal/mapping"
	"github.com/hammelm/mempeek/internal/storage"
)

func init() {
	storage.DefaultSizeFunc = func() int { return 8 }
}

// fakeRuntime is a minimal ast.Runtime sufficient to drive subroutine
// calls in isolation from the full Environment Facade.
type fakeRuntime struct {
	varargs  [][]fakeVararg
	mappings *mapping.Engine
	wordSize int
	out      bytes.Buffer
	now      uint64
}

type fakeVararg struct {
	isArray bool
	value   uint64
	arr     storage.Array
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{mappings: mapping.NewEngine(), wordSize: 8}
}

func (rt *fakeRuntime) PushVarargFrame() { rt.varargs = append(rt.varargs, nil) }
func (rt *fakeRuntime) AppendVarargValue(v uint64) {
	top := len(rt.varargs) - 1
	rt.varargs[top] = append(rt.varargs[top], fakeVararg{value: v})
}
func (rt *fakeRuntime) AppendVarargArray(a storage.Array) {
	top := len(rt.varargs) - 1
	rt.varargs[top] = append(rt.varargs[top], fakeVararg{isArray: true, arr: a})
}
func (rt *fakeRuntime) PopVarargFrame() { rt.varargs = rt.varargs[:len(rt.varargs)-1] }
func (rt *fakeRuntime) NumVarargs() int { return len(rt.varargs[len(rt.varargs)-1]) }
func (rt *fakeRuntime) VarargValue(i int) (uint64, bool) {
	v := rt.varargs[len(rt.varargs)-1][i]
	return v.value, !v.isArray
}
func (rt *fakeRuntime) VarargArray(i int) (storage.Array, bool) {
	v := rt.varargs[len(rt.varargs)-1][i]
	return v.arr, v.isArray
}
func (rt *fakeRuntime) VarargIsArray(i int) bool {
	return rt.varargs[len(rt.varargs)-1][i].isArray
}
func (rt *fakeRuntime) Mappings() *mapping.Engine        { return rt.mappings }
func (rt *fakeRuntime) DefaultWordSize() int             { return rt.wordSize }
func (rt *fakeRuntime) SetDefaultWordSize(size int)      { rt.wordSize = size }
func (rt *fakeRuntime) DefaultPrintModifier() uint64     { return 0 }
func (rt *fakeRuntime) SetDefaultPrintModifier(m uint64) {}
func (rt *fakeRuntime) Terminated() bool                 { return false }
func (rt *fakeRuntime) Stdout() io.Writer                { return &rt.out }
func (rt *fakeRuntime) NowMicros() uint64                { return rt.now }
func (rt *fakeRuntime) SleepMicros(micros uint64)        { rt.now += micros }

// buildSum defines: defproc sum(a[]) -> while i < size(a) { r := r + a[i]; i := i+1 }
// with the caller reading back global r afterward.
func buildSum(t *testing.T, reg *Registry, r storage.Var) {
	t.Helper()
	loc := ast.Location{}
	reg.Begin(loc, "sum")
	reg.SetParam("a", true)

	arrVar := reg.pending.Arrays.Get("a")
	i := reg.pending.Vars.AllocLocal("i")

	body := ast.NewBlock(loc)
	arrNode := ast.NewArraySize(loc, arrVar)
	cond := ast.NewBinaryOp(loc, nil, ast.OpLt, ast.NewVar(loc, i), arrNode)
	loopBody := ast.NewBlock(loc)
	elem := ast.NewArrayIndex(loc, nil, arrVar, ast.NewVar(loc, i))
	loopBody.AddStatement(ast.NewAssignScalar(loc, nil, r, ast.NewBinaryOp(loc, nil, ast.OpAdd, ast.NewVar(loc, r), elem)))
	loopBody.AddStatement(ast.NewAssignScalar(loc, nil, i, ast.NewBinaryOp(loc, nil, ast.OpAdd, ast.NewVar(loc, i), ast.NewConstant(loc, 1))))
	w := ast.NewWhile(loc, nil, cond, loopBody)
	body.AddStatement(w)

	reg.SetBody(body)
	reg.Commit()
}

func TestProcedureSumOverArrayArgument(t *testing.T) {
	rt := newFakeRuntime()
	loc := ast.Location{}

	globals := storage.NewVarManager()
	r := globals.AllocGlobal("r")

	reg := NewRegistry(ast.Procedure)
	buildSum(t, reg, r)

	am := storage.NewArrManager()
	literal := am.AllocGlobal("lit")
	list := ast.NewAssignList(loc, rt, literal, []ast.Node{
		ast.NewConstant(loc, 10), ast.NewConstant(loc, 20), ast.NewConstant(loc, 30),
	})
	if _, err := list.Execute(rt); err != nil {
		t.Fatal(err)
	}

	call, err := reg.Get(loc, rt, "sum", []ast.Node{ast.NewArraySize(loc, literal)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := call.Execute(rt); err != nil {
		t.Fatal(err)
	}
	if r.Get() != 60 {
		t.Fatalf("got %d, want 60", r.Get())
	}
}

func TestProcedureArgTypeMismatchOnScalarForArrayParam(t *testing.T) {
	rt := newFakeRuntime()
	loc := ast.Location{}
	globals := storage.NewVarManager()
	r := globals.AllocGlobal("r")

	reg := NewRegistry(ast.Procedure)
	buildSum(t, reg, r)

	_, err := reg.Get(loc, rt, "sum", []ast.Node{ast.NewConstant(loc, 5)})
	e, ok := err.(*ast.Error)
	if !ok || e.Kind != ast.KindArgTypeMismatch {
		t.Fatalf("got %v, want KindArgTypeMismatch", err)
	}
}

func TestDroppedSubroutineRaisesOnRedefine(t *testing.T) {
	rt := newFakeRuntime()
	loc := ast.Location{}
	globals := storage.NewVarManager()
	r := globals.AllocGlobal("r")

	reg := NewRegistry(ast.Procedure)
	buildSum(t, reg, r)

	am := storage.NewArrManager()
	literal := am.AllocGlobal("lit")
	if _, err := ast.NewAssignList(loc, rt, literal, []ast.Node{ast.NewConstant(loc, 1)}).Execute(rt); err != nil {
		t.Fatal(err)
	}
	call, err := reg.Get(loc, rt, "sum", []ast.Node{ast.NewArraySize(loc, literal)})
	if err != nil {
		t.Fatal(err)
	}

	// Redefine "sum" under the same name; the registry entry is replaced
	// and the old Subroutine is marked dropped, so the outstanding call
	// site must now fail rather than run the stale body.
	reg.Begin(loc, "sum")
	reg.SetParam("a", true)
	reg.SetBody(ast.NewBlock(loc))
	reg.Commit()

	if reg.entries["sum"].Dropped() {
		t.Fatalf("freshly committed entry must not be dropped")
	}

	_, err = call.Execute(rt)
	e, ok := err.(*ast.Error)
	if !ok || e.Kind != ast.KindDroppedSubroutine {
		t.Fatalf("got %v, want KindDroppedSubroutine", err)
	}
}

// TestRecursionWeakReferenceUpgrades defines a recursive function
// countdown(n) that returns 0 once n<=0, else calls itself with n-1, and
// checks the weak body reference resolves through every recursive level.
func TestRecursionWeakReferenceUpgrades(t *testing.T) {
	rt := newFakeRuntime()
	loc := ast.Location{}

	reg := NewRegistry(ast.Function)
	reg.Begin(loc, "countdown")
	reg.SetParam("n", false)
	nVar := reg.pending.Vars.Get("n")
	retVal := reg.pending.RetVal

	// Build body lazily since it must call itself; construct the Block
	// first, commit, then splice in a call node referencing the
	// now-committed registry entry.
	body := ast.NewBlock(loc)
	cond := ast.NewBinaryOp(loc, nil, ast.OpLe, ast.NewVar(loc, nVar), ast.NewConstant(loc, 0))
	thenBlk := ast.NewBlock(loc)
	thenBlk.AddStatement(ast.NewAssignScalar(loc, nil, retVal, ast.NewConstant(loc, 0)))

	reg.SetBody(body) // placeholder; body finalized below before first call
	reg.Commit()

	elseBlk := ast.NewBlock(loc)
	recCall, err := reg.Get(loc, rt, "countdown", []ast.Node{
		ast.NewBinaryOp(loc, nil, ast.OpSub, ast.NewVar(loc, nVar), ast.NewConstant(loc, 1)),
	})
	if err != nil {
		t.Fatal(err)
	}
	elseBlk.AddStatement(ast.NewAssignScalar(loc, nil, retVal, recCall))

	ifNode := ast.NewIf(loc, nil, cond, thenBlk, elseBlk)
	body.AddStatement(ifNode)

	top, err := reg.Get(loc, rt, "countdown", []ast.Node{ast.NewConstant(loc, 3)})
	if err != nil {
		t.Fatal(err)
	}
	v, err := top.Execute(rt)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0 {
		t.Fatalf("got %d, want 0", v)
	}
}
