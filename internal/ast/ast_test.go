package ast

import (
	"bytes"
	"io"
	"testing"

	"github.com/hammelm/mempeek/internal/mapping"
	"github.com/hammelm/mempeek/internal/storage"
)

func init() {
	storage.DefaultSizeFunc = func() int { return 8 }
}

type testRuntime struct {
	varargs    [][]testVararg
	mappings   *mapping.Engine
	wordSize   int
	printMod   uint64
	terminated bool
	out        bytes.Buffer
	now        uint64
}

type testVararg struct {
	isArray bool
	value   uint64
	arr     storage.Array
}

func newTestRuntime() *testRuntime {
	return &testRuntime{mappings: mapping.NewEngine(), wordSize: 8}
}

func (rt *testRuntime) PushVarargFrame() { rt.varargs = append(rt.varargs, nil) }
func (rt *testRuntime) AppendVarargValue(v uint64) {
	top := len(rt.varargs) - 1
	rt.varargs[top] = append(rt.varargs[top], testVararg{value: v})
}
func (rt *testRuntime) AppendVarargArray(a storage.Array) {
	top := len(rt.varargs) - 1
	rt.varargs[top] = append(rt.varargs[top], testVararg{isArray: true, arr: a})
}
func (rt *testRuntime) PopVarargFrame() { rt.varargs = rt.varargs[:len(rt.varargs)-1] }
func (rt *testRuntime) NumVarargs() int { return len(rt.varargs[len(rt.varargs)-1]) }
func (rt *testRuntime) VarargValue(i int) (uint64, bool) {
	v := rt.varargs[len(rt.varargs)-1][i]
	return v.value, !v.isArray
}
func (rt *testRuntime) VarargArray(i int) (storage.Array, bool) {
	v := rt.varargs[len(rt.varargs)-1][i]
	return v.arr, v.isArray
}
func (rt *testRuntime) VarargIsArray(i int) bool {
	return rt.varargs[len(rt.varargs)-1][i].isArray
}
func (rt *testRuntime) Mappings() *mapping.Engine       { return rt.mappings }
func (rt *testRuntime) DefaultWordSize() int            { return rt.wordSize }
func (rt *testRuntime) SetDefaultWordSize(size int)     { rt.wordSize = size }
func (rt *testRuntime) DefaultPrintModifier() uint64    { return rt.printMod }
func (rt *testRuntime) SetDefaultPrintModifier(m uint64) { rt.printMod = m }
func (rt *testRuntime) Terminated() bool                { return rt.terminated }
func (rt *testRuntime) Stdout() io.Writer { return &rt.out }
func (rt *testRuntime) NowMicros() uint64          { return rt.now }
func (rt *testRuntime) SleepMicros(micros uint64) { rt.now += micros }

func TestConstantFoldingArithmetic(t *testing.T) {
	rt := newTestRuntime()
	loc := Location{}
	one := NewConstant(loc, 1)
	two := NewConstant(loc, 2)
	three := NewConstant(loc, 3)
	four := NewConstant(loc, 4)
	sum1 := NewBinaryOp(loc, rt, OpAdd, one, two)
	sum2 := NewBinaryOp(loc, rt, OpAdd, three, four)
	prod := NewBinaryOp(loc, rt, OpMul, sum1, sum2)

	if !prod.IsConstant() {
		t.Fatalf("expected constant-folded product")
	}
	v, err := prod.Execute(nil)
	if err != nil || v != 21 {
		t.Fatalf("got %d, %v, want 21, nil", v, err)
	}
}

func TestConstDivisionByZeroReclassified(t *testing.T) {
	rt := newTestRuntime()
	loc := Location{}
	one := NewConstant(loc, 1)
	zero := NewConstant(loc, 0)
	div := NewBinaryOp(loc, rt, OpDiv, one, zero)

	_, err := ConstExec(div)
	e, ok := err.(*Error)
	if !ok || e.Kind != KindConstDivisionByZero {
		t.Fatalf("got %v, want KindConstDivisionByZero", err)
	}
}

func TestRuntimeDivisionByZeroNotFolded(t *testing.T) {
	rt := newTestRuntime()
	loc := Location{}
	vm := storage.NewVarManager()
	a := vm.AllocGlobal("a")
	b := vm.AllocGlobal("b")
	a.Set(1)
	b.Set(0)
	div := NewBinaryOp(loc, rt, OpDiv, NewVar(loc, a), NewVar(loc, b))
	if div.IsConstant() {
		t.Fatalf("division by global vars must not be constant")
	}
	_, err := div.Execute(rt)
	e, ok := err.(*Error)
	if !ok || e.Kind != KindDivisionByZero {
		t.Fatalf("got %v, want KindDivisionByZero", err)
	}
}

func TestArrayListAndElementAssign(t *testing.T) {
	rt := newTestRuntime()
	loc := Location{}
	am := storage.NewArrManager()
	arr := am.AllocGlobal("a")

	list := []Node{NewConstant(loc, 1), NewConstant(loc, 2), NewConstant(loc, 3)}
	assign := NewAssignList(loc, rt, arr, list)
	if _, err := assign.Execute(rt); err != nil {
		t.Fatal(err)
	}
	if arr.Size() != 3 {
		t.Fatalf("got size %d, want 3", arr.Size())
	}

	el := NewArrayIndex(loc, rt, arr, NewConstant(loc, 1))
	v, err := el.Execute(rt)
	if err != nil || v != 2 {
		t.Fatalf("got %d, %v, want 2, nil", v, err)
	}
}

func TestStringRoundTrip(t *testing.T) {
	am := storage.NewArrManager()
	arr := am.AllocGlobal("s")
	SetString(arr, "abc")
	if got := GetString(arr); got != "abc" {
		t.Fatalf("got %q, want abc", got)
	}
	if GetLength(arr) != 3 {
		t.Fatalf("got length %d, want 3", GetLength(arr))
	}
}

func TestForLoopSignedStep(t *testing.T) {
	rt := newTestRuntime()
	loc := Location{}
	vm := storage.NewVarManager()
	i := vm.AllocGlobal("i")
	sum := vm.AllocGlobal("sum")

	body := NewBlock(loc)
	body.AddStatement(NewAssignScalar(loc, rt, sum,
		NewBinaryOp(loc, rt, OpAdd, NewVar(loc, sum), NewVar(loc, i))))

	forNode := NewFor(loc, rt, i, NewConstant(loc, 5), NewConstant(loc, 1), NewConstant(loc, uint64(int64(-1))), body)
	if _, err := forNode.Execute(rt); err != nil {
		t.Fatal(err)
	}
	if sum.Get() != 15 {
		t.Fatalf("got %d, want 15 (5+4+3+2+1)", sum.Get())
	}
}

func TestWhileBreak(t *testing.T) {
	rt := newTestRuntime()
	loc := Location{}
	vm := storage.NewVarManager()
	i := vm.AllocGlobal("i")

	body := NewBlock(loc)
	body.AddStatement(NewAssignScalar(loc, rt, i, NewBinaryOp(loc, rt, OpAdd, NewVar(loc, i), NewConstant(loc, 1))))
	body.AddStatement(&ifBreakAtThree{v: i})

	cond := NewConstant(loc, 1)
	w := NewWhile(loc, rt, cond, body)
	if _, err := w.Execute(rt); err != nil {
		t.Fatal(err)
	}
	if i.Get() != 3 {
		t.Fatalf("got %d, want 3", i.Get())
	}
}

// ifBreakAtThree is a tiny test-only node raising break once v reaches 3.
type ifBreakAtThree struct {
	Base
	v storage.Var
}

func (n *ifBreakAtThree) Execute(Runtime) (uint64, error) {
	if n.v.Get() >= 3 {
		return 0, Raise(SigBreak, Location{})
	}
	return 0, nil
}

func TestBlockTerminateCooperativity(t *testing.T) {
	rt := newTestRuntime()
	rt.terminated = true
	loc := Location{}
	block := NewBlock(loc)
	block.AddStatement(NewConstant(loc, 1))
	block.AddStatement(NewConstant(loc, 2))
	block.AddStatement(NewConstant(loc, 3))

	_, err := block.Execute(rt)
	if !AsSignal(err, SigTerminate) {
		t.Fatalf("got %v, want terminate signal after first child", err)
	}
}
