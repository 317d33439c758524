package env

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/hammelm/mempeek/internal/ast"
)

func TestAllocVarLocalVsGlobalScoping(t *testing.T) {
	e := New()
	loc := ast.Location{}

	g := e.AllocVar("x")
	if g == nil || g.IsLocal() {
		t.Fatalf("top-level alloc_var must be global")
	}
	g.Set(42)

	if err := e.EnterSubroutineContext(loc, "p", ast.Procedure); err != nil {
		t.Fatal(err)
	}
	l := e.AllocVar("y")
	if l == nil || !l.IsLocal() {
		t.Fatalf("alloc_var inside a subroutine context must be local")
	}

	// A plain (non-def) global is invisible by name from inside the body.
	if v := e.GetVar("x"); v != nil {
		t.Fatalf("plain global %v must not be visible inside a subroutine context", v)
	}

	e.SetSubroutineBody(ast.NewBlock(loc))
	e.CommitSubroutineContext()

	if e.GetVar("x") == nil {
		t.Fatalf("global x must be visible again after leaving the subroutine context")
	}
}

func TestAllocDefVarVisibleInsideSubroutineContext(t *testing.T) {
	e := New()
	loc := ast.Location{}

	d := e.AllocDefVar("BASE")
	if d == nil {
		t.Fatal("alloc_def_var failed")
	}
	d.Set(0x1000)

	if err := e.EnterSubroutineContext(loc, "p", ast.Procedure); err != nil {
		t.Fatal(err)
	}
	if v := e.GetVar("BASE"); v == nil || v.Get() != 0x1000 {
		t.Fatalf("a def must remain visible from inside a subroutine context")
	}
	e.AbortSubroutineContext()
}

func TestAllocGlobalVarInstallsLocalDelegate(t *testing.T) {
	e := New()
	loc := ast.Location{}

	if err := e.EnterSubroutineContext(loc, "p", ast.Procedure); err != nil {
		t.Fatal(err)
	}
	v := e.AllocGlobalVar("shared")
	if v == nil {
		t.Fatal("alloc_global_var failed")
	}
	v.Set(7)

	e.SetSubroutineBody(ast.NewBlock(loc))
	e.CommitSubroutineContext()

	if e.GetVar("shared") == nil || e.GetVar("shared").Get() != 7 {
		t.Fatalf("global installed via alloc_global_var must survive outside the body")
	}
}

func TestEnterSubroutineContextNamingConflicts(t *testing.T) {
	e := New()
	loc := ast.Location{}

	if err := e.EnterSubroutineContext(loc, "f", ast.Function); err != nil {
		t.Fatal(err)
	}
	e.SetSubroutineBody(ast.NewBlock(loc))
	e.CommitSubroutineContext()

	err := e.EnterSubroutineContext(loc, "f", ast.Procedure)
	ae, ok := err.(*ast.Error)
	if !ok || ae.Kind != ast.KindNamingConflict {
		t.Fatalf("got %v, want KindNamingConflict redefining a function as a procedure", err)
	}

	// Redefining "f" as another function is allowed (handled by Commit's
	// drop-and-replace, not a naming conflict).
	if err := e.EnterSubroutineContext(loc, "f", ast.Function); err != nil {
		t.Fatalf("same-kind redefinition must not conflict: %v", err)
	}
	e.AbortSubroutineContext()
}

func TestArrayFunctionCallBindsImplicitReturnParam(t *testing.T) {
	e := New()
	loc := ast.Location{}

	// defarray double(a[]) { dim return, size(a); return[i] = a[i]*2 for each i }
	if err := e.EnterSubroutineContext(loc, "double", ast.ArrayFunction); err != nil {
		t.Fatal(err)
	}
	e.SetSubroutineParam("a", true)

	aArr := e.AllocArray("a")
	retArr := e.AllocArray("return")
	i := e.AllocVar("i")

	body := ast.NewBlock(loc)
	cond := ast.NewBinaryOp(loc, nil, ast.OpLt, ast.NewVar(loc, i), ast.NewArraySize(loc, aArr))
	loopBody := ast.NewBlock(loc)
	elem := ast.NewArrayIndex(loc, nil, aArr, ast.NewVar(loc, i))
	doubled := ast.NewBinaryOp(loc, nil, ast.OpMul, elem, ast.NewConstant(loc, 2))
	loopBody.AddStatement(ast.NewAssignElement(loc, nil, retArr, ast.NewVar(loc, i), doubled))
	loopBody.AddStatement(ast.NewAssignScalar(loc, nil, i, ast.NewBinaryOp(loc, nil, ast.OpAdd, ast.NewVar(loc, i), ast.NewConstant(loc, 1))))
	w := ast.NewWhile(loc, nil, cond, loopBody)
	body.AddStatement(ast.NewDim(loc, nil, retArr, ast.NewArraySize(loc, aArr)))
	body.AddStatement(ast.NewAssignScalar(loc, nil, i, ast.NewConstant(loc, 0)))
	body.AddStatement(w)

	e.SetSubroutineBody(body)
	e.CommitSubroutineContext()

	lit := e.AllocArray("lit")
	list := ast.NewAssignList(loc, e, lit, []ast.Node{
		ast.NewConstant(loc, 1), ast.NewConstant(loc, 2), ast.NewConstant(loc, 3),
	})
	if _, err := list.Execute(e); err != nil {
		t.Fatal(err)
	}

	dest := e.AllocArray("dest")
	call, err := e.GetArrayFunc(loc, "double", dest, []ast.Node{ast.NewArraySize(loc, lit)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := call.Execute(e); err != nil {
		t.Fatal(err)
	}

	if dest.Size() != 3 {
		t.Fatalf("got size %d, want 3", dest.Size())
	}
	for idx, want := range []uint64{2, 4, 6} {
		v, _ := dest.Get(uint64(idx))
		if v != want {
			t.Fatalf("dest[%d] = %d, want %d", idx, v, want)
		}
	}
}

func TestParseRunOnceDedupesIdenticalFiles(t *testing.T) {
	e := New()
	calls := 0
	e.SetParser(parserFunc(func(env *Environment, loc ast.Location, content []byte) (ast.Node, error) {
		calls++
		return ast.NewBlock(loc), nil
	}))

	dir := t.TempDir()
	path := filepath.Join(dir, "shared.mp")
	if err := os.WriteFile(path, []byte("print(1)"), 0o644); err != nil {
		t.Fatal(err)
	}

	loc := ast.Location{}
	if _, err := e.Parse(loc, path, true, true); err != nil {
		t.Fatal(err)
	}
	node, err := e.Parse(loc, path, true, true)
	if err != nil {
		t.Fatal(err)
	}
	if node != nil {
		t.Fatalf("second run-once parse of the same content must be a no-op")
	}
	if calls != 1 {
		t.Fatalf("parser invoked %d times, want 1", calls)
	}
}

func TestParseRestoresWorkingDirectoryAfterFileParse(t *testing.T) {
	e := New()
	e.SetParser(parserFunc(func(env *Environment, loc ast.Location, content []byte) (ast.Node, error) {
		return ast.NewBlock(loc), nil
	}))

	start, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "f.mp")
	if err := os.WriteFile(path, []byte("print(1)"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := e.Parse(ast.Location{}, path, true, false); err != nil {
		t.Fatal(err)
	}

	end, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if end != start {
		t.Fatalf("working directory leaked: got %s, want %s", end, start)
	}
}

func TestParseFileNotFoundSearchesIncludePaths(t *testing.T) {
	e := New()
	e.SetParser(parserFunc(func(env *Environment, loc ast.Location, content []byte) (ast.Node, error) {
		return ast.NewBlock(loc), nil
	}))

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "lib.mp"), []byte("print(1)"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !e.AddIncludePath(dir) {
		t.Fatalf("AddIncludePath rejected an existing directory")
	}

	if _, err := e.Parse(ast.Location{}, "lib.mp", true, false); err != nil {
		t.Fatalf("expected include-path fallback to find lib.mp: %v", err)
	}

	if _, err := e.Parse(ast.Location{}, "missing.mp", true, false); err == nil {
		t.Fatalf("expected KindFileNotFound for a name not on any include path")
	}
}

func TestStdoutRedirect(t *testing.T) {
	e := New()
	var buf bytes.Buffer
	e.SetStdout(&buf)

	p := ast.NewPrint(ast.Location{}, e, []ast.PrintArg{{Text: "hi"}})
	if _, err := p.Execute(e); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "hi" {
		t.Fatalf("got %q, want %q", buf.String(), "hi")
	}
}

type parserFunc func(env *Environment, loc ast.Location, content []byte) (ast.Node, error)

func (f parserFunc) Parse(env *Environment, loc ast.Location, content []byte) (ast.Node, error) {
	return f(env, loc, content)
}
