package parseapi

import (
	"os"
	"testing"

	"github.com/hammelm/mempeek/internal/ast"
	"github.com/hammelm/mempeek/internal/builtins"
	"github.com/hammelm/mempeek/internal/env"
)

// run parses src as a whole program and executes it against a fresh
// environment with the float and string builtins registered, returning the
// environment for assertions against its variables and arrays.
func run(t *testing.T, src string) *env.Environment {
	t.Helper()
	e := env.New()
	e.SetParser(Parser{})
	builtins.RegisterFloatBuiltins(e)
	builtins.RegisterStringBuiltins(e)
	node, err := e.Parse(ast.Location{File: "test"}, src, false, false)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := node.Execute(e); err != nil {
		t.Fatalf("execute: %v", err)
	}
	return e
}

func scalar(t *testing.T, e *env.Environment, name string) uint64 {
	t.Helper()
	v := e.GetVar(name)
	if v == nil {
		t.Fatalf("%q is not a defined variable", name)
	}
	return v.Get()
}

func arrayElem(t *testing.T, e *env.Environment, name string, i uint64) uint64 {
	t.Helper()
	arr := e.GetArray(name)
	if arr == nil {
		t.Fatalf("%q is not a defined array", name)
	}
	v, err := arr.Get(i)
	if err != nil {
		t.Fatalf("%s[%d]: %v", name, i, err)
	}
	return v
}

func TestArithmeticAndConstantFolding(t *testing.T) {
	e := run(t, `x := 2 + 3 * 4 - (1 << 2);`)
	if got := scalar(t, e, "x"); got != 10 {
		t.Fatalf("x = %d, want 10", got)
	}
}

func TestSignedComparisonAndDivision(t *testing.T) {
	e := run(t, `
		a := slt(-1, 1);
		b := sdiv(-7, 2);
		c := smod(-7, 2);
	`)
	if got := scalar(t, e, "a"); got != 1 {
		t.Fatalf("a = %d, want 1", got)
	}
	if got := int64(scalar(t, e, "b")); got != -3 {
		t.Fatalf("b = %d, want -3", got)
	}
	if got := int64(scalar(t, e, "c")); got != -1 {
		t.Fatalf("c = %d, want -1", got)
	}
}

func TestMaskRestriction(t *testing.T) {
	e := run(t, `x := mask8(0x1ff);`)
	if got := scalar(t, e, "x"); got != 0xff {
		t.Fatalf("x = %#x, want 0xff", got)
	}
}

func TestIfWhileFor(t *testing.T) {
	e := run(t, `
		total := 0;
		for i := 0 to 5 {
			total := total + i;
		}
		n := 0;
		while n < 3 {
			n := n + 1;
		}
		flag := 0;
		if total > 5 {
			flag := 1;
		} else {
			flag := 2;
		}
	`)
	if got := scalar(t, e, "total"); got != 15 {
		t.Fatalf("total = %d, want 15", got)
	}
	if got := scalar(t, e, "n"); got != 3 {
		t.Fatalf("n = %d, want 3", got)
	}
	if got := scalar(t, e, "flag"); got != 1 {
		t.Fatalf("flag = %d, want 1", got)
	}
}

func TestBreakInsideWhile(t *testing.T) {
	e := run(t, `
		n := 0;
		while 1 {
			n := n + 1;
			if n == 4 {
				break;
			}
		}
	`)
	if got := scalar(t, e, "n"); got != 4 {
		t.Fatalf("n = %d, want 4", got)
	}
}

func TestListAssignAndArrayIndex(t *testing.T) {
	e := run(t, `
		vals := {10, 20, 30};
		vals[1] := 99;
		s := size(vals);
		total := vals[0] + vals[1] + vals[2];
	`)
	if got := arrayElem(t, e, "vals", 1); got != 99 {
		t.Fatalf("vals[1] = %d, want 99", got)
	}
	if got := scalar(t, e, "s"); got != 3 {
		t.Fatalf("s = %d, want 3", got)
	}
	if got := scalar(t, e, "total"); got != 10+99+30 {
		t.Fatalf("total = %d, want %d", got, 10+99+30)
	}
}

func TestStringAssignIsArrayOfBytes(t *testing.T) {
	e := run(t, `msg := "hi";`)
	arr := e.GetArray("msg")
	if arr == nil {
		t.Fatal(`"msg" should be auto-declared as an array`)
	}
	if got := arrayElem(t, e, "msg", 0); got != 'h' {
		t.Fatalf("msg[0] = %d, want %d", got, 'h')
	}
	if got := arrayElem(t, e, "msg", 1); got != 'i' {
		t.Fatalf("msg[1] = %d, want %d", got, 'i')
	}
}

func TestArrayCopyFromBareIdentifier(t *testing.T) {
	e := run(t, `
		src := {1, 2, 3};
		dst := src;
	`)
	if got := arrayElem(t, e, "dst", 2); got != 3 {
		t.Fatalf("dst[2] = %d, want 3", got)
	}
}

func TestDefWithSizeAndRange(t *testing.T) {
	e := run(t, `def BASE := 0x1000 size 4 range 0x100;`)
	v := e.GetVar("BASE")
	if v == nil {
		t.Fatal("BASE should be defined")
	}
	if v.Get() != 0x1000 {
		t.Fatalf("BASE = %#x, want 0x1000", v.Get())
	}
	if v.Size() != 4 {
		t.Fatalf("BASE size = %d, want 4", v.Size())
	}
	if v.Range() != 0x100 {
		t.Fatalf("BASE range = %#x, want 0x100", v.Range())
	}
}

func TestDefFromCopiesStructMembers(t *testing.T) {
	e := run(t, `
		def REG := 0x2000;
		def REG.CTRL := 4;
		def ALIAS from REG;
	`)
	ctrl := e.GetVar("ALIAS.CTRL")
	if ctrl == nil {
		t.Fatal("ALIAS.CTRL should be defined as a struct member offset")
	}
	if ctrl.Get() != 0x2004 {
		t.Fatalf("ALIAS.CTRL = %#x, want 0x2004 (ALIAS + offset 4)", ctrl.Get())
	}
}

func TestDefprocAndDeffuncWithVarargs(t *testing.T) {
	e := run(t, `
		deffunc sum3(a, b, c) {
			return := a + b + c;
		}
		total := sum3(1, 2, 3);

		global result;
		defproc accumulate(...) {
			n := arg();
			i := 0;
			acc := 0;
			while i < n {
				acc := acc + arg(i);
				i := i + 1;
			}
			global result;
			result := acc;
		}
		accumulate(4, 5, 6);
	`)
	if got := scalar(t, e, "total"); got != 6 {
		t.Fatalf("total = %d, want 6", got)
	}
	if got := scalar(t, e, "result"); got != 15 {
		t.Fatalf("result = %d, want 15", got)
	}
}

func TestDefarrayBuildsArrayFromVarargs(t *testing.T) {
	e := run(t, `
		defarray collect(...) {
			n := arg();
			dim return, n;
			i := 0;
			while i < n {
				return[i] := arg(i);
				i := i + 1;
			}
		}
		vals := collect(7, 8, 9);
	`)
	if got := arrayElem(t, e, "vals", 0); got != 7 {
		t.Fatalf("vals[0] = %d, want 7", got)
	}
	if got := arrayElem(t, e, "vals", 2); got != 9 {
		t.Fatalf("vals[2] = %d, want 9", got)
	}
}

func TestImportRunsOnceAndIncludeAlwaysRuns(t *testing.T) {
	dir := t.TempDir()
	lib := dir + "/lib.mp"
	if err := os.WriteFile(lib, []byte("counter := counter + 1;\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	e := run(t, `
		counter := 0;
		import "`+lib+`";
		import "`+lib+`";
		include "`+lib+`";
	`)
	if got := scalar(t, e, "counter"); got != 2 {
		t.Fatalf("counter = %d, want 2 (one import + one include)", got)
	}
}

func TestMapPeekPoke(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "mempeek-device-*")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := f.Truncate(0x10000); err != nil {
		t.Fatal(err)
	}
	device := f.Name()

	e := run(t, `
		map(0x1000, 0x100, 0x1000, "`+device+`");
		poke32(0x1010, 0xdeadbeef);
		v := peek32(0x1010);
		poke8(0x1020, 0xff, 0x0f);
		m := peek8(0x1020);
	`)
	if got := scalar(t, e, "v"); got != 0xdeadbeef {
		t.Fatalf("v = %#x, want 0xdeadbeef", got)
	}
	if got := scalar(t, e, "m"); got != 0x0f {
		t.Fatalf("m = %#x, want 0x0f", got)
	}
}

func TestPrintStatementParsesWithoutExecutionError(t *testing.T) {
	run(t, `
		x := 42;
		print "x = ", x:d, " hex=", x:x32, "\n";
	`)
}

func TestExitStatementStopsLoop(t *testing.T) {
	e := env.New()
	e.SetParser(Parser{})
	node, err := e.Parse(ast.Location{File: "test"}, `
		n := 0;
		while 1 {
			n := n + 1;
			exit;
		}
	`, false, false)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := node.Execute(e); err != nil && !ast.IsAnySignal(err) {
		t.Fatalf("execute: %v", err)
	}
	if got := scalar(t, e, "n"); got != 1 {
		t.Fatalf("n = %d, want 1", got)
	}
}
