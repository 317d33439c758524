// Package env implements the Environment Facade: the single stateful
// object a running interpreter session owns. It is the concrete
// ast.Runtime the execution tree calls back into, and it is also the
// allocation/lookup/subroutine-context surface the parser front end drives
// while building that tree, grounded on the original interpreter's
// Environment class (environment.h/.cpp).
package env

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/hammelm/mempeek/internal/ast"
	"github.com/hammelm/mempeek/internal/importset"
	"github.com/hammelm/mempeek/internal/mapping"
	"github.com/hammelm/mempeek/internal/storage"
	"github.com/hammelm/mempeek/internal/subroutine"
)

// BuiltinFactory constructs a node for a built-in scalar function or
// array-function call, given its already-evaluated-or-folded argument
// nodes. Registered by internal/builtins at startup.
type BuiltinFactory func(env *Environment, loc ast.Location, args []ast.Node) (ast.Node, error)

// Parser is the recursive-descent front end (internal/parseapi) that turns
// source text into an execution tree, driving the Environment's
// allocation/lookup/subroutine-context methods as it goes. Environment only
// depends on this narrow interface; parseapi depends on Environment, never
// the reverse.
type Parser interface {
	Parse(env *Environment, loc ast.Location, content []byte) (ast.Node, error)
}

type vararg struct {
	isArray bool
	value   uint64
	arr     storage.Array
}

// Environment owns every piece of interpreter state: global variable and
// array storage, device mappings, the three subroutine registries, the
// built-in function tables, include-path and run-once-import bookkeeping,
// and the default word-size/print-modifier stacks a nested import pushes
// and pops around itself.
type Environment struct {
	globalVars *storage.VarManager
	globalArrs *storage.ArrManager

	mappings *mapping.Engine

	procedures *subroutine.Registry
	functions  *subroutine.Registry
	arrayFuncs *subroutine.Registry

	scalarBuiltins map[string]BuiltinFactory
	arrayBuiltins  map[string]BuiltinFactory

	// subroutine-build context: non-nil while a defproc/deffunc/defarray
	// body is being parsed.
	ctxKind     ast.SubroutineKind
	ctxActive   bool
	ctxRegistry *subroutine.Registry
	ctxName     string
	localVars   *storage.VarManager
	localArrs   *storage.ArrManager

	includePaths []string
	imports      *importset.Set
	parser       Parser

	defaultWordSize int
	wordSizeStack   []int

	defaultPrintMod uint64
	printModStack   []uint64

	varargs [][]vararg

	terminated atomic.Bool

	stdout io.Writer
	start  time.Time
}

// defaultWordSizeBytes mirrors Environment::s_DefaultSize: pointer-width
// dependent, 8 bytes (64-bit) on every modern amd64/arm64 build target.
const defaultWordSizeBytes = 8

// defaultPrintModifier packs ast.PrintModType into its low byte and
// ast.PrintWidth into the next, mirroring the original's MOD_HEX |
// MOD_WORDSIZE default (hex, current word size). It is opaque to the
// execution tree itself — Print statements carry their own resolved
// ModType/ModWidth per argument — and exists only so the parser front end
// can read/push/pop "whatever print defaulted to" across nested imports.
const defaultPrintModifier = uint64(ast.ModHex) | uint64(ast.ModWordSize)<<8

// New returns a freshly wired Environment: empty global storage, an empty
// mapping engine, three empty subroutine registries, no built-ins
// registered (the caller wires internal/builtins in), stdout defaulting to
// os.Stdout, and the default word size/print modifier matching the
// original interpreter's amd64 defaults.
func New() *Environment {
	e := &Environment{
		globalVars:      storage.NewVarManager(),
		globalArrs:      storage.NewArrManager(),
		mappings:        mapping.NewEngine(),
		procedures:      subroutine.NewRegistry(ast.Procedure),
		functions:       subroutine.NewRegistry(ast.Function),
		arrayFuncs:      subroutine.NewRegistry(ast.ArrayFunction),
		scalarBuiltins:  make(map[string]BuiltinFactory),
		arrayBuiltins:   make(map[string]BuiltinFactory),
		imports:         importset.New(),
		defaultWordSize: defaultWordSizeBytes * 8,
		defaultPrintMod: defaultPrintModifier,
		stdout:          os.Stdout,
		start:           time.Now(),
	}
	storage.DefaultSizeFunc = func() int { return e.defaultWordSize / 8 }
	return e
}

// SetParser wires the recursive-descent front end used by Parse.
func (e *Environment) SetParser(p Parser) { e.parser = p }

// RegisterScalarBuiltin adds a built-in scalar function. No naming-conflict
// check is made here: a later registration under the same name replaces the
// earlier one. Built-ins are wired once at startup before any program parses.
func (e *Environment) RegisterScalarBuiltin(name string, f BuiltinFactory) {
	e.scalarBuiltins[name] = f
}

// RegisterArrayBuiltin adds a built-in array-function.
func (e *Environment) RegisterArrayBuiltin(name string, f BuiltinFactory) {
	e.arrayBuiltins[name] = f
}

// SetStdout redirects interpreter output (print statements, REPL echo).
func (e *Environment) SetStdout(w io.Writer) { e.stdout = w }

//////////////////////////////////////////////////////////////////////////
// ast.Runtime
//////////////////////////////////////////////////////////////////////////

func (e *Environment) PushVarargFrame() { e.varargs = append(e.varargs, nil) }

func (e *Environment) AppendVarargValue(v uint64) {
	top := len(e.varargs) - 1
	e.varargs[top] = append(e.varargs[top], vararg{value: v})
}

func (e *Environment) AppendVarargArray(a storage.Array) {
	top := len(e.varargs) - 1
	e.varargs[top] = append(e.varargs[top], vararg{isArray: true, arr: a})
}

func (e *Environment) PopVarargFrame() { e.varargs = e.varargs[:len(e.varargs)-1] }

func (e *Environment) NumVarargs() int {
	if len(e.varargs) == 0 {
		return 0
	}
	return len(e.varargs[len(e.varargs)-1])
}

func (e *Environment) VarargValue(i int) (uint64, bool) {
	v := e.varargs[len(e.varargs)-1][i]
	return v.value, !v.isArray
}

func (e *Environment) VarargArray(i int) (storage.Array, bool) {
	v := e.varargs[len(e.varargs)-1][i]
	return v.arr, v.isArray
}

func (e *Environment) VarargIsArray(i int) bool {
	return e.varargs[len(e.varargs)-1][i].isArray
}

// FlushVarargs empties the current top frame without popping it, used when
// a builder has staged varargs it decides not to keep.
func (e *Environment) FlushVarargs() {
	if len(e.varargs) == 0 {
		return
	}
	e.varargs[len(e.varargs)-1] = nil
}

func (e *Environment) Mappings() *mapping.Engine { return e.mappings }

func (e *Environment) DefaultWordSize() int { return e.defaultWordSize }

func (e *Environment) SetDefaultWordSize(size int) { e.defaultWordSize = size }

func (e *Environment) DefaultPrintModifier() uint64 { return e.defaultPrintMod }

func (e *Environment) SetDefaultPrintModifier(mod uint64) { e.defaultPrintMod = mod }

func (e *Environment) Terminated() bool { return e.terminated.Load() }

func (e *Environment) SetTerminate() { e.terminated.Store(true) }

func (e *Environment) ClearTerminate() { e.terminated.Store(false) }

func (e *Environment) Stdout() io.Writer { return e.stdout }

func (e *Environment) NowMicros() uint64 { return uint64(time.Since(e.start).Microseconds()) }

func (e *Environment) SleepMicros(micros uint64) { time.Sleep(time.Duration(micros) * time.Microsecond) }

//////////////////////////////////////////////////////////////////////////
// Default word size / print modifier stacks
//////////////////////////////////////////////////////////////////////////

// PushDefaultSize saves the current default word size, restored by
// PopDefaultSize. Scoped around a nested file import so a pragma inside it
// does not leak back to the importer.
func (e *Environment) PushDefaultSize() { e.wordSizeStack = append(e.wordSizeStack, e.defaultWordSize) }

func (e *Environment) PopDefaultSize() {
	n := len(e.wordSizeStack) - 1
	e.defaultWordSize = e.wordSizeStack[n]
	e.wordSizeStack = e.wordSizeStack[:n]
}

func (e *Environment) PushDefaultModifier() { e.printModStack = append(e.printModStack, e.defaultPrintMod) }

func (e *Environment) PopDefaultModifier() {
	n := len(e.printModStack) - 1
	e.defaultPrintMod = e.printModStack[n]
	e.printModStack = e.printModStack[:n]
}

//////////////////////////////////////////////////////////////////////////
// Variable / array allocation
//////////////////////////////////////////////////////////////////////////

// AllocDefVar allocates or returns a compile-time constant slot ("A.m"
// dotted names allocate struct members of an existing def A).
func (e *Environment) AllocDefVar(name string) storage.Var {
	return e.globalVars.AllocDef(name)
}

// AllocVar allocates name as a local inside the current subroutine context
// (fails if a global def already owns the name), or as a global otherwise.
func (e *Environment) AllocVar(name string) storage.Var {
	if e.localVars != nil {
		if v := e.globalVars.Get(name); v != nil && v.IsDef() {
			return nil
		}
		return e.localVars.AllocLocal(name)
	}
	return e.globalVars.AllocGlobal(name)
}

// AllocGlobalVar allocates name as a global, installing a local forwarding
// delegate under the same name if a subroutine context is active (so
// "global x" inside a body still resolves to a local-looking slot that
// forwards to the shared global cell).
func (e *Environment) AllocGlobalVar(name string) storage.Var {
	v := e.globalVars.AllocGlobal(name)
	if v != nil && e.localVars != nil {
		return e.localVars.AllocDelegate(name, v)
	}
	return v
}

// AllocStaticVar allocates a persistent-across-calls slot: a global-class
// cell inside the active local manager (distinct from both an ordinary
// local, which resets every call, and an ordinary global, which is visible
// under this name outside the subroutine too).
func (e *Environment) AllocStaticVar(name string) storage.Var {
	if e.localVars != nil {
		return e.localVars.AllocGlobal(name)
	}
	return e.globalVars.AllocGlobal(name)
}

// AllocArray allocates name as a local array inside the current subroutine
// context, or as a global array otherwise.
func (e *Environment) AllocArray(name string) storage.Array {
	if e.localArrs != nil {
		return e.localArrs.AllocLocal(name)
	}
	return e.globalArrs.AllocGlobal(name)
}

// AllocGlobalArray is the array counterpart of AllocGlobalVar.
func (e *Environment) AllocGlobalArray(name string) storage.Array {
	a := e.globalArrs.AllocGlobal(name)
	if a != nil && e.localArrs != nil {
		return e.localArrs.AllocDelegate(name, a)
	}
	return a
}

// AllocStaticArray is the array counterpart of AllocStaticVar.
func (e *Environment) AllocStaticArray(name string) storage.Array {
	if e.localArrs != nil {
		return e.localArrs.AllocGlobal(name)
	}
	return e.globalArrs.AllocGlobal(name)
}

// AllocRefArray allocates a by-reference array parameter slot in whichever
// array manager is currently active.
func (e *Environment) AllocRefArray(name string) *storage.RefArray {
	if e.localArrs != nil {
		return e.localArrs.AllocRef(name)
	}
	return e.globalArrs.AllocRef(name)
}

// GetVar resolves name for a read: a local binding always wins; absent
// one, only a global DEF (not a plain global) is visible from inside a
// subroutine context, matching the original's scoping rule that undeclared
// globals never leak into a body by name alone.
func (e *Environment) GetVar(name string) storage.Var {
	if e.localVars != nil {
		if v := e.localVars.Get(name); v != nil {
			return v
		}
		if v := e.globalVars.Get(name); v != nil && v.IsDef() {
			return v
		}
		return nil
	}
	return e.globalVars.Get(name)
}

// GetArray resolves name for a read: local first, then global.
func (e *Environment) GetArray(name string) storage.Array {
	if e.localArrs != nil {
		if a := e.localArrs.Get(name); a != nil {
			return a
		}
	}
	return e.globalArrs.Get(name)
}

// GetAutocompletion lists every name visible right now with the given
// prefix: built-ins, user functions and array-functions (procedures are
// skipped — they read more like keywords than values), plus whichever
// variable/array scopes are currently active.
func (e *Environment) GetAutocompletion(prefix string) []string {
	var out []string
	for name := range e.scalarBuiltins {
		if hasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	for name := range e.arrayBuiltins {
		if hasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	out = append(out, e.functions.GetAutocompletion(prefix)...)
	out = append(out, e.arrayFuncs.GetAutocompletion(prefix)...)
	out = append(out, e.globalVars.GetAutocompletion(prefix)...)
	if e.localVars != nil {
		out = append(out, e.localVars.GetAutocompletion(prefix)...)
	}
	out = append(out, e.globalArrs.GetAutocompletion(prefix)...)
	if e.localArrs != nil {
		out = append(out, e.localArrs.GetAutocompletion(prefix)...)
	}
	return out
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// GetStructMembers lists the member suffixes of a def'd struct.
func (e *Environment) GetStructMembers(name string) []string {
	return e.globalVars.GetStructMembers(name)
}

//////////////////////////////////////////////////////////////////////////
// Memory mappings
//////////////////////////////////////////////////////////////////////////

// MapMemory creates (or idempotently reuses) a device mapping. mapAddr is
// the logical lookup key; pass nil to default it to physAddr.
func (e *Environment) MapMemory(physAddr uint64, mapAddr *uint64, size uint64, device string) (*mapping.Mapping, error) {
	return e.mappings.Map(physAddr, mapAddr, size, device)
}

// GetMapping looks up the mapping covering [addr, addr+size).
func (e *Environment) GetMapping(addr, size uint64) *mapping.Mapping {
	return e.mappings.Lookup(addr, size)
}

//////////////////////////////////////////////////////////////////////////
// Subroutine build context
//////////////////////////////////////////////////////////////////////////

// EnterSubroutineContext begins a defproc/deffunc/defarray build: name
// must not collide with a built-in or with any committed subroutine of a
// different kind (same-kind collisions are allowed — Commit drops and
// replaces the prior definition).
func (e *Environment) EnterSubroutineContext(loc ast.Location, name string, kind ast.SubroutineKind) error {
	if e.ctxActive {
		return ast.NewError(ast.KindSyntaxError, loc, "subroutine definitions cannot nest")
	}
	if _, ok := e.scalarBuiltins[name]; ok {
		return ast.NewError(ast.KindNamingConflict, loc, "%q is a built-in function", name)
	}
	if _, ok := e.arrayBuiltins[name]; ok {
		return ast.NewError(ast.KindNamingConflict, loc, "%q is a built-in array-function", name)
	}

	var reg *subroutine.Registry
	switch kind {
	case ast.Procedure:
		if e.functions.Has(name) || e.arrayFuncs.Has(name) {
			return ast.NewError(ast.KindNamingConflict, loc, "%q is already defined as a function or array-function", name)
		}
		reg = e.procedures
	case ast.Function:
		if e.procedures.Has(name) || e.arrayFuncs.Has(name) {
			return ast.NewError(ast.KindNamingConflict, loc, "%q is already defined as a procedure or array-function", name)
		}
		reg = e.functions
	case ast.ArrayFunction:
		if e.procedures.Has(name) || e.functions.Has(name) {
			return ast.NewError(ast.KindNamingConflict, loc, "%q is already defined as a procedure or function", name)
		}
		reg = e.arrayFuncs
	}

	reg.Begin(loc, name)
	e.ctxActive = true
	e.ctxKind = kind
	e.ctxRegistry = reg
	e.ctxName = name
	e.localVars = reg.PendingVars()
	e.localArrs = reg.PendingArrays()
	return nil
}

func (e *Environment) SetSubroutineParam(name string, isArray bool) {
	e.ctxRegistry.SetParam(name, isArray)
}

func (e *Environment) SetSubroutineBody(body ast.Node) {
	e.ctxRegistry.SetBody(body)
}

func (e *Environment) SetSubroutineVarargs() {
	e.ctxRegistry.SetVarargs()
}

// CommitSubroutineContext publishes the in-progress subroutine and clears
// local scope.
func (e *Environment) CommitSubroutineContext() {
	e.ctxRegistry.Commit()
	e.clearSubroutineContext()
}

// AbortSubroutineContext discards the in-progress build, e.g. on a parse
// error partway through a body.
func (e *Environment) AbortSubroutineContext() {
	if e.ctxActive {
		e.ctxRegistry.Abort()
	}
	e.clearSubroutineContext()
}

func (e *Environment) clearSubroutineContext() {
	e.ctxActive = false
	e.ctxRegistry = nil
	e.ctxName = ""
	e.localVars = nil
	e.localArrs = nil
}

func (e *Environment) GetProcedure(loc ast.Location, name string, args []ast.Node) (ast.Node, error) {
	return e.procedures.Get(loc, e, name, args)
}

// GetFunction resolves a scalar call: built-ins shadow user-defined
// functions of the same name, matching the original's lookup order.
func (e *Environment) GetFunction(loc ast.Location, name string, args []ast.Node) (ast.Node, error) {
	if f, ok := e.scalarBuiltins[name]; ok {
		return f(e, loc, args)
	}
	return e.functions.Get(loc, e, name, args)
}

// GetArrayFunc resolves an array-function call. retArr is the caller's
// destination array, passed as the implicit args[0] ahead of the declared
// arguments, matching how the array-function's own "return" parameter was
// registered by Registry.Begin.
func (e *Environment) GetArrayFunc(loc ast.Location, name string, retArr storage.Array, args []ast.Node) (ast.Node, error) {
	retNode := &boundArray{loc: loc, arr: retArr}
	full := append([]ast.Node{retNode}, args...)

	if f, ok := e.arrayBuiltins[name]; ok {
		return f(e, loc, full)
	}
	return e.arrayFuncs.Get(loc, e, name, full)
}

func (e *Environment) DropProcedure(name string) bool {
	if !e.procedures.Has(name) {
		return false
	}
	e.procedures.Drop(name)
	return true
}

func (e *Environment) DropFunction(name string) bool {
	if !e.functions.Has(name) {
		return false
	}
	e.functions.Drop(name)
	return true
}

// boundArray is a zero-argument ast.ArrayResultNode wrapping an already
// resolved storage.Array, used to splice a caller-supplied destination
// array into an argument list built before the call exists.
type boundArray struct {
	loc ast.Location
	arr storage.Array
}

func (b *boundArray) Loc() ast.Location    { return b.loc }
func (b *boundArray) IsConstant() bool     { return false }
func (b *boundArray) Execute(ast.Runtime) (uint64, error) { return 0, nil }
func (b *boundArray) ArrayResult(ast.Runtime) (storage.Array, bool) { return b.arr, true }

//////////////////////////////////////////////////////////////////////////
// Include paths, run-once import de-dup, and Parse
//////////////////////////////////////////////////////////////////////////

// AddIncludePath records dir as a search root for bare (non-absolute)
// import filenames, after resolving it to an absolute, existing directory.
func (e *Environment) AddIncludePath(dir string) bool {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return false
	}
	e.includePaths = append(e.includePaths, abs)
	return true
}

// Parse reads str (a file path when isFile is true, otherwise raw source
// text) and hands its content to the wired Parser. File parses are scoped:
// the working directory is switched to the file's own directory for the
// duration (so relative imports inside it resolve against its location),
// and the default word-size/print-modifier are pushed/popped around it so
// a nested file's pragmas cannot leak back to the caller. When runOnce is
// true and this exact content was already imported, Parse is a silent
// no-op returning a nil node.
func (e *Environment) Parse(loc ast.Location, str string, isFile, runOnce bool) (ast.Node, error) {
	if !isFile {
		return e.parseContent(loc, []byte(str), runOnce)
	}

	path, err := e.resolveIncludePath(str)
	if err != nil {
		return nil, ast.NewError(ast.KindFileNotFound, loc, "%s: %v", str, err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, ast.NewError(ast.KindFileNotFound, loc, "%s: %v", path, err)
	}

	if runOnce && e.imports.Seen(content) {
		return nil, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, ast.NewError(ast.KindFileNotFound, loc, "getwd: %v", err)
	}
	if err := os.Chdir(filepath.Dir(path)); err != nil {
		return nil, ast.NewError(ast.KindFileNotFound, loc, "chdir %s: %v", filepath.Dir(path), err)
	}

	e.PushDefaultSize()
	e.PushDefaultModifier()

	added := false
	if runOnce {
		added = e.imports.Add(content)
	}

	node, perr := e.runParser(ast.Location{File: path, FirstLine: loc.FirstLine, LastLine: loc.LastLine}, content)

	e.PopDefaultModifier()
	e.PopDefaultSize()
	_ = os.Chdir(cwd)

	if perr != nil {
		if added {
			e.imports.Remove(content)
		}
		if e.ctxActive {
			e.AbortSubroutineContext()
		}
		return nil, perr
	}
	return node, nil
}

func (e *Environment) parseContent(loc ast.Location, content []byte, runOnce bool) (ast.Node, error) {
	if runOnce && e.imports.Seen(content) {
		return nil, nil
	}
	added := false
	if runOnce {
		added = e.imports.Add(content)
	}
	node, err := e.runParser(loc, content)
	if err != nil {
		if added {
			e.imports.Remove(content)
		}
		if e.ctxActive {
			e.AbortSubroutineContext()
		}
		return nil, err
	}
	return node, nil
}

func (e *Environment) runParser(loc ast.Location, content []byte) (ast.Node, error) {
	if e.parser == nil {
		return nil, fmt.Errorf("env: no parser wired")
	}
	return e.parser.Parse(e, loc, content)
}

// resolveIncludePath finds name directly, then under each include path in
// order, returning the first existing candidate.
func (e *Environment) resolveIncludePath(name string) (string, error) {
	if _, err := os.Stat(name); err == nil {
		return name, nil
	}
	for _, dir := range e.includePaths {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("not found in . or %d include path(s)", len(e.includePaths))
}

//////////////////////////////////////////////////////////////////////////
// Integer / float literal parsing
//////////////////////////////////////////////////////////////////////////

// ParseInt delegates to the execution tree's own literal scanner, shared by
// both the parser front end and any builtin that accepts a numeric string.
func ParseInt(s string) (uint64, bool) { return ast.ParseInt(s) }

// ParseFloat delegates to the execution tree's own literal scanner.
func ParseFloat(s string) (uint64, bool) { return ast.ParseFloat(s) }
