// Package subroutine implements the Subroutine Registry: the strong
// owner of every compiled procedure/function/array-function body. A
// Registry instantiates ast.Call nodes carrying only a weak.Pointer back
// into here, so dropping or redefining an entry cannot leak call sites
// and cannot keep a stale body reachable through the tree it used to
// back.
package subroutine

import (
	"weak"

	"github.com/hammelm/mempeek/internal/ast"
	"github.com/hammelm/mempeek/internal/storage"
)

// Registry holds every committed subroutine of one kind (procedures,
// functions, or array-functions), plus the single in-progress build.
type Registry struct {
	kind    ast.SubroutineKind
	entries map[string]*ast.Subroutine

	pending     *ast.Subroutine
	pendingName string
}

// NewRegistry returns an empty registry for the given kind.
func NewRegistry(kind ast.SubroutineKind) *Registry {
	return &Registry{kind: kind, entries: make(map[string]*ast.Subroutine)}
}

// Has reports whether name is already committed in this registry.
func (r *Registry) Has(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// Begin starts a two-phase build. Name-collision checks against sibling
// registries and builtins are the Environment Facade's job; Begin only
// sets up this registry's fresh local storage.
func (r *Registry) Begin(loc ast.Location, name string) {
	sub := &ast.Subroutine{
		Kind:   r.kind,
		Loc:    loc,
		Name:   name,
		Vars:   storage.NewVarManager(),
		Arrays: storage.NewArrManager(),
	}
	switch r.kind {
	case ast.Function:
		sub.RetVal = sub.Vars.AllocLocal("return")
	case ast.ArrayFunction:
		sub.RetArr = sub.Arrays.AllocRef("return")
		sub.Params = append(sub.Params, ast.Param{Name: "return", IsArray: true})
	}
	r.pending = sub
	r.pendingName = name
}

// SetParam declares the next parameter, in declaration order.
func (r *Registry) SetParam(name string, isArray bool) {
	if isArray {
		r.pending.Arrays.AllocRef(name)
	} else {
		r.pending.Vars.AllocLocal(name)
	}
	r.pending.Params = append(r.pending.Params, ast.Param{Name: name, IsArray: isArray})
}

// SetVarargs flags that this subroutine accepts trailing arguments beyond
// its declared parameters.
func (r *Registry) SetVarargs() {
	r.pending.HasVarargs = true
}

// PendingVars returns the in-progress build's local variable manager, so
// the Environment Facade can make it the active local scope while the
// parser front end walks the subroutine's body.
func (r *Registry) PendingVars() *storage.VarManager {
	if r.pending == nil {
		return nil
	}
	return r.pending.Vars
}

// PendingArrays is the array counterpart of PendingVars.
func (r *Registry) PendingArrays() *storage.ArrManager {
	if r.pending == nil {
		return nil
	}
	return r.pending.Arrays
}

// SetBody stores the execution-tree root for the pending subroutine.
func (r *Registry) SetBody(root ast.Node) {
	r.pending.Body = root
}

// Commit publishes the pending subroutine under its name, dropping and
// replacing whatever was previously committed there (if anything).
func (r *Registry) Commit() {
	if old, ok := r.entries[r.pendingName]; ok {
		old.Drop()
	}
	r.entries[r.pendingName] = r.pending
	r.pending = nil
	r.pendingName = ""
}

// Abort discards the pending build without publishing it.
func (r *Registry) Abort() {
	r.pending = nil
	r.pendingName = ""
}

// Drop removes name from the registry and marks its subroutine dropped,
// so outstanding calls raise KindDroppedSubroutine.
func (r *Registry) Drop(name string) {
	if sub, ok := r.entries[name]; ok {
		sub.Drop()
		delete(r.entries, name)
	}
}

// Get instantiates a call node against the committed subroutine name,
// checking arity and argument kinds: array parameters require an argument
// that resolves to an array, scalar parameters require a plain expression,
// and trailing varargs (when the subroutine declared has_varargs) accept
// either form.
//
// For an array-function, sub.Params[0] is the implicit "return"
// parameter: the caller (the Environment Facade) must supply its
// destination array as args[0] — typically a freshly allocated temp
// array it then exposes to the wider expression tree via ArrayBlock —
// exactly like any other by-reference array argument.
func (r *Registry) Get(loc ast.Location, rt ast.Runtime, name string, args []ast.Node) (ast.Node, error) {
	sub, ok := r.entries[name]
	if !ok {
		return nil, ast.NewError(ast.KindUndefinedVar, loc, "undefined subroutine %q", name)
	}

	minArgs := len(sub.Params)
	if sub.HasVarargs {
		if len(args) < minArgs {
			return nil, ast.NewError(ast.KindSyntaxError, loc, "%q expects at least %d arguments, got %d", name, minArgs, len(args))
		}
	} else if len(args) != minArgs {
		return nil, ast.NewError(ast.KindSyntaxError, loc, "%q expects %d arguments, got %d", name, minArgs, len(args))
	}

	for i, p := range sub.Params {
		if i >= len(args) {
			break
		}
		if p.IsArray {
			if _, ok := args[i].(ast.ArrayResultNode); !ok {
				return nil, ast.NewError(ast.KindArgTypeMismatch, loc, "argument %d to %q must be an array", i, name)
			}
		}
	}

	return ast.NewCall(loc, rt, sub.Kind, name, weak.Make(sub), sub.Params, args), nil
}

// GetAutocompletion lists committed names with the given prefix.
func (r *Registry) GetAutocompletion(prefix string) []string {
	var out []string
	for name := range r.entries {
		if len(name) >= len(prefix) && name[:len(prefix)] == prefix {
			out = append(out, name)
		}
	}
	return out
}
