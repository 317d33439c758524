package builtins

import (
	"strconv"
	"strings"

	"github.com/hammelm/mempeek/internal/ast"
	"github.com/hammelm/mempeek/internal/env"
	"github.com/hammelm/mempeek/internal/storage"
)

// stringArg resolves an argument node to its decoded string content. The
// argument must itself be array-valued (a string is represented as a
// NUL-terminated or width-filling sequence of words, per ast.GetString).
func stringArg(rt ast.Runtime, n ast.Node, loc ast.Location, pos int) (string, error) {
	ar, ok := n.(ast.ArrayResultNode)
	if !ok {
		return "", ast.NewError(ast.KindArgTypeMismatch, loc, "argument %d must be a string array", pos)
	}
	if _, err := n.Execute(rt); err != nil {
		return "", err
	}
	arr, ok := ar.ArrayResult(rt)
	if !ok {
		return "", ast.NewError(ast.KindArgTypeMismatch, loc, "argument %d must be a string array", pos)
	}
	return ast.GetString(arr), nil
}

//////////////////////////////////////////////////////////////////////////
// Scalar string builtins: strlen, strcmp, str2int, str2float
//////////////////////////////////////////////////////////////////////////

type stringScalarFunc struct {
	ast.Base
	args []ast.Node
	fn   func(rt ast.Runtime, loc ast.Location, args []ast.Node) (uint64, error)
}

func (n *stringScalarFunc) Execute(rt ast.Runtime) (uint64, error) {
	return n.fn(rt, n.Loc(), n.args)
}

// RegisterStringBuiltins wires the string scalar and array-function
// built-ins, matching the original's builtins_string.cpp registration
// list (a representative subset: the rest follow the identical pattern).
func RegisterStringBuiltins(e *env.Environment) {
	e.RegisterScalarBuiltin("strlen", func(e *env.Environment, loc ast.Location, args []ast.Node) (ast.Node, error) {
		if len(args) != 1 {
			return nil, ast.NewError(ast.KindSyntaxError, loc, "strlen expects 1 argument, got %d", len(args))
		}
		return &stringScalarFunc{Base: ast.NewBase(loc), args: args, fn: func(rt ast.Runtime, loc ast.Location, args []ast.Node) (uint64, error) {
			ar, ok := args[0].(ast.ArrayResultNode)
			if !ok {
				return 0, ast.NewError(ast.KindArgTypeMismatch, loc, "strlen argument must be a string array")
			}
			if _, err := args[0].Execute(rt); err != nil {
				return 0, err
			}
			arr, _ := ar.ArrayResult(rt)
			return ast.GetLength(arr), nil
		}}, nil
	})

	e.RegisterScalarBuiltin("strcmp", func(e *env.Environment, loc ast.Location, args []ast.Node) (ast.Node, error) {
		if len(args) != 2 {
			return nil, ast.NewError(ast.KindSyntaxError, loc, "strcmp expects 2 arguments, got %d", len(args))
		}
		return &stringScalarFunc{Base: ast.NewBase(loc), args: args, fn: func(rt ast.Runtime, loc ast.Location, args []ast.Node) (uint64, error) {
			a, err := stringArg(rt, args[0], loc, 0)
			if err != nil {
				return 0, err
			}
			b, err := stringArg(rt, args[1], loc, 1)
			if err != nil {
				return 0, err
			}
			return uint64(int64(strings.Compare(a, b))), nil
		}}, nil
	})

	e.RegisterScalarBuiltin("str2int", func(e *env.Environment, loc ast.Location, args []ast.Node) (ast.Node, error) {
		if len(args) != 1 {
			return nil, ast.NewError(ast.KindSyntaxError, loc, "str2int expects 1 argument, got %d", len(args))
		}
		return &stringScalarFunc{Base: ast.NewBase(loc), args: args, fn: func(rt ast.Runtime, loc ast.Location, args []ast.Node) (uint64, error) {
			s, err := stringArg(rt, args[0], loc, 0)
			if err != nil {
				return 0, err
			}
			v, ok := ast.ParseInt(s)
			if !ok {
				return 0, ast.NewError(ast.KindSyntaxError, loc, "str2int: %q is not a valid integer", s)
			}
			return v, nil
		}}, nil
	})

	e.RegisterScalarBuiltin("str2float", func(e *env.Environment, loc ast.Location, args []ast.Node) (ast.Node, error) {
		if len(args) != 1 {
			return nil, ast.NewError(ast.KindSyntaxError, loc, "str2float expects 1 argument, got %d", len(args))
		}
		return &stringScalarFunc{Base: ast.NewBase(loc), args: args, fn: func(rt ast.Runtime, loc ast.Location, args []ast.Node) (uint64, error) {
			s, err := stringArg(rt, args[0], loc, 0)
			if err != nil {
				return 0, err
			}
			v, ok := ast.ParseFloat(s)
			if !ok {
				return 0, ast.NewError(ast.KindSyntaxError, loc, "str2float: %q is not a valid float", s)
			}
			return v, nil
		}}, nil
	})

	registerArrayStringBuiltins(e)
}

//////////////////////////////////////////////////////////////////////////
// Array-valued string builtins: strcat, substr, int2str, hex2str, bin2str
//////////////////////////////////////////////////////////////////////////

// stringArrayFunc writes a freshly computed string into the caller-supplied
// destination array (args[0], bound by env.GetArrayFunc the same way a
// user-defined array-function's "return" parameter is bound) every time it
// executes, mirroring ast.String's non-one-shot Execute.
type stringArrayFunc struct {
	ast.Base
	dest     ast.Node
	rest     []ast.Node
	resolved storage.Array
	compute  func(rt ast.Runtime, loc ast.Location, rest []ast.Node) (string, error)
}

func newStringArrayFunc(loc ast.Location, args []ast.Node, compute func(ast.Runtime, ast.Location, []ast.Node) (string, error)) *stringArrayFunc {
	return &stringArrayFunc{Base: ast.NewBase(loc), dest: args[0], rest: args[1:], compute: compute}
}

func (n *stringArrayFunc) Execute(rt ast.Runtime) (uint64, error) {
	ar, ok := n.dest.(ast.ArrayResultNode)
	if !ok {
		return 0, ast.NewError(ast.KindArgTypeMismatch, n.Loc(), "destination must be an array")
	}
	if _, err := n.dest.Execute(rt); err != nil {
		return 0, err
	}
	arr, ok := ar.ArrayResult(rt)
	if !ok {
		return 0, ast.NewError(ast.KindArgTypeMismatch, n.Loc(), "destination must be an array")
	}
	s, err := n.compute(rt, n.Loc(), n.rest)
	if err != nil {
		return 0, err
	}
	ast.SetString(arr, s)
	n.resolved = arr
	return 0, nil
}

func (n *stringArrayFunc) ArrayResult(ast.Runtime) (storage.Array, bool) {
	if n.resolved == nil {
		return nil, false
	}
	return n.resolved, true
}

func registerArrayStringBuiltins(e *env.Environment) {
	e.RegisterArrayBuiltin("strcat", func(e *env.Environment, loc ast.Location, args []ast.Node) (ast.Node, error) {
		if len(args) != 3 {
			return nil, ast.NewError(ast.KindSyntaxError, loc, "strcat expects 2 arguments, got %d", len(args)-1)
		}
		return newStringArrayFunc(loc, args, func(rt ast.Runtime, loc ast.Location, rest []ast.Node) (string, error) {
			a, err := stringArg(rt, rest[0], loc, 0)
			if err != nil {
				return "", err
			}
			b, err := stringArg(rt, rest[1], loc, 1)
			if err != nil {
				return "", err
			}
			return a + b, nil
		}), nil
	})

	e.RegisterArrayBuiltin("substr", func(e *env.Environment, loc ast.Location, args []ast.Node) (ast.Node, error) {
		if len(args) != 4 {
			return nil, ast.NewError(ast.KindSyntaxError, loc, "substr expects 3 arguments, got %d", len(args)-1)
		}
		return newStringArrayFunc(loc, args, func(rt ast.Runtime, loc ast.Location, rest []ast.Node) (string, error) {
			s, err := stringArg(rt, rest[0], loc, 0)
			if err != nil {
				return "", err
			}
			start, err := rest[1].Execute(rt)
			if err != nil {
				return "", err
			}
			length, err := rest[2].Execute(rt)
			if err != nil {
				return "", err
			}
			if int(start) > len(s) {
				return "", nil
			}
			end := int(start) + int(length)
			if end > len(s) {
				end = len(s)
			}
			return s[start:end], nil
		}), nil
	})

	e.RegisterArrayBuiltin("int2str", func(e *env.Environment, loc ast.Location, args []ast.Node) (ast.Node, error) {
		if len(args) != 2 {
			return nil, ast.NewError(ast.KindSyntaxError, loc, "int2str expects 1 argument, got %d", len(args)-1)
		}
		return newStringArrayFunc(loc, args, func(rt ast.Runtime, loc ast.Location, rest []ast.Node) (string, error) {
			v, err := rest[0].Execute(rt)
			if err != nil {
				return "", err
			}
			return strconv.FormatUint(v, 10), nil
		}), nil
	})

	e.RegisterArrayBuiltin("signed2str", func(e *env.Environment, loc ast.Location, args []ast.Node) (ast.Node, error) {
		if len(args) != 2 {
			return nil, ast.NewError(ast.KindSyntaxError, loc, "signed2str expects 1 argument, got %d", len(args)-1)
		}
		return newStringArrayFunc(loc, args, func(rt ast.Runtime, loc ast.Location, rest []ast.Node) (string, error) {
			v, err := rest[0].Execute(rt)
			if err != nil {
				return "", err
			}
			return strconv.FormatInt(int64(v), 10), nil
		}), nil
	})

	e.RegisterArrayBuiltin("hex2str", func(e *env.Environment, loc ast.Location, args []ast.Node) (ast.Node, error) {
		if len(args) != 2 {
			return nil, ast.NewError(ast.KindSyntaxError, loc, "hex2str expects 1 argument, got %d", len(args)-1)
		}
		return newStringArrayFunc(loc, args, func(rt ast.Runtime, loc ast.Location, rest []ast.Node) (string, error) {
			v, err := rest[0].Execute(rt)
			if err != nil {
				return "", err
			}
			return strconv.FormatUint(v, 16), nil
		}), nil
	})

	e.RegisterArrayBuiltin("bin2str", func(e *env.Environment, loc ast.Location, args []ast.Node) (ast.Node, error) {
		if len(args) != 2 {
			return nil, ast.NewError(ast.KindSyntaxError, loc, "bin2str expects 1 argument, got %d", len(args)-1)
		}
		return newStringArrayFunc(loc, args, func(rt ast.Runtime, loc ast.Location, rest []ast.Node) (string, error) {
			v, err := rest[0].Execute(rt)
			if err != nil {
				return "", err
			}
			return strconv.FormatUint(v, 2), nil
		}), nil
	})

	e.RegisterArrayBuiltin("float2str", func(e *env.Environment, loc ast.Location, args []ast.Node) (ast.Node, error) {
		if len(args) != 2 {
			return nil, ast.NewError(ast.KindSyntaxError, loc, "float2str expects 1 argument, got %d", len(args)-1)
		}
		return newStringArrayFunc(loc, args, func(rt ast.Runtime, loc ast.Location, rest []ast.Node) (string, error) {
			v, err := rest[0].Execute(rt)
			if err != nil {
				return "", err
			}
			return strconv.FormatFloat(floatOf(v), 'g', -1, 64), nil
		}), nil
	})
}
