// Package builtins implements the interpreter's built-in scalar functions
// and array-functions, grounded on the original interpreter's
// builtins_float.cpp/builtins_string.cpp and registered into an
// env.Environment via RegisterFloatBuiltins and RegisterStringBuiltins.
// Both files there wrap their operands in a generic "evaluate children,
// apply a Go func, return the result" node — the same shape the original's
// templated builtin-node classes use — implemented here as scalarFunc for
// the float entries and as stringScalarFunc/stringArrayFunc for the string
// entries.
package builtins

import (
	"math"

	"github.com/hammelm/mempeek/internal/ast"
	"github.com/hammelm/mempeek/internal/env"
)

// scalarFunc evaluates its argument nodes left to right and applies fn to
// the resulting values. It never constant-folds: some builtins (string
// ones especially) read array contents that can change between calls, so
// folding is left to the individual arg expressions rather than assumed
// here.
type scalarFunc struct {
	ast.Base
	args []ast.Node
	fn   func(vals []uint64) (uint64, error)
}

func newScalarFunc(loc ast.Location, e *env.Environment, args []ast.Node, fn func([]uint64) (uint64, error)) *scalarFunc {
	n := &scalarFunc{Base: ast.NewBase(loc), fn: fn}
	for _, a := range args {
		n.args = append(n.args, n.AddChild(e, a))
	}
	return n
}

func (n *scalarFunc) Execute(rt ast.Runtime) (uint64, error) {
	vals := make([]uint64, len(n.args))
	for i, a := range n.args {
		v, err := a.Execute(rt)
		if err != nil {
			return 0, err
		}
		vals[i] = v
	}
	return n.fn(vals)
}

func bitsOf(f float64) uint64  { return math.Float64bits(f) }
func floatOf(v uint64) float64 { return math.Float64frombits(v) }

// RegisterFloatBuiltins wires every fN scalar math function into e,
// matching the original's builtins_float.cpp registration list.
func RegisterFloatBuiltins(e *env.Environment) {
	reg1 := func(name string, f func(float64) float64) {
		e.RegisterScalarBuiltin(name, func(e *env.Environment, loc ast.Location, args []ast.Node) (ast.Node, error) {
			if len(args) != 1 {
				return nil, ast.NewError(ast.KindSyntaxError, loc, "%s expects 1 argument, got %d", name, len(args))
			}
			return newScalarFunc(loc, e, args, func(vals []uint64) (uint64, error) {
				return bitsOf(f(floatOf(vals[0]))), nil
			}), nil
		})
	}
	reg2 := func(name string, f func(a, b float64) float64) {
		e.RegisterScalarBuiltin(name, func(e *env.Environment, loc ast.Location, args []ast.Node) (ast.Node, error) {
			if len(args) != 2 {
				return nil, ast.NewError(ast.KindSyntaxError, loc, "%s expects 2 arguments, got %d", name, len(args))
			}
			return newScalarFunc(loc, e, args, func(vals []uint64) (uint64, error) {
				return bitsOf(f(floatOf(vals[0]), floatOf(vals[1]))), nil
			}), nil
		})
	}

	e.RegisterScalarBuiltin("int2float", func(e *env.Environment, loc ast.Location, args []ast.Node) (ast.Node, error) {
		if len(args) != 1 {
			return nil, ast.NewError(ast.KindSyntaxError, loc, "int2float expects 1 argument, got %d", len(args))
		}
		return newScalarFunc(loc, e, args, func(vals []uint64) (uint64, error) {
			return bitsOf(float64(int64(vals[0]))), nil
		}), nil
	})
	e.RegisterScalarBuiltin("float2int", func(e *env.Environment, loc ast.Location, args []ast.Node) (ast.Node, error) {
		if len(args) != 1 {
			return nil, ast.NewError(ast.KindSyntaxError, loc, "float2int expects 1 argument, got %d", len(args))
		}
		return newScalarFunc(loc, e, args, func(vals []uint64) (uint64, error) {
			return uint64(int64(floatOf(vals[0]))), nil
		}), nil
	})

	reg2("fadd", func(a, b float64) float64 { return a + b })
	reg2("fsub", func(a, b float64) float64 { return a - b })
	reg2("fmul", func(a, b float64) float64 { return a * b })
	reg2("fdiv", func(a, b float64) float64 { return a / b })
	reg2("fpow", math.Pow)

	reg1("fsqrt", math.Sqrt)
	reg1("flog", math.Log)
	reg1("fexp", math.Exp)
	reg1("fsin", math.Sin)
	reg1("fcos", math.Cos)
	reg1("ftan", math.Tan)
	reg1("fasin", math.Asin)
	reg1("facos", math.Acos)
	reg1("fatan", math.Atan)
	reg1("fabs", math.Abs)
	reg1("ffloor", math.Floor)
	reg1("fceil", math.Ceil)
	reg1("fround", math.Round)
}
