package ast

import (
	"weak"

	"github.com/hammelm/mempeek/internal/storage"
)

// Call invokes a procedure, function, or array-function. It holds only a
// weak reference to the compiled Subroutine: the Registry that owns the
// strong reference can redefine or drop the subroutine (re-import,
// reassignment) without Call keeping a stale copy alive. If the weak
// pointer fails to resolve at execute time the call raises
// KindDroppedSubroutine rather than running against a stale body.
type Call struct {
	Base
	kind   SubroutineKind
	name   string
	sub    weak.Pointer[Subroutine]
	params []Param // the callee's declared parameter list, snapshotted at bind time
	args   []Node  // evaluated left to right, one per supplied argument (fixed + vararg tail)

	// resultArr is args[0]'s resolved array for an array-function call
	// (the caller-supplied destination bound to the implicit "return"
	// ref-array parameter), captured fresh on every Execute since the
	// ref binding itself is unwound before ArrayResult is read.
	resultArr storage.Array
}

// NewCall builds a call site against sub, evaluating args (one Node per
// supplied argument, in source order) against rt for any constant
// subexpressions they contain.
func NewCall(loc Location, rt Runtime, kind SubroutineKind, name string, sub weak.Pointer[Subroutine], params []Param, args []Node) *Call {
	n := &Call{Base: NewBase(loc), kind: kind, name: name, sub: sub, params: params}
	for _, a := range args {
		n.args = append(n.args, n.AddChild(rt, a))
	}
	return n
}

func (n *Call) Execute(rt Runtime) (uint64, error) {
	sub := n.sub.Value()
	if sub == nil || sub.Dropped() {
		return 0, NewError(KindDroppedSubroutine, n.Loc(), "subroutine %q is no longer defined", n.name)
	}

	type evaluated struct {
		isArray bool
		value   uint64
		arr     storage.Array
	}
	vals := make([]evaluated, len(n.args))
	for i, a := range n.args {
		wantArray := i < len(n.params) && n.params[i].IsArray
		if wantArray || (i >= len(n.params) && isArrayResultNode(a)) {
			if ar, ok := a.(ArrayResultNode); ok {
				if arr, ok := ar.ArrayResult(rt); ok {
					vals[i] = evaluated{isArray: true, arr: arr}
					continue
				}
			}
			if wantArray {
				return 0, NewError(KindArgTypeMismatch, n.Loc(), "argument %d to %q must be an array", i, n.name)
			}
		}
		v, err := a.Execute(rt)
		if err != nil {
			return 0, err
		}
		vals[i] = evaluated{value: v}
	}

	if n.kind == ArrayFunction && len(vals) > 0 {
		n.resultArr = vals[0].arr
	}

	rt.PushVarargFrame()

	for i := len(n.params); i < len(vals); i++ {
		if vals[i].isArray {
			rt.AppendVarargArray(vals[i].arr)
		} else {
			rt.AppendVarargValue(vals[i].value)
		}
	}

	sub.Vars.Push()
	sub.Arrays.Push()

	var refBindings []*storage.RefArray
	for i, p := range n.params {
		if i >= len(vals) {
			break
		}
		if p.IsArray {
			target := sub.Arrays.Get(p.Name)
			ref, ok := target.(*storage.RefArray)
			if !ok {
				continue
			}
			ref.PushRef(vals[i].arr)
			refBindings = append(refBindings, ref)
			continue
		}
		if v := sub.Vars.Get(p.Name); v != nil {
			v.Set(vals[i].value)
		}
	}

	res, err := sub.Body.Execute(rt)

	if err != nil {
		if AsSignal(err, SigExit) || AsSignal(err, SigBreak) {
			err = nil
		}
	}

	var ret uint64
	if n.kind == Function {
		ret = sub.RetVal.Get()
	}

	for i := len(refBindings) - 1; i >= 0; i-- {
		refBindings[i].PopRef()
	}
	sub.Arrays.Pop()
	sub.Vars.Pop()
	rt.PopVarargFrame()

	if err != nil {
		return 0, err
	}

	switch n.kind {
	case Function:
		return ret, nil
	case ArrayFunction:
		return 0, nil
	default:
		return res, nil
	}
}

func (n *Call) ArrayResult(Runtime) (storage.Array, bool) {
	if n.kind != ArrayFunction || n.resultArr == nil {
		return nil, false
	}
	return n.resultArr, true
}

func isArrayResultNode(n Node) bool {
	_, ok := n.(ArrayResultNode)
	return ok
}
