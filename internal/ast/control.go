package ast

import "github.com/hammelm/mempeek/internal/storage"

// If executes thenNode when cond is non-zero, else elseNode (if present).
type If struct {
	Base
	cond, thenNode, elseNode Node
}

func NewIf(loc Location, rt Runtime, cond, thenNode, elseNode Node) *If {
	n := &If{Base: NewBase(loc)}
	n.cond = n.AddChild(rt, cond)
	n.thenNode = thenNode
	n.Children = append(n.Children, thenNode)
	if elseNode != nil {
		n.elseNode = elseNode
		n.Children = append(n.Children, elseNode)
	}
	return n
}

func (n *If) Execute(rt Runtime) (uint64, error) {
	v, err := n.cond.Execute(rt)
	if err != nil {
		return 0, err
	}
	if v != 0 {
		return n.thenNode.Execute(rt)
	}
	if n.elseNode != nil {
		return n.elseNode.Execute(rt)
	}
	return 0, nil
}

// While repeatedly executes body while cond is non-zero, absorbing
// KindBreak.
type While struct {
	Base
	cond, body Node
}

func NewWhile(loc Location, rt Runtime, cond, body Node) *While {
	n := &While{Base: NewBase(loc)}
	n.cond = n.AddChild(rt, cond)
	n.body = body
	n.Children = append(n.Children, body)
	return n
}

func (n *While) Execute(rt Runtime) (uint64, error) {
	var last uint64
	for {
		v, err := n.cond.Execute(rt)
		if err != nil {
			return 0, err
		}
		if v == 0 {
			break
		}
		res, err := n.body.Execute(rt)
		if err != nil {
			if AsSignal(err, SigBreak) {
				break
			}
			return 0, err
		}
		last = res
	}
	return last, nil
}

// For assigns v the value of from, then iterates while
// (step>0 && v<=to) || (step<0 && v>=to), advancing v by step (signed)
// each pass, absorbing break.
type For struct {
	Base
	v               storage.Var
	from, to, step  Node
	hasStep         bool
	body            Node
}

func NewFor(loc Location, rt Runtime, v storage.Var, from, to, step Node, body Node) *For {
	n := &For{Base: NewBase(loc), v: v}
	n.from = n.AddChild(rt, from)
	n.to = n.AddChild(rt, to)
	if step != nil {
		n.hasStep = true
		n.step = n.AddChild(rt, step)
	}
	n.body = body
	n.Children = append(n.Children, body)
	return n
}

func (n *For) Execute(rt Runtime) (uint64, error) {
	from, err := n.from.Execute(rt)
	if err != nil {
		return 0, err
	}
	n.v.Set(from)

	to, err := n.to.Execute(rt)
	if err != nil {
		return 0, err
	}
	step := int64(1)
	if n.hasStep {
		sv, err := n.step.Execute(rt)
		if err != nil {
			return 0, err
		}
		step = int64(sv)
	}
	toS := int64(to)

	var last uint64
	for {
		cur := int64(n.v.Get())
		if step > 0 {
			if cur > toS {
				break
			}
		} else if step < 0 {
			if cur < toS {
				break
			}
		} else {
			break
		}

		res, err := n.body.Execute(rt)
		if err != nil {
			if AsSignal(err, SigBreak) {
				break
			}
			return 0, err
		}
		last = res
		n.v.Set(uint64(int64(n.v.Get()) + step))
	}
	return last, nil
}

// Block sequentially executes children, polling the terminate flag
// between each.
type Block struct {
	Base
}

func NewBlock(loc Location) *Block {
	return &Block{Base: NewBase(loc)}
}

// AddStatement appends a statement without constant-folding it; blocks
// hold statements, not pure expressions, so folding is never applicable.
func (n *Block) AddStatement(s Node) {
	n.Children = append(n.Children, s)
}

func (n *Block) Execute(rt Runtime) (uint64, error) {
	var last uint64
	for i, child := range n.Children {
		if i > 0 && rt.Terminated() {
			return 0, Raise(SigTerminate, n.Loc())
		}
		v, err := child.Execute(rt)
		if err != nil {
			return 0, err
		}
		last = v
	}
	return last, nil
}

// ArrayBlock behaves like Block but additionally exposes a named array as
// its array result, used to wrap the body of an array-function call
// site.
type ArrayBlock struct {
	Block
	result storage.Array
}

func NewArrayBlock(loc Location, result storage.Array) *ArrayBlock {
	return &ArrayBlock{Block: *NewBlock(loc), result: result}
}

func (n *ArrayBlock) ArrayResult(Runtime) (storage.Array, bool) { return n.result, true }
