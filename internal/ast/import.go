package ast

// Import wraps a parsed file's root node. The environment decides at
// construction time whether child is nil (run-once import already seen)
// or the freshly parsed tree; Import itself only needs to run it and
// absorb exit/break so a script's own top-level control flow does not
// leak out of an imported file.
type Import struct {
	Base
	child Node
}

func NewImport(loc Location, child Node) *Import {
	return &Import{Base: NewBase(loc), child: child}
}

func (n *Import) Execute(rt Runtime) (uint64, error) {
	if n.child == nil {
		return 0, nil
	}
	v, err := n.child.Execute(rt)
	if err != nil {
		if AsSignal(err, SigExit) || AsSignal(err, SigBreak) {
			return v, nil
		}
		return 0, err
	}
	return v, nil
}
