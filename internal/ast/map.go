package ast

// Map creates a physical-memory mapping as a side effect of construction:
// by the time a Map node is wired into a tree, the mapping already
// exists. Execute re-reports the logical base address, matching the
// value a script sees when using the expression result of a map
// statement.
type Map struct {
	Base
	at uint64
}

// NewMap evaluates phys/at/size (all required constant) and asks rt's
// mapping engine to create the mapping. device empty selects the
// engine's default.
func NewMap(loc Location, rt Runtime, phys, at, size Node, device string) (*Map, error) {
	physV, err := ConstExec(phys)
	if err != nil {
		return nil, err
	}
	var atPtr *uint64
	if at != nil {
		atV, err := ConstExec(at)
		if err != nil {
			return nil, err
		}
		atPtr = &atV
	}
	sizeV, err := ConstExec(size)
	if err != nil {
		return nil, err
	}
	m, err := rt.Mappings().Map(physV, atPtr, sizeV, device)
	if err != nil {
		return nil, NewError(KindMappingFailure, loc, "%v", err)
	}
	return &Map{Base: NewBase(loc), at: m.At()}, nil
}

func (n *Map) Execute(Runtime) (uint64, error) { return n.at, nil }
