package ast

import "github.com/hammelm/mempeek/internal/storage"

// GetLength returns the length of the NUL-terminated string packed into
// arr, scanning byte by byte; a string that exactly fills every word
// with no padding byte has its length equal to 8*size(arr).
func GetLength(arr storage.Array) uint64 {
	size := arr.Size()
	for i := uint64(0); i < size; i++ {
		w, err := arr.Get(i)
		if err != nil {
			break
		}
		for b := 0; b < 8; b++ {
			if byte(w>>(8*uint(b))) == 0 {
				return i*8 + uint64(b)
			}
		}
	}
	return size * 8
}

// GetString decodes the packed string in arr.
func GetString(arr storage.Array) string {
	length := GetLength(arr)
	buf := make([]byte, length)
	for i := uint64(0); i < length; i++ {
		w, _ := arr.Get(i / 8)
		buf[i] = byte(w >> (8 * (i % 8)))
	}
	return string(buf)
}

// SetString resizes arr to ceil(len(s)/8) words and packs s little-endian
// within each word, zero-padding the remainder of the final word.
func SetString(arr storage.Array, s string) {
	n := uint64((len(s) + 7) / 8)
	arr.Resize(n)
	for i := 0; i < len(s); i++ {
		wordIdx := uint64(i / 8)
		shift := uint(i%8) * 8
		w, _ := arr.Get(wordIdx)
		w |= uint64(s[i]) << shift
		_ = arr.Set(wordIdx, w)
	}
}

// String packs a literal into its bound array on every execution (the
// literal never changes, so re-execution just re-encodes the same
// bytes; it is not a one-shot initializer the way Static is).
type String struct {
	Base
	arr     storage.Array
	literal string
}

func NewString(loc Location, arr storage.Array, literal string) *String {
	return &String{Base: NewBase(loc), arr: arr, literal: literal}
}

func (n *String) Execute(Runtime) (uint64, error) {
	SetString(n.arr, n.literal)
	return n.arr.Size(), nil
}

func (n *String) ArrayResult(Runtime) (storage.Array, bool) { return n.arr, true }

type staticKind int

const (
	staticArrayUninit staticKind = iota
	staticArrayCopyFrom
	staticArraySizeOnly
	staticScalarExpr
)

// Static runs its initializer exactly once per node lifetime: the first
// Execute call performs the variant's effect and sets an internal flag;
// every later call is a no-op that just reports the current value.
type Static struct {
	Base
	kind        staticKind
	initialized bool

	v    storage.Var
	arr  storage.Array
	expr Node // staticScalarExpr / staticArraySizeOnly
	src  Node // staticArrayCopyFrom
	size uint64
}

func NewStaticScalar(loc Location, rt Runtime, v storage.Var, expr Node) *Static {
	n := &Static{Base: NewBase(loc), kind: staticScalarExpr, v: v}
	n.expr = n.AddChild(rt, expr)
	return n
}

func NewStaticArrayUninit(loc Location, arr storage.Array, size uint64) *Static {
	return &Static{Base: NewBase(loc), kind: staticArrayUninit, arr: arr, size: size}
}

func NewStaticArrayCopyFrom(loc Location, rt Runtime, arr storage.Array, src Node) *Static {
	n := &Static{Base: NewBase(loc), kind: staticArrayCopyFrom, arr: arr}
	n.src = n.AddChild(rt, src)
	return n
}

func NewStaticArraySizeOnly(loc Location, rt Runtime, arr storage.Array, sizeExpr Node) *Static {
	n := &Static{Base: NewBase(loc), kind: staticArraySizeOnly, arr: arr}
	n.expr = n.AddChild(rt, sizeExpr)
	return n
}

func (n *Static) Execute(rt Runtime) (uint64, error) {
	if n.initialized {
		if n.v != nil {
			return n.v.Get(), nil
		}
		return n.arr.Size(), nil
	}
	n.initialized = true

	switch n.kind {
	case staticScalarExpr:
		v, err := n.expr.Execute(rt)
		if err != nil {
			n.initialized = false
			return 0, err
		}
		n.v.Set(v)
		return v, nil

	case staticArrayUninit:
		n.arr.Resize(n.size)
		return n.size, nil

	case staticArraySizeOnly:
		size, err := n.expr.Execute(rt)
		if err != nil {
			n.initialized = false
			return 0, err
		}
		n.arr.Resize(size)
		return size, nil

	case staticArrayCopyFrom:
		ar, ok := n.src.(ArrayResultNode)
		if !ok {
			n.initialized = false
			return 0, NewError(KindArgTypeMismatch, n.Loc(), "static copy-from source is not an array")
		}
		if _, err := n.src.Execute(rt); err != nil {
			n.initialized = false
			return 0, err
		}
		srcArr, ok := ar.ArrayResult(rt)
		if !ok {
			n.initialized = false
			return 0, NewError(KindArgTypeMismatch, n.Loc(), "static copy-from source is not an array")
		}
		size := srcArr.Size()
		n.arr.Resize(size)
		for i := uint64(0); i < size; i++ {
			v, err := srcArr.Get(i)
			if err != nil {
				return 0, NewError(KindOutOfBounds, n.Loc(), "%v", err)
			}
			if err := n.arr.Set(i, v); err != nil {
				return 0, NewError(KindOutOfBounds, n.Loc(), "%v", err)
			}
		}
		return size, nil
	}
	return 0, NewError(KindArgTypeMismatch, n.Loc(), "unknown static kind")
}

func (n *Static) ArrayResult(Runtime) (storage.Array, bool) {
	if n.v != nil {
		return nil, false
	}
	return n.arr, true
}
