package storage

import "fmt"

// OutOfBoundsError is returned by Array.Get/Set when index >= Size().
type OutOfBoundsError struct {
	Index, Size uint64
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("array index %d out of bounds (size %d)", e.Index, e.Size)
}

// Slot is the {size, data} record an array owns or borrows. resize(0) frees
// the buffer; resize(n>0) preserves min(old,n) words and zero-fills growth.
type Slot struct {
	Data []uint64
}

func (s *Slot) size() uint64 { return uint64(len(s.Data)) }

func (s *Slot) resize(n uint64) {
	if n == 0 {
		s.Data = nil
		return
	}
	grown := make([]uint64, n)
	copy(grown, s.Data)
	s.Data = grown
}

// Array is a resizable contiguous buffer of 64-bit words. Concrete kinds are
// globalArray, localArray, delegateArray and RefArray.
type Array interface {
	IsLocal() bool
	Get(index uint64) (uint64, error)
	Set(index uint64, value uint64) error
	Size() uint64
	Resize(size uint64)

	// slot returns the backing {size,data} record, used by RefArray.PushRef
	// and by nodes that need to hand out a borrowed view (e.g. String, the
	// array-function return wrapper).
	slot() *Slot
}

type baseArray struct{}

func (baseArray) IsLocal() bool { return false }

func checkBounds(index, size uint64) error {
	if index >= size {
		return &OutOfBoundsError{Index: index, Size: size}
	}
	return nil
}

// globalArray owns its buffer for the life of its manager.
type globalArray struct {
	baseArray
	data Slot
}

func newGlobalArray() *globalArray { return &globalArray{} }

func (a *globalArray) Get(index uint64) (uint64, error) {
	if err := checkBounds(index, a.data.size()); err != nil {
		return 0, err
	}
	return a.data.Data[index], nil
}

func (a *globalArray) Set(index, value uint64) error {
	if err := checkBounds(index, a.data.size()); err != nil {
		return err
	}
	a.data.Data[index] = value
	return nil
}

func (a *globalArray) Size() uint64     { return a.data.size() }
func (a *globalArray) Resize(n uint64)  { a.data.resize(n) }
func (a *globalArray) slot() *Slot      { return &a.data }

// localArray's {size,data} record lives in the owning manager's current
// frame; the array value itself only holds the frame offset.
type localArray struct {
	baseArray
	mgr    *ArrManager
	offset int
}

func newLocalArray(mgr *ArrManager, offset int) *localArray {
	return &localArray{mgr: mgr, offset: offset}
}

func (a *localArray) IsLocal() bool { return true }

func (a *localArray) Get(index uint64) (uint64, error) {
	s := a.slot()
	if err := checkBounds(index, s.size()); err != nil {
		return 0, err
	}
	return s.Data[index], nil
}

func (a *localArray) Set(index, value uint64) error {
	s := a.slot()
	if err := checkBounds(index, s.size()); err != nil {
		return err
	}
	s.Data[index] = value
	return nil
}

func (a *localArray) Size() uint64    { return a.slot().size() }
func (a *localArray) Resize(n uint64) { a.slot().resize(n) }
func (a *localArray) slot() *Slot     { return a.mgr.frameSlot(a.offset) }

// delegateArray forwards every operation to a sibling array.
type delegateArray struct {
	baseArray
	target Array
}

func newDelegateArray(target Array) *delegateArray { return &delegateArray{target: target} }

func (a *delegateArray) IsLocal() bool             { return a.target.IsLocal() }
func (a *delegateArray) Get(i uint64) (uint64, error) { return a.target.Get(i) }
func (a *delegateArray) Set(i, v uint64) error     { return a.target.Set(i, v) }
func (a *delegateArray) Size() uint64              { return a.target.Size() }
func (a *delegateArray) Resize(n uint64)           { a.target.Resize(n) }
func (a *delegateArray) slot() *Slot               { return a.target.slot() }

// RefArray holds a borrowed pointer to another array's {size,data} record,
// with a push/pop stack of bindings so the same parameter slot can be
// re-bound across nested/recursive calls.
type RefArray struct {
	baseArray
	current *Slot
	stack   []*Slot
}

func newRefArray() *RefArray { return &RefArray{current: &Slot{}} }

// PushRef binds this ref-array to another array's storage, saving whatever
// it was previously bound to.
func (a *RefArray) PushRef(other Array) {
	a.stack = append(a.stack, a.current)
	a.current = other.slot()
}

// PopRef restores the previous binding.
func (a *RefArray) PopRef() {
	n := len(a.stack) - 1
	a.current = a.stack[n]
	a.stack = a.stack[:n]
}

func (a *RefArray) Get(index uint64) (uint64, error) {
	if err := checkBounds(index, a.current.size()); err != nil {
		return 0, err
	}
	return a.current.Data[index], nil
}

func (a *RefArray) Set(index, value uint64) error {
	if err := checkBounds(index, a.current.size()); err != nil {
		return err
	}
	a.current.Data[index] = value
	return nil
}

func (a *RefArray) Size() uint64    { return a.current.size() }
func (a *RefArray) Resize(n uint64) { a.current.resize(n) }
func (a *RefArray) slot() *Slot     { return a.current }
