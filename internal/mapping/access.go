package mapping

import (
	"runtime/debug"
	"unsafe"
)

// Word is the set of word widths a mapping can be accessed at.
type Word interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// withFaultRecovery arms the process for hardware-fault recovery, runs fn,
// and reports whether fn faulted.
//
// The original engine arms a sigsetjmp/siglongjmp pair around a SIGBUS
// handler registered once at startup. Go's runtime already turns an
// invalid-address fault encountered while executing ordinary (non-cgo) Go
// code into a recoverable *runtime panic* of kind runtime.Error;
// debug.SetPanicOnFault(true) is the documented stdlib switch that keeps
// the process alive instead of crashing when that happens, matching the
// "process-wide enable flag" of the original exactly in spirit. No pack
// example exercises raw SIGBUS recovery, since direct volatile-pointer
// deref usually isn't idiomatic Go, so this is the stdlib mechanism
// purpose-built for this exact situation.
func withFaultRecovery(fn func()) (faulted bool) {
	prev := debug.SetPanicOnFault(true)
	defer debug.SetPanicOnFault(prev)
	defer func() {
		if r := recover(); r != nil {
			faulted = true
		}
	}()
	fn()
	return false
}

func ptrAt[T Word](m *Mapping, addr uint64) *T {
	off := m.offset(addr)
	return (*T)(unsafe.Pointer(&m.virt[off]))
}

// Peek reads a T-sized word at the mapping's logical address addr. On fault
// the returned value is undefined; HasFailed() is the source of truth.
func Peek[T Word](m *Mapping, addr uint64) T {
	var ret T
	m.hasFailed = withFaultRecovery(func() {
		ret = *ptrAt[T](m, addr)
	})
	return ret
}

// Poke writes value at addr.
func Poke[T Word](m *Mapping, addr uint64, value T) {
	m.hasFailed = withFaultRecovery(func() {
		*ptrAt[T](m, addr) = value
	})
}

// Set performs an unmasked read-modify-write: *addr |= mask.
func Set[T Word](m *Mapping, addr uint64, mask T) {
	m.hasFailed = withFaultRecovery(func() {
		p := ptrAt[T](m, addr)
		*p = *p | mask
	})
}

// Clear performs *addr &= ~mask.
func Clear[T Word](m *Mapping, addr uint64, mask T) {
	m.hasFailed = withFaultRecovery(func() {
		p := ptrAt[T](m, addr)
		*p = *p &^ mask
	})
}

// Toggle performs *addr ^= mask.
func Toggle[T Word](m *Mapping, addr uint64, mask T) {
	m.hasFailed = withFaultRecovery(func() {
		p := ptrAt[T](m, addr)
		*p = *p ^ mask
	})
}
