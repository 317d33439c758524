// Package mapping implements the Mapping Engine: a keyed collection of
// page-aligned /dev/mem-style mappings with fault-tolerant typed access.
//
// Mmap/Munmap here are the same golang.org/x/sys/unix calls the teacher
// repo's userfaultfd preload path uses to map a snapshot file
// (vm/uffd_linux.go); ours maps a physical address window on a device file
// instead of a regular file.
package mapping

import (
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// DefaultDevice is the device opened when Create is called without one.
// It is a var, not a const, so a --device flag or config default can
// override it once at startup.
var DefaultDevice = "/dev/mem"

// Mapping is an immutable, page-aligned view onto a device.
type Mapping struct {
	physBase    uint64
	at          uint64
	size        uint64
	pageOffset  uint64
	mappingSize uint64

	virt []byte // the mmap'd region itself

	hasFailed bool
}

// PhysBase returns the requested physical base address.
func (m *Mapping) PhysBase() uint64 { return m.physBase }

// At returns the logical lookup key for this mapping.
func (m *Mapping) At() uint64 { return m.at }

// Size returns the requested (not page-rounded) size.
func (m *Mapping) Size() uint64 { return m.size }

// HasFailed reports whether the most recent typed access faulted.
func (m *Mapping) HasFailed() bool { return m.hasFailed }

// Create opens device (default /dev/mem), page-aligns a window covering
// [physBase, physBase+size) and mmaps it MAP_SHARED/PROT_READ|PROT_WRITE. at
// is the logical lookup key, defaulting to physBase. Returns nil on failure.
func Create(physBase, at, size uint64, device string) *Mapping {
	if device == "" {
		device = DefaultDevice
	}

	fd, err := unix.Open(device, unix.O_RDWR, 0)
	if err != nil {
		log.WithError(err).WithField("device", device).Warn("mapping: open failed")
		return nil
	}
	defer unix.Close(fd)

	pagesize := uint64(unix.Getpagesize())
	pageOffset := physBase % pagesize
	pageAddr := physBase - pageOffset

	mappingSize := size + pageOffset
	if rem := mappingSize % pagesize; rem != 0 {
		mappingSize += pagesize - rem
	}

	virt, err := unix.Mmap(fd, int64(pageAddr), int(mappingSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"device": device, "phys": fmt.Sprintf("%#x", physBase), "size": size,
		}).Warn("mapping: mmap failed")
		return nil
	}

	m := &Mapping{
		physBase:    physBase,
		at:          at,
		size:        size,
		pageOffset:  pageOffset,
		mappingSize: mappingSize,
		virt:        virt,
	}
	log.WithFields(log.Fields{
		"device": device, "phys": fmt.Sprintf("%#x", physBase), "at": fmt.Sprintf("%#x", at), "size": size,
	}).Debug("mapping: created")
	return m
}

// Close unmaps the backing region.
func (m *Mapping) Close() error {
	if m.virt == nil {
		return nil
	}
	err := unix.Munmap(m.virt)
	m.virt = nil
	return err
}

func (m *Mapping) offset(addr uint64) uint64 {
	return addr - m.at + m.pageOffset
}

// Engine is a keyed collection of mappings, keyed and looked up by each
// mapping's logical at address (which defaults to its physical base).
type Engine struct {
	byAt  map[uint64]*Mapping
	order []uint64 // sorted keys, mirrors the original's std::map<void*,MMap*>
}

// NewEngine returns an empty engine.
func NewEngine() *Engine {
	return &Engine{byAt: make(map[uint64]*Mapping)}
}

// Map creates a mapping and registers it under *at, or under physBase if at
// is nil (the caller did not request a distinct logical address). Passing a
// non-nil at pointing at 0 maps a real zero-page lookup key even when
// physBase is nonzero. Idempotent: if an existing mapping already covers
// [at, at+size), the new request is a no-op that returns the existing
// mapping.
func (e *Engine) Map(physBase uint64, at *uint64, size uint64, device string) (*Mapping, error) {
	atV := physBase
	if at != nil {
		atV = *at
	}
	if existing := e.Lookup(atV, size); existing != nil {
		return existing, nil
	}

	m := Create(physBase, atV, size, device)
	if m == nil {
		return nil, fmt.Errorf("mapping %#x (size %#x) via %s failed", physBase, size, deviceOrDefault(device))
	}

	if _, exists := e.byAt[atV]; !exists {
		i := sort.Search(len(e.order), func(i int) bool { return e.order[i] >= atV })
		e.order = append(e.order, 0)
		copy(e.order[i+1:], e.order[i:])
		e.order[i] = atV
	}
	e.byAt[atV] = m
	return m, nil
}

func deviceOrDefault(device string) string {
	if device == "" {
		return DefaultDevice
	}
	return device
}

// Lookup finds the mapping with the largest at <= addr such that
// at+size >= addr+accessSize, or nil.
func (e *Engine) Lookup(addr, accessSize uint64) *Mapping {
	if len(e.order) == 0 {
		return nil
	}
	// upper_bound(addr): first key strictly greater than addr.
	i := sort.Search(len(e.order), func(i int) bool { return e.order[i] > addr })
	if i == 0 {
		return nil
	}
	m := e.byAt[e.order[i-1]]
	if m.at+m.size < addr+accessSize {
		return nil
	}
	return m
}

// List returns every registered mapping ordered by its logical address.
func (e *Engine) List() []*Mapping {
	out := make([]*Mapping, 0, len(e.order))
	for _, at := range e.order {
		out = append(out, e.byAt[at])
	}
	return out
}

// Close unmaps every registered mapping.
func (e *Engine) Close() {
	for _, m := range e.byAt {
		_ = m.Close()
	}
}
