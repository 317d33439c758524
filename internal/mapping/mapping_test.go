package mapping

import (
	"os"
	"testing"
)

// fakeDevice creates a regular file big enough to stand in for /dev/mem in
// tests; mmap works identically on a regular fd opened O_RDWR.
func fakeDevice(t *testing.T, size int) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "mempeek-device-*")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := f.Truncate(int64(size)); err != nil {
		t.Fatal(err)
	}
	return f.Name()
}

func TestMappingLookup(t *testing.T) {
	device := fakeDevice(t, 0x10000)
	e := NewEngine()

	m, err := e.Map(0x1000, nil, 0x100, device)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if got := e.Lookup(0x1000, 4); got != m {
		t.Fatal("lookup at base should find the mapping")
	}
	if got := e.Lookup(0x10fc, 4); got != m {
		t.Fatal("lookup near the end within bounds should find the mapping")
	}
	if got := e.Lookup(0x10fd, 4); got != nil {
		t.Fatal("lookup past the end should fail")
	}
	if got := e.Lookup(0xfff, 4); got != nil {
		t.Fatal("lookup before any mapping should fail")
	}
}

func TestEngineListOrdersByAddress(t *testing.T) {
	device := fakeDevice(t, 0x10000)
	e := NewEngine()

	if _, err := e.Map(0x3000, nil, 0x100, device); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Map(0x1000, nil, 0x100, device); err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	list := e.List()
	if len(list) != 2 {
		t.Fatalf("List() returned %d mappings, want 2", len(list))
	}
	if list[0].At() != 0x1000 || list[1].At() != 0x3000 {
		t.Fatalf("List() not ordered by address: %#x, %#x", list[0].At(), list[1].At())
	}
}

func TestMappingIdempotentRemap(t *testing.T) {
	device := fakeDevice(t, 0x10000)
	e := NewEngine()

	m1, err := e.Map(0x2000, nil, 0x100, device)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	m2, err := e.Map(0x2000, nil, 0x100, device)
	if err != nil {
		t.Fatal(err)
	}
	if m1 != m2 {
		t.Fatal("re-mapping an already-covered range should be a no-op returning the existing mapping")
	}
}

func TestMappingExplicitZeroAtIsNotDefaulted(t *testing.T) {
	device := fakeDevice(t, 0x10000)
	e := NewEngine()

	zero := uint64(0)
	m, err := e.Map(0x5000, &zero, 0x100, device)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if m.At() != 0 {
		t.Fatalf("explicit at=0 should register under key 0, got %#x", m.At())
	}
	if got := e.Lookup(0, 4); got != m {
		t.Fatal("lookup at explicit key 0 should find the mapping")
	}
	if got := e.Lookup(0x5000, 4); got != nil {
		t.Fatal("physBase should not be used as the lookup key when at is explicitly set")
	}
}

func TestTypedPeekPoke(t *testing.T) {
	device := fakeDevice(t, 0x10000)
	e := NewEngine()
	m, err := e.Map(0x3000, nil, 0x100, device)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	Poke[uint8](m, 0x3010, 0x55)
	if m.HasFailed() {
		t.Fatal("poke should not fail on a valid mapping")
	}
	if got := Peek[uint8](m, 0x3010); got != 0x55 {
		t.Fatalf("peek = %#x, want 0x55", got)
	}

	Set[uint8](m, 0x3010, 0x0F)
	if got := Peek[uint8](m, 0x3010); got != 0x5F {
		t.Fatalf("after set, peek = %#x, want 0x5f", got)
	}

	Clear[uint8](m, 0x3010, 0x0F)
	if got := Peek[uint8](m, 0x3010); got != 0x50 {
		t.Fatalf("after clear, peek = %#x, want 0x50", got)
	}

	Toggle[uint8](m, 0x3010, 0xFF)
	if got := Peek[uint8](m, 0x3010); got != 0xAF {
		t.Fatalf("after toggle, peek = %#x, want 0xaf", got)
	}
}

func TestTypedAccessWidths(t *testing.T) {
	device := fakeDevice(t, 0x10000)
	e := NewEngine()
	m, err := e.Map(0x4000, nil, 0x100, device)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	Poke[uint32](m, 0x4020, 0xdeadbeef)
	if got := Peek[uint32](m, 0x4020); got != 0xdeadbeef {
		t.Fatalf("peek32 = %#x, want 0xdeadbeef", got)
	}

	Poke[uint64](m, 0x4040, 0x0102030405060708)
	if got := Peek[uint64](m, 0x4040); got != 0x0102030405060708 {
		t.Fatalf("peek64 = %#x", got)
	}
}

func TestCreateFailsOnBadDevice(t *testing.T) {
	if m := Create(0x1000, 0x1000, 0x10, "/nonexistent/device/path"); m != nil {
		t.Fatal("expected nil mapping on open failure")
	}
}
