package storage

import "testing"

func init() {
	DefaultSizeFunc = func() int { return 8 }
}

func TestVarManagerDefStructMember(t *testing.T) {
	m := NewVarManager()

	base := m.AllocDef("A")
	if base == nil {
		t.Fatal("alloc_def A failed")
	}
	base.Set(0x1000)

	member := m.AllocDef("A.len")
	if member == nil {
		t.Fatal("alloc_def A.len failed")
	}
	member.Set(4) // offset from base
	member.SetRange(10)

	if got := member.Get(); got != 0x1004 {
		t.Fatalf("struct member get = %#x, want %#x", got, 0x1004)
	}
	if rng := member.Range(); rng != 10 {
		t.Fatalf("range = %d, want 10", rng)
	}

	// Struct member on a non-def base fails.
	g := m.AllocGlobal("G")
	if g == nil {
		t.Fatal("alloc_global G failed")
	}
	if v := m.AllocDef("G.bad"); v != nil {
		t.Fatal("expected naming conflict allocating struct member on non-def base")
	}
}

func TestVarManagerGlobalDefConflict(t *testing.T) {
	m := NewVarManager()
	m.AllocDef("X")
	if v := m.AllocGlobal("X"); v != nil {
		t.Fatal("expected conflict allocating global over existing def")
	}
	if v := m.AllocDef("X"); v == nil {
		t.Fatal("re-allocating the same def name should return the existing slot")
	}
}

func TestVarManagerLocalPushPop(t *testing.T) {
	m := NewVarManager()
	a := m.AllocLocal("a")
	a.Set(42)

	m.Push()
	a2 := m.AllocLocal("a")
	if a2.Get() != 0 {
		t.Fatal("pushed frame should start zeroed")
	}
	a2.Set(99)
	m.Pop()

	if a.Get() != 42 {
		t.Fatalf("after pop, previous frame contents should be restored, got %d", a.Get())
	}
}

func TestVarManagerAutocompletion(t *testing.T) {
	m := NewVarManager()
	m.AllocGlobal("foo")
	m.AllocGlobal("foobar")
	m.AllocGlobal("baz")

	got := m.GetAutocompletion("foo")
	if len(got) != 2 || got[0] != "foo" || got[1] != "foobar" {
		t.Fatalf("unexpected completions: %v", got)
	}
}

func TestArrayResizePreservesAndZeroFills(t *testing.T) {
	m := NewArrManager()
	a := m.AllocGlobal("arr")

	a.Resize(5)
	for i := uint64(0); i < 5; i++ {
		if err := a.Set(i, i+1); err != nil {
			t.Fatal(err)
		}
	}

	a.Resize(3)
	if a.Size() != 3 {
		t.Fatalf("size = %d, want 3", a.Size())
	}
	for i := uint64(0); i < 3; i++ {
		v, _ := a.Get(i)
		if v != i+1 {
			t.Fatalf("shrink should preserve element %d, got %d", i, v)
		}
	}

	a.Resize(6)
	if a.Size() != 6 {
		t.Fatalf("size = %d, want 6", a.Size())
	}
	for i := uint64(0); i < 3; i++ {
		v, _ := a.Get(i)
		if v != i+1 {
			t.Fatalf("grow should preserve element %d, got %d", i, v)
		}
	}
	for i := uint64(3); i < 6; i++ {
		v, _ := a.Get(i)
		if v != 0 {
			t.Fatalf("grow should zero-fill element %d, got %d", i, v)
		}
	}

	a.Resize(0)
	if a.Size() != 0 {
		t.Fatal("resize(0) should free the buffer")
	}
}

func TestArrayOutOfBounds(t *testing.T) {
	m := NewArrManager()
	a := m.AllocGlobal("arr")
	a.Resize(2)

	if _, err := a.Get(2); err == nil {
		t.Fatal("expected out-of-bounds error")
	}
	if err := a.Set(5, 1); err == nil {
		t.Fatal("expected out-of-bounds error")
	}
}

func TestRefArrayPushPop(t *testing.T) {
	m := NewArrManager()
	a := m.AllocGlobal("a")
	a.Resize(3)
	a.Set(0, 11)

	b := m.AllocGlobal("b")
	b.Resize(1)
	b.Set(0, 99)

	ref := m.AllocRef("r")
	ref.PushRef(a)
	if ref.Size() != 3 {
		t.Fatalf("ref size = %d, want 3", ref.Size())
	}
	v, _ := ref.Get(0)
	if v != 11 {
		t.Fatalf("ref get(0) = %d, want 11", v)
	}

	ref.PushRef(b)
	if ref.Size() != 1 {
		t.Fatalf("nested ref size = %d, want 1", ref.Size())
	}
	ref.PopRef()
	if ref.Size() != 3 {
		t.Fatalf("after pop, ref size = %d, want 3", ref.Size())
	}
}

func TestArrManagerLocalPushPopReleasesStorage(t *testing.T) {
	m := NewArrManager()
	a := m.AllocLocal("a")
	a.Resize(4)

	m.Push()
	a2 := m.AllocLocal("a")
	if a2.Size() != 0 {
		t.Fatal("pushed frame should start with empty arrays")
	}
	m.Pop()

	if a.Size() != 4 {
		t.Fatalf("after pop, previous frame array size should be restored, got %d", a.Size())
	}
}
