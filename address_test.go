package main

import "testing"

func TestAddressAddAndSub(t *testing.T) {
	a := Address(0x1000)
	b := a.Add(0x10)
	if b != Address(0x1010) {
		t.Fatalf("Add = %s, want 0x1010", b)
	}
	if b.Sub(a) != 0x10 {
		t.Fatalf("Sub = %d, want 16", b.Sub(a))
	}
	neg := a.Add(-0x10)
	if neg != Address(0xFF0) {
		t.Fatalf("Add with negative delta = %s, want 0xff0", neg)
	}
}

func TestAddressIsNull(t *testing.T) {
	if !Null.IsNull() {
		t.Fatal("Null.IsNull() should be true")
	}
	if Address(1).IsNull() {
		t.Fatal("a non-zero address should not report IsNull")
	}
}

func TestProtectionString(t *testing.T) {
	cases := map[Protection]string{
		ProtNone:                         "---",
		ProtRead:                         "r--",
		ProtRead | ProtWrite:             "rw-",
		ProtRead | ProtWrite | ProtExec:  "rwx",
		ProtExec:                         "--x",
	}
	for mask, want := range cases {
		if got := mask.String(); got != want {
			t.Fatalf("Protection(%d).String() = %q, want %q", mask, got, want)
		}
	}
}

func TestProtectionHas(t *testing.T) {
	mask := ProtRead | ProtExec
	if !mask.Has(ProtRead) {
		t.Fatal("expected Has(ProtRead) true")
	}
	if mask.Has(ProtWrite) {
		t.Fatal("expected Has(ProtWrite) false")
	}
	if !mask.Has(ProtRead | ProtExec) {
		t.Fatal("expected Has of the exact mask to be true")
	}
}

func TestRegionContainsAndSize(t *testing.T) {
	r := Region{Base: Address(0x1000), End: Address(0x2000)}
	if r.Size() != 0x1000 {
		t.Fatalf("Size() = %d, want 0x1000", r.Size())
	}
	if !r.Contains(Address(0x1000)) {
		t.Fatal("Contains should include the base address")
	}
	if r.Contains(Address(0x2000)) {
		t.Fatal("Contains should exclude the end address")
	}
	if !r.Contains(Address(0x1FFF)) {
		t.Fatal("Contains should include the last byte before end")
	}
}
