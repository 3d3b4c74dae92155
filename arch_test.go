package main

import "testing"

func TestNewArchCodecDispatch(t *testing.T) {
	cases := []struct {
		arch Arch
		is64 bool
	}{
		{ArchX86_32, false},
		{ArchX86_64, true},
		{ArchARM32, false},
		{ArchAArch64, true},
	}
	for _, c := range cases {
		codec, err := NewArchCodec(c.arch)
		if err != nil {
			t.Fatalf("NewArchCodec(%d) failed: %v", c.arch, err)
		}
		switch v := codec.(type) {
		case *x86Codec:
			if v.is64 != c.is64 {
				t.Fatalf("arch %d: x86Codec.is64 = %v, want %v", c.arch, v.is64, c.is64)
			}
		case *armCodec:
			if v.is64 != c.is64 {
				t.Fatalf("arch %d: armCodec.is64 = %v, want %v", c.arch, v.is64, c.is64)
			}
		default:
			t.Fatalf("arch %d: unexpected codec type %T", c.arch, codec)
		}
	}
}

func TestNewArchCodecRejectsUnknown(t *testing.T) {
	if _, err := NewArchCodec(Arch(99)); err == nil {
		t.Fatal("expected an error for an unrecognized architecture")
	}
}
