//go:build linux

package main

import (
	"reflect"
	"testing"
)

func TestSelfExePathResolves(t *testing.T) {
	path, err := selfExePath()
	if err != nil {
		t.Fatalf("selfExePath failed: %v", err)
	}
	if path == "" {
		t.Fatal("expected a non-empty self-exe path")
	}
}

func TestLinuxMappingRegionOfOwnCode(t *testing.T) {
	mapping := NewMapping(NewMemory())
	// The address of this very function is mapped in this process.
	addr := Address(reflect.ValueOf(TestLinuxMappingRegionOfOwnCode).Pointer())
	region, err := mapping.RegionOf(addr)
	if err != nil {
		t.Fatalf("RegionOf failed: %v", err)
	}
	if !region.Contains(addr) {
		t.Fatal("the resolved region should contain the probed address")
	}
}

func TestLinuxMappingBaseOfPlainHandleIsVerbatim(t *testing.T) {
	mapping := NewMapping(NewMemory())
	h := ModuleHandle(0x12345000)
	base, err := mapping.BaseOf(h)
	if err != nil {
		t.Fatalf("BaseOf failed: %v", err)
	}
	if base != Address(h) {
		t.Fatalf("expected a non-Android handle to resolve verbatim, got %s", base)
	}
}
