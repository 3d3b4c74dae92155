package main

import "hash/fnv"

// ExtMap is the process-wide FNV-key-to-address map backing the
// MLInsertExt/MLRemoveExt/MLExtFromBase C-ABI surface.
// Grounded on hashmap.go's Vibe67HashMap, which also keys on a 64-bit FNV
// hash; generalized from that hashmap's bespoke open-addressed bucket
// array (sized for the compiler runtime's float64 values) to a plain
// mutex-guarded Go map, since the extension map only needs ordinary
// insert/remove/lookup semantics, not a custom probing scheme.
type ExtMap struct {
	mu      Mutex
	entries map[uint64]Address
}

// NewExtMap constructs an empty extension map.
func NewExtMap() *ExtMap {
	return &ExtMap{
		mu:      NewMutex(),
		entries: make(map[uint64]Address),
	}
}

// Insert records addr under fnvID, overwriting any existing entry.
func (m *ExtMap) Insert(fnvID uint64, addr Address) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[fnvID] = addr
	return true
}

// Remove deletes fnvID's entry, reporting whether one existed.
func (m *ExtMap) Remove(fnvID uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[fnvID]; !ok {
		return false
	}
	delete(m.entries, fnvID)
	return true
}

// Lookup returns the address stored under fnvID, or Null if absent.
func (m *ExtMap) Lookup(fnvID uint64) Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[fnvID]
}

// FNVHash hashes name the same way hashmap.go's Vibe67HashMap.hash does:
// 64-bit FNV-1a via the standard library.
func FNVHash(name string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return h.Sum64()
}
