// Package gcguard keeps Go values alive while Python objects refer to them.
//
// Every value handed to Python is stored in a Table under an opaque token.
// The Python-side wrapper, a PyCapsule, carries that token; when Python
// destroys the capsule its destructor evicts the entry and the Go collector
// may reclaim the value.
package gcguard

import (
	"sync"
)

// Table maps wrapper tokens to guarded Go values.
// It is safe for concurrent use. The lock is held only while the map is
// read or written, never across calls into Python.
type Table struct {
	mu      sync.Mutex
	entries map[uintptr]any
	next    uintptr
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[uintptr]any)}
}

// Insert stores value and returns its token. Tokens are never zero and
// never reused.
func (t *Table) Insert(value any) uintptr {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.entries[t.next] = value
	return t.next
}

// Lookup returns the value stored under token.
func (t *Table) Lookup(token uintptr) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.entries[token]
	return v, ok
}

// Evict removes token and reports whether it was present.
func (t *Table) Evict(token uintptr) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[token]; !ok {
		return false
	}
	delete(t.entries, token)
	return true
}

// Count returns the number of guarded values.
func (t *Table) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
