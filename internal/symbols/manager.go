// Package symbols provides generic symbol management for variables and constants.
package symbols

import (
	"cmp"
	"maps"
	"slices"

	"github.com/retroenv/retrogolib/set"
)

// Manager provides generic symbol tracking keyed by address.
// T is the type of symbol being managed (e.g., *variable or Constant).
type Manager[T any] struct {
	items map[uint64]T
	used  set.Set[uint64]
}

// New creates a new symbol manager.
func New[T any]() *Manager[T] {
	return &Manager[T]{
		items: make(map[uint64]T),
		used:  set.New[uint64](),
	}
}

// Get returns the item at the given address.
func (m *Manager[T]) Get(address uint64) (T, bool) {
	item, ok := m.items[address]
	return item, ok
}

// Set sets the item at the given address.
func (m *Manager[T]) Set(address uint64, item T) {
	m.items[address] = item
}

// Has returns whether an item exists at the given address.
func (m *Manager[T]) Has(address uint64) bool {
	_, ok := m.items[address]
	return ok
}

// Len returns the number of items in the manager.
func (m *Manager[T]) Len() int {
	return len(m.items)
}

// Sorted returns all items ordered by address.
func (m *Manager[T]) Sorted() []T {
	return m.collect(func(uint64) bool { return true })
}

// SortedUsed returns all items that are marked as used ordered by address.
func (m *Manager[T]) SortedUsed() []T {
	return m.collect(m.used.Contains)
}

func (m *Manager[T]) collect(include func(uint64) bool) []T {
	addresses := slices.SortedFunc(maps.Keys(m.items), cmp.Compare[uint64])
	items := make([]T, 0, len(addresses))
	for _, address := range addresses {
		if include(address) {
			items = append(items, m.items[address])
		}
	}
	return items
}

// MarkUsed marks an address as used.
func (m *Manager[T]) MarkUsed(address uint64) {
	m.used.Add(address)
}

// IsUsed returns whether an address is marked as used.
func (m *Manager[T]) IsUsed(address uint64) bool {
	return m.used.Contains(address)
}
