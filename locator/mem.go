package locator

import (
	"github.com/zhangyunhao116/skipmap"
)

// MemLocator is a fast in-memory locator backed by a lock-free skipmap.
// Safe for concurrent use; nothing is persisted.
type MemLocator struct {
	blocks *skipmap.Uint64Map[*Location]
}

var _ Locator = (*MemLocator)(nil)

// NewMemLocator creates an empty in-memory locator.
func NewMemLocator() *MemLocator {
	return &MemLocator{
		blocks: skipmap.NewUint64[*Location](),
	}
}

// Get retrieves a block location from the skipmap.
func (l *MemLocator) Get(id BlockID, loc *Location) error {
	stored, ok := l.blocks.Load(id)
	if !ok {
		return ErrNotFound
	}
	*loc = *stored
	return nil
}

// Put stores a copy of loc, so later mutation of the caller's value
// cannot corrupt the registry.
func (l *MemLocator) Put(id BlockID, loc Location) error {
	l.blocks.Store(id, &loc)
	return nil
}

// Delete removes a block location.
func (l *MemLocator) Delete(id BlockID) error {
	l.blocks.LoadAndDelete(id)
	return nil
}

// ForEach visits every registered block.
func (l *MemLocator) ForEach(fn func(id BlockID, loc Location) error) error {
	var err error
	l.blocks.Range(func(id uint64, stored *Location) bool {
		err = fn(id, *stored)
		return err == nil
	})
	return err
}

// Len returns the number of registered blocks.
func (l *MemLocator) Len() int {
	return l.blocks.Len()
}

// Close is a no-op for MemLocator.
func (l *MemLocator) Close() error {
	return nil
}
