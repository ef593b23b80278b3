package locator

import (
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"

	"go.mills.io/bitcask/v2"
)

// BitcaskLocator implements Locator on top of Bitcask, so block placement
// survives restarts. One directory per locator.
type BitcaskLocator struct {
	db *bitcask.Bitcask
}

var _ Locator = (*BitcaskLocator)(nil)

// NewBitcaskLocator opens (or creates) the locator database under basePath.
func NewBitcaskLocator(basePath string) (*BitcaskLocator, error) {
	dbPath := filepath.Join(basePath, "locator")

	db, err := bitcask.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open bitcask: %w", err)
	}

	return &BitcaskLocator{db: db}, nil
}

// Get retrieves a block location (caller provides Location to avoid allocation).
func (l *BitcaskLocator) Get(id BlockID, loc *Location) error {
	value, err := l.db.Get(key(id))
	if errors.Is(err, bitcask.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return decodeLocation(value, loc)
}

// Put inserts or replaces a block location.
func (l *BitcaskLocator) Put(id BlockID, loc Location) error {
	return l.db.Put(key(id), encodeLocation(loc))
}

// Delete removes a block location.
func (l *BitcaskLocator) Delete(id BlockID) error {
	return l.db.Delete(key(id))
}

// ForEach visits every registered block in key order.
func (l *BitcaskLocator) ForEach(fn func(id BlockID, loc Location) error) error {
	return l.db.ForEach(func(k bitcask.Key) error {
		value, err := l.db.Get(k)
		if err != nil {
			return err
		}
		var loc Location
		if err := decodeLocation(value, &loc); err != nil {
			return fmt.Errorf("corrupt locator entry for key %x: %w", []byte(k), err)
		}
		return fn(binary.BigEndian.Uint64(k), loc)
	})
}

// Close closes the underlying database.
func (l *BitcaskLocator) Close() error {
	return l.db.Close()
}
