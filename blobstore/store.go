// Package blobstore defines the key/value storage used to persist page versions,
// with an in-memory implementation and one backed by a directory.
package blobstore

import (
	"errors"
)

var (
	// ErrNotFound is returned when no data is stored under a key.
	ErrNotFound = errors.New("data block not found")

	// ErrDamaged is returned when data exists under a key but can not be read back.
	ErrDamaged = errors.New("data block damaged")
)

// StoreHint tells the store where a data block is preferably kept.
type StoreHint int

const (
	// HintIntern asks to keep the block inside the main database.
	HintIntern StoreHint = iota
	// HintExtern asks to keep the block outside the main database, for example as a file.
	HintExtern
)

func (h StoreHint) String() string {
	switch h {
	case HintIntern:
		return "intern"
	case HintExtern:
		return "extern"
	}
	return "unknown"
}

// ParseStoreHint converts a configuration value into a StoreHint.
// Unknown values select HintIntern.
func ParseStoreHint(s string) StoreHint {
	if s == "extern" {
		return HintExtern
	}
	return HintIntern
}

// Store is a key/value store of opaque data blocks. Each operation must be
// atomic by itself, but no transactions across calls are required.
type Store interface {
	// RetrieveDataBlock returns the data stored under key. It returns ErrNotFound
	// if there is no such key and ErrDamaged if it exists but can not be read.
	RetrieveDataBlock(key string) ([]byte, error)

	// StoreDataBlock stores data under key, replacing any previous data.
	StoreDataBlock(key string, data []byte, hint StoreHint) error

	// DeleteDataBlock removes key. Deleting a key that does not exist is not an error.
	DeleteDataBlock(key string) error

	// DataBlockKeysStartingWith returns the keys starting with prefix, sorted.
	DataBlockKeysStartingWith(prefix string) ([]string, error)
}
