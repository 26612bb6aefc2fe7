package blobstore

import (
	"sort"
	"sync"

	"github.com/derekparker/trie"
)

// MemoryStore keeps the data blocks in memory. It is safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	blocks map[string][]byte
	hints  map[string]StoreHint

	// Index of the keys for prefix searches. Keys are never removed from it,
	// searches are filtered against blocks.
	keys *trie.Trie
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blocks: make(map[string][]byte),
		hints:  make(map[string]StoreHint),
		keys:   trie.New(),
	}
}

func (m *MemoryStore) RetrieveDataBlock(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.blocks[key]
	if !ok {
		return nil, ErrNotFound
	}
	// Callers may modify the slice
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemoryStore) StoreDataBlock(key string, data []byte, hint StoreHint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.index(key)
	stored := make([]byte, len(data))
	copy(stored, data)
	m.blocks[key] = stored
	m.hints[key] = hint
	return nil
}

func (m *MemoryStore) DeleteDataBlock(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.blocks[key]; !ok {
		return nil
	}
	delete(m.blocks, key)
	delete(m.hints, key)
	return nil
}

func (m *MemoryStore) DataBlockKeysStartingWith(prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	if prefix == "" {
		keys = make([]string, 0, len(m.blocks))
		for k := range m.blocks {
			keys = append(keys, k)
		}
	} else {
		for _, k := range m.keys.PrefixSearch(prefix) {
			if _, ok := m.blocks[k]; ok {
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Hint returns the store hint used when key was last stored.
func (m *MemoryStore) Hint(key string) (StoreHint, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.hints[key]
	return h, ok
}

// Len returns the number of blocks stored.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blocks)
}

// Size returns the number of bytes stored under key, or -1 if there is no such key.
func (m *MemoryStore) Size(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blocks[key]
	if !ok {
		return -1
	}
	return len(data)
}

// Corrupt replaces the data of key without going through StoreDataBlock.
// It exists to simulate interrupted writes in tests of the callers.
func (m *MemoryStore) Corrupt(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index(key)
	m.blocks[key] = data
}

func (m *MemoryStore) index(key string) {
	if _, found := m.keys.Find(key); !found {
		m.keys.Add(key, nil)
	}
}
