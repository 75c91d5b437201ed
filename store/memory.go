package store

import (
	"bytes"
	"io"
	"io/ioutil"
	"sync"
)

// Memory implements a simple in-memory version of a store. It is intended
// mainly for testing.
type Memory struct {
	m     sync.RWMutex
	store map[string][]byte
}

var (
	// ensure Memory satisfies the ROStore interface
	_ ROStore = &Memory{}
)

// NewMemory returns a new, empty memory store.
func NewMemory() *Memory {
	return &Memory{store: make(map[string][]byte)}
}

// Set stores a copy of value under key, replacing anything already there.
func (ms *Memory) Set(key string, value []byte) {
	b := make([]byte, len(value))
	copy(b, value)
	ms.m.Lock()
	ms.store[key] = b
	ms.m.Unlock()
}

// Open returns a reader for the given key along with its size.
func (ms *Memory) Open(key string) (io.ReadCloser, int64, error) {
	ms.m.RLock()
	v, ok := ms.store[key]
	ms.m.RUnlock()
	if !ok {
		return nil, 0, ErrNotExist
	}
	return ioutil.NopCloser(bytes.NewReader(v)), int64(len(v)), nil
}

// Stat returns the size of the given key.
func (ms *Memory) Stat(key string) (int64, error) {
	ms.m.RLock()
	v, ok := ms.store[key]
	ms.m.RUnlock()
	if !ok {
		return 0, ErrNotExist
	}
	return int64(len(v)), nil
}
