// Package store provides read access to the bytes behind SIP files. A SIP
// descriptor names each file by a storage key, and a store turns the key
// into a stream.
//
// The FileSystem store is the usual one. The S3 store reads from a bucket,
// and the Memory store is useful for testing.
package store

import (
	"errors"
	"io"

	"github.com/ndlib/sipbag/sip"
)

// ROStore is a read-only, goroutine safe key-value store whose values are
// streams.
type ROStore interface {
	// Open returns a reader for the given key along with its size.
	Open(key string) (io.ReadCloser, int64, error)
	// Stat returns the size of the given key without reading it.
	Stat(key string) (int64, error)
}

// ErrNotExist means there is nothing stored under a key.
var ErrNotExist = errors.New("Key does not exist")

// Blob is a single key in a store. It implements sip.Source, and opens the
// key every time Open is called.
type Blob struct {
	Store ROStore
	Key   string
}

var _ sip.Source = Blob{}

// Open implements sip.Source.
func (b Blob) Open() (io.ReadCloser, error) {
	rc, _, err := b.Store.Open(b.Key)
	return rc, err
}

// Opener returns a sip.OpenFunc which resolves the keys in a SIP descriptor
// against the store s.
func Opener(s ROStore) sip.OpenFunc {
	return func(key string) (sip.Source, int64, error) {
		size, err := s.Stat(key)
		if err != nil {
			return nil, 0, err
		}
		return Blob{Store: s, Key: key}, size, nil
	}
}
