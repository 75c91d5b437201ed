package store

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// FileSystem is a store of files under a root directory. The keys are used
// as file names, sharded into two levels of subdirectories by their first
// four characters, so the key "abcd0123" is kept in "<root>/ab/cd/abcd0123".
// Keys may not contain a forward slash character '/'.
type FileSystem struct {
	root string
}

var (
	// make sure it implements the ROStore interface
	_ ROStore = &FileSystem{}

	// ErrKeyContainsSlash means the key provided contains a forward slash '/'
	ErrKeyContainsSlash = errors.New("Key contains forward slash")

	// ErrKeyContainsNonUnicode means the key provided contains a Non Unicode Rune
	ErrKeyContainsNonUnicode = errors.New("Key contains Non-Unicode character")

	// ErrKeyContainsWhiteSpace  means the key provided contains WhiteSpace
	ErrKeyContainsWhiteSpace = errors.New("Key contains White Space")

	// ErrKeyContainsControlChar  means the key provided contains Control Characters
	ErrKeyContainsControlChar = errors.New("Key contains Control  Characters")
)

// NewFileSystem creates a new FileSystem store based at the given root path.
func NewFileSystem(root string) *FileSystem {
	return &FileSystem{root}
}

// Path returns the file name the given key is stored under.
func (s *FileSystem) Path(key string) (string, error) {
	if err := isKeyValid(key); err != nil {
		return "", err
	}
	return filepath.Join(s.root, itemSubdir(key), key), nil
}

// Open returns a reader for the given key along with its size.
func (s *FileSystem) Open(key string) (io.ReadCloser, int64, error) {
	fname, err := s.Path(key)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(fname)
	if os.IsNotExist(err) {
		return nil, 0, ErrNotExist
	} else if err != nil {
		return nil, 0, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, fi.Size(), nil
}

// Stat returns the size of the file for the given key.
func (s *FileSystem) Stat(key string) (int64, error) {
	fname, err := s.Path(key)
	if err != nil {
		return 0, err
	}
	fi, err := os.Stat(fname)
	if os.IsNotExist(err) {
		return 0, ErrNotExist
	} else if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// Given an item key, return the subdirectory the item's file are stored in
// e.g. "abcdd123" returns "ab/cd/"
func itemSubdir(key string) string {
	var result string
	switch len(key) {
	case 0:
		result = "./"
	case 1, 2:
		result = key + "/"
	case 3:
		result = key[0:2] + "/" + key[2:3] + "/"
	default:
		result = key[0:2] + "/" + key[2:4] + "/"
	}
	return result
}

// Some Simple Item Key Validations
func isKeyValid(key string) error {
	if !utf8.ValidString(key) {
		return ErrKeyContainsNonUnicode
	}
	if strings.Contains(key, "/") {
		return ErrKeyContainsSlash
	}
	for _, r := range key {
		if unicode.IsSpace(r) {
			return ErrKeyContainsWhiteSpace
		}
		if unicode.IsControl(r) {
			return ErrKeyContainsControlChar
		}
	}
	return nil
}
