// Package checksum computes the digests written into BagIt manifests.
//
// An Algorithm is looked up by name. Names are matched ignoring case and
// punctuation, so "SHA-256", "sha256" and "sha_256" all refer to SHA256.
// The canonical name returned by String() is the one used in manifest file
// names, e.g. "manifest-sha256.txt".
//
// All digests are computed while streaming. Nothing here needs the whole
// payload in memory.
package checksum

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"io"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// Algorithm identifies a hash function usable in a manifest.
type Algorithm int

// The supported algorithms.
const (
	MD5 Algorithm = iota + 1
	SHA1
	SHA224
	SHA256
	SHA384
	SHA512
	SHA3_256
	SHA3_512
	BLAKE2b_256
	BLAKE2b_512
)

var (
	// ErrUnsupportedAlgorithm means a checksum algorithm was requested
	// which this package does not know about.
	ErrUnsupportedAlgorithm = errors.New("unsupported checksum algorithm")

	// canonical names, as they appear in manifest file names.
	names = map[Algorithm]string{
		MD5:         "md5",
		SHA1:        "sha1",
		SHA224:      "sha224",
		SHA256:      "sha256",
		SHA384:      "sha384",
		SHA512:      "sha512",
		SHA3_256:    "sha3-256",
		SHA3_512:    "sha3-512",
		BLAKE2b_256: "blake2b-256",
		BLAKE2b_512: "blake2b-512",
	}

	// normalized name -> algorithm
	byKey = make(map[string]Algorithm)
)

func init() {
	for a, name := range names {
		byKey[normalize(name)] = a
	}
}

// normalize lowercases name and drops everything that is not a letter or a
// digit.
func normalize(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if ('a' <= r && r <= 'z') || ('0' <= r && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Lookup returns the Algorithm having the given name.
func Lookup(name string) (Algorithm, error) {
	a, ok := byKey[normalize(name)]
	if !ok {
		return 0, errors.Wrapf(ErrUnsupportedAlgorithm, "%q", name)
	}
	return a, nil
}

// LookupAll resolves a list of names, keeping their order and dropping
// duplicates. It fails on the first unknown name.
func LookupAll(names []string) ([]Algorithm, error) {
	var result []Algorithm
	seen := make(map[Algorithm]bool)
	for _, name := range names {
		a, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		if seen[a] {
			continue
		}
		seen[a] = true
		result = append(result, a)
	}
	return result, nil
}

// String returns the canonical BagIt name of the algorithm.
func (a Algorithm) String() string {
	if name, ok := names[a]; ok {
		return name
	}
	return "unknown"
}

// Valid returns nil iff a is a supported algorithm.
func (a Algorithm) Valid() error {
	if _, ok := names[a]; !ok {
		return errors.Wrapf(ErrUnsupportedAlgorithm, "algorithm %d", int(a))
	}
	return nil
}

// New returns a fresh hash.Hash for the algorithm. It panics if a is not
// valid.
func (a Algorithm) New() hash.Hash {
	switch a {
	case MD5:
		return md5.New()
	case SHA1:
		return sha1.New()
	case SHA224:
		return sha256.New224()
	case SHA256:
		return sha256.New()
	case SHA384:
		return sha512.New384()
	case SHA512:
		return sha512.New()
	case SHA3_256:
		return sha3.New256()
	case SHA3_512:
		return sha3.New512()
	case BLAKE2b_256:
		// only fails for keys longer than 64 bytes
		h, _ := blake2b.New256(nil)
		return h
	case BLAKE2b_512:
		h, _ := blake2b.New512(nil)
		return h
	}
	panic("checksum: unsupported algorithm " + a.String())
}

// Sum reads r until EOF and returns the lowercase hex digest of everything
// read, along with the number of bytes consumed. The reader is not closed.
func Sum(r io.Reader, a Algorithm) (string, int64, error) {
	if err := a.Valid(); err != nil {
		return "", 0, err
	}
	h := a.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Line formats a single manifest line. It includes the trailing newline.
func Line(digest, path string) string {
	return digest + " " + path + "\n"
}
