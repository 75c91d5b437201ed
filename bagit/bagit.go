// Package bagit implements enough of the BagIt specification (RFC 8493) to
// write and verify the bags produced by the archiver. Bags are plain
// directory trees on the local file system.
//
// A Writer creates the payload files under "data/" and streams every byte
// through the checksum engine, so each file is read exactly once. Payload
// entries may also be "fetched": listed in fetch.txt and in the manifests
// with a known size and checksum, but not present in the bag. This is how a
// bag refers to files already preserved in an earlier bag.
//
// Manifests are written for every configured algorithm, and a tag manifest
// for every algorithm covers fetch.txt, the manifests, bagit.txt, and
// bag-info.txt. Unlike a map, the tags in bag-info.txt keep the order they
// were set in.
//
// Verify checks an existing bag directory against its manifests.
//
// The BagIt spec can be found at https://tools.ietf.org/html/rfc8493.
package bagit

import (
	"fmt"
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/ndlib/sipbag/checksum"
)

const (
	// Version is the version of the BagIt specification this package implements.
	Version = "1.0"

	// DateFormat is the layout of generated Bagging-Date tags.
	DateFormat = "2006-01-02 15:04:05.000000"
)

// Tag is a single line of bag-info.txt.
type Tag struct {
	Name  string
	Value string
}

// Names of the tags a Writer generates when they are set with an empty
// value.
const (
	BaggingDate = "Bagging-Date"
	PayloadOxum = "Payload-Oxum"
	BagSize     = "Bag-Size"
)

// Entry is a payload entry of a bag: a file in the data directory, or a
// file listed in fetch.txt.
type Entry struct {
	Path      string // relative to the bag directory, always beginning with "data/"
	Size      int64
	Checksums map[checksum.Algorithm]string
	Source    string // location of a fetched entry, empty otherwise
}

// Fetched is true if the entry is listed in fetch.txt instead of being
// stored in the bag.
func (e *Entry) Fetched() bool { return e.Source != "" }

var (
	// ErrBadPath means a payload name is not a clean relative path inside
	// the data directory.
	ErrBadPath = errors.New("bad payload path")

	// ErrMissingChecksum means a fetched entry does not have a checksum for
	// every algorithm of the bag.
	ErrMissingChecksum = errors.New("missing checksum")
)

// checkPayloadPath makes sure name stays inside "data/" and can be written
// on a single manifest line.
func checkPayloadPath(name string) error {
	clean := path.Clean(name)
	if clean != name ||
		!strings.HasPrefix(name, "data/") ||
		strings.ContainsAny(name, "\r\n\\") {
		return errors.Wrapf(ErrBadPath, "%q", name)
	}
	for _, elem := range strings.Split(name, "/") {
		if elem == ".." || elem == "." || elem == "" {
			return errors.Wrapf(ErrBadPath, "%q", name)
		}
	}
	return nil
}

// Metric constants for humansize. Lowercased so as to be unexported.
const (
	kb int64 = 1000
	mb       = 1000 * kb
	gb       = 1000 * mb
	tb       = 1000 * gb
)

func humansize(size int64) string {
	var units string
	switch {
	case size < kb:
		units = "Bytes"
	case size < mb:
		size /= kb
		units = "KB"
	case size < gb:
		size /= mb
		units = "MB"
	case size < tb:
		size /= gb
		units = "GB"
	default:
		size /= tb
		units = "TB"
	}
	return fmt.Sprintf("%d %s", size, units)
}
