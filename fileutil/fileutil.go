// Package fileutil builds SIPs out of directories on the local file system.
package fileutil

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/ndlib/sipbag/checksum"
	"github.com/ndlib/sipbag/sip"
)

// IDAlgorithm is the digest used for the identity of scanned files.
const IDAlgorithm = checksum.SHA256

// Scan walks the directory root and returns a file for every regular file
// below it, in lexical order of their paths. Directories whose name begins
// with "." are not walked.
//
// The id of a file is "sha256:<hex digest>" of its content, so scanning two
// revisions of a directory gives the same id to unchanged files, wherever
// they are.
func Scan(root string) ([]*sip.File, error) {
	var result []*sip.File
	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if p != root && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		sum, n, err := checksum.Sum(f, IDAlgorithm)
		f.Close()
		if err != nil {
			return errors.Wrap(err, p)
		}
		result = append(result, &sip.File{
			ID:     IDAlgorithm.String() + ":" + sum,
			Path:   filepath.ToSlash(rel),
			Size:   n,
			Source: sip.LocalFile(p),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Directory returns a SIP with the given id holding the files below root.
func Directory(id, root string) (*sip.SIP, error) {
	files, err := Scan(root)
	if err != nil {
		return nil, err
	}
	return &sip.SIP{ID: id, Archivable: true, Files: files}, nil
}
