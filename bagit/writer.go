package bagit

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/facebookgo/clock"
	"github.com/pkg/errors"

	"github.com/ndlib/sipbag/checksum"
)

// Writer writes a new bag into a directory. When it is closed, fetch.txt,
// the manifests, bagit.txt, bag-info.txt, and the tag manifests are written
// out.
//
// A Writer is not safe for concurrent use.
type Writer struct {
	// Clock provides the Bagging-Date. Defaults to the wall clock.
	Clock clock.Clock

	dir     string
	algs    []checksum.Algorithm
	tags    []Tag
	payload []*Entry
	ns      int      // number of payload entries
	sz      int64    // size of the payload entries, in bytes
	tagged  []string // payload entries also listed in the tag manifests

	current *Entry               // entry being written
	f       *os.File             // file behind current
	hw      *checksum.HashWriter // current hash writer
	err     error                // first error while finishing a file
	closed  bool
}

// NewWriter creates a bag writer which saves into the directory dir,
// creating it as needed. A manifest is produced for each of the given
// algorithms. If no algorithms are given, MD5 is used.
func NewWriter(dir string, algs ...checksum.Algorithm) *Writer {
	if len(algs) == 0 {
		algs = []checksum.Algorithm{checksum.MD5}
	}
	return &Writer{
		Clock: clock.New(),
		dir:   dir,
		algs:  algs,
	}
}

// Dir returns the directory the bag is written into.
func (w *Writer) Dir() string { return w.dir }

// SetTag sets a tag in bag-info.txt. Tags are written in the order they are
// first set. Setting an existing tag replaces its value in place. The tags
// "Bagging-Date", "Payload-Oxum", and "Bag-Size" are filled in on Close if
// they are set with an empty value.
func (w *Writer) SetTag(name, value string) {
	for i := range w.tags {
		if w.tags[i].Name == name {
			w.tags[i].Value = value
			return
		}
	}
	w.tags = append(w.tags, Tag{Name: name, Value: value})
}

// Create a new payload file in the bag. The name is the path relative to
// the bag directory and must begin with "data/". The returned writer is
// valid until the next call to Create, Fetch, or Close.
func (w *Writer) Create(name string) (io.Writer, error) {
	if err := w.finish(); err != nil {
		return nil, err
	}
	if err := checkPayloadPath(name); err != nil {
		return nil, err
	}
	fname := filepath.Join(w.dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(fname), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(fname, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, err
	}
	w.f = f
	w.hw = checksum.NewHashWriter(f, w.algs...)
	w.current = &Entry{Path: name}
	w.payload = append(w.payload, w.current)
	return w.hw, nil
}

// Fetch adds a payload entry which is not stored in the bag but is to be
// fetched from source. sums must have a checksum for every algorithm of the
// bag; extra checksums are ignored.
func (w *Writer) Fetch(name, source string, size int64, sums map[checksum.Algorithm]string) error {
	if err := w.finish(); err != nil {
		return err
	}
	if err := checkPayloadPath(name); err != nil {
		return err
	}
	e := &Entry{
		Path:      name,
		Size:      size,
		Source:    source,
		Checksums: make(map[checksum.Algorithm]string),
	}
	for _, a := range w.algs {
		if sums[a] == "" {
			return errors.Wrapf(ErrMissingChecksum, "%s for %s", a, name)
		}
		e.Checksums[a] = sums[a]
	}
	w.payload = append(w.payload, e)
	w.ns++
	w.sz += size
	return nil
}

// finish closes the file being written and records its checksums.
func (w *Writer) finish() error {
	if w.closed {
		return errors.New("bag writer is closed")
	}
	if w.current == nil {
		return w.err
	}
	w.current.Size = w.hw.Count()
	w.current.Checksums = w.hw.Sums()
	w.ns++
	w.sz += w.current.Size
	err := w.f.Close()
	if err != nil && w.err == nil {
		w.err = err
	}
	w.current, w.f, w.hw = nil, nil, nil
	return w.err
}

// AlsoTag lists the payload entry name in the tag manifests as well as in
// the payload manifests.
func (w *Writer) AlsoTag(name string) {
	w.tagged = append(w.tagged, name)
}

// Payload returns the total size in bytes and the number of payload
// entries so far, fetched ones included. These are the two parts of the
// Payload-Oxum.
func (w *Writer) Payload() (int64, int) {
	if w.current != nil {
		return w.sz + w.hw.Count(), w.ns + 1
	}
	return w.sz, w.ns
}

// Entries returns the payload entries written so far, in the order they
// were added. The sizes and checksums of an entry are known once the next
// entry is started or the writer is closed.
func (w *Writer) Entries() []Entry {
	result := make([]Entry, len(w.payload))
	for i, e := range w.payload {
		result[i] = *e
	}
	return result
}

// Close this Writer and write out all the tag files. If there was an
// error writing a payload file, it is returned and no tag files are written.
func (w *Writer) Close() error {
	err := w.finish()
	if err != nil {
		return err
	}
	w.closed = true
	for i := range w.tags {
		if w.tags[i].Value != "" {
			continue
		}
		switch w.tags[i].Name {
		case PayloadOxum:
			w.tags[i].Value = fmt.Sprintf("%d.%d", w.sz, w.ns)
		case BaggingDate:
			w.tags[i].Value = w.Clock.Now().UTC().Format(DateFormat)
		case BagSize:
			w.tags[i].Value = humansize(w.sz)
		}
	}
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return err
	}

	// tag files and their checksums, in the order of the tag manifests
	var tagfiles []*Entry
	writeTagFile := func(name string, content []byte) error {
		e, err := w.writeTagFile(name, content)
		if err == nil {
			tagfiles = append(tagfiles, e)
		}
		return err
	}

	if fetch := w.fetchFile(); fetch != nil {
		if err := writeTagFile("fetch.txt", fetch); err != nil {
			return err
		}
	}
	for _, a := range w.algs {
		var buf bytes.Buffer
		for _, e := range w.payload {
			buf.WriteString(checksum.Line(e.Checksums[a], e.Path))
		}
		if err := writeTagFile("manifest-"+a.String()+".txt", buf.Bytes()); err != nil {
			return err
		}
	}
	bagit := fmt.Sprintf("BagIt-Version: %s\nTag-File-Character-Encoding: UTF-8\n", Version)
	if err := writeTagFile("bagit.txt", []byte(bagit)); err != nil {
		return err
	}
	var info bytes.Buffer
	for _, t := range w.tags {
		fmt.Fprintf(&info, "%s: %s\n", t.Name, t.Value)
	}
	if err := writeTagFile("bag-info.txt", info.Bytes()); err != nil {
		return err
	}

	for _, name := range w.tagged {
		for _, e := range w.payload {
			if e.Path == name && !e.Fetched() {
				tagfiles = append(tagfiles, e)
			}
		}
	}
	for _, a := range w.algs {
		var buf bytes.Buffer
		for _, e := range tagfiles {
			buf.WriteString(checksum.Line(e.Checksums[a], e.Path))
		}
		if _, err := w.writeTagFile("tagmanifest-"+a.String()+".txt", buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// fetchFile returns the content of fetch.txt, or nil if nothing is fetched.
func (w *Writer) fetchFile() []byte {
	var buf bytes.Buffer
	for _, e := range w.payload {
		if e.Fetched() {
			fmt.Fprintf(&buf, "%s %d %s\n", e.Source, e.Size, e.Path)
		}
	}
	if buf.Len() == 0 {
		return nil
	}
	return buf.Bytes()
}

func (w *Writer) writeTagFile(name string, content []byte) (*Entry, error) {
	hw := checksum.NewHashWriter(nil, w.algs...)
	hw.Write(content)
	err := os.WriteFile(filepath.Join(w.dir, name), content, 0644)
	if err != nil {
		return nil, err
	}
	return &Entry{Path: name, Size: hw.Count(), Checksums: hw.Sums()}, nil
}
