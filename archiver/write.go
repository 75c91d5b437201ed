package archiver

import (
	"io"
	"log"
	"os"
	"path/filepath"

	raven "github.com/getsentry/raven-go"
	"github.com/pkg/errors"

	"github.com/ndlib/sipbag/bagit"
	"github.com/ndlib/sipbag/checksum"
	"github.com/ndlib/sipbag/layout"
	"github.com/ndlib/sipbag/sip"
)

// Export writes the bag of s and records its layout. Files already stored
// in the bag of an ancestor, as decided by opts, are referenced through
// fetch.txt instead of being copied.
//
// Unless opts.Overwrite is set, a SIP which already has a layout is not
// written again and an error wrapping layout.ErrAlreadyArchived is
// returned. On success s.Archived is set.
func (a *Archiver) Export(s *sip.SIP, opts Options) (*layout.Layout, error) {
	if !opts.Overwrite {
		l, err := a.Layouts.Get(s.ID)
		if err != nil {
			return nil, err
		}
		if l != nil {
			return nil, errors.Wrapf(layout.ErrAlreadyArchived, "sip %s", s.ID)
		}
	}
	p, err := a.plan(s, opts)
	if err != nil {
		return nil, err
	}
	final, err := a.BagDir(s.ID)
	if err != nil {
		return nil, err
	}
	scratch := filepath.Join(a.Root, "scratch")
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return nil, ioError(s.ID, scratch, err)
	}
	tmp, err := os.MkdirTemp(scratch, s.ID+"-")
	if err != nil {
		return nil, ioError(s.ID, scratch, err)
	}
	defer a.removeAll(s.ID, tmp)

	l, err := a.write(tmp, p)
	if err != nil {
		return nil, err
	}
	l.Saved = a.Clock.Now()
	if err := a.install(s.ID, tmp, final, l, opts.Overwrite); err != nil {
		return nil, err
	}
	s.Archived = true
	log.Printf("Archiver: sip %s written to %s (%d files, %d fetched)",
		s.ID, final, len(l.Files), countFetched(l))
	return l, nil
}

// write creates the bag of p in the directory dir and returns its layout.
func (a *Archiver) write(dir string, p *plan) (*layout.Layout, error) {
	s := p.sip
	w := bagit.NewWriter(dir, a.Algorithms...)
	w.Clock = a.Clock
	for _, t := range a.bagInfo(s) {
		w.SetTag(t.Name, t.Value)
	}
	w.AlsoTag(p.sidecar.path)

	for _, it := range p.files {
		var err error
		if it.from != nil {
			err = a.fetch(w, s, it)
		} else {
			err = copyFile(w, s, it)
		}
		if err != nil {
			return nil, err
		}
	}
	for _, it := range p.items()[len(p.files):] {
		out, err := w.Create(it.path)
		if err != nil {
			return nil, ioError(s.ID, it.path, err)
		}
		if _, err := out.Write(it.content); err != nil {
			return nil, ioError(s.ID, it.path, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, ioError(s.ID, dir, err)
	}

	entries := w.Entries()
	l := &layout.Layout{SIPID: s.ID, PatchOf: p.patchOf}
	for i, e := range entries {
		le := layout.Entry{
			Path:      e.Path,
			Size:      e.Size,
			Checksums: make(map[string]string),
			Source:    e.Source,
			Fetched:   e.Fetched(),
		}
		if i >= len(p.files) {
			for alg, sum := range e.Checksums {
				le.Checksums[alg.String()] = sum
			}
			l.Metadata = append(l.Metadata, le)
			continue
		}
		it := p.files[i]
		le.FileID = it.file.ID
		le.SIPPath = it.file.Path
		if it.from != nil {
			// keep digests of algorithms this bag does not use
			for alg, sum := range it.from.entry.Checksums {
				le.Checksums[alg] = sum
			}
		}
		for alg, sum := range e.Checksums {
			le.Checksums[alg.String()] = sum
		}
		l.Files = append(l.Files, le)
	}
	return l, nil
}

func copyFile(w *bagit.Writer, s *sip.SIP, it *item) error {
	if it.file.Source == nil {
		return ioError(s.ID, it.file.Path, errors.New("file has no source"))
	}
	in, err := it.file.Source.Open()
	if err != nil {
		return ioError(s.ID, it.file.Path, err)
	}
	defer in.Close()
	out, err := w.Create(it.path)
	if err != nil {
		return ioError(s.ID, it.path, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		return ioError(s.ID, it.file.Path, err)
	}
	return nil
}

// fetch adds an inherited file to the bag. Digests the ancestor did not
// record are computed from the ancestor's copy.
func (a *Archiver) fetch(w *bagit.Writer, s *sip.SIP, it *item) error {
	source := it.from.source()
	sums := make(map[checksum.Algorithm]string)
	for name, sum := range it.from.entry.Checksums {
		if alg, err := checksum.Lookup(name); err == nil {
			sums[alg] = sum
		}
	}
	var missing []checksum.Algorithm
	for _, alg := range a.Algorithms {
		if sums[alg] == "" {
			missing = append(missing, alg)
		}
	}
	if len(missing) > 0 {
		f, err := os.Open(source)
		if err != nil {
			return ioError(s.ID, source, err)
		}
		hw := checksum.NewHashWriter(nil, missing...)
		_, err = io.Copy(hw, f)
		f.Close()
		if err != nil {
			return ioError(s.ID, source, err)
		}
		for alg, sum := range hw.Sums() {
			sums[alg] = sum
		}
	}
	err := w.Fetch(it.path, source, it.from.entry.Size, sums)
	if err != nil {
		return ioError(s.ID, it.path, err)
	}
	return nil
}

// install moves the bag in tmp to final and saves its layout. If the
// layout cannot be saved the bag is removed again, and when overwriting,
// the previous bag is put back. Installs of the same SIP do not overlap.
func (a *Archiver) install(id, tmp, final string, l *layout.Layout, overwrite bool) error {
	a.installing.Lock(id)
	defer a.installing.Unlock(id)

	if err := os.MkdirAll(filepath.Dir(final), 0755); err != nil {
		return ioError(id, final, err)
	}
	if !overwrite {
		if _, err := os.Lstat(final); err == nil {
			// another export may have finished since the check in Export
			prev, err := a.Layouts.Get(id)
			if err != nil {
				return err
			}
			if prev != nil {
				return errors.Wrapf(layout.ErrAlreadyArchived, "sip %s", id)
			}
			return ioError(id, final, errors.New("bag directory already exists"))
		} else if !os.IsNotExist(err) {
			return ioError(id, final, err)
		}
		if err := os.Rename(tmp, final); err != nil {
			return ioError(id, final, err)
		}
		if err := a.Layouts.Save(l, false); err != nil {
			a.removeAll(id, final)
			return err
		}
		return nil
	}

	old := tmp + ".old"
	moved := false
	if err := os.Rename(final, old); err == nil {
		moved = true
	} else if !os.IsNotExist(err) {
		return ioError(id, final, err)
	}
	restore := func() {
		if !moved {
			return
		}
		if err := os.Rename(old, final); err != nil {
			log.Printf("Archiver: restoring %s: %s", final, err)
			raven.CaptureError(err, map[string]string{"SIP": id, "Path": final})
		}
	}
	if err := os.Rename(tmp, final); err != nil {
		restore()
		return ioError(id, final, err)
	}
	if err := a.Layouts.Save(l, true); err != nil {
		a.removeAll(id, final)
		restore()
		return err
	}
	if moved {
		a.removeAll(id, old)
	}
	return nil
}

// removeAll deletes dir. Failures are only logged, since there is no one
// to return them to.
func (a *Archiver) removeAll(id, dir string) {
	if err := os.RemoveAll(dir); err != nil {
		log.Printf("Archiver: removing %s: %s", dir, err)
		raven.CaptureError(err, map[string]string{"SIP": id, "Path": dir})
	}
}

func countFetched(l *layout.Layout) int {
	var n int
	for _, e := range l.Files {
		if e.Fetched {
			n++
		}
	}
	return n
}
