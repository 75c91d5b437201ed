package archiver

import (
	"bytes"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/ndlib/sipbag/bagit"
	"github.com/ndlib/sipbag/layout"
	"github.com/ndlib/sipbag/sip"
)

const (
	filesDir    = "data/files/"
	metadataDir = "data/metadata/"
)

// An item is one payload entry of a bag being planned.
type item struct {
	path    string // relative to the bag directory
	name    string // as given by the formatter
	file    *sip.File
	from    *inherited // set if the file is fetched from an earlier bag
	content []byte     // for metadata and the side-car
}

// plan is everything that goes into a bag, decided before anything is
// written.
type plan struct {
	sip      *sip.SIP
	patchOf  string
	files    []*item // in SIP order
	metadata []*item
	sidecar  *item
}

func (a *Archiver) plan(s *sip.SIP, opts Options) (*plan, error) {
	inherit, err := a.resolve(s, opts)
	if err != nil {
		return nil, err
	}
	p := &plan{sip: s, patchOf: opts.PatchOf}
	for _, f := range s.Files {
		name := a.FileFormatter(s, f)
		it := &item{name: name, file: f}
		it.path, err = payloadPath(s.ID, filesDir, name)
		if err != nil {
			return nil, err
		}
		if in, ok := inherit[f.ID]; ok {
			it.from = &in
		}
		p.files = append(p.files, it)
	}
	for _, m := range s.Metadata {
		name := a.MetadataFormatter(m)
		it := &item{name: name, content: []byte(m.Content)}
		it.path, err = payloadPath(s.ID, metadataDir, name)
		if err != nil {
			return nil, err
		}
		p.metadata = append(p.metadata, it)
	}
	p.sidecar, err = a.sidecar(p.files)
	if err != nil {
		return nil, err
	}
	if err := p.checkCollisions(); err != nil {
		return nil, err
	}
	return p, nil
}

// payloadPath joins dir and name, making sure the result stays inside dir.
// Other names give an error wrapping bagit.ErrBadPath.
func payloadPath(id, dir, name string) (string, error) {
	p := path.Clean(dir + name)
	if !strings.HasPrefix(p, dir) || strings.ContainsAny(name, "\r\n\\") {
		return "", errors.Wrapf(bagit.ErrBadPath, "sip %s: %q", id, dir+name)
	}
	return p, nil
}

// sidecar builds the file mapping each archived name back to its path in
// the SIP, sorted by archived name.
func (a *Archiver) sidecar(files []*item) (*item, error) {
	sorted := make([]*item, len(files))
	copy(sorted, files)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].name < sorted[j].name })

	switch a.Sidecar {
	case SidecarYAML:
		m := make(map[string]string, len(sorted))
		for _, it := range sorted {
			m[it.name] = it.file.Path
		}
		content, err := yaml.Marshal(m)
		if err != nil {
			return nil, err
		}
		return &item{path: "data/filenames.yaml", name: "filenames.yaml", content: content}, nil
	case SidecarText:
		var buf bytes.Buffer
		for _, it := range sorted {
			fmt.Fprintf(&buf, "%s %s\n", it.name, it.file.Path)
		}
		return &item{path: "data/filenames.txt", name: "filenames.txt", content: buf.Bytes()}, nil
	}
	return nil, errors.Errorf("unknown side-car format %d", a.Sidecar)
}

// checkCollisions makes sure no two items share a path, and that no item is
// placed inside the path of another.
func (p *plan) checkCollisions() error {
	seen := make(map[string]bool)
	all := p.items()
	for _, it := range all {
		if seen[it.path] {
			return errors.Wrapf(ErrNameCollision, "sip %s: %s", p.sip.ID, it.path)
		}
		seen[it.path] = true
	}
	for _, it := range all {
		for dir := path.Dir(it.path); dir != "data" && dir != "."; dir = path.Dir(dir) {
			if seen[dir] {
				return errors.Wrapf(ErrNameCollision, "sip %s: %s is inside %s", p.sip.ID, it.path, dir)
			}
		}
	}
	return nil
}

// items returns every payload entry in manifest order.
func (p *plan) items() []*item {
	var result []*item
	result = append(result, p.files...)
	result = append(result, p.metadata...)
	return append(result, p.sidecar)
}

// layout describes the bag of the plan. Checksums are only filled in for
// fetched files.
func (p *plan) layout() *layout.Layout {
	l := &layout.Layout{SIPID: p.sip.ID, PatchOf: p.patchOf}
	for _, it := range p.files {
		e := layout.Entry{
			FileID:  it.file.ID,
			SIPPath: it.file.Path,
			Path:    it.path,
			Size:    it.file.Size,
		}
		if it.from != nil {
			e.Size = it.from.entry.Size
			e.Fetched = true
			e.Source = it.from.source()
			e.Checksums = it.from.entry.Checksums
		}
		l.Files = append(l.Files, e)
	}
	for _, it := range p.items()[len(p.files):] {
		l.Metadata = append(l.Metadata, layout.Entry{
			Path: it.path,
			Size: int64(len(it.content)),
		})
	}
	return l
}

// joinSlash joins a slash separated relative path onto dir.
func joinSlash(dir, p string) string {
	return filepath.Join(dir, filepath.FromSlash(p))
}
