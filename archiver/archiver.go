/*
Package archiver writes SIPs to disk as BagIt bags.

Each SIP gets its own bag under an archive root. The directory of the bag is
chosen by a naming.DirectoryBuilder, so the SIP "abcd0000-1111-..." is by
default written into "<root>/ab/cd/0000-1111-...". A bag contains

	data/files/<name>       the payload files of the SIP
	data/metadata/<name>    one file per metadata document
	data/filenames.txt      "<name> <SIP path>" for every payload file
	fetch.txt               files stored in an earlier bag, if any
	manifest-<alg>.txt      checksums of everything under data/
	bagit.txt
	bag-info.txt
	tagmanifest-<alg>.txt   checksums of the tag files

When a SIP is a new revision of an earlier one ("a patch"), the files whose
identity is already stored in an earlier bag are not copied. They are listed
in fetch.txt with the location of the earlier copy, and in the manifests
with the checksums recorded when they were first written.

After a bag is written its layout is recorded in a layout.Store. Those
records are what later revisions are compared against, and a SIP is only
archived once unless overwriting is asked for.

Bags are first written into "<root>/scratch" and then renamed into place,
so a bag directory is either complete or absent.
*/
package archiver

import (
	"path/filepath"

	"github.com/facebookgo/clock"

	"github.com/ndlib/sipbag/bagit"
	"github.com/ndlib/sipbag/checksum"
	"github.com/ndlib/sipbag/layout"
	"github.com/ndlib/sipbag/naming"
	"github.com/ndlib/sipbag/sip"
)

const (
	// DefaultProfile is the bag profile in the External-Identifier tag.
	DefaultProfile = "SIPBagIt-v1.0.0"

	// DefaultMaxChainDepth bounds the walk up a revision chain.
	DefaultMaxChainDepth = 1000

	// ExternalIdentifier is filled in with "<sip id>/<profile>" when it is
	// configured with an empty value.
	ExternalIdentifier = "External-Identifier"
)

// DefaultTags is the default content of bag-info.txt. Empty values are
// generated for each bag.
var DefaultTags = []bagit.Tag{
	{Name: "Source-Organization", Value: "European Organization for Nuclear Research"},
	{Name: "Organization-Address", Value: "CERN, CH-1211 Geneva 23, Switzerland"},
	{Name: bagit.BaggingDate},
	{Name: bagit.PayloadOxum},
	{Name: ExternalIdentifier},
	{Name: "External-Description", Value: "BagIt archive of SIP."},
}

// SidecarFormat selects how the file name side-car is written.
type SidecarFormat int

const (
	// SidecarText writes data/filenames.txt with one "<name> <SIP path>"
	// line per file.
	SidecarText SidecarFormat = iota
	// SidecarYAML writes data/filenames.yaml with a mapping from name to
	// SIP path.
	SidecarYAML
)

// Archiver exports SIPs into bags under Root. The zero value is not
// usable; use New and then adjust the fields. An Archiver may be used by
// several goroutines at once. Exports of the same SIP are installed one
// at a time; of two first exports racing, the loser gets an error
// wrapping layout.ErrAlreadyArchived.
type Archiver struct {
	Root    string       // absolute path of the archive root
	Layouts layout.Store // records of the bags written
	// Patches is consulted to walk the revision chain. New sets it to
	// follow the layouts recorded in Layouts.
	Patches sip.PatchLookup

	Algorithms        []checksum.Algorithm
	FileFormatter     naming.FileFormatter
	MetadataFormatter naming.MetadataFormatter
	DirBuilder        naming.DirectoryBuilder

	// Tags are written to bag-info.txt in this order, followed by the
	// agent tags.
	Tags      []bagit.Tag
	AgentTags func(sip.Agent) []bagit.Tag
	Profile   string
	Sidecar   SidecarFormat

	Clock         clock.Clock
	MaxChainDepth int

	installing idlock // serializes install by SIP id
}

// Options modify a single export.
type Options struct {
	// PatchOf is the id of the SIP this one is a revision of. Files of that
	// SIP's bag are referenced instead of copied.
	PatchOf string
	// IncludeAllPrevious looks for files in every ancestor of PatchOf, not
	// only in PatchOf itself.
	IncludeAllPrevious bool
	// Overwrite replaces an existing bag and layout of the SIP.
	Overwrite bool
}

// New returns an Archiver writing into root with the default settings:
// MD5 manifests, secure file names, and the default tags.
func New(root string, layouts layout.Store) *Archiver {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Archiver{
		Root:              root,
		Layouts:           layouts,
		Patches:           layout.Chain{Store: layouts},
		Algorithms:        []checksum.Algorithm{checksum.MD5},
		FileFormatter:     naming.SecureName,
		MetadataFormatter: naming.DefaultMetadataName,
		DirBuilder:        naming.DefaultDirectoryBuilder,
		Tags:              DefaultTags,
		AgentTags:         AgentTags,
		Profile:           DefaultProfile,
		Clock:             clock.New(),
		MaxChainDepth:     DefaultMaxChainDepth,
	}
}

// SubPath returns the directory of the SIP's bag relative to the archive
// root.
func (a *Archiver) SubPath(s *sip.SIP) (string, error) {
	return a.subPath(s.ID)
}

func (a *Archiver) subPath(id string) (string, error) {
	parts, err := a.DirBuilder(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(parts...), nil
}

// BagDir returns the absolute directory of the bag for the given SIP id.
func (a *Archiver) BagDir(id string) (string, error) {
	sub, err := a.subPath(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(a.Root, sub), nil
}

// Layout returns the recorded layout of the SIP's bag, or nil if the SIP
// has not been archived.
func (a *Archiver) Layout(id string) (*layout.Layout, error) {
	return a.Layouts.Get(id)
}

// Files works out the layout the SIP's bag would have, without writing
// anything. Checksums are only known for the files which would be fetched.
func (a *Archiver) Files(s *sip.SIP, opts Options) (*layout.Layout, error) {
	p, err := a.plan(s, opts)
	if err != nil {
		return nil, err
	}
	return p.layout(), nil
}
