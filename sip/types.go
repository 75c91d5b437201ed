/*
Package sip defines the Submission Information Packages the archiver works
on.

A SIP is one captured state of a record: a list of payload files and a list
of named metadata documents, together with who produced it and when. SIPs
are never changed after they are built. A new revision of a record is a new
SIP, and the link between the two ("this SIP patches that one") is kept
outside of the SIP and is provided by a PatchLookup.

Files carry a stable identity. Two files in different SIPs having the same
ID refer to the same stored bytes, which is what lets the archiver reference
a file already archived with an earlier SIP instead of copying it again.
*/
package sip

import (
	"io"
	"os"
	"time"
)

// SIP is a single submission information package.
type SIP struct {
	ID         string // UUID-shaped stable identity
	Created    time.Time
	Agent      Agent
	Archivable bool
	Archived   bool
	Files      []*File
	Metadata   []*Metadata
}

// A Source gives access to the bytes of a payload file.
type Source interface {
	Open() (io.ReadCloser, error)
}

// File is a payload file belonging to a SIP.
type File struct {
	ID     string // stable file identity, shared between SIPs for the same content
	Path   string // path of the file relative to the SIP
	Size   int64
	Source Source
}

// MetadataType describes the kind of a metadata document.
type MetadataType struct {
	Name   string
	Format string
	Schema string // optional
}

// Metadata is a textual document attached to a SIP.
type Metadata struct {
	Type    MetadataType
	Content string
}

// AgentField is a single attribute of an agent, e.g. "email".
type AgentField struct {
	Key   string
	Value string
}

// Agent describes who or what produced a SIP. The order of the fields is
// kept, since it decides the order of the agent tags in a bag.
type Agent []AgentField

// Get returns the value of the given agent attribute.
func (a Agent) Get(key string) (string, bool) {
	for _, f := range a {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Set replaces the value of the given attribute, or appends it if it is not
// present.
func (a *Agent) Set(key, value string) {
	for i := range *a {
		if (*a)[i].Key == key {
			(*a)[i].Value = value
			return
		}
	}
	*a = append(*a, AgentField{Key: key, Value: value})
}

// File returns the file in this SIP having the given ID, or nil.
func (s *SIP) File(id string) *File {
	for _, f := range s.Files {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// A PatchLookup resolves the revision chain. Predecessor returns the id of
// the SIP which the given SIP patches, and false if it has none.
type PatchLookup interface {
	Predecessor(id string) (string, bool, error)
}

// PatchMap is a PatchLookup backed by a map from SIP id to the id of the
// SIP it patches.
type PatchMap map[string]string

// Predecessor implements PatchLookup.
func (m PatchMap) Predecessor(id string) (string, bool, error) {
	p, ok := m[id]
	if p == "" {
		ok = false
	}
	return p, ok, nil
}

// PatchLookups asks each of its lookups in turn. The first one knowing a
// predecessor wins.
type PatchLookups []PatchLookup

// Predecessor implements PatchLookup.
func (ls PatchLookups) Predecessor(id string) (string, bool, error) {
	for _, l := range ls {
		p, ok, err := l.Predecessor(id)
		if err != nil || ok {
			return p, ok, err
		}
	}
	return "", false, nil
}

// LocalFile is a Source reading a file on the local file system.
type LocalFile string

// Open implements Source.
func (f LocalFile) Open() (io.ReadCloser, error) {
	return os.Open(string(f))
}
