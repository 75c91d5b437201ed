// Package layout records what was written into each bag: for every SIP, the
// archive path, size, and checksums of each payload entry, and whether the
// entry was physically written or only referenced from an earlier bag.
//
// The archiver reads these records back when it archives a later revision
// of a SIP, to find the files which are already preserved. Records are
// created once. A second Save for the same SIP fails with ErrAlreadyArchived
// unless overwrite is asked for, and when two writers race to record the
// same SIP only one of them wins.
package layout

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrAlreadyArchived is returned by Save when the SIP already has a layout
// and overwrite was not requested.
var ErrAlreadyArchived = errors.New("SIP already archived")

// Layout is the record of one bag.
type Layout struct {
	SIPID    string    `json:"sip_id"`
	PatchOf  string    `json:"patch_of,omitempty"` // the SIP this one was archived as a revision of
	Saved    time.Time `json:"saved"`
	Files    []Entry   `json:"files"`
	Metadata []Entry   `json:"metadata"` // metadata documents and the filename side-car
}

// Entry describes one payload entry of a bag.
type Entry struct {
	FileID    string            `json:"file_id,omitempty"`
	SIPPath   string            `json:"sip_path,omitempty"` // empty for metadata
	Path      string            `json:"path"`               // relative to the bag directory
	Size      int64             `json:"size"`
	Checksums map[string]string `json:"checksums"` // algorithm name -> lowercase hex
	Fetched   bool              `json:"fetched,omitempty"`
	Source    string            `json:"source,omitempty"` // absolute location of a fetched entry
}

// Written returns the entry for the given file id, provided it was
// physically written into this bag. Fetched entries are ignored.
func (l *Layout) Written(fileID string) *Entry {
	for i := range l.Files {
		if l.Files[i].FileID == fileID && !l.Files[i].Fetched {
			return &l.Files[i]
		}
	}
	return nil
}

// A Store keeps layouts keyed by SIP id.
type Store interface {
	// Get returns the layout recorded for the SIP, or nil if there is none.
	Get(id string) (*Layout, error)
	// Save records the layout. If one is already recorded for the SIP and
	// overwrite is false, ErrAlreadyArchived is returned and nothing is
	// changed.
	Save(l *Layout, overwrite bool) error
	Close() error
}

// Chain follows the PatchOf links of the layouts in a Store. It can be used
// as a sip.PatchLookup for SIPs archived earlier.
type Chain struct {
	Store Store
}

// Predecessor returns the SIP the given one was archived as a revision of.
func (c Chain) Predecessor(id string) (string, bool, error) {
	l, err := c.Store.Get(id)
	if err != nil || l == nil {
		return "", false, err
	}
	return l.PatchOf, l.PatchOf != "", nil
}

// Open returns a Store of the given kind. The dial string is interpreted by
// the backend: a file name for "ql" ("memory" keeps everything in memory),
// a DSN for "mysql", and a directory for "badger" (empty means in memory).
// The kind "memory" ignores dial.
func Open(kind, dial string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemory(), nil
	case "ql":
		return NewQL(dial)
	case "mysql":
		return NewMySQL(dial)
	case "badger":
		return NewBadger(dial)
	}
	return nil, errors.Errorf("unknown layout store %q", kind)
}

func alreadyArchived(id string) error {
	return errors.Wrapf(ErrAlreadyArchived, "sip %s", id)
}

func encode(l *Layout) ([]byte, error) {
	return json.Marshal(l)
}

func decode(value []byte) (*Layout, error) {
	l := new(Layout)
	err := json.Unmarshal(value, l)
	if err != nil {
		return nil, errors.Wrap(err, "decoding layout")
	}
	return l, nil
}

// Memory is a Store which keeps everything in memory.
type Memory struct {
	m       sync.Mutex
	layouts map[string][]byte
}

// NewMemory returns an empty memory store.
func NewMemory() *Memory {
	return &Memory{layouts: make(map[string][]byte)}
}

// Get implements Store. The layout returned is a copy.
func (ms *Memory) Get(id string) (*Layout, error) {
	ms.m.Lock()
	value, ok := ms.layouts[id]
	ms.m.Unlock()
	if !ok {
		return nil, nil
	}
	return decode(value)
}

// Save implements Store.
func (ms *Memory) Save(l *Layout, overwrite bool) error {
	value, err := encode(l)
	if err != nil {
		return err
	}
	ms.m.Lock()
	defer ms.m.Unlock()
	if _, ok := ms.layouts[l.SIPID]; ok && !overwrite {
		return alreadyArchived(l.SIPID)
	}
	ms.layouts[l.SIPID] = value
	return nil
}

// Close implements Store.
func (ms *Memory) Close() error { return nil }

// Overlay is a Store which records layouts in memory on top of Base, which
// is only read. Layouts saved to the overlay shadow those of Base.
type Overlay struct {
	Base Store
	top  *Memory
}

// NewOverlay returns an Overlay over base.
func NewOverlay(base Store) *Overlay {
	return &Overlay{Base: base, top: NewMemory()}
}

// Get implements Store.
func (o *Overlay) Get(id string) (*Layout, error) {
	l, err := o.top.Get(id)
	if err != nil || l != nil {
		return l, err
	}
	return o.Base.Get(id)
}

// Save implements Store. Base is never changed.
func (o *Overlay) Save(l *Layout, overwrite bool) error {
	if !overwrite {
		prev, err := o.Get(l.SIPID)
		if err != nil {
			return err
		}
		if prev != nil {
			return alreadyArchived(l.SIPID)
		}
	}
	return o.top.Save(l, overwrite)
}

// Close implements Store. Base is left open.
func (o *Overlay) Close() error { return nil }
