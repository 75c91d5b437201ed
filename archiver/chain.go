package archiver

import (
	"github.com/pkg/errors"

	"github.com/ndlib/sipbag/layout"
	"github.com/ndlib/sipbag/sip"
)

// An inherited file is already stored in the bag of an ancestor SIP.
type inherited struct {
	sipID  string
	bagDir string       // absolute directory of the ancestor's bag
	entry  layout.Entry // the entry as recorded by the ancestor
}

// source is the absolute location of the stored bytes.
func (in inherited) source() string {
	return joinSlash(in.bagDir, in.entry.Path)
}

// resolve finds the files of s which do not need to be written again. The
// result maps file ids to the nearest ancestor physically holding them.
//
// Only the predecessor opts.PatchOf is consulted, unless
// opts.IncludeAllPrevious is set. Then the whole chain is walked through
// the PatchLookup, nearest first.
func (a *Archiver) resolve(s *sip.SIP, opts Options) (map[string]inherited, error) {
	result := make(map[string]inherited)
	if opts.PatchOf == "" {
		return result, nil
	}
	if opts.PatchOf == s.ID {
		return nil, errors.Errorf("sip %s is a patch of itself", s.ID)
	}
	ids := []string{opts.PatchOf}
	if opts.IncludeAllPrevious {
		var err error
		ids, err = a.ancestors(s.ID, opts.PatchOf)
		if err != nil {
			return nil, err
		}
	}

	wanted := make(map[string]bool, len(s.Files))
	for _, f := range s.Files {
		wanted[f.ID] = true
	}
	for _, id := range ids {
		l, err := a.Layouts.Get(id)
		if err != nil {
			return nil, err
		}
		if l == nil {
			return nil, errors.Wrapf(ErrMissingAncestorLayout, "sip %s, ancestor %s", s.ID, id)
		}
		dir, err := a.BagDir(id)
		if err != nil {
			return nil, err
		}
		for _, e := range l.Files {
			if e.Fetched || !wanted[e.FileID] {
				continue
			}
			if _, ok := result[e.FileID]; ok {
				// a nearer ancestor already has it
				continue
			}
			result[e.FileID] = inherited{sipID: id, bagDir: dir, entry: e}
		}
	}
	return result, nil
}

// ancestors returns the chain starting at first, nearest first. The walk
// stops at a SIP with no predecessor, at a SIP already seen, or after
// MaxChainDepth SIPs.
func (a *Archiver) ancestors(self, first string) ([]string, error) {
	max := a.MaxChainDepth
	if max <= 0 {
		max = DefaultMaxChainDepth
	}
	seen := map[string]bool{self: true}
	var ids []string
	id := first
	for len(ids) < max && !seen[id] {
		seen[id] = true
		ids = append(ids, id)
		if a.Patches == nil {
			break
		}
		prev, ok, err := a.Patches.Predecessor(id)
		if err != nil {
			return nil, errors.Wrapf(err, "predecessor of %s", id)
		}
		if !ok {
			break
		}
		id = prev
	}
	return ids, nil
}
