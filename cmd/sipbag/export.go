package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/ndlib/sipbag/archiver"
	"github.com/ndlib/sipbag/fileutil"
	"github.com/ndlib/sipbag/layout"
	"github.com/ndlib/sipbag/sip"
)

type exportOptions struct {
	PatchOf     string
	AllPrevious bool
	Overwrite   bool
	DryRun      bool
	Dir         string // make the SIP from this directory
	ID          string // id of the SIP made from Dir
}

// directoryDescriptor makes a SIP out of the files below dir. Without an
// id, a new one is generated.
func directoryDescriptor(dir, id string) ([]*sip.Descriptor, error) {
	if id == "" {
		id = uuid.New().String()
	}
	s, err := fileutil.Directory(id, dir)
	if err != nil {
		return nil, err
	}
	return []*sip.Descriptor{{SIP: s}}, nil
}

func readDescriptors(filenames []string, open sip.OpenFunc) ([]*sip.Descriptor, error) {
	var result []*sip.Descriptor
	for _, name := range filenames {
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		d, err := sip.ReadDescriptor(f, open)
		f.Close()
		if err != nil {
			return nil, errors.Wrap(err, name)
		}
		result = append(result, d)
	}
	return result, nil
}

// waves orders the descriptors so that every SIP comes after the SIP it
// patches, when both are in the batch. The SIPs of one wave do not depend
// on each other.
func waves(ds []*sip.Descriptor) ([][]*sip.Descriptor, error) {
	pending := make(map[string]*sip.Descriptor)
	for _, d := range ds {
		if _, ok := pending[d.SIP.ID]; ok {
			return nil, errors.Errorf("sip %s is given twice", d.SIP.ID)
		}
		pending[d.SIP.ID] = d
	}
	var result [][]*sip.Descriptor
	for len(pending) > 0 {
		var wave []*sip.Descriptor
		for _, d := range pending {
			if _, ok := pending[d.PatchOf]; !ok {
				wave = append(wave, d)
			}
		}
		if len(wave) == 0 {
			return nil, errors.New("the patch_of links of the SIPs form a cycle")
		}
		sort.Slice(wave, func(i, j int) bool { return wave[i].SIP.ID < wave[j].SIP.ID })
		for _, d := range wave {
			delete(pending, d.SIP.ID)
		}
		result = append(result, wave)
	}
	return result, nil
}

// export archives the SIPs of the descriptors, running up to parallel
// exports at once. With DryRun the layouts are printed instead, and the
// planned layout of each wave is what later waves are planned against.
func export(a *archiver.Archiver, ds []*sip.Descriptor, opts exportOptions, parallel int, out io.Writer) error {
	if opts.PatchOf != "" {
		if len(ds) != 1 {
			return errors.New("--patch-of needs exactly one descriptor")
		}
		ds[0].PatchOf = opts.PatchOf
	}
	if opts.DryRun {
		base, patches := a.Layouts, a.Patches
		a.Layouts = layout.NewOverlay(base)
		defer func() { a.Layouts, a.Patches = base, patches }()
	}
	a.Patches = sip.PatchLookups{sip.Chain(ds), layout.Chain{Store: a.Layouts}}
	ordered, err := waves(ds)
	if err != nil {
		return err
	}
	for _, wave := range ordered {
		var g errgroup.Group
		g.SetLimit(parallel)
		results := make([]string, len(wave))
		for i, d := range wave {
			i, d := i, d
			g.Go(func() error {
				var err error
				results[i], err = exportOne(a, d, opts)
				return err
			})
		}
		err := g.Wait()
		for _, r := range results {
			if r != "" {
				fmt.Fprintln(out, r)
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func exportOne(a *archiver.Archiver, d *sip.Descriptor, opts exportOptions) (string, error) {
	s := d.SIP
	if !s.Archivable {
		log.Printf("Export: sip %s is not archivable, skipping", s.ID)
		return "", nil
	}
	options := archiver.Options{
		PatchOf:            d.PatchOf,
		IncludeAllPrevious: opts.AllPrevious,
		Overwrite:          opts.Overwrite,
	}
	if opts.DryRun {
		l, err := a.Files(s, options)
		if err != nil {
			return "", err
		}
		if err := a.Layouts.Save(l, true); err != nil {
			return "", err
		}
		b, err := json.MarshalIndent(l, "", "  ")
		return string(b), err
	}
	if _, err := a.Export(s, options); err != nil {
		return "", err
	}
	dir, err := a.BagDir(s.ID)
	return fmt.Sprintf("%s %s", s.ID, dir), err
}
