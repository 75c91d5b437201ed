package sip

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/antonholmquist/jason"
	"github.com/pkg/errors"
)

// OpenFunc resolves the storage key of a file in a descriptor into a Source
// and the size of the content behind it.
type OpenFunc func(key string) (Source, int64, error)

// A Descriptor is a SIP as read from a JSON description, together with the
// id of the SIP it patches, if any.
type Descriptor struct {
	SIP     *SIP
	PatchOf string
}

// ReadDescriptor parses a JSON SIP description. The format is
//
//	{
//	  "id": "abcd0000-1111-2222-3333-444455556666",
//	  "created": "2019-01-02T15:04:05Z",
//	  "patch_of": "<id of previous SIP>",
//	  "archivable": true,
//	  "agent": {"email": "someone@example.org", "ip_address": "1.1.1.1"},
//	  "files": [{"id": "<file id>", "path": "foobar.txt", "key": "<storage key>"}],
//	  "metadata": [{"name": "json-test", "format": "json", "content": "{}"}]
//	}
//
// Only "id" is required. A file without a "key" uses its "id" as the key.
// Agent attributes are ordered by name, since JSON objects have no order.
func ReadDescriptor(r io.Reader, open OpenFunc) (*Descriptor, error) {
	v, err := jason.NewObjectFromReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading SIP descriptor")
	}
	s := &SIP{Archivable: true}
	s.ID, err = v.GetString("id")
	if err != nil || s.ID == "" {
		return nil, errors.New("SIP descriptor has no id")
	}
	if created, _ := v.GetString("created"); created != "" {
		s.Created, err = time.Parse(time.RFC3339, created)
		if err != nil {
			return nil, errors.Wrapf(err, "sip %s: created", s.ID)
		}
	}
	if archivable, err := v.GetBoolean("archivable"); err == nil {
		s.Archivable = archivable
	}
	if agent, err := v.GetObject("agent"); err == nil {
		s.Agent = readAgent(agent)
	}

	files, _ := v.GetObjectArray("files")
	for i, f := range files {
		file := new(File)
		file.ID, _ = f.GetString("id")
		file.Path, _ = f.GetString("path")
		if file.ID == "" {
			return nil, errors.Errorf("sip %s: file %d has no id", s.ID, i)
		}
		key, _ := f.GetString("key")
		if key == "" {
			key = file.ID
		}
		file.Source, file.Size, err = open(key)
		if err != nil {
			return nil, errors.Wrapf(err, "sip %s: file %s", s.ID, key)
		}
		s.Files = append(s.Files, file)
	}

	metadata, _ := v.GetObjectArray("metadata")
	for i, m := range metadata {
		md := new(Metadata)
		md.Type.Name, _ = m.GetString("name")
		md.Type.Format, _ = m.GetString("format")
		md.Type.Schema, _ = m.GetString("schema")
		md.Content, _ = m.GetString("content")
		if md.Type.Name == "" {
			return nil, errors.Errorf("sip %s: metadata %d has no name", s.ID, i)
		}
		s.Metadata = append(s.Metadata, md)
	}

	d := &Descriptor{SIP: s}
	d.PatchOf, _ = v.GetString("patch_of")
	return d, nil
}

func readAgent(v *jason.Object) Agent {
	m := v.Map()
	var keys []string
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var agent Agent
	for _, k := range keys {
		value, err := m[k].String()
		if err != nil {
			// numbers, booleans, and so on
			value = fmt.Sprint(m[k].Interface())
		}
		agent = append(agent, AgentField{Key: k, Value: value})
	}
	return agent
}

// Chain builds a PatchMap out of a list of descriptors.
func Chain(ds []*Descriptor) PatchMap {
	m := make(PatchMap)
	for _, d := range ds {
		if d.PatchOf != "" {
			m[d.SIP.ID] = d.PatchOf
		}
	}
	return m
}
