package layout

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

func sampleLayout(id string) *Layout {
	return &Layout{
		SIPID: id,
		Saved: time.Date(2019, 1, 2, 15, 4, 5, 0, time.UTC),
		Files: []Entry{
			{
				FileID:    "file-1",
				SIPPath:   "foobar.txt",
				Path:      "data/files/foobar.txt",
				Size:      4,
				Checksums: map[string]string{"md5": "098f6bcd4621d373cade4e832627b4f6"},
			},
			{
				FileID:    "file-0",
				SIPPath:   "old.txt",
				Path:      "data/files/old.txt",
				Size:      3,
				Checksums: map[string]string{"md5": "x"},
				Fetched:   true,
				Source:    "/archive/ab/cd/x/data/files/old.txt",
			},
		},
		Metadata: []Entry{
			{Path: "data/metadata/json-test.json", Size: 2, Checksums: map[string]string{"md5": "y"}},
		},
	}
}

// runStoreTests exercises a fresh Store.
func runStoreTests(t *testing.T, s Store) {
	const id = "abcd0000-1111-2222-3333-444455556666"

	l, err := s.Get(id)
	if err != nil || l != nil {
		t.Fatalf("Received (%v, %v), expected (nil, nil)", l, err)
	}

	first := sampleLayout(id)
	if err := s.Save(first, false); err != nil {
		t.Fatalf("Received %s", err)
	}
	l, err = s.Get(id)
	if err != nil {
		t.Fatalf("Received %s", err)
	}
	if !reflect.DeepEqual(l.Files, first.Files) || !reflect.DeepEqual(l.Metadata, first.Metadata) {
		t.Errorf("Received %+v, expected %+v", l, first)
	}
	if !l.Saved.Equal(first.Saved) {
		t.Errorf("Received saved %v, expected %v", l.Saved, first.Saved)
	}

	// second save without overwrite fails and changes nothing
	second := sampleLayout(id)
	second.Files = second.Files[:1]
	err = s.Save(second, false)
	if !errors.Is(err, ErrAlreadyArchived) {
		t.Errorf("Received %v, expected ErrAlreadyArchived", err)
	}
	l, _ = s.Get(id)
	if l == nil || len(l.Files) != 2 {
		t.Errorf("Layout changed by a failed save: %+v", l)
	}

	// with overwrite it is replaced
	if err := s.Save(second, true); err != nil {
		t.Fatalf("Received %s", err)
	}
	l, _ = s.Get(id)
	if l == nil || len(l.Files) != 1 {
		t.Errorf("Received %+v, expected one file", l)
	}

	// other ids are independent
	l, err = s.Get("00000000-1111-2222-3333-444455556666")
	if err != nil || l != nil {
		t.Errorf("Received (%v, %v), expected (nil, nil)", l, err)
	}
}

// runConcurrentSave checks only one of several racing first saves wins.
func runConcurrentSave(t *testing.T, s Store) {
	const id = "ffff0000-1111-2222-3333-444455556666"
	const n = 8
	var wg sync.WaitGroup
	var m sync.Mutex
	var won, lost int
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Save(sampleLayout(id), false)
			m.Lock()
			defer m.Unlock()
			switch {
			case err == nil:
				won++
			case errors.Is(err, ErrAlreadyArchived):
				lost++
			default:
				t.Errorf("Received %s", err)
			}
		}()
	}
	wg.Wait()
	if won != 1 || lost != n-1 {
		t.Errorf("Received %d wins and %d losses, expected 1 and %d", won, lost, n-1)
	}
}

func TestMemory(t *testing.T) {
	runStoreTests(t, NewMemory())
	runConcurrentSave(t, NewMemory())
}

func TestQL(t *testing.T) {
	for _, f := range []func(*testing.T, Store){runStoreTests, runConcurrentSave} {
		s, err := NewQL("memory")
		if err != nil {
			t.Fatalf("Received %s", err)
		}
		f(t, s)
		s.Close()
	}
}

func TestBadger(t *testing.T) {
	for _, f := range []func(*testing.T, Store){runStoreTests, runConcurrentSave} {
		s, err := NewBadger("")
		if err != nil {
			t.Fatalf("Received %s", err)
		}
		f(t, s)
		s.Close()
	}
}

func TestOpen(t *testing.T) {
	var table = []struct {
		kind string
		ok   bool
	}{
		{"", true},
		{"memory", true},
		{"ql", true},
		{"badger", true},
		{"postgres", false},
	}
	for _, tab := range table {
		dial := ""
		if tab.kind == "ql" {
			dial = "memory"
		}
		s, err := Open(tab.kind, dial)
		if (err == nil) != tab.ok {
			t.Errorf("%s: Received %v", tab.kind, err)
		}
		if s != nil {
			s.Close()
		}
	}
}

func TestWritten(t *testing.T) {
	l := sampleLayout("x")
	if e := l.Written("file-1"); e == nil || e.Path != "data/files/foobar.txt" {
		t.Errorf("Received %+v", e)
	}
	// fetched entries do not count
	if e := l.Written("file-0"); e != nil {
		t.Errorf("Received %+v, expected nil", e)
	}
	if e := l.Written("nope"); e != nil {
		t.Errorf("Received %+v, expected nil", e)
	}
}

func TestChain(t *testing.T) {
	s := NewMemory()
	a := sampleLayout("a")
	b := sampleLayout("b")
	b.PatchOf = "a"
	s.Save(a, false)
	s.Save(b, false)

	var table = []struct {
		id   string
		prev string
		ok   bool
	}{
		{"b", "a", true},
		{"a", "", false},
		{"missing", "", false},
	}
	c := Chain{Store: s}
	for _, test := range table {
		prev, ok, err := c.Predecessor(test.id)
		if err != nil {
			t.Errorf("%s: Received %s", test.id, err)
		}
		if prev != test.prev || ok != test.ok {
			t.Errorf("%s: Received (%q, %v), expected (%q, %v)", test.id, prev, ok, test.prev, test.ok)
		}
	}
}

func TestOverlay(t *testing.T) {
	base := NewMemory()
	base.Save(sampleLayout("a"), false)
	o := NewOverlay(base)

	if l, err := o.Get("a"); err != nil || l == nil {
		t.Fatalf("Received (%v, %v)", l, err)
	}
	if err := o.Save(sampleLayout("a"), false); !errors.Is(err, ErrAlreadyArchived) {
		t.Errorf("Received %v, expected ErrAlreadyArchived", err)
	}

	b := sampleLayout("b")
	b.PatchOf = "a"
	if err := o.Save(b, false); err != nil {
		t.Fatal(err)
	}
	prev, ok, err := Chain{Store: o}.Predecessor("b")
	if err != nil || !ok || prev != "a" {
		t.Errorf("Received (%q, %v, %v), expected (a, true, nil)", prev, ok, err)
	}

	// shadowing a layout of the base leaves the base alone
	a2 := sampleLayout("a")
	a2.Files = nil
	if err := o.Save(a2, true); err != nil {
		t.Fatal(err)
	}
	if l, _ := o.Get("a"); l == nil || len(l.Files) != 0 {
		t.Errorf("Received %+v", l)
	}
	if l, _ := base.Get("a"); l == nil || len(l.Files) != 2 {
		t.Errorf("Received %+v", l)
	}
	if l, _ := base.Get("b"); l != nil {
		t.Errorf("overlay wrote to its base")
	}
}
