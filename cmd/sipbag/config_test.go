package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ndlib/sipbag/archiver"
	"github.com/ndlib/sipbag/checksum"
)

func writeConfig(t *testing.T, content string) string {
	name := filepath.Join(t.TempDir(), "sipbag.toml")
	if err := os.WriteFile(name, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return name
}

func TestDefaultConfig(t *testing.T) {
	c, err := ReadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Tags) != len(archiver.DefaultTags) || c.Tags[0].Value != "European Organization for Nuclear Research" {
		t.Errorf("Received tags %v", c.Tags)
	}
	if c.Layouts.Kind != "ql" || c.Parallel != 4 || c.Sidecar != "text" {
		t.Errorf("Received %+v", c)
	}
}

func TestReadConfig(t *testing.T) {
	root := t.TempDir()
	name := writeConfig(t, `
root = "`+root+`"
algorithms = ["MD5", "sha-256"]
file_formatter = "secure-id"
sidecar = "yaml"
profile = "Test-v1"
parallel = 2

[layouts]
kind = "memory"

[[tags]]
key = "Source-Organization"
value = "Example Library"

[[tags]]
key = "Bagging-Date"
`)
	c, err := ReadConfig(name)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Tags) != 2 || c.Tags[0].Value != "Example Library" || c.Tags[1].Value != "" {
		t.Errorf("Received tags %+v", c.Tags)
	}
	// untouched keys keep their defaults
	if c.MetadataFormatter != "default" || c.DirectoryBuilder != "default" {
		t.Errorf("Received %+v", c)
	}

	a, err := c.Archiver()
	if err != nil {
		t.Fatal(err)
	}
	defer a.Layouts.Close()
	if a.Root != root || a.Profile != "Test-v1" || a.Sidecar != archiver.SidecarYAML {
		t.Errorf("Received %+v", a)
	}
	if len(a.Algorithms) != 2 || a.Algorithms[0] != checksum.MD5 || a.Algorithms[1] != checksum.SHA256 {
		t.Errorf("Received algorithms %v", a.Algorithms)
	}
	if len(a.Tags) != 2 || a.Tags[0].Name != "Source-Organization" {
		t.Errorf("Received tags %v", a.Tags)
	}
}

func TestValidate(t *testing.T) {
	var table = []struct {
		change func(c *Config)
		errmsg string // part of the message, empty for no error
	}{
		{func(c *Config) {}, ""},
		{func(c *Config) { c.Root = "" }, "Root"},
		{func(c *Config) { c.Algorithms = nil }, "Algorithms"},
		{func(c *Config) { c.Algorithms = []string{"md4"} }, "md4"},
		{func(c *Config) { c.FileFormatter = "fancy" }, "fancy"},
		{func(c *Config) { c.MetadataFormatter = "fancy" }, "fancy"},
		{func(c *Config) { c.DirectoryBuilder = "flat" }, "flat"},
		{func(c *Config) { c.Sidecar = "xml" }, "Sidecar"},
		{func(c *Config) { c.Parallel = 0 }, "Parallel"},
		{func(c *Config) { c.Layouts.Kind = "postgres" }, "Kind"},
		{func(c *Config) { c.Layouts.Kind = "mysql" }, "mysql"},
		{func(c *Config) { c.Tags = append(c.Tags, TagConfig{Key: "Bad:Key"}) }, "Key"},
		{func(c *Config) { c.Source = "ftp://example.org/files" }, "source"},
		{func(c *Config) { c.Source = "s3:/bucket/prefix" }, ""},
	}
	for i, test := range table {
		c := DefaultConfig()
		test.change(c)
		err := c.Validate()
		switch {
		case test.errmsg == "" && err != nil:
			t.Errorf("%d: Received %s, expected nil", i, err)
		case test.errmsg != "" && err == nil:
			t.Errorf("%d: Received nil, expected error about %s", i, test.errmsg)
		case err != nil && !strings.Contains(err.Error(), test.errmsg):
			t.Errorf("%d: Received %s, expected error about %s", i, err, test.errmsg)
		}
	}
}

func TestLayoutDial(t *testing.T) {
	var table = []struct {
		kind, dial string
		output     string
	}{
		{"ql", "", "/archive/layouts.ql"},
		{"ql", "memory", "memory"},
		{"ql", "db/x.ql", "/archive/db/x.ql"},
		{"ql", "/var/x.ql", "/var/x.ql"},
		{"badger", "", ""},
		{"badger", "badger", "/archive/badger"},
		{"mysql", "user@/db", "user@/db"},
	}
	for _, test := range table {
		c := DefaultConfig()
		c.Root = "/archive"
		c.Layouts = LayoutConfig{Kind: test.kind, Dial: test.dial}
		if out := c.layoutDial(); out != test.output {
			t.Errorf("Received %s, expected %s", out, test.output)
		}
	}
}
