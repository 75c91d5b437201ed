package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/ndlib/sipbag/archiver"
	"github.com/ndlib/sipbag/bagit"
	"github.com/ndlib/sipbag/checksum"
	"github.com/ndlib/sipbag/layout"
	"github.com/ndlib/sipbag/naming"
)

// Config is the content of the configuration file. A missing key keeps its
// default value.
//
//	root = "/archive"
//	algorithms = ["md5", "sha256"]
//	file_formatter = "secure"
//	sidecar = "yaml"
//	source = "s3://localhost:9000/bucket/prefix"
//	sentry_dsn = ""
//	parallel = 4
//
//	[layouts]
//	kind = "mysql"
//	dial = "user:pass@tcp(localhost:3306)/sipbag"
//
//	[[tags]]
//	key = "Source-Organization"
//	value = "Example Library"
type Config struct {
	Root              string       `toml:"root" validate:"required"`
	Algorithms        []string     `toml:"algorithms" validate:"min=1,dive,required"`
	FileFormatter     string       `toml:"file_formatter" validate:"required"`
	MetadataFormatter string       `toml:"metadata_formatter" validate:"required"`
	DirectoryBuilder  string       `toml:"directory_builder" validate:"required"`
	Sidecar           string       `toml:"sidecar" validate:"oneof=text yaml"`
	Profile           string       `toml:"profile" validate:"required"`
	Tags              []TagConfig  `toml:"tags" validate:"dive"`
	Layouts           LayoutConfig `toml:"layouts"`
	Source            string       `toml:"source"` // empty means file keys are local paths
	SentryDSN         string       `toml:"sentry_dsn"`
	Parallel          int          `toml:"parallel" validate:"gte=1,lte=64"`
	MaxChainDepth     int          `toml:"max_chain_depth" validate:"gte=0"`
}

// TagConfig is one line of bag-info.txt. An empty value is generated when
// the bag is written.
type TagConfig struct {
	Key   string `toml:"key" validate:"required,excludesall=:"`
	Value string `toml:"value"`
}

// LayoutConfig selects where the layouts of the bags are recorded.
type LayoutConfig struct {
	Kind string `toml:"kind" validate:"oneof=memory ql mysql badger"`
	// Dial is a file name for "ql", a directory for "badger", and a DSN for
	// "mysql". Relative paths are taken from the archive root. An empty
	// Dial for "ql" uses "layouts.ql" in the archive root.
	Dial string `toml:"dial"`
}

var validate = validator.New()

// DefaultConfig returns the configuration used when there is no file.
func DefaultConfig() *Config {
	c := &Config{
		Root:              ".",
		Algorithms:        []string{"md5"},
		FileFormatter:     "secure",
		MetadataFormatter: "default",
		DirectoryBuilder:  "default",
		Sidecar:           "text",
		Profile:           archiver.DefaultProfile,
		Layouts:           LayoutConfig{Kind: "ql"},
		Parallel:          4,
		MaxChainDepth:     archiver.DefaultMaxChainDepth,
	}
	for _, t := range archiver.DefaultTags {
		c.Tags = append(c.Tags, TagConfig{Key: t.Name, Value: t.Value})
	}
	return c
}

// ReadConfig reads the configuration file on top of the defaults, and
// validates the result. An empty filename gives the defaults.
func ReadConfig(filename string) (*Config, error) {
	c := DefaultConfig()
	if filename != "" {
		if _, err := toml.DecodeFile(filename, c); err != nil {
			return nil, errors.Wrapf(err, "reading config %s", filename)
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the struct tags and then the names which need a lookup.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	if _, err := checksum.LookupAll(c.Algorithms); err != nil {
		return errors.Wrap(err, "algorithms")
	}
	if _, ok := naming.FileFormatterByName(c.FileFormatter); !ok {
		return errors.Errorf("file_formatter: unknown formatter %q", c.FileFormatter)
	}
	if _, ok := naming.MetadataFormatterByName(c.MetadataFormatter); !ok {
		return errors.Errorf("metadata_formatter: unknown formatter %q", c.MetadataFormatter)
	}
	if _, ok := naming.DirectoryBuilderByName(c.DirectoryBuilder); !ok {
		return errors.Errorf("directory_builder: unknown builder %q", c.DirectoryBuilder)
	}
	if c.Layouts.Kind == "mysql" && c.Layouts.Dial == "" {
		return errors.New("layouts: mysql needs a dial string")
	}
	if c.Source != "" && parselocation(c.Source) == nil {
		return errors.Errorf("source: cannot use location %q", c.Source)
	}
	return nil
}

func formatValidationError(err error) error {
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		e := verrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}

// layoutDial returns the dial string of the layout store, with relative
// paths taken from the archive root.
func (c *Config) layoutDial() string {
	dial := c.Layouts.Dial
	switch c.Layouts.Kind {
	case "ql":
		if dial == "" {
			dial = "layouts.ql"
		}
		if dial != "memory" && !filepath.IsAbs(dial) {
			dial = filepath.Join(c.Root, dial)
		}
	case "badger":
		if dial != "" && !filepath.IsAbs(dial) {
			dial = filepath.Join(c.Root, dial)
		}
	}
	return dial
}

// Archiver opens the layout store and returns an archiver set up by the
// configuration. The caller should close the layout store when done.
func (c *Config) Archiver() (*archiver.Archiver, error) {
	algs, err := checksum.LookupAll(c.Algorithms)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(c.Root, 0755); err != nil {
		return nil, err
	}
	layouts, err := layout.Open(c.Layouts.Kind, c.layoutDial())
	if err != nil {
		return nil, err
	}
	a := archiver.New(c.Root, layouts)
	a.Algorithms = algs
	a.FileFormatter, _ = naming.FileFormatterByName(c.FileFormatter)
	a.MetadataFormatter, _ = naming.MetadataFormatterByName(c.MetadataFormatter)
	a.DirBuilder, _ = naming.DirectoryBuilderByName(c.DirectoryBuilder)
	a.Profile = c.Profile
	a.MaxChainDepth = c.MaxChainDepth
	if c.Sidecar == "yaml" {
		a.Sidecar = archiver.SidecarYAML
	}
	a.Tags = nil
	for _, t := range c.Tags {
		a.Tags = append(a.Tags, bagit.Tag{Name: t.Key, Value: t.Value})
	}
	return a, nil
}
