// Package naming decides where things go inside an archive: the name of
// each payload file and metadata document inside a bag, and the directory
// of each bag under the archive root.
//
// Formatters are plain functions. The built-in ones are registered under a
// name so that they can be chosen from a configuration file, and programs
// may register their own.
package naming

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"

	"github.com/ndlib/sipbag/sip"
)

// A FileFormatter returns the name a payload file is given in a bag. The
// SIP is passed so a formatter can look at the sibling files.
type FileFormatter func(s *sip.SIP, f *sip.File) string

// A MetadataFormatter returns the name a metadata document is given in a
// bag.
type MetadataFormatter func(m *sip.Metadata) string

// A DirectoryBuilder maps a SIP id to the list of directories, relative to
// the archive root, the SIP's bag is written into.
type DirectoryBuilder func(id string) ([]string, error)

var (
	// ErrInvalidIdentity means a SIP id could not be turned into an
	// archive directory.
	ErrInvalidIdentity = errors.New("invalid SIP identity")
)

// DefaultMetadataName names a metadata document "<type name>.<type format>".
func DefaultMetadataName(m *sip.Metadata) string {
	return fmt.Sprintf("%s.%s", m.Type.Name, m.Type.Format)
}

// IdentityName keeps the SIP-relative path of the file.
//
// Do not use this with names coming from users. It allows "../" path
// components and characters the file system may not accept.
func IdentityName(s *sip.SIP, f *sip.File) string {
	return f.Path
}

// SecureName sanitizes the file path with SecureFilename and replaces dashes
// with underscores. If other files in the same SIP sanitize to the same
// name, every one of them is prefixed with "<n>-", where n counts from 1 in
// the order of the file IDs. Since the dashes are gone, the prefix cannot
// create a new collision. A name which sanitizes to nothing becomes "-".
func SecureName(s *sip.SIP, f *sip.File) string {
	name := secureNoDash(f.Path)
	var colliding []*sip.File
	for _, sibling := range sortedByID(s.Files) {
		if secureNoDash(sibling.Path) == name {
			colliding = append(colliding, sibling)
		}
	}
	if len(colliding) > 1 {
		return fmt.Sprintf("%d-%s", indexOf(colliding, f)+1, name)
	}
	if name == "" {
		return "-"
	}
	return name
}

// SecureIDName prefixes the sanitized file path with the file ID. The result
// is unique without looking at any other file.
func SecureIDName(s *sip.SIP, f *sip.File) string {
	return f.ID + "-" + SecureFilename(f.Path)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SecureFilename returns a version of name that is safe to use as a single
// file name on any common file system. Letters are decomposed and anything
// not ASCII is dropped, path separators and runs of white space become a
// single underscore, everything but letters, digits, '_', '.', and '-' is
// removed, and leading or trailing dots and underscores are trimmed. The
// result may be empty.
func SecureFilename(name string) string {
	name = norm.NFKD.String(name)
	var b strings.Builder
	for _, r := range name {
		if r < utf8.RuneSelf {
			b.WriteRune(r)
		}
	}
	name = strings.Replace(b.String(), "/", " ", -1)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	return strings.Trim(name, "._")
}

func secureNoDash(name string) string {
	return strings.Replace(SecureFilename(name), "-", "_", -1)
}

func sortedByID(files []*sip.File) []*sip.File {
	result := make([]*sip.File, len(files))
	copy(result, files)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result
}

func indexOf(files []*sip.File, f *sip.File) int {
	for i := range files {
		if files[i] == f {
			return i
		}
	}
	for i := range files {
		if files[i].ID == f.ID {
			return i
		}
	}
	return -1
}

// Chunks splits s into pieces having the given sizes. Whatever is left over
// becomes one last piece. Sizes reaching past the end of s are cut short,
// and no empty pieces are returned.
//
//	Chunks("1234567", 1, 2, 3) == ["1", "23", "456", "7"]
//	Chunks("123", 1, 2, 3, 4) == ["1", "23"]
func Chunks(s string, sizes ...int) []string {
	var result []string
	acc := 0
	for _, n := range sizes {
		if acc >= len(s) {
			return result
		}
		if n <= 0 {
			continue
		}
		end := acc + n
		if end > len(s) {
			end = len(s)
		}
		result = append(result, s[acc:end])
		acc = end
	}
	if acc < len(s) {
		result = append(result, s[acc:])
	}
	return result
}

// DefaultDirectoryBuilder splits a UUID-shaped SIP id into the directories
// "ab/cd/<rest>", to keep the number of entries in any one directory low.
// Ids which are not UUIDs return ErrInvalidIdentity.
func DefaultDirectoryBuilder(id string) ([]string, error) {
	if len(id) != 36 {
		return nil, errors.Wrapf(ErrInvalidIdentity, "%q", id)
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.Wrapf(ErrInvalidIdentity, "%q: %s", id, err)
	}
	return Chunks(id, 2, 2), nil
}

var (
	registry           sync.RWMutex
	fileFormatters     = make(map[string]FileFormatter)
	metadataFormatters = make(map[string]MetadataFormatter)
	directoryBuilders  = make(map[string]DirectoryBuilder)
)

func init() {
	RegisterFileFormatter("identity", IdentityName)
	RegisterFileFormatter("secure", SecureName)
	RegisterFileFormatter("secure-id", SecureIDName)
	RegisterMetadataFormatter("default", DefaultMetadataName)
	RegisterDirectoryBuilder("default", DefaultDirectoryBuilder)
}

// RegisterFileFormatter makes a file formatter available under the given
// name. A later registration replaces an earlier one.
func RegisterFileFormatter(name string, f FileFormatter) {
	registry.Lock()
	fileFormatters[name] = f
	registry.Unlock()
}

// FileFormatterByName returns the file formatter registered under name.
func FileFormatterByName(name string) (FileFormatter, bool) {
	registry.RLock()
	defer registry.RUnlock()
	f, ok := fileFormatters[name]
	return f, ok
}

// RegisterMetadataFormatter makes a metadata formatter available under the
// given name.
func RegisterMetadataFormatter(name string, f MetadataFormatter) {
	registry.Lock()
	metadataFormatters[name] = f
	registry.Unlock()
}

// MetadataFormatterByName returns the metadata formatter registered under
// name.
func MetadataFormatterByName(name string) (MetadataFormatter, bool) {
	registry.RLock()
	defer registry.RUnlock()
	f, ok := metadataFormatters[name]
	return f, ok
}

// RegisterDirectoryBuilder makes a directory builder available under the
// given name.
func RegisterDirectoryBuilder(name string, b DirectoryBuilder) {
	registry.Lock()
	directoryBuilders[name] = b
	registry.Unlock()
}

// DirectoryBuilderByName returns the directory builder registered under
// name.
func DirectoryBuilderByName(name string) (DirectoryBuilder, bool) {
	registry.RLock()
	defer registry.RUnlock()
	b, ok := directoryBuilders[name]
	return b, ok
}
