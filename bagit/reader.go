package bagit

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/ndlib/sipbag/checksum"
)

var (
	// ErrNotFound means a file listed in a manifest is not in the bag.
	ErrNotFound = errors.New("file not found")

	// ErrChecksum means the content of a file does not match its manifest.
	ErrChecksum = errors.New("checksum mismatch")

	// ErrMalformed means a tag file or manifest could not be parsed.
	ErrMalformed = errors.New("malformed bag")

	// ErrExtraFile means a payload file is not listed in any manifest.
	ErrExtraFile = errors.New("payload file not in manifest")
)

// ReadTags parses a tag file such as bag-info.txt. Each tag is a name and a
// value separated by the first colon. A line beginning with white space
// continues the value of the previous tag. Lines without a colon are
// skipped.
func ReadTags(r io.Reader) ([]Tag, error) {
	var tags []Tag
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if line[0] == ' ' || line[0] == '\t' {
			if len(tags) > 0 {
				t := &tags[len(tags)-1]
				t.Value = strings.TrimSpace(t.Value + " " + strings.TrimSpace(line))
			}
			continue
		}
		i := strings.Index(line, ":")
		if i < 0 {
			continue
		}
		tags = append(tags, Tag{
			Name:  strings.TrimSpace(line[:i]),
			Value: strings.TrimSpace(line[i+1:]),
		})
	}
	return tags, scanner.Err()
}

// ManifestLine is one line of a manifest.
type ManifestLine struct {
	Digest string
	Path   string
}

// ReadManifest parses a manifest or tag manifest for the given algorithm.
// Every digest must be a hex string of the right length.
func ReadManifest(r io.Reader, a checksum.Algorithm) ([]ManifestLine, error) {
	var result []ManifestLine
	size := a.New().Size()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		i := strings.IndexAny(line, " \t")
		if i < 0 {
			return nil, errors.Wrapf(ErrMalformed, "manifest line %q", line)
		}
		ml := ManifestLine{
			Digest: strings.ToLower(line[:i]),
			Path:   strings.TrimLeft(line[i:], " \t"),
		}
		// older tools mark binary files with a leading '*'
		ml.Path = strings.TrimPrefix(ml.Path, "*")
		b, err := hex.DecodeString(ml.Digest)
		if err != nil || len(b) != size || ml.Path == "" {
			return nil, errors.Wrapf(ErrMalformed, "manifest line %q", line)
		}
		result = append(result, ml)
	}
	return result, scanner.Err()
}

var fetchLine = regexp.MustCompile(`^(.+)[ \t]+(\d+|-)[ \t]+(data/.*)$`)

// ReadFetch parses a fetch.txt file. A size of "-" is returned as -1.
func ReadFetch(r io.Reader) ([]Entry, error) {
	var result []Entry
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		m := fetchLine.FindStringSubmatch(line)
		if m == nil {
			return nil, errors.Wrapf(ErrMalformed, "fetch line %q", line)
		}
		e := Entry{Source: m[1], Size: -1, Path: m[3]}
		if m[2] != "-" {
			e.Size, _ = strconv.ParseInt(m[2], 10, 64)
		}
		result = append(result, e)
	}
	return result, scanner.Err()
}

// manifestName matches "manifest-<alg>.txt" and "tagmanifest-<alg>.txt".
var manifestName = regexp.MustCompile(`^(tag)?manifest-(.+)\.txt$`)

// Verify checks the bag in directory dir. Every file in every manifest and
// tag manifest is hashed and compared. Payload entries listed in fetch.txt
// with a local source path are checked for existence and size. Every file
// under data/ must be in a manifest, and the Payload-Oxum, if present, must
// match. The first problem found is returned.
func Verify(dir string) error {
	if _, err := os.Stat(filepath.Join(dir, "bagit.txt")); err != nil {
		return errors.Wrap(ErrNotFound, "bagit.txt")
	}
	names, err := filepath.Glob(filepath.Join(dir, "*manifest-*.txt"))
	if err != nil {
		return err
	}
	sort.Strings(names)

	fetched := make(map[string]Entry)
	if f, err := os.Open(filepath.Join(dir, "fetch.txt")); err == nil {
		entries, err := ReadFetch(f)
		f.Close()
		if err != nil {
			return err
		}
		for _, e := range entries {
			fetched[e.Path] = e
		}
	}

	var payload = make(map[string]bool)
	var nmanifests int
	for _, name := range names {
		m := manifestName.FindStringSubmatch(filepath.Base(name))
		if m == nil {
			continue
		}
		a, err := checksum.Lookup(m[2])
		if err != nil {
			return err
		}
		istag := m[1] != ""
		if !istag {
			nmanifests++
		}
		lines, err := readManifestFile(name, a)
		if err != nil {
			return err
		}
		for _, ml := range lines {
			if !istag {
				payload[ml.Path] = true
			}
			if e, ok := fetched[ml.Path]; ok && !istag {
				err = verifyFetched(dir, e)
			} else {
				err = verifyFile(dir, ml, a)
			}
			if err != nil {
				return err
			}
		}
	}
	if nmanifests == 0 {
		return errors.Wrap(ErrNotFound, "payload manifest")
	}

	// every payload file must be listed
	var size int64
	var count int
	err = filepath.Walk(filepath.Join(dir, "data"), func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, _ := filepath.Rel(dir, p)
		rel = filepath.ToSlash(rel)
		if !payload[rel] {
			return errors.Wrapf(ErrExtraFile, "%s", rel)
		}
		size += info.Size()
		count++
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, e := range fetched {
		size += e.Size
		count++
	}
	return verifyOxum(dir, size, count)
}

func readManifestFile(name string, a checksum.Algorithm) ([]ManifestLine, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	lines, err := ReadManifest(f, a)
	if err != nil {
		return nil, errors.Wrap(err, filepath.Base(name))
	}
	return lines, nil
}

func verifyFile(dir string, ml ManifestLine, a checksum.Algorithm) error {
	f, err := os.Open(filepath.Join(dir, filepath.FromSlash(ml.Path)))
	if err != nil {
		return errors.Wrapf(ErrNotFound, "%s", ml.Path)
	}
	defer f.Close()
	ok, err := checksum.VerifyStream(f, map[checksum.Algorithm]string{a: ml.Digest})
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrapf(ErrChecksum, "%s %s", a, ml.Path)
	}
	return nil
}

// verifyFetched checks a fetched entry. Sources which are not local paths
// are not checked.
func verifyFetched(dir string, e Entry) error {
	if !filepath.IsAbs(e.Source) {
		return nil
	}
	info, err := os.Stat(e.Source)
	if err != nil {
		return errors.Wrapf(ErrNotFound, "%s fetched from %s", e.Path, e.Source)
	}
	if e.Size >= 0 && info.Size() != e.Size {
		return errors.Wrapf(ErrChecksum, "%s has size %d, expected %d", e.Source, info.Size(), e.Size)
	}
	return nil
}

func verifyOxum(dir string, size int64, count int) error {
	f, err := os.Open(filepath.Join(dir, "bag-info.txt"))
	if err != nil {
		// bag-info.txt is optional
		return nil
	}
	defer f.Close()
	tags, err := ReadTags(f)
	if err != nil {
		return err
	}
	for _, t := range tags {
		if t.Name != PayloadOxum {
			continue
		}
		if t.Value != fmt.Sprintf("%d.%d", size, count) {
			return errors.Wrapf(ErrChecksum, "Payload-Oxum is %s, found %d.%d", t.Value, size, count)
		}
	}
	return nil
}
