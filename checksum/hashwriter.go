package checksum

import (
	"encoding/hex"
	"hash"
	"io"
	"strings"
)

// VerifyStream checksums the given io.Reader and compares the result against
// the expected hex digests. It returns true if every expected digest
// matches. An empty map is trivially true. The reader is not closed.
func VerifyStream(r io.Reader, want map[Algorithm]string) (bool, error) {
	if len(want) == 0 {
		return true, nil
	}
	var algs []Algorithm
	for a := range want {
		algs = append(algs, a)
	}
	hw := NewHashWriter(nil, algs...)
	_, err := io.Copy(hw, r)
	var result = true
	for a, goal := range want {
		_, ok := hw.Check(a, goal)
		result = result && ok
	}
	return result, err
}

// A HashWriter wraps an io.Writer and computes a digest for each of its
// algorithms over the bytes written. Every write goes to the underlying
// writer and to every hash, so a source only needs to be read once.
type HashWriter struct {
	w      io.Writer // our io.MultiWriter
	algs   []Algorithm
	hashes []hash.Hash
	n      int64
}

// NewHashWriter returns a HashWriter wrapping w. If w is nil the HashWriter
// only computes the digests.
func NewHashWriter(w io.Writer, algs ...Algorithm) *HashWriter {
	hw := &HashWriter{algs: algs}
	var sinks []io.Writer
	if w != nil {
		sinks = append(sinks, w)
	}
	for _, a := range algs {
		h := a.New()
		hw.hashes = append(hw.hashes, h)
		sinks = append(sinks, h)
	}
	hw.w = io.MultiWriter(sinks...)
	return hw
}

func (hw *HashWriter) Write(p []byte) (int, error) {
	n, err := hw.w.Write(p)
	hw.n += int64(n)
	return n, err
}

// Count returns the number of bytes written so far.
func (hw *HashWriter) Count() int64 {
	return hw.n
}

// Sum returns the hex digest for the given algorithm, or "" if this writer
// is not computing it.
func (hw *HashWriter) Sum(a Algorithm) string {
	for i := range hw.algs {
		if hw.algs[i] == a {
			return hex.EncodeToString(hw.hashes[i].Sum(nil))
		}
	}
	return ""
}

// Sums returns the hex digests for every algorithm of this writer.
func (hw *HashWriter) Sums() map[Algorithm]string {
	result := make(map[Algorithm]string, len(hw.algs))
	for i, a := range hw.algs {
		result[a] = hex.EncodeToString(hw.hashes[i].Sum(nil))
	}
	return result
}

// Check returns the digest for a, and compares it with the goal digest.
// Returns true if they match. An empty goal is treated as matching.
func (hw *HashWriter) Check(a Algorithm, goal string) (string, bool) {
	computed := hw.Sum(a)
	ok := goal == "" || strings.EqualFold(goal, computed)
	return computed, ok
}
