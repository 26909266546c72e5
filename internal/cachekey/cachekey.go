// Package cachekey derives on-disk cache paths from (service, URL[,
// response size]) pairs (C6, §4.6). It must be bit-exact with the
// proxy's own key derivation, so every constant here is load-bearing.
package cachekey

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// SliceSize is the 1 MiB alignment used for ranged cache keys (§3).
const SliceSize = 1 << 20

// NoRangeKey returns the cache key for the no-range (current proxy
// default) format: md5(service + url).
func NoRangeKey(service, url string) string {
	return hashHex(service + url)
}

// RangedKey returns the cache key for one byte range:
// md5(service + url + "bytes=" + start + "-" + end).
func RangedKey(service, url string, start, end int64) string {
	return hashHex(fmt.Sprintf("%s%sbytes=%d-%d", service, url, start, end))
}

func hashHex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Slice is one 1 MiB-aligned byte range of a response.
type Slice struct {
	Start, End int64 // inclusive
}

// Slices enumerates the 1 MiB-aligned ranges covering [0, size),
// per §3.
func Slices(size int64) []Slice {
	if size <= 0 {
		return nil
	}
	var slices []Slice
	for start := int64(0); start < size; start += SliceSize {
		end := start + SliceSize - 1
		if end > size-1 {
			end = size - 1
		}
		slices = append(slices, Slice{Start: start, End: end})
	}
	return slices
}

// Candidate is one cache key alongside the relative path derived from
// it (§3 directory layout: {root}/{h[30:32]}/{h[28:30]}/{h}).
type Candidate struct {
	Hash string
	Path string // relative to the cache root
}

// DerivePaths returns every candidate path for (service, url, size):
// the no-range key first (tried first during lookup, §4.6), followed
// by one ranged key per 1 MiB slice. When size is unknown or zero, the
// proxy still wrote a ranged key for the first full slice (bytes=0-
// SliceSize-1) rather than an empty range, so that's the second
// candidate — still exactly 2 candidates per §8's invariant.
func DerivePaths(service, url string, size int64) []Candidate {
	candidates := []Candidate{relPath(NoRangeKey(service, url))}

	if size <= 0 {
		candidates = append(candidates, relPath(RangedKey(service, url, 0, SliceSize-1)))
		return candidates
	}

	for _, sl := range Slices(size) {
		candidates = append(candidates, relPath(RangedKey(service, url, sl.Start, sl.End)))
	}
	return candidates
}

func relPath(hash string) Candidate {
	return Candidate{
		Hash: hash,
		Path: fmt.Sprintf("%s/%s/%s", hash[30:32], hash[28:30], hash),
	}
}
