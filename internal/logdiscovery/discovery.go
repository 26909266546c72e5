// Package logdiscovery enumerates and orders access-log rotations on
// disk (C1, §4.1): plain files, numbered rotations, and gzip/zstd
// compressed rotations, oldest first.
package logdiscovery

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// File describes one discovered log file.
type File struct {
	Path           string
	RotationNumber int // 0 for the current (non-rotated) file
	IsCompressed   bool
}

var excludedSuffixes = []string{".bak", ".tmp", ".old", ".backup"}

// rotationRe matches "base.N" or "base.N.gz" or "base.N.zst" where N
// is a decimal integer, capturing N and the optional compression ext.
var rotationRe = regexp.MustCompile(`^\.(\d+)(\.(gz|zst))?$`)

// Discover enumerates files in dir whose name is exactly base, or
// base with a numeric rotation suffix and optional compression
// extension. A missing directory yields an empty list, not an error
// (§4.1). Results are sorted oldest to newest: rotated files precede
// the current file, and among rotated files a higher N is older.
func Discover(dir, base string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var files []File
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if name == base {
			files = append(files, File{Path: filepath.Join(dir, name)})
			continue
		}
		if !strings.HasPrefix(name, base) {
			continue
		}
		suffix := name[len(base):]
		if hasExcludedSuffix(suffix) {
			continue
		}
		m := rotationRe.FindStringSubmatch(suffix)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		files = append(files, File{
			Path:           filepath.Join(dir, name),
			RotationNumber: n,
			IsCompressed:   m[3] == "gz" || m[3] == "zst",
		})
	}

	sort.Slice(files, func(i, j int) bool {
		a, b := files[i], files[j]
		if a.RotationNumber == 0 {
			return false // current file always sorts last
		}
		if b.RotationNumber == 0 {
			return true
		}
		return a.RotationNumber > b.RotationNumber // higher N = older = earlier
	})
	return files, nil
}

func hasExcludedSuffix(suffix string) bool {
	for _, ext := range excludedSuffixes {
		if strings.Contains(suffix, ext) {
			return true
		}
	}
	return false
}
