// Package logreader provides decompression-transparent line iteration
// over discovered log files (C2, §4.2): plain, gzip, and zstd, with a
// bounded buffer so a multi-file ingest run has predictable memory
// use, and a recoverable-vs-fatal distinction so one corrupt rotation
// never aborts the whole pipeline (§7, taxonomy item 2).
package logreader

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// bufferSize caps the scanner's token buffer to bound memory during
// multi-file ingest (§4.2).
const bufferSize = 512 * 1024

// CorruptFileError marks a single-file failure (bad compression
// header, truncated stream) as recoverable: the orchestrator should
// log a warning and move on to the next file rather than abort (§4.2,
// §7 taxonomy item 2).
type CorruptFileError struct {
	Path string
	Err  error
}

func (e *CorruptFileError) Error() string {
	return fmt.Sprintf("corrupt log file %s: %v", e.Path, e.Err)
}

func (e *CorruptFileError) Unwrap() error { return e.Err }

// LineReader iterates the decoded lines of one log file.
type LineReader struct {
	scanner *bufio.Scanner
	closers []io.Closer
}

// Open opens path, transparently decompressing based on its file
// extension (write-side parity favors extension over content sniffing
// per design note 9c). The caller must call Close when done.
func Open(path string) (*LineReader, error) {
	f, err := openShared(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	var r io.Reader = f
	closers := []io.Closer{f}

	switch {
	case strings.HasSuffix(path, ".gz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, &CorruptFileError{Path: path, Err: err}
		}
		r = gz
		closers = append(closers, gz)
	case strings.HasSuffix(path, ".zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, &CorruptFileError{Path: path, Err: err}
		}
		r = zr
		closers = append(closers, zstdCloser{zr})
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), bufferSize)

	return &LineReader{scanner: scanner, closers: closers}, nil
}

// zstdCloser adapts zstd.Decoder's Close (no error return) to
// io.Closer.
type zstdCloser struct{ d *zstd.Decoder }

func (c zstdCloser) Close() error {
	c.d.Close()
	return nil
}

// Next advances to the next line, returning io.EOF when exhausted. A
// scan error on a compressed stream is reported as a CorruptFileError
// so the caller can skip the file and continue.
func (r *LineReader) Next() (string, error) {
	if r.scanner.Scan() {
		return r.scanner.Text(), nil
	}
	if err := r.scanner.Err(); err != nil {
		return "", &CorruptFileError{Err: err}
	}
	return "", io.EOF
}

// Close releases all underlying resources, innermost first.
func (r *LineReader) Close() error {
	var first error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
