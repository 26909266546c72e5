package logreader

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// LineWriter writes lines back out using the same codec Open would
// have chosen for the same path (§4.9 step 2: "same compression codec
// as the source ... chosen from the extension").
type LineWriter struct {
	w       *bufio.Writer
	closers []io.Closer
	file    *os.File
}

// CreateSibling opens a new file named path, compressed per path's
// extension exactly as Open would decompress it.
func CreateSibling(path string) (*LineWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	var w io.Writer = f
	closers := []io.Closer{f}

	switch {
	case strings.HasSuffix(path, ".gz"):
		gz := gzip.NewWriter(f)
		w = gz
		closers = append(closers, gz)
	case strings.HasSuffix(path, ".zst"):
		zw, err := zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		w = zw
		closers = append(closers, zw)
	}

	return &LineWriter{w: bufio.NewWriter(w), closers: closers, file: f}, nil
}

// WriteLine appends line followed by a newline.
func (w *LineWriter) WriteLine(line string) error {
	if _, err := w.w.WriteString(line); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// Close flushes and closes every layer, outermost first, then fsyncs
// the underlying file so a rename immediately after Close is durable.
func (w *LineWriter) Close() error {
	if err := w.w.Flush(); err != nil {
		return err
	}
	for i := len(w.closers) - 1; i >= 1; i-- {
		if err := w.closers[i].Close(); err != nil {
			return err
		}
	}
	if err := w.file.Sync(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
