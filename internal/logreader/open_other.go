//go:build !windows

package logreader

import "os"

// openShared opens path for reading. On non-Windows platforms the
// default open mode already lets other processes read, write, or
// unlink the file concurrently.
func openShared(path string) (*os.File, error) {
	return os.Open(path)
}
