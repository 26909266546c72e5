//go:build windows

package logreader

import (
	"os"

	"golang.org/x/sys/windows"
)

// openShared opens path with FILE_SHARE_READ|WRITE|DELETE so the
// proxy's own writer (and log rotation, which unlinks and recreates
// the file) is never blocked by our read handle (§4.2, §5).
func openShared(path string) (*os.File, error) {
	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, err
	}
	handle, err := windows.CreateFile(
		pathPtr,
		windows.GENERIC_READ,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_ATTRIBUTE_NORMAL,
		0,
	)
	if err != nil {
		return nil, err
	}
	return os.NewFile(uintptr(handle), path), nil
}
