//go:build !linux

package page

import "os"

// openWithMode opens path honoring the requested access mode. Outside
// Linux there is no portable O_DIRECT equivalent exposed the same way, so
// Direct degrades to Normal: buffers are still page-aligned by
// AllocateAligned, but the OS page cache is not bypassed.
func openWithMode(path string, flags int, mode AccessMode) (*os.File, error) {
	return os.OpenFile(path, flags, 0644)
}
