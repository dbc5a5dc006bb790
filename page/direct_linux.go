//go:build linux

package page

import (
	"os"

	"golang.org/x/sys/unix"
)

// openWithMode opens path honoring the requested access mode. On Linux,
// Direct mode adds O_DIRECT so reads/writes bypass the page cache, matching
// the corpus's disk-engine repos (gdbx, conure-db) that guard O_DIRECT
// behind a build tag for the same reason: predictable flash write timing.
func openWithMode(path string, flags int, mode AccessMode) (*os.File, error) {
	if mode == Direct {
		flags |= unix.O_DIRECT
	}
	return os.OpenFile(path, flags, 0644)
}

