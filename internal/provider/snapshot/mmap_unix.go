//go:build linux || darwin || freebsd || netbsd || openbsd

package snapshot

import (
	"os"

	"golang.org/x/sys/unix"
)

// readFile returns the file contents and a release function. With mmap the
// bytes alias a private read-only mapping that stays valid until release.
func readFile(path string, mmap bool) ([]byte, func() error, error) {
	if !mmap {
		data, err := os.ReadFile(path)
		return data, func() error { return nil }, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	if st.Size() == 0 {
		return nil, func() error { return nil }, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(st.Size()), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, err
	}
	return data, func() error { return unix.Munmap(data) }, nil
}
