//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package snapshot

import "os"

// readFile reads the whole file; mapping is not available on this platform.
func readFile(path string, _ bool) ([]byte, func() error, error) {
	data, err := os.ReadFile(path)
	return data, func() error { return nil }, err
}
