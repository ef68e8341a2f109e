//go:build !unix

package mmapview

import "os"

// mapFile reads the whole file into memory on platforms without mmap
// support.
func mapFile(path string) ([]byte, func() error, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, func() error { return nil }, err
	}
	return data, func() error { return nil }, nil
}
