// Package mmapview provides a read-only, memory-mapped view of a store
// file for CLI diagnostics (`read`, `verify`, extremes-over-file) that scan
// the whole file once and never mutate it. The engine packages themselves
// never use this — all mutation goes through internal/pagedfile's
// seek-based read/write path; mapping is strictly a read-side shortcut for
// tooling that would otherwise re-read the file block by block.
package mmapview

import "fmt"

// View is a read-only mapped byte slice plus its release function.
type View struct {
	data    []byte
	release func() error
}

// Bytes returns the mapped file contents. The slice is only valid until
// Close is called.
func (v *View) Bytes() []byte { return v.data }

// Len returns the mapped file's size in bytes.
func (v *View) Len() int { return len(v.data) }

// At returns the n bytes at offset off, bounds-checked.
func (v *View) At(off int64, n int) ([]byte, error) {
	if off < 0 || n < 0 || off+int64(n) > int64(len(v.data)) {
		return nil, fmt.Errorf("mmapview: range [%d,%d) out of bounds for %d-byte file", off, off+int64(n), len(v.data))
	}
	return v.data[off : off+int64(n)], nil
}

// Close unmaps the view. Safe to call once; calling it twice is a no-op.
func (v *View) Close() error {
	if v.release == nil {
		return nil
	}
	err := v.release()
	v.release = nil
	return err
}

// Open maps path read-only. On platforms without mmap support it falls
// back to reading the whole file into memory (see mmapview_fallback.go).
func Open(path string) (*View, error) {
	data, release, err := mapFile(path)
	if err != nil {
		return nil, fmt.Errorf("mmapview: open %s: %w", path, err)
	}
	return &View{data: data, release: release}, nil
}
