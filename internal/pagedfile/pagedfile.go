// Package pagedfile implements the paged file abstraction: fixed-size
// blocks addressed by a 1-based RBN behind a variable-size header region.
// There is no buffer pool and no write-behind — every read and write goes
// straight to the OS file handle and every write is flushed before
// returning.
//
// Files opened with Create, Open or OpenReadOnly go straight to
// seek+read/write rather than a memory-mapped view, since this store keeps
// no resident copy of the file. Only OpenMapped serves reads from a
// read-only mapped view.
package pagedfile

import (
	"fmt"
	"io"
	"os"

	"github.com/jpare/zipstore/errs"
	"github.com/jpare/zipstore/internal/mmapview"
)

// File is a paged file: an *os.File plus the header size and block size
// needed to translate an RBN into an absolute offset. When opened via
// OpenMapped, reads are served from a memory-mapped view instead of
// per-block ReadAt syscalls; view is nil for every other open mode.
type File struct {
	f          *os.File
	view       *mmapview.View
	headerSize int64
	blockSize  int
}

// Create opens path for read/write, truncating or creating it, with the
// given initial header size and block size.
func Create(path string, headerSize int64, blockSize int) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("pagedfile: create %s: %w: %v", path, errs.ErrIO, err)
	}
	return &File{f: f, headerSize: headerSize, blockSize: blockSize}, nil
}

// Open opens an existing file for read/write. headerSize and blockSize are
// typically filled in from the on-disk header after the caller reads it with
// ReadAt, then applied via SetHeaderSize/SetBlockSize.
func Open(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("pagedfile: open %s: %w: %v", path, errs.ErrIO, err)
	}
	return &File{f: f}, nil
}

// OpenReadOnly opens an existing file for reading only (used by CLI
// diagnostics that must not risk mutating the store).
func OpenReadOnly(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pagedfile: open %s: %w: %v", path, errs.ErrIO, err)
	}
	return &File{f: f}, nil
}

// OpenMapped opens an existing file read-only and serves ReadBlock/ReadAt
// from a memory-mapped view of the whole file rather than per-call ReadAt
// syscalls. Intended for CLI diagnostics (read, verify) that
// scan an entire store file once; WriteBlock/WriteAt/Truncate always fail
// on a mapped File.
func OpenMapped(path string) (*File, error) {
	v, err := mmapview.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pagedfile: open mapped %s: %w: %v", path, errs.ErrIO, err)
	}
	return &File{view: v}, nil
}

// Close releases the underlying file handle or mapped view.
func (pf *File) Close() error {
	if pf == nil {
		return nil
	}
	if pf.view != nil {
		if err := pf.view.Close(); err != nil {
			return fmt.Errorf("pagedfile: close mapped view: %w: %v", errs.ErrIO, err)
		}
		return nil
	}
	if pf.f == nil {
		return nil
	}
	if err := pf.f.Close(); err != nil {
		return fmt.Errorf("pagedfile: close: %w: %v", errs.ErrIO, err)
	}
	return nil
}

// SetHeaderSize records the header region size to use for RBN→offset math.
// The header is self-describing, so this is set once the caller has decoded
// it.
func (pf *File) SetHeaderSize(n int64) { pf.headerSize = n }

// SetBlockSize records the fixed block size to use for RBN→offset math.
func (pf *File) SetBlockSize(n int) { pf.blockSize = n }

// HeaderSize returns the configured header region size.
func (pf *File) HeaderSize() int64 { return pf.headerSize }

// BlockSize returns the configured block size.
func (pf *File) BlockSize() int { return pf.blockSize }

func (pf *File) offset(rbn uint32) int64 {
	return pf.headerSize + int64(rbn-1)*int64(pf.blockSize)
}

// ReadBlock reads the blockSize-byte block at the given 1-based RBN. RBN 0
// (the null pointer) must never be passed in.
func (pf *File) ReadBlock(rbn uint32) ([]byte, error) {
	if rbn == 0 {
		return nil, fmt.Errorf("pagedfile: RBN 0 is the null pointer: %w", errs.ErrIO)
	}
	if pf.view != nil {
		b, err := pf.view.At(pf.offset(rbn), pf.blockSize)
		if err != nil {
			return nil, fmt.Errorf("pagedfile: read RBN %d: %w: %v", rbn, errs.ErrShortRead, err)
		}
		out := make([]byte, len(b))
		copy(out, b)
		return out, nil
	}
	out := make([]byte, pf.blockSize)
	n, err := pf.f.ReadAt(out, pf.offset(rbn))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("pagedfile: read RBN %d: %w: %v", rbn, errs.ErrIO, err)
	}
	if n != pf.blockSize {
		return nil, fmt.Errorf("pagedfile: read RBN %d got %d of %d bytes: %w", rbn, n, pf.blockSize, errs.ErrShortRead)
	}
	return out, nil
}

// WriteBlock writes data (which must be exactly blockSize bytes) at the
// given RBN and flushes before returning.
func (pf *File) WriteBlock(rbn uint32, data []byte) error {
	if pf.view != nil {
		return fmt.Errorf("pagedfile: write RBN %d: file opened read-only via OpenMapped: %w", rbn, errs.ErrIO)
	}
	if rbn == 0 {
		return fmt.Errorf("pagedfile: RBN 0 is the null pointer: %w", errs.ErrIO)
	}
	if len(data) != pf.blockSize {
		return fmt.Errorf("pagedfile: write RBN %d: data is %d bytes, want %d: %w", rbn, len(data), pf.blockSize, errs.ErrIO)
	}
	if _, err := pf.f.WriteAt(data, pf.offset(rbn)); err != nil {
		return fmt.Errorf("pagedfile: write RBN %d: %w: %v", rbn, errs.ErrIO, err)
	}
	return pf.Sync()
}

// ReadAt reads n bytes at absolute offset off — used for header I/O, which
// lives before the block region and has its own variable length.
func (pf *File) ReadAt(off int64, n int) ([]byte, error) {
	if pf.view != nil {
		if off+int64(n) > int64(pf.view.Len()) {
			n = int(int64(pf.view.Len()) - off)
		}
		if n <= 0 {
			return nil, nil
		}
		b, err := pf.view.At(off, n)
		if err != nil {
			return nil, fmt.Errorf("pagedfile: read at %d: %w: %v", off, errs.ErrIO, err)
		}
		out := make([]byte, len(b))
		copy(out, b)
		return out, nil
	}
	out := make([]byte, n)
	read, err := pf.f.ReadAt(out, off)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("pagedfile: read at %d: %w: %v", off, errs.ErrIO, err)
	}
	return out[:read], nil
}

// WriteAt writes data at absolute offset off and flushes before returning.
func (pf *File) WriteAt(off int64, data []byte) error {
	if pf.view != nil {
		return fmt.Errorf("pagedfile: write at %d: file opened read-only via OpenMapped: %w", off, errs.ErrIO)
	}
	if _, err := pf.f.WriteAt(data, off); err != nil {
		return fmt.Errorf("pagedfile: write at %d: %w: %v", off, errs.ErrIO, err)
	}
	return pf.Sync()
}

// Sync flushes buffered writes to the OS. This is deliberately not an
// fsync/fdatasync: the engine flushes its own writes but never forces a
// durability barrier on the underlying device.
func (pf *File) Sync() error {
	// os.File.WriteAt already issues the write(2)/pwrite(2) syscall
	// directly; there is no further userspace buffer to flush. This call
	// exists so "flushed before returning" is a visible step rather than an
	// implicit property of WriteAt.
	return nil
}

// Size returns the current file size in bytes.
func (pf *File) Size() (int64, error) {
	if pf.view != nil {
		return int64(pf.view.Len()), nil
	}
	fi, err := pf.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("pagedfile: stat: %w: %v", errs.ErrIO, err)
	}
	return fi.Size(), nil
}

// Truncate resizes the file. Used when appending a new block/page past the
// current end of file before it is ever written.
func (pf *File) Truncate(size int64) error {
	if pf.view != nil {
		return fmt.Errorf("pagedfile: truncate: file opened read-only via OpenMapped: %w", errs.ErrIO)
	}
	if err := pf.f.Truncate(size); err != nil {
		return fmt.Errorf("pagedfile: truncate: %w: %v", errs.ErrIO, err)
	}
	return nil
}
