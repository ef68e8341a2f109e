// Package errs collects the sentinel error kinds the storage engine can
// return. Every operation surfaces one of these (wrapped with context via
// fmt.Errorf("%w", ...)) rather than a bespoke error type, so callers use
// errors.Is against these values.
package errs

import "errors"

var (
	// ErrIO wraps an underlying read/write/seek failure from the OS.
	ErrIO = errors.New("io error")

	// ErrShortRead means a block or page read returned fewer bytes than requested.
	ErrShortRead = errors.New("short read")

	// ErrShortHeader means a file header read returned fewer bytes than its
	// self-described headerSize.
	ErrShortHeader = errors.New("short header")

	// ErrBadMagic means a file's leading signature did not match.
	ErrBadMagic = errors.New("bad magic")

	// ErrBadVersion means a file's version field is not one this engine understands.
	ErrBadVersion = errors.New("bad version")

	// ErrCorruptBlock means a data block failed length-prefix or padding validation.
	ErrCorruptBlock = errors.New("corrupt block")

	// ErrInvalidRecord means a record failed field-count or range validation.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrBlockOverflow means packing records would exceed the block size.
	ErrBlockOverflow = errors.New("block overflow")

	// ErrNotFound means a search found no record or entry for the given key.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey means an insert targeted a zip already present.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrTreeInvariant means a tree descent exceeded height+epsilon: a
	// loop/damage guard against a corrupt or cyclic tree.
	ErrTreeInvariant = errors.New("tree invariant violated")

	// ErrShortPage means a tree node page is smaller than its fixed header.
	ErrShortPage = errors.New("short page")

	// ErrBadNodeKind means a tree node's isLeaf byte was neither 0 nor 1.
	ErrBadNodeKind = errors.New("bad node kind")
)
