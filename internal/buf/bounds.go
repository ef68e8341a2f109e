package buf

import (
	"fmt"
	"math"

	"github.com/jpare/zipstore/errs"
)

// AddOverflowSafe adds a and b, returning ok = false when the result would overflow int.
func AddOverflowSafe(a, b int) (sum int, ok bool) {
	switch {
	case b > 0 && a > math.MaxInt-b:
		return 0, false
	case b < 0 && a < math.MinInt-b:
		return 0, false
	default:
		return a + b, true
	}
}

// Slice returns the sub-slice [off:off+n], wrapping errs.ErrShortRead when it
// doesn't fit within len(b). Every Checked* reader in endian.go goes through
// this single bounds check.
func Slice(b []byte, off, n int) ([]byte, error) {
	if off < 0 || n < 0 || off > len(b) {
		return nil, fmt.Errorf("buf: %d bytes at %d: %w", n, off, errs.ErrShortRead)
	}
	end, ok := AddOverflowSafe(off, n)
	if !ok || end > len(b) {
		return nil, fmt.Errorf("buf: %d bytes at %d: %w", n, off, errs.ErrShortRead)
	}
	return b[off:end], nil
}

// Has reports whether b[off:off+n] is within bounds.
func Has(b []byte, off, n int) bool {
	_, err := Slice(b, off, n)
	return err == nil
}
