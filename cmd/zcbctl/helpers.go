package main

import (
	"errors"
	"strconv"
)

// errStopWalk is a sentinel used to break out of a WalkRecords/
// WalkActiveBlocks callback early; it never escapes to the caller as a real
// error.
var errStopWalk = errors.New("stop walk")

// errVerificationMismatch signals that verify found a signature mismatch;
// root.go maps it to exit code 2.
var errVerificationMismatch = errors.New("DIFFER")

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
