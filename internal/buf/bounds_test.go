package buf

import (
	"errors"
	"math"
	"testing"

	"github.com/jpare/zipstore/errs"
)

func TestAddOverflowSafe(t *testing.T) {
	if sum, ok := AddOverflowSafe(10, 5); !ok || sum != 15 {
		t.Fatalf("AddOverflowSafe(10,5)=%d,%v want 15,true", sum, ok)
	}
	if _, ok := AddOverflowSafe(math.MaxInt, 1); ok {
		t.Fatalf("expected overflow when adding to MaxInt")
	}
	if _, ok := AddOverflowSafe(math.MinInt, -1); ok {
		t.Fatalf("expected underflow when subtracting from MinInt")
	}
}

func TestSliceAndHas(t *testing.T) {
	data := []byte{0, 1, 2, 3, 4}
	if got, err := Slice(data, 1, 3); err != nil || len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("Slice returned unexpected result: %v, %v", got, err)
	}
	if _, err := Slice(data, 4, 2); err == nil {
		t.Fatalf("Slice should fail when extending beyond len")
	} else if !errors.Is(err, errs.ErrShortRead) {
		t.Fatalf("Slice error should wrap errs.ErrShortRead, got %v", err)
	}
	if Has(data, 2, 4) {
		t.Fatalf("Has should be false for out-of-bounds range")
	}
	if !Has(data, 2, 1) {
		t.Fatalf("Has should be true for valid range")
	}

	if _, err := Slice(data, -1, 1); err == nil {
		t.Fatalf("Slice should reject negative offset")
	}
	if _, err := Slice(data, 1, -1); err == nil {
		t.Fatalf("Slice should reject negative length")
	}
}
