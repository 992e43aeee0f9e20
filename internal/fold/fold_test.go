package fold

import (
	"bytes"
	"testing"
)

func TestFoldCorrectness(t *testing.T) {
	got := []byte{0xF0, 0x0F, 0xAA, 0x55}
	n, err := Fold(got, 4, 1)
	if err != nil {
		t.Fatalf("fold k=1: %v", err)
	}
	if n != 2 || !bytes.Equal(got[:n], []byte{0x5A, 0x5A}) {
		t.Fatalf("k=1: got %x len %d, want 5a5a len 2", got[:n], n)
	}

	got2 := []byte{0xF0, 0x0F, 0xAA, 0x55}
	n2, err := Fold(got2, 4, 2)
	if err != nil {
		t.Fatalf("fold k=2: %v", err)
	}
	if n2 != 1 || got2[0] != 0x00 {
		t.Fatalf("k=2: got %x len %d, want 00 len 1", got2[:n2], n2)
	}
}

func TestFoldInvalidLength(t *testing.T) {
	buf := make([]byte, 3)
	if _, err := Fold(buf, 3, 1); err != ErrInvalidLength {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}
}

func TestFoldZeroK(t *testing.T) {
	buf := []byte{1, 2, 3, 4}
	n, err := Fold(buf, 4, 0)
	if err != nil || n != 4 {
		t.Fatalf("k=0 should be identity, got n=%d err=%v", n, err)
	}
}

func TestFoldUniformityChiSquare(t *testing.T) {
	// A large synthetic uniformly-random input folded by k=1 should remain
	// close to uniform; a gross bias would blow up chi-square badly beyond
	// chance. This is a loose regression guard, not a strict statistical
	// test.
	const n = 1 << 16
	buf := make([]byte, n)
	var x uint32 = 0x2545F491
	for i := range buf {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		buf[i] = byte(x)
	}
	out := append([]byte(nil), buf...)
	newLen, err := Fold(out, n, 1)
	if err != nil {
		t.Fatalf("fold: %v", err)
	}
	var bins [256]int
	for _, b := range out[:newLen] {
		bins[b]++
	}
	expected := float64(newLen) / 256.0
	chisq := 0.0
	for _, c := range bins {
		d := float64(c) - expected
		chisq += d * d / expected
	}
	// 255 degrees of freedom; a wildly broken fold would push this far
	// past a few hundred. Generous bound to avoid test flakiness.
	if chisq > 400 {
		t.Fatalf("chi-square too high after fold: %f", chisq)
	}
}
