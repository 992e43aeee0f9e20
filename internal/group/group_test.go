package group

import (
	"context"
	"testing"

	"entropyd/internal/poolbuf"
)

func TestGroupXORCommit(t *testing.T) {
	pool := poolbuf.New(64)
	g := New(1, 64, pool)

	maskA, err := g.GetNextMask()
	if err != nil {
		t.Fatalf("GetNextMask A: %v", err)
	}
	maskB, err := g.GetNextMask()
	if err != nil {
		t.Fatalf("GetNextMask B: %v", err)
	}

	a := make([]byte, 64)
	b := make([]byte, 64)
	for i := range a {
		a[i] = byte(i)
		b[i] = byte(255 - i)
	}

	if err := g.AddEntropy(maskA, a); err != nil {
		t.Fatalf("AddEntropy A: %v", err)
	}
	if pool.Fill() != 0 {
		t.Fatalf("pool filled before both members contributed: fill=%d", pool.Fill())
	}

	if err := g.AddEntropy(maskB, b); err != nil {
		t.Fatalf("AddEntropy B: %v", err)
	}

	if pool.Fill() != 64 {
		t.Fatalf("pool fill after commit = %d, want 64", pool.Fill())
	}

	out := make([]byte, 64)
	got, err := pool.Read(context.Background(), out, 64)
	if err != nil || got != 64 {
		t.Fatalf("read: got=%d err=%v", got, err)
	}
	for i, v := range out {
		if v != 255 {
			t.Fatalf("byte %d = %d, want 255", i, v)
		}
	}
}

func TestGroupZeroIDPassthrough(t *testing.T) {
	pool := poolbuf.New(8)
	g := New(0, 8, pool)
	buf := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if err := g.AddEntropy(0, buf); err != nil {
		t.Fatalf("AddEntropy: %v", err)
	}
	if pool.Fill() != 8 {
		t.Fatalf("fill = %d, want 8", pool.Fill())
	}
}

func TestGroupSingleMemberBehavesAsPassthrough(t *testing.T) {
	pool := poolbuf.New(8)
	g := New(5, 8, pool)
	mask, _ := g.GetNextMask()
	buf := []byte{9, 9, 9, 9, 9, 9, 9, 9}
	if err := g.AddEntropy(mask, buf); err != nil {
		t.Fatalf("AddEntropy: %v", err)
	}
	if pool.Fill() != 8 {
		t.Fatalf("single-member group did not pass straight through: fill=%d", pool.Fill())
	}
}

func TestGroupFull(t *testing.T) {
	pool := poolbuf.New(8)
	g := New(2, 8, pool)
	for i := 0; i < 32; i++ {
		if _, err := g.GetNextMask(); err != nil {
			t.Fatalf("mask %d: %v", i, err)
		}
	}
	if _, err := g.GetNextMask(); err != ErrGroupFull {
		t.Fatalf("expected ErrGroupFull, got %v", err)
	}
}
