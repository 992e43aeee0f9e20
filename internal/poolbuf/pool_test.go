package poolbuf

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestPoolFillDrain(t *testing.T) {
	// Pool size 64 KiB; deposit 40 KiB -> fill=40 KiB; deposit 30 KiB ->
	// fill=64 KiB, trailing 6 KiB XOR-mixed at offset 0; read 20 KiB ->
	// receive the top 20 KiB of the buffer; fill=44 KiB.
	const size = 64 * 1024
	p := New(size)

	first := make([]byte, 40*1024)
	for i := range first {
		first[i] = byte(i)
	}
	p.AddEntropy(first)
	if p.Fill() != 40*1024 {
		t.Fatalf("fill after first deposit = %d, want %d", p.Fill(), 40*1024)
	}

	second := make([]byte, 30*1024)
	for i := range second {
		second[i] = byte(i + 1)
	}
	p.AddEntropy(second)
	if p.Fill() != size {
		t.Fatalf("fill after second deposit = %d, want %d", p.Fill(), size)
	}

	out := make([]byte, 20*1024)
	ctx := context.Background()
	got, err := p.Read(ctx, out, len(out))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != len(out) {
		t.Fatalf("read got %d, want %d", got, len(out))
	}
	// Read takes buffer[44KiB:64KiB]. The second deposit copied its first
	// 24KiB (the room left) into buffer[40KiB:64KiB] and XOR-mixed its
	// last 6KiB at offset 0, so the top 20KiB is second[4KiB:24KiB].
	want := second[4*1024 : 24*1024]
	if !bytes.Equal(out, want) {
		t.Fatalf("read content mismatch")
	}
	if p.Fill() != 44*1024 {
		t.Fatalf("fill after read = %d, want %d", p.Fill(), 44*1024)
	}
}

func TestPoolReadBlocksUntilDeposit(t *testing.T) {
	p := New(16)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	var got int
	var err error
	go func() {
		out := make([]byte, 4)
		got, err = p.Read(ctx, out, 4)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	p.AddEntropy([]byte{1, 2, 3, 4})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("read never unblocked after deposit")
	}
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if got != 4 {
		t.Fatalf("got %d bytes, want 4", got)
	}
}

func TestPoolExactSizeDepositThenMix(t *testing.T) {
	p := New(8)
	buf := make([]byte, 8)
	for i := range buf {
		buf[i] = byte(i + 1)
	}
	p.AddEntropy(buf)
	if p.Fill() != 8 {
		t.Fatalf("fill = %d, want 8", p.Fill())
	}

	// Next deposit mixes; fill must not change.
	p.AddEntropy([]byte{0xFF, 0xFF})
	if p.Fill() != 8 {
		t.Fatalf("fill changed after mix-only deposit: %d", p.Fill())
	}

	out := make([]byte, 8)
	got, err := p.Read(context.Background(), out, 8)
	if err != nil || got != 8 {
		t.Fatalf("read: got=%d err=%v", got, err)
	}
}

func TestPoolWaitForRoom(t *testing.T) {
	p := New(4)
	p.AddEntropy([]byte{1, 2, 3, 4})
	if p.WaitForRoom(context.Background(), 10*time.Millisecond) {
		t.Fatal("expected WaitForRoom to time out while full")
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		out := make([]byte, 2)
		p.Read(context.Background(), out, 2)
	}()

	if !p.WaitForRoom(context.Background(), time.Second) {
		t.Fatal("expected WaitForRoom to succeed after a read frees room")
	}
}
