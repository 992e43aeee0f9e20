package feeder

import (
	"context"
	"crypto/rand"
	"sync/atomic"
	"testing"
	"time"

	"entropyd/internal/poolbuf"
)

type fakeSink struct {
	credited int32
	refills  int32
}

func (f *fakeSink) AddEntropy(ctx context.Context, creditBits int, buf []byte) error {
	atomic.AddInt32(&f.credited, 1)
	return nil
}

func (f *fakeSink) WaitForRefill(ctx context.Context) error {
	atomic.AddInt32(&f.refills, 1)
	return nil
}

func TestKernelFeederCreditsGoodBlock(t *testing.T) {
	pool := poolbuf.New(5000)
	block := make([]byte, 2500)
	if _, err := rand.Read(block); err != nil {
		t.Fatal(err)
	}
	pool.AddEntropy(block)

	sink := &fakeSink{}
	feeder := NewKernelFeeder(pool, sink)
	defer feeder.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- feeder.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&sink.credited) == 0 {
		select {
		case <-deadline:
			t.Fatal("kernel feeder never credited entropy for a random block")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	cancel()
	<-done
}
