// Package feeder implements the three consumer workers: the kernel
// feeder, the FD writer, and the QA sink.
package feeder

import (
	"context"
	"fmt"
	"io"
	"time"

	"entropyd/internal/fold"
	"entropyd/internal/health"
	"entropyd/internal/poolbuf"
)

// KernelEntropySink is the OS entropy interface collaborator: an
// OS-specific "add pool info" call taking an entropy credit in bits plus
// the bytes themselves, and a readiness wait (level-triggered "pool below
// watermark", or periodic on platforms without such an indicator).
type KernelEntropySink interface {
	AddEntropy(ctx context.Context, creditBits int, buf []byte) error
	WaitForRefill(ctx context.Context) error
}

// KernelFeeder periodically pulls a FIPS-sized block from the pool,
// revalidates it with a dedicated "Pool" monitor, folds it by 2, revalidates
// the folded bytes with a second "Kernel" monitor, and -- only if both pass
// -- hands the folded bytes to the OS entropy interface with an entropy
// credit of 8*len(folded) bits. Blocks that fail either pass are simply
// dropped; the kernel feeder never credits entropy that failed QA.
type KernelFeeder struct {
	pool *poolbuf.Pool
	sink KernelEntropySink

	poolMonitor   *health.Monitor
	kernelMonitor *health.Monitor

	onLog func(format string, args ...any)
}

// NewKernelFeeder constructs a KernelFeeder reading from pool and writing
// to sink.
func NewKernelFeeder(pool *poolbuf.Pool, sink KernelEntropySink) *KernelFeeder {
	return &KernelFeeder{
		pool:          pool,
		sink:          sink,
		poolMonitor:   health.New("Pool", false),
		kernelMonitor: health.New("Kernel", false),
		onLog:         func(string, ...any) {},
	}
}

// SetLogger installs a logging callback for dropped (failed-QA) blocks.
func (k *KernelFeeder) SetLogger(f func(format string, args ...any)) {
	if f != nil {
		k.onLog = f
	}
}

// Close deregisters the feeder's two health monitors.
func (k *KernelFeeder) Close() {
	k.poolMonitor.Close()
	k.kernelMonitor.Close()
}

// Run drives the feeder loop until ctx is cancelled.
func (k *KernelFeeder) Run(ctx context.Context) error {
	const blockBytes = 2500 // FIPS block: 20000 bits

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		block := make([]byte, blockBytes)
		n, err := k.pool.Read(ctx, block, blockBytes)
		if err != nil {
			return err
		}
		if n != blockBytes {
			continue
		}

		if !k.poolMonitor.Check(block, n) {
			k.onLog("kernel-feeder: block failed Pool monitor, dropped")
			continue
		}

		foldedLen, err := fold.Fold(block, n, 2) // fold by 2 -> 625 bytes
		if err != nil {
			return fmt.Errorf("kernel-feeder: fold: %w", err)
		}
		folded := block[:foldedLen]

		if !k.kernelMonitor.Check(folded, foldedLen) {
			k.onLog("kernel-feeder: folded block failed Kernel monitor, dropped")
			continue
		}

		creditBits := 8 * foldedLen
		if err := k.sink.AddEntropy(ctx, creditBits, folded); err != nil {
			return fmt.Errorf("kernel-feeder: add entropy: %w", err)
		}

		if err := k.sink.WaitForRefill(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("kernel-feeder: wait for refill: %w", err)
		}
	}
}

// PollingKernelSink is a KernelEntropySink that polls WaitForRefill by
// sleeping for a fixed refill_time instead of relying on an OS readiness
// indicator, for platforms without one.
type PollingKernelSink struct {
	Writer     io.Writer
	RefillTime time.Duration
}

// AddEntropy writes buf to Writer, ignoring creditBits (no readiness
// indicator to credit against on this platform).
func (p *PollingKernelSink) AddEntropy(ctx context.Context, creditBits int, buf []byte) error {
	_, err := p.Writer.Write(buf)
	return err
}

// WaitForRefill sleeps for RefillTime, or returns early if ctx is done.
func (p *PollingKernelSink) WaitForRefill(ctx context.Context) error {
	t := time.NewTimer(p.RefillTime)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
