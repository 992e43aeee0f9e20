//go:build linux

package feeder

import (
	"context"
	"fmt"
	"os"
	"time"

	"entropyd/internal/sysutil"
)

// LinuxKernelSink is the RNDADDENTROPY-backed KernelEntropySink: it credits
// entropy to the kernel CSPRNG directly and waits on /dev/random's
// level-triggered "pool below watermark" readiness by polling
// RNDGETENTCNT, since Go exposes no epoll-on-/dev/random primitive.
type LinuxKernelSink struct {
	f            *os.File
	pollInterval time.Duration
	lowWatermark int
}

// NewLinuxKernelSink opens /dev/random for ioctl use. lowWatermark is the
// entropy-count threshold (bits) below which WaitForRefill returns
// immediately; pollInterval governs how often the count is rechecked
// otherwise.
func NewLinuxKernelSink(lowWatermark int, pollInterval time.Duration) (*LinuxKernelSink, error) {
	f, err := os.OpenFile("/dev/random", os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open /dev/random: %w", err)
	}
	return &LinuxKernelSink{f: f, pollInterval: pollInterval, lowWatermark: lowWatermark}, nil
}

// Close releases the underlying file descriptor.
func (s *LinuxKernelSink) Close() error {
	return s.f.Close()
}

// AddEntropy credits creditBits worth of entropy using buf via
// RNDADDENTROPY.
func (s *LinuxKernelSink) AddEntropy(ctx context.Context, creditBits int, buf []byte) error {
	return sysutil.AddKernelEntropy(int(s.f.Fd()), creditBits, buf)
}

// WaitForRefill polls RNDGETENTCNT until the kernel's entropy estimate
// drops below lowWatermark, or ctx is cancelled.
func (s *LinuxKernelSink) WaitForRefill(ctx context.Context) error {
	t := time.NewTicker(s.pollInterval)
	defer t.Stop()
	for {
		count, err := sysutil.EntropyCount(int(s.f.Fd()))
		if err != nil {
			return fmt.Errorf("RNDGETENTCNT: %w", err)
		}
		if count < s.lowWatermark {
			return nil
		}
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
