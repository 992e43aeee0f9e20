//go:build !linux

package main

import (
	"io"
	"time"

	"entropyd/internal/config"
	"entropyd/internal/feeder"
)

// newKernelSink falls back to a polling sink on platforms with no
// RNDADDENTROPY-style ioctl; there is nothing to write the credited bytes
// to, so they are discarded and only the refill timing is honoured.
func newKernelSink(cfg config.KernelFeederConfig) (feeder.KernelEntropySink, func() error, error) {
	refill := time.Duration(cfg.RefillTimeMs) * time.Millisecond
	if refill <= 0 {
		refill = time.Second
	}
	sink := &feeder.PollingKernelSink{Writer: io.Discard, RefillTime: refill}
	return sink, func() error { return nil }, nil
}
