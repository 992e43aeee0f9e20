//go:build linux

package main

import (
	"time"

	"entropyd/internal/config"
	"entropyd/internal/feeder"
)

// newKernelSink opens the Linux RNDADDENTROPY-backed sink when the kernel
// feeder is enabled.
func newKernelSink(cfg config.KernelFeederConfig) (feeder.KernelEntropySink, func() error, error) {
	pollInterval := time.Duration(cfg.PollIntervalMs) * time.Millisecond
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	sink, err := feeder.NewLinuxKernelSink(cfg.LowWatermarkBits, pollInterval)
	if err != nil {
		return nil, nil, err
	}
	return sink, sink.Close, nil
}
