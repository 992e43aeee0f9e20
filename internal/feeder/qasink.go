package feeder

import (
	"context"

	"entropyd/internal/health"
	"entropyd/internal/source"
)

// QASink reads from an external byte source and runs only the health
// monitor on it, without contributing the bytes to the pool -- useful for
// validating a device's output quality before trusting it as a real
// source.
type QASink struct {
	device    source.ByteSource
	monitor   *health.Monitor
	chunkSize int

	onResult func(ok bool)
}

// NewQASink constructs a QASink over device, reading chunkSize bytes per
// iteration and running them through a health.Monitor registered under id.
func NewQASink(id string, device source.ByteSource, chunkSize int) *QASink {
	return &QASink{
		device:    device,
		monitor:   health.New(id, device.Bitrate() < 5_000_000),
		chunkSize: chunkSize,
		onResult:  func(bool) {},
	}
}

// SetResultCallback installs a callback invoked with each chunk's QA
// verdict.
func (q *QASink) SetResultCallback(f func(ok bool)) {
	if f != nil {
		q.onResult = f
	}
}

// Close deregisters the sink's health monitor.
func (q *QASink) Close() {
	q.monitor.Close()
}

// Run drives the QA sink loop until ctx is cancelled or the device
// returns an unexpected error.
func (q *QASink) Run(ctx context.Context) error {
	if err := q.device.Claim(); err != nil {
		return err
	}
	defer q.device.Release()

	buf := make([]byte, q.chunkSize)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := q.device.Read(buf); err != nil {
			if source.Transient(err) {
				if rerr := q.device.Reset(); rerr != nil {
					return rerr
				}
				continue
			}
			return err
		}
		ok := q.monitor.Check(buf, len(buf))
		q.onResult(ok)
	}
}

// Monitor exposes the sink's health monitor for diagnostics.
func (q *QASink) Monitor() *health.Monitor { return q.monitor }
