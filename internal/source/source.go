// Package source implements the Source entity, the opaque byte_source
// (HWRNG) collaborator interface, and the source worker loop that pulls
// raw bytes from a device, folds them, quality-tests them, and hands good
// bytes to a Group.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"entropyd/internal/fold"
	"entropyd/internal/group"
	"entropyd/internal/health"
	"entropyd/internal/poolbuf"
)

// MinSleep is the minimum idle-sleep duration below which the worker
// prefers a blocking wait on the pool's source condition over a timed
// sleep ("MIN_SLEEP (512 ms)").
const MinSleep = 512 * time.Millisecond

// ByteSource is the opaque HWRNG collaborator: the USB/MPSSE wire protocol
// is external and unspecified here, this is only the contract the source
// worker drives. Read must return exactly len(buf) bytes or fail.
type ByteSource interface {
	Read(buf []byte) error
	Claim() error
	Release() error
	Reset() error
	Serial() string
	Product() string
	Bitrate() int64 // bits per second
}

// ErrUnexpectedDevice marks a device error the worker does not consider
// transient (anything other than timeout/pipe/other USB faults), which
// terminates the worker.
var ErrUnexpectedDevice = errors.New("source: unexpected device error")

// TransientKind classifies an expected, retryable USB fault.
type TransientKind int

const (
	TransientNone TransientKind = iota
	TransientTimeout
	TransientPipe
	TransientOther
)

// DeviceError wraps a device fault with its transience classification.
type DeviceError struct {
	Kind TransientKind
	Err  error
}

func (e *DeviceError) Error() string { return fmt.Sprintf("source: device error: %v", e.Err) }
func (e *DeviceError) Unwrap() error { return e.Err }

// Transient reports whether err is an expected, single-soft-reset-and-retry
// USB fault ("timeouts, pipe, other").
func Transient(err error) bool {
	var de *DeviceError
	if errors.As(err, &de) {
		return de.Kind == TransientTimeout || de.Kind == TransientPipe || de.Kind == TransientOther
	}
	return false
}

// Config is the Source entity's configuration.
type Config struct {
	SerialID         string
	BitrateBPS       int64
	ChunkSize        int
	FoldK            uint
	GroupID          uint32
	GroupBufferSize  int // buffer_size = group_buffer_size * 2^fold_k
	IdleSleepInitMs  int
	IdleSleepMaxMs   int // 0 means wait indefinitely once full
	SuspendAfterMs   int
	SkipQA           bool
}

// BufferSize computes buffer_size = group_buffer_size * 2^fold_k.
func (c Config) BufferSize() int {
	return c.GroupBufferSize * (1 << c.FoldK)
}

// Source owns a device handle, its read buffer, and its health monitor; it
// holds a shared reference to its group and the pool via the group (group
// id 0 groups pass straight through to the pool).
type Source struct {
	cfg    Config
	device ByteSource
	group  *group.Group
	mask   uint32
	pool   *poolbuf.Pool

	monitor *health.Monitor
	buffer  []byte

	idleSleep time.Duration

	onLog func(format string, args ...any)
}

// New constructs a Source. groupMask is the bit this source owns within
// grp (0 for pass-through group id 0).
func New(cfg Config, device ByteSource, grp *group.Group, groupMask uint32, pool *poolbuf.Pool) *Source {
	assumeEnt8OK := cfg.BitrateBPS < 5_000_000
	return &Source{
		cfg:     cfg,
		device:  device,
		group:   grp,
		mask:    groupMask,
		pool:    pool,
		monitor: health.New(cfg.SerialID, assumeEnt8OK),
		buffer:  make([]byte, cfg.BufferSize()),
		onLog:   func(string, ...any) {},
	}
}

// SetLogger installs a logging callback used for transient-fault and
// shutdown notices.
func (s *Source) SetLogger(f func(format string, args ...any)) {
	if f != nil {
		s.onLog = f
	}
}

// Close releases the device and deregisters the source's health monitor.
func (s *Source) Close() error {
	s.monitor.Close()
	return s.device.Release()
}

// Run drives the source worker loop until ctx is cancelled or an
// unexpected device error occurs: suspend on pool fullness, fill the
// buffer, fold, quality-test, commit to the group, and update the
// idle-sleep backpressure policy.
func (s *Source) Run(ctx context.Context) error {
	if err := s.device.Claim(); err != nil {
		return fmt.Errorf("source %s: claim: %w", s.cfg.SerialID, err)
	}
	released := false
	defer func() {
		if !released {
			s.device.Release()
		}
	}()

	suspended := false

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if s.idleSleep > 0 {
			if !suspended && s.cfg.SuspendAfterMs > 0 && int(s.idleSleep/time.Millisecond) > s.cfg.SuspendAfterMs {
				s.device.Release()
				released = true
				suspended = true
			}

			timeout := s.idleSleep
			if s.cfg.IdleSleepMaxMs == 0 {
				timeout = 0 // wait indefinitely
			} else if s.idleSleep < MinSleep {
				timeout = s.idleSleep
			}
			ready := s.pool.WaitForRoom(ctx, timeout)

			if suspended && ready {
				if err := s.device.Claim(); err != nil {
					return fmt.Errorf("source %s: re-claim after suspend: %w", s.cfg.SerialID, err)
				}
				released = false
				suspended = false
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}

		if err := s.fillBuffer(); err != nil {
			if Transient(err) {
				s.onLog("source %s: transient device error, resetting: %v", s.cfg.SerialID, err)
				if rerr := s.device.Reset(); rerr != nil {
					return fmt.Errorf("source %s: reset after transient error: %w", s.cfg.SerialID, rerr)
				}
				continue
			}
			return fmt.Errorf("source %s: %w", s.cfg.SerialID, err)
		}

		n, err := fold.Fold(s.buffer, len(s.buffer), s.cfg.FoldK)
		if err != nil {
			return fmt.Errorf("source %s: fold: %w", s.cfg.SerialID, err)
		}

		qaPassed := s.monitor.Check(s.buffer, n)
		if qaPassed || s.cfg.SkipQA {
			if err := s.group.AddEntropy(s.mask, s.buffer[:n]); err != nil {
				return fmt.Errorf("source %s: group commit: %w", s.cfg.SerialID, err)
			}
		}

		s.updateIdleSleep(qaPassed)
	}
}

// fillBuffer performs buffer_size/chunk_size reads of chunk_size bytes
// each from the device into s.buffer.
func (s *Source) fillBuffer() error {
	chunk := s.cfg.ChunkSize
	if chunk <= 0 {
		chunk = len(s.buffer)
	}
	for off := 0; off < len(s.buffer); off += chunk {
		end := off + chunk
		if end > len(s.buffer) {
			end = len(s.buffer)
		}
		if err := s.device.Read(s.buffer[off:end]); err != nil {
			return err
		}
	}
	return nil
}

// updateIdleSleep grows idle_sleep while the pool is full, resets it once
// there's room, and forces it to zero to accelerate re-evaluation after a
// failed quality check.
func (s *Source) updateIdleSleep(qaPassed bool) {
	if s.pool.IsFull() {
		if s.idleSleep == 0 {
			s.idleSleep = time.Duration(s.cfg.IdleSleepInitMs) * time.Millisecond
		} else {
			s.idleSleep *= 2
			max := time.Duration(s.cfg.IdleSleepMaxMs) * time.Millisecond
			if s.cfg.IdleSleepMaxMs != 0 && s.idleSleep > max {
				s.idleSleep = max
			}
		}
	} else {
		s.idleSleep = 0
	}

	if !qaPassed {
		s.idleSleep = 0
	}
}

// Monitor exposes the per-source health monitor for diagnostics.
func (s *Source) Monitor() *health.Monitor { return s.monitor }
