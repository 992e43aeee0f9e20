// Package filedevice implements a source.ByteSource backed by a generic
// character device or named pipe, for USB HWRNGs whose kernel driver
// exposes a plain byte stream (e.g. /dev/ttyUSB0, /dev/hwrng). The
// MPSSE/vendor wire protocol some HWRNGs need before they start streaming
// is out of scope here: this only implements the opaque Read/Claim/
// Release/Reset contract source.Source drives against whatever device
// node the operator points it at.
package filedevice

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Source reads raw bytes from a device node.
type Source struct {
	mu      sync.Mutex
	path    string
	serial  string
	product string
	bitrate int64
	f       *os.File
}

// New constructs a Source for the device node at path.
func New(path, serial, product string, bitrateBPS int64) *Source {
	return &Source{path: path, serial: serial, product: product, bitrate: bitrateBPS}
}

// Claim opens the device node.
func (s *Source) Claim() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f != nil {
		return nil
	}
	f, err := os.OpenFile(s.path, os.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("filedevice: open %s: %w", s.path, err)
	}
	s.f = f
	return nil
}

// Release closes the device node.
func (s *Source) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// Reset closes and reopens the device node, the generic recovery action
// for a transient read fault on a byte-stream device.
func (s *Source) Reset() error {
	if err := s.Release(); err != nil {
		return err
	}
	return s.Claim()
}

// Read fills buf completely from the device. A short read or EOF is
// returned as an ordinary wrapped error, not a *source.DeviceError, so the
// source worker does not treat it as transient and does not Reset.
func (s *Source) Read(buf []byte) error {
	s.mu.Lock()
	f := s.f
	s.mu.Unlock()

	if f == nil {
		return fmt.Errorf("filedevice: %s: not claimed", s.path)
	}

	_, err := io.ReadFull(f, buf)
	if err != nil {
		return fmt.Errorf("filedevice: %s: read: %w", s.path, err)
	}
	return nil
}

// Serial returns the configured source identifier.
func (s *Source) Serial() string { return s.serial }

// Product returns the configured device product string.
func (s *Source) Product() string { return s.product }

// Bitrate returns the configured nominal bit rate.
func (s *Source) Bitrate() int64 { return s.bitrate }
