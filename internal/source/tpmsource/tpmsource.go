// Package tpmsource implements a source.ByteSource backed by a TPM 2.0
// device's TPM2_GetRandom command, for hosts with no USB HWRNG attached.
package tpmsource

import (
	"fmt"
	"sync"

	"github.com/google/go-tpm/tpm2"
	"github.com/google/go-tpm/tpm2/transport"
)

// maxRandomBytes is the largest chunk most TPM 2.0 implementations return
// from a single TPM2_GetRandom call; larger reads are split into a loop.
const maxRandomBytes = 32

// Source is a source.ByteSource reading from a TPM's hardware RNG.
// TPMs have no claim/release/reset lifecycle the way a USB HWRNG does, so
// Claim/Release/Reset are no-ops; Bitrate returns the bitrate passed to New.
type Source struct {
	mu         sync.Mutex
	devicePath string
	serial     string
	bitrateBPS int64

	tr transport.TPM
}

// New opens the TPM device at devicePath ("/dev/tpmrm0" is the usual
// resource-manager path) and returns a Source identified by serial.
func New(devicePath, serial string, bitrateBPS int64) (*Source, error) {
	tr, err := transport.OpenTPM(devicePath)
	if err != nil {
		return nil, fmt.Errorf("tpmsource: open %s: %w", devicePath, err)
	}
	return &Source{
		devicePath: devicePath,
		serial:     serial,
		bitrateBPS: bitrateBPS,
		tr:         tr,
	}, nil
}

// Read fills buf using repeated TPM2_GetRandom calls.
func (s *Source) Read(buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for off := 0; off < len(buf); {
		want := len(buf) - off
		if want > maxRandomBytes {
			want = maxRandomBytes
		}
		cmd := tpm2.GetRandom{BytesRequested: uint16(want)}
		rsp, err := cmd.Execute(s.tr)
		if err != nil {
			return fmt.Errorf("tpmsource: GetRandom: %w", err)
		}
		n := copy(buf[off:], rsp.RandomBytes.Buffer)
		if n == 0 {
			return fmt.Errorf("tpmsource: GetRandom returned no bytes")
		}
		off += n
	}
	return nil
}

// Claim is a no-op; the TPM transport is already open after New.
func (s *Source) Claim() error { return nil }

// Release is a no-op; Close tears down the transport.
func (s *Source) Release() error { return nil }

// Reset is a no-op; TPM2_GetRandom has no error state to clear.
func (s *Source) Reset() error { return nil }

// Serial returns the configured source identifier.
func (s *Source) Serial() string { return s.serial }

// Product identifies this source type for diagnostics.
func (s *Source) Product() string { return "TPM2.0 RNG" }

// Bitrate returns the configured nominal bit rate.
func (s *Source) Bitrate() int64 { return s.bitrateBPS }

// Close releases the TPM transport.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tr.Close()
}
