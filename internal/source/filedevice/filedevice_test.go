package filedevice

import (
	"os"
	"path/filepath"
	"testing"
)

func TestClaimReadRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake-hwrng")
	if err := os.WriteFile(path, make([]byte, 256), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	s := New(path, "hwrng-a", "fake", 1_000_000)
	if err := s.Claim(); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	defer s.Release()

	buf := make([]byte, 64)
	if err := s.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}

	if s.Serial() != "hwrng-a" || s.Product() != "fake" || s.Bitrate() != 1_000_000 {
		t.Fatalf("unexpected accessors: %q %q %d", s.Serial(), s.Product(), s.Bitrate())
	}
}

func TestReadBeforeClaimErrors(t *testing.T) {
	s := New("/nonexistent", "hwrng-a", "fake", 0)
	if err := s.Read(make([]byte, 8)); err == nil {
		t.Fatal("expected error reading before Claim")
	}
}

func TestReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake-hwrng")
	if err := os.WriteFile(path, make([]byte, 256), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	s := New(path, "hwrng-a", "fake", 0)
	if err := s.Claim(); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	defer s.Release()

	if err := s.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if err := s.Read(make([]byte, 16)); err != nil {
		t.Fatalf("Read after Reset: %v", err)
	}
}
