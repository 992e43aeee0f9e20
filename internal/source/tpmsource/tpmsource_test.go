package tpmsource

import "testing"

func TestNewSkipsWithoutDevice(t *testing.T) {
	s, err := New("/dev/tpmrm0", "tpm0", 1_000_000)
	if err != nil {
		t.Skipf("no TPM device available: %v", err)
	}
	defer s.Close()

	if s.Serial() != "tpm0" {
		t.Fatalf("got serial %q want tpm0", s.Serial())
	}
	if s.Bitrate() != 1_000_000 {
		t.Fatalf("got bitrate %d want 1000000", s.Bitrate())
	}
	if s.Product() == "" {
		t.Fatal("expected non-empty product string")
	}

	buf := make([]byte, 64)
	if err := s.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
}
