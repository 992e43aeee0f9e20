package audit

import (
	"path/filepath"
	"testing"
	"time"
)

func TestOpenCreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "audit.db")

	l, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer l.Close()
}

func TestCloseNilDB(t *testing.T) {
	l := &Log{db: nil}
	if err := l.Close(); err != nil {
		t.Errorf("Close on nil db should not error: %v", err)
	}
}

func TestRecordAndQueryTransitions(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer l.Close()

	now := time.Now()
	transitions := []Transition{
		{SourceID: "hwrng-a", TestName: "fips", Timestamp: now, OKBefore: true, OKAfter: false, Detail: "monobit failed"},
		{SourceID: "hwrng-a", TestName: "fips", Timestamp: now.Add(time.Second), OKBefore: false, OKAfter: true, Detail: "recovered"},
		{SourceID: "hwrng-b", TestName: "ent8", Timestamp: now, OKBefore: true, OKAfter: false, Detail: "chi-square failed"},
	}
	for _, tr := range transitions {
		if err := l.RecordTransition(tr); err != nil {
			t.Fatalf("RecordTransition: %v", err)
		}
	}

	got, err := l.RecentTransitions("hwrng-a", 10)
	if err != nil {
		t.Fatalf("RecentTransitions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d transitions want 2", len(got))
	}
	if !got[0].OKAfter || got[0].Detail != "recovered" {
		t.Fatalf("expected newest transition first, got %+v", got[0])
	}
}

func TestRecordEvent(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer l.Close()

	if err := l.RecordEvent(EventStartup, time.Now(), "daemon started"); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
}
