package ui

import (
	"testing"
	"time"

	"entropyd/cmd/entropyd-monitor/internal/poller"

	"gioui.org/widget/material"
)

func newTestDashboard() *Dashboard {
	return NewDashboard(NewTheme(material.NewTheme()))
}

func TestSetSnapshotReplacesState(t *testing.T) {
	d := newTestDashboard()
	if len(d.snapshot.Sources) != 0 {
		t.Fatalf("expected empty initial snapshot, got %+v", d.snapshot)
	}

	snap := poller.Snapshot{
		At:      time.Now(),
		Sources: []poller.SourceStat{{ID: "hwrng0", QA: true, FIPS: true}},
	}
	d.SetSnapshot(snap)

	if len(d.snapshot.Sources) != 1 || d.snapshot.Sources[0].ID != "hwrng0" {
		t.Fatalf("snapshot not installed, got %+v", d.snapshot)
	}
}

func TestSetSnapshotCarriesErrors(t *testing.T) {
	d := newTestDashboard()
	snap := poller.Snapshot{Err: errTest("connection refused")}
	d.SetSnapshot(snap)

	if d.snapshot.Err == nil {
		t.Fatal("expected the error to survive SetSnapshot")
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
