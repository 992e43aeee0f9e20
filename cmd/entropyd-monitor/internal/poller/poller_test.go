package poller

import (
	"bufio"
	"net"
	"testing"
	"time"

	"entropyd/internal/jsonvalue"
)

// fakeServer answers GetIDs with a two-source list and ReportStats with
// matching health records, mimicking entropyd's control dispatcher just
// enough to exercise Poll's two-round-trip parsing.
func fakeServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)

		for i := 0; i < 2; i++ {
			raw, err := r.ReadBytes(0)
			if err != nil {
				return
			}
			req, err := jsonvalue.Parse(raw[:len(raw)-1])
			if err != nil {
				return
			}
			cmd := req.AsArray()[0].AsString()

			var payload jsonvalue.Value
			switch cmd {
			case "GetIDs":
				payload = jsonvalue.Array(jsonvalue.String("hwrng0"), jsonvalue.String("hwrng1"))
			case "ReportStats":
				obj := jsonvalue.NewObject()
				obj.Set("QA", jsonvalue.Bool(true))
				obj.Set("FIPS", jsonvalue.Bool(true))
				obj.Set("BytesAnalysed", jsonvalue.Int(2048))
				obj.Set("BytesPassed", jsonvalue.Int(2048))
				stats := jsonvalue.NewObject()
				stats.Set("hwrng0", jsonvalue.Obj(obj))
				stats.Set("hwrng1", jsonvalue.Obj(obj))
				payload = jsonvalue.Obj(stats)
			}

			resp := jsonvalue.Array(jsonvalue.String(cmd), jsonvalue.Int(1), payload)
			conn.Write(append([]byte(jsonvalue.Encode(resp)), 0))
		}
	}()

	return ln.Addr().String()
}

func TestPollReturnsSourceStats(t *testing.T) {
	addr := fakeServer(t)
	p := New("tcp:"+addr, "")
	defer p.Close()

	snap := p.Poll()
	if snap.Err != nil {
		t.Fatalf("unexpected error: %v", snap.Err)
	}
	if len(snap.Sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(snap.Sources))
	}
	if snap.Sources[0].ID != "hwrng0" || snap.Sources[1].ID != "hwrng1" {
		t.Fatalf("unexpected source ids: %+v", snap.Sources)
	}
	if !snap.Sources[0].QA || !snap.Sources[0].FIPS {
		t.Fatalf("expected healthy source, got %+v", snap.Sources[0])
	}
	if snap.Sources[0].BytesPassed != 2048 {
		t.Fatalf("got BytesPassed %d, want 2048", snap.Sources[0].BytesPassed)
	}
}

func TestPollReportsDialError(t *testing.T) {
	p := New("/nonexistent/entropyd.sock", "")
	snap := p.Poll()
	if snap.Err == nil {
		t.Fatal("expected an error for an unreachable socket")
	}
}

func TestRunStopsOnSignal(t *testing.T) {
	addr := fakeServer(t)
	p := New("tcp:"+addr, "")
	defer p.Close()

	out := make(chan Snapshot, 4)
	stop := make(chan struct{})

	done := make(chan struct{})
	go func() {
		Run(p, 10*time.Millisecond, out, stop)
		close(done)
	}()

	select {
	case <-out:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for first snapshot")
	}

	close(stop)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not exit after stop was closed")
	}
}
