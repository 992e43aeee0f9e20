package control

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"entropyd/internal/health"
)

func TestControlServerGetIDs(t *testing.T) {
	srcA := health.New("srcA", true)
	srcB := health.New("srcB", true)
	defer srcA.Close()
	defer srcB.Close()

	dir := t.TempDir()
	addr := Address(filepath.Join(dir, "control.sock"))

	srv := NewServer(addr, NewDispatcher(nil))
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)

	conn, err := net.Dial("unix", string(addr))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write(append([]byte(`"GetIDs"`), 0)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(conn)
	raw, err := reader.ReadBytes(0)
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	raw = raw[:len(raw)-1]

	var resp []json.RawMessage
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("response is not valid JSON (%s): %v", raw, err)
	}
	if len(resp) != 3 {
		t.Fatalf("expected 3-element response, got %d: %s", len(resp), raw)
	}

	var command string
	if err := json.Unmarshal(resp[0], &command); err != nil || command != "GetIDs" {
		t.Fatalf("command mismatch: %s", resp[0])
	}

	var ids []string
	if err := json.Unmarshal(resp[2], &ids); err != nil {
		t.Fatalf("ids payload: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %v", ids)
	}
}

func TestControlServerBadRequest(t *testing.T) {
	dir := t.TempDir()
	addr := Address(filepath.Join(dir, "control.sock"))

	srv := NewServer(addr, NewDispatcher(nil))
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)

	conn, err := net.Dial("unix", string(addr))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write(append([]byte(`{not json`), 0)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(conn)
	raw, err := reader.ReadBytes(0)
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	raw = raw[:len(raw)-1]

	var resp []json.RawMessage
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("response is not valid JSON (%s): %v", raw, err)
	}
	var command string
	json.Unmarshal(resp[0], &command)
	if command != "BadRequest" {
		t.Fatalf("expected BadRequest, got %s", raw)
	}
}
