package main

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"entropyd/internal/audit"
	"entropyd/internal/config"
	"entropyd/internal/group"
	"entropyd/internal/logging"
	"entropyd/internal/poolbuf"
)

func TestDefaultConfigPathHonoursEnv(t *testing.T) {
	t.Setenv("ENTROPYD_CONFIG", "/tmp/custom-entropyd.toml")
	if got := defaultConfigPath(); got != "/tmp/custom-entropyd.toml" {
		t.Fatalf("got %q, want override", got)
	}

	os.Unsetenv("ENTROPYD_CONFIG")
	if got := defaultConfigPath(); got != "/etc/entropyd/entropyd.toml" {
		t.Fatalf("got %q, want default", got)
	}
}

func TestStartSourceFeedsPool(t *testing.T) {
	dir := t.TempDir()
	devicePath := filepath.Join(dir, "hwrng0")
	data := make([]byte, 1<<16)
	for i := range data {
		data[i] = byte(i * 7)
	}
	if err := os.WriteFile(devicePath, data, 0600); err != nil {
		t.Fatalf("write fixture device: %v", err)
	}

	auditLog, err := audit.Open(filepath.Join(dir, "audit.db"))
	if err != nil {
		t.Fatalf("audit.Open: %v", err)
	}
	defer auditLog.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log, err := logging.New(logging.DefaultConfig())
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}

	pool := poolbuf.New(4096)
	d := &daemon{
		cfg:      &config.Config{},
		log:      log,
		pool:     pool,
		groups:   make(map[uint32]*group.Group),
		auditLog: auditLog,
		ctx:      ctx,
		wg:       &sync.WaitGroup{},
	}
	d.passthrough = group.New(0, 0, d.pool)

	sc := config.SourceConfig{
		SerialID:        "hwrng0",
		DevicePath:      devicePath,
		ChunkSize:       512,
		GroupBufferSize: 2500,
		SkipQA:          true,
	}
	if err := d.startSource(sc); err != nil {
		t.Fatalf("startSource: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if d.pool.Fill() > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for source to deposit into pool")
}
