package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PoolSizeBytes != DefaultConfig().PoolSizeBytes {
		t.Fatalf("expected default pool size, got %d", cfg.PoolSizeBytes)
	}
}

func TestLoadParsesTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "entropyd.toml")
	doc := `
pool_size_bytes = 131072
audit_db_path = "/var/lib/entropyd/audit.db"

[[sources]]
serial_id = "hwrng-a"
chunk_size = 2500
group_buffer_size = 2500

[[control_sockets]]
address = "/run/entropyd/control.sock"

[kernel_feeder]
enabled = true
low_watermark_bits = 1024
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PoolSizeBytes != 131072 {
		t.Fatalf("got pool size %d want 131072", cfg.PoolSizeBytes)
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0].SerialID != "hwrng-a" {
		t.Fatalf("unexpected sources: %+v", cfg.Sources)
	}
	if !cfg.KernelFeeder.Enabled || cfg.KernelFeeder.LowWatermarkBits != 1024 {
		t.Fatalf("unexpected kernel feeder config: %+v", cfg.KernelFeeder)
	}
}

func TestValidateRejectsDuplicateSerialID(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sources = []SourceConfig{
		{SerialID: "a", DevicePath: "/dev/ttyUSB0", ChunkSize: 2500, GroupBufferSize: 2500},
		{SerialID: "a", DevicePath: "/dev/ttyUSB1", ChunkSize: 2500, GroupBufferSize: 2500},
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for duplicate serial_id")
	}
}

func TestValidateRejectsUndefinedGroupReference(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sources = []SourceConfig{
		{SerialID: "a", DevicePath: "/dev/ttyUSB0", ChunkSize: 2500, GroupBufferSize: 2500, GroupID: 7},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for undefined group reference")
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Groups = []GroupConfig{{ID: 1, SizeBytes: 4096}}
	cfg.Sources = []SourceConfig{
		{SerialID: "a", DevicePath: "/dev/ttyUSB0", ChunkSize: 2500, GroupBufferSize: 2500, GroupID: 1},
		{SerialID: "b", DevicePath: "/dev/ttyUSB1", ChunkSize: 2500, GroupBufferSize: 2500, GroupID: 1},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestValidateSchemaAcceptsDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.ValidateSchema(); err != nil {
		t.Fatalf("unexpected schema validation error: %v", err)
	}
}

func TestValidateSchemaRejectsMissingControlSockets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ControlSockets = nil
	if err := cfg.ValidateSchema(); err == nil {
		t.Fatal("expected schema validation error for empty control_sockets")
	}
}

func TestLoaderWatchAppliesAdditiveReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "entropyd.toml")
	initial := `
pool_size_bytes = 65536
[[control_sockets]]
address = "/run/entropyd/control.sock"
[[sources]]
serial_id = "hwrng-a"
device_path = "/dev/hwrng-a"
chunk_size = 2500
group_buffer_size = 2500
`
	if err := os.WriteFile(path, []byte(initial), 0644); err != nil {
		t.Fatalf("write initial config: %v", err)
	}

	loader := NewLoader(path)
	defer loader.Close()

	if _, err := loader.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := loader.Watch(); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	changed := make(chan []SourceConfig, 1)
	loader.OnChange(func(prev, next *Config) {
		changed <- DiffNewSources(prev, next)
	})

	updated := initial + `
[[sources]]
serial_id = "hwrng-b"
device_path = "/dev/hwrng-b"
chunk_size = 2500
group_buffer_size = 2500
`
	time.Sleep(20 * time.Millisecond)
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		t.Fatalf("write updated config: %v", err)
	}

	select {
	case added := <-changed:
		if len(added) != 1 || added[0].SerialID != "hwrng-b" {
			t.Fatalf("unexpected additive diff: %+v", added)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}
