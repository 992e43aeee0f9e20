// Package config handles configuration loading and validation for
// entropyd.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// SourceConfig describes one HWRNG source.
type SourceConfig struct {
	SerialID        string `toml:"serial_id" json:"serial_id"`
	DevicePath      string `toml:"device_path" json:"device_path"` // character device/named pipe; with tpm=true, the TPM device (auto-detected when empty)
	BitrateBPS      int64  `toml:"bitrate_bps" json:"bitrate_bps"`
	ChunkSize       int    `toml:"chunk_size" json:"chunk_size"`
	FoldK           uint   `toml:"fold_k" json:"fold_k"`
	GroupID         uint32 `toml:"group_id" json:"group_id"`
	GroupBufferSize int    `toml:"group_buffer_size" json:"group_buffer_size"`
	IdleSleepInitMs int    `toml:"idle_sleep_init_ms" json:"idle_sleep_init_ms"`
	IdleSleepMaxMs  int    `toml:"idle_sleep_max_ms" json:"idle_sleep_max_ms"`
	SuspendAfterMs  int    `toml:"suspend_after_ms" json:"suspend_after_ms"`
	SkipQA          bool   `toml:"skip_qa" json:"skip_qa"`
	TPM             bool   `toml:"tpm" json:"tpm"` // use the TPM2_GetRandom-backed source instead of a USB device
}

// GroupConfig describes one source group, the XOR-combination point for
// multiple HWRNGs feeding one pool.
type GroupConfig struct {
	ID        uint32 `toml:"id" json:"id"`
	SizeBytes int    `toml:"size_bytes" json:"size_bytes"`
}

// SocketConfig describes one control-protocol listener.
type SocketConfig struct {
	Address   string `toml:"address" json:"address"` // "tcp:host:port" or an absolute UNIX path
	Group     string `toml:"group" json:"group,omitempty"`
	AuthToken string `toml:"auth_token,omitempty" json:"auth_token,omitempty"`
}

// KernelFeederConfig configures the OS entropy feeder.
type KernelFeederConfig struct {
	Enabled          bool `toml:"enabled" json:"enabled"`
	LowWatermarkBits int  `toml:"low_watermark_bits" json:"low_watermark_bits"`
	PollIntervalMs   int  `toml:"poll_interval_ms" json:"poll_interval_ms"`
	RefillTimeMs     int  `toml:"refill_time_ms" json:"refill_time_ms"` // used on platforms without a kernel readiness indicator
}

// FDWriterConfig configures one async FD-writer consumer.
type FDWriterConfig struct {
	Path       string `toml:"path" json:"path"`
	LimitBytes int64  `toml:"limit_bytes" json:"limit_bytes"` // 0 means unbounded
	ChunkSize  int    `toml:"chunk_size" json:"chunk_size"`
}

// QASinkConfig configures one QA-only (non-pool-feeding) source validation
// sink.
type QASinkConfig struct {
	ID        string `toml:"id" json:"id"`
	SerialID  string `toml:"serial_id" json:"serial_id"`
	ChunkSize int    `toml:"chunk_size" json:"chunk_size"`
}

// Config holds the daemon's full configuration.
type Config struct {
	Sources        []SourceConfig     `toml:"sources" json:"sources"`
	Groups         []GroupConfig      `toml:"groups" json:"groups"`
	PoolSizeBytes  int                `toml:"pool_size_bytes" json:"pool_size_bytes"`
	ControlSockets []SocketConfig     `toml:"control_sockets" json:"control_sockets"`
	KernelFeeder   KernelFeederConfig `toml:"kernel_feeder" json:"kernel_feeder"`
	FDWriters      []FDWriterConfig   `toml:"fd_writers" json:"fd_writers"`
	QASinks        []QASinkConfig     `toml:"qa_sinks" json:"qa_sinks"`

	AuditDBPath string `toml:"audit_db_path" json:"audit_db_path"`
	DBusNotify  bool   `toml:"dbus_notify" json:"dbus_notify"`

	LogLevel  string `toml:"log_level" json:"log_level"`
	LogFormat string `toml:"log_format" json:"log_format"`
}

// DefaultConfig returns a configuration with sensible defaults: a 64 KiB
// pool, no sources (the operator must configure at least one), and the
// kernel feeder disabled until explicitly turned on.
func DefaultConfig() *Config {
	return &Config{
		PoolSizeBytes: 64 * 1024,
		ControlSockets: []SocketConfig{
			{Address: "/run/entropyd/control.sock"},
		},
		KernelFeeder: KernelFeederConfig{
			Enabled:          false,
			LowWatermarkBits: 2048,
			PollIntervalMs:   500,
			RefillTimeMs:     1000,
		},
		AuditDBPath: "/var/lib/entropyd/audit.db",
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// Load reads and parses a TOML configuration file at path, returning
// DefaultConfig() unmodified if the file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if c.PoolSizeBytes <= 0 {
		errs = append(errs, ValidationError{Field: "pool_size_bytes", Message: "must be positive"})
	}

	seenSerial := make(map[string]bool)
	for i, s := range c.Sources {
		if s.SerialID == "" {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("sources[%d].serial_id", i), Message: "required"})
			continue
		}
		if seenSerial[s.SerialID] {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("sources[%d].serial_id", i), Message: "duplicate serial_id " + s.SerialID})
		}
		seenSerial[s.SerialID] = true

		if s.ChunkSize <= 0 {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("sources[%d].chunk_size", i), Message: "must be positive"})
		}
		if s.GroupBufferSize <= 0 {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("sources[%d].group_buffer_size", i), Message: "must be positive"})
		}
		if s.IdleSleepMaxMs != 0 && s.IdleSleepInitMs > s.IdleSleepMaxMs {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("sources[%d]", i), Message: "idle_sleep_init_ms exceeds idle_sleep_max_ms"})
		}
		if !s.TPM && s.DevicePath == "" {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("sources[%d].device_path", i), Message: "required unless tpm is set"})
		}
	}

	seenGroup := make(map[uint32]bool)
	for i, g := range c.Groups {
		if g.ID == 0 {
			continue // group 0 is the well-known "no group" passthrough id
		}
		if seenGroup[g.ID] {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("groups[%d].id", i), Message: "duplicate group id"})
		}
		seenGroup[g.ID] = true
		if g.SizeBytes <= 0 {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("groups[%d].size_bytes", i), Message: "must be positive"})
		}
	}

	for i, s := range c.Sources {
		if s.GroupID == 0 {
			continue
		}
		if !seenGroup[s.GroupID] {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("sources[%d].group_id", i), Message: "references undefined group"})
		}
	}

	if len(c.ControlSockets) == 0 {
		errs = append(errs, ValidationError{Field: "control_sockets", Message: "at least one control socket is required"})
	}
	for i, s := range c.ControlSockets {
		if s.Address == "" {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("control_sockets[%d].address", i), Message: "required"})
		}
	}

	if c.KernelFeeder.Enabled && c.KernelFeeder.LowWatermarkBits <= 0 {
		errs = append(errs, ValidationError{Field: "kernel_feeder.low_watermark_bits", Message: "must be positive when enabled"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
