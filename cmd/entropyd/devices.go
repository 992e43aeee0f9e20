package main

import (
	"fmt"
	"os"

	"entropyd/internal/config"
	"entropyd/internal/entropyerr"
	"entropyd/internal/source"
	"entropyd/internal/source/filedevice"
	"entropyd/internal/source/tpmsource"
)

// tpmCandidates lists device paths probed when a source configures tpm =
// true without an explicit device_path.
var tpmCandidates = []string{"/dev/tpmrm0", "/dev/tpm0"}

// newDevice builds the ByteSource a SourceConfig describes: a TPM2.0
// GetRandom-backed source, or a generic character-device/named-pipe
// source otherwise.
func newDevice(s config.SourceConfig) (source.ByteSource, error) {
	if s.TPM {
		path := s.DevicePath
		if path == "" {
			path = autoDetectTPM()
		}
		if path == "" {
			return nil, entropyerr.Device("newDevice", fmt.Errorf("source %s: tpm requested but no TPM device found", s.SerialID))
		}
		dev, err := tpmsource.New(path, s.SerialID, s.BitrateBPS)
		if err != nil {
			return nil, entropyerr.Device("newDevice", err)
		}
		return dev, nil
	}

	if s.DevicePath == "" {
		return nil, entropyerr.Config("newDevice", fmt.Errorf("source %s: device_path is required for non-tpm sources", s.SerialID))
	}
	return filedevice.New(s.DevicePath, s.SerialID, s.SerialID, s.BitrateBPS), nil
}

// autoDetectTPM returns the first accessible candidate TPM device path, or
// "" if none is present.
func autoDetectTPM() string {
	for _, candidate := range tpmCandidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// sourceConfig translates a config.SourceConfig into the internal
// source.Config the worker loop understands.
func sourceConfig(s config.SourceConfig) source.Config {
	return source.Config{
		SerialID:        s.SerialID,
		BitrateBPS:      s.BitrateBPS,
		ChunkSize:       s.ChunkSize,
		FoldK:           s.FoldK,
		GroupID:         s.GroupID,
		GroupBufferSize: s.GroupBufferSize,
		IdleSleepInitMs: s.IdleSleepInitMs,
		IdleSleepMaxMs:  s.IdleSleepMaxMs,
		SuspendAfterMs:  s.SuspendAfterMs,
		SkipQA:          s.SkipQA,
	}
}
