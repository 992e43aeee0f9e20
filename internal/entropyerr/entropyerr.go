// Package entropyerr defines the daemon's typed error kinds: DeviceError,
// PoolError, ProtocolError, ResourceError, ConfigError, and SystemError.
// Each wraps an underlying cause and is distinguished at call sites with
// errors.As.
package entropyerr

import (
	"errors"
	"fmt"
)

// Kind discriminates the daemon's error categories.
type Kind int

const (
	// KindDevice is a USB/HWRNG fault.
	KindDevice Kind = iota
	// KindPool is a pool or group invariant violation.
	KindPool
	// KindProtocol is a malformed control-socket request.
	KindProtocol
	// KindResource is a mutex/thread/file-descriptor creation failure.
	KindResource
	// KindConfig is an invalid option at startup.
	KindConfig
	// KindSystem is an underlying OS call failure.
	KindSystem
)

func (k Kind) String() string {
	switch k {
	case KindDevice:
		return "DeviceError"
	case KindPool:
		return "PoolError"
	case KindProtocol:
		return "ProtocolError"
	case KindResource:
		return "ResourceError"
	case KindConfig:
		return "ConfigError"
	case KindSystem:
		return "SystemError"
	default:
		return "UnknownError"
	}
}

// Error is a typed, wrapped daemon error.
type Error struct {
	Kind Kind
	Op   string // the operation that failed, e.g. "source.Run", "pool.AddEntropy"
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Device wraps err as a DeviceError.
func Device(op string, err error) error { return &Error{Kind: KindDevice, Op: op, Err: err} }

// Pool wraps err as a PoolError.
func Pool(op string, err error) error { return &Error{Kind: KindPool, Op: op, Err: err} }

// Protocol wraps err as a ProtocolError.
func Protocol(op string, err error) error { return &Error{Kind: KindProtocol, Op: op, Err: err} }

// Resource wraps err as a ResourceError.
func Resource(op string, err error) error { return &Error{Kind: KindResource, Op: op, Err: err} }

// Config wraps err as a ConfigError.
func Config(op string, err error) error { return &Error{Kind: KindConfig, Op: op, Err: err} }

// System wraps err as a SystemError.
func System(op string, err error) error { return &Error{Kind: KindSystem, Op: op, Err: err} }

// Is reports whether err is, or wraps, an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
