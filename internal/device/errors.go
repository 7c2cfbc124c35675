package device

import "fmt"

// Kind classifies a device error.
type Kind int

const (
	// Comm covers transport faults: dial, write, read, timeout.
	Comm Kind = iota
	// Protocol covers replies that arrived but failed validation.
	Protocol
	// InvalidParameter covers bad arguments rejected before any I/O.
	InvalidParameter
)

func (k Kind) String() string {
	switch k {
	case Comm:
		return "comm"
	case Protocol:
		return "protocol"
	case InvalidParameter:
		return "invalid parameter"
	}
	return "unknown"
}

// Error is any failure attributed to a device.
type Error struct {
	Device string
	Kind   Kind
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("device %s: %s error: %v", e.Device, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds a device error without a wrapped cause.
func Errorf(deviceName string, kind Kind, format string, args ...any) *Error {
	return &Error{Device: deviceName, Kind: kind, Err: fmt.Errorf(format, args...)}
}
