package msp

import (
	"errors"
	"fmt"
)

var (
	// ErrPayloadTooLarge indicates a payload that does not fit the
	// frame's length field. Rejected before any bytes hit the wire.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrCommandTooLarge indicates a command code beyond one byte on a
	// v1 frame. v2 frames carry 16-bit function codes.
	ErrCommandTooLarge = errors.New("command too large")
	// ErrTimeout indicates no response arrived within the caller's deadline.
	ErrTimeout = errors.New("response timeout")
	// ErrShutdown indicates the driver was closed while the request was
	// queued or in flight.
	ErrShutdown = errors.New("driver shut down")
)

// ChecksumError reports a received frame whose checksum did not match.
// It is recoverable: the frame is dropped and the parser resynchronizes.
type ChecksumError struct {
	Cmd  uint16
	Want byte
	Got  byte
}

// Error implements error.
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch on command %d: want %#02x, got %#02x", e.Cmd, e.Want, e.Got)
}

// NackError reports a '!' response: the device rejected the request.
type NackError struct {
	Cmd uint16
}

// Error implements error.
func (e *NackError) Error() string {
	return fmt.Sprintf("command %d rejected by device", e.Cmd)
}
