// Package serial opens local serial ports as MSP byte transports.
package serial

import (
	"io"
	"time"

	tarm "github.com/tarm/serial"
)

// Config describes a serial port.
type Config struct {
	Device string
	Baud   int
	// ReadTimeout bounds a single Read call. Zero keeps reads blocking;
	// the driver unblocks a pending read by closing the port.
	ReadTimeout time.Duration
}

// Open opens the port in raw 8N1 mode.
func Open(cfg Config) (io.ReadWriteCloser, error) {
	return tarm.OpenPort(&tarm.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
}
