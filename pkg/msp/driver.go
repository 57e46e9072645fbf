package msp

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/flightlink/msp.go/pkg/transport/serial"
)

// DefaultBaud is the rate flight controllers ship with.
const DefaultBaud = 115200

// Config describes how to open the underlying serial link.
type Config struct {
	Device string
	Baud   int // DefaultBaud when zero
	// ReadTimeout bounds a single transport read. Zero keeps reads
	// blocking until bytes arrive.
	ReadTimeout time.Duration
}

// Driver is the public entry point. It owns one transport, the reader
// loop feeding the decode state machine, and the dispatcher, for its
// whole lifetime.
type Driver struct {
	transport  io.ReadWriteCloser
	link       *Link
	dispatcher *Dispatcher
	cancel     context.CancelFunc
	done       chan error

	closeOnce sync.Once
	closeErr  error
}

// Open opens the serial device described by cfg and starts the driver.
func Open(cfg Config) (*Driver, error) {
	baud := cfg.Baud
	if baud == 0 {
		baud = DefaultBaud
	}
	port, err := serial.Open(serial.Config{
		Device:      cfg.Device,
		Baud:        baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, err
	}
	return New(port), nil
}

// New starts a driver over any byte transport, e.g. a websocket bridge.
// The driver owns the transport from here on and closes it on Close.
func New(transport io.ReadWriteCloser) *Driver {
	d := &Driver{
		transport: transport,
		link:      NewLink(transport),
		done:      make(chan error, 1),
	}
	d.dispatcher = NewDispatcher(d.link)
	var ctx context.Context
	ctx, d.cancel = context.WithCancel(context.Background())
	go func() {
		d.done <- d.link.Run(ctx)
	}()
	return d
}

// Send issues a v1 command and waits up to timeout for the response frame.
func (d *Driver) Send(cmd byte, payload []byte, timeout time.Duration) (*Frame, error) {
	return d.SendContext(context.Background(), cmd, payload, timeout)
}

// SendContext is Send with a caller context that also bounds the wait for
// the wire turn behind other requests.
func (d *Driver) SendContext(ctx context.Context, cmd byte, payload []byte, timeout time.Duration) (*Frame, error) {
	f := &Frame{Version: V1, Dir: DirRequest, Cmd: uint16(cmd), Payload: payload}
	return d.dispatcher.Send(ctx, f, timeout)
}

// SendV2 issues a v2 function call with a 16-bit function code and a
// payload of up to 64KiB.
func (d *Driver) SendV2(flag byte, fn uint16, payload []byte, timeout time.Duration) (*Frame, error) {
	return d.SendV2Context(context.Background(), flag, fn, payload, timeout)
}

// SendV2Context is SendV2 with a caller context.
func (d *Driver) SendV2Context(ctx context.Context, flag byte, fn uint16, payload []byte, timeout time.Duration) (*Frame, error) {
	f := &Frame{Version: V2, Dir: DirRequest, Cmd: fn, Flag: flag, Payload: payload}
	return d.dispatcher.Send(ctx, f, timeout)
}

// Stats returns the link counters.
func (d *Driver) Stats() LinkStats {
	return d.link.Stats()
}

// Unsolicited reports how many response frames arrived with no request
// outstanding.
func (d *Driver) Unsolicited() uint64 {
	return d.dispatcher.Unsolicited()
}

// Close stops the reader loop, fails pending requests with ErrShutdown and
// releases the transport. Safe to call more than once.
func (d *Driver) Close() error {
	d.closeOnce.Do(func() {
		d.cancel()
		d.dispatcher.Close()
		// Closing the transport unblocks a reader stuck in Read.
		d.closeErr = d.transport.Close()
		<-d.done
	})
	return d.closeErr
}
