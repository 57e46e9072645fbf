package msp

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
)

// Dispatcher mediates concurrent senders over one half-duplex link.
// The wire carries no request identifier, so responses are correlated by
// arrival order: exactly one request is on the wire at a time and the next
// response frame decoded is taken as its answer.
type Dispatcher struct {
	link *Link

	// turn is a capacity-1 semaphore; holding a slot is holding the wire.
	turn      chan struct{}
	lock      sync.Mutex
	pending   *pendingRequest
	closed    chan struct{}
	closeOnce sync.Once

	unsolicited uint64
}

type pendingRequest struct {
	cmd      uint16
	issuedAt time.Time
	resultCh chan result
}

type result struct {
	frame *Frame
	err   error
}

// NewDispatcher creates a Dispatcher over link and installs itself as the
// link's frame handler.
func NewDispatcher(link *Link) *Dispatcher {
	d := &Dispatcher{
		link:   link,
		turn:   make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	link.Handler = d
	return d
}

// Send writes one request frame and waits for its response. Waiting in
// line for the wire is bounded only by ctx; timeout bounds the response
// wait after the request is written.
func (d *Dispatcher) Send(ctx context.Context, f *Frame, timeout time.Duration) (*Frame, error) {
	// Shutdown wins over a free turn: once closed, no request may reach
	// the wire even when nothing else is queued.
	if d.isClosed() {
		return nil, ErrShutdown
	}
	select {
	case d.turn <- struct{}{}:
	case <-d.closed:
		return nil, ErrShutdown
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-d.turn }()
	// Close may have raced the acquisition above; re-check before writing.
	if d.isClosed() {
		return nil, ErrShutdown
	}

	p := &pendingRequest{cmd: f.Cmd, issuedAt: time.Now(), resultCh: make(chan result, 1)}
	d.lock.Lock()
	d.pending = p
	d.lock.Unlock()

	if err := d.link.Send(f); err != nil {
		d.retire(p)
		return nil, err
	}

	select {
	case r := <-p.resultCh:
		return r.frame, r.err
	case <-time.After(timeout):
		d.retire(p)
		return nil, ErrTimeout
	case <-d.closed:
		d.retire(p)
		return nil, ErrShutdown
	case <-ctx.Done():
		d.retire(p)
		return nil, ctx.Err()
	}
}

func (d *Dispatcher) isClosed() bool {
	select {
	case <-d.closed:
		return true
	default:
		return false
	}
}

func (d *Dispatcher) retire(p *pendingRequest) {
	d.lock.Lock()
	if d.pending == p {
		d.pending = nil
	}
	d.lock.Unlock()
}

// HandleFrame implements FrameHandler for the link's reader loop.
func (d *Dispatcher) HandleFrame(ctx context.Context, f *Frame) {
	if f.Dir == DirRequest {
		// Echo of our own traffic or a misbehaving peer, not a response.
		glog.Warningf("ignoring request-direction frame cmd=%d", f.Cmd)
		return
	}
	d.lock.Lock()
	p := d.pending
	d.pending = nil
	d.lock.Unlock()
	if p == nil {
		atomic.AddUint64(&d.unsolicited, 1)
		glog.Warningf("dropped unsolicited frame cmd=%d len=%d", f.Cmd, len(f.Payload))
		return
	}
	if f.Dir == DirError {
		p.resultCh <- result{err: &NackError{Cmd: f.Cmd}}
		return
	}
	p.resultCh <- result{frame: f}
}

// Unsolicited reports how many response frames arrived with no request
// outstanding.
func (d *Dispatcher) Unsolicited() uint64 {
	return atomic.LoadUint64(&d.unsolicited)
}

// Close fails the in-flight request and every queued sender with
// ErrShutdown. Safe to call more than once.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.closed)
	})
}
