package msp

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"
)

// FrameHandler is called when a complete frame is received.
type FrameHandler interface {
	HandleFrame(context.Context, *Frame)
}

// HandleFrameFunc is the func form of FrameHandler.
type HandleFrameFunc func(context.Context, *Frame)

// HandleFrame implements FrameHandler.
func (f HandleFrameFunc) HandleFrame(ctx context.Context, frame *Frame) {
	f(ctx, frame)
}

// LinkStats is a snapshot of a link's counters.
type LinkStats struct {
	FramesIn       uint64
	FramesOut      uint64
	ChecksumErrors uint64
}

// Link sends and receives frames over a byte transport. Writes are
// serialized so concurrent senders never interleave bytes on the wire.
// The receive-side parser is owned by the goroutine running Run and is
// never touched by senders.
type Link struct {
	ReadWriter io.ReadWriter
	Handler    FrameHandler

	writeLock sync.Mutex
	parser    Parser

	framesIn       uint64
	framesOut      uint64
	checksumErrors uint64
}

// NewLink creates a Link over rw.
func NewLink(rw io.ReadWriter) *Link {
	return &Link{ReadWriter: rw}
}

// Stats returns a snapshot of the link counters.
func (l *Link) Stats() LinkStats {
	return LinkStats{
		FramesIn:       atomic.LoadUint64(&l.framesIn),
		FramesOut:      atomic.LoadUint64(&l.framesOut),
		ChecksumErrors: atomic.LoadUint64(&l.checksumErrors),
	}
}

// Send encodes and writes one frame.
func (l *Link) Send(f *Frame) error {
	b, err := f.Bytes()
	if err != nil {
		return err
	}
	l.writeLock.Lock()
	_, err = l.ReadWriter.Write(b)
	l.writeLock.Unlock()
	if err != nil {
		return fmt.Errorf("link write: %w", err)
	}
	atomic.AddUint64(&l.framesOut, 1)
	if glog.V(4) {
		glog.Infof("SND cmd=%d len=%d", f.Cmd, len(f.Payload))
	}
	return nil
}

// Run drains the transport until ctx is canceled or the transport fails.
// The read goroutine may stay blocked in Read after cancellation; closing
// the transport unblocks it.
func (l *Link) Run(ctx context.Context) error {
	chunkCh, errCh := make(chan []byte), make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go l.readLoop(subCtx, chunkCh, errCh)
	for {
		select {
		case chunk := <-chunkCh:
			for _, b := range chunk {
				l.apply(ctx, l.parser.Parse(b))
			}
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *Link) readLoop(ctx context.Context, chunkCh chan []byte, errCh chan error) {
	for {
		buf := make([]byte, 256)
		n, err := l.ReadWriter.Read(buf)
		if n > 0 {
			select {
			case chunkCh <- buf[:n]:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			errCh <- fmt.Errorf("link read: %w", err)
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (l *Link) apply(ctx context.Context, pr ParseResult) {
	if pr.Err != nil {
		atomic.AddUint64(&l.checksumErrors, 1)
		glog.Warningf("dropped frame: %v", pr.Err)
		return
	}
	if pr.Frame == nil {
		return
	}
	atomic.AddUint64(&l.framesIn, 1)
	if glog.V(4) {
		glog.Infof("RCV cmd=%d len=%d dir=%c", pr.Frame.Cmd, len(pr.Frame.Payload), pr.Frame.Dir)
	}
	if h := l.Handler; h != nil {
		h.HandleFrame(ctx, pr.Frame)
	}
}
