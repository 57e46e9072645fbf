package msp

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// scriptedDevice echoes every request with a response built by respond,
// emulating a flight controller on the far end of a net.Pipe.
func scriptedDevice(conn net.Conn, respond func(req *Frame) *Frame) {
	var parser Parser
	buf := make([]byte, 64)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		for _, b := range buf[:n] {
			pr := parser.Parse(b)
			if pr.Frame == nil {
				continue
			}
			resp := respond(pr.Frame)
			if resp == nil {
				continue
			}
			rb, err := resp.Bytes()
			if err != nil {
				return
			}
			if _, err = conn.Write(rb); err != nil {
				return
			}
		}
	}
}

func TestDriverRoundTrip(t *testing.T) {
	client, device := net.Pipe()
	go scriptedDevice(device, func(req *Frame) *Frame {
		return &Frame{Version: req.Version, Dir: DirResponse, Cmd: req.Cmd, Flag: req.Flag, Payload: []byte{0xab, 0xcd}}
	})

	driver := New(client)
	defer driver.Close()

	f, err := driver.Send(108, nil, time.Second)
	require.NoError(t, err)
	require.Equal(t, uint16(108), f.Cmd)
	require.Equal(t, []byte{0xab, 0xcd}, f.Payload)

	f, err = driver.SendV2(0, 0x1234, []byte{1}, time.Second)
	require.NoError(t, err)
	require.Equal(t, V2, f.Version)
	require.Equal(t, uint16(0x1234), f.Cmd)

	stats := driver.Stats()
	require.Equal(t, uint64(2), stats.FramesOut)
	require.Equal(t, uint64(2), stats.FramesIn)
	require.Equal(t, uint64(0), stats.ChecksumErrors)
}

func TestDriverPayloadTooLarge(t *testing.T) {
	client, device := net.Pipe()
	go scriptedDevice(device, func(*Frame) *Frame { return nil })

	driver := New(client)
	defer driver.Close()

	_, err := driver.Send(1, make([]byte, 256), time.Second)
	require.Equal(t, ErrPayloadTooLarge, err)
	require.Equal(t, uint64(0), driver.Stats().FramesOut)
}

func TestDriverClose(t *testing.T) {
	client, device := net.Pipe()
	// Reads requests but never answers.
	go scriptedDevice(device, func(*Frame) *Frame { return nil })

	driver := New(client)

	pending := make(chan error, 1)
	go func() {
		_, err := driver.Send(108, nil, time.Minute)
		pending <- err
	}()
	time.Sleep(20 * time.Millisecond) // let the request hit the wire

	require.NoError(t, driver.Close())
	select {
	case err := <-pending:
		require.Equal(t, ErrShutdown, err)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("pending send did not fail on close")
	}

	// Close is idempotent and the driver stays closed.
	require.NoError(t, driver.Close())
	_, err := driver.Send(108, nil, time.Second)
	require.Equal(t, ErrShutdown, err)
}
