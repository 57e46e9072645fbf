package msp

import (
	"encoding/binary"
	"io"
)

// Version selects the frame layout.
type Version byte

const (
	// V1 frames carry a one-byte command and a one-byte payload length.
	V1 Version = 'M'
	// V2 frames carry a flag byte plus 16-bit function and length fields.
	V2 Version = 'X'
)

// Direction is the third header byte of a frame.
type Direction byte

const (
	// DirRequest marks a frame sent to the flight controller.
	DirRequest Direction = '<'
	// DirResponse marks a frame sent by the flight controller.
	DirResponse Direction = '>'
	// DirError marks a response to a request the flight controller rejected.
	DirError Direction = '!'
)

const preamble byte = '$'

// MaxV1Payload is the largest payload a v1 frame can carry.
const MaxV1Payload = 255

// Frame is one complete MSP message.
type Frame struct {
	Version Version
	Dir     Direction
	Cmd     uint16 // at most 255 on V1 frames
	Flag    byte   // V2 only
	Payload []byte
	// Checksum is filled in by the parser on receive. Bytes always
	// recomputes it from the encoded content.
	Checksum byte
}

// version treats the zero value as V1.
func (f *Frame) version() Version {
	if f.Version == 0 {
		return V1
	}
	return f.Version
}

// dir treats the zero value as a request.
func (f *Frame) dir() Direction {
	if f.Dir == 0 {
		return DirRequest
	}
	return f.Dir
}

// Bytes encodes the frame for sending.
func (f *Frame) Bytes() ([]byte, error) {
	if f.version() == V2 {
		return f.encodeV2()
	}
	return f.encodeV1()
}

// WriteTo encodes the frame and writes it with a single Write call so the
// frame stays contiguous on the wire.
func (f *Frame) WriteTo(w io.Writer) (int, error) {
	b, err := f.Bytes()
	if err != nil {
		return 0, err
	}
	return w.Write(b)
}

func (f *Frame) encodeV1() ([]byte, error) {
	if len(f.Payload) > MaxV1Payload {
		return nil, ErrPayloadTooLarge
	}
	if f.Cmd > 0xff {
		return nil, ErrCommandTooLarge
	}
	b := make([]byte, len(f.Payload)+6)
	b[0], b[1], b[2] = preamble, byte(V1), byte(f.dir())
	b[3], b[4] = byte(len(f.Payload)), byte(f.Cmd)
	copy(b[5:], f.Payload)
	b[len(b)-1] = Checksum(b[3], b[4], f.Payload)
	return b, nil
}

func (f *Frame) encodeV2() ([]byte, error) {
	if len(f.Payload) > 0xffff {
		return nil, ErrPayloadTooLarge
	}
	b := make([]byte, len(f.Payload)+9)
	b[0], b[1], b[2] = preamble, byte(V2), byte(f.dir())
	b[3] = f.Flag
	binary.LittleEndian.PutUint16(b[4:], f.Cmd)
	binary.LittleEndian.PutUint16(b[6:], uint16(len(f.Payload)))
	copy(b[8:], f.Payload)
	b[len(b)-1] = ChecksumCRC8(b[3:len(b)-1], 0)
	return b, nil
}
