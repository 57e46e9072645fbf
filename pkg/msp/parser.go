package msp

// Parser decodes an incoming byte stream into frames, one byte at a time.
// The zero value is ready to use. A Parser is not safe for concurrent use:
// it is owned by the single goroutine draining the transport.
type Parser struct {
	state   parseState
	frame   Frame
	length  int
	recvLen int
	sum     byte // running checksum, XOR for v1, CRC-8/DVB-S2 for v2
}

type parseState int

const (
	statePreamble  parseState = iota // hunting for '$'
	stateVersion                     // 'M' or 'X'
	stateDirection                   // '<', '>' or '!'
	stateLength                      // v1 payload length
	stateCommand                     // v1 command byte
	stateV2Flag
	stateV2CmdLo
	stateV2CmdHi
	stateV2LenLo
	stateV2LenHi
	statePayload
	stateChecksum
)

// ParseResult is the outcome of feeding one byte to the parser.
type ParseResult struct {
	// Frame is non-nil when the byte completed a well-formed frame.
	Frame *Frame
	// Err is non-nil when the byte completed a frame whose checksum did
	// not match. The partial frame has been dropped and the parser has
	// already resynchronized; the error is informational only.
	Err error
}

// Reset drops any partial frame and returns to hunting for a preamble.
func (p *Parser) Reset() {
	p.state = statePreamble
	p.frame = Frame{}
	p.length, p.recvLen, p.sum = 0, 0, 0
}

// Parse consumes one byte.
func (p *Parser) Parse(b byte) (pr ParseResult) {
	switch p.state {
	case statePreamble:
		if b == preamble {
			p.frame = Frame{}
			p.length, p.recvLen, p.sum = 0, 0, 0
			p.state = stateVersion
		}
	case stateVersion:
		switch Version(b) {
		case V1, V2:
			p.frame.Version = Version(b)
			p.state = stateDirection
		default:
			// Not a header after all. Re-examine this byte as a
			// possible new preamble so a '$' here is not lost.
			p.state = statePreamble
			return p.Parse(b)
		}
	case stateDirection:
		switch Direction(b) {
		case DirRequest, DirResponse, DirError:
			p.frame.Dir = Direction(b)
			if p.frame.Version == V2 {
				p.state = stateV2Flag
			} else {
				p.state = stateLength
			}
		default:
			p.state = statePreamble
		}
	case stateLength:
		p.length = int(b)
		p.sum = b
		p.state = stateCommand
	case stateCommand:
		p.frame.Cmd = uint16(b)
		p.sum ^= b
		p.beginPayload()
	case stateV2Flag:
		p.frame.Flag = b
		p.crc(b)
		p.state = stateV2CmdLo
	case stateV2CmdLo:
		p.frame.Cmd = uint16(b)
		p.crc(b)
		p.state = stateV2CmdHi
	case stateV2CmdHi:
		p.frame.Cmd |= uint16(b) << 8
		p.crc(b)
		p.state = stateV2LenLo
	case stateV2LenLo:
		p.length = int(b)
		p.crc(b)
		p.state = stateV2LenHi
	case stateV2LenHi:
		p.length |= int(b) << 8
		p.crc(b)
		p.beginPayload()
	case statePayload:
		// The declared length is authoritative: payload bytes are taken
		// literally, a '$' here does not restart the parser.
		p.frame.Payload[p.recvLen] = b
		p.recvLen++
		if p.frame.Version == V2 {
			p.crc(b)
		} else {
			p.sum ^= b
		}
		if p.recvLen >= p.length {
			p.state = stateChecksum
		}
	case stateChecksum:
		if b != p.sum {
			pr.Err = &ChecksumError{Cmd: p.frame.Cmd, Want: p.sum, Got: b}
			p.Reset()
			return
		}
		p.frame.Checksum = b
		f := p.frame
		pr.Frame = &f
		p.Reset()
	}
	return
}

func (p *Parser) beginPayload() {
	if p.length == 0 {
		p.state = stateChecksum
		return
	}
	p.frame.Payload = make([]byte, p.length)
	p.recvLen = 0
	p.state = statePayload
}

func (p *Parser) crc(b byte) {
	p.sum = ChecksumCRC8([]byte{b}, p.sum)
}
