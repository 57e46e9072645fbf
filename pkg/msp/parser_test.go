package msp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func feedBytes(p *Parser, in []byte) (frames []*Frame, errs []error) {
	for _, b := range in {
		pr := p.Parse(b)
		if pr.Frame != nil {
			frames = append(frames, pr.Frame)
		}
		if pr.Err != nil {
			errs = append(errs, pr.Err)
		}
	}
	return
}

func encoded(t *testing.T, f Frame) []byte {
	b, err := f.Bytes()
	require.NoError(t, err)
	return b
}

func TestParser(t *testing.T) {
	identReq := Frame{Version: V1, Dir: DirRequest, Cmd: 108, Checksum: 0x6c}

	testCases := []struct {
		name    string
		in      [][]byte
		frames  []Frame
		errs    int
	}{
		{
			name:   "v1 round trip no payload",
			in:     [][]byte{encoded(t, Frame{Dir: DirRequest, Cmd: 108})},
			frames: []Frame{identReq},
		},
		{
			name: "v1 round trip with payload",
			in:   [][]byte{encoded(t, Frame{Dir: DirResponse, Cmd: 200, Payload: []byte{1, 2, 3}})},
			frames: []Frame{{
				Version: V1, Dir: DirResponse, Cmd: 200,
				Payload: []byte{1, 2, 3}, Checksum: 0xcb,
			}},
		},
		{
			name: "v2 round trip",
			in:   [][]byte{encoded(t, Frame{Version: V2, Dir: DirResponse, Cmd: 0x1234, Flag: 7, Payload: []byte{0xde, 0xad}})},
			frames: []Frame{{
				Version: V2, Dir: DirResponse, Cmd: 0x1234, Flag: 7,
				Payload: []byte{0xde, 0xad},
				Checksum: ChecksumCRC8([]byte{7, 0x34, 0x12, 0x02, 0x00, 0xde, 0xad}, 0),
			}},
		},
		{
			name:   "noise before preamble",
			in:     [][]byte{{0x00, 0xff, 'M', '<', 0x42}, encoded(t, Frame{Dir: DirRequest, Cmd: 108})},
			frames: []Frame{identReq},
		},
		{
			name: "resync after checksum mismatch",
			in: [][]byte{
				{'$', 'M', '<', 0x02, 0x01, 0xaa, 0xbb, 0x13}, // correct checksum is 0x12
				{'$', 'M', '<', 0x00, 0x05, 0x05},
			},
			frames: []Frame{{Version: V1, Dir: DirRequest, Cmd: 5, Checksum: 0x05}},
			errs:   1,
		},
		{
			name:   "preamble repeated before header",
			in:     [][]byte{{'$'}, encoded(t, Frame{Dir: DirRequest, Cmd: 108})},
			frames: []Frame{identReq},
		},
		{
			name:   "version mismatch re-examined",
			in:     [][]byte{{'$', 'Q'}, encoded(t, Frame{Dir: DirRequest, Cmd: 108})},
			frames: []Frame{identReq},
		},
		{
			name:   "direction mismatch resets",
			in:     [][]byte{{'$', 'M', 'Z'}, encoded(t, Frame{Dir: DirRequest, Cmd: 108})},
			frames: []Frame{identReq},
		},
		{
			name: "payload bytes taken literally",
			in:   [][]byte{encoded(t, Frame{Dir: DirResponse, Cmd: 1, Payload: []byte{'$', 'M', '<'}})},
			frames: []Frame{{
				Version: V1, Dir: DirResponse, Cmd: 1,
				Payload: []byte{'$', 'M', '<'},
				Checksum: Checksum(3, 1, []byte{'$', 'M', '<'}),
			}},
		},
		{
			name:   "nack response",
			in:     [][]byte{{'$', 'M', '!', 0x00, 0x05, 0x05}},
			frames: []Frame{{Version: V1, Dir: DirError, Cmd: 5, Checksum: 0x05}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var parser Parser
			var frames []*Frame
			var errs []error
			for _, chunk := range tc.in {
				f, e := feedBytes(&parser, chunk)
				frames = append(frames, f...)
				errs = append(errs, e...)
			}
			require.Lenf(t, frames, len(tc.frames), "frame count mismatch")
			for i, want := range tc.frames {
				require.Equalf(t, want, *frames[i], "frames[%d] mismatch", i)
			}
			require.Lenf(t, errs, tc.errs, "error count mismatch")
		})
	}
}

func TestParserChecksumError(t *testing.T) {
	var parser Parser
	frames, errs := feedBytes(&parser, []byte{'$', 'M', '>', 0x01, 0x64, 0xff, 0x00})
	require.Empty(t, frames)
	require.Len(t, errs, 1)
	cserr, ok := errs[0].(*ChecksumError)
	require.True(t, ok)
	require.Equal(t, uint16(0x64), cserr.Cmd)
	require.Equal(t, byte(0x01^0x64^0xff), cserr.Want)
	require.Equal(t, byte(0x00), cserr.Got)
}

// Flipping any single byte of an encoded frame must never yield a frame
// with the original content, and the parser must resynchronize on the
// next clean frame.
func TestParserSingleByteCorruption(t *testing.T) {
	original := Frame{Dir: DirResponse, Cmd: 200, Payload: []byte{1, 2, 3}}
	wire := encoded(t, original)
	clean := encoded(t, Frame{Dir: DirRequest, Cmd: 108})

	for i := range wire {
		var parser Parser
		flipped := make([]byte, len(wire))
		copy(flipped, wire)
		flipped[i] ^= 0x20

		frames, _ := feedBytes(&parser, flipped)
		for _, f := range frames {
			require.NotEqualf(t, original.Payload, f.Payload, "byte %d: corrupted frame accepted", i)
		}

		// Whatever state the corruption left behind, a resync path must
		// exist. Noise drains any pending payload wait first.
		noise := make([]byte, 300)
		feedBytes(&parser, noise)
		frames, _ = feedBytes(&parser, clean)
		require.NotEmptyf(t, frames, "byte %d: parser did not resynchronize", i)
	}
}

func TestParserReset(t *testing.T) {
	var parser Parser
	feedBytes(&parser, []byte{'$', 'M', '<', 0x05, 0x01}) // mid-payload
	parser.Reset()
	frames, errs := feedBytes(&parser, encoded(t, Frame{Dir: DirRequest, Cmd: 108}))
	require.Len(t, frames, 1)
	require.Empty(t, errs)
	require.Equal(t, uint16(108), frames[0].Cmd)
}
