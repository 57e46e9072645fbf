// Package msp implements the Multi-Wii Serial Protocol framing core.
package msp

// MSP is a binary, half-duplex request/response protocol spoken by
// flight controllers over a serial link. A v1 frame is
//
//	'$' 'M' dir len cmd payload[0..len] checksum
//
// where dir is '<' for requests, '>' for responses and '!' for rejected
// requests, and checksum is the exclusive-or of len, cmd and the payload
// bytes. A v2 frame replaces 'M' with 'X' and carries a flag byte plus
// 16-bit little-endian function and length fields, guarded by CRC-8/DVB-S2.
//
// The wire carries no request identifier, so responses are correlated to
// requests purely by arrival order. The Dispatcher therefore keeps exactly
// one request in flight at a time; this is a protocol limitation, not a
// tunable.
//
// This package frames, checksums and routes raw bytes. It does not
// interpret payloads and does not define which command codes mean what.
