// Package ws connects to WebSocket MSP bridges as byte transports.
package ws

import (
	"io"

	"golang.org/x/net/websocket"
)

// Dial connects to a WebSocket MSP bridge. origin may be empty.
func Dial(url, origin string) (io.ReadWriteCloser, error) {
	if origin == "" {
		origin = "http://localhost/"
	}
	conn, err := websocket.Dial(url, "", origin)
	if err != nil {
		return nil, err
	}
	conn.PayloadType = websocket.BinaryFrame
	return conn, nil
}
