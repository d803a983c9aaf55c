// Package wsloop is a websocket Endpoint/TransportFactory implementation for
// package ipccom. The client side keeps a dial/reconnect loop (exponential
// backoff, connectivity-state driven reset) running until it is explicitly
// disconnected or its backoff strategy stops.
package wsloop

import (
	"encoding/binary"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/eclipse-openvehicle-api/openvehicle-api-sub000"
)

// encodeFrame packs a Buffers value into a single websocket binary message:
// a uint32 buffer count, then for each buffer a uint32 length and its bytes.
// ipccom.Buffers has no framing of its own (it is just [][]byte), so any
// transport carrying it over a byte stream needs to invent one; this is the
// simplest one that preserves buffer boundaries.
func encodeFrame(buffers ipccom.Buffers) []byte {
	size := 4
	for _, b := range buffers {
		size += 4 + len(b)
	}
	out := make([]byte, size)
	off := 0
	binary.BigEndian.PutUint32(out[off:off+4], uint32(len(buffers)))
	off += 4
	for _, b := range buffers {
		binary.BigEndian.PutUint32(out[off:off+4], uint32(len(b)))
		off += 4
		copy(out[off:off+len(b)], b)
		off += len(b)
	}
	return out
}

// decodeFrame reverses encodeFrame.
func decodeFrame(raw []byte) (ipccom.Buffers, error) {
	if len(raw) < 4 {
		return nil, errors.New("wsloop: frame too short for buffer count")
	}
	count := binary.BigEndian.Uint32(raw[0:4])
	off := 4
	buffers := make(ipccom.Buffers, 0, count)
	for i := uint32(0); i < count; i++ {
		if off+4 > len(raw) {
			return nil, errors.New("wsloop: frame truncated at buffer length")
		}
		n := int(binary.BigEndian.Uint32(raw[off : off+4]))
		off += 4
		if off+n > len(raw) {
			return nil, errors.New("wsloop: frame truncated at buffer body")
		}
		buffers = append(buffers, raw[off:off+n])
		off += n
	}
	return buffers, nil
}

func writeFrame(conn *websocket.Conn, buffers ipccom.Buffers) error {
	return conn.WriteMessage(websocket.BinaryMessage, encodeFrame(buffers))
}
