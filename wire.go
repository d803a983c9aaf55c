package ipccom

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Interpretation tags an address header as carrying an invocation or a
// response.
type Interpretation uint8

const (
	// InputData marks a frame as an outbound invocation.
	InputData Interpretation = 0
	// OutputData marks a frame as a response to a previous invocation.
	OutputData Interpretation = 1
)

func (i Interpretation) String() string {
	if i == OutputData {
		return "output_data"
	}
	return "input_data"
}

// ProtocolVersion is the address header version this package encodes and
// expects to decode. A peer encoding a different version is still decoded
// (the header format has not changed across any version to date); the field
// exists so a future incompatible change has somewhere to signal itself.
const ProtocolVersion uint32 = 1

const (
	littleEndianByte = 0
	bigEndianByte    = 1
)

// AddressHeader is the wire struct prepended to every frame.
type AddressHeader struct {
	ProxyMID  MID
	StubMID   MID
	CallIndex uint64
	Interpret Interpretation
}

// addressHeaderSize is the encoded size in bytes: 1 (endianness) + 4
// (version) + 16 (proxyMID) + 16 (stubMID) + 8 (callIndex) + 1 (interpret).
const addressHeaderSize = 1 + 4 + MIDWireSize + MIDWireSize + 8 + 1

// Encode serializes the header as a single buffer. order selects the wire
// byte order for every multi-byte field after the leading endianness byte.
func (h AddressHeader) Encode(order binary.ByteOrder) []byte {
	buf := make([]byte, addressHeaderSize)
	if order == binary.BigEndian {
		buf[0] = bigEndianByte
	} else {
		buf[0] = littleEndianByte
	}
	off := 1
	order.PutUint32(buf[off:off+4], ProtocolVersion)
	off += 4
	h.ProxyMID.EncodeTo(buf[off:off+MIDWireSize], order)
	off += MIDWireSize
	h.StubMID.EncodeTo(buf[off:off+MIDWireSize], order)
	off += MIDWireSize
	order.PutUint64(buf[off:off+8], h.CallIndex)
	off += 8
	buf[off] = byte(h.Interpret)
	return buf
}

// DecodeAddressHeader parses the leading buffer of a frame. The first byte
// selects the byte order used to decode everything after it, so a header
// encoded by a big-endian sender is correctly read by a little-endian
// receiver and vice versa.
func DecodeAddressHeader(buf []byte) (AddressHeader, binary.ByteOrder, error) {
	if len(buf) < addressHeaderSize {
		return AddressHeader{}, nil, errors.Errorf("ipccom: address header too short: %d bytes", len(buf))
	}
	var order binary.ByteOrder
	switch buf[0] {
	case littleEndianByte:
		order = binary.LittleEndian
	case bigEndianByte:
		order = binary.BigEndian
	default:
		return AddressHeader{}, nil, errors.Errorf("ipccom: unknown endianness byte %d", buf[0])
	}
	off := 1
	// ProtocolVersion is decoded but, per ProtocolVersion's doc comment,
	// not currently used to reject frames.
	_ = order.Uint32(buf[off : off+4])
	off += 4
	proxyMID := DecodeMID(buf[off:off+MIDWireSize], order)
	off += MIDWireSize
	stubMID := DecodeMID(buf[off:off+MIDWireSize], order)
	off += MIDWireSize
	callIndex := order.Uint64(buf[off : off+8])
	off += 8
	interpret := Interpretation(buf[off])

	return AddressHeader{
		ProxyMID:  proxyMID,
		StubMID:   stubMID,
		CallIndex: callIndex,
		Interpret: interpret,
	}, order, nil
}
