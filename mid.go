package ipccom

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// MID is a Marshall Identifier: the stable, process-wide address of a proxy
// or a stub. It is a 128-bit compound value on the wire (four uint32 words),
// even though only three fields carry meaning; the fourth word is reserved
// so the header has a fixed, alignment-friendly size.
//
// Index locates the marshall object in the process-local dense vector kept
// by Control. Control is a random, non-zero discriminator that lets a
// receiver detect a stale or forged identifier: an inbound frame naming an
// index whose live object's Control does not match is rejected as an
// integrity failure rather than silently dispatched to whatever now
// occupies that slot.
type MID struct {
	ProcessID uint32
	Index     uint32
	Control   uint32
	Reserved  uint32
}

// IsEmpty reports whether this is the sentinel empty identifier (Control ==
// 0), used on the wire to mean "the object bound to the channel's initial
// marshall object".
func (m MID) IsEmpty() bool {
	return m.Control == 0
}

func (m MID) String() string {
	if m.IsEmpty() {
		return "MID{empty}"
	}
	return fmt.Sprintf("MID{pid:%d idx:%d ctrl:%08x}", m.ProcessID, m.Index, m.Control)
}

// EncodeTo writes the MID as four uint32 words in the given byte order.
func (m MID) EncodeTo(buf []byte, order binary.ByteOrder) {
	order.PutUint32(buf[0:4], m.ProcessID)
	order.PutUint32(buf[4:8], m.Index)
	order.PutUint32(buf[8:12], m.Control)
	order.PutUint32(buf[12:16], m.Reserved)
}

// DecodeMID reads a MID encoded by EncodeTo.
func DecodeMID(buf []byte, order binary.ByteOrder) MID {
	return MID{
		ProcessID: order.Uint32(buf[0:4]),
		Index:     order.Uint32(buf[4:8]),
		Control:   order.Uint32(buf[8:12]),
		Reserved:  order.Uint32(buf[12:16]),
	}
}

// MIDWireSize is the encoded size, in bytes, of a MID.
const MIDWireSize = 16

// CID is a Connection Identifier: it locates a ChannelConnector in Control's
// connection vector. Like MID, it carries a non-zero random Control value so
// a caller holding a stale CID (from a connection that has since been
// removed and whose slot was reused... except slots are never reused, only
// nulled, specifically to keep this from happening) can be told apart from
// one holding the current occupant.
type CID struct {
	Index   uint32
	Control uint32
}

func (c CID) String() string {
	return fmt.Sprintf("CID{idx:%d ctrl:%08x}", c.Index, c.Control)
}

// newControlValue returns a cryptographically random, non-zero uint32 for
// use as a MID or CID discriminator.
func newControlValue() uint32 {
	var b [4]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			panic(err) // crypto/rand failing is unrecoverable
		}
		v := binary.BigEndian.Uint32(b[:])
		if v != 0 {
			return v
		}
	}
}

// ProcessID is stable for the lifetime of this process and is stamped into
// every MID this process creates. It has no relation to the OS process ID;
// it only needs to make MIDs minted by different processes distinguishable
// from one another when logged or compared.
var ProcessID = newControlValue()
