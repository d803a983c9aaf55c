package ipccom

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMIDIsEmpty(t *testing.T) {
	assert.True(t, MID{}.IsEmpty())
	assert.False(t, MID{ProcessID: 1, Index: 2, Control: 3}.IsEmpty())
}

func TestMIDEncodeDecodeRoundTrip(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		m := MID{ProcessID: 0xdeadbeef, Index: 7, Control: 0x1234abcd, Reserved: 0}
		buf := make([]byte, MIDWireSize)
		m.EncodeTo(buf, order)
		got := DecodeMID(buf, order)
		assert.Equal(t, m, got)
	}
}

func TestNewControlValueNeverZero(t *testing.T) {
	for i := 0; i < 1000; i++ {
		assert.NotZero(t, newControlValue())
	}
}

func TestCIDString(t *testing.T) {
	cid := CID{Index: 3, Control: 0xff}
	assert.Contains(t, cid.String(), "idx:3")
}
