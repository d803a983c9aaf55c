package ipccom

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressHeaderEncodeDecodeRoundTrip(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		h := AddressHeader{
			ProxyMID:  MID{ProcessID: 1, Index: 2, Control: 3},
			StubMID:   MID{ProcessID: 4, Index: 5, Control: 6},
			CallIndex: 0x0102030405060708,
			Interpret: InputData,
		}
		buf := h.Encode(order)
		require.Len(t, buf, addressHeaderSize)

		got, decodedOrder, err := DecodeAddressHeader(buf)
		require.NoError(t, err)
		assert.Equal(t, order, decodedOrder)
		assert.Equal(t, h, got)
	}
}

func TestDecodeAddressHeaderSelectsOrderFromLeadingByte(t *testing.T) {
	h := AddressHeader{CallIndex: 99, Interpret: OutputData}
	be := h.Encode(binary.BigEndian)
	_, order, err := DecodeAddressHeader(be)
	require.NoError(t, err)
	assert.Equal(t, binary.BigEndian, order)

	le := h.Encode(binary.LittleEndian)
	_, order, err = DecodeAddressHeader(le)
	require.NoError(t, err)
	assert.Equal(t, binary.LittleEndian, order)
}

func TestDecodeAddressHeaderRejectsShortBuffer(t *testing.T) {
	_, _, err := DecodeAddressHeader(make([]byte, addressHeaderSize-1))
	assert.Error(t, err)
}

func TestDecodeAddressHeaderRejectsUnknownEndiannessByte(t *testing.T) {
	buf := make([]byte, addressHeaderSize)
	buf[0] = 0x7f
	_, _, err := DecodeAddressHeader(buf)
	assert.Error(t, err)
}

func TestInterpretationString(t *testing.T) {
	assert.Equal(t, "input_data", InputData.String())
	assert.Equal(t, "output_data", OutputData.String())
}
