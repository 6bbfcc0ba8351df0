package wire

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pumpfun-relay/internal/extract"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	records := []*extract.CreateRecord{
		{
			Signature:      "5VERYLongBase58SignatureString11111",
			MintAddress:    "AaaaBbbbCcccDdddpump",
			CreatorAddress: "CreatorAddr",
			Slot:           42,
			IsCreateV2:     false,
		},
		{
			Signature:      "sig",
			MintAddress:    "mint",
			CreatorAddress: "creator",
			Slot:           18446744073709551615,
			IsCreateV2:     true,
		},
	}

	for _, rec := range records {
		got, err := DecodeRecord(EncodeRecord(rec))
		require.NoError(t, err)
		assert.Equal(t, rec, got)
	}
}

func TestEncodeRecord_ByteLayout(t *testing.T) {
	rec := &extract.CreateRecord{
		Signature:      "ab",
		MintAddress:    "c",
		CreatorAddress: "de",
		Slot:           0x0102030405060708,
		IsCreateV2:     true,
	}

	want := []byte{
		2, 0, 0, 0, 0, 0, 0, 0, 'a', 'b', // signature
		1, 0, 0, 0, 0, 0, 0, 0, 'c', // mint_address
		2, 0, 0, 0, 0, 0, 0, 0, 'd', 'e', // creator_address
		8, 7, 6, 5, 4, 3, 2, 1, // slot, little-endian
		1, // is_create_v2
	}
	assert.Equal(t, want, EncodeRecord(rec))
}

func TestWriteFrame_LengthPrefix(t *testing.T) {
	rec := &extract.CreateRecord{
		Signature:      "sig",
		MintAddress:    "mint",
		CreatorAddress: "creator",
		Slot:           1,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, rec))

	frame := buf.Bytes()
	payloadLen := binary.LittleEndian.Uint32(frame[:4])
	assert.Equal(t, len(frame)-4, int(payloadLen))

	got, err := DecodeRecord(frame[4:])
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestReadFrame_RoundTrip(t *testing.T) {
	rec := &extract.CreateRecord{
		Signature:      "sig",
		MintAddress:    "Dpump",
		CreatorAddress: "creator",
		Slot:           99,
		IsCreateV2:     true,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, rec))
	require.NoError(t, WriteFrame(&buf, rec))

	for i := 0; i < 2; i++ {
		got, err := ReadFrame(&buf)
		require.NoError(t, err)
		assert.Equal(t, rec, got)
	}
}

func TestReadFrame_RejectsOversizedLength(t *testing.T) {
	// A length prefix far beyond any real record must fail before any
	// allocation, not attempt a multi-gigabyte read.
	frame := []byte{0xFF, 0xFF, 0xFF, 0xFF}

	_, err := ReadFrame(bytes.NewReader(frame))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds limit")
}

func TestDecodeRecord_Truncated(t *testing.T) {
	payload := EncodeRecord(&extract.CreateRecord{
		Signature:      "sig",
		MintAddress:    "mint",
		CreatorAddress: "creator",
		Slot:           1,
	})

	for cut := 1; cut <= len(payload); cut++ {
		_, err := DecodeRecord(payload[:len(payload)-cut])
		assert.Error(t, err, "truncating %d bytes should fail", cut)
	}
}

func TestDecodeRecord_RejectsTrailingBytes(t *testing.T) {
	payload := EncodeRecord(&extract.CreateRecord{
		Signature:      "sig",
		MintAddress:    "mint",
		CreatorAddress: "creator",
		Slot:           1,
	})

	_, err := DecodeRecord(append(payload, 0xFF))
	assert.Error(t, err)
}

func TestDecodeRecord_RejectsInvalidBooleanByte(t *testing.T) {
	payload := EncodeRecord(&extract.CreateRecord{
		Signature:      "sig",
		MintAddress:    "mint",
		CreatorAddress: "creator",
		Slot:           1,
	})
	payload[len(payload)-1] = 2

	_, err := DecodeRecord(payload)
	assert.Error(t, err)
}
