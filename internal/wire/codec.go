// Package wire implements the downstream binary format. Each record
// travels as one frame:
//
//	frame   := length (u32, little-endian) ‖ payload (length bytes)
//	payload := signature ‖ mint_address ‖ creator_address ‖ slot ‖ is_create_v2
//
// where each string is a u64 little-endian byte length followed by its
// UTF-8 bytes, the slot is a u64 little-endian, and the flag is one byte.
// The payload layout matches Rust bincode's default encoding of the same
// struct, so existing consumers of the feed keep working.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"pumpfun-relay/internal/extract"
)

// EncodeRecord serializes rec into a frame payload.
func EncodeRecord(rec *extract.CreateRecord) []byte {
	size := 8 + len(rec.Signature) +
		8 + len(rec.MintAddress) +
		8 + len(rec.CreatorAddress) +
		8 + 1

	buf := make([]byte, 0, size)
	buf = appendString(buf, rec.Signature)
	buf = appendString(buf, rec.MintAddress)
	buf = appendString(buf, rec.CreatorAddress)
	buf = binary.LittleEndian.AppendUint64(buf, rec.Slot)
	if rec.IsCreateV2 {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

// DecodeRecord parses a frame payload produced by EncodeRecord.
func DecodeRecord(payload []byte) (*extract.CreateRecord, error) {
	d := decoder{buf: payload}

	var rec extract.CreateRecord
	var err error
	if rec.Signature, err = d.readString(); err != nil {
		return nil, fmt.Errorf("signature: %w", err)
	}
	if rec.MintAddress, err = d.readString(); err != nil {
		return nil, fmt.Errorf("mint_address: %w", err)
	}
	if rec.CreatorAddress, err = d.readString(); err != nil {
		return nil, fmt.Errorf("creator_address: %w", err)
	}
	if rec.Slot, err = d.readUint64(); err != nil {
		return nil, fmt.Errorf("slot: %w", err)
	}
	flag, err := d.readByte()
	if err != nil {
		return nil, fmt.Errorf("is_create_v2: %w", err)
	}
	if flag > 1 {
		return nil, fmt.Errorf("is_create_v2: invalid boolean byte %#x", flag)
	}
	rec.IsCreateV2 = flag == 1

	if len(d.buf) != 0 {
		return nil, fmt.Errorf("payload has %d trailing bytes", len(d.buf))
	}
	return &rec, nil
}

// WriteFrame encodes rec and writes one length-prefixed frame to w.
func WriteFrame(w io.Writer, rec *extract.CreateRecord) error {
	payload := EncodeRecord(rec)
	if len(payload) > math.MaxUint32 {
		return fmt.Errorf("payload of %d bytes exceeds frame limit", len(payload))
	}

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("write frame length: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}

// maxFramePayload bounds the length prefix ReadFrame will honor. Real
// record payloads stay under two hundred bytes; anything near the limit
// means a corrupt or hostile stream, not a record.
const maxFramePayload = 1 << 20

// ReadFrame reads one frame from r and decodes its record. It exists for
// Go consumers of the feed and for tests; the relay itself never reads.
func ReadFrame(r io.Reader) (*extract.CreateRecord, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > maxFramePayload {
		return nil, fmt.Errorf("frame payload of %d bytes exceeds limit of %d", n, maxFramePayload)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", err)
	}
	return DecodeRecord(payload)
}

func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(s)))
	return append(buf, s...)
}

type decoder struct {
	buf []byte
}

func (d *decoder) readUint64() (uint64, error) {
	if len(d.buf) < 8 {
		return 0, io.ErrUnexpectedEOF
	}
	v := binary.LittleEndian.Uint64(d.buf[:8])
	d.buf = d.buf[8:]
	return v, nil
}

func (d *decoder) readByte() (byte, error) {
	if len(d.buf) < 1 {
		return 0, io.ErrUnexpectedEOF
	}
	b := d.buf[0]
	d.buf = d.buf[1:]
	return b, nil
}

func (d *decoder) readString() (string, error) {
	n, err := d.readUint64()
	if err != nil {
		return "", err
	}
	if n > uint64(len(d.buf)) {
		return "", io.ErrUnexpectedEOF
	}
	s := string(d.buf[:n])
	d.buf = d.buf[n:]
	return s, nil
}
