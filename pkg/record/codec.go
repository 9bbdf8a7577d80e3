package record

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/tollgated/tollgate/pkg/identity"
)

// LayoutVersion is the version tag of the record layout below. The
// verifier refuses payloads with any other version instead of guessing
// at offsets.
const LayoutVersion = 1

// Record kind discriminators.
const (
	KindContent uint8 = 0x01
	KindReceipt uint8 = 0x02
)

// headerSize is version(1) + kind(1) + controller(32).
const headerSize = 1 + 1 + 32

// Layout, all integers big-endian:
//
//	header:  version(1) | kind(1) | controller(32)
//	content: owner(32) | scheme(1) | keyBlobLen(2) | keyBlob | price(8) | revision(8)
//	receipt: revision(8)

// Header is the decoded fixed-width record header.
type Header struct {
	Version    uint8
	Kind       uint8
	Controller Controller
}

// ParseHeader decodes the fixed-width header of a stored record
// without touching the body. It is what the verifier uses for the
// subsystem ownership check before committing to a full decode.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < headerSize {
		return Header{}, errors.New("record payload too short for header")
	}
	h := Header{
		Version: data[0],
		Kind:    data[1],
	}
	copy(h.Controller[:], data[2:headerSize])
	if h.Version != LayoutVersion {
		return Header{}, fmt.Errorf(
			"unsupported record layout version: %d", h.Version,
		)
	}
	return h, nil
}

func appendHeader(buf []byte, kind uint8, controller Controller) []byte {
	buf = append(buf, LayoutVersion, kind)
	buf = append(buf, controller[:]...)
	return buf
}

// MarshalContent serializes a ContentRecord into its canonical wire
// form.
func MarshalContent(rec *ContentRecord) ([]byte, error) {
	if rec == nil {
		return nil, errors.New("content record must not be nil")
	}
	if len(rec.KeyBlob) > MaxKeyBlobSize {
		return nil, fmt.Errorf(
			"key blob too large: %d bytes, maximum %d",
			len(rec.KeyBlob), MaxKeyBlobSize,
		)
	}

	size := headerSize + identity.Size + 1 + 2 + len(rec.KeyBlob) + 8 + 8
	buf := make([]byte, 0, size)

	buf = appendHeader(buf, KindContent, rec.Controller)
	buf = append(buf, rec.Owner[:]...)
	buf = append(buf, rec.Scheme)

	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(rec.KeyBlob)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, rec.KeyBlob...)

	var intBuf [8]byte
	binary.BigEndian.PutUint64(intBuf[:], rec.Price)
	buf = append(buf, intBuf[:]...)
	binary.BigEndian.PutUint64(intBuf[:], rec.Revision)
	buf = append(buf, intBuf[:]...)

	return buf, nil
}

// UnmarshalContent parses a canonical ContentRecord wire payload.
func UnmarshalContent(data []byte) (*ContentRecord, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	if h.Kind != KindContent {
		return nil, fmt.Errorf(
			"wrong record kind: expected %d, got %d",
			KindContent, h.Kind,
		)
	}

	offset := headerSize
	if len(data[offset:]) < identity.Size+1+2 {
		return nil, errors.New("content record payload too short")
	}

	rec := &ContentRecord{Controller: h.Controller}
	copy(rec.Owner[:], data[offset:offset+identity.Size])
	offset += identity.Size

	rec.Scheme = data[offset]
	offset++

	blobLen := int(binary.BigEndian.Uint16(data[offset : offset+2]))
	offset += 2
	if blobLen > MaxKeyBlobSize {
		return nil, fmt.Errorf(
			"key blob too large: %d bytes, maximum %d",
			blobLen, MaxKeyBlobSize,
		)
	}
	if len(data[offset:]) < blobLen+8+8 {
		return nil, errors.New("content record body too short")
	}
	rec.KeyBlob = make([]byte, blobLen)
	copy(rec.KeyBlob, data[offset:offset+blobLen])
	offset += blobLen

	rec.Price = binary.BigEndian.Uint64(data[offset : offset+8])
	offset += 8
	rec.Revision = binary.BigEndian.Uint64(data[offset : offset+8])
	offset += 8

	if offset != len(data) {
		return nil, errors.New("content record has trailing bytes")
	}
	return rec, nil
}

// MarshalReceipt serializes an AccessReceipt into its canonical wire
// form.
func MarshalReceipt(rcpt *AccessReceipt) ([]byte, error) {
	if rcpt == nil {
		return nil, errors.New("access receipt must not be nil")
	}

	buf := make([]byte, 0, headerSize+8)
	buf = appendHeader(buf, KindReceipt, rcpt.Controller)

	var intBuf [8]byte
	binary.BigEndian.PutUint64(intBuf[:], rcpt.Revision)
	buf = append(buf, intBuf[:]...)

	return buf, nil
}

// UnmarshalReceipt parses a canonical AccessReceipt wire payload.
func UnmarshalReceipt(data []byte) (*AccessReceipt, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	if h.Kind != KindReceipt {
		return nil, fmt.Errorf(
			"wrong record kind: expected %d, got %d",
			KindReceipt, h.Kind,
		)
	}

	if len(data) != headerSize+8 {
		return nil, fmt.Errorf(
			"invalid receipt length: expected %d, got %d",
			headerSize+8, len(data),
		)
	}

	return &AccessReceipt{
		Controller: h.Controller,
		Revision:   binary.BigEndian.Uint64(data[headerSize:]),
	}, nil
}
