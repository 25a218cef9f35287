// Package exiftest builds small EXIF blocks and JPEG files carrying them,
// for tests that need camera metadata without checking in sample photos.
package exiftest

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/jpeg"
	"testing"
)

// Block returns a TIFF-structured EXIF block whose IFD0 holds a Model tag
// and an Orientation tag, in the given byte order.
func Block(order binary.ByteOrder, model string, orientation uint16) []byte {
	const (
		entries   = 2
		dataStart = 8 + 2 + 12*entries + 4
	)
	value := append([]byte(model), 0)

	buf := make([]byte, dataStart, dataStart+len(value))
	if order == binary.BigEndian {
		copy(buf, "MM")
	} else {
		copy(buf, "II")
	}
	order.PutUint16(buf[2:], 42)
	order.PutUint32(buf[4:], 8)
	order.PutUint16(buf[8:], entries)

	// Model, ASCII. Values of four bytes or less sit in the entry itself.
	e := buf[10:22]
	order.PutUint16(e[0:], 0x0110)
	order.PutUint16(e[2:], 2)
	order.PutUint32(e[4:], uint32(len(value)))
	if len(value) <= 4 {
		copy(e[8:], value)
	} else {
		order.PutUint32(e[8:], dataStart)
		buf = append(buf, value...)
	}

	// Orientation, one SHORT.
	e = buf[22:34]
	order.PutUint16(e[0:], 0x0112)
	order.PutUint16(e[2:], 3)
	order.PutUint32(e[4:], 1)
	order.PutUint16(e[8:], orientation)

	return buf
}

// JPEG encodes img as a baseline JPEG with block in an APP1 segment right
// after the start-of-image marker.
func JPEG(t *testing.T, img image.Image, block []byte) []byte {
	t.Helper()
	var enc bytes.Buffer
	if err := jpeg.Encode(&enc, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("encoding jpeg: %v", err)
	}

	payload := append([]byte("Exif\x00\x00"), block...)
	var out bytes.Buffer
	out.Write(enc.Bytes()[:2])
	out.Write([]byte{0xFF, 0xE1})
	binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write(enc.Bytes()[2:])
	return out.Bytes()
}
