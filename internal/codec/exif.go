package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
)

// exifMarker opens the EXIF payload of a JPEG APP1 segment.
var exifMarker = []byte("Exif\x00\x00")

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// maxSegment is the largest payload a JPEG marker segment can carry; its
// length field is 16 bits and counts itself.
const maxSegment = 0xFFFF - 2

// embedJPEG inserts exif as an APP1 segment right after the start-of-image
// marker. A block too large for one segment is left out.
func embedJPEG(jpg, exif []byte) ([]byte, error) {
	if len(jpg) < 2 || jpg[0] != 0xFF || jpg[1] != 0xD8 {
		return nil, errors.New("no JPEG start-of-image marker")
	}
	n := len(exifMarker) + len(exif)
	if n > maxSegment {
		return jpg, nil
	}

	out := make([]byte, 0, len(jpg)+4+n)
	out = append(out, jpg[:2]...)
	out = append(out, 0xFF, 0xE1)
	out = binary.BigEndian.AppendUint16(out, uint16(n+2))
	out = append(out, exifMarker...)
	out = append(out, exif...)
	return append(out, jpg[2:]...), nil
}

// embedPNG inserts exif as an eXIf chunk right after IHDR, ahead of the
// image data where readers expect it.
func embedPNG(png, exif []byte) ([]byte, error) {
	// Signature, then IHDR: length, type, 13 bytes of data, CRC.
	const ihdrEnd = 8 + 4 + 4 + 13 + 4
	if len(png) < ihdrEnd || !bytes.HasPrefix(png, pngSignature) || string(png[12:16]) != "IHDR" {
		return nil, errors.New("no PNG header")
	}

	chunk := make([]byte, 0, 12+len(exif))
	chunk = binary.BigEndian.AppendUint32(chunk, uint32(len(exif)))
	chunk = append(chunk, "eXIf"...)
	chunk = append(chunk, exif...)
	chunk = binary.BigEndian.AppendUint32(chunk, crc32.ChecksumIEEE(chunk[4:]))

	out := make([]byte, 0, len(png)+len(chunk))
	out = append(out, png[:ihdrEnd]...)
	out = append(out, chunk...)
	return append(out, png[ihdrEnd:]...), nil
}
