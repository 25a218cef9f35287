package metadata

import (
	"bytes"
	"encoding/binary"
)

const (
	tagOrientation = 0x0112
	typeShort      = 3
)

// WithUprightOrientation returns a copy of the EXIF block raw whose
// orientation tag says 1 (upright), for pixels that have already been
// rotated. A block without the tag, or one too damaged to walk, is copied
// unchanged.
//
// goexif only reads EXIF, so the tag is patched in place: IFD0 is a count
// followed by 12-byte entries, and a single SHORT value sits left-aligned in
// the entry's last four bytes.
func WithUprightOrientation(raw []byte) []byte {
	out := bytes.Clone(raw)
	if len(out) < 8 {
		return out
	}

	var order binary.ByteOrder
	switch string(out[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return out
	}

	ifd := int(order.Uint32(out[4:8]))
	if ifd < 8 || ifd+2 > len(out) {
		return out
	}
	n := int(order.Uint16(out[ifd:]))
	for i := 0; i < n; i++ {
		e := ifd + 2 + 12*i
		if e+12 > len(out) {
			break
		}
		if order.Uint16(out[e:]) != tagOrientation {
			continue
		}
		if order.Uint16(out[e+2:]) == typeShort && order.Uint32(out[e+4:]) == 1 {
			order.PutUint16(out[e+8:], 1)
		}
		break
	}
	return out
}
