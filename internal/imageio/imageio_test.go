package imageio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/fleveque/frameseal/internal/metadata/exiftest"
)

func encode(t *testing.T, format imaging.Format, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	return buf.Bytes()
}

func TestDecode_Formats(t *testing.T) {
	src := imaging.New(12, 8, color.NRGBA{R: 10, G: 200, B: 30, A: 255})

	var bmpBuf, tifBuf bytes.Buffer
	if err := bmp.Encode(&bmpBuf, src); err != nil {
		t.Fatalf("bmp: %v", err)
	}
	if err := tiff.Encode(&tifBuf, src, nil); err != nil {
		t.Fatalf("tiff: %v", err)
	}

	tests := []struct {
		name   string
		data   []byte
		format string
	}{
		{"png", encode(t, imaging.PNG, src), "png"},
		{"jpeg", encode(t, imaging.JPEG, src), "jpeg"},
		{"bmp", bmpBuf.Bytes(), "bmp"},
		{"tiff", tifBuf.Bytes(), "tiff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Decode(tt.data, true)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if p.Format != tt.format {
				t.Errorf("format = %q, want %q", p.Format, tt.format)
			}
			if got := p.Image.Bounds().Size(); got != image.Pt(12, 8) {
				t.Errorf("size = %v, want 12x8", got)
			}
			// TIFF files parse as an (empty) EXIF container, so only check
			// that nothing was invented.
			if p.Profile != nil && (p.Profile.Model != "" || p.Profile.ExposureTime != 0) {
				t.Errorf("expected no EXIF data for a generated image, got %+v", p.Profile)
			}
		})
	}
}

func TestDecode_Garbage(t *testing.T) {
	if _, err := Decode([]byte("GIF89a but not really"), false); err == nil {
		t.Error("expected error for undecodable data")
	}
}

// declaredPNG returns a 1×1 PNG whose header claims w×h pixels.
func declaredPNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	data := encode(t, imaging.PNG, imaging.New(1, 1, color.Black))
	// Signature, then the IHDR chunk: length, type, width, height, ...
	binary.BigEndian.PutUint32(data[16:], w)
	binary.BigEndian.PutUint32(data[20:], h)
	binary.BigEndian.PutUint32(data[29:], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestDecode_TooLarge(t *testing.T) {
	_, err := Decode(declaredPNG(t, 50000, 50000), false)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestCheckSize(t *testing.T) {
	tests := []struct {
		w, h int
		ok   bool
	}{
		{6000, 4000, true},
		{20000, 10000, true},
		{20000, 10001, false},
		{50000, 50000, false},
		{1 << 31, 1 << 31, false},
	}

	for _, tt := range tests {
		err := CheckSize(tt.w, tt.h)
		if tt.ok && err != nil {
			t.Errorf("CheckSize(%d, %d): %v", tt.w, tt.h, err)
		}
		if !tt.ok && !errors.Is(err, ErrTooLarge) {
			t.Errorf("CheckSize(%d, %d) = %v, want ErrTooLarge", tt.w, tt.h, err)
		}
	}
}

func exifOrientation(t *testing.T, raw []byte) int {
	t.Helper()
	x, err := exif.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decoding exif: %v", err)
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		t.Fatalf("orientation tag: %v", err)
	}
	v, _ := tag.Int(0)
	return v
}

func TestDecode_KeepsExif(t *testing.T) {
	// Orientation 6: the camera was turned, view rotated 90° clockwise.
	data := exiftest.JPEG(t, imaging.New(12, 8, color.White), exiftest.Block(binary.LittleEndian, "X-T5", 6))

	tests := []struct {
		name        string
		autoOrient  bool
		size        image.Point
		orientation int
	}{
		{"rotated", true, image.Pt(8, 12), 1},
		{"as stored", false, image.Pt(12, 8), 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Decode(data, tt.autoOrient)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got := p.Image.Bounds().Size(); got != tt.size {
				t.Errorf("size = %v, want %v", got, tt.size)
			}
			if p.Profile == nil || p.Profile.Model != "X-T5" {
				t.Fatalf("expected the X-T5 profile, got %+v", p.Profile)
			}
			if p.Exif == nil {
				t.Fatal("expected the EXIF block to be kept")
			}
			if got := exifOrientation(t, p.Exif); got != tt.orientation {
				t.Errorf("orientation = %d, want %d", got, tt.orientation)
			}
		})
	}
}

func TestDecode_NoExifOutsideJPEG(t *testing.T) {
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, imaging.New(4, 4, color.White), nil); err != nil {
		t.Fatalf("tiff: %v", err)
	}
	p, err := Decode(buf.Bytes(), true)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.Exif != nil {
		t.Errorf("expected no EXIF block for a TIFF, got %d bytes", len(p.Exif))
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.png")

	var buf bytes.Buffer
	if err := png.Encode(&buf, imaging.New(5, 5, color.White)); err != nil {
		t.Fatalf("encoding: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("writing: %v", err)
	}

	p, err := Load(path, false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Format != "png" {
		t.Errorf("format = %q, want png", p.Format)
	}

	_, err = Load(filepath.Join(dir, "missing.png"), false)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestThumbnail(t *testing.T) {
	tests := []struct {
		name    string
		w, h    int
		maxEdge int
		want    image.Point
	}{
		{"landscape", 1000, 500, 100, image.Pt(100, 50)},
		{"portrait", 300, 600, 200, image.Pt(100, 200)},
		{"already small", 80, 60, 100, image.Pt(80, 60)},
		{"disabled", 800, 600, 0, image.Pt(800, 600)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Thumbnail(imaging.New(tt.w, tt.h, color.Black), tt.maxEdge).Bounds().Size()
			if got != tt.want {
				t.Errorf("Thumbnail(%dx%d, %d) = %v, want %v", tt.w, tt.h, tt.maxEdge, got, tt.want)
			}
		})
	}
}
