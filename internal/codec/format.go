// Package codec encodes framed images to the output formats FrameSeal
// offers, and writes them beside their source files.
package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/disintegration/imaging"
	"github.com/h2non/bimg"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
)

// Format is one entry of the output menu.
type Format struct {
	Name  string // identifier used in config, flags and the API
	Ext   string // file extension including the dot
	Alpha bool   // false: transparency is flattened onto black first

	encode func(w io.Writer, img image.Image) error
	// embed adds an EXIF block to encoded output; nil where the format
	// can't carry one.
	embed func(encoded, exif []byte) ([]byte, error)
}

// KeepsExif reports whether EncodeWithExif carries the source's EXIF block
// into this format.
func (f Format) KeepsExif() bool { return f.embed != nil }

// Encode writes img in this format.
func (f Format) Encode(w io.Writer, img image.Image) error {
	if !f.Alpha {
		img = Flatten(img)
	}
	if err := f.encode(w, img); err != nil {
		return fmt.Errorf("encoding %s: %w", f.Name, err)
	}
	return nil
}

// EncodeWithExif writes img like Encode and embeds exif, a TIFF-structured
// EXIF block, when the format can carry one. An empty block, or a format
// that can't, behaves like Encode.
func (f Format) EncodeWithExif(w io.Writer, img image.Image, exif []byte) error {
	if len(exif) == 0 || f.embed == nil {
		return f.Encode(w, img)
	}

	var buf bytes.Buffer
	if err := f.Encode(&buf, img); err != nil {
		return err
	}
	out, err := f.embed(buf.Bytes(), exif)
	if err != nil {
		return fmt.Errorf("embedding exif in %s: %w", f.Name, err)
	}
	_, err = w.Write(out)
	return err
}

// formats is the output menu, in display order. TIFF and WebP go without
// EXIF: x/image/tiff writes no extra tags, and libvips only keeps metadata
// it read from its own input.
var formats = []Format{
	{Name: "bmp", Ext: ".bmp", encode: bmp.Encode},
	{Name: "jpg-95", Ext: ".jpg", encode: jpegEncoder(95), embed: embedJPEG},
	{Name: "jpg-100", Ext: ".jpg", encode: jpegEncoder(100), embed: embedJPEG},
	{Name: "png-rgb8", Ext: ".png", encode: pngEncoder(nil), embed: embedPNG},
	{Name: "png-rgba8", Ext: ".png", Alpha: true, encode: pngEncoder(nil), embed: embedPNG},
	{Name: "png-rgb16", Ext: ".png", encode: pngEncoder(func(b image.Rectangle) draw.Image { return image.NewRGBA64(b) }), embed: embedPNG},
	{Name: "png-rgba16", Ext: ".png", Alpha: true, encode: pngEncoder(func(b image.Rectangle) draw.Image { return image.NewNRGBA64(b) }), embed: embedPNG},
	{Name: "tif-zip", Ext: ".tif", Alpha: true, encode: tiffZip},
	{Name: "webp-lossless", Ext: ".webp", Alpha: true, encode: webpLossless},
}

// Flatten composites img onto opaque black. Opaque images are returned as is.
func Flatten(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.Black)
	return imaging.Overlay(bg, img, image.Point{}, 1.0)
}

// pngEncoder returns a PNG encoder. With convert set, pixels are first copied
// into the image it allocates, which decides the bit depth. image/png picks
// RGB or RGBA from whether the pixels are opaque.
func pngEncoder(convert func(image.Rectangle) draw.Image) func(io.Writer, image.Image) error {
	enc := &png.Encoder{CompressionLevel: png.DefaultCompression}
	return func(w io.Writer, img image.Image) error {
		if convert != nil {
			b := img.Bounds()
			dst := convert(b)
			draw.Draw(dst, b, img, b.Min, draw.Src)
			img = dst
		}
		return enc.Encode(w, img)
	}
}

func tiffZip(w io.Writer, img image.Image) error {
	return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
}

// jpegEncoder encodes through libvips for progressive output, which
// image/jpeg cannot produce. libvips' own metadata is stripped; the source's
// EXIF goes back in through embedJPEG.
func jpegEncoder(quality int) func(io.Writer, image.Image) error {
	return func(w io.Writer, img image.Image) error {
		return vipsEncode(w, img, bimg.Options{
			Type:          bimg.JPEG,
			Quality:       quality,
			Interlace:     true,
			StripMetadata: true,
		})
	}
}

func webpLossless(w io.Writer, img image.Image) error {
	return vipsEncode(w, img, bimg.Options{
		Type:          bimg.WEBP,
		Lossless:      true,
		StripMetadata: true,
	})
}

// vipsEncode hands img to libvips as a fast, lossless PNG and converts it
// there. bimg works on encoded buffers, not on Go images.
func vipsEncode(w io.Writer, img image.Image, opts bimg.Options) error {
	var buf bytes.Buffer
	enc := &png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return fmt.Errorf("preparing image for libvips: %w", err)
	}

	out, err := bimg.NewImage(buf.Bytes()).Process(opts)
	if err != nil {
		return fmt.Errorf("libvips: %w", err)
	}

	_, err = w.Write(out)
	return err
}
