// Package service holds FrameSeal's pipelines: framing one image, framing a
// batch of files in parallel, and rendering debounced previews.
package service

import (
	"bytes"
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fleveque/frameseal/internal/codec"
	"github.com/fleveque/frameseal/internal/frame"
	"github.com/fleveque/frameseal/internal/imageio"
)

// previewFormat is what preview bitmaps are encoded as.
const previewFormat = "png-rgba8"

// FrameService runs the single-image pipeline: decode, compose, encode.
// It is stateless apart from its settings and safe for concurrent use.
type FrameService struct {
	compositor *frame.Compositor
	autoOrient bool
	logger     *zap.Logger
}

// NewFrameService creates a FrameService. With autoOrient set, photos are
// rotated upright according to their EXIF orientation before framing.
func NewFrameService(compositor *frame.Compositor, autoOrient bool, logger *zap.Logger) *FrameService {
	return &FrameService{compositor: compositor, autoOrient: autoOrient, logger: logger}
}

// FrameFile loads the photo at path and frames it. The returned photo holds
// the framed image and the source's metadata, EXIF block included, for the
// encoder to carry over.
func (s *FrameService) FrameFile(ctx context.Context, path string, cfg *frame.Config) (*imageio.Photo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	photo, err := imageio.Load(path, s.autoOrient)
	if err != nil {
		return nil, err
	}
	framed, err := s.compositor.Compose(ctx, photo.Image, photo.Profile, cfg)
	if err != nil {
		return nil, err
	}
	photo.Image = framed
	return photo, nil
}

// Preview decodes an uploaded image, shrinks it so its longer edge is at most
// maxEdge, frames the small copy and returns it as PNG bytes.
//
// Borders, corners and text size are all ratios of the image, so framing the
// thumbnail looks the same as framing the original and scaling it down.
func (s *FrameService) Preview(ctx context.Context, data []byte, cfg *frame.Config, maxEdge int) ([]byte, error) {
	photo, err := imageio.Decode(data, s.autoOrient)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	framed, err := s.compositor.Compose(ctx, imageio.Thumbnail(photo.Image, maxEdge), photo.Profile, cfg)
	if err != nil {
		return nil, err
	}

	f, err := codec.Lookup(previewFormat)
	if err != nil {
		return nil, fmt.Errorf("preview format: %w", err)
	}
	var buf bytes.Buffer
	if err := f.Encode(&buf, framed); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
