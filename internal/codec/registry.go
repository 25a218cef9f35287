package codec

import (
	"context"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/fleveque/frameseal/internal/storage"
)

// DefaultFormat is used when none is configured.
const DefaultFormat = "png-rgb8"

// Names returns the format identifiers in display order.
func Names() []string {
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = f.Name
	}
	return names
}

// Lookup finds a format by name, case-insensitively.
func Lookup(name string) (Format, error) {
	for _, f := range formats {
		if strings.EqualFold(f.Name, strings.TrimSpace(name)) {
			return f, nil
		}
	}
	return Format{}, fmt.Errorf("unknown output format %q (available: %s)", name, strings.Join(Names(), ", "))
}

// Registry writes framed images beside their sources. Each registry owns the
// path planner of one batch, so names handed out within the batch never
// collide.
type Registry struct {
	planner *storage.PathPlanner
}

// NewRegistry creates a Registry with a fresh path planner.
func NewRegistry() *Registry {
	return &Registry{planner: storage.NewPathPlanner()}
}

// Formats lists the available format names in display order.
func (r *Registry) Formats() []string { return Names() }

// Lookup finds a format by name.
func (r *Registry) Lookup(name string) (Format, error) { return Lookup(name) }

// Plan reserves the output path for src in the named format.
func (r *Registry) Plan(name, src string) (string, error) {
	f, err := Lookup(name)
	if err != nil {
		return "", err
	}
	return r.planner.Reserve(src, f.Ext)
}

// Write encodes img to dst, with the source's EXIF block where the format
// keeps it. The file appears only once encoding succeeded.
func (r *Registry) Write(name string, img image.Image, exif []byte, dst string) error {
	f, err := Lookup(name)
	if err != nil {
		return err
	}
	return storage.WriteFile(dst, func(w io.Writer) error {
		return f.EncodeWithExif(w, img, exif)
	})
}

// Encode plans a path for src and writes img there, returning the path.
func (r *Registry) Encode(ctx context.Context, name string, img image.Image, exif []byte, src string) (string, error) {
	dst, err := r.Plan(name, src)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := r.Write(name, img, exif, dst); err != nil {
		return "", err
	}
	return dst, nil
}
