// Package fonts resolves a font name from configuration to a parsed OpenType
// font. The Go font family ships inside the binary; anything else is read
// from a .ttf/.otf path.
package fonts

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// DefaultName is used when the configuration leaves the font empty.
const DefaultName = "Go Regular"

// builtin maps display names to embedded TTF data.
var builtin = map[string][]byte{
	"Go Regular": goregular.TTF,
	"Go Medium":  gomedium.TTF,
	"Go Bold":    gobold.TTF,
	"Go Italic":  goitalic.TTF,
	"Go Mono":    gomono.TTF,
}

// Font is a parsed font. It is safe for concurrent use: faces are created
// per call to Face and never shared.
type Font struct {
	name string
	otf  *opentype.Font
}

// Names returns the built-in font names, sorted.
func Names() []string {
	names := make([]string, 0, len(builtin))
	for n := range builtin {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// IsBuiltin reports whether name is one of Names, ignoring case.
func IsBuiltin(name string) bool {
	name = strings.TrimSpace(name)
	for n := range builtin {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// Load resolves name to a font. Built-in names match case-insensitively;
// otherwise name is treated as a path to a TrueType/OpenType file.
func Load(name string) (*Font, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName
	}

	for n, data := range builtin {
		if strings.EqualFold(n, name) {
			return Parse(n, data)
		}
	}

	ext := strings.ToLower(filepath.Ext(name))
	if ext != ".ttf" && ext != ".otf" {
		return nil, fmt.Errorf("unknown font %q (built-in: %s)", name, strings.Join(Names(), ", "))
	}

	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading font file %s: %w", name, err)
	}
	return Parse(filepath.Base(name), data)
}

// Parse wraps raw TTF/OTF bytes.
func Parse(name string, data []byte) (*Font, error) {
	otf, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing font %s: %w", name, err)
	}
	return &Font{name: name, otf: otf}, nil
}

// Name returns the display name, or the file name for fonts loaded from disk.
func (f *Font) Name() string { return f.name }

// Face returns a face at the given point size (72 DPI, so points == pixels).
// Hinting is off so that metrics scale linearly with size; the font-fit loop
// in package frame depends on that.
func (f *Font) Face(size float64) (font.Face, error) {
	face, err := opentype.NewFace(f.otf, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("creating %s face at %.2fpt: %w", f.name, size, err)
	}
	return face, nil
}
