package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fleveque/frameseal/internal/codec"
	"github.com/fleveque/frameseal/internal/fonts"
	"github.com/fleveque/frameseal/internal/metadata"
)

// CatalogHandler lists the choices an editor UI offers: output formats,
// caption fields and built-in fonts. Everything it serves is static.
type CatalogHandler struct{}

func NewCatalogHandler() *CatalogHandler {
	return &CatalogHandler{}
}

type formatInfo struct {
	Name  string `json:"name"`
	Ext   string `json:"ext"`
	Alpha bool   `json:"alpha"`
	Exif  bool   `json:"exif"` // keeps the source's EXIF block
}

// Formats lists the output formats.
// Route: GET /api/v1/formats
func (h *CatalogHandler) Formats(c *gin.Context) {
	names := codec.Names()
	formats := make([]formatInfo, 0, len(names))
	for _, name := range names {
		f, err := codec.Lookup(name)
		if err != nil {
			continue
		}
		formats = append(formats, formatInfo{Name: f.Name, Ext: f.Ext, Alpha: f.Alpha, Exif: f.KeepsExif()})
	}

	c.Header("Cache-Control", "public, max-age=3600")
	c.JSON(http.StatusOK, gin.H{
		"formats": formats,
		"default": codec.DefaultFormat,
	})
}

// Fields lists the metadata keys a caption slot can bind to.
// Route: GET /api/v1/fields
func (h *CatalogHandler) Fields(c *gin.Context) {
	keys := metadata.Keys()
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}

	c.Header("Cache-Control", "public, max-age=3600")
	c.JSON(http.StatusOK, gin.H{
		"fields":     names,
		"max_fields": metadata.MaxFields,
	})
}

// Fonts lists the built-in font names.
// Route: GET /api/v1/fonts
func (h *CatalogHandler) Fonts(c *gin.Context) {
	c.Header("Cache-Control", "public, max-age=3600")
	c.JSON(http.StatusOK, gin.H{
		"fonts":   fonts.Names(),
		"default": fonts.DefaultName,
	})
}
