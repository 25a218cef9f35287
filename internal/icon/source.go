// Package icon loads the optional logo drawn next to the caption. An icon
// can be a raster image or an SVG, read from a local path or an http(s) URL.
package icon

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// maxIconBytes caps how much of a remote or local icon is read.
const maxIconBytes = 10 << 20

// Source fetches raw icon bytes for a reference string.
// Each implementation handles one kind of reference (path, URL).
type Source interface {
	// Accepts reports whether ref is something this source can fetch.
	Accepts(ref string) bool

	// Fetch returns the raw bytes behind ref.
	Fetch(ctx context.Context, ref string) ([]byte, error)

	// Name returns a human-readable name for logging.
	Name() string
}

// FileSource reads icons from the local filesystem.
type FileSource struct{}

func (FileSource) Name() string { return "file" }

// Accepts anything that is not a URL.
func (FileSource) Accepts(ref string) bool {
	return !strings.Contains(ref, "://")
}

func (FileSource) Fetch(_ context.Context, ref string) ([]byte, error) {
	f, err := os.Open(ref)
	if err != nil {
		return nil, fmt.Errorf("opening icon: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxIconBytes))
	if err != nil {
		return nil, fmt.Errorf("reading icon: %w", err)
	}
	return data, nil
}

// HTTPSource downloads icons over http or https.
type HTTPSource struct {
	client *http.Client
}

// NewHTTPSource creates an HTTPSource. A nil client gets a 30s timeout.
func NewHTTPSource(client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPSource{client: client}
}

func (h *HTTPSource) Name() string { return "http" }

func (h *HTTPSource) Accepts(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

func (h *HTTPSource) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "frameseal/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}

	// io.LimitReader keeps a misconfigured URL from pulling a huge file
	// into memory.
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxIconBytes))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return data, nil
}
