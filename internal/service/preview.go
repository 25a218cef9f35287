package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fleveque/frameseal/internal/frame"
)

// DefaultDebounce is how long a preview waits for a newer request before
// rendering.
const DefaultDebounce = 128 * time.Millisecond

// renderFunc produces preview bytes. FrameService.Preview in production.
type renderFunc func(ctx context.Context, data []byte, cfg *frame.Config, maxEdge int) ([]byte, error)

// Previewer renders at most one preview at a time for one editing session.
// A new request cancels the one in flight, waits out the debounce delay and
// only then renders, so a burst of slider changes costs a single render.
type Previewer struct {
	render   renderFunc
	debounce time.Duration
	maxEdge  int

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// NewPreviewer creates a Previewer that renders with frames.
func NewPreviewer(frames *FrameService, debounce time.Duration, maxEdge int) *Previewer {
	return newPreviewer(frames.Preview, debounce, maxEdge)
}

func newPreviewer(render renderFunc, debounce time.Duration, maxEdge int) *Previewer {
	return &Previewer{render: render, debounce: debounce, maxEdge: maxEdge}
}

// Render returns the framed preview of data as PNG bytes. It returns
// context.Canceled when a newer Render call superseded this one, even if
// rendering had already finished: only the latest request gets a result.
func (p *Previewer) Render(ctx context.Context, data []byte, cfg *frame.Config) ([]byte, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.seq++
	mine := p.seq
	p.cancel = cancel
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		if p.seq == mine {
			p.cancel = nil
		}
		p.mu.Unlock()
	}()

	timer := time.NewTimer(p.debounce)
	select {
	case <-ctx.Done():
		timer.Stop()
		return nil, ctx.Err()
	case <-timer.C:
	}

	out, err := p.render(ctx, data, cfg, p.maxEdge)

	p.mu.Lock()
	superseded := p.seq != mine
	p.mu.Unlock()
	if superseded {
		return nil, context.Canceled
	}
	return out, err
}

// PreviewStats are counters exposed on the admin endpoint.
type PreviewStats struct {
	Sessions   int   `json:"sessions"`
	Rendered   int64 `json:"rendered"`
	Superseded int64 `json:"superseded"`
	Failed     int64 `json:"failed"`
}

// PreviewHub keeps one Previewer per session key and forgets sessions that
// have been idle for longer than idleTTL.
type PreviewHub struct {
	newPreviewer func() *Previewer
	idleTTL      time.Duration

	mu       sync.Mutex
	sessions map[string]*session

	rendered, superseded, failed atomic.Int64
}

type session struct {
	previewer *Previewer
	lastUsed  time.Time
}

// NewPreviewHub creates a hub whose previewers render with frames.
func NewPreviewHub(frames *FrameService, debounce time.Duration, maxEdge int) *PreviewHub {
	return newPreviewHub(func() *Previewer { return NewPreviewer(frames, debounce, maxEdge) })
}

func newPreviewHub(factory func() *Previewer) *PreviewHub {
	return &PreviewHub{
		newPreviewer: factory,
		idleTTL:      10 * time.Minute,
		sessions:     make(map[string]*session),
	}
}

// Render routes the request to the session's Previewer and counts the outcome.
func (h *PreviewHub) Render(ctx context.Context, key string, data []byte, cfg *frame.Config) ([]byte, error) {
	out, err := h.previewer(key).Render(ctx, data, cfg)
	switch {
	case err == nil:
		h.rendered.Add(1)
	case errors.Is(err, context.Canceled):
		h.superseded.Add(1)
	default:
		h.failed.Add(1)
	}
	return out, err
}

// Stats returns a snapshot of the counters.
func (h *PreviewHub) Stats() PreviewStats {
	h.mu.Lock()
	n := len(h.sessions)
	h.mu.Unlock()
	return PreviewStats{
		Sessions:   n,
		Rendered:   h.rendered.Load(),
		Superseded: h.superseded.Load(),
		Failed:     h.failed.Load(),
	}
}

func (h *PreviewHub) previewer(key string) *Previewer {
	now := time.Now()

	h.mu.Lock()
	defer h.mu.Unlock()

	for k, s := range h.sessions {
		if now.Sub(s.lastUsed) > h.idleTTL {
			delete(h.sessions, k)
		}
	}

	s, ok := h.sessions[key]
	if !ok {
		s = &session{previewer: h.newPreviewer()}
		h.sessions[key] = s
	}
	s.lastUsed = now
	return s.previewer
}
