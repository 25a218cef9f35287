package frame

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/fleveque/frameseal/internal/metadata"
)

var (
	black = color.NRGBA{A: 255}
	white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	gold  = color.NRGBA{R: 0xD0, G: 0xA0, B: 0x10, A: 255}
)

// testConfig builds a Config from the defaults with the given changes.
func testConfig(t *testing.T, modify func(*Options)) *Config {
	t.Helper()
	opts := DefaultOptions()
	if modify != nil {
		modify(&opts)
	}
	cfg, err := New(opts)
	if err != nil {
		t.Fatalf("building config: %v", err)
	}
	return cfg
}

func compose(t *testing.T, img image.Image, profile *metadata.Profile, cfg *Config) *image.NRGBA {
	t.Helper()
	out, err := NewCompositor(nil).Compose(context.Background(), img, profile, cfg)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	nrgba, ok := out.(*image.NRGBA)
	if !ok {
		t.Fatalf("expected *image.NRGBA, got %T", out)
	}
	return nrgba
}

func TestCompose_Dimensions(t *testing.T) {
	sizes := [][2]int{{1000, 800}, {333, 517}, {1, 1}, {64, 7}}
	ratios := []Ratios{
		{},
		{Top: 0.03, Right: 0.02, Bottom: 0.06, Left: 0.02},
		{Top: 0.06, Right: 0.04, Bottom: 0.10, Left: 0.04},
		{Top: 0.5, Right: 1.25, Bottom: 0.005, Left: 0.333},
	}

	for _, s := range sizes {
		for _, r := range ratios {
			w, h := s[0], s[1]
			cfg := testConfig(t, func(o *Options) {
				o.Border = r
				o.CornerRatio = 0.1
			})

			out := compose(t, imaging.New(w, h, white), nil, cfg)

			wantW := int(math.Round(float64(w) * (1 + r.Left + r.Right)))
			wantH := int(math.Round(float64(h) * (1 + r.Top + r.Bottom)))
			if got := out.Bounds().Size(); got.X != wantW || got.Y != wantH {
				t.Errorf("%dx%d with %+v: got %v, want %dx%d", w, h, r, got, wantW, wantH)
			}
		}
	}
}

func TestCompose_NoOp(t *testing.T) {
	img := imaging.New(40, 30, white)
	cfg := testConfig(t, func(o *Options) {
		o.Border = Ratios{}
		o.CornerRatio = 0
		o.Fields = []metadata.Binding{{Key: metadata.KeyManual, Literal: "ignored"}}
	})

	out, err := NewCompositor(nil).Compose(context.Background(), img, nil, cfg)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if out != image.Image(img) {
		t.Error("expected the input image to be returned unchanged")
	}
}

func TestCompose_ZeroCornerKeepsPixels(t *testing.T) {
	// A gradient with varying alpha, so any masking would show.
	src := image.NewNRGBA(image.Rect(0, 0, 50, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 50; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 5), G: uint8(y * 6), B: 90, A: 255})
		}
	}
	cfg := testConfig(t, func(o *Options) {
		o.Border = Ratios{Top: 0.1, Right: 0.1, Bottom: 0.1, Left: 0.1}
		o.CornerRatio = 0
		o.BorderColor = "#000"
	})

	out := compose(t, src, nil, cfg)

	g := cfg.Border.Pixels(50, 40)
	for y := 0; y < 40; y++ {
		for x := 0; x < 50; x++ {
			if got, want := out.NRGBAAt(g.Left+x, g.Top+y), src.NRGBAAt(x, y); got != want {
				t.Fatalf("pixel (%d,%d): got %v, want %v", x, y, got, want)
			}
		}
	}
	if got := out.NRGBAAt(0, 0); got != black {
		t.Errorf("border pixel: got %v, want %v", got, black)
	}
}

func TestCompose_CircularMask(t *testing.T) {
	cfg := testConfig(t, func(o *Options) {
		o.Border = Ratios{}
		o.CornerRatio = 0.5
		o.BorderColor = "transparent"
	})

	out := compose(t, imaging.New(100, 100, white), nil, cfg)

	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			d := math.Hypot(float64(x)+0.5-50, float64(y)+0.5-50)
			a := out.NRGBAAt(x, y).A
			switch {
			case d < 47 && a != 255:
				t.Fatalf("pixel (%d,%d) at distance %.1f: alpha %d, want 255", x, y, d, a)
			case d > 53 && a != 0:
				t.Fatalf("pixel (%d,%d) at distance %.1f: alpha %d, want 0", x, y, d, a)
			}
		}
	}

	// The edge itself is soft, not a hard cut.
	var partial int
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			if a := out.NRGBAAt(x, y).A; a > 0 && a < 255 {
				partial++
			}
		}
	}
	if partial == 0 {
		t.Error("expected anti-aliased pixels along the circle")
	}
}

func TestCompose_CornersShowBorderColor(t *testing.T) {
	cfg := testConfig(t, func(o *Options) {
		o.Border = Ratios{Top: 0.1, Right: 0.1, Bottom: 0.1, Left: 0.1}
		o.CornerRatio = 0.2
		o.BorderColor = "#000000"
	})

	out := compose(t, imaging.New(100, 100, white), nil, cfg)

	g := cfg.Border.Pixels(100, 100)
	if got := out.NRGBAAt(g.Left, g.Top); got != black {
		t.Errorf("photo corner: got %v, want border color", got)
	}
	if got := out.NRGBAAt(g.Left+50, g.Top+50); got != white {
		t.Errorf("photo center: got %v, want photo color", got)
	}
	if got := out.NRGBAAt(g.Left+50, g.Top); got != white {
		t.Errorf("straight edge must stay sharp: got %v", got)
	}
}

func TestCompose_EndToEnd(t *testing.T) {
	cfg := testConfig(t, func(o *Options) {
		o.Border = Ratios{Top: 0.06, Right: 0.04, Bottom: 0.10, Left: 0.04}
		o.CornerRatio = 0.04
		o.BorderColor = "#000000"
		o.Fields = []metadata.Binding{{Key: metadata.KeyManual, Literal: "FrameSeal"}}
	})

	out := compose(t, imaging.New(1000, 800, white), nil, cfg)

	if got := out.Bounds().Size(); got != image.Pt(1080, 928) {
		t.Fatalf("canvas: got %v, want 1080x928", got)
	}

	g := cfg.Border.Pixels(1000, 800)
	if got := g.CornerRadius(cfg.CornerRatio); math.Abs(got-37.12) > 1e-9 {
		t.Errorf("radius: got %v, want 37.12", got)
	}

	// Ink on the bottom border: text present and centered.
	minX, maxX, minY, maxY := math.MaxInt, -1, math.MaxInt, -1
	for y := 848; y < 928; y++ {
		for x := 0; x < 1080; x++ {
			if out.NRGBAAt(x, y) != black {
				minX, maxX = min(minX, x), max(maxX, x)
				minY, maxY = min(minY, y), max(maxY, y)
			}
		}
	}
	if maxX < 0 {
		t.Fatal("expected caption pixels on the bottom border")
	}
	if center := float64(minX+maxX) / 2; math.Abs(center-540) > 6 {
		t.Errorf("caption centered at x=%.1f, want ~540", center)
	}
	if maxY-minY+1 > 27 {
		t.Errorf("caption ink is %d px tall, taller than the 26.4px line", maxY-minY+1)
	}
}

func TestCompose_IconWithoutText(t *testing.T) {
	red := color.NRGBA{R: 255, A: 255}
	cfg := testConfig(t, func(o *Options) {
		o.Border = Ratios{Bottom: 0.2}
		o.CornerRatio = 0
		o.BorderColor = "#000"
		o.TextHeightRatio = 0.5
		o.Icon = imaging.New(10, 10, red)
		o.Fields = []metadata.Binding{{Key: metadata.KeyISO}}
	})

	// No profile: the ISO field is dropped and the icon renders alone.
	out := compose(t, imaging.New(200, 100, white), nil, cfg)

	// Bottom border is 20px, icon 10x10 centered on it.
	if got := out.NRGBAAt(100, 110); got != red {
		t.Errorf("icon center: got %v, want red", got)
	}
	if got := out.NRGBAAt(80, 110); got != black {
		t.Errorf("left of icon: got %v, want border", got)
	}
}

func TestCompose_NoBottomBorderSkipsCaption(t *testing.T) {
	cfg := testConfig(t, func(o *Options) {
		o.Border = Ratios{Top: 0.1, Left: 0.1, Right: 0.1}
		o.Fields = []metadata.Binding{{Key: metadata.KeyManual, Literal: "never drawn"}}
	})

	out := compose(t, imaging.New(100, 100, white), nil, cfg)
	if got := out.Bounds().Dy(); got != 110 {
		t.Errorf("height: got %d, want 110", got)
	}
}

func TestCompose_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := NewCompositor(nil).Compose(ctx, imaging.New(10, 10, white), nil, testConfig(t, nil))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if out != nil {
		t.Error("expected no image on cancellation")
	}
}

func TestCompose_MetricErrorPropagates(t *testing.T) {
	cfg := testConfig(t, func(o *Options) {
		o.Border = Ratios{Bottom: 0.001}
		o.Fields = []metadata.Binding{{Key: metadata.KeyManual, Literal: "tiny"}}
		o.TextHeightRatio = 0.001
	})

	// 100px tall: the bottom border is 0.1 -> 0px, so no caption and no error.
	if _, err := NewCompositor(nil).Compose(context.Background(), imaging.New(100, 100, white), nil, cfg); err != nil {
		t.Fatalf("zero-height bottom border must skip text, got %v", err)
	}

	// 1000px tall: 1px border, target 0.001px, which no font size can measure.
	_, err := NewCompositor(nil).Compose(context.Background(), imaging.New(10, 1000, white), nil, cfg)
	var merr *MetricError
	if !errors.As(err, &merr) {
		t.Fatalf("expected *MetricError, got %v", err)
	}
}

func TestFitFont_Converges(t *testing.T) {
	cfg := testConfig(t, nil)

	for _, target := range []float64{3, 12.5, 26.4, 80, 400} {
		f, err := fitFont(cfg.Font, target)
		if err != nil {
			t.Errorf("target %.1f: %v", target, err)
			continue
		}
		if diff := math.Abs(f.height() - target); diff > target*fitTolerance {
			t.Errorf("target %.1f: measured %.3f outside tolerance", target, f.height())
		}
		f.face.Close()
	}
}

func TestFitFont_UnreachableTarget(t *testing.T) {
	cfg := testConfig(t, nil)

	for _, target := range []float64{0, -5, math.NaN()} {
		_, err := fitFont(cfg.Font, target)
		var merr *MetricError
		if !errors.As(err, &merr) {
			t.Errorf("target %v: expected *MetricError, got %v", target, err)
		}
	}
}

func TestCaptionLayout_IconShift(t *testing.T) {
	cfg := testConfig(t, nil)
	g := Ratios{Bottom: 0.1}.Pixels(1000, 800)

	f, err := fitFont(cfg.Font, 26.4)
	if err != nil {
		t.Fatalf("fitFont: %v", err)
	}
	defer f.face.Close()

	plain := captionLayout(g, f, "ISO 200", nil, 1)
	withIcon := captionLayout(g, f, "ISO 200", imaging.New(40, 20, white), 1)

	if plain.icon != nil {
		t.Fatal("no icon expected without an icon image")
	}
	if math.Abs(plain.textX-(1000-plain.textW)/2) > 1e-9 {
		t.Errorf("plain text not centered: x=%.2f width=%.2f", plain.textX, plain.textW)
	}

	iconW := float64(withIcon.icon.Bounds().Dx())
	iconH := withIcon.icon.Bounds().Dy()
	if iconH != round(f.height()) {
		t.Errorf("icon height %d, want text height %.2f rounded", iconH, f.height())
	}
	if math.Abs(iconW-2*float64(iconH)) > 1 {
		t.Errorf("icon aspect not kept: %vx%d", iconW, iconH)
	}

	gap := f.height()
	if want := plain.textX + gap/2 + iconW/2; math.Abs(withIcon.textX-want) > 1e-9 {
		t.Errorf("text x: got %.2f, want %.2f", withIcon.textX, want)
	}
	// Icon ends one gap before the text; the whole group is centered.
	if d := withIcon.textX - gap - (float64(withIcon.iconAt.X) + iconW); math.Abs(d) > 1 {
		t.Errorf("icon/text gap off by %.2f", d)
	}
	if c := (float64(withIcon.iconAt.X) + withIcon.textX + withIcon.textW) / 2; math.Abs(c-500) > 1 {
		t.Errorf("group centered at %.2f, want 500", c)
	}
}
