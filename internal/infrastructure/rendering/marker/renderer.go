// Package marker rasterises map marker icons: a numbered badge per city and
// a shared pin for individual plots.
package marker

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/turtacn/PlotAtlas/internal/domain/plotmap"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PlotAtlas/pkg/errors"
)

// supersample is the oversampling factor used for anti-aliasing.
const supersample = 3

var white = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}

// Renderer draws icons from descriptors.  It is safe for concurrent use.
type Renderer struct {
	logger logging.Logger

	fontOnce sync.Once
	font     *opentype.Font
	fontErr  error

	mu    sync.Mutex
	faces map[float64]font.Face
}

// NewRenderer returns a Renderer.  The bold Go font is parsed lazily.
func NewRenderer(logger logging.Logger) *Renderer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Renderer{logger: logger, faces: make(map[float64]font.Face)}
}

// Render draws the icon described by desc.
func (r *Renderer) Render(ctx context.Context, desc plotmap.IconDescriptor) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if desc.Size <= 0 {
		return nil, errors.New(errors.ErrCodeIconLoadFailed, "icon size must be positive").WithDetail(desc.Name)
	}

	big := image.NewRGBA(image.Rect(0, 0, desc.Size*supersample, desc.Size*supersample))
	switch desc.Kind {
	case plotmap.IconKindCity:
		if err := r.drawBadge(big, desc); err != nil {
			return nil, err
		}
	case plotmap.IconKindPlot:
		drawPin(big, desc.Fill)
	default:
		return nil, errors.New(errors.ErrCodeIconLoadFailed, "unknown icon kind").WithDetail(string(desc.Kind))
	}

	out := image.NewRGBA(image.Rect(0, 0, desc.Size, desc.Size))
	xdraw.CatmullRom.Scale(out, out.Bounds(), big, big.Bounds(), xdraw.Over, nil)
	return out, nil
}

// RenderPNG renders desc and encodes it as PNG.
func (r *Renderer) RenderPNG(ctx context.Context, desc plotmap.IconDescriptor) ([]byte, error) {
	img, err := r.Render(ctx, desc)
	if err != nil {
		return nil, err
	}
	return EncodePNG(img)
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIconLoadFailed, "png encode failed")
	}
	return buf.Bytes(), nil
}

// DecodePNG is the inverse of EncodePNG.
func DecodePNG(data []byte) (image.Image, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIconLoadFailed, "png decode failed")
	}
	return img, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Drawing
// ─────────────────────────────────────────────────────────────────────────────

func (r *Renderer) drawBadge(img *image.RGBA, desc plotmap.IconDescriptor) error {
	size := float64(img.Bounds().Dx())
	cx, cy := size/2, size/2
	outer := size/2 - 1
	fillCircle(img, cx, cy, outer, white)
	fillCircle(img, cx, cy, outer*0.84, desc.Fill)

	if desc.Label == "" {
		return nil
	}
	// Longer labels get a smaller face so they stay inside the ring.
	pt := size * 0.42
	if n := len(desc.Label); n > 2 {
		pt = size * 0.84 / float64(n) * 1.1
	}
	face, err := r.face(pt)
	if err != nil {
		return err
	}
	w := font.MeasureString(face, desc.Label)
	m := face.Metrics()
	x := fixed.I(int(cx)) - w/2
	y := fixed.I(int(cy)) + (m.Ascent-m.Descent)/2
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(white),
		Face: face,
		Dot:  fixed.Point26_6{X: x, Y: y},
	}
	d.DrawString(desc.Label)
	return nil
}

// drawPin draws a teardrop pin whose tip touches the bottom edge.
func drawPin(img *image.RGBA, fill color.RGBA) {
	size := float64(img.Bounds().Dx())
	cx := size / 2
	radius := size * 0.30
	cy := radius + size*0.06
	tipY := size - 1

	fillCircle(img, cx, cy, radius, fill)
	// Tangent lines from the tip to the circle bound the triangle body.
	dist := tipY - cy
	half := radius * math.Sqrt(1-(radius/dist)*(radius/dist))
	topY := cy + radius*radius/dist
	fillTriangle(img, cx-half, topY, cx+half, topY, cx, tipY, fill)
	fillCircle(img, cx, cy, radius*0.42, white)
}

func fillCircle(img *image.RGBA, cx, cy, radius float64, c color.RGBA) {
	b := img.Bounds()
	minX, maxX := clamp(int(cx-radius)-1, b.Min.X, b.Max.X), clamp(int(cx+radius)+1, b.Min.X, b.Max.X)
	minY, maxY := clamp(int(cy-radius)-1, b.Min.Y, b.Max.Y), clamp(int(cy+radius)+1, b.Min.Y, b.Max.Y)
	r2 := radius * radius
	for y := minY; y < maxY; y++ {
		for x := minX; x < maxX; x++ {
			dx, dy := float64(x)+0.5-cx, float64(y)+0.5-cy
			if dx*dx+dy*dy <= r2 {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

func fillTriangle(img *image.RGBA, x1, y1, x2, y2, x3, y3 float64, c color.RGBA) {
	b := img.Bounds()
	minX := clamp(int(math.Min(x1, math.Min(x2, x3))), b.Min.X, b.Max.X)
	maxX := clamp(int(math.Max(x1, math.Max(x2, x3)))+1, b.Min.X, b.Max.X)
	minY := clamp(int(math.Min(y1, math.Min(y2, y3))), b.Min.Y, b.Max.Y)
	maxY := clamp(int(math.Max(y1, math.Max(y2, y3)))+1, b.Min.Y, b.Max.Y)
	area := edge(x1, y1, x2, y2, x3, y3)
	if area == 0 {
		return
	}
	for y := minY; y < maxY; y++ {
		for x := minX; x < maxX; x++ {
			px, py := float64(x)+0.5, float64(y)+0.5
			w1 := edge(x2, y2, x3, y3, px, py) / area
			w2 := edge(x3, y3, x1, y1, px, py) / area
			w3 := edge(x1, y1, x2, y2, px, py) / area
			if w1 >= 0 && w2 >= 0 && w3 >= 0 {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

func edge(ax, ay, bx, by, px, py float64) float64 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// face returns a cached bold face of the given point size at 72 DPI.
func (r *Renderer) face(size float64) (font.Face, error) {
	r.fontOnce.Do(func() {
		r.font, r.fontErr = opentype.Parse(gobold.TTF)
	})
	if r.fontErr != nil {
		return nil, errors.Wrap(r.fontErr, errors.ErrCodeIconLoadFailed, "parse badge font")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.faces[size]; ok {
		return f, nil
	}
	f, err := opentype.NewFace(r.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIconLoadFailed, "create badge font face")
	}
	r.faces[size] = f
	r.logger.Debug("badge font face created", logging.Float64("size", size))
	return f, nil
}

//Personal.AI order the ending
