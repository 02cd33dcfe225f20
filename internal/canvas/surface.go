// Package canvas implements the persistent drawing surface, its brush
// policies and the compositing of layers into the display frame.
package canvas

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"gocv.io/x/gocv"
)

// ErrSizeMismatch is returned when a snapshot does not match the surface size.
var ErrSizeMismatch = errors.New("snapshot size does not match surface")

// Surface is a BGRA raster that strokes accumulate on. It is not safe for
// concurrent use; the owning session serializes access.
type Surface struct {
	width, height int
	mat           gocv.Mat
	scratch       gocv.Mat
	rng           *rand.Rand
}

// NewSurface allocates a transparent surface. A nil rng seeds a new generator
// for the spray brush.
func NewSurface(width, height int, rng *rand.Rand) (*Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid surface size %dx%d", width, height)
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Surface{
		width:   width,
		height:  height,
		mat:     NewLayer(width, height),
		scratch: NewLayer(width, height),
		rng:     rng,
	}, nil
}

// Close releases the underlying Mats.
func (s *Surface) Close() error {
	s.scratch.Close()
	return s.mat.Close()
}

// Size returns the surface dimensions in pixels.
func (s *Surface) Size() (width, height int) {
	return s.width, s.height
}

// Mat exposes the raster for compositing. Callers must not retain it past Close.
func (s *Surface) Mat() *gocv.Mat {
	return &s.mat
}

// Clear erases everything.
func (s *Surface) Clear() {
	ClearLayer(&s.mat)
}

// StrokeSegment renders one segment with style. Each pass is drawn into a
// scratch layer and composited with the tool's operator.
func (s *Surface) StrokeSegment(seg Segment, style Style) error {
	c := style.paint()
	w := style.LineWidth()
	op := style.op()

	switch style.Mode {
	case BrushGlow:
		if err := s.pass(op, style.Opacity, func(l *gocv.Mat) { drawHalo(l, seg, c, w, GlowBlur) }); err != nil {
			return err
		}
		return s.pass(op, style.Opacity, func(l *gocv.Mat) { drawLine(l, seg, c, w) })

	case BrushSpray:
		// The spray keeps the pen width for both tools.
		sw := max(style.Width, 1)
		return s.pass(op, style.Opacity, func(l *gocv.Mat) { s.drawSpray(l, seg.To, c, sw) })

	case BrushNeon:
		for i := 0; i < NeonPasses; i++ {
			pw := w + i*NeonWidthStep
			blur := NeonBlurBase + i*NeonBlurStep
			if err := s.pass(op, style.Opacity, func(l *gocv.Mat) { drawHalo(l, seg, c, pw, blur) }); err != nil {
				return err
			}
			if err := s.pass(op, style.Opacity, func(l *gocv.Mat) { drawLine(l, seg, c, pw) }); err != nil {
				return err
			}
		}
		return nil

	default:
		return s.pass(op, style.Opacity, func(l *gocv.Mat) { drawLine(l, seg, c, w) })
	}
}

func (s *Surface) pass(op Op, opacity float64, draw func(*gocv.Mat)) error {
	ClearLayer(&s.scratch)
	draw(&s.scratch)
	if err := Composite(&s.mat, &s.scratch, op, opacity); err != nil {
		return fmt.Errorf("stroke: %w", err)
	}
	return nil
}

// drawLine draws a round-capped line. A zero-length segment leaves a dot.
func drawLine(l *gocv.Mat, seg Segment, c color.RGBA, width int) {
	if seg.From == seg.To {
		gocv.Circle(l, seg.To, max(width/2, 1), c, -1)
		return
	}
	gocv.Line(l, seg.From, seg.To, c, width)
}

// drawHalo draws the line on a layer pre-filled with the stroke color at zero
// alpha, then blurs it so only coverage spreads.
func drawHalo(l *gocv.Mat, seg Segment, c color.RGBA, width, blur int) {
	l.SetTo(gocv.NewScalar(float64(c.B), float64(c.G), float64(c.R), 0))
	drawLine(l, seg, c, width)
	sigma := float64(blur) / 2
	gocv.GaussianBlur(*l, l, image.Point{}, sigma, sigma, gocv.BorderDefault)
}

// drawSpray scatters 2*width dots uniformly within ±width of p.
func (s *Surface) drawSpray(l *gocv.Mat, p image.Point, c color.RGBA, width int) {
	density := 2 * width
	for i := 0; i < density; i++ {
		x := p.X + int((s.rng.Float64()*2-1)*float64(width))
		y := p.Y + int((s.rng.Float64()*2-1)*float64(width))
		gocv.Rectangle(l, image.Rect(x, y, x+SprayDotSize-1, y+SprayDotSize-1), c, -1)
	}
}

// Snapshot encodes the surface as PNG.
func (s *Surface) Snapshot() ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.PNGFileExt, s.mat)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}

// Load replaces the surface contents with a PNG snapshot of the same size.
func (s *Surface) Load(data []byte) error {
	img, err := Decode(data)
	if err != nil {
		return err
	}
	defer img.Close()
	return s.Apply(&img)
}

// Decode turns a PNG snapshot into a BGRA Mat owned by the caller.
func Decode(data []byte) (gocv.Mat, error) {
	img, err := gocv.IMDecode(data, gocv.IMReadUnchanged)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("decode snapshot: %w", err)
	}
	if img.Empty() {
		img.Close()
		return gocv.NewMat(), errors.New("decode snapshot: empty image")
	}
	if img.Channels() == 3 {
		bgra := gocv.NewMat()
		gocv.CvtColor(img, &bgra, gocv.ColorBGRToBGRA)
		img.Close()
		img = bgra
	}
	return img, nil
}

// Apply copies a decoded BGRA image onto the surface.
func (s *Surface) Apply(img *gocv.Mat) error {
	if img.Cols() != s.width || img.Rows() != s.height {
		return fmt.Errorf("%w: got %dx%d, want %dx%d", ErrSizeMismatch, img.Cols(), img.Rows(), s.width, s.height)
	}
	img.CopyTo(&s.mat)
	return nil
}

// ExportName is the file name of an artwork exported at now.
func ExportName(now time.Time) string {
	return fmt.Sprintf("artwork_%d.png", now.UnixMilli())
}

// Export writes the surface as PNG into dir and returns the path and bytes.
func (s *Surface) Export(dir string, now time.Time) (string, []byte, error) {
	data, err := s.Snapshot()
	if err != nil {
		return "", nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, ExportName(now))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", nil, fmt.Errorf("write artwork: %w", err)
	}
	return path, data, nil
}

// Prepare decodes a snapshot for a later Apply. Decoding touches no surface
// state, so it may run off the owner's goroutine.
func (s *Surface) Prepare(data []byte) (*PendingImage, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return &PendingImage{surface: s, img: img}, nil
}

// PendingImage is a decoded snapshot waiting to be applied.
type PendingImage struct {
	surface *Surface
	img     gocv.Mat
}

// Apply copies the image onto the surface and releases it.
func (p *PendingImage) Apply() error {
	defer p.img.Close()
	return p.surface.Apply(&p.img)
}

// Discard releases the image without applying it.
func (p *PendingImage) Discard() {
	p.img.Close()
}
