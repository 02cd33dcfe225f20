package canvas

import (
	"image"
	"image/color"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestCompositePixels(t *testing.T) {
	tests := []struct {
		name    string
		dst     []uint8
		src     []uint8
		op      Op
		opacity float64
		want    []uint8
	}{
		{
			name:    "opaque source replaces destination",
			dst:     []uint8{10, 20, 30, 255},
			src:     []uint8{200, 100, 50, 255},
			op:      OpSourceOver,
			opacity: 1,
			want:    []uint8{200, 100, 50, 255},
		},
		{
			name:    "transparent source leaves destination",
			dst:     []uint8{10, 20, 30, 255},
			src:     []uint8{200, 100, 50, 0},
			op:      OpSourceOver,
			opacity: 1,
			want:    []uint8{10, 20, 30, 255},
		},
		{
			name:    "source over empty keeps source color and scaled alpha",
			dst:     []uint8{0, 0, 0, 0},
			src:     []uint8{200, 100, 50, 255},
			op:      OpSourceOver,
			opacity: 0.5,
			want:    []uint8{200, 100, 50, 128},
		},
		{
			name:    "half source over opaque blends",
			dst:     []uint8{0, 0, 0, 255},
			src:     []uint8{200, 100, 50, 255},
			op:      OpSourceOver,
			opacity: 0.5,
			want:    []uint8{100, 50, 25, 255},
		},
		{
			name:    "destination-out erases coverage",
			dst:     []uint8{10, 20, 30, 255},
			src:     []uint8{255, 255, 255, 255},
			op:      OpDestinationOut,
			opacity: 1,
			want:    []uint8{10, 20, 30, 0},
		},
		{
			name:    "destination-out ignores source color",
			dst:     []uint8{10, 20, 30, 200},
			src:     []uint8{1, 2, 3, 255},
			op:      OpDestinationOut,
			opacity: 0.5,
			want:    []uint8{10, 20, 30, 100},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := append([]uint8(nil), tt.dst...)
			compositePixels(dst, tt.src, tt.op, tt.opacity)
			assert.Equal(t, tt.want, dst)
		})
	}
}

func TestParseHex(t *testing.T) {
	c, err := ParseHex("#ff0080")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 0xff, G: 0x00, B: 0x80, A: 0xff}, c)

	c, err = ParseHex("0f8")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 0x00, G: 0xff, B: 0x88, A: 0xff}, c)

	_, err = ParseHex("#12345")
	assert.Error(t, err)
	_, err = ParseHex("#zzzzzz")
	assert.Error(t, err)

	assert.Equal(t, "#ff0080", Hex(color.RGBA{R: 0xff, B: 0x80, A: 0xff}))
}

func TestHSL(t *testing.T) {
	assert.Equal(t, color.RGBA{R: 255, A: 255}, HSL(0, 1, 0.5))
	assert.Equal(t, color.RGBA{G: 255, A: 255}, HSL(120, 1, 0.5))
	assert.Equal(t, color.RGBA{B: 255, A: 255}, HSL(240, 1, 0.5))
	assert.Equal(t, HSL(0, 1, 0.5), HSL(360, 1, 0.5))
}

func TestColorPicker_Rainbow(t *testing.T) {
	p := &ColorPicker{Rainbow: true}

	assert.Equal(t, color.RGBA{R: 255, A: 255}, p.Next())
	assert.InDelta(t, 2.0, p.Hue(), 1e-9)

	for i := 0; i < 179; i++ {
		p.Next()
	}
	assert.InDelta(t, 0.0, p.Hue(), 1e-9, "hue wraps after 360 degrees")
}

func TestColorPicker_Fixed(t *testing.T) {
	base := color.RGBA{R: 1, G: 2, B: 3, A: 255}
	p := &ColorPicker{Base: base}
	assert.Equal(t, base, p.Next())
	assert.Equal(t, base, p.Next())
	assert.Zero(t, p.Hue())
}

func TestStyle(t *testing.T) {
	pen := DefaultStyle
	assert.Equal(t, 5, pen.LineWidth())
	assert.Equal(t, OpSourceOver, pen.op())

	eraser := pen
	eraser.Tool = ToolEraser
	assert.Equal(t, 10, eraser.LineWidth())
	assert.Equal(t, OpDestinationOut, eraser.op())

	neon := pen
	neon.Mode = BrushNeon
	assert.True(t, neon.HighEnergy())
	assert.False(t, pen.HighEnergy())
}

func TestParseNames(t *testing.T) {
	for _, s := range []string{"normal", "glow", "spray", "neon"} {
		m, err := ParseBrushMode(s)
		require.NoError(t, err)
		assert.Equal(t, BrushMode(s), m)
	}
	_, err := ParseBrushMode("crayon")
	assert.Error(t, err)

	for _, s := range []string{"transparent", "black", "white", "grid"} {
		_, err := ParseBackground(s)
		assert.NoError(t, err)
	}
	_, err = ParseBackground("plaid")
	assert.Error(t, err)
}

func TestExportName(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	assert.Equal(t, "artwork_1700000000123.png", ExportName(now))
}

func newSurface(t *testing.T) *Surface {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}
	s, err := NewSurface(120, 80, rand.New(rand.NewPCG(1, 1)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func alphaAt(s *Surface, x, y int) uint8 {
	return s.Mat().GetVecbAt(y, x)[3]
}

func TestNewSurface_InvalidSize(t *testing.T) {
	_, err := NewSurface(0, 10, nil)
	assert.Error(t, err)
}

func TestSurface_StrokeAndErase(t *testing.T) {
	s := newSurface(t)
	seg := Segment{From: image.Pt(10, 40), To: image.Pt(110, 40)}

	require.NoError(t, s.StrokeSegment(seg, DefaultStyle))
	px := s.Mat().GetVecbAt(40, 60)
	assert.Equal(t, uint8(0x80), px[0], "blue")
	assert.Equal(t, uint8(0xff), px[2], "red")
	assert.Equal(t, uint8(255), px[3])
	assert.Zero(t, alphaAt(s, 60, 5))

	eraser := DefaultStyle
	eraser.Tool = ToolEraser
	require.NoError(t, s.StrokeSegment(seg, eraser))
	assert.Zero(t, alphaAt(s, 60, 40))
}

func TestSurface_Brushes(t *testing.T) {
	for _, mode := range []BrushMode{BrushNormal, BrushGlow, BrushSpray, BrushNeon} {
		t.Run(string(mode), func(t *testing.T) {
			s := newSurface(t)
			style := DefaultStyle
			style.Mode = mode

			require.NoError(t, s.StrokeSegment(Segment{From: image.Pt(60, 40), To: image.Pt(60, 40)}, style))

			n, err := s.Mat().DataPtrUint8()
			require.NoError(t, err)
			covered := 0
			for i := 3; i < len(n); i += 4 {
				if n[i] > 0 {
					covered++
				}
			}
			assert.Positive(t, covered)
		})
	}
}

func TestSurface_SprayEraserKeepsPenRadius(t *testing.T) {
	s := newSurface(t)
	s.Mat().SetTo(gocv.NewScalar(0, 0, 0, 255))

	style := DefaultStyle
	style.Mode = BrushSpray
	style.Tool = ToolEraser
	center := image.Pt(60, 40)
	for range 50 {
		require.NoError(t, s.StrokeSegment(Segment{From: center, To: center}, style))
	}

	reach := style.Width + SprayDotSize
	erased := 0
	for y := 0; y < 80; y++ {
		for x := 0; x < 120; x++ {
			if alphaAt(s, x, y) == 255 {
				continue
			}
			erased++
			if x < center.X-reach || x > center.X+reach || y < center.Y-reach || y > center.Y+reach {
				t.Fatalf("pixel (%d, %d) erased outside ±%d of %v", x, y, reach, center)
			}
		}
	}
	assert.Positive(t, erased)
}

func TestSurface_GlowSpreadsBeyondLine(t *testing.T) {
	s := newSurface(t)
	style := DefaultStyle
	style.Mode = BrushGlow

	require.NoError(t, s.StrokeSegment(Segment{From: image.Pt(10, 40), To: image.Pt(110, 40)}, style))
	assert.Positive(t, alphaAt(s, 60, 48), "halo should cover pixels outside the line")
}

func TestSurface_SnapshotRoundTrip(t *testing.T) {
	s := newSurface(t)
	require.NoError(t, s.StrokeSegment(Segment{From: image.Pt(0, 0), To: image.Pt(119, 79)}, DefaultStyle))

	snap, err := s.Snapshot()
	require.NoError(t, err)

	s.Clear()
	assert.Zero(t, alphaAt(s, 60, 40))

	require.NoError(t, s.Load(snap))
	again, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, snap, again)
}

func TestSurface_LoadSizeMismatch(t *testing.T) {
	s := newSurface(t)
	other, err := NewSurface(10, 10, nil)
	require.NoError(t, err)
	defer other.Close()

	snap, err := other.Snapshot()
	require.NoError(t, err)
	assert.ErrorIs(t, s.Load(snap), ErrSizeMismatch)
}

func TestSurface_Export(t *testing.T) {
	s := newSurface(t)
	dir := t.TempDir()

	path, data, err := s.Export(dir, time.UnixMilli(42))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "artwork_42.png"), path)

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, onDisk)
}

func TestCompose(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	layer := NewLayer(40, 20)
	defer layer.Close()
	layer.SetTo(gocv.NewScalar(0, 0, 255, 255))

	out, err := Compose(nil, BackgroundWhite, 40, 20, &layer)
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, 3, out.Channels())
	px := out.GetVecbAt(10, 10)
	assert.Equal(t, []uint8{0, 0, 255}, []uint8(px))

	bare, err := Compose(nil, BackgroundWhite, 40, 20)
	require.NoError(t, err)
	defer bare.Close()
	assert.Equal(t, []uint8{255, 255, 255}, []uint8(bare.GetVecbAt(0, 0)))
}
