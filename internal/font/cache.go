// Package font provides the glyph cache behind the renderer: TrueType
// and OpenType faces rasterized to 8-bit coverage bitmaps, one cache
// entry per codepoint and weight.
package font

import (
	"fmt"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/kmsterm/kmsterm/internal/render"
)

type glyphKey struct {
	ch   rune
	bold bool
}

// Cache rasterizes glyphs on first use and keeps them for the process
// lifetime. The bold face is optional; bold lookups fall back to the
// normal face when none is configured.
type Cache struct {
	normal font.Face
	bold   font.Face

	cellW    int
	cellH    int
	baseline int

	glyphs map[glyphKey]render.Glyph
	misses map[glyphKey]bool
}

// LoadFace loads a TrueType or OpenType font from a file at the given
// pixel size.
func LoadFace(path string, size float64) (font.Face, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	ft, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	face, err := opentype.NewFace(ft, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("face %s: %w", path, err)
	}

	return face, nil
}

// New builds a cache over an already loaded face pair. bold may be nil.
// Cell dimensions derive from the normal face: the advance of 'M' and
// the line height, with the baseline at the ascent.
func New(normal, bold font.Face) *Cache {
	metrics := normal.Metrics()

	adv, _ := normal.GlyphAdvance('M')
	cellW := adv.Ceil()
	if cellW == 0 {
		cellW = 7
	}
	cellH := metrics.Height.Ceil()

	return &Cache{
		normal:   normal,
		bold:     bold,
		cellW:    cellW,
		cellH:    cellH,
		baseline: metrics.Ascent.Ceil(),
		glyphs:   make(map[glyphKey]render.Glyph),
		misses:   make(map[glyphKey]bool),
	}
}

// NewFromFiles loads the face pair from font files. boldPath may be
// empty.
func NewFromFiles(normalPath, boldPath string, size float64) (*Cache, error) {
	normal, err := LoadFace(normalPath, size)
	if err != nil {
		return nil, fmt.Errorf("normal font: %w", err)
	}

	var bold font.Face
	if boldPath != "" {
		bold, err = LoadFace(boldPath, size)
		if err != nil {
			return nil, fmt.Errorf("bold font: %w", err)
		}
	}

	return New(normal, bold), nil
}

// CellSize returns the fixed cell dimensions in pixels.
func (c *Cache) CellSize() (w, h int) { return c.cellW, c.cellH }

// Baseline returns the baseline offset from the cell top.
func (c *Cache) Baseline() int { return c.baseline }

// Lookup returns the coverage bitmap for a codepoint. A codepoint the
// face cannot map returns ok == false; the miss is remembered so the
// face is only consulted once per codepoint.
func (c *Cache) Lookup(ch rune, bold bool) (render.Glyph, bool) {
	key := glyphKey{ch: ch, bold: bold}
	if g, ok := c.glyphs[key]; ok {
		return g, true
	}
	if c.misses[key] {
		return render.Glyph{}, false
	}

	face := c.normal
	if bold && c.bold != nil {
		face = c.bold
	}

	g, ok := c.rasterize(face, ch)
	if !ok {
		c.misses[key] = true
		return render.Glyph{}, false
	}
	c.glyphs[key] = g
	return g, true
}

// rasterize renders one glyph with the dot at the origin and converts
// the returned mask into a tightly packed coverage bitmap.
func (c *Cache) rasterize(face font.Face, ch rune) (render.Glyph, bool) {
	dot := fixed.P(0, 0)
	dr, mask, maskp, advance, ok := face.Glyph(dot, ch)
	if !ok {
		return render.Glyph{}, false
	}

	w := dr.Dx()
	h := dr.Dy()
	g := render.Glyph{
		Alpha:    make([]byte, w*h),
		W:        w,
		H:        h,
		Pitch:    w,
		BearingX: dr.Min.X,
		BearingY: -dr.Min.Y,
		Advance:  advance.Ceil(),
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			_, _, _, a := mask.At(maskp.X+x, maskp.Y+y).RGBA()
			g.Alpha[y*w+x] = byte(a >> 8)
		}
	}

	return g, true
}

var _ render.GlyphSource = (*Cache)(nil)
