package render

import (
	"github.com/kmsterm/kmsterm/internal/term"
)

// Renderer paints single cells from a Screen into a Framebuffer.
//
// Pivot rotates the whole surface in 90 degree steps (0..3). For odd
// pivots the cell rectangle is transposed; glyph pixels go through the
// same coordinate transform, so no pre-rotated bitmaps are needed.
type Renderer struct {
	FB      *Framebuffer
	Glyphs  GlyphSource
	Palette term.Palette
	Pivot   int

	// Alpha selects antialiased compositing; when false glyph coverage
	// is thresholded to 1-bit.
	Alpha bool

	cellW    int
	cellH    int
	baseline int
}

// New creates a renderer for the given framebuffer and glyph source.
func New(fb *Framebuffer, glyphs GlyphSource, palette term.Palette, pivot int, alpha bool) *Renderer {
	w, h := glyphs.CellSize()
	return &Renderer{
		FB:       fb,
		Glyphs:   glyphs,
		Palette:  palette,
		Pivot:    pivot,
		Alpha:    alpha,
		cellW:    w,
		cellH:    h,
		baseline: glyphs.Baseline(),
	}
}

// CellSize returns the pixel dimensions of one cell.
func (r *Renderer) CellSize() (w, h int) { return r.cellW, r.cellH }

// GridSize returns how many columns and rows fit on the framebuffer
// under the configured pivot.
func (r *Renderer) GridSize() (cols, rows int) {
	switch r.Pivot {
	case 1, 3:
		return r.FB.Height / r.cellW, r.FB.Width / r.cellH
	default:
		return r.FB.Width / r.cellW, r.FB.Height / r.cellH
	}
}

// resolveColor maps a palette index to a pixel, selecting the bright
// half for bold foregrounds. An index past the palette substitutes the
// default color for that plane.
func (r *Renderer) resolveColor(idx uint8, fg, bold bool) uint32 {
	if idx >= term.NumColors {
		if fg {
			idx = term.White
		} else {
			idx = term.Black
		}
	}
	if fg && bold {
		return r.Palette[idx+term.NumColors]
	}
	return r.Palette[idx]
}

// cellOrigin returns the pivot-dependent anchor point of a cell, the
// same quadrant mapping the cell rectangle derives from.
func (r *Renderer) cellOrigin(col, row int) (sx, sy int) {
	switch r.Pivot {
	case 1:
		return row * r.cellH, r.FB.Height - col*r.cellW
	case 2:
		return r.FB.Width - col*r.cellW, r.FB.Height - row*r.cellH
	case 3:
		return r.FB.Width - row*r.cellH, col * r.cellW
	default:
		return col * r.cellW, row * r.cellH
	}
}

// cellPixel transforms cell-local coordinates (gx right, gy down in
// reading orientation) into framebuffer coordinates under the pivot.
func (r *Renderer) cellPixel(sx, sy, gx, gy int) (x, y int) {
	switch r.Pivot {
	case 1:
		return sx + gy, sy - 1 - gx
	case 2:
		return sx - 1 - gx, sy - 1 - gy
	case 3:
		return sx - 1 - gy, sy + gx
	default:
		return sx + gx, sy + gy
	}
}

// DrawCell paints one cell: background fill, glyph composite, underline.
func (r *Renderer) DrawCell(s *term.Screen, col, row int) {
	cell := s.Cell(col, row)
	if cell == nil {
		return
	}

	attr := cell.Attr
	fgIdx, bgIdx := attr.FG, attr.BG
	if attr.Format&term.FormatReverse != 0 {
		fgIdx, bgIdx = bgIdx, fgIdx
	}
	bold := attr.Format&term.FormatBold != 0

	fg := r.resolveColor(fgIdx, true, bold)
	bg := r.resolveColor(bgIdx, false, false)
	if s.ShowCursor && cell.Cursor {
		fg, bg = bg, fg
	}

	sx, sy := r.cellOrigin(col, row)

	// Background rectangle, oriented per pivot.
	switch r.Pivot {
	case 1:
		r.FB.FillRect(sx, sy-r.cellW, r.cellH, r.cellW, bg)
	case 2:
		r.FB.FillRect(sx-r.cellW, sy-r.cellH, r.cellW, r.cellH, bg)
	case 3:
		r.FB.FillRect(sx-r.cellH, sy, r.cellH, r.cellW, bg)
	default:
		r.FB.FillRect(sx, sy, r.cellW, r.cellH, bg)
	}

	if cell.Ch != ' ' {
		if g, ok := r.Glyphs.Lookup(cell.Ch, bold); ok {
			r.blitGlyph(sx, sy, g, fg, bg)
		}
	}

	if attr.Format&term.FormatUnderline != 0 {
		uy := r.baseline + 2
		if uy < r.cellH {
			for gx := 0; gx < r.cellW; gx++ {
				x, y := r.cellPixel(sx, sy, gx, uy)
				r.FB.Set(x, y, fg)
			}
		}
	}
}

// blitGlyph composites one glyph bitmap over the already painted cell
// background. Antialiased mode blends fg over bg by coverage; mono mode
// thresholds coverage at one half.
func (r *Renderer) blitGlyph(sx, sy int, g Glyph, fg, bg uint32) {
	left := g.BearingX
	top := r.baseline - g.BearingY

	for iy := 0; iy < g.H; iy++ {
		for ix := 0; ix < g.W; ix++ {
			a := g.Alpha[iy*g.Pitch+ix]
			if a == 0 {
				continue
			}
			x, y := r.cellPixel(sx, sy, left+ix, top+iy)
			if r.Alpha {
				r.FB.Set(x, y, blend(fg, bg, a))
			} else if a >= 0x80 {
				r.FB.Set(x, y, fg)
			}
		}
	}
}

// blend mixes two XRGB pixels by an 8-bit coverage value.
func blend(fg, bg uint32, a byte) uint32 {
	if a == 0xff {
		return fg
	}
	af := uint32(a)
	ab := 255 - af
	rr := ((fg>>16&0xff)*af + (bg>>16&0xff)*ab) / 255
	gg := ((fg>>8&0xff)*af + (bg>>8&0xff)*ab) / 255
	bb := ((fg&0xff)*af + (bg&0xff)*ab) / 255
	return rr<<16 | gg<<8 | bb
}
