package render

import (
	"testing"

	"github.com/kmsterm/kmsterm/internal/term"
)

// fakeGlyphs serves a solid block for every codepoint: full coverage
// across the whole cell. Good enough to observe fg/bg decisions.
type fakeGlyphs struct {
	w, h int
	base int
	miss bool
}

func (f *fakeGlyphs) Lookup(ch rune, bold bool) (Glyph, bool) {
	if f.miss {
		return Glyph{}, false
	}
	alpha := make([]byte, f.w*f.h)
	for i := range alpha {
		alpha[i] = 0xff
	}
	return Glyph{Alpha: alpha, W: f.w, H: f.h, Pitch: f.w, BearingX: 0, BearingY: f.Baseline(), Advance: f.w}, true
}

func (f *fakeGlyphs) CellSize() (w, h int) { return f.w, f.h }

func (f *fakeGlyphs) Baseline() int {
	if f.base != 0 {
		return f.base
	}
	return f.h - 2
}

func newTestRenderer(cols, rows int) (*Renderer, *term.Screen) {
	g := &fakeGlyphs{w: 4, h: 6}
	fb := NewFramebuffer(make([]uint32, cols*4*rows*6), cols*4, rows*6, cols*4)
	r := New(fb, g, term.DefaultPalette, 0, true)
	s := term.NewScreen(cols, rows, term.DefaultAttr)
	return r, s
}

func TestDrawCellBackgroundAndGlyph(t *testing.T) {
	r, s := newTestRenderer(3, 2)
	s.SetCellSlow(0, 0, 'A', term.DefaultAttr)

	r.DrawCell(s, 0, 0)

	// Full-coverage fake glyph: pixel (0,0) must be the foreground.
	if got := r.FB.At(0, 0); got != term.DefaultPalette[term.White] {
		t.Errorf("expected fg pixel at origin, got %#06x", got)
	}
	// Neighbor cell untouched.
	if got := r.FB.At(4, 0); got != 0 {
		t.Errorf("neighbor cell written: %#06x", got)
	}
}

func TestDrawCellSpaceSkipsGlyph(t *testing.T) {
	r, s := newTestRenderer(3, 2)
	s.SetCellSlow(1, 0, ' ', term.Attr{FG: term.White, BG: term.Blue})

	r.DrawCell(s, 1, 0)

	for y := 0; y < 6; y++ {
		for x := 4; x < 8; x++ {
			if got := r.FB.At(x, y); got != term.DefaultPalette[term.Blue] {
				t.Fatalf("pixel (%d,%d) = %#06x, want bg fill", x, y, got)
			}
		}
	}
}

func TestDrawCellMissingGlyphPaintsBackground(t *testing.T) {
	g := &fakeGlyphs{w: 4, h: 6, miss: true}
	fb := NewFramebuffer(make([]uint32, 12*12), 12, 12, 12)
	r := New(fb, g, term.DefaultPalette, 0, true)
	s := term.NewScreen(3, 2, term.DefaultAttr)
	s.SetCellSlow(0, 0, '☃', term.Attr{FG: term.White, BG: term.Red})

	r.DrawCell(s, 0, 0)

	if got := fb.At(0, 0); got != term.DefaultPalette[term.Red] {
		t.Errorf("background not painted for missing glyph: %#06x", got)
	}
}

func TestDrawCellReverseSwapsColors(t *testing.T) {
	r, s := newTestRenderer(3, 2)
	s.SetCellSlow(0, 0, ' ', term.Attr{FG: term.Green, BG: term.Black, Format: term.FormatReverse})

	r.DrawCell(s, 0, 0)

	if got := r.FB.At(0, 0); got != term.DefaultPalette[term.Green] {
		t.Errorf("reverse should paint bg in fg color, got %#06x", got)
	}
}

func TestDrawCellBoldUsesBrightForeground(t *testing.T) {
	r, s := newTestRenderer(3, 2)
	s.SetCellSlow(0, 0, 'B', term.Attr{FG: term.Red, BG: term.Black, Format: term.FormatBold})

	r.DrawCell(s, 0, 0)

	if got := r.FB.At(0, 0); got != term.DefaultPalette[term.Red+term.NumColors] {
		t.Errorf("bold fg should be bright, got %#06x", got)
	}
}

func TestDrawCellCursorInverts(t *testing.T) {
	r, s := newTestRenderer(3, 2)
	s.SetCellSlow(0, 0, ' ', term.DefaultAttr)
	s.Cell(0, 0).Cursor = true
	s.ShowCursor = true

	r.DrawCell(s, 0, 0)

	if got := r.FB.At(0, 0); got != term.DefaultPalette[term.White] {
		t.Errorf("cursor cell bg should invert to fg color, got %#06x", got)
	}

	// Hidden cursor renders normally.
	s.ShowCursor = false
	r.DrawCell(s, 0, 0)
	if got := r.FB.At(0, 0); got != term.DefaultPalette[term.Black] {
		t.Errorf("hidden cursor should not invert, got %#06x", got)
	}
}

func TestDrawCellOutOfRangeColorSubstitutesDefault(t *testing.T) {
	r, s := newTestRenderer(3, 2)
	s.SetCellSlow(0, 0, ' ', term.Attr{FG: term.NumColors, BG: term.NumColors})

	// Must not panic; bg substitutes default black.
	r.DrawCell(s, 0, 0)

	if got := r.FB.At(0, 0); got != term.DefaultPalette[term.Black] {
		t.Errorf("out-of-range bg should fall back to black, got %#06x", got)
	}
}

func TestDrawCellBottomRightBoundary(t *testing.T) {
	r, s := newTestRenderer(3, 2)
	s.SetCellSlow(2, 1, ' ', term.Attr{FG: term.White, BG: term.Cyan})

	r.DrawCell(s, 2, 1)

	// Bottom-right pixel of the surface belongs to cell (W-1, H-1).
	if got := r.FB.At(11, 11); got != term.DefaultPalette[term.Cyan] {
		t.Errorf("bottom-right pixel not painted: %#06x", got)
	}
}

func TestUnderlineDrawnBelowBaseline(t *testing.T) {
	g := &fakeGlyphs{w: 4, h: 8, base: 5}
	fb := NewFramebuffer(make([]uint32, 12*16), 12, 16, 12)
	r := New(fb, g, term.DefaultPalette, 0, true)
	s := term.NewScreen(3, 2, term.DefaultAttr)
	s.SetCellSlow(0, 0, ' ', term.Attr{FG: term.Red, BG: term.Black, Format: term.FormatUnderline})

	r.DrawCell(s, 0, 0)

	underY := g.Baseline() + 2
	for x := 0; x < 4; x++ {
		if got := fb.At(x, underY); got != term.DefaultPalette[term.Red] {
			t.Fatalf("underline pixel (%d,%d) = %#06x", x, underY, got)
		}
	}
	// The row above the underline keeps the background.
	if got := fb.At(0, underY-1); got != term.DefaultPalette[term.Black] {
		t.Errorf("row above underline disturbed: %#06x", got)
	}
}

func TestClipDiscardsOutsideWrites(t *testing.T) {
	fb := NewFramebuffer(make([]uint32, 100), 10, 10, 10)
	fb.SetClip(Rect{0, 0, 5, 5})

	fb.Set(7, 7, 0xffffff)
	fb.FillRect(3, 3, 5, 5, 0xabcdef)

	if fb.Pix[7*10+7] != 0 {
		t.Error("write outside clip leaked through")
	}
	if fb.Pix[4*10+4] != 0xabcdef {
		t.Error("clipped fill lost its inside portion")
	}
	if fb.Pix[5*10+5] != 0 {
		t.Error("fill crossed the clip boundary")
	}
}

func TestGridSizeSwapsOnOddPivot(t *testing.T) {
	g := &fakeGlyphs{w: 4, h: 6}
	fb := NewFramebuffer(make([]uint32, 120*60), 120, 60, 120)

	r0 := New(fb, g, term.DefaultPalette, 0, true)
	cols, rows := r0.GridSize()
	if cols != 30 || rows != 10 {
		t.Errorf("pivot 0: got %dx%d, want 30x10", cols, rows)
	}

	r1 := New(fb, g, term.DefaultPalette, 1, true)
	cols, rows = r1.GridSize()
	if cols != 15 || rows != 20 {
		t.Errorf("pivot 1: got %dx%d, want 15x20", cols, rows)
	}
}

func TestPivotRotationStaysOnSurface(t *testing.T) {
	g := &fakeGlyphs{w: 4, h: 6}
	s := term.NewScreen(2, 2, term.DefaultAttr)
	s.SetCellSlow(1, 1, 'X', term.Attr{FG: term.White, BG: term.Blue})

	for pivot := 0; pivot < 4; pivot++ {
		w, h := 12, 12
		fb := NewFramebuffer(make([]uint32, w*h), w, h, w)
		r := New(fb, g, term.DefaultPalette, pivot, true)

		r.DrawCell(s, 0, 0)
		r.DrawCell(s, 1, 1)
		// The clip guards the surface; reaching here without a panic
		// and with the rotated cell's pixels written is the contract.
		// The fake glyph covers the whole cell, so those pixels carry
		// the foreground color.
		found := false
		for _, p := range fb.Pix {
			if p == term.DefaultPalette[term.White] {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("pivot %d: rotated cell left no glyph pixels", pivot)
		}
	}
}

func TestBlend(t *testing.T) {
	if got := blend(0xffffff, 0x000000, 0xff); got != 0xffffff {
		t.Errorf("full coverage should yield fg, got %#06x", got)
	}
	if got := blend(0xffffff, 0x000000, 0); got != 0 {
		t.Errorf("zero coverage should yield bg, got %#06x", got)
	}
	mid := blend(0xff0000, 0x000000, 0x80)
	if r := mid >> 16 & 0xff; r < 0x70 || r > 0x90 {
		t.Errorf("half coverage red channel off: %#06x", mid)
	}
}
