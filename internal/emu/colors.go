package emu

import (
	"github.com/cliofy/govte"

	"github.com/kmsterm/kmsterm/internal/term"
)

const (
	formatBold      = term.FormatBold
	formatUnderline = term.FormatUnderline
	formatReverse   = term.FormatReverse
)

func posAt(col, row int) term.Pos { return term.Pos{Col: col, Row: row} }

// rowRect is the half-open cell span [c0, c1) on one row.
func rowRect(row, c0, c1 int) term.Rect {
	return term.Rect{Begin: term.Pos{Col: c0, Row: row}, End: term.Pos{Col: c1, Row: row + 1}}
}

func gridRect(c0, r0, c1, r1 int) term.Rect {
	return term.Rect{Begin: term.Pos{Col: c0, Row: r0}, End: term.Pos{Col: c1, Row: r1}}
}

// mapColor reduces a parser color to the 8-entry palette index space.
// The first 8 indexed/named colors map one to one. Bright colors have
// no index of their own; for foregrounds they map to the base color
// plus the bold bit (the renderer then picks the bright palette half),
// for backgrounds to the base color alone. Everything else (256-color
// cube, grayscale ramp, true color) is matched to the nearest of the 16
// palette entries. A color the mapping cannot place falls back to the
// default for that plane.
func (e *Emulator) mapColor(c govte.Color, fg bool) (idx uint8, bright bool) {
	def := e.defAttr.BG
	if fg {
		def = e.defAttr.FG
	}

	if c.Type == govte.ColorTypeNamed {
		switch {
		case c.Named < 8:
			return uint8(c.Named), false
		case c.Named < 16:
			return uint8(c.Named) - 8, fg
		default:
			// Foreground/Background specials and anything newer.
			return def, false
		}
	}

	if c.Type == govte.ColorTypeIndexed && c.Index < 16 {
		if c.Index < 8 {
			return c.Index, false
		}
		return c.Index - 8, fg
	}

	rgb := c.ToRgb()
	n := nearestPaletteIndex(rgb.R, rgb.G, rgb.B)
	if n < term.NumColors {
		return n, false
	}
	return n - term.NumColors, fg
}

// nearestPaletteIndex finds the closest of the 16 palette colors by
// squared RGB distance.
func nearestPaletteIndex(r, g, b uint8) uint8 {
	best := 0
	bestDist := int64(1) << 62
	for i, p := range term.DefaultPalette {
		pr := int64(p >> 16 & 0xff)
		pg := int64(p >> 8 & 0xff)
		pb := int64(p & 0xff)
		dr := pr - int64(r)
		dg := pg - int64(g)
		db := pb - int64(b)
		d := dr*dr + dg*dg + db*db
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return uint8(best)
}
