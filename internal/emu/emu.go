// Package emu bridges the escape-sequence parser to the cell grid.
//
// The parser (govte) is purely syntactic: it turns the pty byte stream
// into semantic callbacks. Emulator implements that callback surface
// and reduces every operation to the grid's primitives: single-cell
// writes on the slow dirty path, rectangle fills and region copies on
// the fast path, cursor recording, and the two mode bits the rest of
// the program cares about (cursor visibility and keypad mode).
package emu

import (
	"fmt"
	"io"

	"github.com/cliofy/govte"
	"github.com/unilibs/uniwidth"
	"go.uber.org/zap"

	"github.com/kmsterm/kmsterm/internal/term"
)

// Emulator owns the pen state and cursor discipline on top of a Screen.
// It is driven from the master-read handler only; no locking.
type Emulator struct {
	govte.NoopHandler

	scr *term.Screen
	out io.Writer
	log *zap.Logger

	pen     term.Attr
	defAttr term.Attr

	// Scrolling region, 0-based, top inclusive, bottom exclusive.
	top    int
	bottom int

	// Deferred autowrap: set after writing into the last column, the
	// next printable wraps first.
	wrapPending bool

	savedCursor term.Pos
	savedPen    term.Attr

	tabs []bool

	charsets [4]govte.StandardCharset
	active   govte.CharsetIndex
}

// New creates an emulator over scr. Parser replies (DSR, DA) are
// written to out, which is typically the pty master; a nil out drops
// them.
func New(scr *term.Screen, out io.Writer, log *zap.Logger) *Emulator {
	e := &Emulator{
		scr:     scr,
		out:     out,
		log:     log,
		pen:     scr.DefaultAttr(),
		defAttr: scr.DefaultAttr(),
		top:     0,
		bottom:  scr.Rows(),
		tabs:    make([]bool, scr.Cols()),
	}
	for i := 0; i < scr.Cols(); i += 8 {
		e.tabs[i] = true
	}
	return e
}

// Screen returns the grid the emulator mutates.
func (e *Emulator) Screen() *term.Screen { return e.scr }

func (e *Emulator) cols() int { return e.scr.Cols() }
func (e *Emulator) rows() int { return e.scr.Rows() }

func (e *Emulator) cursor() term.Pos { return e.scr.Cursor() }

func (e *Emulator) setCursor(col, row int) {
	col = clamp(col, 0, e.cols()-1)
	row = clamp(row, 0, e.rows()-1)
	e.scr.MoveCursor(term.Pos{Col: col, Row: row})
}

// scrollRegionUp removes n lines at the top of the scrolling region and
// blanks the bottom: one overlap-safe copy plus one fill, both on the
// region dirty path.
func (e *Emulator) scrollRegionUp(n int) {
	h := e.bottom - e.top
	if n <= 0 {
		return
	}
	if n >= h {
		e.scr.Fill(term.Rect{Begin: term.Pos{Col: 0, Row: e.top}, End: term.Pos{Col: e.cols(), Row: e.bottom}}, ' ', e.pen)
		return
	}
	e.scr.Copy(
		term.Rect{Begin: term.Pos{Col: 0, Row: e.top + n}, End: term.Pos{Col: e.cols(), Row: e.bottom}},
		term.Pos{Col: 0, Row: e.top},
	)
	e.scr.Fill(term.Rect{Begin: term.Pos{Col: 0, Row: e.bottom - n}, End: term.Pos{Col: e.cols(), Row: e.bottom}}, ' ', e.pen)
}

// scrollRegionDown inserts n blank lines at the top of the region.
func (e *Emulator) scrollRegionDown(n int) {
	h := e.bottom - e.top
	if n <= 0 {
		return
	}
	if n >= h {
		e.scr.Fill(term.Rect{Begin: term.Pos{Col: 0, Row: e.top}, End: term.Pos{Col: e.cols(), Row: e.bottom}}, ' ', e.pen)
		return
	}
	e.scr.Copy(
		term.Rect{Begin: term.Pos{Col: 0, Row: e.top}, End: term.Pos{Col: e.cols(), Row: e.bottom - n}},
		term.Pos{Col: 0, Row: e.top + n},
	)
	e.scr.Fill(term.Rect{Begin: term.Pos{Col: 0, Row: e.top}, End: term.Pos{Col: e.cols(), Row: e.top + n}}, ' ', e.pen)
}

func (e *Emulator) respond(format string, args ...any) {
	if e.out == nil {
		return
	}
	if _, err := fmt.Fprintf(e.out, format, args...); err != nil && e.log != nil {
		e.log.Warn("terminal reply dropped", zap.Error(err))
	}
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

// width reports how many columns a rune occupies for grid purposes:
// zero-width runes are dropped, everything else takes one cell
// (wide characters are deliberately not given a spacer cell).
func width(c rune) int {
	if uniwidth.RuneWidth(c) == 0 {
		return 0
	}
	return 1
}
