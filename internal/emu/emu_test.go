package emu

import (
	"bytes"
	"testing"

	"github.com/cliofy/govte"

	"github.com/kmsterm/kmsterm/internal/term"
)

func newEmu(cols, rows int) (*Emulator, *govte.Processor, *term.Screen) {
	scr := term.NewScreen(cols, rows, term.DefaultAttr)
	e := New(scr, nil, nil)
	return e, govte.NewProcessor(e), scr
}

func feed(p *govte.Processor, s string) {
	p.Process([]byte(s))
}

func TestInputSingleChar(t *testing.T) {
	_, p, scr := newEmu(3, 2)

	feed(p, "A")

	if got := scr.Cell(0, 0).Ch; got != 'A' {
		t.Errorf("cell (0,0) = %q, want 'A'", got)
	}
	if cur := scr.Cursor(); cur != (term.Pos{Col: 1, Row: 0}) {
		t.Errorf("cursor = %v, want (1,0)", cur)
	}
	if scr.DirtyFlag() {
		t.Error("single putchar must use the list path")
	}
	if scr.DirtyCount() != 1 {
		t.Errorf("expected 1 dirty cell, got %d", scr.DirtyCount())
	}
}

func TestInputRewriteIsNoOp(t *testing.T) {
	_, p, scr := newEmu(3, 2)

	feed(p, "A")
	scr.Redraw(func(col, row int) {})

	// Home and write the same glyph again.
	feed(p, "\x1b[HA")

	if scr.HasDamage() {
		t.Error("rewriting an identical cell must leave no damage")
	}
}

func TestCarriageReturnLineFeed(t *testing.T) {
	_, p, scr := newEmu(10, 3)

	feed(p, "ab\r\ncd")

	if scr.Cell(0, 1).Ch != 'c' || scr.Cell(1, 1).Ch != 'd' {
		t.Error("second line not written after CRLF")
	}
}

func TestDeferredWrap(t *testing.T) {
	_, p, scr := newEmu(3, 2)

	feed(p, "abc")
	// Cursor parks on the last column until the next printable.
	if cur := scr.Cursor(); cur != (term.Pos{Col: 2, Row: 0}) {
		t.Errorf("cursor after filling a line = %v, want (2,0)", cur)
	}

	feed(p, "d")
	if got := scr.Cell(0, 1).Ch; got != 'd' {
		t.Errorf("wrapped char landed at %q, want row 1 col 0", got)
	}
}

func TestLineFeedAtBottomScrolls(t *testing.T) {
	_, p, scr := newEmu(4, 2)

	feed(p, "aa\r\nbb")
	feed(p, "\n") // at the bottom row: scrolls

	if !scr.DirtyFlag() {
		t.Error("scroll must raise the region flag")
	}
	if got := scr.Cell(0, 0).Ch; got != 'b' {
		t.Errorf("row 0 after scroll = %q, want 'b'", got)
	}
	if got := scr.Cell(0, 1).Ch; got != ' ' {
		t.Errorf("fresh bottom row = %q, want blank", got)
	}
}

func TestClearScreen(t *testing.T) {
	_, p, scr := newEmu(4, 3)

	feed(p, "abcd\r\nefgh")
	feed(p, "\x1b[2J")

	for row := 0; row < 3; row++ {
		for col := 0; col < 4; col++ {
			if got := scr.Cell(col, row).Ch; got != ' ' {
				t.Fatalf("cell (%d,%d) = %q after ED2", col, row, got)
			}
		}
	}
	if !scr.DirtyFlag() {
		t.Error("full clear should use the region path")
	}
}

func TestClearLineRight(t *testing.T) {
	_, p, scr := newEmu(6, 2)

	feed(p, "abcdef")
	feed(p, "\x1b[1;3H\x1b[K")

	if scr.Cell(1, 0).Ch != 'b' {
		t.Error("cells left of the cursor must survive EL0")
	}
	for col := 2; col < 6; col++ {
		if scr.Cell(col, 0).Ch != ' ' {
			t.Fatalf("col %d not cleared", col)
		}
	}
}

func TestSGRAttributes(t *testing.T) {
	_, p, scr := newEmu(8, 2)

	feed(p, "\x1b[1;4;31mX")

	attr := scr.Cell(0, 0).Attr
	if attr.Format&term.FormatBold == 0 {
		t.Error("bold not applied")
	}
	if attr.Format&term.FormatUnderline == 0 {
		t.Error("underline not applied")
	}
	if attr.FG != term.Red {
		t.Errorf("fg = %d, want red", attr.FG)
	}

	feed(p, "\x1b[0mY")
	attr = scr.Cell(1, 0).Attr
	if attr.Format != 0 || attr.FG != term.DefaultAttr.FG {
		t.Errorf("SGR 0 did not reset pen: %+v", attr)
	}
}

func TestBrightForegroundMapsToBoldBase(t *testing.T) {
	_, p, scr := newEmu(4, 2)

	feed(p, "\x1b[91mX") // bright red

	attr := scr.Cell(0, 0).Attr
	if attr.FG != term.Red {
		t.Errorf("fg = %d, want base red", attr.FG)
	}
	if attr.Format&term.FormatBold == 0 {
		t.Error("bright fg should set the bold bit")
	}
}

func TestReverseVideo(t *testing.T) {
	_, p, scr := newEmu(4, 2)

	feed(p, "\x1b[7mX")

	if scr.Cell(0, 0).Attr.Format&term.FormatReverse == 0 {
		t.Error("reverse not applied")
	}
}

func TestCursorVisibilityMode(t *testing.T) {
	_, p, scr := newEmu(4, 2)

	feed(p, "\x1b[?25l")
	if scr.ShowCursor {
		t.Error("DECTCEM reset should hide the cursor")
	}
	feed(p, "\x1b[?25h")
	if !scr.ShowCursor {
		t.Error("DECTCEM set should show the cursor")
	}
}

func TestKeypadMode(t *testing.T) {
	_, p, scr := newEmu(4, 2)

	feed(p, "\x1b[?66l")
	if !scr.Keypad {
		t.Error("DECNKM reset should enable keypad application mode")
	}
	feed(p, "\x1b[?66h")
	if scr.Keypad {
		t.Error("DECNKM set should disable keypad application mode")
	}
}

func TestDeviceStatusReplies(t *testing.T) {
	scr := term.NewScreen(10, 5, term.DefaultAttr)
	var out bytes.Buffer
	e := New(scr, &out, nil)
	p := govte.NewProcessor(e)

	feed(p, "\x1b[3;4H\x1b[6n")

	if got := out.String(); got != "\x1b[3;4R" {
		t.Errorf("CPR reply = %q, want ESC[3;4R", got)
	}

	out.Reset()
	feed(p, "\x1b[5n")
	if got := out.String(); got != "\x1b[0n" {
		t.Errorf("DSR reply = %q", got)
	}
}

func TestScrollRegion(t *testing.T) {
	_, p, scr := newEmu(4, 4)

	// Region rows 2..3 (1-based), fill it, then scroll inside it.
	feed(p, "\x1b[2;3r")
	feed(p, "\x1b[2;1Haaaa")
	feed(p, "\x1b[3;1Hbbbb")
	feed(p, "\x1b[3;1H\n") // LF at region bottom scrolls the region only

	if got := scr.Cell(0, 1).Ch; got != 'b' {
		t.Errorf("region row 2 = %q, want scrolled 'b'", got)
	}
	if got := scr.Cell(0, 2).Ch; got != ' ' {
		t.Errorf("region bottom = %q, want blank", got)
	}
	if got := scr.Cell(0, 0).Ch; got != ' ' {
		t.Errorf("row above region disturbed: %q", got)
	}
}

func TestInsertDeleteChars(t *testing.T) {
	_, p, scr := newEmu(6, 2)

	feed(p, "abcdef\x1b[1;2H\x1b[2@") // insert 2 blanks at col 2

	want := "a  bcd"
	for i, ch := range want {
		if got := scr.Cell(i, 0).Ch; got != ch {
			t.Fatalf("after ICH col %d = %q, want %q", i, got, ch)
		}
	}

	feed(p, "\x1b[1;2H\x1b[2P") // delete them again
	want = "abcd  "
	for i, ch := range want {
		if got := scr.Cell(i, 0).Ch; got != ch {
			t.Fatalf("after DCH col %d = %q, want %q", i, got, ch)
		}
	}
}

func TestLineDrawingCharset(t *testing.T) {
	_, p, scr := newEmu(4, 2)

	feed(p, "\x1b(0q\x1b(Bq")

	if got := scr.Cell(0, 0).Ch; got != '─' {
		t.Errorf("line-drawing q = %q, want box horizontal", got)
	}
	if got := scr.Cell(1, 0).Ch; got != 'q' {
		t.Errorf("after switching back = %q, want plain q", got)
	}
}

func TestZeroWidthRuneDropped(t *testing.T) {
	_, p, scr := newEmu(4, 2)

	feed(p, "á") // combining acute

	if cur := scr.Cursor(); cur != (term.Pos{Col: 1, Row: 0}) {
		t.Errorf("combining mark moved the cursor: %v", cur)
	}
	if scr.Cell(0, 0).Ch != 'a' {
		t.Error("base character lost")
	}
	if scr.Cell(1, 0).Ch != ' ' {
		t.Error("combining mark occupied a cell")
	}
}

func TestResetRestoresPowerOnState(t *testing.T) {
	_, p, scr := newEmu(5, 3)

	feed(p, "\x1b[7mhello\x1b[?25l\x1b[2;3r")
	feed(p, "\x1bc")

	if !scr.ShowCursor {
		t.Error("RIS should show the cursor")
	}
	if cur := scr.Cursor(); cur != (term.Pos{Col: 0, Row: 0}) {
		t.Errorf("RIS should home the cursor, got %v", cur)
	}
	if !scr.DirtyFlag() {
		t.Error("RIS should mark the whole grid for repaint")
	}
}
