package emu

import (
	"github.com/cliofy/govte"
)

// DECNKM, numeric keypad mode; govte exposes private modes it has no
// constant for as 0x200 plus the parameter value.
const modeNumericKeypad = govte.Mode(0x200 + 66)

// Input writes one printable character at the cursor and advances it,
// honoring the active charset and deferred autowrap.
func (e *Emulator) Input(c rune) {
	if width(c) == 0 {
		return
	}
	c = e.charsets[e.active].Map(c)

	cur := e.cursor()
	if e.wrapPending {
		e.wrapPending = false
		cur.Col = 0
		if cur.Row+1 >= e.bottom {
			e.scrollRegionUp(1)
		} else {
			cur.Row++
		}
		e.scr.MoveCursor(cur)
	}

	e.scr.SetCellSlow(cur.Col, cur.Row, c, e.pen)

	if cur.Col+1 >= e.cols() {
		e.wrapPending = true
	} else {
		e.setCursor(cur.Col+1, cur.Row)
	}
}

// Bell is deliberately silent; there is no speaker device to drive.
func (e *Emulator) Bell() {
	if e.log != nil {
		e.log.Debug("bell")
	}
}

// LineFeed moves down one line, scrolling the region at its bottom.
func (e *Emulator) LineFeed() {
	e.wrapPending = false
	cur := e.cursor()
	if cur.Row+1 >= e.bottom {
		e.scrollRegionUp(1)
	} else {
		e.setCursor(cur.Col, cur.Row+1)
	}
}

// CarriageReturn moves to column zero.
func (e *Emulator) CarriageReturn() {
	e.wrapPending = false
	e.setCursor(0, e.cursor().Row)
}

// Backspace moves one column left, stopping at the margin.
func (e *Emulator) Backspace() {
	e.wrapPending = false
	cur := e.cursor()
	if cur.Col > 0 {
		e.setCursor(cur.Col-1, cur.Row)
	}
}

// Tab advances to the next tab stop.
func (e *Emulator) Tab() { e.TabForward(1) }

// TabForward advances count tab stops, stopping at the right margin.
func (e *Emulator) TabForward(count int) {
	cur := e.cursor()
	col := cur.Col
	for ; count > 0 && col < e.cols()-1; count-- {
		col++
		for col < e.cols()-1 && !e.tabs[col] {
			col++
		}
	}
	e.setCursor(col, cur.Row)
}

// TabBackward moves back count tab stops, stopping at column zero.
func (e *Emulator) TabBackward(count int) {
	cur := e.cursor()
	col := cur.Col
	for ; count > 0 && col > 0; count-- {
		col--
		for col > 0 && !e.tabs[col] {
			col--
		}
	}
	e.setCursor(col, cur.Row)
}

// SetTabStop marks a tab stop at the cursor column.
func (e *Emulator) SetTabStop() {
	e.tabs[e.cursor().Col] = true
}

// ClearTabStop clears the current or all tab stops.
func (e *Emulator) ClearTabStop(mode govte.TabulationClearMode) {
	switch mode {
	case govte.TabClearCurrent:
		e.tabs[e.cursor().Col] = false
	case govte.TabClearAll:
		for i := range e.tabs {
			e.tabs[i] = false
		}
	}
}

// Goto moves to an absolute 1-based position.
func (e *Emulator) Goto(line, col int) {
	e.wrapPending = false
	e.setCursor(col-1, line-1)
}

// GotoLine moves to a 1-based line, keeping the column.
func (e *Emulator) GotoLine(line int) {
	e.wrapPending = false
	e.setCursor(e.cursor().Col, line-1)
}

// GotoCol moves to a 1-based column, keeping the line.
func (e *Emulator) GotoCol(col int) {
	e.wrapPending = false
	e.setCursor(col-1, e.cursor().Row)
}

// MoveUp moves up by lines, clamped at the top.
func (e *Emulator) MoveUp(lines int) {
	e.wrapPending = false
	cur := e.cursor()
	e.setCursor(cur.Col, cur.Row-lines)
}

// MoveDown moves down by lines, clamped at the bottom.
func (e *Emulator) MoveDown(lines int) {
	e.wrapPending = false
	cur := e.cursor()
	e.setCursor(cur.Col, cur.Row+lines)
}

// MoveForward moves right by cols, clamped at the margin.
func (e *Emulator) MoveForward(cols int) {
	cur := e.cursor()
	e.setCursor(cur.Col+cols, cur.Row)
}

// MoveBackward moves left by cols, clamped at column zero.
func (e *Emulator) MoveBackward(cols int) {
	cur := e.cursor()
	e.setCursor(cur.Col-cols, cur.Row)
}

// MoveDownAndCR moves down and to column zero.
func (e *Emulator) MoveDownAndCR(lines int) {
	e.wrapPending = false
	e.setCursor(0, e.cursor().Row+lines)
}

// MoveUpAndCR moves up and to column zero.
func (e *Emulator) MoveUpAndCR(lines int) {
	e.wrapPending = false
	e.setCursor(0, e.cursor().Row-lines)
}

// SaveCursorPosition stores the cursor and pen for DECRC.
func (e *Emulator) SaveCursorPosition() {
	e.savedCursor = e.cursor()
	e.savedPen = e.pen
}

// RestoreCursorPosition restores the state saved by DECSC.
func (e *Emulator) RestoreCursorPosition() {
	e.wrapPending = false
	e.setCursor(e.savedCursor.Col, e.savedCursor.Row)
	e.pen = e.savedPen
}

// InsertBlank shifts the rest of the line right and blanks count cells
// at the cursor.
func (e *Emulator) InsertBlank(count int) {
	cur := e.cursor()
	count = clamp(count, 1, e.cols()-cur.Col)
	if cur.Col+count < e.cols() {
		e.scr.Copy(
			rowRect(cur.Row, cur.Col, e.cols()-count),
			posAt(cur.Col+count, cur.Row),
		)
	}
	e.scr.Fill(rowRect(cur.Row, cur.Col, cur.Col+count), ' ', e.pen)
}

// DeleteChars shifts the rest of the line left over count cells at the
// cursor and blanks the tail.
func (e *Emulator) DeleteChars(count int) {
	cur := e.cursor()
	count = clamp(count, 1, e.cols()-cur.Col)
	if cur.Col+count < e.cols() {
		e.scr.Copy(
			rowRect(cur.Row, cur.Col+count, e.cols()),
			posAt(cur.Col, cur.Row),
		)
	}
	e.scr.Fill(rowRect(cur.Row, e.cols()-count, e.cols()), ' ', e.pen)
}

// EraseChars blanks count cells from the cursor without moving anything.
func (e *Emulator) EraseChars(count int) {
	cur := e.cursor()
	count = clamp(count, 1, e.cols()-cur.Col)
	e.scr.Fill(rowRect(cur.Row, cur.Col, cur.Col+count), ' ', e.pen)
}

// InsertLines scrolls the region below the cursor down, opening count
// blank lines. Outside the scrolling region it is ignored.
func (e *Emulator) InsertLines(count int) {
	cur := e.cursor()
	if cur.Row < e.top || cur.Row >= e.bottom {
		return
	}
	savedTop := e.top
	e.top = cur.Row
	e.scrollRegionDown(clamp(count, 1, e.bottom-cur.Row))
	e.top = savedTop
	e.setCursor(0, cur.Row)
}

// DeleteLines scrolls the region below the cursor up over count lines.
func (e *Emulator) DeleteLines(count int) {
	cur := e.cursor()
	if cur.Row < e.top || cur.Row >= e.bottom {
		return
	}
	savedTop := e.top
	e.top = cur.Row
	e.scrollRegionUp(clamp(count, 1, e.bottom-cur.Row))
	e.top = savedTop
	e.setCursor(0, cur.Row)
}

// ClearLine blanks part of the cursor line.
func (e *Emulator) ClearLine(mode govte.LineClearMode) {
	cur := e.cursor()
	switch mode {
	case govte.LineClearRight:
		e.scr.Fill(rowRect(cur.Row, cur.Col, e.cols()), ' ', e.pen)
	case govte.LineClearLeft:
		e.scr.Fill(rowRect(cur.Row, 0, cur.Col+1), ' ', e.pen)
	case govte.LineClearAll:
		e.scr.Fill(rowRect(cur.Row, 0, e.cols()), ' ', e.pen)
	}
}

// ClearScreen blanks part of the grid.
func (e *Emulator) ClearScreen(mode govte.ClearMode) {
	cur := e.cursor()
	switch mode {
	case govte.ClearBelow:
		e.scr.Fill(rowRect(cur.Row, cur.Col, e.cols()), ' ', e.pen)
		if cur.Row+1 < e.rows() {
			e.scr.Fill(gridRect(0, cur.Row+1, e.cols(), e.rows()), ' ', e.pen)
		}
	case govte.ClearAbove:
		if cur.Row > 0 {
			e.scr.Fill(gridRect(0, 0, e.cols(), cur.Row), ' ', e.pen)
		}
		e.scr.Fill(rowRect(cur.Row, 0, cur.Col+1), ' ', e.pen)
	case govte.ClearAll:
		e.scr.Fill(gridRect(0, 0, e.cols(), e.rows()), ' ', e.pen)
	}
}

// ScrollUp scrolls the region up by lines.
func (e *Emulator) ScrollUp(lines int) { e.scrollRegionUp(lines) }

// ScrollDown scrolls the region down by lines.
func (e *Emulator) ScrollDown(lines int) { e.scrollRegionDown(lines) }

// SetScrollingRegion installs a 1-based inclusive scrolling region and
// homes the cursor, as DECSTBM does.
func (e *Emulator) SetScrollingRegion(top, bottom int) {
	if bottom <= top {
		return
	}
	e.top = clamp(top-1, 0, e.rows()-1)
	e.bottom = clamp(bottom, e.top+1, e.rows())
	e.setCursor(0, 0)
}

// SetAttribute folds one SGR attribute into the pen. Attributes the
// cell format cannot represent are dropped.
func (e *Emulator) SetAttribute(attr govte.Attr) {
	switch attr {
	case govte.AttrBold:
		e.pen.Format |= formatBold
	case govte.AttrUnderline:
		e.pen.Format |= formatUnderline
	case govte.AttrReverse:
		e.pen.Format |= formatReverse
	}
}

// ResetAttributes clears all format bits.
func (e *Emulator) ResetAttributes() {
	e.pen.Format = 0
}

// SetForeground changes the pen foreground.
func (e *Emulator) SetForeground(color govte.Color) {
	idx, bright := e.mapColor(color, true)
	e.pen.FG = idx
	if bright {
		e.pen.Format |= formatBold
	}
}

// SetBackground changes the pen background.
func (e *Emulator) SetBackground(color govte.Color) {
	idx, _ := e.mapColor(color, false)
	e.pen.BG = idx
}

// ResetColors restores the default pen colors.
func (e *Emulator) ResetColors() {
	e.pen.FG = e.defAttr.FG
	e.pen.BG = e.defAttr.BG
}

// SetCursorVisible tracks DECTCEM.
func (e *Emulator) SetCursorVisible(visible bool) {
	e.scr.ShowCursor = visible
}

// SetMode handles the mode switches the emulator models.
func (e *Emulator) SetMode(mode govte.Mode) {
	switch mode {
	case govte.ModeShowCursor:
		e.scr.ShowCursor = true
	case govte.ModeApplicationKeypad:
		e.scr.Keypad = true
	case modeNumericKeypad:
		// DECNKM set means numeric, i.e. keypad application mode off.
		e.scr.Keypad = false
	}
}

// ResetMode undoes SetMode.
func (e *Emulator) ResetMode(mode govte.Mode) {
	switch mode {
	case govte.ModeShowCursor:
		e.scr.ShowCursor = false
	case govte.ModeApplicationKeypad:
		e.scr.Keypad = false
	case modeNumericKeypad:
		e.scr.Keypad = true
	}
}

// DeviceStatus answers DSR 5 (status report) and DSR 6 (cursor
// position) on the pty master.
func (e *Emulator) DeviceStatus(kind int) {
	switch kind {
	case 5:
		e.respond("\x1b[0n")
	case 6:
		cur := e.cursor()
		e.respond("\x1b[%d;%dR", cur.Row+1, cur.Col+1)
	}
}

// IdentifyTerminal answers primary DA as a VT102.
func (e *Emulator) IdentifyTerminal() {
	e.respond("\x1b[?6c")
}

// Reset restores the power-on state: grid, pen, cursor, tabs, modes.
// The grid is blanked through the fill path so the painted snapshot
// stays valid and the next vblank actually clears the display.
func (e *Emulator) Reset() {
	e.pen = e.defAttr
	e.scr.Fill(gridRect(0, 0, e.cols(), e.rows()), ' ', e.defAttr)
	e.scr.MoveCursor(posAt(0, 0))
	e.scr.ShowCursor = true
	e.scr.Keypad = false
	e.top = 0
	e.bottom = e.rows()
	e.wrapPending = false
	e.savedCursor = posAt(0, 0)
	e.savedPen = e.defAttr
	for i := range e.tabs {
		e.tabs[i] = i%8 == 0
	}
	e.charsets = [4]govte.StandardCharset{}
	e.active = 0
}

// HardReset is indistinguishable from Reset for this terminal.
func (e *Emulator) HardReset() { e.Reset() }

// ConfigureCharset assigns a standard charset to a G-slot.
func (e *Emulator) ConfigureCharset(index govte.CharsetIndex, charset govte.StandardCharset) {
	if index >= 0 && int(index) < len(e.charsets) {
		e.charsets[index] = charset
	}
}

// SetActiveCharset switches the active G-slot (SI/SO).
func (e *Emulator) SetActiveCharset(index govte.CharsetIndex) {
	if index >= 0 && int(index) < len(e.charsets) {
		e.active = index
	}
}

var _ govte.Handler = (*Emulator)(nil)
