package term

// Screen is the terminal cell grid together with its damage state.
//
// Two grids are kept: cells, which the escape parser mutates, and prev,
// the snapshot of what was last painted. Damage accumulates in one of
// two forms. Single-character writes append their index to dirtyList
// and set the cell's Dirty mark; fills and copies touch too many cells
// for a list to pay off, so they raise dirtyFlag instead, which makes
// the next redraw scan the whole grid against prev. When dirtyFlag is
// set the list is ignored (and left as is) until the redraw resets both.
//
// Screen is not safe for concurrent use; the event loop dispatches all
// mutators on one goroutine.
type Screen struct {
	cols int
	rows int

	cells []Cell
	prev  []Cell

	dirtyList []int
	dirtyFlag bool

	cursor Pos

	// ShowCursor mirrors the DECTCEM state; the renderer inverts the
	// cursor cell only while it is set.
	ShowCursor bool

	// Keypad mirrors DECKPAM/DECKPNM; consulted by the keyboard
	// pipeline when choosing escape sequences.
	Keypad bool

	defAttr Attr
}

// NewScreen creates a cols x rows grid filled with spaces in the given
// default attribute. Both grids start identical, so a fresh screen has
// no damage.
func NewScreen(cols, rows int, defAttr Attr) *Screen {
	s := &Screen{
		cols:       cols,
		rows:       rows,
		cells:      make([]Cell, cols*rows),
		prev:       make([]Cell, cols*rows),
		dirtyList:  make([]int, 0, cols*rows),
		ShowCursor: true,
		defAttr:    defAttr,
	}
	for i := range s.cells {
		s.cells[i] = Cell{Ch: ' ', Attr: defAttr}
	}
	copy(s.prev, s.cells)
	return s
}

// Cols returns the grid width in cells.
func (s *Screen) Cols() int { return s.cols }

// Rows returns the grid height in cells.
func (s *Screen) Rows() int { return s.rows }

// DefaultAttr returns the attribute used for cleared cells.
func (s *Screen) DefaultAttr() Attr { return s.defAttr }

// Index converts a cell position to its flat grid index.
func (s *Screen) Index(col, row int) int { return row*s.cols + col }

// Contains reports whether the position lies inside the grid.
func (s *Screen) Contains(col, row int) bool {
	return col >= 0 && col < s.cols && row >= 0 && row < s.rows
}

// Cell returns the current cell at (col, row), or nil when out of range.
func (s *Screen) Cell(col, row int) *Cell {
	if !s.Contains(col, row) {
		return nil
	}
	return &s.cells[s.Index(col, row)]
}

// CellAt returns the current cell at a flat index.
func (s *Screen) CellAt(i int) *Cell { return &s.cells[i] }

// PrevAt returns the previously painted cell at a flat index.
func (s *Screen) PrevAt(i int) *Cell { return &s.prev[i] }

// Cursor returns the recorded cursor position.
func (s *Screen) Cursor() Pos { return s.cursor }

// MoveCursor records a new cursor position. Marking the old and new
// cursor cells dirty is left to the caller so that it happens atomically
// with the surrounding byte ingestion.
func (s *Screen) MoveCursor(p Pos) { s.cursor = p }

// DirtyFlag reports whether the whole grid is region-dirty.
func (s *Screen) DirtyFlag() bool { return s.dirtyFlag }

// DirtyCount returns the number of entries in the slow-path dirty list.
func (s *Screen) DirtyCount() int { return len(s.dirtyList) }

// HasDamage reports whether anything is waiting to be painted.
func (s *Screen) HasDamage() bool {
	return s.dirtyFlag || len(s.dirtyList) > 0
}

// MarkDirtySlow adds the cell at (col, row) to the slow-path dirty list.
// It is a no-op while the region flag is raised or when the cell is
// already listed, which keeps the list free of duplicates.
func (s *Screen) MarkDirtySlow(col, row int) {
	i := s.Index(col, row)
	if !s.dirtyFlag && !s.cells[i].Dirty {
		s.cells[i].Dirty = true
		s.dirtyList = append(s.dirtyList, i)
	}
}

// MarkAllDirty raises the region flag, forcing the next redraw to scan
// the full grid.
func (s *Screen) MarkAllDirty() { s.dirtyFlag = true }

// SetCellSlow writes one cell through the slow (per-cell) dirty path.
// Rewriting a cell with its current contents leaves the damage state
// untouched.
func (s *Screen) SetCellSlow(col, row int, ch rune, attr Attr) {
	c := &s.cells[s.Index(col, row)]
	if c.Same(ch, attr) {
		return
	}
	c.Ch = ch
	c.Attr = attr
	s.MarkDirtySlow(col, row)
}

// SetCellMedium writes one cell through the region path: on change the
// region flag is raised and the dirty list is left alone. Used inside
// fills, where a full-grid scan beats a huge index list.
func (s *Screen) SetCellMedium(col, row int, ch rune, attr Attr) {
	c := &s.cells[s.Index(col, row)]
	if c.Same(ch, attr) {
		return
	}
	c.Ch = ch
	c.Attr = attr
	s.dirtyFlag = true
}

// Fill writes ch/attr into every cell of the half-open rectangle using
// the region dirty path.
func (s *Screen) Fill(r Rect, ch rune, attr Attr) {
	for row := r.Begin.Row; row < r.End.Row; row++ {
		for col := r.Begin.Col; col < r.End.Col; col++ {
			s.SetCellMedium(col, row, ch, attr)
		}
	}
}

// Copy moves the half-open rectangle to dst. Row order is chosen so
// overlapping regions copy safely: moving down iterates rows bottom-up,
// otherwise top-down. Each row is one overlap-safe copy. The region
// flag is raised unconditionally.
func (s *Screen) Copy(r Rect, dst Pos) {
	w := r.Width()
	h := r.Height()
	srow := r.Begin.Row
	scol := r.Begin.Col
	trow := dst.Row
	tcol := dst.Col

	if srow < trow {
		for a := h - 1; a >= 0; a-- {
			copy(s.cells[s.Index(tcol, trow+a):s.Index(tcol, trow+a)+w],
				s.cells[s.Index(scol, srow+a):s.Index(scol, srow+a)+w])
		}
	} else {
		for a := 0; a < h; a++ {
			copy(s.cells[s.Index(tcol, trow+a):s.Index(tcol, trow+a)+w],
				s.cells[s.Index(scol, srow+a):s.Index(scol, srow+a)+w])
		}
	}
	s.dirtyFlag = true
}

// Reset restores every cell to a space in the default attribute, clears
// the cursor marks and damage state, and syncs the snapshot so that the
// screen reports no damage afterwards.
func (s *Screen) Reset() {
	for i := range s.cells {
		s.cells[i] = Cell{Ch: ' ', Attr: s.defAttr}
	}
	copy(s.prev, s.cells)
	s.dirtyList = s.dirtyList[:0]
	s.dirtyFlag = false
}

// Redraw runs one repaint pass and returns the number of cells painted.
//
// On the region path every cell is compared against the snapshot and
// painted only when it differs. On the list path each listed cell is
// painted unconditionally: a list entry implies a recorded change, and
// repainting an unchanged cell is harmless. Either way all Dirty marks
// are cleared, the snapshot is brought up to date, and the damage state
// resets to empty, after which another vblank request may be issued.
func (s *Screen) Redraw(paint func(col, row int)) int {
	painted := 0
	if s.dirtyFlag {
		for i := range s.cells {
			s.cells[i].Dirty = false
			if s.cells[i].Changed(&s.prev[i]) {
				paint(i%s.cols, i/s.cols)
				painted++
			}
		}
	} else {
		for _, i := range s.dirtyList {
			s.cells[i].Dirty = false
			paint(i%s.cols, i/s.cols)
			painted++
		}
		for i := range s.cells {
			s.cells[i].Dirty = false
		}
	}

	copy(s.prev, s.cells)
	s.dirtyList = s.dirtyList[:0]
	s.dirtyFlag = false
	return painted
}
