// Package term implements the terminal cell grid and its dirty tracking.
//
// A Screen holds two copies of the character grid: the cells the escape
// parser mutates and a snapshot of what was last painted to the display.
// Mutations accumulate damage either as an explicit list of cell indices
// (cheap for single-character output) or as a single region flag (cheap
// for fills and scrolls); the redraw engine consumes whichever is active.
package term

// Format is a bitmask of cell rendering attributes.
type Format uint8

const (
	FormatBold Format = 1 << iota
	FormatUnderline
	FormatReverse
)

// Attr stores the packed display attribute of one cell: palette indices
// for foreground and background plus format bits.
type Attr struct {
	FG     uint8
	BG     uint8
	Format Format
}

// Cell is one character position in the grid.
//
// Cursor marks the cell the logical cursor inhabits; at most one cell in
// a Screen carries it. Dirty marks membership in the slow-path dirty
// list. Neither takes part in attribute equality.
type Cell struct {
	Ch     rune
	Attr   Attr
	Cursor bool
	Dirty  bool
}

// Same reports whether writing (ch, attr) into the cell would be a no-op.
// Comparison is structural on the character and on (format, fg, bg); the
// cursor and dirty marks are ignored.
func (c *Cell) Same(ch rune, attr Attr) bool {
	return c.Ch == ch &&
		c.Attr.Format == attr.Format &&
		c.Attr.FG == attr.FG &&
		c.Attr.BG == attr.BG
}

// Changed reports whether the cell differs from prev in any way the
// renderer can see: character, cursor mark, or attribute.
func (c *Cell) Changed(prev *Cell) bool {
	return c.Ch != prev.Ch ||
		c.Cursor != prev.Cursor ||
		c.Attr.Format != prev.Attr.Format ||
		c.Attr.FG != prev.Attr.FG ||
		c.Attr.BG != prev.Attr.BG
}

// Pos addresses a cell by column and row.
type Pos struct {
	Col int
	Row int
}

// Rect is a half-open cell rectangle: Begin is included, End is not.
type Rect struct {
	Begin Pos
	End   Pos
}

// Width returns the number of columns the rectangle spans.
func (r Rect) Width() int { return r.End.Col - r.Begin.Col }

// Height returns the number of rows the rectangle spans.
func (r Rect) Height() int { return r.End.Row - r.Begin.Row }
