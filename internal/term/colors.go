package term

// Color indices of the 8-entry base palette. The bright half lives at
// index+NumColors and is selected by the renderer for bold foregrounds.
const (
	Black uint8 = iota
	Red
	Green
	Brown
	Blue
	Magenta
	Cyan
	White

	// NumColors is the size of the base palette.
	NumColors = 8
)

// Palette maps the 8 base and 8 bright color indices to packed
// 0x00RRGGBB pixels.
type Palette [2 * NumColors]uint32

// DefaultPalette is the classic console palette.
var DefaultPalette = Palette{
	Black:   0x000000,
	Red:     0x800000,
	Green:   0x008000,
	Brown:   0x808000,
	Blue:    0x000080,
	Magenta: 0x800080,
	Cyan:    0x008080,
	White:   0xc0c0c0,

	Black + NumColors:   0x808080,
	Red + NumColors:     0xff0000,
	Green + NumColors:   0x00ff00,
	Brown + NumColors:   0xffff00,
	Blue + NumColors:    0x0000ff,
	Magenta + NumColors: 0xff00ff,
	Cyan + NumColors:    0x00ffff,
	White + NumColors:   0xffffff,
}

// DefaultAttr is light text on a dark background.
var DefaultAttr = Attr{FG: White, BG: Black}

// WhiteAttr is the inverted default used with the white-background flag.
var WhiteAttr = Attr{FG: Black, BG: White}
