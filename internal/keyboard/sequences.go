package keyboard

// seqEntry carries the three escape sequences a special key can emit.
// An empty variant falls back to base.
type seqEntry struct {
	base string
	ctl  string
	alt  string

	// keypadBase replaces base while keypad application mode is on
	// (SS3 instead of CSI for the cursor and home/end keys).
	keypadBase string
}

// specialKeys is the terminal's sequence table for arrows, editing
// keys and F1-F12, with the Control and Alt variants xterm defines.
var specialKeys = map[Keysym]seqEntry{
	KeysymUp:    {base: "\x1b[A", keypadBase: "\x1bOA", ctl: "\x1b[1;5A", alt: "\x1b[1;3A"},
	KeysymDown:  {base: "\x1b[B", keypadBase: "\x1bOB", ctl: "\x1b[1;5B", alt: "\x1b[1;3B"},
	KeysymRight: {base: "\x1b[C", keypadBase: "\x1bOC", ctl: "\x1b[1;5C", alt: "\x1b[1;3C"},
	KeysymLeft:  {base: "\x1b[D", keypadBase: "\x1bOD", ctl: "\x1b[1;5D", alt: "\x1b[1;3D"},

	KeysymHome: {base: "\x1b[H", keypadBase: "\x1bOH", ctl: "\x1b[1;5H", alt: "\x1b[1;3H"},
	KeysymEnd:  {base: "\x1b[F", keypadBase: "\x1bOF", ctl: "\x1b[1;5F", alt: "\x1b[1;3F"},

	KeysymInsert:   {base: "\x1b[2~", ctl: "\x1b[2;5~", alt: "\x1b[2;3~"},
	KeysymDelete:   {base: "\x1b[3~", ctl: "\x1b[3;5~", alt: "\x1b[3;3~"},
	KeysymPageUp:   {base: "\x1b[5~", ctl: "\x1b[5;5~", alt: "\x1b[5;3~"},
	KeysymPageDown: {base: "\x1b[6~", ctl: "\x1b[6;5~", alt: "\x1b[6;3~"},

	KeysymF1:  {base: "\x1bOP", ctl: "\x1b[1;5P", alt: "\x1b[1;3P"},
	KeysymF2:  {base: "\x1bOQ", ctl: "\x1b[1;5Q", alt: "\x1b[1;3Q"},
	KeysymF3:  {base: "\x1bOR", ctl: "\x1b[1;5R", alt: "\x1b[1;3R"},
	KeysymF4:  {base: "\x1bOS", ctl: "\x1b[1;5S", alt: "\x1b[1;3S"},
	KeysymF5:  {base: "\x1b[15~", ctl: "\x1b[15;5~", alt: "\x1b[15;3~"},
	KeysymF6:  {base: "\x1b[17~", ctl: "\x1b[17;5~", alt: "\x1b[17;3~"},
	KeysymF7:  {base: "\x1b[18~", ctl: "\x1b[18;5~", alt: "\x1b[18;3~"},
	KeysymF8:  {base: "\x1b[19~", ctl: "\x1b[19;5~", alt: "\x1b[19;3~"},
	KeysymF9:  {base: "\x1b[20~", ctl: "\x1b[20;5~", alt: "\x1b[20;3~"},
	KeysymF10: {base: "\x1b[21~", ctl: "\x1b[21;5~", alt: "\x1b[21;3~"},
	KeysymF11: {base: "\x1b[23~", ctl: "\x1b[23;5~", alt: "\x1b[23;3~"},
	KeysymF12: {base: "\x1b[24~", ctl: "\x1b[24;5~", alt: "\x1b[24;3~"},
}

// Sequence returns the escape sequence for a special keysym, or "" when
// the keysym is not in the table. Variant selection order is Alt, then
// Control, then the base (keypad-aware) sequence.
func Sequence(sym Keysym, keypad, ctl, alt bool) string {
	e, ok := specialKeys[sym]
	if !ok {
		return ""
	}
	if alt && e.alt != "" {
		return e.alt
	}
	if ctl && e.ctl != "" {
		return e.ctl
	}
	if keypad && e.keypadBase != "" {
		return e.keypadBase
	}
	return e.base
}
