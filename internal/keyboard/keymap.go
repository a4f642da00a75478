package keyboard

import (
	"strings"
)

// LED bits, numerically identical to what KDSETLED expects.
const (
	LedScrollLock = 0x01
	LedNumLock    = 0x02
	LedCapsLock   = 0x04
)

// xkbOffset converts evdev keycodes into the xkb numbering the pipeline
// uses (xkb reserves 0-7).
const xkbOffset = 8

// Keymap resolves keycodes to keysyms and UTF-8 under live modifier
// state. It is the seam to the layout backend; Map is the built-in
// implementation.
type Keymap interface {
	// KeysymFor returns the keysym for an xkb keycode under the
	// current modifier state, or NoSymbol.
	KeysymFor(keycode uint32) Keysym

	// UTF8For returns the text an xkb keycode produces, "" for keys
	// without text.
	UTF8For(keycode uint32) string

	// Update tracks a key transition's effect on modifiers and locks.
	// It reports whether the LED state changed.
	Update(keycode uint32, pressed bool) bool

	// ModActive reports whether a modifier is effective, by its xkb
	// name: "Shift", "Control", "Mod1".
	ModActive(name string) bool

	// Repeats reports whether the key auto-repeats.
	Repeats(keycode uint32) bool

	// LEDs returns the lock LED bits.
	LEDs() int

	// Reset drops all modifier and lock state.
	Reset()
}

// Map is the built-in Keymap over the layout registry.
type Map struct {
	layout *layout

	shiftL, shiftR bool
	ctrlL, ctrlR   bool
	altL, altR     bool

	caps   bool
	num    bool
	scroll bool

	// ctrl:nocaps turns Caps Lock into another Control.
	ctrlNoCaps bool
	capsAsCtrl bool
}

// NewMap builds a keymap for the given layout, variant and xkb-style
// option string (comma separated; only ctrl:nocaps is honored).
func NewMap(layoutName, variant, options string) (*Map, error) {
	l, err := lookupLayout(layoutName, variant)
	if err != nil {
		return nil, err
	}
	m := &Map{layout: l}
	for _, opt := range strings.Split(options, ",") {
		if strings.TrimSpace(opt) == "ctrl:nocaps" {
			m.ctrlNoCaps = true
		}
	}
	return m, nil
}

// LayoutName returns the resolved layout identifier.
func (m *Map) LayoutName() string { return m.layout.name }

func (m *Map) shift() bool { return m.shiftL || m.shiftR }
func (m *Map) ctrl() bool  { return m.ctrlL || m.ctrlR || m.capsAsCtrl }
func (m *Map) alt() bool   { return m.altL || m.altR }

// KeysymFor resolves one keycode. Ctrl+Alt+Fn produces the VT switch
// keysyms the dispatch intercepts, as the server keymaps do.
func (m *Map) KeysymFor(keycode uint32) Keysym {
	code := evdevCode(keycode)

	if kp, ok := m.layout.kp[code]; ok {
		if m.num {
			return kp.digit
		}
		return kp.nav
	}

	e, ok := m.layout.keys[code]
	if !ok {
		return NoSymbol
	}

	if m.ctrl() && m.alt() && e.base >= KeysymF1 && e.base <= KeysymF12 {
		return KeysymSwitchVT1 + Keysym(e.base-KeysymF1)
	}

	effShift := m.shift()
	if e.letter && m.caps {
		effShift = !effShift
	}
	if effShift {
		return e.shift
	}
	return e.base
}

// UTF8For renders the key to text: control transforms for Ctrl, the
// classic C0 mappings for editing keys, the bare codepoint otherwise.
func (m *Map) UTF8For(keycode uint32) string {
	sym := m.KeysymFor(keycode)
	if sym == NoSymbol {
		return ""
	}

	switch sym {
	case KeysymBackSpace:
		return "\x08"
	case KeysymTab:
		return "\t"
	case KeysymReturn, KeysymKPEnter:
		return "\r"
	case KeysymEscape:
		return "\x1b"
	case KeysymDelete, KeysymKPDelete:
		return "\x7f"
	}

	r := sym.Rune()
	if r < 0 {
		return ""
	}

	if m.ctrl() {
		if c, ok := controlChar(r); ok {
			return string(c)
		}
	}
	return string(r)
}

// controlChar maps a codepoint to its Ctrl transform the way xkb does:
// letters to C0, plus the handful of punctuation controls.
func controlChar(r rune) (rune, bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return r & 0x1f, true
	case r >= 'A' && r <= 'Z':
		return r & 0x1f, true
	case r == ' ', r == '@', r == '2':
		return 0x00, true
	case r >= '[' && r <= '_':
		return r & 0x1f, true
	case r == '?', r == '/':
		return 0x7f, true
	}
	return 0, false
}

// Update applies one key transition to the modifier and lock state.
func (m *Map) Update(keycode uint32, pressed bool) bool {
	code := evdevCode(keycode)
	e, ok := m.layout.keys[code]
	if !ok {
		return false
	}

	ledsBefore := m.LEDs()
	switch e.base {
	case KeysymShiftL:
		m.shiftL = pressed
	case KeysymShiftR:
		m.shiftR = pressed
	case KeysymControlL:
		m.ctrlL = pressed
	case KeysymControlR:
		m.ctrlR = pressed
	case KeysymAltL:
		m.altL = pressed
	case KeysymAltR:
		m.altR = pressed
	case KeysymCapsLock:
		if m.ctrlNoCaps {
			m.capsAsCtrl = pressed
		} else if pressed {
			m.caps = !m.caps
		}
	case KeysymNumLock:
		if pressed {
			m.num = !m.num
		}
	case KeysymScrollLock:
		if pressed {
			m.scroll = !m.scroll
		}
	}
	return m.LEDs() != ledsBefore
}

// ModActive answers the xkb-named modifier queries the pipeline makes.
func (m *Map) ModActive(name string) bool {
	switch name {
	case "Shift":
		return m.shift()
	case "Control":
		return m.ctrl()
	case "Mod1":
		return m.alt()
	}
	return false
}

// Repeats says whether a key should auto-repeat; modifiers and locks do
// not.
func (m *Map) Repeats(keycode uint32) bool {
	code := evdevCode(keycode)
	e, ok := m.layout.keys[code]
	if !ok {
		// Keypad keys repeat.
		_, kp := m.layout.kp[code]
		return kp
	}
	switch e.base {
	case KeysymShiftL, KeysymShiftR, KeysymControlL, KeysymControlR,
		KeysymAltL, KeysymAltR, KeysymCapsLock, KeysymNumLock,
		KeysymScrollLock, KeysymSuperL:
		return false
	}
	return true
}

// LEDs reports the lock LEDs in KDSETLED bit order.
func (m *Map) LEDs() int {
	leds := 0
	if m.scroll {
		leds |= LedScrollLock
	}
	if m.num {
		leds |= LedNumLock
	}
	if m.caps {
		leds |= LedCapsLock
	}
	return leds
}

// Reset drops every depressed modifier and lock, the state a fresh VT
// acquisition starts from.
func (m *Map) Reset() {
	layout := m.layout
	nocaps := m.ctrlNoCaps
	*m = Map{layout: layout, ctrlNoCaps: nocaps}
}

func evdevCode(keycode uint32) uint16 {
	if keycode < xkbOffset {
		return 0
	}
	return uint16(keycode - xkbOffset)
}

var _ Keymap = (*Map)(nil)
