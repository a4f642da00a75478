package keyboard

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

// evdev keycodes used across the tests.
const (
	codeEsc   = 1
	codeA     = 30
	codeC     = 46
	codeQ     = 16
	codeShift = 42
	codeCtrl  = 29
	codeAlt   = 56
	codeCaps  = 58
	codeNum   = 69
	codeF1    = 59
	codeUp    = 103
	codePrint = 99
	codeKP7   = 71
	codeMenu  = 127
)

func xkb(code uint16) uint32 { return uint32(code) + xkbOffset }

func TestDecoderSimplePressRelease(t *testing.T) {
	var d Decoder

	evs := d.Decode([]byte{codeA, codeA | 0x80}, nil)

	if len(evs) != 2 {
		t.Fatalf("got %d events, want 2", len(evs))
	}
	if !evs[0].Pressed || evs[0].Keycode != codeA {
		t.Errorf("first event = %+v", evs[0])
	}
	if evs[1].Pressed || evs[1].Keycode != codeA {
		t.Errorf("second event = %+v", evs[1])
	}
}

func TestDecoderFiltersHardwareRepeat(t *testing.T) {
	var d Decoder

	evs := d.Decode([]byte{codeA, codeA, codeA, codeA | 0x80}, nil)

	if len(evs) != 2 {
		t.Fatalf("hardware repeat not filtered: %d events", len(evs))
	}
}

func TestDecoderExtendedCodeAcrossReads(t *testing.T) {
	var d Decoder

	// Keycode 272 encoded as 0, high7, low7 split over two reads.
	hi := byte((272 >> 7) & 0x7f)
	lo := byte(272 & 0x7f)

	evs := d.Decode([]byte{0, hi}, nil)
	if len(evs) != 0 {
		t.Fatalf("partial extended code emitted an event")
	}
	evs = d.Decode([]byte{lo}, nil)
	if len(evs) != 1 || evs[0].Keycode != 272 || !evs[0].Pressed {
		t.Fatalf("extended decode = %+v", evs)
	}
}

func TestDecoderReset(t *testing.T) {
	var d Decoder

	d.Decode([]byte{codeA}, nil)
	if !d.Pressed(codeA) {
		t.Fatal("key not tracked as pressed")
	}
	d.Reset()
	if d.Pressed(codeA) {
		t.Error("reset left a key pressed")
	}
}

func TestKeymapShiftAndCaps(t *testing.T) {
	m, err := NewMap("us", "", "")
	if err != nil {
		t.Fatal(err)
	}

	if got := m.UTF8For(xkb(codeA)); got != "a" {
		t.Errorf("plain a = %q", got)
	}

	m.Update(xkb(codeShift), true)
	if got := m.UTF8For(xkb(codeA)); got != "A" {
		t.Errorf("shift a = %q", got)
	}
	m.Update(xkb(codeShift), false)

	m.Update(xkb(codeCaps), true)
	m.Update(xkb(codeCaps), false)
	if got := m.UTF8For(xkb(codeA)); got != "A" {
		t.Errorf("caps a = %q", got)
	}
	// Shift under caps lowers letters again.
	m.Update(xkb(codeShift), true)
	if got := m.UTF8For(xkb(codeA)); got != "a" {
		t.Errorf("caps+shift a = %q", got)
	}
}

func TestKeymapControlChars(t *testing.T) {
	m, err := NewMap("us", "", "")
	if err != nil {
		t.Fatal(err)
	}

	m.Update(xkb(codeCtrl), true)
	if got := m.UTF8For(xkb(codeC)); got != "\x03" {
		t.Errorf("ctrl-c = %q", got)
	}
}

func TestKeymapVTSwitchKeysym(t *testing.T) {
	m, err := NewMap("us", "", "")
	if err != nil {
		t.Fatal(err)
	}

	m.Update(xkb(codeCtrl), true)
	m.Update(xkb(codeAlt), true)

	sym := m.KeysymFor(xkb(codeF1))
	if got := sym.VTSwitchTarget(); got != 1 {
		t.Errorf("ctrl+alt+F1 target = %d, want 1", got)
	}

	sym = m.KeysymFor(xkb(codeF1 + 3))
	if got := sym.VTSwitchTarget(); got != 4 {
		t.Errorf("ctrl+alt+F4 target = %d, want 4", got)
	}
}

func TestKeymapLEDs(t *testing.T) {
	m, err := NewMap("us", "", "")
	if err != nil {
		t.Fatal(err)
	}

	if changed := m.Update(xkb(codeA), true); changed {
		t.Error("letter press changed LEDs")
	}
	if changed := m.Update(xkb(codeCaps), true); !changed {
		t.Error("caps press should change LEDs")
	}
	if m.LEDs()&LedCapsLock == 0 {
		t.Error("caps LED not set")
	}
	if changed := m.Update(xkb(codeCaps), false); changed {
		t.Error("caps release should not change LEDs")
	}
}

func TestKeymapNumLockKeypad(t *testing.T) {
	m, err := NewMap("us", "", "")
	if err != nil {
		t.Fatal(err)
	}

	if sym := m.KeysymFor(xkb(codeKP7)); sym != KeysymKPHome {
		t.Errorf("KP7 without numlock = %#x", sym)
	}
	m.Update(xkb(codeNum), true)
	if sym := m.KeysymFor(xkb(codeKP7)); sym.Rune() != '7' {
		t.Errorf("KP7 with numlock = %#x", sym)
	}
}

func TestKeymapDvorak(t *testing.T) {
	m, err := NewMap("us", "dvorak", "")
	if err != nil {
		t.Fatal(err)
	}
	// The qwerty Q position types a quote on dvorak.
	if got := m.UTF8For(xkb(codeQ)); got != "'" {
		t.Errorf("dvorak q position = %q", got)
	}
}

func TestKeymapUnknownLayout(t *testing.T) {
	if _, err := NewMap("qzerty", "", ""); err == nil {
		t.Error("expected an error for an unknown layout")
	}
}

func TestKeymapCtrlNoCaps(t *testing.T) {
	m, err := NewMap("us", "", "ctrl:nocaps")
	if err != nil {
		t.Fatal(err)
	}

	m.Update(xkb(codeCaps), true)
	if !m.ModActive("Control") {
		t.Error("ctrl:nocaps caps should act as control")
	}
	if m.LEDs()&LedCapsLock != 0 {
		t.Error("ctrl:nocaps must not light the caps LED")
	}
}

func TestComposeDeadKey(t *testing.T) {
	c := NewCompose("en_US.UTF-8")
	if c == nil {
		t.Fatal("UTF-8 locale should enable compose")
	}

	if res := c.Feed(KeysymDeadAcute); res != ComposeComposing {
		t.Fatalf("dead key feed = %v", res)
	}
	if res := c.Feed(symFromRune('e')); res != ComposeComposed {
		t.Fatalf("completion feed = %v", res)
	}
	if c.Result() != 'é' {
		t.Errorf("composed %q", c.Result())
	}
}

func TestComposeModifierDoesNotCancel(t *testing.T) {
	c := NewCompose("en_US.UTF-8")

	c.Feed(KeysymDeadAcute)
	if res := c.Feed(KeysymShiftL); res != ComposeComposing {
		t.Errorf("modifier mid-sequence = %v", res)
	}
	if res := c.Feed(symFromRune('a')); res != ComposeComposed {
		t.Errorf("sequence lost after modifier: %v", res)
	}
}

func TestComposeCancel(t *testing.T) {
	c := NewCompose("en_US.UTF-8")

	c.Feed(KeysymDeadAcute)
	if res := c.Feed(symFromRune('q')); res != ComposeCancelled {
		t.Errorf("mismatched continuation = %v", res)
	}
}

func TestComposeMultiKey(t *testing.T) {
	c := NewCompose("de_DE.UTF-8")

	c.Feed(KeysymMultiKey)
	c.Feed(symFromRune('s'))
	if res := c.Feed(symFromRune('s')); res != ComposeComposed {
		t.Fatalf("ss = %v", res)
	}
	if c.Result() != 'ß' {
		t.Errorf("composed %q", c.Result())
	}
}

func TestComposeDisabledForCLocale(t *testing.T) {
	if NewCompose("C") != nil {
		t.Error("C locale must disable compose")
	}
	if NewCompose("POSIX") != nil {
		t.Error("POSIX locale must disable compose")
	}
	var c *Compose
	if res := c.Feed(KeysymDeadAcute); res != ComposeIgnored {
		t.Errorf("nil compose feed = %v", res)
	}
}

func TestSequenceVariants(t *testing.T) {
	if got := Sequence(KeysymF1, false, false, false); got != "\x1bOP" {
		t.Errorf("F1 base = %q", got)
	}
	if got := Sequence(KeysymF1, false, true, false); got != "\x1b[1;5P" {
		t.Errorf("F1 ctl = %q", got)
	}
	if got := Sequence(KeysymF1, false, false, true); got != "\x1b[1;3P" {
		t.Errorf("F1 alt = %q", got)
	}
	if got := Sequence(KeysymUp, true, false, false); got != "\x1bOA" {
		t.Errorf("Up keypad = %q", got)
	}
	if got := Sequence(KeysymUp, false, false, false); got != "\x1b[A" {
		t.Errorf("Up base = %q", got)
	}
	if got := Sequence(symFromRune('a'), false, false, false); got != "" {
		t.Errorf("plain key in sequence table: %q", got)
	}
}

// fakeTimer records arm/stop calls for repeat tests.
type fakeTimer struct {
	set     []time.Duration
	stopped int
}

func (f *fakeTimer) Set(d time.Duration) error { f.set = append(f.set, d); return nil }
func (f *fakeTimer) Stop() error               { f.stopped++; return nil }

func newTestPipeline(t *testing.T) (*Pipeline, *[]byte, *fakeTimer) {
	t.Helper()
	m, err := NewMap("us", "", "")
	if err != nil {
		t.Fatal(err)
	}
	var out []byte
	p := NewPipeline(m, NewCompose("en_US.UTF-8"), Hooks{
		Write: func(b []byte) { out = append(out, b...) },
	}, zap.NewNop())
	ft := &fakeTimer{}
	p.SetRepeatTimer(ft)
	return p, &out, ft
}

func TestPipelinePlainKey(t *testing.T) {
	p, out, _ := newTestPipeline(t)

	p.HandleInput([]byte{codeA, codeA | 0x80})

	if string(*out) != "a" {
		t.Errorf("pty bytes = %q", *out)
	}
}

func TestPipelineMetaPrefix(t *testing.T) {
	p, out, _ := newTestPipeline(t)

	p.HandleInput([]byte{codeAlt})
	p.HandleInput([]byte{codeA, codeA | 0x80})
	p.HandleInput([]byte{codeAlt | 0x80})

	if string(*out) != "\x1ba" {
		t.Errorf("meta-prefixed bytes = %x, want 1b 61", *out)
	}
}

func TestPipelineControlF1(t *testing.T) {
	p, out, _ := newTestPipeline(t)

	p.HandleInput([]byte{codeCtrl})
	p.HandleInput([]byte{codeF1, codeF1 | 0x80})

	if string(*out) != "\x1b[1;5P" {
		t.Errorf("ctrl-F1 = %q, want CSI 1;5P", *out)
	}
}

func TestPipelinePrintSuspendsDisplay(t *testing.T) {
	m, _ := NewMap("us", "", "")
	var out []byte
	offCalls, onCalls := 0, 0
	p := NewPipeline(m, nil, Hooks{
		Write:      func(b []byte) { out = append(out, b...) },
		DisplayOff: func() { offCalls++ },
		DisplayOn:  func() { onCalls++ },
	}, zap.NewNop())

	p.HandleInput([]byte{codePrint, codePrint | 0x80})
	if offCalls != 1 {
		t.Errorf("Print should suspend the display, off=%d", offCalls)
	}
	if len(out) != 0 {
		t.Errorf("Print leaked bytes to the pty: %q", out)
	}

	p.HandleInput([]byte{codeA, codeA | 0x80})
	if onCalls != 1 {
		t.Errorf("ordinary key should wake the display, on=%d", onCalls)
	}
}

func TestPipelineVTSwitch(t *testing.T) {
	m, _ := NewMap("us", "", "")
	var out []byte
	switched := 0
	p := NewPipeline(m, nil, Hooks{
		Write:    func(b []byte) { out = append(out, b...) },
		SwitchVT: func(vt int) { switched = vt },
	}, zap.NewNop())

	p.HandleInput([]byte{codeCtrl, codeAlt})
	p.HandleInput([]byte{codeF1 + 1}) // Ctrl+Alt+F2

	if switched != 2 {
		t.Errorf("vt switch target = %d, want 2", switched)
	}
	if len(out) != 0 {
		t.Errorf("vt switch leaked bytes: %q", out)
	}
}

func TestPipelineRepeatLifecycle(t *testing.T) {
	p, out, ft := newTestPipeline(t)

	p.HandleInput([]byte{codeA})
	if len(ft.set) != 1 || ft.set[0] != p.RepeatDelay {
		t.Fatalf("press should arm the delay timer: %v", ft.set)
	}

	p.HandleRepeat()
	if len(ft.set) != 2 || ft.set[1] != p.RepeatRate {
		t.Fatalf("repeat should rearm at the rate: %v", ft.set)
	}
	if string(*out) != "aa" {
		t.Errorf("after one repeat, pty bytes = %q", *out)
	}

	p.HandleInput([]byte{codeA | 0x80})
	if ft.stopped == 0 {
		t.Error("release should stop the repeat timer")
	}
	p.HandleRepeat()
	if string(*out) != "aa" {
		t.Error("repeat after release still produced bytes")
	}
}

func TestPipelineModifierDoesNotArmRepeat(t *testing.T) {
	p, _, ft := newTestPipeline(t)

	p.HandleInput([]byte{codeShift})
	if len(ft.set) != 0 {
		t.Errorf("shift armed the repeat timer: %v", ft.set)
	}
}

func TestPipelineComposeSwallowsMultiKeySequence(t *testing.T) {
	p, out, _ := newTestPipeline(t)

	// Multi_key (menu key), then ' then e -> é with nothing emitted in
	// between.
	p.HandleInput([]byte{codeMenu, codeMenu | 0x80})
	if len(*out) != 0 {
		t.Fatalf("multi key leaked %q", *out)
	}
	// ' is shift-less on us: keycode 40.
	p.HandleInput([]byte{40, 40 | 0x80})
	if len(*out) != 0 {
		t.Fatalf("compose intermediate leaked %q", *out)
	}
	p.HandleInput([]byte{18, 18 | 0x80}) // 'e'
	if string(*out) != "é" {
		t.Errorf("composed output = %q", *out)
	}
}

func TestPipelineReset(t *testing.T) {
	p, _, ft := newTestPipeline(t)

	p.HandleInput([]byte{codeA}) // held, repeat armed
	p.Reset()

	if ft.stopped == 0 {
		t.Error("reset should cancel the repeat timer")
	}
	if p.decoder.Pressed(codeA) {
		t.Error("reset should clear the pressed set")
	}
}
