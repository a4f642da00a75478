package keyboard

import (
	"time"

	"go.uber.org/zap"
)

// RepeatTimer is the one-shot timer the pipeline arms for software
// auto-repeat; evloop.Timer satisfies it.
type RepeatTimer interface {
	Set(d time.Duration) error
	Stop() error
}

// Hooks are the pipeline's outputs into the rest of the program. All
// are optional; a nil hook is skipped.
type Hooks struct {
	// Write delivers bytes to the pty master.
	Write func([]byte)

	// SwitchVT requests activation of another virtual terminal.
	SwitchVT func(vt int)

	// DisplayOff and DisplayOn drive DPMS around the Print key and
	// ordinary key activity.
	DisplayOff func()
	DisplayOn  func()

	// WakeIdle re-arms the idle timeout on any press.
	WakeIdle func()

	// SetLEDs pushes lock LED state to the hardware.
	SetLEDs func(leds int)

	// KeypadMode reports whether keypad application mode is active,
	// which selects SS3 sequences for the cursor keys.
	KeypadMode func() bool
}

// Pipeline is the keyboard half of the terminal: scancodes in, pty
// bytes out, with VT-switch and DPMS interception and software repeat.
type Pipeline struct {
	keymap  Keymap
	compose *Compose
	decoder Decoder
	hooks   Hooks
	log     *zap.Logger

	repeatTimer RepeatTimer
	RepeatDelay time.Duration
	RepeatRate  time.Duration

	repKeycode uint32
	repKeysym  Keysym

	events []Event
}

// NewPipeline wires a pipeline; timer may be nil until SetRepeatTimer.
func NewPipeline(keymap Keymap, compose *Compose, hooks Hooks, log *zap.Logger) *Pipeline {
	return &Pipeline{
		keymap:      keymap,
		compose:     compose,
		hooks:       hooks,
		log:         log,
		RepeatDelay: 200 * time.Millisecond,
		RepeatRate:  time.Second / 30,
	}
}

// SetRepeatTimer installs the one-shot timer used for auto-repeat.
func (p *Pipeline) SetRepeatTimer(t RepeatTimer) { p.repeatTimer = t }

// HandleInput decodes one chunk of raw tty bytes and dispatches every
// key event in it. Output bytes for the whole chunk are written to the
// pty in one call, preserving stream order.
func (p *Pipeline) HandleInput(buf []byte) {
	p.events = p.decoder.Decode(buf, p.events[:0])
	if len(p.events) == 0 {
		return
	}

	var out []byte
	newRepeat := false

	for _, ev := range p.events {
		keycode := uint32(ev.Keycode) + xkbOffset
		keysym := p.keymap.KeysymFor(keycode)

		if keycode == p.repKeycode && !ev.Pressed {
			p.repKeycode = 0
			p.repKeysym = NoSymbol
		}
		if ev.Pressed && keycode != p.repKeycode && p.keymap.Repeats(keycode) {
			p.repKeycode = keycode
			p.repKeysym = keysym
			newRepeat = true
		}

		if ev.Pressed {
			out = append(out, p.keyPress(keycode, keysym)...)
		}

		if p.keymap.Update(keycode, ev.Pressed) && p.hooks.SetLEDs != nil {
			p.hooks.SetLEDs(p.keymap.LEDs())
		}
	}

	if p.repeatTimer != nil {
		if p.repKeycode == 0 {
			if err := p.repeatTimer.Stop(); err != nil {
				p.log.Warn("repeat timer stop failed", zap.Error(err))
			}
		} else if newRepeat {
			if err := p.repeatTimer.Set(p.RepeatDelay); err != nil {
				p.log.Warn("repeat timer arm failed", zap.Error(err))
			}
		}
	}

	if len(out) > 0 && p.hooks.Write != nil {
		p.hooks.Write(out)
	}
}

// HandleRepeat is the repeat timer callback: it re-runs the press
// dispatch for the cached key and re-arms at the repeat rate.
func (p *Pipeline) HandleRepeat() {
	if p.repKeycode == 0 {
		return
	}
	out := p.keyPress(p.repKeycode, p.repKeysym)
	if p.repeatTimer != nil {
		if err := p.repeatTimer.Set(p.RepeatRate); err != nil {
			p.log.Warn("repeat timer rearm failed", zap.Error(err))
		}
	}
	if len(out) > 0 && p.hooks.Write != nil {
		p.hooks.Write(out)
	}
}

// keyPress runs the press dispatch order: idle wake, the Print DPMS
// intercept, VT switching, then keysym translation.
func (p *Pipeline) keyPress(keycode uint32, keysym Keysym) []byte {
	if p.hooks.WakeIdle != nil {
		p.hooks.WakeIdle()
	}

	if keysym == KeysymPrint {
		if p.hooks.DisplayOff != nil {
			p.hooks.DisplayOff()
		}
		return nil
	}
	if p.hooks.DisplayOn != nil {
		p.hooks.DisplayOn()
	}

	if vt := keysym.VTSwitchTarget(); vt > 0 {
		p.log.Info("switching vt", zap.Int("vt", vt))
		if p.hooks.SwitchVT != nil {
			p.hooks.SwitchVT(vt)
		}
		return nil
	}

	return p.handleKeysym(keycode, keysym)
}

// handleKeysym translates one pressed keysym to bytes: compose first,
// then the special-key table with its modifier variants, then plain
// text with the Alt meta-prefix.
func (p *Pipeline) handleKeysym(keycode uint32, keysym Keysym) []byte {
	if keysym == NoSymbol {
		return nil
	}

	switch p.compose.Feed(keysym) {
	case ComposeComposing:
		return nil
	case ComposeCancelled:
		p.compose.Reset()
		return nil
	case ComposeComposed:
		r := p.compose.Result()
		sym := symFromRune(r)
		if seq := p.sequenceFor(sym); seq != "" {
			return []byte(seq)
		}
		return []byte(string(r))
	}

	if seq := p.sequenceFor(keysym); seq != "" {
		return []byte(seq)
	}

	text := p.keymap.UTF8For(keycode)
	if text == "" {
		return nil
	}
	if p.keymap.ModActive("Mod1") {
		return append([]byte{0x1b}, text...)
	}
	return []byte(text)
}

func (p *Pipeline) sequenceFor(keysym Keysym) string {
	keypad := p.hooks.KeypadMode != nil && p.hooks.KeypadMode()
	return Sequence(keysym,
		keypad,
		p.keymap.ModActive("Control"),
		p.keymap.ModActive("Mod1"))
}

// CancelRepeat drops the repeat cache and disarms the timer; called on
// VT release.
func (p *Pipeline) CancelRepeat() {
	p.repKeycode = 0
	p.repKeysym = NoSymbol
	if p.repeatTimer != nil {
		if err := p.repeatTimer.Stop(); err != nil {
			p.log.Warn("repeat timer stop failed", zap.Error(err))
		}
	}
}

// Reset returns the whole pipeline to a clean state: pressed set,
// repeat cache, modifier state, pending compose sequence.
func (p *Pipeline) Reset() {
	p.CancelRepeat()
	p.decoder.Reset()
	p.keymap.Reset()
	p.compose.Reset()
	if p.hooks.SetLEDs != nil {
		p.hooks.SetLEDs(p.keymap.LEDs())
	}
}
