//go:build linux

// Package session is the supervisor that owns the terminal's resources
// and state machine: the pty and its shell, the display backend, the
// VT console, the keyboard pipeline, and the priority event loop that
// dispatches between them. It is also where the redraw engine lives:
// the master-read handler arbitrates vblank requests and the vblank
// handler repaints changed cells.
package session

import (
	"time"

	"github.com/cliofy/govte"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/kmsterm/kmsterm/internal/drm"
	"github.com/kmsterm/kmsterm/internal/evloop"
	"github.com/kmsterm/kmsterm/internal/keyboard"
	"github.com/kmsterm/kmsterm/internal/term"
)

// Dispatch priorities, highest first. Signals preempt everything so VT
// transitions and shutdown never wait behind bulk pty output.
const (
	prioSignal = 0
	prioVBlank = 1
	prioKbd    = 2
	prioRepeat = 3
	prioMaster = 4
	prioIdle   = 5
)

// Display is the slice of the KMS backend the supervisor drives.
type Display interface {
	Show() error
	Hide() error
	RequestVBlank() error
	ReadEvents(onVBlank func()) error
	SetDPMS(level int) error
	Fd() int
}

// Console is the slice of the VT backend the supervisor drives.
type Console interface {
	ReleaseDisplay() error
	AckAcquire() error
	SwitchTo(vt int) error
	SetLEDs(leds int) error
	Read(buf []byte) (int, error)
	Fd() int
}

// CellPainter paints one cell of a screen; the renderer implements it.
type CellPainter interface {
	DrawCell(s *term.Screen, col, row int)
}

// Params collects everything a Session borrows or owns.
type Params struct {
	Log      *zap.Logger
	Loop     *evloop.Loop
	Screen   *term.Screen
	Handler  govte.Handler
	Display Display
	Console Console
	Painter CellPainter

	// PtyFD is the nonblocking master side of the shell's pty.
	PtyFD int

	// IdleTimeout suspends the display after inactivity; zero disables
	// the idle timer.
	IdleTimeout time.Duration
}

// Session is the single-threaded supervisor. Every handler below runs
// on the event loop; no locking anywhere.
type Session struct {
	log      *zap.Logger
	loop     *evloop.Loop
	scr      *term.Screen
	proc     *govte.Processor
	display  Display
	cons     Console
	painter  CellPainter
	pipeline *keyboard.Pipeline
	ptyFD    int

	idleTimeout time.Duration
	idleTimer   *evloop.Timer
	repeatTimer *evloop.Timer

	// active mirrors the VT state machine: true is FOREGROUND (we own
	// DRM master), false is BACKGROUND.
	active bool

	// vblankPending is the single-outstanding-request invariant.
	vblankPending bool

	// pendingOut holds pty writes cut short by EAGAIN, retried on the
	// next event touching the master.
	pendingOut []byte

	readBuf []byte
}

// New builds a session around already initialized backends.
func New(p Params) *Session {
	s := &Session{
		log:         p.Log,
		loop:        p.Loop,
		scr:         p.Screen,
		proc:        govte.NewProcessor(p.Handler),
		display:     p.Display,
		cons:        p.Console,
		painter:     p.Painter,
		ptyFD:       p.PtyFD,
		idleTimeout: p.IdleTimeout,
		active:      true,
		readBuf:     make([]byte, 4096),
	}
	return s
}

// SetPipeline installs the keyboard pipeline. The pipeline is built
// after the session because its hooks close over it; see Hooks.
func (s *Session) SetPipeline(p *keyboard.Pipeline) { s.pipeline = p }

// Register wires every source into the loop at its priority band and
// connects the keyboard pipeline's hooks.
func (s *Session) Register() error {
	var err error
	if s.repeatTimer, err = s.loop.AddTimer(prioRepeat, s.onRepeat); err != nil {
		return err
	}
	s.pipeline.SetRepeatTimer(s.repeatTimer)

	if s.idleTimeout > 0 {
		if s.idleTimer, err = s.loop.AddTimer(prioIdle, s.onIdle); err != nil {
			return err
		}
		if err := s.idleTimer.Set(s.idleTimeout); err != nil {
			return err
		}
	}

	if err := s.loop.AddFD(s.ptyFD, prioMaster, s.onMasterRead); err != nil {
		return err
	}
	if err := s.loop.AddFD(s.cons.Fd(), prioKbd, s.onTTYRead); err != nil {
		return err
	}
	if err := s.loop.AddFD(s.display.Fd(), prioVBlank, s.onDRMRead); err != nil {
		return err
	}

	if err := s.loop.AddSignal(unix.SIGUSR1, prioSignal, s.onRelease); err != nil {
		return err
	}
	if err := s.loop.AddSignal(unix.SIGUSR2, prioSignal, s.onAcquire); err != nil {
		return err
	}
	if err := s.loop.AddSignal(unix.SIGINT, prioSignal, s.onTerminate); err != nil {
		return err
	}
	return nil
}

// Hooks returns the pipeline hook set bound to this session; the
// caller installs it when constructing the pipeline.
func Hooks(s *Session) keyboard.Hooks {
	return keyboard.Hooks{
		Write:      s.WritePty,
		SwitchVT:   s.switchVT,
		DisplayOff: func() { s.setDPMS(drm.DPMSSuspend) },
		DisplayOn:  func() { s.setDPMS(drm.DPMSOn) },
		WakeIdle:   s.wakeIdle,
		SetLEDs:    s.setLEDs,
		KeypadMode: func() bool { return s.scr.Keypad },
	}
}

// Run drives the loop until shutdown.
func (s *Session) Run() error {
	return s.loop.Run()
}

// Active reports the VT state (true while foreground).
func (s *Session) Active() bool { return s.active }

// Shutdown restores display power and hands the scanout back; the
// caller then tears down console and card.
func (s *Session) Shutdown() {
	s.setDPMS(drm.DPMSOn)
	if s.active {
		if err := s.display.Hide(); err != nil {
			s.log.Warn("display hide on shutdown failed", zap.Error(err))
		}
		s.active = false
	}
}

func (s *Session) setDPMS(level int) {
	if err := s.display.SetDPMS(level); err != nil {
		s.log.Warn("dpms change failed", zap.Int("level", level), zap.Error(err))
	}
}

func (s *Session) setLEDs(leds int) {
	if err := s.cons.SetLEDs(leds); err != nil {
		s.log.Warn("led update failed", zap.Error(err))
	}
}

func (s *Session) switchVT(vt int) {
	if err := s.cons.SwitchTo(vt); err != nil {
		s.log.Warn("vt switch failed", zap.Int("vt", vt), zap.Error(err))
	}
}

func (s *Session) wakeIdle() {
	if s.idleTimer != nil && s.active {
		if err := s.idleTimer.Set(s.idleTimeout); err != nil {
			s.log.Warn("idle timer rearm failed", zap.Error(err))
		}
	}
}
