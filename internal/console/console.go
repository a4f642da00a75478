//go:build linux

// Package console owns the virtual terminal the emulator runs on: VT
// allocation and switching, the PROCESS-mode release/acquire handshake,
// raw keyboard and graphics modes, and termios state.
package console

import (
	"fmt"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// VT and KD ioctls from linux/vt.h and linux/kd.h.
const (
	vtOpenQry    = 0x5600
	vtGetMode    = 0x5601
	vtSetMode    = 0x5602
	vtGetState   = 0x5603
	vtRelDisp    = 0x5605
	vtActivate   = 0x5606
	vtWaitActive = 0x5607

	vtAuto    = 0
	vtProcess = 1
	vtAckAcq  = 2

	kdSetMode   = 0x4b3a
	kdTextMode  = 0
	kdGraphics  = 1
	kdGetKbMode = 0x4b44
	kdSetKbMode = 0x4b45
	kdSetLed    = 0x4b32

	kbModeMediumRaw = 2
)

type vtModeArg struct {
	Mode   int8
	Waitv  int8
	Relsig int16
	Acqsig int16
	Frsig  int16
}

type vtStatArg struct {
	Active uint16
	Signal uint16
	State  uint16
}

// Console is the tty of the VT we own.
type Console struct {
	fd  int
	log *zap.Logger

	vtNum     int
	initialVT int

	savedKbMode  int
	savedTermios *term.State
	configured   bool
}

// Open queries the controlling terminal for the active VT, allocates a
// fresh one with VT_OPENQRY, and opens its device node. When no free VT
// is available the current one is used.
func Open(log *zap.Logger) (*Console, error) {
	ctl, err := unix.Open("/dev/tty", unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open /dev/tty: %w", err)
	}

	c := &Console{fd: -1, log: log}

	var stat vtStatArg
	if err := ioctl(ctl, vtGetState, unsafe.Pointer(&stat)); err != nil {
		unix.Close(ctl)
		return nil, fmt.Errorf("VT_GETSTATE: %w", err)
	}
	c.initialVT = int(stat.Active)

	var free int32
	if err := ioctl(ctl, vtOpenQry, unsafe.Pointer(&free)); err != nil || free <= 0 {
		log.Warn("VT_OPENQRY failed, staying on the active vt", zap.Error(err))
		c.vtNum = c.initialVT
		c.fd = ctl
		return c, nil
	}
	unix.Close(ctl)

	c.vtNum = int(free)
	path := fmt.Sprintf("/dev/tty%d", c.vtNum)
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	c.fd = fd

	log.Info("virtual terminal allocated",
		zap.Int("vt", c.vtNum), zap.Int("initial", c.initialVT))
	return c, nil
}

// Fd exposes the tty descriptor; scancodes are read from it once
// Configure has switched the keyboard to mediumraw.
func (c *Console) Fd() int { return c.fd }

// VT returns the number of the VT we own.
func (c *Console) VT() int { return c.vtNum }

// Configure switches to our VT and puts the tty into the state the
// terminal needs: raw termios, PROCESS VT mode with the release and
// acquire signals, mediumraw keyboard, graphics console, nonblocking
// reads.
func (c *Console) Configure(relsig, acqsig unix.Signal) error {
	if c.vtNum != c.initialVT {
		if err := ioctlInt(c.fd, vtActivate, c.vtNum); err != nil {
			return fmt.Errorf("VT_ACTIVATE %d: %w", c.vtNum, err)
		}
		if err := ioctlInt(c.fd, vtWaitActive, c.vtNum); err != nil {
			return fmt.Errorf("VT_WAITACTIVE %d: %w", c.vtNum, err)
		}
	}

	saved, err := term.MakeRaw(c.fd)
	if err != nil {
		return fmt.Errorf("raw mode: %w", err)
	}
	c.savedTermios = saved

	mode := vtModeArg{
		Mode:   vtProcess,
		Relsig: int16(relsig),
		Acqsig: int16(acqsig),
	}
	if err := ioctl(c.fd, vtSetMode, unsafe.Pointer(&mode)); err != nil {
		return fmt.Errorf("VT_SETMODE: %w", err)
	}

	var kb int32
	if err := ioctl(c.fd, kdGetKbMode, unsafe.Pointer(&kb)); err != nil {
		return fmt.Errorf("KDGKBMODE: %w", err)
	}
	c.savedKbMode = int(kb)
	if err := ioctlInt(c.fd, kdSetKbMode, kbModeMediumRaw); err != nil {
		return fmt.Errorf("KDSKBMODE: %w", err)
	}

	if err := ioctlInt(c.fd, kdSetMode, kdGraphics); err != nil {
		return fmt.Errorf("KDSETMODE graphics: %w", err)
	}

	if err := unix.SetNonblock(c.fd, true); err != nil {
		return fmt.Errorf("nonblocking tty: %w", err)
	}

	c.configured = true
	return nil
}

// ReleaseDisplay answers a release request affirmatively.
func (c *Console) ReleaseDisplay() error {
	return ioctlInt(c.fd, vtRelDisp, 1)
}

// AckAcquire acknowledges an acquire notice and re-activates our VT.
func (c *Console) AckAcquire() error {
	if err := ioctlInt(c.fd, vtRelDisp, vtAckAcq); err != nil {
		return fmt.Errorf("VT_RELDISP ackacq: %w", err)
	}
	if err := ioctlInt(c.fd, vtActivate, c.vtNum); err != nil {
		return fmt.Errorf("VT_ACTIVATE: %w", err)
	}
	if err := ioctlInt(c.fd, vtWaitActive, c.vtNum); err != nil {
		return fmt.Errorf("VT_WAITACTIVE: %w", err)
	}
	return nil
}

// SwitchTo asks the kernel to activate another VT; the kernel then
// delivers our release signal.
func (c *Console) SwitchTo(vt int) error {
	if err := ioctlInt(c.fd, vtActivate, vt); err != nil {
		return fmt.Errorf("VT_ACTIVATE %d: %w", vt, err)
	}
	return nil
}

// SetLEDs drives the keyboard LEDs.
func (c *Console) SetLEDs(leds int) error {
	return ioctlInt(c.fd, kdSetLed, leds)
}

// Read pulls raw keyboard bytes off the tty. EAGAIN maps to (0, nil).
func (c *Console) Read(buf []byte) (int, error) {
	n, err := unix.Read(c.fd, buf)
	if err == unix.EAGAIN {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Restore undoes Configure in reverse order and switches back to the
// initial VT. Every step is attempted; failures are logged and do not
// abort the rest of the teardown.
func (c *Console) Restore() {
	if !c.configured {
		return
	}
	if err := ioctlInt(c.fd, kdSetMode, kdTextMode); err != nil {
		c.log.Warn("KDSETMODE text failed", zap.Error(err))
	}
	if err := ioctlInt(c.fd, kdSetKbMode, c.savedKbMode); err != nil {
		c.log.Warn("KDSKBMODE restore failed", zap.Error(err))
	}
	mode := vtModeArg{Mode: vtAuto}
	if err := ioctl(c.fd, vtSetMode, unsafe.Pointer(&mode)); err != nil {
		c.log.Warn("VT_SETMODE auto failed", zap.Error(err))
	}
	if c.savedTermios != nil {
		if err := term.Restore(c.fd, c.savedTermios); err != nil {
			c.log.Warn("termios restore failed", zap.Error(err))
		}
	}
	if c.vtNum != c.initialVT {
		if err := ioctlInt(c.fd, vtActivate, c.initialVT); err != nil {
			c.log.Warn("switch back to initial vt failed", zap.Error(err))
		} else if err := ioctlInt(c.fd, vtWaitActive, c.initialVT); err != nil {
			c.log.Warn("wait for initial vt failed", zap.Error(err))
		}
	}
	c.configured = false
}

// Close releases the tty.
func (c *Console) Close() error {
	return unix.Close(c.fd)
}

func ioctl(fd int, request uintptr, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), request, uintptr(arg))
		if errno == unix.EINTR {
			continue
		}
		if errno != 0 {
			return errno
		}
		return nil
	}
}

func ioctlInt(fd int, request uintptr, arg int) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), request, uintptr(arg))
		if errno == unix.EINTR {
			continue
		}
		if errno != 0 {
			return errno
		}
		return nil
	}
}
