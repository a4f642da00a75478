//go:build linux

package session

import (
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/kmsterm/kmsterm/internal/drm"
)

// requestVBlank issues the single outstanding vblank request, but only
// while foreground and only when damage exists.
func (s *Session) requestVBlank() {
	if !s.active || s.vblankPending || !s.scr.HasDamage() {
		return
	}
	if err := s.display.RequestVBlank(); err != nil {
		s.log.Warn("vblank request failed", zap.Error(err))
		return
	}
	s.vblankPending = true
}

// onMasterRead ingests one chunk of shell output. The cursor cell
// marks are applied here, around the parser call, so cursor dirtiness
// is atomic with the bytes that moved it. A vblank request goes out
// only when this chunk took the damage state from empty to non-empty.
func (s *Session) onMasterRead() {
	s.flushPendingOut()

	n, err := unix.Read(s.ptyFD, s.readBuf)
	switch {
	case n > 0:
		prevFlag := s.scr.DirtyFlag()
		prevCount := s.scr.DirtyCount()

		oc := s.scr.Cursor()
		s.scr.CellAt(s.scr.Index(oc.Col, oc.Row)).Cursor = false

		s.proc.Process(s.readBuf[:n])

		nc := s.scr.Cursor()
		if oc != nc {
			s.scr.CellAt(s.scr.Index(oc.Col, oc.Row)).Cursor = false
			s.scr.CellAt(s.scr.Index(nc.Col, nc.Row)).Cursor = true
			s.scr.MarkDirtySlow(oc.Col, oc.Row)
			s.scr.MarkDirtySlow(nc.Col, nc.Row)
		} else {
			s.scr.CellAt(s.scr.Index(oc.Col, oc.Row)).Cursor = true
		}

		if !prevFlag && prevCount == 0 {
			s.requestVBlank()
		}

	case err == unix.EAGAIN:
		// Spurious wakeup; try again on the next readiness.

	case n == 0 || err != nil:
		// Shell exited (or the master died): clean shutdown.
		if err != nil {
			s.log.Warn("pty read failed", zap.Error(err))
		} else {
			s.log.Info("shell exited")
		}
		s.loop.Break()
	}
}

// onVBlank repaints what changed since the previous frame. Painting is
// suppressed while background; the damage stays queued for the next
// acquisition.
func (s *Session) onVBlank() {
	s.vblankPending = false
	if !s.active {
		return
	}
	s.scr.Redraw(func(col, row int) {
		s.painter.DrawCell(s.scr, col, row)
	})
}

// onDRMRead drains display events; each vblank event runs one redraw.
func (s *Session) onDRMRead() {
	if err := s.display.ReadEvents(s.onVBlank); err != nil {
		s.log.Error("drm event handling failed", zap.Error(err))
		s.loop.Break()
	}
}

// onTTYRead feeds raw keyboard bytes into the pipeline.
func (s *Session) onTTYRead() {
	buf := make([]byte, 256)
	n, err := s.cons.Read(buf)
	if err != nil {
		s.log.Error("tty read failed", zap.Error(err))
		s.loop.Break()
		return
	}
	if n > 0 {
		s.pipeline.HandleInput(buf[:n])
	}
}

// onRepeat synthesizes the held key's press again.
func (s *Session) onRepeat() {
	s.pipeline.HandleRepeat()
}

// onIdle lowers display power after the configured inactivity window
// and keeps the timer running while foreground.
func (s *Session) onIdle() {
	s.setDPMS(drm.DPMSSuspend)
	if s.active && s.idleTimer != nil {
		if err := s.idleTimer.Set(s.idleTimeout); err != nil {
			s.log.Warn("idle timer rearm failed", zap.Error(err))
		}
	}
}

// onRelease is the kernel telling us another VT wants the display:
// answer yes, restore the saved scanout, drop master, and quiesce the
// keyboard and timers.
func (s *Session) onRelease() {
	s.log.Info("vt release")

	s.setDPMS(drm.DPMSOn)
	s.pipeline.Reset()
	if s.idleTimer != nil {
		if err := s.idleTimer.Stop(); err != nil {
			s.log.Warn("idle timer stop failed", zap.Error(err))
		}
	}

	if err := s.display.Hide(); err != nil {
		s.log.Warn("display hide failed", zap.Error(err))
	}
	if err := s.cons.ReleaseDisplay(); err != nil {
		s.log.Warn("vt release ack failed", zap.Error(err))
	}
	s.active = false
	s.vblankPending = false
}

// onAcquire is the kernel handing the display back: acknowledge,
// re-take master, reprogram the CRTC, and repaint whatever changed
// while background. Failures log and leave the session background.
func (s *Session) onAcquire() {
	s.log.Info("vt acquire")

	if err := s.cons.AckAcquire(); err != nil {
		s.log.Warn("vt acquire ack failed", zap.Error(err))
	}
	if err := s.display.Show(); err != nil {
		s.log.Warn("display show failed, staying background", zap.Error(err))
		return
	}
	s.active = true
	s.wakeIdle()
	s.requestVBlank()
}

// onTerminate breaks the loop; teardown happens in main, in reverse
// init order.
func (s *Session) onTerminate() {
	s.log.Info("interrupt, shutting down")
	s.loop.Break()
}

// WritePty delivers keyboard bytes to the shell, buffering what EAGAIN
// cuts short for retry on the next master event.
func (s *Session) WritePty(b []byte) {
	if len(s.pendingOut) > 0 {
		s.pendingOut = append(s.pendingOut, b...)
		s.flushPendingOut()
		return
	}
	n, err := unix.Write(s.ptyFD, b)
	if err == unix.EAGAIN {
		n = 0
		err = nil
	}
	if err != nil {
		s.log.Warn("pty write failed", zap.Error(err))
		return
	}
	if n < len(b) {
		s.pendingOut = append(s.pendingOut, b[n:]...)
	}
}

func (s *Session) flushPendingOut() {
	for len(s.pendingOut) > 0 {
		n, err := unix.Write(s.ptyFD, s.pendingOut)
		if err == unix.EAGAIN {
			return
		}
		if err != nil {
			s.log.Warn("pty write failed", zap.Error(err))
			s.pendingOut = nil
			return
		}
		s.pendingOut = s.pendingOut[n:]
	}
	s.pendingOut = nil
}
