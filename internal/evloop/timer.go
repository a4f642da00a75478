//go:build linux

package evloop

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Timer is a one-shot timerfd source. Arm it again from its own
// handler to build periodic behavior (key repeat, idle timeout).
type Timer struct {
	fd    int
	armed bool
}

// AddTimer creates a disarmed timer dispatched at the given priority.
func (l *Loop) AddTimer(prio int, handler func()) (*Timer, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("timerfd_create: %w", err)
	}

	t := &Timer{fd: fd}
	s := &source{
		fd:      fd,
		prio:    prio,
		handler: handler,
		prepare: func() {
			t.armed = false
			drain(fd)
		},
	}
	if err := l.add(s); err != nil {
		unix.Close(fd)
		return nil, err
	}
	l.closers = append(l.closers, func() { unix.Close(fd) })
	return t, nil
}

// Set arms the timer to fire once after d. A second Set replaces the
// previous deadline.
func (t *Timer) Set(d time.Duration) error {
	if d <= 0 {
		d = time.Nanosecond
	}
	spec := unix.ItimerSpec{Value: unix.NsecToTimespec(d.Nanoseconds())}
	if err := unix.TimerfdSettime(t.fd, 0, &spec, nil); err != nil {
		return fmt.Errorf("timerfd_settime: %w", err)
	}
	t.armed = true
	return nil
}

// Stop disarms the timer; a pending but undelivered expiry is dropped
// by the kernel along with the armed state.
func (t *Timer) Stop() error {
	t.armed = false
	var spec unix.ItimerSpec
	if err := unix.TimerfdSettime(t.fd, 0, &spec, nil); err != nil {
		return fmt.Errorf("timerfd_settime: %w", err)
	}
	drain(t.fd)
	return nil
}

// Armed reports whether the timer has a pending deadline.
func (t *Timer) Armed() bool { return t.armed }

// drain consumes the expiry counter of a timerfd or the queued bytes of
// a signal pipe; both are nonblocking reads we run until empty.
func drain(fd int) {
	var buf [8]byte
	for {
		n, err := unix.Read(fd, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}
