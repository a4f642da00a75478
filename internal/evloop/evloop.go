//go:build linux

// Package evloop is a single-threaded, priority-aware event dispatcher.
//
// Sources are file descriptors, timers (timerfd), and POSIX signals
// (routed through a self-pipe so no work happens in signal context).
// Each source carries a priority band; at every dispatch boundary the
// loop re-polls and always picks the highest-band ready source, so
// interactive paths preempt bulk ones between handlers but never in the
// middle of one.
package evloop

import (
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sys/unix"
)

// NumPriorities is the count of priority bands; 0 is the highest.
const NumPriorities = 6

type source struct {
	fd      int
	prio    int
	handler func()

	// prepare runs before the handler to consume the wakeup token
	// (timerfd counter, signal pipe bytes). May be nil.
	prepare func()
}

// Loop multiplexes registered sources over one epoll instance.
// All methods must be called from the loop goroutine, except none:
// the whole program is single-threaded by construction.
type Loop struct {
	epfd    int
	sources map[int]*source
	pending map[int]bool
	stop    bool
	closers []func()
}

// New creates an empty loop.
func New() (*Loop, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}
	return &Loop{
		epfd:    epfd,
		sources: make(map[int]*source),
		pending: make(map[int]bool),
	}, nil
}

// AddFD registers a file descriptor for readability at the given
// priority. The handler is invoked once per readiness notification;
// level-triggered polling re-reports the fd while data remains.
func (l *Loop) AddFD(fd, prio int, handler func()) error {
	return l.add(&source{fd: fd, prio: prio, handler: handler})
}

func (l *Loop) add(s *source) error {
	if s.prio < 0 || s.prio >= NumPriorities {
		return fmt.Errorf("priority %d out of range", s.prio)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(s.fd)}
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, s.fd, &ev); err != nil {
		return fmt.Errorf("epoll_ctl add fd %d: %w", s.fd, err)
	}
	l.sources[s.fd] = s
	return nil
}

// RemoveFD unregisters a descriptor added with AddFD.
func (l *Loop) RemoveFD(fd int) error {
	if _, ok := l.sources[fd]; !ok {
		return errors.New("fd not registered")
	}
	delete(l.sources, fd)
	delete(l.pending, fd)
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll_ctl del fd %d: %w", fd, err)
	}
	return nil
}

// Break stops the loop after the current handler returns.
func (l *Loop) Break() { l.stop = true }

// Run dispatches until Break is called. It blocks when nothing is
// ready and otherwise runs exactly one handler per iteration, always
// the highest-priority pending one.
func (l *Loop) Run() error {
	l.stop = false
	for !l.stop {
		// Block for the first readiness, then keep merging newly
		// ready sources at every handler boundary with zero timeout.
		if err := l.poll(-1); err != nil {
			return err
		}
		for !l.stop {
			s := l.takeHighest()
			if s == nil {
				break
			}
			if s.prepare != nil {
				s.prepare()
			}
			s.handler()
			if err := l.poll(0); err != nil {
				return err
			}
		}
	}
	return nil
}

// poll merges ready descriptors into the pending set.
func (l *Loop) poll(timeoutMs int) error {
	events := make([]unix.EpollEvent, 16)
	for {
		n, err := unix.EpollWait(l.epfd, events, timeoutMs)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("epoll_wait: %w", err)
		}
		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if _, ok := l.sources[fd]; ok {
				l.pending[fd] = true
			}
		}
		return nil
	}
}

// takeHighest removes and returns the best pending source, preferring
// lower band numbers and, within a band, lower fds for determinism.
func (l *Loop) takeHighest() *source {
	best := -1
	bestPrio := NumPriorities
	fds := make([]int, 0, len(l.pending))
	for fd := range l.pending {
		fds = append(fds, fd)
	}
	sort.Ints(fds)
	for _, fd := range fds {
		s := l.sources[fd]
		if s == nil {
			delete(l.pending, fd)
			continue
		}
		if s.prio < bestPrio {
			bestPrio = s.prio
			best = fd
		}
	}
	if best < 0 {
		return nil
	}
	delete(l.pending, best)
	return l.sources[best]
}

// Close tears down the epoll instance and every loop-owned resource
// (timer fds, signal pipes and their forwarder goroutines).
func (l *Loop) Close() error {
	for _, c := range l.closers {
		c()
	}
	l.closers = nil
	return unix.Close(l.epfd)
}
