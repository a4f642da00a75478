//go:build linux

package evloop

import (
	"fmt"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// AddSignal routes a POSIX signal into the loop at the given priority.
//
// The signal itself is caught by the Go runtime and forwarded onto a
// nonblocking pipe by a tiny goroutine; the loop sees the pipe become
// readable and runs the handler at a dispatch boundary. This is the
// self-pipe pattern: no terminal or display work ever happens in
// signal delivery context.
func (l *Loop) AddSignal(sig os.Signal, prio int, handler func()) error {
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return fmt.Errorf("pipe2: %w", err)
	}
	rd, wr := p[0], p[1]

	ch := make(chan os.Signal, 4)
	signal.Notify(ch, sig)
	go func() {
		for range ch {
			// A full pipe already guarantees a pending wakeup.
			_, _ = unix.Write(wr, []byte{1})
		}
	}()

	s := &source{
		fd:      rd,
		prio:    prio,
		handler: handler,
		prepare: func() { drain(rd) },
	}
	if err := l.add(s); err != nil {
		signal.Stop(ch)
		close(ch)
		unix.Close(rd)
		unix.Close(wr)
		return err
	}

	l.closers = append(l.closers, func() {
		signal.Stop(ch)
		close(ch)
		unix.Close(rd)
		unix.Close(wr)
	})
	return nil
}
