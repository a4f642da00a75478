//go:build linux

package session

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// Shell is a spawned child with the master side of its pty.
type Shell struct {
	Master *os.File
	Cmd    *exec.Cmd
}

// SpawnShell forks the user's shell (SHELL, falling back to /bin/sh)
// on a fresh pty sized to the character grid, with TERM=xterm in its
// environment. The master is switched to nonblocking for event-loop
// reads.
func SpawnShell(cols, rows, cellW, cellH int) (*Shell, error) {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}

	cmd := exec.Command(shell)
	cmd.Env = append(os.Environ(), "TERM=xterm")

	ws := &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
		X:    uint16(cols * cellW),
		Y:    uint16(rows * cellH),
	}
	master, err := pty.StartWithSize(cmd, ws)
	if err != nil {
		return nil, fmt.Errorf("spawn %s: %w", shell, err)
	}

	if err := unix.SetNonblock(int(master.Fd()), true); err != nil {
		master.Close()
		return nil, fmt.Errorf("nonblocking pty master: %w", err)
	}

	return &Shell{Master: master, Cmd: cmd}, nil
}

// Close shuts the master and reaps the child. Closing the master hangs
// up the line, so a still-running shell exits on its own.
func (sh *Shell) Close() error {
	err := sh.Master.Close()
	_ = sh.Cmd.Wait()
	return err
}
