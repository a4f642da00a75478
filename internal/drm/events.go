//go:build linux

package drm

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// Event stream framing: each record starts with struct drm_event
// {type, length}, length covering the whole record.
const (
	eventHeaderSize = 8
	eventVBlank     = 0x01
)

// ReadEvents drains the card's event queue and invokes onVBlank once
// per vblank event. A short or empty nonblocking read returns nil; the
// event loop will call again when the fd is readable.
func (d *Device) ReadEvents(onVBlank func()) error {
	buf := make([]byte, 1024)
	n, err := unix.Read(d.fd, buf)
	if err == unix.EAGAIN {
		return nil
	}
	if err != nil {
		return fmt.Errorf("drm event read: %w", err)
	}

	return decodeEvents(buf[:n], onVBlank)
}

// decodeEvents walks one batch of event records.
func decodeEvents(buf []byte, onVBlank func()) error {
	n := len(buf)
	for off := 0; off+eventHeaderSize <= n; {
		typ := binary.LittleEndian.Uint32(buf[off:])
		length := int(binary.LittleEndian.Uint32(buf[off+4:]))
		if length < eventHeaderSize || off+length > n {
			return fmt.Errorf("drm event stream corrupt at offset %d", off)
		}
		if typ == eventVBlank {
			onVBlank()
		}
		off += length
	}
	return nil
}
