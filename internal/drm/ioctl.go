//go:build linux

// Package drm is a cgo-free kernel mode-setting backend. It discovers a
// card by driver name, walks resources to a connected connector and a
// usable CRTC, allocates a dumb scanout buffer, and exposes the small
// set of operations the terminal needs: programming the CRTC, master
// transitions, vblank requests and their event stream, and the DPMS
// connector property.
package drm

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctl direction and encoding per asm-generic/ioctl.h.
const (
	iocWrite = 1
	iocRead  = 2

	iocNrBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNrShift   = 0
	iocTypeShift = iocNrShift + iocNrBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	drmType = 'd'
)

func ioc(dir, nr, size uintptr) uintptr {
	return dir<<iocDirShift | drmType<<iocTypeShift | nr<<iocNrShift | size<<iocSizeShift
}

func drmIO(nr uintptr) uintptr { return ioc(0, nr, 0) }

func drmIOWR(nr, size uintptr) uintptr { return ioc(iocRead|iocWrite, nr, size) }

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
