//go:build linux

package drm

import (
	"errors"
	"fmt"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Errors callers branch on during init.
var (
	ErrNoCard      = errors.New("drm: no usable card")
	ErrNoConnector = errors.New("drm: no connected connector")
	ErrNoEncoder   = errors.New("drm: connector has no encoder")
	ErrNoCrtc      = errors.New("drm: no usable crtc")
	ErrNoMode      = errors.New("drm: connector reports no modes")
)

// preferredDrivers is the hard-coded probe order; any other card is
// taken only when none of these match.
var preferredDrivers = []string{"i915", "radeon"}

// Device is one opened DRM card bound to a single connector and CRTC.
type Device struct {
	fd   int
	name string
	log  *zap.Logger

	connectorID uint32
	crtcID      uint32
	mode        ModeInfo

	// savedFbID is the buffer the CRTC scanned out before we took
	// over; Hide restores it.
	savedFbID uint32

	dpmsProp  uint32
	dpmsLevel int

	fb     *Framebuffer
	master bool
}

// Framebuffer is one dumb scanout buffer mapped into the process.
type Framebuffer struct {
	ID     uint32
	Handle uint32
	Width  int
	Height int
	Pitch  int // bytes per row
	Size   uint64

	raw []byte
	Pix []uint32 // raw viewed as XRGB8888 pixels
}

// StridePixels returns the plane pitch in pixels.
func (fb *Framebuffer) StridePixels() int { return fb.Pitch / 4 }

// Open probes /dev/dri/card* for the preferred drivers and initializes
// the first connected connector, its first encoder, the lowest usable
// CRTC bit, and the connector's first mode, mirroring what a minimal
// libdrm consumer does.
func Open(log *zap.Logger) (*Device, error) {
	fd, name, err := openByDriver()
	if err != nil {
		return nil, err
	}

	d := &Device{fd: fd, name: name, log: log, dpmsLevel: DPMSOn}
	if err := d.initOutput(); err != nil {
		unix.Close(fd)
		return nil, err
	}

	log.Info("drm output initialized",
		zap.String("driver", name),
		zap.Uint32("connector", d.connectorID),
		zap.Uint32("crtc", d.crtcID),
		zap.Uint16("hdisplay", d.mode.Hdisplay),
		zap.Uint16("vdisplay", d.mode.Vdisplay))
	return d, nil
}

// Fd exposes the card descriptor for event-loop registration.
func (d *Device) Fd() int { return d.fd }

// DriverName returns the kernel driver backing the card.
func (d *Device) DriverName() string { return d.name }

// Mode returns the display mode programmed on the CRTC.
func (d *Device) Mode() ModeInfo { return d.mode }

// IsMaster reports whether we currently hold DRM master.
func (d *Device) IsMaster() bool { return d.master }

func openByDriver() (int, string, error) {
	type card struct {
		fd   int
		name string
	}
	var fallback *card

	for i := 0; i < 16; i++ {
		path := fmt.Sprintf("/dev/dri/card%d", i)
		fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
		if err != nil {
			continue
		}
		name, err := driverName(fd)
		if err != nil {
			unix.Close(fd)
			continue
		}
		for _, want := range preferredDrivers {
			if name == want {
				if fallback != nil {
					unix.Close(fallback.fd)
				}
				return fd, name, nil
			}
		}
		if fallback == nil {
			fallback = &card{fd: fd, name: name}
		} else {
			unix.Close(fd)
		}
	}

	if fallback != nil {
		return fallback.fd, fallback.name, nil
	}
	return -1, "", ErrNoCard
}

func driverName(fd int) (string, error) {
	var v drmVersion
	if err := ioctl(fd, ioctlVersion, unsafe.Pointer(&v)); err != nil {
		return "", fmt.Errorf("drm version: %w", err)
	}
	if v.NameLen == 0 {
		return "", nil
	}
	buf := make([]byte, v.NameLen)
	v.Name = uint64(uintptr(unsafe.Pointer(&buf[0])))
	v.DateLen = 0
	v.DescLen = 0
	if err := ioctl(fd, ioctlVersion, unsafe.Pointer(&v)); err != nil {
		return "", fmt.Errorf("drm version name: %w", err)
	}
	return string(buf[:v.NameLen]), nil
}

// initOutput walks resources -> connector -> encoder -> crtc and saves
// the CRTC's current buffer for restoration.
func (d *Device) initOutput() error {
	var res modeCardRes
	if err := ioctl(d.fd, ioctlModeGetResources, unsafe.Pointer(&res)); err != nil {
		return fmt.Errorf("getresources: %w", err)
	}
	if res.CountConnectors == 0 || res.CountCrtcs == 0 {
		return ErrNoConnector
	}

	connectors := make([]uint32, res.CountConnectors)
	crtcs := make([]uint32, res.CountCrtcs)
	res.ConnectorIDPtr = uint64(uintptr(unsafe.Pointer(&connectors[0])))
	res.CrtcIDPtr = uint64(uintptr(unsafe.Pointer(&crtcs[0])))
	res.CountFbs = 0
	res.CountEncoders = 0
	if err := ioctl(d.fd, ioctlModeGetResources, unsafe.Pointer(&res)); err != nil {
		return fmt.Errorf("getresources arrays: %w", err)
	}

	// First connected connector wins.
	var conn modeGetConnector
	var modes []ModeInfo
	var encoders []uint32
	found := false
	for _, id := range connectors {
		conn = modeGetConnector{ConnectorID: id}
		if err := ioctl(d.fd, ioctlModeGetConnector, unsafe.Pointer(&conn)); err != nil {
			continue
		}
		if conn.Connection != connectionConnected || conn.CountModes == 0 {
			continue
		}
		modes = make([]ModeInfo, conn.CountModes)
		encoders = make([]uint32, max(int(conn.CountEncoders), 1))
		props := make([]uint32, max(int(conn.CountProps), 1))
		propValues := make([]uint64, max(int(conn.CountProps), 1))
		conn.ModesPtr = uint64(uintptr(unsafe.Pointer(&modes[0])))
		conn.EncodersPtr = uint64(uintptr(unsafe.Pointer(&encoders[0])))
		conn.PropsPtr = uint64(uintptr(unsafe.Pointer(&props[0])))
		conn.PropValuesPtr = uint64(uintptr(unsafe.Pointer(&propValues[0])))
		if err := ioctl(d.fd, ioctlModeGetConnector, unsafe.Pointer(&conn)); err != nil {
			continue
		}
		d.connectorID = conn.ConnectorID
		d.dpmsProp = d.findDPMSProp(props[:conn.CountProps])
		found = true
		break
	}
	if !found {
		return ErrNoConnector
	}
	if conn.CountEncoders == 0 {
		return ErrNoEncoder
	}

	var enc modeGetEncoder
	enc.EncoderID = encoders[0]
	if err := ioctl(d.fd, ioctlModeGetEncoder, unsafe.Pointer(&enc)); err != nil {
		return fmt.Errorf("getencoder: %w", err)
	}

	// Lowest set bit in possible_crtcs selects from the resource list.
	crtcFound := false
	for i := 0; i < int(res.CountCrtcs) && i < 32; i++ {
		if enc.PossibleCrtcs&(1<<uint(i)) != 0 {
			d.crtcID = crtcs[i]
			crtcFound = true
			break
		}
	}
	if !crtcFound {
		return ErrNoCrtc
	}

	var crtc modeCrtc
	crtc.CrtcID = d.crtcID
	if err := ioctl(d.fd, ioctlModeGetCrtc, unsafe.Pointer(&crtc)); err != nil {
		return fmt.Errorf("getcrtc: %w", err)
	}
	d.savedFbID = crtc.FbID

	if len(modes) == 0 {
		return ErrNoMode
	}
	d.mode = modes[0]
	return nil
}

// findDPMSProp resolves the connector property named DPMS, if any.
func (d *Device) findDPMSProp(props []uint32) uint32 {
	for _, id := range props {
		var p modeGetProperty
		p.PropID = id
		if err := ioctl(d.fd, ioctlModeGetProperty, unsafe.Pointer(&p)); err != nil {
			continue
		}
		if propName(p.Name) == "DPMS" {
			return id
		}
	}
	return 0
}

func propName(b [32]byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b[:])
}

// AllocFramebuffer creates a dumb buffer sized to the mode, maps it,
// and registers it as an XRGB8888 framebuffer.
func (d *Device) AllocFramebuffer() (*Framebuffer, error) {
	create := modeCreateDumb{
		Width:  uint32(d.mode.Hdisplay),
		Height: uint32(d.mode.Vdisplay),
		Bpp:    32,
	}
	if err := ioctl(d.fd, ioctlModeCreateDumb, unsafe.Pointer(&create)); err != nil {
		return nil, fmt.Errorf("create dumb buffer: %w", err)
	}

	fb := &Framebuffer{
		Handle: create.Handle,
		Width:  int(d.mode.Hdisplay),
		Height: int(d.mode.Vdisplay),
		Pitch:  int(create.Pitch),
		Size:   create.Size,
	}

	cmd := modeFBCmd2{
		Width:       create.Width,
		Height:      create.Height,
		PixelFormat: formatXRGB8888,
	}
	cmd.Handles[0] = create.Handle
	cmd.Pitches[0] = create.Pitch
	if err := ioctl(d.fd, ioctlModeAddFB2, unsafe.Pointer(&cmd)); err != nil {
		d.destroyDumb(create.Handle)
		return nil, fmt.Errorf("addfb2: %w", err)
	}
	fb.ID = cmd.FbID

	mp := modeMapDumb{Handle: create.Handle}
	if err := ioctl(d.fd, ioctlModeMapDumb, unsafe.Pointer(&mp)); err != nil {
		d.removeFB(fb)
		return nil, fmt.Errorf("map dumb buffer: %w", err)
	}

	raw, err := unix.Mmap(d.fd, int64(mp.Offset), int(create.Size),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		d.removeFB(fb)
		return nil, fmt.Errorf("mmap scanout: %w", err)
	}
	fb.raw = raw
	fb.Pix = unsafe.Slice((*uint32)(unsafe.Pointer(&raw[0])), len(raw)/4)

	d.fb = fb
	return fb, nil
}

func (d *Device) destroyDumb(handle uint32) {
	arg := modeDestroyDumb{Handle: handle}
	if err := ioctl(d.fd, ioctlModeDestroyDumb, unsafe.Pointer(&arg)); err != nil {
		d.log.Warn("destroy dumb buffer failed", zap.Error(err))
	}
}

func (d *Device) removeFB(fb *Framebuffer) {
	if fb.ID != 0 {
		id := fb.ID
		if err := ioctl(d.fd, ioctlModeRmFB, unsafe.Pointer(&id)); err != nil {
			d.log.Warn("rmfb failed", zap.Error(err))
		}
	}
	d.destroyDumb(fb.Handle)
}

// setCrtc programs the CRTC to scan out fbID over our connector.
func (d *Device) setCrtc(fbID uint32) error {
	conn := d.connectorID
	crtc := modeCrtc{
		SetConnectorsPtr: uint64(uintptr(unsafe.Pointer(&conn))),
		CountConnectors:  1,
		CrtcID:           d.crtcID,
		FbID:             fbID,
		ModeValid:        1,
		Mode:             d.mode,
	}
	if err := ioctl(d.fd, ioctlModeSetCrtc, unsafe.Pointer(&crtc)); err != nil {
		return fmt.Errorf("setcrtc fb %d: %w", fbID, err)
	}
	return nil
}

// Show takes DRM master and programs our framebuffer, entering the
// foreground state.
func (d *Device) Show() error {
	if d.fb == nil {
		return errors.New("drm: no framebuffer allocated")
	}
	if err := ioctl(d.fd, ioctlSetMaster, nil); err != nil {
		return fmt.Errorf("set master: %w", err)
	}
	d.master = true
	return d.setCrtc(d.fb.ID)
}

// Hide restores the saved scanout buffer and drops master, entering
// the background state. Both steps are attempted even if one fails.
func (d *Device) Hide() error {
	var firstErr error
	if err := d.setCrtc(d.savedFbID); err != nil {
		firstErr = err
	}
	if err := ioctl(d.fd, ioctlDropMaster, nil); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("drop master: %w", err)
	}
	d.master = false
	return firstErr
}

// RequestVBlank queues exactly one relative vblank event on the card.
func (d *Device) RequestVBlank() error {
	req := waitVBlank{
		Type:     vblankRelative | vblankEvent,
		Sequence: 1,
	}
	if err := ioctl(d.fd, ioctlWaitVBlank, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("wait vblank: %w", err)
	}
	return nil
}

// SetDPMS drives the connector's DPMS property. Setting the current
// level again is a no-op; a connector without the property ignores the
// call.
func (d *Device) SetDPMS(level int) error {
	if d.dpmsProp == 0 || level == d.dpmsLevel {
		return nil
	}
	arg := modeConnectorSetProperty{
		Value:       uint64(level),
		PropID:      d.dpmsProp,
		ConnectorID: d.connectorID,
	}
	if err := ioctl(d.fd, ioctlModeSetProperty, unsafe.Pointer(&arg)); err != nil {
		return fmt.Errorf("set dpms %d: %w", level, err)
	}
	d.dpmsLevel = level
	return nil
}

// Close releases the framebuffer and the card. Teardown continues past
// individual failures; each logs its own diagnostic.
func (d *Device) Close() error {
	if d.fb != nil {
		if d.fb.raw != nil {
			if err := unix.Munmap(d.fb.raw); err != nil {
				d.log.Warn("munmap scanout failed", zap.Error(err))
			}
		}
		d.removeFB(d.fb)
		d.fb = nil
	}
	return unix.Close(d.fd)
}
