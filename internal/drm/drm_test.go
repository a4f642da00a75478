//go:build linux

package drm

import (
	"encoding/binary"
	"testing"
	"unsafe"
)

// Request codes and struct sizes are kernel ABI; pin them against the
// values libdrm computes on 64-bit targets.

func TestStructSizes(t *testing.T) {
	cases := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"drm_version", unsafe.Sizeof(drmVersion{}), 64},
		{"drm_mode_card_res", unsafe.Sizeof(modeCardRes{}), 64},
		{"drm_mode_modeinfo", unsafe.Sizeof(ModeInfo{}), 68},
		{"drm_mode_get_connector", unsafe.Sizeof(modeGetConnector{}), 80},
		{"drm_mode_get_encoder", unsafe.Sizeof(modeGetEncoder{}), 20},
		{"drm_mode_crtc", unsafe.Sizeof(modeCrtc{}), 104},
		{"drm_mode_create_dumb", unsafe.Sizeof(modeCreateDumb{}), 32},
		{"drm_mode_map_dumb", unsafe.Sizeof(modeMapDumb{}), 16},
		{"drm_mode_fb_cmd2", unsafe.Sizeof(modeFBCmd2{}), 100},
		{"drm_mode_get_property", unsafe.Sizeof(modeGetProperty{}), 64},
		{"drm_mode_connector_set_property", unsafe.Sizeof(modeConnectorSetProperty{}), 16},
		{"drm_wait_vblank", unsafe.Sizeof(waitVBlank{}), 24},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Errorf("%s: size %d, want %d", c.name, c.got, c.want)
		}
	}
}

func TestRequestCodes(t *testing.T) {
	cases := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"DRM_IOCTL_VERSION", ioctlVersion, 0xc0406400},
		{"DRM_IOCTL_SET_MASTER", ioctlSetMaster, 0x641e},
		{"DRM_IOCTL_DROP_MASTER", ioctlDropMaster, 0x641f},
		{"DRM_IOCTL_WAIT_VBLANK", ioctlWaitVBlank, 0xc018643a},
		{"DRM_IOCTL_MODE_GETRESOURCES", ioctlModeGetResources, 0xc04064a0},
		{"DRM_IOCTL_MODE_GETCRTC", ioctlModeGetCrtc, 0xc06864a1},
		{"DRM_IOCTL_MODE_SETCRTC", ioctlModeSetCrtc, 0xc06864a2},
		{"DRM_IOCTL_MODE_GETENCODER", ioctlModeGetEncoder, 0xc01464a6},
		{"DRM_IOCTL_MODE_GETCONNECTOR", ioctlModeGetConnector, 0xc05064a7},
		{"DRM_IOCTL_MODE_GETPROPERTY", ioctlModeGetProperty, 0xc04064aa},
		{"DRM_IOCTL_MODE_SETPROPERTY", ioctlModeSetProperty, 0xc01064ab},
		{"DRM_IOCTL_MODE_RMFB", ioctlModeRmFB, 0xc00464af},
		{"DRM_IOCTL_MODE_CREATE_DUMB", ioctlModeCreateDumb, 0xc02064b2},
		{"DRM_IOCTL_MODE_MAP_DUMB", ioctlModeMapDumb, 0xc01064b3},
		{"DRM_IOCTL_MODE_DESTROY_DUMB", ioctlModeDestroyDumb, 0xc00464b4},
		{"DRM_IOCTL_MODE_ADDFB2", ioctlModeAddFB2, 0xc06864b8},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Errorf("%s: %#x, want %#x", c.name, c.got, c.want)
		}
	}
}

func TestPropName(t *testing.T) {
	var b [32]byte
	copy(b[:], "DPMS")
	if got := propName(b); got != "DPMS" {
		t.Errorf("propName = %q", got)
	}
}

func TestEventDecoding(t *testing.T) {
	// Hand-build a vblank event record followed by an unknown event;
	// only the vblank should dispatch.
	rec := make([]byte, 32+16)
	binary.LittleEndian.PutUint32(rec[0:], eventVBlank)
	binary.LittleEndian.PutUint32(rec[4:], 32)
	binary.LittleEndian.PutUint32(rec[32:], 0x7f) // unknown type
	binary.LittleEndian.PutUint32(rec[36:], 16)

	fired := 0
	if err := decodeEvents(rec, func() { fired++ }); err != nil {
		t.Fatal(err)
	}
	if fired != 1 {
		t.Errorf("vblank fired %d times, want 1", fired)
	}
}

func TestEventDecodingRejectsCorruptStream(t *testing.T) {
	rec := make([]byte, 16)
	binary.LittleEndian.PutUint32(rec[0:], eventVBlank)
	binary.LittleEndian.PutUint32(rec[4:], 64) // length past the buffer

	if err := decodeEvents(rec, func() {}); err == nil {
		t.Error("expected an error for a truncated record")
	}
}
