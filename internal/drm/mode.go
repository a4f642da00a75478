//go:build linux

package drm

import "unsafe"

// Kernel ABI structs, laid out exactly as drm.h and drm_mode.h define
// them on 64-bit targets.

type drmVersion struct {
	Major   int32
	Minor   int32
	Patch   int32
	_       uint32
	NameLen uint64
	Name    uint64
	DateLen uint64
	Date    uint64
	DescLen uint64
	Desc    uint64
}

type modeCardRes struct {
	FbIDPtr         uint64
	CrtcIDPtr       uint64
	ConnectorIDPtr  uint64
	EncoderIDPtr    uint64
	CountFbs        uint32
	CountCrtcs      uint32
	CountConnectors uint32
	CountEncoders   uint32
	MinWidth        uint32
	MaxWidth        uint32
	MinHeight       uint32
	MaxHeight       uint32
}

// ModeInfo mirrors struct drm_mode_modeinfo.
type ModeInfo struct {
	Clock      uint32
	Hdisplay   uint16
	HsyncStart uint16
	HsyncEnd   uint16
	Htotal     uint16
	Hskew      uint16
	Vdisplay   uint16
	VsyncStart uint16
	VsyncEnd   uint16
	Vtotal     uint16
	Vscan      uint16
	Vrefresh   uint32
	Flags      uint32
	Type       uint32
	Name       [32]byte
}

type modeGetConnector struct {
	EncodersPtr     uint64
	ModesPtr        uint64
	PropsPtr        uint64
	PropValuesPtr   uint64
	CountModes      uint32
	CountProps      uint32
	CountEncoders   uint32
	EncoderID       uint32
	ConnectorID     uint32
	ConnectorType   uint32
	ConnectorTypeID uint32
	Connection      uint32
	MmWidth         uint32
	MmHeight        uint32
	Subpixel        uint32
	_               uint32
}

type modeGetEncoder struct {
	EncoderID      uint32
	EncoderType    uint32
	CrtcID         uint32
	PossibleCrtcs  uint32
	PossibleClones uint32
}

type modeCrtc struct {
	SetConnectorsPtr uint64
	CountConnectors  uint32
	CrtcID           uint32
	FbID             uint32
	X                uint32
	Y                uint32
	GammaSize        uint32
	ModeValid        uint32
	Mode             ModeInfo
}

type modeCreateDumb struct {
	Height uint32
	Width  uint32
	Bpp    uint32
	Flags  uint32
	Handle uint32
	Pitch  uint32
	Size   uint64
}

type modeMapDumb struct {
	Handle uint32
	_      uint32
	Offset uint64
}

type modeDestroyDumb struct {
	Handle uint32
}

type modeFBCmd2 struct {
	FbID        uint32
	Width       uint32
	Height      uint32
	PixelFormat uint32
	Flags       uint32
	Handles     [4]uint32
	Pitches     [4]uint32
	Offsets     [4]uint32
	Modifier    [4]uint64
}

type modeGetProperty struct {
	ValuesPtr      uint64
	EnumBlobPtr    uint64
	PropID         uint32
	Flags          uint32
	Name           [32]byte
	CountValues    uint32
	CountEnumBlobs uint32
}

type modeConnectorSetProperty struct {
	Value       uint64
	PropID      uint32
	ConnectorID uint32
}

// waitVBlank covers both halves of union drm_wait_vblank; a request
// only uses the first 16 bytes.
type waitVBlank struct {
	Type     uint32
	Sequence uint32
	TvalSec  int64
	TvalUsec int64
}

// Request codes, computed the way libdrm computes them.
var (
	ioctlVersion          = drmIOWR(0x00, unsafe.Sizeof(drmVersion{}))
	ioctlSetMaster        = drmIO(0x1e)
	ioctlDropMaster       = drmIO(0x1f)
	ioctlWaitVBlank       = drmIOWR(0x3a, unsafe.Sizeof(waitVBlank{}))
	ioctlModeGetResources = drmIOWR(0xa0, unsafe.Sizeof(modeCardRes{}))
	ioctlModeGetCrtc      = drmIOWR(0xa1, unsafe.Sizeof(modeCrtc{}))
	ioctlModeSetCrtc      = drmIOWR(0xa2, unsafe.Sizeof(modeCrtc{}))
	ioctlModeGetEncoder   = drmIOWR(0xa6, unsafe.Sizeof(modeGetEncoder{}))
	ioctlModeGetConnector = drmIOWR(0xa7, unsafe.Sizeof(modeGetConnector{}))
	ioctlModeGetProperty  = drmIOWR(0xaa, unsafe.Sizeof(modeGetProperty{}))
	ioctlModeSetProperty  = drmIOWR(0xab, unsafe.Sizeof(modeConnectorSetProperty{}))
	ioctlModeRmFB         = drmIOWR(0xaf, unsafe.Sizeof(uint32(0)))
	ioctlModeCreateDumb   = drmIOWR(0xb2, unsafe.Sizeof(modeCreateDumb{}))
	ioctlModeMapDumb      = drmIOWR(0xb3, unsafe.Sizeof(modeMapDumb{}))
	ioctlModeDestroyDumb  = drmIOWR(0xb4, unsafe.Sizeof(modeDestroyDumb{}))
	ioctlModeAddFB2       = drmIOWR(0xb8, unsafe.Sizeof(modeFBCmd2{}))
)

const (
	connectionConnected = 1

	// fourcc('X', 'R', '2', '4'): 32-bit XRGB, the format the renderer
	// writes.
	formatXRGB8888 = 0x34325258

	vblankRelative = 0x00000001
	vblankEvent    = 0x04000000
)

// DPMS levels of the connector property.
const (
	DPMSOn      = 0
	DPMSStandby = 1
	DPMSSuspend = 2
	DPMSOff     = 3
)
