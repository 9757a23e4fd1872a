/*
Package pvapi describes the boundary to the Prosilica GigE camera SDK.

The SDK is treated as a black box of attributes, commands, and a frame queue.
Gateway captures that surface so drivers can be written and tested against
either the vendor library or the simulator in pvsim.
*/
package pvapi

import "fmt"

const (
	// MaxPacketSize is the largest GigE packet negotiated with a camera
	MaxPacketSize = 8228
)

// Handle refers to an open camera.  The zero value is never a valid handle.
type Handle uint32

// AccessFlags describe the kind of access a client has to a camera
type AccessFlags uint32

const (
	// AccessMonitor allows attribute reads only
	AccessMonitor AccessFlags = 2

	// AccessMaster allows full control and capture
	AccessMaster AccessFlags = 4
)

// InterfaceType is the physical interface of a camera
type InterfaceType uint32

const (
	// InterfaceFirewire is an IEEE1394 camera
	InterfaceFirewire InterfaceType = 1

	// InterfaceEthernet is a GigE camera
	InterfaceEthernet InterfaceType = 2
)

// CameraInfo is the static description of a camera as reported by the SDK
type CameraInfo struct {
	UniqueID        uint32        `json:"uniqueId"`
	SerialString    string        `json:"serial"`
	PartNumber      uint32        `json:"partNumber"`
	PartVersion     uint32        `json:"partVersion"`
	PermittedAccess AccessFlags   `json:"permittedAccess"`
	InterfaceID     uint32        `json:"interfaceId"`
	InterfaceType   InterfaceType `json:"interfaceType"`
	DisplayName     string        `json:"displayName"`
}

// PixelFormat is the layout of pixels in a frame buffer
type PixelFormat uint32

const (
	Mono8 PixelFormat = iota
	Mono16
	Bayer8
	Bayer16
	Rgb24
	Rgb48
	Yuv411
	Yuv422
	Yuv444
	Bgr24
	Rgba32
	Bgra32
	Mono12Packed
	Bayer12Packed
)

var pixelFormatNames = []string{
	"Mono8", "Mono16", "Bayer8", "Bayer16", "Rgb24", "Rgb48", "Yuv411",
	"Yuv422", "Yuv444", "Bgr24", "Rgba32", "Bgra32", "Mono12Packed", "Bayer12Packed",
}

func (p PixelFormat) String() string {
	if int(p) < len(pixelFormatNames) {
		return pixelFormatNames[p]
	}
	return fmt.Sprintf("PixelFormat(%d)", uint32(p))
}

// ParsePixelFormat converts the enum string the SDK uses into a PixelFormat
func ParsePixelFormat(s string) (PixelFormat, bool) {
	for i, name := range pixelFormatNames {
		if name == s {
			return PixelFormat(i), true
		}
	}
	return 0, false
}

// Frame is a buffer exchanged with the SDK's capture queue.
// The caller owns ImageBuffer; the SDK fills it and the metadata fields.
type Frame struct {
	// ImageBuffer is written by the SDK
	ImageBuffer []byte

	// ImageSize is the number of bytes written to ImageBuffer
	ImageSize uint32

	Width   uint32
	Height  uint32
	RegionX uint32
	RegionY uint32

	// Format is the pixel format of the data in ImageBuffer
	Format PixelFormat

	// BitDepth is the number of significant bits per pixel
	BitDepth uint32

	// FrameCount is a rolling counter maintained by the camera
	FrameCount uint32

	// TimestampLo and TimestampHi are the two halves of the 64-bit camera clock
	TimestampLo uint32
	TimestampHi uint32

	// Status is the completion status of the frame
	Status Err
}

// Timestamp returns the 64-bit camera clock value of the frame
func (f *Frame) Timestamp() uint64 {
	return uint64(f.TimestampLo) + uint64(f.TimestampHi)<<32
}

// FrameCallback is invoked by the SDK on its own thread when a queued frame completes
// or is cancelled
type FrameCallback func(*Frame)

// Gateway is the set of SDK primitives a driver needs
type Gateway interface {
	// CameraList lists the cameras visible to the SDK
	CameraList() ([]CameraInfo, error)

	// CameraInfo looks up a camera by its unique id
	CameraInfo(uniqueID uint32) (CameraInfo, error)

	// Open opens a camera with the given access
	Open(uniqueID uint32, access AccessFlags) (Handle, error)

	// Close closes a camera
	Close(Handle) error

	// AdjustPacketSize negotiates the largest packet size up to maxSize
	AdjustPacketSize(h Handle, maxSize uint32) error

	// StartCapture puts the camera into capture mode
	StartCapture(Handle) error

	// EndCapture takes the camera out of capture mode
	EndCapture(Handle) error

	// QueueFrame places f on the capture queue; cb fires when it completes
	QueueFrame(h Handle, f *Frame, cb FrameCallback) error

	// ClearQueue cancels every queued frame.  Each cancelled frame's callback fires with
	// ErrCancelled before ClearQueue returns.
	ClearQueue(Handle) error

	GetUint32(h Handle, attr string) (uint32, error)
	SetUint32(h Handle, attr string, value uint32) error
	GetFloat32(h Handle, attr string) (float32, error)
	SetFloat32(h Handle, attr string, value float32) error
	GetEnum(h Handle, attr string) (string, error)
	SetEnum(h Handle, attr string, value string) error
	GetString(h Handle, attr string) (string, error)

	// RunCommand runs a command attribute
	RunCommand(h Handle, attr string) error
}
