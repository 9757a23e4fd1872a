/*
Package camera describes a standard set of types and interfaces for area detectors.

The Detector type covers the basics of acquisition control; Geometry and the
helpers next to it convert between full-resolution pixel coordinates and the
binned units cameras work in.
*/
package camera

import (
	"fmt"
	"time"
)

// ImageMode is the acquisition mode of a detector
type ImageMode int

const (
	// Single acquires one image per start
	Single ImageMode = iota

	// Multiple acquires NumImages per start
	Multiple

	// Continuous acquires until stopped
	Continuous
)

func (m ImageMode) String() string {
	switch m {
	case Single:
		return "Single"
	case Multiple:
		return "Multiple"
	case Continuous:
		return "Continuous"
	}
	return fmt.Sprintf("ImageMode(%d)", int(m))
}

// DetectorState is the status of a detector
type DetectorState int

const (
	// Idle is not acquiring
	Idle DetectorState = iota

	// Acquiring is acquiring
	Acquiring
)

func (s DetectorState) String() string {
	if s == Acquiring {
		return "Acquire"
	}
	return "Idle"
}

// AOI describes an area of interest on the camera in unbinned pixels
type AOI struct {
	// Left is the left pixel index.  0-based
	Left int `json:"left"`

	// Top is the top pixel index.  0-based
	Top int `json:"top"`

	// Width is the width in pixels
	Width int `json:"width"`

	// Height is the height in pixels
	Height int `json:"height"`
}

// Binning encapsulates information about pixel addition on camera
type Binning struct {
	// H is the horizontal binning factor
	H int `json:"h"`

	// V is the vertical binning factor
	V int `json:"v"`
}

// Geometry is a requested readout region and binning, in full-resolution pixels
type Geometry struct {
	Binning Binning `json:"binning"`
	AOI     AOI     `json:"aoi"`
}

// Region is a readout region in binned device units
type Region struct {
	BinX, BinY       int
	RegionX, RegionY int
	Width, Height    int
}

// ToDevice converts a full-resolution request into device units.
// Bin factors below one are treated as one.
func (g Geometry) ToDevice() Region {
	bx, by := g.Binning.H, g.Binning.V
	if bx < 1 {
		bx = 1
	}
	if by < 1 {
		by = 1
	}
	return Region{
		BinX:    bx,
		BinY:    by,
		RegionX: g.AOI.Left / bx,
		RegionY: g.AOI.Top / by,
		Width:   g.AOI.Width / bx,
		Height:  g.AOI.Height / by,
	}
}

// FromDevice converts device units back into a full-resolution geometry.
// Offsets are scaled by the bin factors; the size is the device's binned size.
func (r Region) FromDevice() Geometry {
	return Geometry{
		Binning: Binning{H: r.BinX, V: r.BinY},
		AOI: AOI{
			Left:   r.RegionX * r.BinX,
			Top:    r.RegionY * r.BinY,
			Width:  r.Width,
			Height: r.Height,
		},
	}
}

// Detector describes an area detector which can be started and stopped and
// hands out the most recent image
type Detector interface {
	// Acquire starts or stops acquisition
	Acquire(bool) error

	// Acquiring reports if the detector is acquiring
	Acquiring() (bool, error)

	// SetImageMode sets the acquisition mode
	SetImageMode(ImageMode) error

	// GetImageMode gets the acquisition mode
	GetImageMode() (ImageMode, error)

	// SetNumImages sets the number of images taken in Multiple mode
	SetNumImages(int) error

	// GetNumImages gets the number of images taken in Multiple mode
	GetNumImages() (int, error)

	// SetExposureTime sets the exposure time
	SetExposureTime(time.Duration) error

	// GetExposureTime gets the exposure time
	GetExposureTime() (time.Duration, error)

	// SetAOI sets the readout region in full-resolution pixels
	SetAOI(AOI) error

	// GetAOI gets the readout region in full-resolution pixels
	GetAOI() (AOI, error)

	// SetBinning sets the binning
	SetBinning(Binning) error

	// GetBinning gets the binning
	GetBinning() (Binning, error)
}
