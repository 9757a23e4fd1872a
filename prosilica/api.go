package prosilica

import (
	"time"

	"github.com/areaDetector/ADProsilica/adparam"
	"github.com/areaDetector/ADProsilica/camera"
	"github.com/areaDetector/ADProsilica/util"
)

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Acquire starts or stops acquisition
func (d *Detector) Acquire(b bool) error {
	return d.WriteInt(adparam.Acquire, b2i(b))
}

// Acquiring reports if an acquisition is in progress
func (d *Detector) Acquiring() (bool, error) {
	i, err := d.ReadInt(adparam.Status)
	return camera.DetectorState(i) == camera.Acquiring, err
}

// SetImageMode sets the acquisition mode
func (d *Detector) SetImageMode(m camera.ImageMode) error {
	return d.WriteInt(adparam.ImageMode, int(m))
}

// GetImageMode gets the acquisition mode
func (d *Detector) GetImageMode() (camera.ImageMode, error) {
	i, err := d.ReadInt(adparam.ImageMode)
	return camera.ImageMode(i), err
}

// SetNumImages sets the number of images in Multiple mode
func (d *Detector) SetNumImages(n int) error {
	return d.WriteInt(adparam.NumImages, n)
}

// GetNumImages gets the number of images in Multiple mode
func (d *Detector) GetNumImages() (int, error) {
	return d.ReadInt(adparam.NumImages)
}

// SetExposureTime sets the exposure time
func (d *Detector) SetExposureTime(t time.Duration) error {
	return d.WriteFloat(adparam.AcquireTime, t.Seconds())
}

// GetExposureTime gets the exposure time
func (d *Detector) GetExposureTime() (time.Duration, error) {
	f, err := d.ReadFloat(adparam.AcquireTime)
	return util.SecsToDuration(f), err
}

// SetAcquirePeriod sets the time between frames
func (d *Detector) SetAcquirePeriod(t time.Duration) error {
	return d.WriteFloat(adparam.AcquirePeriod, t.Seconds())
}

// GetAcquirePeriod gets the time between frames
func (d *Detector) GetAcquirePeriod() (time.Duration, error) {
	f, err := d.ReadFloat(adparam.AcquirePeriod)
	return util.SecsToDuration(f), err
}

// SetAOI sets the readout region in full-resolution pixels, keeping the binning
func (d *Detector) SetAOI(aoi camera.AOI) error {
	g := d.Geometry()
	g.AOI = aoi
	return d.SetGeometry(g)
}

// GetAOI gets the readout region in full-resolution pixels
func (d *Detector) GetAOI() (camera.AOI, error) {
	g := d.Geometry()
	aoi := g.AOI
	aoi.Width *= g.Binning.H
	aoi.Height *= g.Binning.V
	return aoi, nil
}

// SetBinning sets the binning, keeping the region
func (d *Detector) SetBinning(b camera.Binning) error {
	aoi, _ := d.GetAOI()
	return d.SetGeometry(camera.Geometry{Binning: b, AOI: aoi})
}

// GetBinning gets the binning
func (d *Detector) GetBinning() (camera.Binning, error) {
	return d.Geometry().Binning, nil
}
