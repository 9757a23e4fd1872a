package prosilica

import (
	"go.uber.org/multierr"

	"github.com/areaDetector/ADProsilica/adparam"
	"github.com/areaDetector/ADProsilica/camera"
	"github.com/areaDetector/ADProsilica/pvapi"
)

func nonNegative(v int) uint32 {
	if v < 0 {
		return 0
	}
	return uint32(v)
}

// requestedGeometry is the geometry staged in the parameter table
func (d *Detector) requestedGeometry() camera.Geometry {
	p := d.params
	return camera.Geometry{
		Binning: camera.Binning{H: p.MustInt(adparam.BinX), V: p.MustInt(adparam.BinY)},
		AOI: camera.AOI{
			Left:   p.MustInt(adparam.MinX),
			Top:    p.MustInt(adparam.MinY),
			Width:  p.MustInt(adparam.SizeX),
			Height: p.MustInt(adparam.SizeY),
		},
	}
}

// setGeometry writes the staged geometry to the camera in binned units.
// All six attributes are written even if some fail.
func (d *Detector) setGeometry() error {
	r := d.requestedGeometry().ToDevice()
	// clamped bin factors go back into the table
	d.params.SetInt(adparam.BinX, r.BinX)
	d.params.SetInt(adparam.BinY, r.BinY)

	var err error
	for _, w := range []struct {
		attr  string
		value int
	}{
		{"BinningX", r.BinX},
		{"BinningY", r.BinY},
		{"RegionX", r.RegionX},
		{"RegionY", r.RegionY},
		{"Width", r.Width},
		{"Height", r.Height},
	} {
		err = multierr.Append(err, pvapi.Enrich(d.gw.SetUint32(d.handle, w.attr, nonNegative(w.value)), w.attr))
	}
	return err
}

// getGeometry reads the region back from the camera and stores it in
// full-resolution units
func (d *Detector) getGeometry() error {
	var (
		err error
		v   [6]uint32
	)
	for idx, attr := range []string{"BinningX", "BinningY", "RegionX", "RegionY", "Width", "Height"} {
		var e error
		v[idx], e = d.gw.GetUint32(d.handle, attr)
		err = multierr.Append(err, pvapi.Enrich(e, attr))
	}
	if err != nil {
		return err
	}
	g := camera.Region{
		BinX: int(v[0]), BinY: int(v[1]),
		RegionX: int(v[2]), RegionY: int(v[3]),
		Width: int(v[4]), Height: int(v[5]),
	}.FromDevice()
	p := d.params
	p.SetInt(adparam.BinX, g.Binning.H)
	p.SetInt(adparam.BinY, g.Binning.V)
	p.SetInt(adparam.MinX, g.AOI.Left)
	p.SetInt(adparam.MinY, g.AOI.Top)
	// the requested size is replaced by what the camera kept, rounded down to whole bins
	p.SetInt(adparam.SizeX, g.AOI.Width*g.Binning.H)
	p.SetInt(adparam.SizeY, g.AOI.Height*g.Binning.V)
	p.SetInt(adparam.ImageSizeX, g.AOI.Width)
	p.SetInt(adparam.ImageSizeY, g.AOI.Height)
	return nil
}

// SetGeometry stages a full geometry and applies it in one pass
func (d *Detector) SetGeometry(g camera.Geometry) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handle == 0 {
		return ErrNotConnected
	}
	p := d.params
	p.SetInt(adparam.BinX, g.Binning.H)
	p.SetInt(adparam.BinY, g.Binning.V)
	p.SetInt(adparam.MinX, g.AOI.Left)
	p.SetInt(adparam.MinY, g.AOI.Top)
	p.SetInt(adparam.SizeX, g.AOI.Width)
	p.SetInt(adparam.SizeY, g.AOI.Height)
	return multierr.Append(d.setGeometry(), d.readParameters())
}

// Geometry returns the geometry as last read from the camera: the offsets
// in full-resolution pixels and the size the camera reads out
func (d *Detector) Geometry() camera.Geometry {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.params
	return camera.Geometry{
		Binning: camera.Binning{H: p.MustInt(adparam.BinX), V: p.MustInt(adparam.BinY)},
		AOI: camera.AOI{
			Left:   p.MustInt(adparam.MinX),
			Top:    p.MustInt(adparam.MinY),
			Width:  p.MustInt(adparam.ImageSizeX),
			Height: p.MustInt(adparam.ImageSizeY),
		},
	}
}
