package camera

import (
	"testing"

	"go.viam.com/test"
)

func TestToDevice(t *testing.T) {
	g := Geometry{Binning: Binning{H: 2, V: 4}, AOI: AOI{Left: 100, Top: 80, Width: 400, Height: 300}}
	r := g.ToDevice()
	test.That(t, r, test.ShouldResemble, Region{BinX: 2, BinY: 4, RegionX: 50, RegionY: 20, Width: 200, Height: 75})
}

func TestToDeviceZeroBinning(t *testing.T) {
	g := Geometry{AOI: AOI{Left: 3, Top: 4, Width: 10, Height: 20}}
	r := g.ToDevice()
	test.That(t, r.BinX, test.ShouldEqual, 1)
	test.That(t, r.BinY, test.ShouldEqual, 1)
	test.That(t, r.Width, test.ShouldEqual, 10)
}

func TestFromDevice(t *testing.T) {
	r := Region{BinX: 2, BinY: 2, RegionX: 50, RegionY: 25, Width: 200, Height: 150}
	g := r.FromDevice()
	test.That(t, g.AOI, test.ShouldResemble, AOI{Left: 100, Top: 50, Width: 200, Height: 150})
	test.That(t, g.Binning, test.ShouldResemble, Binning{H: 2, V: 2})
}

func TestStrings(t *testing.T) {
	test.That(t, Continuous.String(), test.ShouldEqual, "Continuous")
	test.That(t, ImageMode(9).String(), test.ShouldEqual, "ImageMode(9)")
	test.That(t, Acquiring.String(), test.ShouldEqual, "Acquire")
	test.That(t, Idle.String(), test.ShouldEqual, "Idle")
}
