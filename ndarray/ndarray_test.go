package ndarray

import (
	"errors"
	"image"
	"testing"

	"go.viam.com/test"
)

func TestDataTypeSize(t *testing.T) {
	test.That(t, UInt8.Size(), test.ShouldEqual, 1)
	test.That(t, Int16.Size(), test.ShouldEqual, 2)
	test.That(t, UInt32.Size(), test.ShouldEqual, 4)
	test.That(t, Float32.Size(), test.ShouldEqual, 4)
	test.That(t, Float64.Size(), test.ShouldEqual, 8)
}

func TestParseDataType(t *testing.T) {
	dt, ok := ParseDataType("uint16")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, dt, test.ShouldEqual, UInt16)
	test.That(t, dt.String(), test.ShouldEqual, "UInt16")
	_, ok = ParseDataType("complex")
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, DataType(99).String(), test.ShouldEqual, "DataType(99)")
}

func TestPoolRecycles(t *testing.T) {
	p := NewPool(0, 0)
	img, err := p.Alloc(100)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(img.Data), test.ShouldEqual, 100)
	test.That(t, img.Refs(), test.ShouldEqual, 1)
	test.That(t, p.InUse(), test.ShouldEqual, 1)

	img.Reserve()
	img.Release()
	test.That(t, p.InUse(), test.ShouldEqual, 1)
	img.Release()
	test.That(t, p.InUse(), test.ShouldEqual, 0)

	// a smaller request reuses the freed buffer
	img2, err := p.Alloc(50)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(img2.Data), test.ShouldEqual, 50)
	test.That(t, cap(img2.Data), test.ShouldEqual, 100)
	test.That(t, p.Allocations(), test.ShouldEqual, int64(2))
	img2.Release()
}

func TestPoolMaxBuffers(t *testing.T) {
	p := NewPool(1, 0)
	img, err := p.Alloc(10)
	test.That(t, err, test.ShouldBeNil)
	_, err = p.Alloc(10)
	test.That(t, errors.Is(err, ErrPoolExhausted), test.ShouldBeTrue)
	img.Release()
	img, err = p.Alloc(10)
	test.That(t, err, test.ShouldBeNil)
	img.Release()
}

func TestPoolMaxMemory(t *testing.T) {
	p := NewPool(0, 100)
	a, err := p.Alloc(60)
	test.That(t, err, test.ShouldBeNil)
	_, err = p.Alloc(60)
	test.That(t, errors.Is(err, ErrPoolExhausted), test.ShouldBeTrue)
	b, err := p.Alloc(40)
	test.That(t, err, test.ShouldBeNil)
	a.Release()
	b.Release()
	test.That(t, p.InUse(), test.ShouldEqual, 0)
}

func TestAllocRejectsEmpty(t *testing.T) {
	_, err := NewPool(0, 0).Alloc(0)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestOverRelease(t *testing.T) {
	img, err := NewPool(0, 0).Alloc(1)
	test.That(t, err, test.ShouldBeNil)
	img.Release()
	test.That(t, img.Release, test.ShouldPanic)
}

func TestToImage(t *testing.T) {
	p := NewPool(0, 0)
	img, err := p.Alloc(2 * 2 * 2)
	test.That(t, err, test.ShouldBeNil)
	defer img.Release()
	img.Width, img.Height, img.DataType = 2, 2, UInt16
	// little endian 0x0102 at the origin
	img.Data[0], img.Data[1] = 0x02, 0x01
	im, err := img.ToImage()
	test.That(t, err, test.ShouldBeNil)
	g, ok := im.(*image.Gray16)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, g.Gray16At(0, 0).Y, test.ShouldEqual, uint16(0x0102))

	img.DataType = UInt8
	im, err = img.ToImage()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, im.Bounds().Dx(), test.ShouldEqual, 2)

	img.DataType = Float32
	_, err = img.ToImage()
	test.That(t, err, test.ShouldNotBeNil)

	buf := make([]byte, 3)
	test.That(t, img.CopyTo(buf), test.ShouldEqual, 3)
	test.That(t, buf[0], test.ShouldEqual, byte(0x02))
}
