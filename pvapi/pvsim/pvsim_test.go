package pvsim

import (
	"sync/atomic"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/areaDetector/ADProsilica/pvapi"
)

func open(t *testing.T, s *Sim) pvapi.Handle {
	t.Helper()
	h, err := s.Open(1, pvapi.AccessMaster)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.StartCapture(h), test.ShouldBeNil)
	return h
}

func TestOpenAccess(t *testing.T) {
	s := New(DefaultCamera(1))
	h := open(t, s)

	// a second master is refused
	_, err := s.Open(1, pvapi.AccessMaster)
	test.That(t, err, test.ShouldEqual, pvapi.ErrAccessDenied)
	_, err = s.Open(2, pvapi.AccessMaster)
	test.That(t, err, test.ShouldEqual, pvapi.ErrNotFound)

	test.That(t, s.Close(h), test.ShouldBeNil)
	_, err = s.GetUint32(h, "Width")
	test.That(t, err, test.ShouldEqual, pvapi.ErrBadHandle)

	monitor := DefaultCamera(3)
	monitor.Info.PermittedAccess = pvapi.AccessMonitor
	s.Add(monitor)
	_, err = s.Open(3, pvapi.AccessMaster)
	test.That(t, err, test.ShouldEqual, pvapi.ErrAccessDenied)
}

func TestCameraList(t *testing.T) {
	s := New(DefaultCamera(2), DefaultCamera(1))
	cams, err := s.CameraList()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(cams), test.ShouldEqual, 2)
	test.That(t, cams[0].UniqueID, test.ShouldEqual, uint32(1))
	info, err := s.CameraInfo(2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, info.SerialString, test.ShouldEqual, "00000002")
}

func TestRegionClamp(t *testing.T) {
	s := New(DefaultCamera(1))
	h := open(t, s)
	test.That(t, s.SetUint32(h, "RegionX", 1000), test.ShouldBeNil)
	test.That(t, s.SetUint32(h, "BinningX", 2), test.ShouldBeNil)
	x, _ := s.GetUint32(h, "RegionX")
	test.That(t, x, test.ShouldEqual, uint32(0))
	w, _ := s.GetUint32(h, "Width")
	test.That(t, w, test.ShouldEqual, uint32(680))

	test.That(t, s.SetUint32(h, "Width", 681), test.ShouldEqual, pvapi.ErrOutOfRange)
	test.That(t, s.SetUint32(h, "BinningY", 9), test.ShouldEqual, pvapi.ErrOutOfRange)
	test.That(t, s.SetEnum(h, "PixelFormat", "Mono12"), test.ShouldEqual, pvapi.ErrOutOfRange)
	test.That(t, s.SetUint32(h, "NoSuchThing", 1), test.ShouldEqual, pvapi.ErrNotFound)
}

func TestExposeAndClearQueue(t *testing.T) {
	s := New(DefaultCamera(1))
	s.Manual = true
	h := open(t, s)

	var got []pvapi.Err
	cb := func(f *pvapi.Frame) { got = append(got, f.Status) }
	for i := 0; i < 3; i++ {
		f := &pvapi.Frame{ImageBuffer: make([]byte, 1360*1024)}
		test.That(t, s.QueueFrame(h, f, cb), test.ShouldBeNil)
	}
	test.That(t, s.Queued(h), test.ShouldEqual, 3)
	test.That(t, s.Expose(h, pvapi.Success), test.ShouldBeTrue)
	test.That(t, s.ClearQueue(h), test.ShouldBeNil)
	test.That(t, s.Queued(h), test.ShouldEqual, 0)
	test.That(t, s.Expose(h, pvapi.Success), test.ShouldBeFalse)
	test.That(t, got, test.ShouldResemble, []pvapi.Err{pvapi.Success, pvapi.ErrCancelled, pvapi.ErrCancelled})
}

func TestBufferTooSmall(t *testing.T) {
	s := New(DefaultCamera(1))
	h := open(t, s)
	f := &pvapi.Frame{ImageBuffer: make([]byte, 10)}
	test.That(t, s.QueueFrame(h, f, func(*pvapi.Frame) {}), test.ShouldBeNil)
	test.That(t, s.Expose(h, pvapi.Success), test.ShouldBeTrue)
	test.That(t, f.Status, test.ShouldEqual, pvapi.ErrBufferTooSmall)
	dropped, _ := s.GetUint32(h, "StatFramesDropped")
	test.That(t, dropped, test.ShouldEqual, uint32(1))
}

func TestFailures(t *testing.T) {
	s := New(DefaultCamera(1))
	h := open(t, s)
	s.Fail("ExposureValue", pvapi.ErrTimeout)
	_, err := s.GetUint32(h, "ExposureValue")
	test.That(t, err, test.ShouldEqual, pvapi.ErrTimeout)
	s.Fail("ExposureValue", nil)
	v, err := s.GetUint32(h, "ExposureValue")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, uint32(15000))
	test.That(t, s.Calls(), test.ShouldResemble, []string{"Open 1", "StartCapture"})
}

func TestFreerunSingleFrame(t *testing.T) {
	s := New(DefaultCamera(1))
	h := open(t, s)
	test.That(t, s.SetFloat32(h, "FrameRate", 1000), test.ShouldBeNil)
	test.That(t, s.SetEnum(h, "AcquisitionMode", "SingleFrame"), test.ShouldBeNil)

	var n int32
	for i := 0; i < 2; i++ {
		f := &pvapi.Frame{ImageBuffer: make([]byte, 1360*1024)}
		test.That(t, s.QueueFrame(h, f, func(*pvapi.Frame) { atomic.AddInt32(&n, 1) }), test.ShouldBeNil)
	}
	test.That(t, s.RunCommand(h, "AcquisitionStart"), test.ShouldBeNil)
	deadline := time.Now().Add(5 * time.Second)
	for atomic.LoadInt32(&n) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	test.That(t, atomic.LoadInt32(&n), test.ShouldEqual, int32(1))
	test.That(t, s.Queued(h), test.ShouldEqual, 1)
}

func TestAcquisitionStartNeedsCapture(t *testing.T) {
	s := New(DefaultCamera(1))
	h, err := s.Open(1, pvapi.AccessMaster)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.RunCommand(h, "AcquisitionStart"), test.ShouldEqual, pvapi.ErrBadSequence)
}
