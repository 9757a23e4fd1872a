package prosilica

import (
	"github.com/areaDetector/ADProsilica/adparam"
	"github.com/areaDetector/ADProsilica/camera"
	"github.com/areaDetector/ADProsilica/ndarray"
	"github.com/areaDetector/ADProsilica/pvapi"
)

// dataType maps the pixel format of a frame to the image data type
func dataType(f pvapi.PixelFormat) ndarray.DataType {
	switch f {
	case pvapi.Mono8, pvapi.Bayer8:
		return ndarray.UInt8
	case pvapi.Mono16, pvapi.Bayer16:
		return ndarray.UInt16
	default:
		return ndarray.UInt32
	}
}

// complete is the SDK completion callback for a slot.  It runs on the SDK's
// thread, concurrently with control operations.
func (s *slot) complete(f *pvapi.Frame) {
	d := s.det
	if f.Status == pvapi.ErrCancelled || d.shuttingDown.Load() {
		return
	}

	d.mu.Lock()
	if s.gen != d.gen || d.handle == 0 {
		d.mu.Unlock()
		return
	}
	var out *ndarray.Image
	if f.Status == pvapi.Success {
		out = d.accept(s, f)
		// a dropped frame still counts against the acquisition
		if d.session.Complete() {
			d.params.SetInt(adparam.Acquire, 0)
			d.params.SetInt(adparam.Status, int(camera.Idle))
			d.log.Infow("acquisition complete", "op", "frame", "session", d.session.ID)
		}
	} else {
		d.params.SetInt(adparam.BadFrameCounter, d.params.MustInt(adparam.BadFrameCounter)+1)
		d.metrics.badFrame()
		if d.frameLog.Allow() {
			d.log.Warnw("frame failed", "op", "frame", "status", f.Status, "frameCount", f.FrameCount)
		}
	}
	save := out != nil && d.params.MustInt(adparam.AutoSave) != 0

	if err := d.gw.QueueFrame(d.handle, &s.frame, s.complete); err != nil {
		d.metrics.requeueFailed()
		d.log.Errorw("could not requeue capture buffer", "op", "frame", "error", pvapi.Enrich(err, "PvCaptureQueueFrame"))
	}
	d.params.CallCallbacks()
	d.mu.Unlock()

	if out != nil {
		d.enqueue(delivery{img: out, save: save})
	}
}

// accept publishes the frame in s as the last good image and gives s a fresh
// buffer.  It returns the published image with a reference held for delivery,
// or nil if no fresh buffer could be allocated, in which case the frame is
// dropped and s keeps its buffer.
func (d *Detector) accept(s *slot, f *pvapi.Frame) *ndarray.Image {
	fresh, err := d.pool.Alloc(d.maxFrameSize)
	if err != nil {
		d.metrics.droppedFrame()
		if d.frameLog.Allow() {
			d.log.Errorw("no buffer for next frame, dropping frame", "op", "frame", "error", err)
		}
		return nil
	}

	freq := d.tsFreq
	if freq == 0 {
		freq = 1
	}
	img := s.image
	n := int(f.ImageSize)
	if n > cap(f.ImageBuffer) {
		n = cap(f.ImageBuffer)
	}
	img.Data = f.ImageBuffer[:n]
	img.Width = int(f.Width)
	img.Height = int(f.Height)
	img.DataType = dataType(f.Format)
	img.UniqueID = int(f.FrameCount)
	img.TimeStamp = float64(f.Timestamp()) / float64(freq)

	// the slot's reference moves to last
	if d.last != nil {
		d.last.Release()
	}
	d.last = img
	img.Reserve()

	s.image = fresh
	s.frame = pvapi.Frame{ImageBuffer: fresh.Data}

	d.params.SetInt(adparam.ImageCounter, d.params.MustInt(adparam.ImageCounter)+1)
	d.params.SetInt(adparam.ArrayCounter, d.params.MustInt(adparam.ArrayCounter)+1)
	d.params.SetInt(adparam.ImageSizeX, img.Width)
	d.params.SetInt(adparam.ImageSizeY, img.Height)
	d.metrics.frame()
	return img
}
