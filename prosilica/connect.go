package prosilica

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/multierr"

	"github.com/areaDetector/ADProsilica/adparam"
	"github.com/areaDetector/ADProsilica/camera"
	"github.com/areaDetector/ADProsilica/ndarray"
	"github.com/areaDetector/ADProsilica/pvapi"
)

// slot is one capture buffer cycling through the SDK queue.  It ties the
// frame handed to the SDK back to its Detector and the image backing it.
type slot struct {
	det   *Detector
	gen   uint64
	frame pvapi.Frame
	image *ndarray.Image
}

// bytesPerPixel computes the worst case pixel size for a sensor.  Color
// sensors may deliver three channels per pixel.
func bytesPerPixel(sensorType string, bits uint32) int {
	if bits == 0 {
		bits = 8
	}
	bpp := int((bits-1)/8 + 1)
	if sensorType != "Mono" {
		bpp *= 3
	}
	return bpp
}

// Connect opens the camera, starts capture mode, queues the capture buffers
// and synchronizes the parameter table.  An existing connection is torn
// down first.  On failure the Detector is left disconnected.
func (d *Detector) Connect() error {
	d.opMu.Lock()
	defer d.opMu.Unlock()
	if err := d.disconnect(); err != nil {
		d.log.Warnw("error tearing down previous connection", "op", "connect", "error", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.connect()
	if err != nil {
		d.metrics.connectFailed()
		d.log.Errorw("connect failed", "op", "connect", "error", err)
		d.params.SetString(adparam.StatusMessage, err.Error())
		d.params.CallCallbacks()
		return err
	}
	d.metrics.connected()
	return nil
}

// ConnectWithRetry calls Connect with exponential backoff until it succeeds,
// ctx is done, or maxElapsed passes.  Access denial is not retried.
func (d *Detector) ConnectWithRetry(ctx context.Context, maxElapsed time.Duration) error {
	op := func() error {
		err := d.Connect()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrNoAccess) || pvapi.IsCode(err, pvapi.ErrAccessDenied) {
			return backoff.Permanent(err)
		}
		return err
	}
	b := &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      maxElapsed,
		Clock:               backoff.SystemClock}
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}

func (d *Detector) connect() (err error) {
	info, err := d.gw.CameraInfo(d.cfg.UniqueID)
	if err != nil {
		return pvapi.Enrich(err, "PvCameraInfo")
	}
	if info.PermittedAccess&pvapi.AccessMaster == 0 {
		return ErrNoAccess
	}
	h, err := d.gw.Open(d.cfg.UniqueID, pvapi.AccessMaster)
	if err != nil {
		return pvapi.Enrich(err, "PvCameraOpen")
	}

	var slots []*slot
	defer func() {
		if err == nil {
			return
		}
		if err2 := d.teardown(h); err2 != nil {
			d.log.Warnw("error closing camera after failed connect", "op", "connect", "error", err2)
		}
		for _, s := range slots {
			s.image.Release()
		}
	}()

	if err = pvapi.Enrich(d.gw.AdjustPacketSize(h, d.cfg.PacketSize), "PvCaptureAdjustPacketSize"); err != nil {
		return err
	}
	if err = pvapi.Enrich(d.gw.StartCapture(h), "PvCaptureStart"); err != nil {
		return err
	}

	sensorType, err := d.gw.GetEnum(h, "SensorType")
	if err != nil {
		return pvapi.Enrich(err, "SensorType")
	}
	var bits, width, height, freq uint32
	for _, q := range []struct {
		attr string
		dst  *uint32
	}{
		{"SensorBits", &bits},
		{"SensorWidth", &width},
		{"SensorHeight", &height},
		{"TimeStampFrequency", &freq},
	} {
		*q.dst, err = d.gw.GetUint32(h, q.attr)
		if err != nil {
			return pvapi.Enrich(err, q.attr)
		}
	}
	ip, err := d.gw.GetString(h, "DeviceIPAddress")
	if err != nil {
		return pvapi.Enrich(err, "DeviceIPAddress")
	}

	bpp := bytesPerPixel(sensorType, bits)
	maxFrameSize := int(width) * int(height) * bpp

	d.gen++
	for idx := 0; idx < NumBuffers; idx++ {
		var img *ndarray.Image
		img, err = d.pool.Alloc(maxFrameSize)
		if err != nil {
			return err
		}
		s := &slot{det: d, gen: d.gen, image: img}
		s.frame.ImageBuffer = img.Data
		slots = append(slots, s)
	}
	for _, s := range slots {
		if err = pvapi.Enrich(d.gw.QueueFrame(h, &s.frame, s.complete), "PvCaptureQueueFrame"); err != nil {
			return err
		}
	}

	d.handle = h
	d.info = info
	d.slots = slots
	d.sensorType = sensorType
	d.sensorWidth = int(width)
	d.sensorHeight = int(height)
	d.bytesPerPixel = bpp
	d.maxFrameSize = maxFrameSize
	d.tsFreq = freq
	d.ipAddress = ip
	d.session.Stop()
	d.shuttingDown.Store(false)

	p := d.params
	p.SetString(adparam.Manufacturer, Manufacturer)
	p.SetString(adparam.Model, info.DisplayName)
	p.SetInt(adparam.MaxSizeX, int(width))
	p.SetInt(adparam.MaxSizeY, int(height))
	p.SetInt(adparam.SizeX, int(width))
	p.SetInt(adparam.SizeY, int(height))
	p.SetInt(adparam.BadFrameCounter, 0)
	p.SetInt(adparam.Acquire, 0)
	p.SetInt(adparam.Status, int(camera.Idle))
	p.SetString(adparam.StatusMessage, "")

	d.log.Infow("connected", "op", "connect", "model", info.DisplayName, "serial", info.SerialString,
		"ip", ip, "sensor", sensorType, "bits", bits, "width", width, "height", height,
		"maxFrameSize", maxFrameSize)

	// the connection stands even if the read back is incomplete
	if err2 := multierr.Append(d.readParameters(), d.readStats()); err2 != nil {
		d.log.Warnw("incomplete parameter read after connect", "op", "connect", "error", err2)
	}
	d.params.CallCallbacks()
	return nil
}

// Disconnect cancels the capture queue, leaves capture mode, closes the
// camera and releases the capture buffers.  It is a no-op when not connected.
// Every step runs even if an earlier one fails; the errors are combined.
func (d *Detector) Disconnect() error {
	d.opMu.Lock()
	defer d.opMu.Unlock()
	return d.disconnect()
}

func (d *Detector) disconnect() error {
	d.mu.Lock()
	if d.handle == 0 {
		d.mu.Unlock()
		return nil
	}
	// completions that have not yet taken the lock bail out on this flag;
	// those already waiting for it see the generation change
	d.shuttingDown.Store(true)
	h := d.handle
	slots := d.slots
	d.handle = 0
	d.slots = nil
	d.gen++
	d.session.Stop()
	d.params.SetInt(adparam.Acquire, 0)
	d.params.SetInt(adparam.Status, int(camera.Idle))
	d.params.CallCallbacks()
	d.mu.Unlock()

	// the SDK may wait on callbacks here, so the lock is not held
	err := d.teardown(h)
	for _, s := range slots {
		s.image.Release()
	}
	if err != nil {
		d.log.Errorw("error during disconnect", "op", "disconnect", "error", err)
	} else {
		d.log.Infow("disconnected", "op", "disconnect")
	}
	return err
}

// teardown runs the SDK's close sequence, continuing past failures
func (d *Detector) teardown(h pvapi.Handle) error {
	var err error
	err = multierr.Append(err, pvapi.Enrich(d.gw.ClearQueue(h), "PvCaptureQueueClear"))
	err = multierr.Append(err, pvapi.Enrich(d.gw.EndCapture(h), "PvCaptureEnd"))
	err = multierr.Append(err, pvapi.Enrich(d.gw.Close(h), "PvCameraClose"))
	return err
}
