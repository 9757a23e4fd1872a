package prosilica

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"go.uber.org/multierr"

	"github.com/areaDetector/ADProsilica/adparam"
	"github.com/areaDetector/ADProsilica/camera"
	"github.com/areaDetector/ADProsilica/ndarray"
	"github.com/areaDetector/ADProsilica/pvapi"
)

// imageModes maps image modes to the AcquisitionMode enum
var imageModes = map[camera.ImageMode]string{
	camera.Single:     "SingleFrame",
	camera.Multiple:   "MultiFrame",
	camera.Continuous: "Continuous",
}

// storeOnly parameters are not forwarded to the camera
var storeOnly = map[adparam.Param]bool{
	adparam.AutoSave:     true,
	adparam.FileNumber:   true,
	adparam.FileFormat:   true,
	adparam.ImageCounter: true,
	adparam.ArrayCounter: true,
	adparam.WriteFile:    true,
}

// WriteInt stages an integer parameter, applies it to the camera and reads
// every parameter back.  The returned error combines the failure to apply
// the value, if any, with any failure of the read back.
func (d *Detector) WriteInt(p adparam.Param, v int) error {
	var post func() error
	d.mu.Lock()
	err := d.params.SetInt(p, v)
	if err == nil {
		post, err = d.writeInt(p, v)
	}
	d.mu.Unlock()
	if post != nil {
		err = multierr.Append(err, post())
	}
	if err != nil {
		d.log.Warnw("parameter write", "op", "writeInt", "param", p, "value", v, "error", err)
	}
	return err
}

// writeInt dispatches an integer write.  It returns work to run once the
// lock is released.
func (d *Detector) writeInt(p adparam.Param, v int) (func() error, error) {
	h := d.handle
	if h == 0 && !storeOnly[p] {
		if p == adparam.Acquire {
			d.params.SetInt(adparam.Acquire, 0)
		}
		d.params.CallCallbacks()
		return nil, ErrNotConnected
	}
	var (
		err  error
		post func() error
	)
	switch p {
	case adparam.BinX, adparam.BinY, adparam.MinX, adparam.MinY, adparam.SizeX, adparam.SizeY:
		err = d.setGeometry()
	case adparam.NumImages:
		if v < 1 {
			err = fmt.Errorf("%w: %d images", ErrOutOfRange, v)
			break
		}
		err = pvapi.Enrich(d.gw.SetUint32(h, "AcquisitionFrameCount", uint32(v)), "AcquisitionFrameCount")
	case adparam.ImageMode:
		mode, ok := imageModes[camera.ImageMode(v)]
		if !ok {
			err = fmt.Errorf("%w: image mode %d", ErrOutOfRange, v)
			break
		}
		err = pvapi.Enrich(d.gw.SetEnum(h, "AcquisitionMode", mode), "AcquisitionMode")
	case adparam.Acquire:
		err = d.setAcquire(v != 0)
	case adparam.TriggerMode:
		if v < 0 || v >= len(pvapi.TriggerModes) {
			err = fmt.Errorf("%w: trigger mode %d", ErrOutOfRange, v)
			break
		}
		err = pvapi.Enrich(d.gw.SetEnum(h, "FrameStartTriggerMode", pvapi.TriggerModes[v]), "FrameStartTriggerMode")
	case adparam.ReadStatistics:
		err = d.readStats()
	case adparam.WriteFile:
		if v == 0 {
			break
		}
		if d.last == nil {
			err = ErrNoImage
			break
		}
		img := d.last
		img.Reserve()
		post = func() error {
			defer img.Release()
			_, err := d.writeFile(img)
			return err
		}
	case adparam.DataType:
		var format string
		switch ndarray.DataType(v) {
		case ndarray.Int8, ndarray.UInt8:
			format = "Mono8"
		case ndarray.Int16, ndarray.UInt16:
			format = "Mono16"
		default:
			err = fmt.Errorf("%w: %s", ErrUnsupportedDataType, ndarray.DataType(v))
		}
		if format != "" {
			err = pvapi.Enrich(d.gw.SetEnum(h, "PixelFormat", format), "PixelFormat")
		}
	}
	if h == 0 {
		d.params.CallCallbacks()
		return post, err
	}
	return post, multierr.Append(err, d.readParameters())
}

// toUint32 converts v for a uint32 attribute, truncating the fraction.
// Negative, non-finite and too large values are ErrOutOfRange
func toUint32(v float64, what string) (uint32, error) {
	if math.IsNaN(v) || v < 0 || v > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %s %g", ErrOutOfRange, what, v)
	}
	return uint32(v), nil
}

// WriteFloat stages a float parameter, applies it to the camera and reads
// every parameter back
func (d *Detector) WriteFloat(p adparam.Param, v float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.params.SetFloat(p, v); err != nil {
		return err
	}
	h := d.handle
	if h == 0 {
		d.params.CallCallbacks()
		return ErrNotConnected
	}
	var err error
	switch p {
	case adparam.AcquireTime:
		var us uint32
		if us, err = toUint32(v*1e6, "exposure us"); err == nil {
			err = pvapi.Enrich(d.gw.SetUint32(h, "ExposureValue", us), "ExposureValue")
		}
	case adparam.AcquirePeriod:
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			err = fmt.Errorf("%w: period %g s", ErrOutOfRange, v)
			break
		}
		if v == 0 {
			v = .01
		}
		err = pvapi.Enrich(d.gw.SetFloat32(h, "FrameRate", float32(1/v)), "FrameRate")
	case adparam.Gain:
		var g uint32
		if g, err = toUint32(v, "gain"); err == nil {
			err = pvapi.Enrich(d.gw.SetUint32(h, "GainValue", g), "GainValue")
		}
	}
	err = multierr.Append(err, d.readParameters())
	if err != nil {
		d.log.Warnw("parameter write", "op", "writeFloat", "param", p, "value", v, "error", err)
	}
	return err
}

// WriteString stages a string parameter.  No string parameter is forwarded to the camera.
func (d *Detector) WriteString(p adparam.Param, v string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.params.SetString(p, v); err != nil {
		return err
	}
	d.params.CallCallbacks()
	return nil
}

// Write dispatches v to WriteInt, WriteFloat or WriteString by the parameter's kind
func (d *Detector) Write(p adparam.Param, v interface{}) error {
	switch p.Kind() {
	case adparam.Int:
		switch t := v.(type) {
		case int:
			return d.WriteInt(p, t)
		case int64:
			return d.WriteInt(p, int(t))
		case float64:
			return d.WriteInt(p, int(t))
		case bool:
			return d.WriteInt(p, b2i(t))
		case string:
			i, err := strconv.Atoi(t)
			if err == nil {
				return d.WriteInt(p, i)
			}
		}
	case adparam.Float:
		switch t := v.(type) {
		case int:
			return d.WriteFloat(p, float64(t))
		case int64:
			return d.WriteFloat(p, float64(t))
		case float64:
			return d.WriteFloat(p, t)
		case string:
			f, err := strconv.ParseFloat(t, 64)
			if err == nil {
				return d.WriteFloat(p, f)
			}
		}
	case adparam.String:
		if s, ok := v.(string); ok {
			return d.WriteString(p, s)
		}
	default:
		return fmt.Errorf("%w: %d", adparam.ErrUnknownParam, int(p))
	}
	return fmt.Errorf("%w: %T for %s", adparam.ErrWrongKind, v, p)
}

// Configure writes a batch of parameters given by name, in name order.
// A failing parameter does not stop the rest
func (d *Detector) Configure(args map[string]interface{}) error {
	names := make([]string, 0, len(args))
	for k := range args {
		names = append(names, k)
	}
	sort.Strings(names)
	var errs error
	for _, name := range names {
		p, err := adparam.Lookup(name)
		if err == nil {
			err = d.Write(p, args[name])
		}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errs
}

// ReadInt returns the current value of an integer parameter
func (d *Detector) ReadInt(p adparam.Param) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.params.Int(p)
}

// ReadFloat returns the current value of a float parameter
func (d *Detector) ReadFloat(p adparam.Param) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.params.Float(p)
}

// ReadString returns the current value of a string parameter
func (d *Detector) ReadString(p adparam.Param) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.params.Str(p)
}

// Read returns the current value of any parameter
func (d *Detector) Read(p adparam.Param) (adparam.Value, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.params.Get(p)
}

// Params returns every parameter by name
func (d *Detector) Params() map[string]interface{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.params.Snapshot()
}

// readParameters refreshes the parameter table from the camera and fires
// callbacks.  Every attribute is read even if some fail.
func (d *Detector) readParameters() error {
	h := d.handle
	if h == 0 {
		return ErrNotConnected
	}
	p := d.params
	var errs error
	fail := func(err error, attr string) bool {
		if err != nil {
			errs = multierr.Append(errs, pvapi.Enrich(err, attr))
			return true
		}
		return false
	}

	if n, err := d.gw.GetUint32(h, "TotalBytesPerFrame"); !fail(err, "TotalBytesPerFrame") {
		p.SetInt(adparam.ImageSize, int(n))
	}
	if s, err := d.gw.GetEnum(h, "PixelFormat"); !fail(err, "PixelFormat") {
		switch s {
		case "Mono8":
			p.SetInt(adparam.DataType, int(ndarray.UInt8))
		case "Mono16":
			p.SetInt(adparam.DataType, int(ndarray.UInt16))
		default:
			errs = multierr.Append(errs, fmt.Errorf("%w: pixel format %s", ErrUnsupportedDataType, s))
		}
	}
	errs = multierr.Append(errs, d.getGeometry())
	if n, err := d.gw.GetUint32(h, "AcquisitionFrameCount"); !fail(err, "AcquisitionFrameCount") {
		p.SetInt(adparam.NumImages, int(n))
	}
	if s, err := d.gw.GetEnum(h, "AcquisitionMode"); !fail(err, "AcquisitionMode") {
		switch s {
		case "SingleFrame":
			p.SetInt(adparam.ImageMode, int(camera.Single))
		case "MultiFrame", "Recorder":
			p.SetInt(adparam.ImageMode, int(camera.Multiple))
		case "Continuous":
			p.SetInt(adparam.ImageMode, int(camera.Continuous))
		default:
			errs = multierr.Append(errs, fmt.Errorf("%w: acquisition mode %s", ErrOutOfRange, s))
		}
	}
	if s, err := d.gw.GetEnum(h, "FrameStartTriggerMode"); !fail(err, "FrameStartTriggerMode") {
		idx := pvapi.IndexOf(pvapi.TriggerModes, s)
		if idx < 0 {
			idx = 0
			errs = multierr.Append(errs, fmt.Errorf("%w: trigger mode %s", ErrOutOfRange, s))
		}
		p.SetInt(adparam.TriggerMode, idx)
	}
	p.SetInt(adparam.NumExposures, 1)
	if n, err := d.gw.GetUint32(h, "ExposureValue"); !fail(err, "ExposureValue") {
		p.SetFloat(adparam.AcquireTime, float64(n)/1e6)
	}
	if rate, err := d.gw.GetFloat32(h, "FrameRate"); !fail(err, "FrameRate") {
		if rate == 0 {
			rate = 1
		}
		p.SetFloat(adparam.AcquirePeriod, 1/float64(rate))
	}
	if n, err := d.gw.GetUint32(h, "GainValue"); !fail(err, "GainValue") {
		p.SetFloat(adparam.Gain, float64(n))
	}
	p.CallCallbacks()
	return errs
}
