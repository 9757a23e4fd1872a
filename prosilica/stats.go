package prosilica

import (
	"time"

	"go.uber.org/multierr"

	"github.com/areaDetector/ADProsilica/adparam"
	"github.com/areaDetector/ADProsilica/pvapi"
)

var statCounters = []struct {
	attr  string
	param adparam.Param
}{
	{"StatFramesCompleted", adparam.FramesCompleted},
	{"StatFramesDropped", adparam.FramesDropped},
	{"StatPacketsErroneous", adparam.PacketsErroneous},
	{"StatPacketsMissed", adparam.PacketsMissed},
	{"StatPacketsReceived", adparam.PacketsReceived},
	{"StatPacketsRequested", adparam.PacketsRequested},
	{"StatPacketsResent", adparam.PacketsResent},
}

// readStats refreshes the streaming statistics.  The caller holds mu.
func (d *Detector) readStats() error {
	h := d.handle
	if h == 0 {
		return ErrNotConnected
	}
	p := d.params
	var errs error
	if s, err := d.gw.GetEnum(h, "StatDriverType"); err != nil {
		errs = multierr.Append(errs, pvapi.Enrich(err, "StatDriverType"))
	} else {
		p.SetString(adparam.DriverType, s)
	}
	if s, err := d.gw.GetString(h, "StatFilterVersion"); err != nil {
		errs = multierr.Append(errs, pvapi.Enrich(err, "StatFilterVersion"))
	} else {
		p.SetString(adparam.FilterVersion, s)
	}
	if f, err := d.gw.GetFloat32(h, "StatFrameRate"); err != nil {
		errs = multierr.Append(errs, pvapi.Enrich(err, "StatFrameRate"))
	} else {
		p.SetFloat(adparam.FrameRate, float64(f))
		d.metrics.frameRate(float64(f))
	}
	for _, c := range statCounters {
		n, err := d.gw.GetUint32(h, c.attr)
		if err != nil {
			errs = multierr.Append(errs, pvapi.Enrich(err, c.attr))
			continue
		}
		p.SetInt(c.param, int(n))
	}
	p.CallCallbacks()
	return errs
}

// ReadStats refreshes the streaming statistics from the camera
func (d *Detector) ReadStats() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readStats()
}

// pollStats reads the statistics on every tick while connected
func (d *Detector) pollStats(interval time.Duration) {
	defer d.wg.Done()
	t := d.cfg.Clock.Ticker(interval)
	defer t.Stop()
	for {
		select {
		case <-d.done:
			return
		case <-t.C:
		}
		d.mu.Lock()
		if d.handle != 0 {
			if err := d.readStats(); err != nil && d.frameLog.Allow() {
				d.log.Warnw("statistics poll", "op", "stats", "error", err)
			}
		}
		d.mu.Unlock()
	}
}
