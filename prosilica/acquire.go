package prosilica

import (
	"errors"

	"github.com/areaDetector/ADProsilica/adparam"
	"github.com/areaDetector/ADProsilica/camera"
	"github.com/areaDetector/ADProsilica/pvapi"
)

// setAcquire starts or stops acquisition.  The caller holds mu and has
// checked that the camera is open.
func (d *Detector) setAcquire(on bool) error {
	p := d.params
	if !on {
		wasAcquiring := d.session.Acquiring()
		d.session.Stop()
		p.SetInt(adparam.Acquire, 0)
		p.SetInt(adparam.Status, int(camera.Idle))
		if wasAcquiring {
			d.log.Infow("acquisition stopped", "op", "acquire", "session", d.session.ID)
		}
		return pvapi.Enrich(d.gw.RunCommand(d.handle, "AcquisitionAbort"), "AcquisitionAbort")
	}

	mode := camera.ImageMode(p.MustInt(adparam.ImageMode))
	if err := d.session.Start(mode, p.MustInt(adparam.NumImages)); err != nil {
		if errors.Is(err, ErrAlreadyAcquiring) {
			p.SetInt(adparam.Acquire, 1)
		} else {
			p.SetInt(adparam.Acquire, 0)
		}
		return err
	}
	p.SetInt(adparam.Status, int(camera.Acquiring))
	if err := d.gw.RunCommand(d.handle, "AcquisitionStart"); err != nil {
		d.session.Stop()
		p.SetInt(adparam.Acquire, 0)
		p.SetInt(adparam.Status, int(camera.Idle))
		return pvapi.Enrich(err, "AcquisitionStart")
	}
	d.metrics.acquisition()
	d.log.Infow("acquisition started", "op", "acquire", "session", d.session.ID,
		"mode", mode, "remaining", d.session.Remaining)
	return nil
}

// Session returns a copy of the current acquisition session
func (d *Detector) Session() Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session
}
