package prosilica

import (
	"errors"
	"fmt"

	"github.com/areaDetector/ADProsilica/adparam"
	"github.com/areaDetector/ADProsilica/ndarray"
)

// ErrNoWriter is generated when a file is requested but no FileWriter is configured
var ErrNoWriter = errors.New("no file writer configured")

// fileName formats the next file name from the file parameters.  An empty
// result lets the writer choose.  The caller holds mu.
func (d *Detector) fileName() string {
	p := d.params
	path, _ := p.Str(adparam.FilePath)
	name, _ := p.Str(adparam.FileName)
	if path == "" && name == "" {
		return ""
	}
	tmpl, _ := p.Str(adparam.FileTemplate)
	if tmpl == "" {
		tmpl = "%s%s_%03d"
	}
	return fmt.Sprintf(tmpl, path, name, p.MustInt(adparam.FileNumber))
}

// writeFile persists img with the configured writer and advances the file
// number.  It takes mu itself and must be called without it.
func (d *Detector) writeFile(img *ndarray.Image) (string, error) {
	if d.cfg.Writer == nil {
		return "", ErrNoWriter
	}
	d.mu.Lock()
	name := d.fileName()
	d.mu.Unlock()

	full, err := d.cfg.Writer.WriteImage(img, name)

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.params.SetString(adparam.StatusMessage, err.Error())
		d.params.CallCallbacks()
		return "", err
	}
	d.params.SetString(adparam.FullFileName, full)
	d.params.SetInt(adparam.FileNumber, d.params.MustInt(adparam.FileNumber)+1)
	d.params.CallCallbacks()
	d.log.Debugw("wrote image", "op", "writeFile", "file", full, "uniqueId", img.UniqueID)
	return full, nil
}

// WriteLastImage writes the most recent good image and returns the file name
func (d *Detector) WriteLastImage() (string, error) {
	img, err := d.LastImage()
	if err != nil {
		return "", err
	}
	defer img.Release()
	return d.writeFile(img)
}
