package prosilica

import (
	"fmt"
	"io"
)

// Report writes a description of the camera to w.  details > 1 also lists
// every camera the gateway can see.
func (d *Detector) Report(w io.Writer, details int) error {
	d.mu.Lock()
	connected := d.handle != 0
	info := d.info
	sensorType, width, height, bpp, ip := d.sensorType, d.sensorWidth, d.sensorHeight, d.bytesPerPixel, d.ipAddress
	session := d.session
	d.mu.Unlock()

	fmt.Fprintf(w, "Prosilica camera %d\n", d.cfg.UniqueID)
	if !connected {
		fmt.Fprintln(w, "  not connected")
	} else {
		fmt.Fprintf(w, "  ID:                %d\n", info.UniqueID)
		fmt.Fprintf(w, "  IP address:        %s\n", ip)
		fmt.Fprintf(w, "  Serial number:     %s\n", info.SerialString)
		fmt.Fprintf(w, "  Camera name:       %s\n", info.DisplayName)
		fmt.Fprintf(w, "  Part number:       %d\n", info.PartNumber)
		fmt.Fprintf(w, "  Part version:      %d\n", info.PartVersion)
		fmt.Fprintf(w, "  Sensor type:       %s\n", sensorType)
		fmt.Fprintf(w, "  Sensor size:       %d x %d\n", width, height)
		fmt.Fprintf(w, "  Bytes per pixel:   %d\n", bpp)
		fmt.Fprintf(w, "  Acquisition:       %s (%s)\n", session.State, session.Mode)
	}
	if details <= 1 {
		return nil
	}
	cams, err := d.gw.CameraList()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "  %d cameras visible\n", len(cams))
	for _, c := range cams {
		fmt.Fprintf(w, "    %d %s %s access=%d\n", c.UniqueID, c.DisplayName, c.SerialString, c.PermittedAccess)
	}
	return nil
}
