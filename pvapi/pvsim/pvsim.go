/*
Package pvsim is an in-process stand-in for the Prosilica SDK.

A Sim holds any number of simulated cameras.  Each behaves like a GigE camera
with a capture queue: frames handed to QueueFrame are filled and completed
either by a free-running goroutine started with AcquisitionStart, or, when
Manual is set, one at a time by Expose.  Callbacks are always invoked without
the Sim's lock held, so they may call back into the Sim.
*/
package pvsim

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/areaDetector/ADProsilica/pvapi"
)

// Camera is the static configuration of a simulated camera
type Camera struct {
	Info pvapi.CameraInfo

	// SensorType is "Mono" or a color type such as "Bayer"
	SensorType string

	SensorBits   uint32
	SensorWidth  uint32
	SensorHeight uint32

	// TimeStampFrequency is the camera clock rate in Hz.  Zero is allowed.
	TimeStampFrequency uint32

	IPAddress string
}

// DefaultCamera returns a 12-bit monochrome camera with a 1 MHz clock
func DefaultCamera(uniqueID uint32) Camera {
	return Camera{
		Info: pvapi.CameraInfo{
			UniqueID:        uniqueID,
			SerialString:    fmt.Sprintf("%08d", uniqueID),
			PartNumber:      2001,
			PartVersion:     1,
			PermittedAccess: pvapi.AccessMaster | pvapi.AccessMonitor,
			InterfaceType:   pvapi.InterfaceEthernet,
			DisplayName:     "GC1380H",
		},
		SensorType:         "Mono",
		SensorBits:         12,
		SensorWidth:        1360,
		SensorHeight:       1024,
		TimeStampFrequency: 1000000,
		IPAddress:          "169.254.1.10",
	}
}

type pending struct {
	frame *pvapi.Frame
	cb    pvapi.FrameCallback
}

type camera struct {
	cfg Camera

	handle    pvapi.Handle
	capturing bool
	acquiring bool
	stop      chan struct{}

	// remaining frames in the current acquisition, -1 for continuous
	remaining int

	queue []pending
	attrs map[string]interface{}

	frameCount uint32
	clock      uint64

	completed uint32
	dropped   uint32
	packets   uint32
}

// Sim simulates the SDK and every camera attached to it
type Sim struct {
	mu      sync.Mutex
	cameras map[uint32]*camera
	handles map[pvapi.Handle]*camera
	next    pvapi.Handle

	// Manual disables the free-running capture goroutine; frames complete only via Expose
	Manual bool

	failures map[string]error
	calls    []string
}

// New returns a Sim populated with cams
func New(cams ...Camera) *Sim {
	s := &Sim{
		cameras:  make(map[uint32]*camera),
		handles:  make(map[pvapi.Handle]*camera),
		failures: make(map[string]error),
	}
	for _, c := range cams {
		s.Add(c)
	}
	return s
}

// Add plugs a camera into the simulated network
func (s *Sim) Add(c Camera) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cameras[c.Info.UniqueID] = &camera{cfg: c, attrs: defaultAttrs(c)}
}

func defaultAttrs(c Camera) map[string]interface{} {
	return map[string]interface{}{
		"BinningX":              uint32(1),
		"BinningY":              uint32(1),
		"RegionX":               uint32(0),
		"RegionY":               uint32(0),
		"Width":                 c.SensorWidth,
		"Height":                c.SensorHeight,
		"AcquisitionFrameCount": uint32(1),
		"ExposureValue":         uint32(15000),
		"GainValue":             uint32(0),
		"PacketSize":            uint32(1500),
		"FrameRate":             float32(10),
		"AcquisitionMode":       "Continuous",
		"FrameStartTriggerMode": "Freerun",
		"PixelFormat":           "Mono8",
		"StatDriverType":        "Standard",
		"StatFilterVersion":     "1.24.17",
		"CameraName":            c.Info.DisplayName,
	}
}

// Fail makes every subsequent access to op fail with err.  op is an attribute or
// command name, or one of Open, Close, AdjustPacketSize, StartCapture, EndCapture,
// QueueFrame, ClearQueue.  A nil err clears the failure.
func (s *Sim) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// Calls returns the log of mutating calls made on the Sim, oldest first
func (s *Sim) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

// ResetCalls clears the call log
func (s *Sim) ResetCalls() {
	s.mu.Lock()
	s.calls = s.calls[:0]
	s.mu.Unlock()
}

func (s *Sim) record(format string, args ...interface{}) {
	s.calls = append(s.calls, fmt.Sprintf(format, args...))
}

func (s *Sim) lookup(h pvapi.Handle) (*camera, error) {
	c, ok := s.handles[h]
	if !ok {
		return nil, pvapi.ErrBadHandle
	}
	return c, nil
}

// CameraList lists the simulated cameras by unique id
func (s *Sim) CameraList() ([]pvapi.CameraInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]pvapi.CameraInfo, 0, len(s.cameras))
	for _, c := range s.cameras {
		out = append(out, c.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UniqueID < out[j].UniqueID })
	return out, nil
}

func (c *camera) info() pvapi.CameraInfo {
	info := c.cfg.Info
	if c.handle != 0 {
		// someone else is master
		info.PermittedAccess &^= pvapi.AccessMaster
	}
	return info
}

// CameraInfo looks up a camera
func (s *Sim) CameraInfo(uniqueID uint32) (pvapi.CameraInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cameras[uniqueID]
	if !ok {
		return pvapi.CameraInfo{}, pvapi.ErrNotFound
	}
	return c.info(), nil
}

// Open opens a camera
func (s *Sim) Open(uniqueID uint32, access pvapi.AccessFlags) (pvapi.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["Open"]; err != nil {
		return 0, err
	}
	c, ok := s.cameras[uniqueID]
	if !ok {
		return 0, pvapi.ErrNotFound
	}
	if c.handle != 0 || c.cfg.Info.PermittedAccess&access == 0 {
		return 0, pvapi.ErrAccessDenied
	}
	s.next++
	c.handle = s.next
	s.handles[c.handle] = c
	s.record("Open %d", uniqueID)
	return c.handle, nil
}

// Close closes a camera, stopping any capture
func (s *Sim) Close(h pvapi.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.lookup(h)
	if err != nil {
		return err
	}
	s.record("Close")
	if err := s.failures["Close"]; err != nil {
		return err
	}
	c.halt()
	c.capturing = false
	c.queue = nil
	c.handle = 0
	delete(s.handles, h)
	return nil
}

// AdjustPacketSize negotiates the packet size
func (s *Sim) AdjustPacketSize(h pvapi.Handle, maxSize uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.lookup(h)
	if err != nil {
		return err
	}
	if err := s.failures["AdjustPacketSize"]; err != nil {
		return err
	}
	s.record("AdjustPacketSize %d", maxSize)
	c.attrs["PacketSize"] = maxSize
	return nil
}

// StartCapture enters capture mode
func (s *Sim) StartCapture(h pvapi.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.lookup(h)
	if err != nil {
		return err
	}
	if err := s.failures["StartCapture"]; err != nil {
		return err
	}
	s.record("StartCapture")
	c.capturing = true
	return nil
}

// EndCapture leaves capture mode.  It does not wait for an in-progress callback.
func (s *Sim) EndCapture(h pvapi.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.lookup(h)
	if err != nil {
		return err
	}
	s.record("EndCapture")
	if err := s.failures["EndCapture"]; err != nil {
		return err
	}
	c.halt()
	c.capturing = false
	return nil
}

// QueueFrame places a frame on the capture queue
func (s *Sim) QueueFrame(h pvapi.Handle, f *pvapi.Frame, cb pvapi.FrameCallback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.lookup(h)
	if err != nil {
		return err
	}
	if err := s.failures["QueueFrame"]; err != nil {
		return err
	}
	if len(c.queue) >= 16 {
		return pvapi.ErrQueueFull
	}
	c.queue = append(c.queue, pending{frame: f, cb: cb})
	return nil
}

// ClearQueue cancels every queued frame and invokes their callbacks before returning
func (s *Sim) ClearQueue(h pvapi.Handle) error {
	s.mu.Lock()
	c, err := s.lookup(h)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.record("ClearQueue")
	if err := s.failures["ClearQueue"]; err != nil {
		s.mu.Unlock()
		return err
	}
	cancelled := c.queue
	c.queue = nil
	s.mu.Unlock()

	for _, p := range cancelled {
		p.frame.Status = pvapi.ErrCancelled
		p.cb(p.frame)
	}
	return nil
}

// Queued returns the number of frames waiting on a camera's queue
func (s *Sim) Queued(h pvapi.Handle) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.lookup(h)
	if err != nil {
		return 0
	}
	return len(c.queue)
}

// SetClock sets the camera clock that will stamp the next frame
func (s *Sim) SetClock(h pvapi.Handle, ticks uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, err := s.lookup(h); err == nil {
		c.clock = ticks
	}
}

// Expose completes the frame at the head of the queue with status.  It reports
// false if nothing was queued.  The callback runs on the calling goroutine.
func (s *Sim) Expose(h pvapi.Handle, status pvapi.Err) bool {
	s.mu.Lock()
	c, err := s.lookup(h)
	if err != nil || len(c.queue) == 0 {
		s.mu.Unlock()
		return false
	}
	p := c.queue[0]
	c.queue = c.queue[1:]
	c.fill(p.frame, status)
	s.mu.Unlock()

	p.cb(p.frame)
	return true
}

// halt stops the free-running goroutine without waiting for it
func (c *camera) halt() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	c.acquiring = false
}

func bytesPerPixel(format string) uint32 {
	switch format {
	case "Mono8", "Bayer8":
		return 1
	case "Mono16", "Bayer16":
		return 2
	case "Rgb24", "Bgr24":
		return 3
	case "Rgb48":
		return 6
	case "Rgba32", "Bgra32":
		return 4
	default:
		return 2
	}
}

func (c *camera) frameBytes() uint32 {
	w := c.attrs["Width"].(uint32)
	h := c.attrs["Height"].(uint32)
	return w * h * bytesPerPixel(c.attrs["PixelFormat"].(string))
}

// fill writes a test pattern and metadata into f
func (c *camera) fill(f *pvapi.Frame, status pvapi.Err) {
	c.frameCount++
	c.clock += uint64(c.cfg.TimeStampFrequency/10) + 1
	f.FrameCount = c.frameCount
	f.TimestampLo = uint32(c.clock)
	f.TimestampHi = uint32(c.clock >> 32)
	f.Width = c.attrs["Width"].(uint32)
	f.Height = c.attrs["Height"].(uint32)
	f.RegionX = c.attrs["RegionX"].(uint32)
	f.RegionY = c.attrs["RegionY"].(uint32)
	f.BitDepth = c.cfg.SensorBits
	format, _ := pvapi.ParsePixelFormat(c.attrs["PixelFormat"].(string))
	f.Format = format
	f.Status = status
	if status != pvapi.Success {
		c.dropped++
		return
	}
	n := c.frameBytes()
	if uint32(len(f.ImageBuffer)) < n {
		f.Status = pvapi.ErrBufferTooSmall
		c.dropped++
		return
	}
	f.ImageSize = n
	switch format {
	case pvapi.Mono16, pvapi.Bayer16:
		for i := uint32(0); i+1 < n; i += 2 {
			binary.LittleEndian.PutUint16(f.ImageBuffer[i:], uint16(i/2+c.frameCount))
		}
	default:
		for i := uint32(0); i < n; i++ {
			f.ImageBuffer[i] = byte(i + c.frameCount)
		}
	}
	c.completed++
	pktSize := c.attrs["PacketSize"].(uint32)
	if pktSize > 0 {
		c.packets += (n + pktSize - 1) / pktSize
	}
}

// GetUint32 reads an integer attribute
func (s *Sim) GetUint32(h pvapi.Handle, attr string) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.lookup(h)
	if err != nil {
		return 0, err
	}
	if err := s.failures[attr]; err != nil {
		return 0, err
	}
	switch attr {
	case "SensorBits":
		return c.cfg.SensorBits, nil
	case "SensorWidth":
		return c.cfg.SensorWidth, nil
	case "SensorHeight":
		return c.cfg.SensorHeight, nil
	case "TimeStampFrequency":
		return c.cfg.TimeStampFrequency, nil
	case "TotalBytesPerFrame":
		return c.frameBytes(), nil
	case "StatFramesCompleted":
		return c.completed, nil
	case "StatFramesDropped":
		return c.dropped, nil
	case "StatPacketsReceived", "StatPacketsRequested":
		return c.packets, nil
	case "StatPacketsErroneous", "StatPacketsMissed", "StatPacketsResent":
		return 0, nil
	}
	v, ok := c.attrs[attr].(uint32)
	if !ok {
		return 0, pvapi.ErrNotFound
	}
	return v, nil
}

// SetUint32 writes an integer attribute
func (s *Sim) SetUint32(h pvapi.Handle, attr string, value uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.lookup(h)
	if err != nil {
		return err
	}
	s.record("SetUint32 %s %d", attr, value)
	if err := s.failures[attr]; err != nil {
		return err
	}
	if _, ok := c.attrs[attr].(uint32); !ok {
		return pvapi.ErrNotFound
	}
	binX := c.attrs["BinningX"].(uint32)
	binY := c.attrs["BinningY"].(uint32)
	maxX := c.cfg.SensorWidth / binX
	maxY := c.cfg.SensorHeight / binY
	switch attr {
	case "BinningX", "BinningY":
		if value < 1 || value > 8 {
			return pvapi.ErrOutOfRange
		}
		c.attrs[attr] = value
		c.clampRegion()
		return nil
	case "RegionX":
		if value >= maxX {
			return pvapi.ErrOutOfRange
		}
	case "RegionY":
		if value >= maxY {
			return pvapi.ErrOutOfRange
		}
	case "Width":
		if value < 1 || value > maxX {
			return pvapi.ErrOutOfRange
		}
	case "Height":
		if value < 1 || value > maxY {
			return pvapi.ErrOutOfRange
		}
	case "AcquisitionFrameCount":
		if value < 1 {
			return pvapi.ErrOutOfRange
		}
	}
	c.attrs[attr] = value
	return nil
}

// clampRegion shrinks the region to fit the binned sensor
func (c *camera) clampRegion() {
	maxX := c.cfg.SensorWidth / c.attrs["BinningX"].(uint32)
	maxY := c.cfg.SensorHeight / c.attrs["BinningY"].(uint32)
	if c.attrs["RegionX"].(uint32) >= maxX {
		c.attrs["RegionX"] = uint32(0)
	}
	if c.attrs["RegionY"].(uint32) >= maxY {
		c.attrs["RegionY"] = uint32(0)
	}
	if c.attrs["Width"].(uint32) > maxX {
		c.attrs["Width"] = maxX
	}
	if c.attrs["Height"].(uint32) > maxY {
		c.attrs["Height"] = maxY
	}
}

// GetFloat32 reads a float attribute
func (s *Sim) GetFloat32(h pvapi.Handle, attr string) (float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.lookup(h)
	if err != nil {
		return 0, err
	}
	if err := s.failures[attr]; err != nil {
		return 0, err
	}
	if attr == "StatFrameRate" {
		if c.acquiring {
			return c.attrs["FrameRate"].(float32), nil
		}
		return 0, nil
	}
	v, ok := c.attrs[attr].(float32)
	if !ok {
		return 0, pvapi.ErrNotFound
	}
	return v, nil
}

// SetFloat32 writes a float attribute
func (s *Sim) SetFloat32(h pvapi.Handle, attr string, value float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.lookup(h)
	if err != nil {
		return err
	}
	s.record("SetFloat32 %s %g", attr, value)
	if err := s.failures[attr]; err != nil {
		return err
	}
	if _, ok := c.attrs[attr].(float32); !ok {
		return pvapi.ErrNotFound
	}
	if attr == "FrameRate" && (value < 0.001 || value > 10000) {
		return pvapi.ErrOutOfRange
	}
	c.attrs[attr] = value
	return nil
}

var enumValues = map[string][]string{
	"AcquisitionMode":       {"SingleFrame", "MultiFrame", "Recorder", "Continuous"},
	"FrameStartTriggerMode": pvapi.TriggerModes,
	"PixelFormat":           {"Mono8", "Mono16", "Bayer8", "Bayer16", "Rgb24", "Rgb48", "Bgr24", "Rgba32", "Bgra32"},
	"StatDriverType":        pvapi.DriverTypes,
}

// GetEnum reads an enum attribute
func (s *Sim) GetEnum(h pvapi.Handle, attr string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.lookup(h)
	if err != nil {
		return "", err
	}
	if err := s.failures[attr]; err != nil {
		return "", err
	}
	if attr == "SensorType" {
		return c.cfg.SensorType, nil
	}
	if _, ok := enumValues[attr]; !ok {
		return "", pvapi.ErrNotFound
	}
	return c.attrs[attr].(string), nil
}

// SetEnum writes an enum attribute
func (s *Sim) SetEnum(h pvapi.Handle, attr string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.lookup(h)
	if err != nil {
		return err
	}
	s.record("SetEnum %s %s", attr, value)
	if err := s.failures[attr]; err != nil {
		return err
	}
	allowed, ok := enumValues[attr]
	if !ok {
		return pvapi.ErrNotFound
	}
	if pvapi.IndexOf(allowed, value) < 0 {
		return pvapi.ErrOutOfRange
	}
	c.attrs[attr] = value
	return nil
}

// GetString reads a string attribute
func (s *Sim) GetString(h pvapi.Handle, attr string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.lookup(h)
	if err != nil {
		return "", err
	}
	if err := s.failures[attr]; err != nil {
		return "", err
	}
	if attr == "DeviceIPAddress" {
		return c.cfg.IPAddress, nil
	}
	v, ok := c.attrs[attr].(string)
	if !ok || enumValues[attr] != nil {
		return "", pvapi.ErrNotFound
	}
	return v, nil
}

// RunCommand runs a command attribute
func (s *Sim) RunCommand(h pvapi.Handle, attr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.lookup(h)
	if err != nil {
		return err
	}
	s.record("RunCommand %s", attr)
	if err := s.failures[attr]; err != nil {
		return err
	}
	switch attr {
	case "AcquisitionStart":
		if !c.capturing {
			return pvapi.ErrBadSequence
		}
		c.halt()
		c.acquiring = true
		switch c.attrs["AcquisitionMode"].(string) {
		case "SingleFrame":
			c.remaining = 1
		case "MultiFrame", "Recorder":
			c.remaining = int(c.attrs["AcquisitionFrameCount"].(uint32))
		default:
			c.remaining = -1
		}
		if !s.Manual {
			c.stop = make(chan struct{})
			go s.freerun(c.handle, c.stop, c.period())
		}
	case "AcquisitionAbort", "AcquisitionStop":
		c.halt()
	default:
		if !strings.HasPrefix(attr, "FrameStartTrigger") {
			return pvapi.ErrNotFound
		}
	}
	return nil
}

func (c *camera) period() time.Duration {
	rate := float64(c.attrs["FrameRate"].(float32))
	if rate <= 0 {
		rate = 1
	}
	return time.Duration(float64(time.Second) / rate)
}

// freerun completes queued frames at the programmed frame rate until stopped
// or the acquisition's frame count is exhausted
func (s *Sim) freerun(h pvapi.Handle, stop chan struct{}, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		s.mu.Lock()
		c, err := s.lookup(h)
		if err != nil || c.stop != stop {
			s.mu.Unlock()
			return
		}
		if len(c.queue) == 0 {
			c.dropped++
			s.mu.Unlock()
			continue
		}
		p := c.queue[0]
		c.queue = c.queue[1:]
		c.fill(p.frame, pvapi.Success)
		if c.remaining > 0 {
			c.remaining--
			if c.remaining == 0 {
				c.halt()
			}
		}
		done := !c.acquiring
		s.mu.Unlock()

		p.cb(p.frame)
		if done {
			return
		}
	}
}
