/*
Package prosilica drives Prosilica GigE cameras as generic area detectors.

A Detector owns one camera reached through a pvapi.Gateway.  It keeps two
capture buffers cycling through the SDK's queue, publishes each completed
frame to registered consumers, and mirrors camera attributes into an
adparam.Store so that every write is followed by a read back of what the
camera actually accepted.

Consumers run on a delivery goroutine owned by the Detector and never while
its lock is held.
*/
package prosilica

import (
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/areaDetector/ADProsilica/adparam"
	"github.com/areaDetector/ADProsilica/camera"
	"github.com/areaDetector/ADProsilica/ndarray"
	"github.com/areaDetector/ADProsilica/pvapi"
)

const (
	// NumBuffers is the number of capture buffers kept on the SDK queue
	NumBuffers = 2

	// Manufacturer is reported in the Manufacturer parameter
	Manufacturer = "Prosilica"

	// DefaultDeliveryQueue is the depth of the consumer delivery queue
	DefaultDeliveryQueue = 8
)

var (
	// ErrNotConnected is generated when an operation needs an open camera
	ErrNotConnected = errors.New("camera not connected")

	// ErrAlreadyAcquiring is generated when acquisition is started twice
	ErrAlreadyAcquiring = errors.New("acquisition already in progress")

	// ErrOutOfRange is generated when a value is outside the allowed set
	ErrOutOfRange = errors.New("value out of range")

	// ErrUnsupportedDataType is generated for data types the camera cannot produce
	ErrUnsupportedDataType = errors.New("unsupported data type")

	// ErrNoAccess is generated when another client holds master access to the camera
	ErrNoAccess = errors.New("camera does not permit master access")

	// ErrNoImage is generated when an image is requested before one has been acquired
	ErrNoImage = errors.New("no image acquired yet")
)

// ImageConsumer receives each completed image.  The image is only valid for
// the duration of the call unless the consumer Reserves it.
type ImageConsumer func(*ndarray.Image)

// FileWriter persists an image to disk and returns the file name it used
type FileWriter interface {
	WriteImage(img *ndarray.Image, name string) (string, error)
}

// Config holds the options of a Detector
type Config struct {
	// UniqueID is the camera's unique id on the GigE network
	UniqueID uint32

	// PacketSize is the largest packet negotiated on connect.  Zero uses pvapi.MaxPacketSize
	PacketSize uint32

	// MaxBuffers and MaxMemory limit the image pool.  Zero is unlimited.
	MaxBuffers int
	MaxMemory  int

	// DeliveryQueue is the number of images that may wait for consumers
	DeliveryQueue int

	// StatsInterval is the period of the statistics poller.  Zero disables it.
	StatsInterval time.Duration

	// Clock drives the statistics poller; nil uses the wall clock
	Clock clock.Clock

	// Logger receives the driver's logs; nil disables logging
	Logger *zap.SugaredLogger

	// Writer is used for WriteFile and AutoSave; nil disables both
	Writer FileWriter

	// Metrics receives counters; nil disables them
	Metrics *Metrics
}

type delivery struct {
	img  *ndarray.Image
	save bool
}

// Detector is one Prosilica camera
type Detector struct {
	// mu guards the parameter table, the connection, the session and the last image
	mu sync.Mutex

	gw      pvapi.Gateway
	cfg     Config
	params  *adparam.Store
	pool    *ndarray.Pool
	log     *zap.SugaredLogger
	metrics *cameraMetrics

	handle pvapi.Handle
	info   pvapi.CameraInfo
	slots  []*slot

	// gen increments on every connect and disconnect; completions from older
	// generations are dropped
	gen uint64

	sensorType    string
	sensorWidth   int
	sensorHeight  int
	bytesPerPixel int
	maxFrameSize  int
	tsFreq        uint32
	ipAddress     string

	session Session
	last    *ndarray.Image

	// opMu serializes Connect and Disconnect
	opMu sync.Mutex

	shuttingDown atomic.Bool

	consumersMu sync.RWMutex
	consumers   []ImageConsumer

	deliveries chan delivery
	frameLog   *rate.Limiter
	done       chan struct{}
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

// New returns a disconnected Detector and starts its delivery goroutine
func New(gw pvapi.Gateway, cfg Config) *Detector {
	if cfg.PacketSize == 0 {
		cfg.PacketSize = pvapi.MaxPacketSize
	}
	if cfg.DeliveryQueue <= 0 {
		cfg.DeliveryQueue = DefaultDeliveryQueue
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	d := &Detector{
		gw:         gw,
		cfg:        cfg,
		params:     adparam.NewStore(),
		pool:       ndarray.NewPool(cfg.MaxBuffers, cfg.MaxMemory),
		log:        log.With("camera", cfg.UniqueID),
		metrics:    cfg.Metrics.forCamera(cfg.UniqueID),
		deliveries: make(chan delivery, cfg.DeliveryQueue),
		frameLog:   rate.NewLimiter(rate.Every(time.Second), 5),
		done:       make(chan struct{}),
	}
	d.params.SetInt(adparam.ImageMode, int(camera.Single))
	d.params.SetInt(adparam.NumImages, 1)
	d.params.SetInt(adparam.NumExposures, 1)
	d.params.SetInt(adparam.BinX, 1)
	d.params.SetInt(adparam.BinY, 1)
	d.params.SetInt(adparam.DataType, int(ndarray.UInt8))
	d.params.SetString(adparam.Manufacturer, Manufacturer)
	d.params.SetString(adparam.FileTemplate, "%s%s_%03d")

	d.wg.Add(1)
	go d.deliverLoop()
	if cfg.StatsInterval > 0 {
		d.wg.Add(1)
		go d.pollStats(cfg.StatsInterval)
	}
	return d
}

// Close disconnects the camera and stops the Detector's goroutines.  Images
// still waiting for delivery are released without being delivered.
func (d *Detector) Close() error {
	err := d.Disconnect()
	d.closeOnce.Do(func() {
		close(d.done)
		d.wg.Wait()
		d.mu.Lock()
		if d.last != nil {
			d.last.Release()
			d.last = nil
		}
		d.mu.Unlock()
	})
	return err
}

// Pool returns the pool images are allocated from
func (d *Detector) Pool() *ndarray.Pool {
	return d.pool
}

// UniqueID returns the unique id of the camera this Detector drives
func (d *Detector) UniqueID() uint32 {
	return d.cfg.UniqueID
}

// Connected reports if the camera is open
func (d *Detector) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handle != 0
}

// AddConsumer registers fn to receive every completed image
func (d *Detector) AddConsumer(fn ImageConsumer) {
	d.consumersMu.Lock()
	d.consumers = append(d.consumers, fn)
	d.consumersMu.Unlock()
}

// Subscribe registers fn to receive parameter changes.  fn runs with the
// Detector's lock held and must not call back into the Detector.
func (d *Detector) Subscribe(fn adparam.Subscriber) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	unsub := d.params.Subscribe(fn)
	return func() {
		d.mu.Lock()
		unsub()
		d.mu.Unlock()
	}
}

// LastImage returns the most recent good image with a reference held for the
// caller, who must Release it
func (d *Detector) LastImage() (*ndarray.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last == nil {
		return nil, ErrNoImage
	}
	d.last.Reserve()
	return d.last, nil
}

// ReadImage copies the most recent good image into buf and returns the
// number of bytes copied
func (d *Detector) ReadImage(buf []byte) (int, error) {
	img, err := d.LastImage()
	if err != nil {
		return 0, err
	}
	defer img.Release()
	return img.CopyTo(buf), nil
}
