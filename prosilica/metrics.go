package prosilica

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors shared by every Detector
type Metrics struct {
	Frames          *prometheus.CounterVec
	BadFrames       *prometheus.CounterVec
	DroppedFrames   *prometheus.CounterVec
	DeliveryDropped *prometheus.CounterVec
	RequeueFailures *prometheus.CounterVec
	Acquisitions    *prometheus.CounterVec
	Connects        *prometheus.CounterVec
	ConnectFailures *prometheus.CounterVec
	FrameRate       *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	counter := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prosilica",
			Name:      name,
			Help:      help,
		}, []string{"camera"})
	}
	m := &Metrics{
		Frames:          counter("frames_total", "Frames completed successfully"),
		BadFrames:       counter("bad_frames_total", "Frames completed with an error status"),
		DroppedFrames:   counter("dropped_frames_total", "Good frames dropped for lack of a buffer"),
		DeliveryDropped: counter("delivery_dropped_total", "Images not delivered because consumers were behind"),
		RequeueFailures: counter("requeue_failures_total", "Capture buffers the SDK refused to requeue"),
		Acquisitions:    counter("acquisitions_total", "Acquisitions started"),
		Connects:        counter("connects_total", "Successful connections"),
		ConnectFailures: counter("connect_failures_total", "Failed connection attempts"),
		FrameRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "prosilica",
			Name:      "frame_rate_hz",
			Help:      "Frame rate reported by the camera's streaming statistics",
		}, []string{"camera"}),
	}
	reg.MustRegister(m.Frames, m.BadFrames, m.DroppedFrames, m.DeliveryDropped,
		m.RequeueFailures, m.Acquisitions, m.Connects, m.ConnectFailures, m.FrameRate)
	return m
}

// cameraMetrics are the collectors curried for one camera.  A nil
// *cameraMetrics discards everything.
type cameraMetrics struct {
	frames, bad, dropped, delivery, requeue, acquisitions, connects, connectFailures prometheus.Counter
	rate                                                                             prometheus.Gauge
}

func (m *Metrics) forCamera(uniqueID uint32) *cameraMetrics {
	if m == nil {
		return nil
	}
	id := strconv.FormatUint(uint64(uniqueID), 10)
	return &cameraMetrics{
		frames:          m.Frames.WithLabelValues(id),
		bad:             m.BadFrames.WithLabelValues(id),
		dropped:         m.DroppedFrames.WithLabelValues(id),
		delivery:        m.DeliveryDropped.WithLabelValues(id),
		requeue:         m.RequeueFailures.WithLabelValues(id),
		acquisitions:    m.Acquisitions.WithLabelValues(id),
		connects:        m.Connects.WithLabelValues(id),
		connectFailures: m.ConnectFailures.WithLabelValues(id),
		rate:            m.FrameRate.WithLabelValues(id),
	}
}

func (c *cameraMetrics) frame() {
	if c != nil {
		c.frames.Inc()
	}
}

func (c *cameraMetrics) badFrame() {
	if c != nil {
		c.bad.Inc()
	}
}

func (c *cameraMetrics) droppedFrame() {
	if c != nil {
		c.dropped.Inc()
	}
}

func (c *cameraMetrics) deliveryDropped() {
	if c != nil {
		c.delivery.Inc()
	}
}

func (c *cameraMetrics) requeueFailed() {
	if c != nil {
		c.requeue.Inc()
	}
}

func (c *cameraMetrics) acquisition() {
	if c != nil {
		c.acquisitions.Inc()
	}
}

func (c *cameraMetrics) connected() {
	if c != nil {
		c.connects.Inc()
	}
}

func (c *cameraMetrics) connectFailed() {
	if c != nil {
		c.connectFailures.Inc()
	}
}

func (c *cameraMetrics) frameRate(hz float64) {
	if c != nil {
		c.rate.Set(hz)
	}
}
