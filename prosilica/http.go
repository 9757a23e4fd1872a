package prosilica

import (
	"encoding/json"
	"errors"
	"fmt"
	"go/types"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/astrogo/fitsio"
	"github.com/go-chi/chi"

	"github.com/areaDetector/ADProsilica/adparam"
	"github.com/areaDetector/ADProsilica/generichttp"
	gcam "github.com/areaDetector/ADProsilica/generichttp/camera"
	"github.com/areaDetector/ADProsilica/imgrec"
	"github.com/areaDetector/ADProsilica/ndarray"
	"github.com/areaDetector/ADProsilica/pvapi"
)

// StatusCode maps driver errors to HTTP status codes
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrNotConnected):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrNoImage):
		return http.StatusNotFound
	case errors.Is(err, ErrNoAccess), errors.Is(err, ErrAlreadyAcquiring):
		return http.StatusConflict
	case errors.Is(err, ErrOutOfRange), errors.Is(err, ErrUnsupportedDataType),
		errors.Is(err, adparam.ErrUnknownParam), errors.Is(err, adparam.ErrWrongKind),
		pvapi.IsCode(err, pvapi.ErrOutOfRange):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// HTTPWrapper provides an HTTP interface to a Detector
type HTTPWrapper struct {
	// Detector is the camera being wrapped
	*Detector

	RouteTable generichttp.RouteTable
}

// NewHTTPWrapper returns a new wrapper with the route table populated.
// rec may be nil.
func NewHTTPWrapper(d *Detector, rec *imgrec.Recorder) HTTPWrapper {
	w := HTTPWrapper{Detector: d}
	w.RouteTable = generichttp.RouteTable{
		// connection
		generichttp.MethodPath{Method: http.MethodPost, Path: "/connect"}:    w.Connect,
		generichttp.MethodPath{Method: http.MethodPost, Path: "/disconnect"}: w.Disconnect,
		generichttp.MethodPath{Method: http.MethodGet, Path: "/connected"}: generichttp.GetBool(func() (bool, error) {
			return d.Connected(), nil
		}),
		generichttp.MethodPath{Method: http.MethodGet, Path: "/report"}: w.Report,

		// acquisition
		generichttp.MethodPath{Method: http.MethodGet, Path: "/acquire-period"}:  generichttp.GetFloat(w.getFloat(adparam.AcquirePeriod)),
		generichttp.MethodPath{Method: http.MethodPost, Path: "/acquire-period"}: w.setFloat(adparam.AcquirePeriod),
		generichttp.MethodPath{Method: http.MethodGet, Path: "/gain"}:            generichttp.GetFloat(w.getFloat(adparam.Gain)),
		generichttp.MethodPath{Method: http.MethodPost, Path: "/gain"}:           w.setFloat(adparam.Gain),
		generichttp.MethodPath{Method: http.MethodGet, Path: "/trigger-mode"}:    w.GetTriggerMode,
		generichttp.MethodPath{Method: http.MethodPost, Path: "/trigger-mode"}:   w.SetTriggerMode,
		generichttp.MethodPath{Method: http.MethodGet, Path: "/data-type"}:       w.GetDataType,
		generichttp.MethodPath{Method: http.MethodPost, Path: "/data-type"}:      w.SetDataType,
		generichttp.MethodPath{Method: http.MethodGet, Path: "/status"}:          w.Status,

		// files
		generichttp.MethodPath{Method: http.MethodPost, Path: "/image/write"}: w.WriteImage,

		// generic
		generichttp.MethodPath{Method: http.MethodGet, Path: "/stats"}:         w.Stats,
		generichttp.MethodPath{Method: http.MethodGet, Path: "/param"}:         w.GetParams,
		generichttp.MethodPath{Method: http.MethodGet, Path: "/param/{name}"}:  w.GetParam,
		generichttp.MethodPath{Method: http.MethodPost, Path: "/param/{name}"}: w.SetParam,
	}
	gcam.HTTPDetector(d, w.RouteTable, StatusCode)
	gcam.HTTPImage(d, w.RouteTable, rec, StatusCode)
	return w
}

// RT satisfies generichttp.HTTPer
func (h HTTPWrapper) RT() generichttp.RouteTable {
	return h.RouteTable
}

func respond(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), StatusCode(err))
}

func encode(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Connect opens the camera
func (h HTTPWrapper) Connect(w http.ResponseWriter, r *http.Request) {
	err := h.Detector.Connect()
	if err != nil {
		respond(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Disconnect closes the camera
func (h HTTPWrapper) Disconnect(w http.ResponseWriter, r *http.Request) {
	err := h.Detector.Disconnect()
	if err != nil {
		respond(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Report writes the camera report as plain text.  The details query parameter sets the level.
func (h HTTPWrapper) Report(w http.ResponseWriter, r *http.Request) {
	details := 1
	if s := r.URL.Query().Get("details"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		details = n
	}
	w.Header().Set("Content-Type", "text/plain")
	err := h.Detector.Report(w, details)
	if err != nil {
		respond(w, err)
	}
}

func (h HTTPWrapper) getFloat(p adparam.Param) func() (float64, error) {
	return func() (float64, error) {
		return h.Detector.ReadFloat(p)
	}
}

func (h HTTPWrapper) setFloat(p adparam.Param) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := generichttp.FloatT{}
		err := json.NewDecoder(r.Body).Decode(&f)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		err = h.Detector.WriteFloat(p, f.F64)
		if err != nil {
			respond(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// GetTriggerMode returns the trigger mode as json {'str': value}
func (h HTTPWrapper) GetTriggerMode(w http.ResponseWriter, r *http.Request) {
	i, err := h.Detector.ReadInt(adparam.TriggerMode)
	if err != nil {
		respond(w, err)
		return
	}
	if i < 0 || i >= len(pvapi.TriggerModes) {
		http.Error(w, fmt.Sprintf("trigger mode index %d out of range", i), http.StatusInternalServerError)
		return
	}
	hp := generichttp.HumanPayload{T: types.String, String: pvapi.TriggerModes[i]}
	hp.EncodeAndRespond(w, r)
}

// SetTriggerMode sets the trigger mode from json {'str': value}
func (h HTTPWrapper) SetTriggerMode(w http.ResponseWriter, r *http.Request) {
	s := generichttp.StrT{}
	err := json.NewDecoder(r.Body).Decode(&s)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	idx := pvapi.IndexOf(pvapi.TriggerModes, s.Str)
	if idx < 0 {
		http.Error(w, fmt.Sprintf("trigger mode %q not one of %s", s.Str, strings.Join(pvapi.TriggerModes, ", ")), http.StatusBadRequest)
		return
	}
	err = h.Detector.WriteInt(adparam.TriggerMode, idx)
	if err != nil {
		respond(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetDataType returns the data type as json {'str': value}
func (h HTTPWrapper) GetDataType(w http.ResponseWriter, r *http.Request) {
	i, err := h.Detector.ReadInt(adparam.DataType)
	if err != nil {
		respond(w, err)
		return
	}
	hp := generichttp.HumanPayload{T: types.String, String: ndarray.DataType(i).String()}
	hp.EncodeAndRespond(w, r)
}

// SetDataType sets the data type from json {'str': value}, such as UInt8 or UInt16
func (h HTTPWrapper) SetDataType(w http.ResponseWriter, r *http.Request) {
	s := generichttp.StrT{}
	err := json.NewDecoder(r.Body).Decode(&s)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	dt, ok := ndarray.ParseDataType(s.Str)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown data type %q", s.Str), http.StatusBadRequest)
		return
	}
	err = h.Detector.WriteInt(adparam.DataType, int(dt))
	if err != nil {
		respond(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Status returns the acquisition session as JSON
func (h HTTPWrapper) Status(w http.ResponseWriter, r *http.Request) {
	s := h.Detector.Session()
	msg, _ := h.Detector.ReadString(adparam.StatusMessage)
	encode(w, struct {
		ID        string    `json:"id"`
		Mode      string    `json:"mode"`
		State     string    `json:"state"`
		Remaining int       `json:"remaining"`
		Started   time.Time `json:"started"`
		Message   string    `json:"message"`
		Connected bool      `json:"connected"`
	}{s.ID.String(), s.Mode.String(), s.State.String(), s.Remaining, s.Started, msg, h.Detector.Connected()})
}

// WriteImage writes the most recent image to disk and returns the file name as json {'str': value}
func (h HTTPWrapper) WriteImage(w http.ResponseWriter, r *http.Request) {
	fn, err := h.Detector.WriteLastImage()
	if err != nil {
		respond(w, err)
		return
	}
	hp := generichttp.HumanPayload{T: types.String, String: fn}
	hp.EncodeAndRespond(w, r)
}

// Stats refreshes the streaming statistics and returns them as JSON
func (h HTTPWrapper) Stats(w http.ResponseWriter, r *http.Request) {
	err := h.Detector.ReadStats()
	if err != nil {
		respond(w, err)
		return
	}
	out := make(map[string]interface{})
	for _, p := range statParams {
		v, err := h.Detector.Read(p)
		if err != nil {
			respond(w, err)
			return
		}
		out[p.String()] = v.Interface()
	}
	encode(w, out)
}

// GetParams returns every parameter as JSON
func (h HTTPWrapper) GetParams(w http.ResponseWriter, r *http.Request) {
	encode(w, h.Detector.Params())
}

// GetParam returns one parameter as json {'int'|'f64'|'str': value}
func (h HTTPWrapper) GetParam(w http.ResponseWriter, r *http.Request) {
	p, err := adparam.Lookup(chi.URLParam(r, "name"))
	if err != nil {
		respond(w, err)
		return
	}
	v, err := h.Detector.Read(p)
	if err != nil {
		respond(w, err)
		return
	}
	hp := generichttp.HumanPayload{Int: v.Int, Float: v.Float, String: v.String}
	switch v.Kind {
	case adparam.Int:
		hp.T = types.Int
	case adparam.Float:
		hp.T = types.Float64
	default:
		hp.T = types.String
	}
	hp.EncodeAndRespond(w, r)
}

// SetParam writes one parameter from json {'int'|'f64'|'str': value}, the key
// matching the parameter's kind
func (h HTTPWrapper) SetParam(w http.ResponseWriter, r *http.Request) {
	p, err := adparam.Lookup(chi.URLParam(r, "name"))
	if err != nil {
		respond(w, err)
		return
	}
	var body struct {
		Int *int     `json:"int"`
		F64 *float64 `json:"f64"`
		Str *string  `json:"str"`
	}
	err = json.NewDecoder(r.Body).Decode(&body)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var v interface{}
	switch {
	case p.Kind() == adparam.Int && body.Int != nil:
		v = *body.Int
	case p.Kind() == adparam.Float && body.F64 != nil:
		v = *body.F64
	case p.Kind() == adparam.Float && body.Int != nil:
		v = *body.Int
	case p.Kind() == adparam.String && body.Str != nil:
		v = *body.Str
	default:
		http.Error(w, fmt.Sprintf("%s is a %s parameter", p, p.Kind()), http.StatusBadRequest)
		return
	}
	err = h.Detector.Write(p, v)
	if err != nil {
		respond(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// CollectHeaderMetadata produces the FITS cards describing the camera's configuration
func (d *Detector) CollectHeaderMetadata() []fitsio.Card {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.params
	str := func(q adparam.Param) string {
		s, _ := p.Str(q)
		return s
	}
	flt := func(q adparam.Param) float64 {
		f, _ := p.Float(q)
		return f
	}
	return []fitsio.Card{
		{Name: "HDRVER", Value: "1", Comment: "header version"},
		{Name: "DATE", Value: time.Now().UTC().Format(time.RFC3339)},
		{Name: "CAMMODL", Value: str(adparam.Model), Comment: "camera model"},
		{Name: "CAMMFR", Value: str(adparam.Manufacturer), Comment: "camera manufacturer"},
		{Name: "CAMSN", Value: d.info.SerialString, Comment: "camera serial number"},
		{Name: "EXPTIME", Value: flt(adparam.AcquireTime), Comment: "exposure time, seconds"},
		{Name: "PERIOD", Value: flt(adparam.AcquirePeriod), Comment: "acquire period, seconds"},
		{Name: "GAIN", Value: flt(adparam.Gain), Comment: "camera gain"},
		{Name: "BINX", Value: p.MustInt(adparam.BinX), Comment: "horizontal binning"},
		{Name: "BINY", Value: p.MustInt(adparam.BinY), Comment: "vertical binning"},
		{Name: "AOIL", Value: p.MustInt(adparam.MinX), Comment: "aoi left, unbinned pixels"},
		{Name: "AOIT", Value: p.MustInt(adparam.MinY), Comment: "aoi top, unbinned pixels"},
		{Name: "TRIGGER", Value: p.MustInt(adparam.TriggerMode), Comment: "trigger mode index"},
	}
}

var statParams = []adparam.Param{
	adparam.DriverType, adparam.FilterVersion, adparam.FrameRate,
	adparam.FramesCompleted, adparam.FramesDropped,
	adparam.PacketsErroneous, adparam.PacketsMissed, adparam.PacketsReceived,
	adparam.PacketsRequested, adparam.PacketsResent, adparam.BadFrameCounter,
}
