// Package camera provides a generic HTTP interface to a scientific camera
package camera

import (
	"encoding/json"
	"fmt"
	"go/types"
	"image/jpeg"
	"image/png"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/astrogo/fitsio"

	"github.com/areaDetector/ADProsilica/camera"
	"github.com/areaDetector/ADProsilica/generichttp"
	"github.com/areaDetector/ADProsilica/imgrec"
	"github.com/areaDetector/ADProsilica/mathx"
	"github.com/areaDetector/ADProsilica/ndarray"
	"github.com/areaDetector/ADProsilica/util"
)

// ImageSource hands out the most recent image with a reference held for the caller
type ImageSource interface {
	LastImage() (*ndarray.Image, error)
}

// MetadataMaker can produce an array of FITS cards
type MetadataMaker interface {
	// CollectHeaderMetadata produces an array of FITS cards
	CollectHeaderMetadata() []fitsio.Card
}

// ErrorMapper picks the HTTP status for an error.  nil uses 500 for everything.
type ErrorMapper func(error) int

func (m ErrorMapper) respond(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	if m != nil {
		code = m(err)
	}
	http.Error(w, err.Error(), code)
}

var imageModes = map[string]camera.ImageMode{
	"single":     camera.Single,
	"multiple":   camera.Multiple,
	"continuous": camera.Continuous,
}

// HTTPDetector injects the acquisition control routes for a detector into a route table
func HTTPDetector(d camera.Detector, table generichttp.RouteTable, m ErrorMapper) {
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/acquire"}] = GetAcquire(d, m)
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/acquire"}] = SetAcquire(d, m)
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/image-mode"}] = GetImageMode(d, m)
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/image-mode"}] = SetImageMode(d, m)
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/num-images"}] = GetNumImages(d, m)
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/num-images"}] = SetNumImages(d, m)
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/exposure-time"}] = GetExposureTime(d, m)
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/exposure-time"}] = SetExposureTime(d, m)
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/aoi"}] = GetAOI(d, m)
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/aoi"}] = SetAOI(d, m)
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/binning"}] = GetBinning(d, m)
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/binning"}] = SetBinning(d, m)
}

// HTTPImage injects the image route for an image source into a route table
func HTTPImage(src ImageSource, table generichttp.RouteTable, rec *imgrec.Recorder, m ErrorMapper) {
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/image"}] = GetFrame(src, rec, m)
}

// GetAcquire reports if the detector is acquiring as json {'bool': value}
func GetAcquire(d camera.Detector, m ErrorMapper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := d.Acquiring()
		if err != nil {
			m.respond(w, err)
			return
		}
		hp := generichttp.HumanPayload{T: types.Bool, Bool: b}
		hp.EncodeAndRespond(w, r)
	}
}

// SetAcquire starts or stops acquisition from json {'bool': value}
func SetAcquire(d camera.Detector, m ErrorMapper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b := generichttp.BoolT{}
		err := json.NewDecoder(r.Body).Decode(&b)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		err = d.Acquire(b.Bool)
		if err != nil {
			m.respond(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// GetImageMode returns the image mode as json {'str': value}
func GetImageMode(d camera.Detector, m ErrorMapper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode, err := d.GetImageMode()
		if err != nil {
			m.respond(w, err)
			return
		}
		hp := generichttp.HumanPayload{T: types.String, String: mode.String()}
		hp.EncodeAndRespond(w, r)
	}
}

// SetImageMode sets the image mode from json {'str': value}, one of Single, Multiple, Continuous
func SetImageMode(d camera.Detector, m ErrorMapper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := generichttp.StrT{}
		err := json.NewDecoder(r.Body).Decode(&s)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mode, ok := imageModes[strings.ToLower(s.Str)]
		if !ok {
			http.Error(w, fmt.Sprintf("image mode %q not one of Single, Multiple, Continuous", s.Str), http.StatusBadRequest)
			return
		}
		err = d.SetImageMode(mode)
		if err != nil {
			m.respond(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// GetNumImages returns the number of images as json {'int': value}
func GetNumImages(d camera.Detector, m ErrorMapper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := d.GetNumImages()
		if err != nil {
			m.respond(w, err)
			return
		}
		hp := generichttp.HumanPayload{T: types.Int, Int: n}
		hp.EncodeAndRespond(w, r)
	}
}

// SetNumImages sets the number of images from json {'int': value}
func SetNumImages(d camera.Detector, m ErrorMapper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		i := generichttp.IntT{}
		err := json.NewDecoder(r.Body).Decode(&i)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		err = d.SetNumImages(i.Int)
		if err != nil {
			m.respond(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// SetExposureTime sets the exposure time on a POST request.
// it can be provided either as a query parameter exposureTime, formatted in a
// way that is parseable by golang/time.ParseDuration, or a json payload with
// key f64, holding the exposure time in seconds.
func SetExposureTime(d camera.Detector, m ErrorMapper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		texp := r.URL.Query().Get("exposureTime")
		var (
			dur time.Duration
			err error
		)
		if texp == "" {
			f := generichttp.FloatT{}
			err = json.NewDecoder(r.Body).Decode(&f)
			defer r.Body.Close()
			dur = util.SecsToDuration(f.F64)
		} else {
			if util.AllElementsNumbers(texp) {
				texp = texp + "s"
			}
			dur, err = time.ParseDuration(texp)
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		err = d.SetExposureTime(dur)
		if err != nil {
			m.respond(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// GetExposureTime gets the exposure time in seconds on a GET request
func GetExposureTime(d camera.Detector, m ErrorMapper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := d.GetExposureTime()
		if err != nil {
			m.respond(w, err)
			return
		}
		hp := generichttp.HumanPayload{T: types.Float64, Float: t.Seconds()}
		hp.EncodeAndRespond(w, r)
	}
}

// GetAOI returns the AOI as json {left, top, width, height}
func GetAOI(d camera.Detector, m ErrorMapper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		aoi, err := d.GetAOI()
		if err != nil {
			m.respond(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		err = json.NewEncoder(w).Encode(aoi)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// SetAOI sets the AOI from json {left, top, width, height}
func SetAOI(d camera.Detector, m ErrorMapper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		aoi := camera.AOI{}
		err := json.NewDecoder(r.Body).Decode(&aoi)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		err = d.SetAOI(aoi)
		if err != nil {
			m.respond(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// GetBinning returns the binning as json {h, v}
func GetBinning(d camera.Detector, m ErrorMapper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := d.GetBinning()
		if err != nil {
			m.respond(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		err = json.NewEncoder(w).Encode(b)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// SetBinning sets the binning from json {h, v}
func SetBinning(d camera.Detector, m ErrorMapper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b := camera.Binning{}
		err := json.NewDecoder(r.Body).Decode(&b)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		err = d.SetBinning(b)
		if err != nil {
			m.respond(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// GetFrame returns the most recent image on a GET request.
//
// the image format may be specified in the fmt query parameter, one of jpg,
// png or fits; default to jpg.  jpg and png are stretched to 8 bits for
// display; the quality of a jpg may be set with the q query parameter.
//
// the preview may be rotated by 90, 180 or 270 degrees with the rot query parameter.
//
// if the recorder is enabled, fits images are also written to disk.
func GetFrame(src ImageSource, rec *imgrec.Recorder, m ErrorMapper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		format := q.Get("fmt")
		if format == "" {
			format = "jpg"
		}
		rot := 0
		if s := q.Get("rot"); s != "" {
			var err error
			rot, err = strconv.Atoi(s)
			if err != nil || rot%90 != 0 {
				http.Error(w, fmt.Sprintf("rot must be a multiple of 90, got %q", s), http.StatusBadRequest)
				return
			}
		}

		img, err := src.LastImage()
		if err != nil {
			m.respond(w, err)
			return
		}
		defer img.Release()

		switch format {
		case "jpg", "jpeg", "png":
			im, err := img.ToImage()
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			preview := Rotate(Stretch(im), rot)
			if format == "png" {
				w.Header().Set("Content-Type", "image/png")
				err = png.Encode(w, preview)
			} else {
				quality := jpeg.DefaultQuality
				if s := q.Get("q"); s != "" {
					if n, err := strconv.Atoi(s); err == nil {
						quality = mathx.ClampInt(n, 1, 100)
					}
				}
				w.Header().Set("Content-Type", "image/jpeg")
				err = jpeg.Encode(w, preview, &jpeg.Options{Quality: quality})
			}
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		case "fits":
			var cards []fitsio.Card
			if carder, ok := src.(MetadataMaker); ok {
				cards = carder.CollectHeaderMetadata()
			}
			if rec != nil && rec.GetEnabled() {
				if _, err := rec.WriteImage(img, ""); err != nil {
					http.Error(w, err.Error(), http.StatusInternalServerError)
					return
				}
			}
			hdr := w.Header()
			hdr.Set("Content-Type", "image/fits")
			hdr.Set("Content-Disposition", "attachment; filename=image.fits")
			err = WriteFits(w, cards, img)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		default:
			http.Error(w, fmt.Sprintf("format %q not one of jpg, png, fits", format), http.StatusBadRequest)
		}
	}
}
