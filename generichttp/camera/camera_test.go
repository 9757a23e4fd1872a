package camera

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"go.viam.com/test"

	"github.com/areaDetector/ADProsilica/camera"
	"github.com/areaDetector/ADProsilica/generichttp"
	"github.com/areaDetector/ADProsilica/ndarray"
)

var errBusy = errors.New("busy")

type fakeDetector struct {
	acquiring bool
	mode      camera.ImageMode
	n         int
	exp       time.Duration
	aoi       camera.AOI
	bin       camera.Binning
	img       *ndarray.Image
}

func (f *fakeDetector) Acquire(b bool) error {
	if b && f.acquiring {
		return errBusy
	}
	f.acquiring = b
	return nil
}
func (f *fakeDetector) Acquiring() (bool, error)                { return f.acquiring, nil }
func (f *fakeDetector) SetImageMode(m camera.ImageMode) error   { f.mode = m; return nil }
func (f *fakeDetector) GetImageMode() (camera.ImageMode, error) { return f.mode, nil }
func (f *fakeDetector) SetNumImages(n int) error                { f.n = n; return nil }
func (f *fakeDetector) GetNumImages() (int, error)              { return f.n, nil }
func (f *fakeDetector) SetExposureTime(d time.Duration) error   { f.exp = d; return nil }
func (f *fakeDetector) GetExposureTime() (time.Duration, error) { return f.exp, nil }
func (f *fakeDetector) SetAOI(a camera.AOI) error               { f.aoi = a; return nil }
func (f *fakeDetector) GetAOI() (camera.AOI, error)             { return f.aoi, nil }
func (f *fakeDetector) SetBinning(b camera.Binning) error       { f.bin = b; return nil }
func (f *fakeDetector) GetBinning() (camera.Binning, error)     { return f.bin, nil }

func (f *fakeDetector) LastImage() (*ndarray.Image, error) {
	if f.img == nil {
		return nil, errors.New("no image")
	}
	f.img.Reserve()
	return f.img, nil
}

func setup(t *testing.T, f *fakeDetector) *httptest.Server {
	t.Helper()
	rt := generichttp.RouteTable{}
	m := ErrorMapper(func(err error) int {
		if errors.Is(err, errBusy) {
			return http.StatusConflict
		}
		return http.StatusNotFound
	})
	HTTPDetector(f, rt, m)
	HTTPImage(f, rt, nil, m)
	mux := chi.NewRouter()
	rt.Bind(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	test.That(t, err, test.ShouldBeNil)
	resp.Body.Close()
	return resp.StatusCode
}

func TestAcquireRoutes(t *testing.T) {
	f := &fakeDetector{}
	srv := setup(t, f)
	test.That(t, post(t, srv.URL+"/acquire", `{"bool": true}`), test.ShouldEqual, http.StatusOK)
	test.That(t, f.acquiring, test.ShouldBeTrue)
	test.That(t, post(t, srv.URL+"/acquire", `{"bool": true}`), test.ShouldEqual, http.StatusConflict)
	test.That(t, post(t, srv.URL+"/acquire", `{`), test.ShouldEqual, http.StatusBadRequest)

	test.That(t, post(t, srv.URL+"/image-mode", `{"str": "continuous"}`), test.ShouldEqual, http.StatusOK)
	test.That(t, f.mode, test.ShouldEqual, camera.Continuous)
	test.That(t, post(t, srv.URL+"/image-mode", `{"str": "burst"}`), test.ShouldEqual, http.StatusBadRequest)

	resp, err := http.Get(srv.URL + "/image-mode")
	test.That(t, err, test.ShouldBeNil)
	s := generichttp.StrT{}
	test.That(t, json.NewDecoder(resp.Body).Decode(&s), test.ShouldBeNil)
	resp.Body.Close()
	test.That(t, s.Str, test.ShouldEqual, "Continuous")

	test.That(t, post(t, srv.URL+"/num-images", `{"int": 7}`), test.ShouldEqual, http.StatusOK)
	test.That(t, f.n, test.ShouldEqual, 7)
}

func TestExposureRoutes(t *testing.T) {
	f := &fakeDetector{}
	srv := setup(t, f)
	test.That(t, post(t, srv.URL+"/exposure-time", `{"f64": 0.25}`), test.ShouldEqual, http.StatusOK)
	test.That(t, f.exp, test.ShouldEqual, 250*time.Millisecond)
	test.That(t, post(t, srv.URL+"/exposure-time?exposureTime=10ms", ``), test.ShouldEqual, http.StatusOK)
	test.That(t, f.exp, test.ShouldEqual, 10*time.Millisecond)
	test.That(t, post(t, srv.URL+"/exposure-time?exposureTime=2", ``), test.ShouldEqual, http.StatusOK)
	test.That(t, f.exp, test.ShouldEqual, 2*time.Second)
	test.That(t, post(t, srv.URL+"/exposure-time?exposureTime=soon", ``), test.ShouldEqual, http.StatusBadRequest)

	resp, err := http.Get(srv.URL + "/exposure-time")
	test.That(t, err, test.ShouldBeNil)
	ft := generichttp.FloatT{}
	test.That(t, json.NewDecoder(resp.Body).Decode(&ft), test.ShouldBeNil)
	resp.Body.Close()
	test.That(t, ft.F64, test.ShouldEqual, 2.0)
}

func TestGeometryRoutes(t *testing.T) {
	f := &fakeDetector{}
	srv := setup(t, f)
	test.That(t, post(t, srv.URL+"/aoi", `{"left": 1, "top": 2, "width": 30, "height": 40}`), test.ShouldEqual, http.StatusOK)
	test.That(t, f.aoi, test.ShouldResemble, camera.AOI{Left: 1, Top: 2, Width: 30, Height: 40})
	test.That(t, post(t, srv.URL+"/binning", `{"h": 2, "v": 2}`), test.ShouldEqual, http.StatusOK)

	resp, err := http.Get(srv.URL + "/binning")
	test.That(t, err, test.ShouldBeNil)
	b := camera.Binning{}
	test.That(t, json.NewDecoder(resp.Body).Decode(&b), test.ShouldBeNil)
	resp.Body.Close()
	test.That(t, b, test.ShouldResemble, camera.Binning{H: 2, V: 2})
}

func TestGetFrame(t *testing.T) {
	f := &fakeDetector{}
	srv := setup(t, f)
	resp, err := http.Get(srv.URL + "/image")
	test.That(t, err, test.ShouldBeNil)
	resp.Body.Close()
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusNotFound)

	img, err := ndarray.NewPool(0, 0).Alloc(4 * 2 * 2)
	test.That(t, err, test.ShouldBeNil)
	img.Width, img.Height, img.DataType = 4, 2, ndarray.UInt16
	f.img = img

	resp, err = http.Get(srv.URL + "/image?fmt=png&rot=90")
	test.That(t, err, test.ShouldBeNil)
	im, err := png.Decode(resp.Body)
	resp.Body.Close()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, im.Bounds().Dx(), test.ShouldEqual, 2)
	test.That(t, im.Bounds().Dy(), test.ShouldEqual, 4)

	resp, err = http.Get(srv.URL + "/image?fmt=fits")
	test.That(t, err, test.ShouldBeNil)
	resp.Body.Close()
	test.That(t, resp.Header.Get("Content-Type"), test.ShouldEqual, "image/fits")

	for _, q := range []string{"?fmt=bmp", "?rot=45"} {
		resp, err = http.Get(srv.URL + "/image" + q)
		test.That(t, err, test.ShouldBeNil)
		resp.Body.Close()
		test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusBadRequest)
	}
	// every request released its reference
	test.That(t, img.Refs(), test.ShouldEqual, 1)
}

func TestStretch(t *testing.T) {
	g := image.NewGray16(image.Rect(0, 0, 2, 1))
	g.SetGray16(0, 0, color.Gray16{Y: 100})
	g.SetGray16(1, 0, color.Gray16{Y: 300})
	out := Stretch(g).(*image.Gray)
	test.That(t, out.GrayAt(0, 0).Y, test.ShouldEqual, uint8(0))
	test.That(t, out.GrayAt(1, 0).Y, test.ShouldEqual, uint8(255))

	g8 := image.NewGray(image.Rect(0, 0, 1, 1))
	test.That(t, Stretch(g8), test.ShouldEqual, g8)
}

func TestRotate(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 3, 2))
	g.SetGray(0, 0, color.Gray{Y: 9})
	r := Rotate(g, 90).(*image.Gray)
	test.That(t, r.Bounds().Dx(), test.ShouldEqual, 2)
	test.That(t, r.Bounds().Dy(), test.ShouldEqual, 3)
	// the top left corner moves to the top right
	test.That(t, r.GrayAt(1, 0).Y, test.ShouldEqual, uint8(9))

	r = Rotate(g, 180).(*image.Gray)
	test.That(t, r.GrayAt(2, 1).Y, test.ShouldEqual, uint8(9))
	r = Rotate(g, -90).(*image.Gray)
	test.That(t, r.GrayAt(0, 2).Y, test.ShouldEqual, uint8(9))
	test.That(t, Rotate(g, 360), test.ShouldEqual, g)
}
