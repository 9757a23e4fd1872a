package prosilica

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"go.viam.com/test"

	"github.com/areaDetector/ADProsilica/adparam"
	"github.com/areaDetector/ADProsilica/camera"
	"github.com/areaDetector/ADProsilica/generichttp"
	"github.com/areaDetector/ADProsilica/ndarray"
	"github.com/areaDetector/ADProsilica/pvapi"
)

func serve(t *testing.T, d *Detector) *httptest.Server {
	t.Helper()
	mux := chi.NewRouter()
	NewHTTPWrapper(d, nil).RT().Bind(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, path string, v interface{}) *http.Response {
	t.Helper()
	body, err := json.Marshal(v)
	test.That(t, err, test.ShouldBeNil)
	resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(body))
	test.That(t, err, test.ShouldBeNil)
	resp.Body.Close()
	return resp
}

func get(t *testing.T, srv *httptest.Server, path string, v interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	test.That(t, err, test.ShouldBeNil)
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		test.That(t, json.NewDecoder(resp.Body).Decode(v), test.ShouldBeNil)
	}
	return resp
}

func TestStatusCode(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{ErrNotConnected, http.StatusServiceUnavailable},
		{ErrNoImage, http.StatusNotFound},
		{ErrAlreadyAcquiring, http.StatusConflict},
		{fmt.Errorf("%w: -1", ErrOutOfRange), http.StatusBadRequest},
		{adparam.ErrWrongKind, http.StatusBadRequest},
		{pvapi.Enrich(pvapi.ErrOutOfRange, "Width"), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		test.That(t, StatusCode(c.err), test.ShouldEqual, c.code)
	}
}

func TestHTTPEndpoints(t *testing.T) {
	d := newDetector(t, newSim(), Config{})
	var eps []string
	resp := get(t, serve(t, d), "/endpoints", &eps)
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusOK)
	for _, ep := range []string{"GET /image", "POST /acquire", "GET /gain", "POST /param/{name}", "GET /stats"} {
		test.That(t, eps, test.ShouldContain, ep)
	}
}

func TestHTTPDisconnected(t *testing.T) {
	d := newDetector(t, newSim(), Config{})
	srv := serve(t, d)
	resp := post(t, srv, "/acquire", generichttp.BoolT{Bool: true})
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusServiceUnavailable)
	resp = get(t, srv, "/image", nil)
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusNotFound)

	resp = post(t, srv, "/connect", nil)
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusOK)
	b := generichttp.BoolT{}
	get(t, srv, "/connected", &b)
	test.That(t, b.Bool, test.ShouldBeTrue)
}

func TestHTTPAcquire(t *testing.T) {
	d, sim := connected(t, Config{})
	srv := serve(t, d)

	resp := post(t, srv, "/image-mode", generichttp.StrT{Str: "Multiple"})
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusOK)
	resp = post(t, srv, "/num-images", generichttp.IntT{Int: 2})
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusOK)
	resp = post(t, srv, "/acquire", generichttp.BoolT{Bool: true})
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusOK)

	// a second start conflicts with the running acquisition
	resp = post(t, srv, "/acquire", generichttp.BoolT{Bool: true})
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusConflict)

	var st struct {
		Mode      string `json:"mode"`
		State     string `json:"state"`
		Remaining int    `json:"remaining"`
	}
	get(t, srv, "/status", &st)
	test.That(t, st.Mode, test.ShouldEqual, camera.Multiple.String())
	test.That(t, st.State, test.ShouldEqual, camera.Acquiring.String())
	test.That(t, st.Remaining, test.ShouldEqual, 2)

	expose(t, d, sim, pvapi.Success)
	expose(t, d, sim, pvapi.Success)
	b := generichttp.BoolT{}
	get(t, srv, "/acquire", &b)
	test.That(t, b.Bool, test.ShouldBeFalse)

	resp, err := http.Get(srv.URL + "/image?fmt=jpg&q=50")
	test.That(t, err, test.ShouldBeNil)
	defer resp.Body.Close()
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusOK)
	test.That(t, resp.Header.Get("Content-Type"), test.ShouldEqual, "image/jpeg")
	im, err := jpeg.Decode(resp.Body)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, im.Bounds().Dx(), test.ShouldEqual, 1360)
}

func TestHTTPFITS(t *testing.T) {
	d, sim := connected(t, Config{})
	srv := serve(t, d)
	expose(t, d, sim, pvapi.Success)

	resp, err := http.Get(srv.URL + "/image?fmt=fits")
	test.That(t, err, test.ShouldBeNil)
	defer resp.Body.Close()
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusOK)
	buf, err := io.ReadAll(resp.Body)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(buf), test.ShouldContainSubstring, "GC1380H")
	test.That(t, len(buf)%2880, test.ShouldEqual, 0)
}

func TestHTTPTriggerAndDataType(t *testing.T) {
	d, sim := connected(t, Config{})
	srv := serve(t, d)

	resp := post(t, srv, "/trigger-mode", generichttp.StrT{Str: "Software"})
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusOK)
	test.That(t, sim.Calls(), test.ShouldContain, "SetEnum FrameStartTriggerMode Software")
	s := generichttp.StrT{}
	get(t, srv, "/trigger-mode", &s)
	test.That(t, s.Str, test.ShouldEqual, "Software")

	resp = post(t, srv, "/trigger-mode", generichttp.StrT{Str: "Sometimes"})
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusBadRequest)

	resp = post(t, srv, "/data-type", generichttp.StrT{Str: "uint16"})
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusOK)
	get(t, srv, "/data-type", &s)
	test.That(t, s.Str, test.ShouldEqual, ndarray.UInt16.String())

	resp = post(t, srv, "/data-type", generichttp.StrT{Str: "Float32"})
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusBadRequest)
}

func TestHTTPFloats(t *testing.T) {
	d, sim := connected(t, Config{})
	srv := serve(t, d)

	resp := post(t, srv, "/gain", generichttp.FloatT{F64: 3})
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusOK)
	test.That(t, sim.Calls(), test.ShouldContain, "SetUint32 GainValue 3")
	f := generichttp.FloatT{}
	get(t, srv, "/gain", &f)
	test.That(t, f.F64, test.ShouldEqual, 3)

	resp = post(t, srv, "/acquire-period", generichttp.FloatT{F64: -1})
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusBadRequest)
}

func TestHTTPParams(t *testing.T) {
	d, sim := connected(t, Config{})
	srv := serve(t, d)

	resp := post(t, srv, "/param/numimages", generichttp.IntT{Int: 4})
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusOK)
	test.That(t, sim.Calls(), test.ShouldContain, "SetUint32 AcquisitionFrameCount 4")
	i := generichttp.IntT{}
	get(t, srv, "/param/NumImages", &i)
	test.That(t, i.Int, test.ShouldEqual, 4)

	resp = post(t, srv, "/param/AcquireTime", generichttp.IntT{Int: 1})
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusOK)
	f := generichttp.FloatT{}
	get(t, srv, "/param/AcquireTime", &f)
	test.That(t, f.F64, test.ShouldAlmostEqual, 1)

	// wrong kind
	resp = post(t, srv, "/param/NumImages", generichttp.StrT{Str: "four"})
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusBadRequest)

	resp = get(t, srv, "/param/NoSuchParam", nil)
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusBadRequest)

	all := map[string]interface{}{}
	get(t, srv, "/param", &all)
	test.That(t, all["Model"], test.ShouldEqual, "GC1380H")
}

func TestHTTPStatsAndReport(t *testing.T) {
	d, _ := connected(t, Config{})
	srv := serve(t, d)

	stats := map[string]interface{}{}
	resp := get(t, srv, "/stats", &stats)
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusOK)
	test.That(t, stats["PSDriverType"], test.ShouldEqual, "Standard")
	_, ok := stats["PSPacketsReceived"]
	test.That(t, ok, test.ShouldBeTrue)

	r, err := http.Get(srv.URL + "/report?details=2")
	test.That(t, err, test.ShouldBeNil)
	defer r.Body.Close()
	buf, _ := io.ReadAll(r.Body)
	test.That(t, strings.Contains(string(buf), "GC1380H"), test.ShouldBeTrue)

	resp = get(t, srv, "/report?details=lots", nil)
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusBadRequest)
}

func TestHTTPWriteImage(t *testing.T) {
	w := &fakeWriter{}
	d, sim := connected(t, Config{Writer: w})
	srv := serve(t, d)

	resp := post(t, srv, "/image/write", nil)
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusNotFound)

	test.That(t, d.WriteString(adparam.FilePath, "/data/"), test.ShouldBeNil)
	test.That(t, d.WriteString(adparam.FileName, "psl"), test.ShouldBeNil)
	expose(t, d, sim, pvapi.Success)
	r, err := http.Post(srv.URL+"/image/write", "application/json", nil)
	test.That(t, err, test.ShouldBeNil)
	defer r.Body.Close()
	s := generichttp.StrT{}
	test.That(t, json.NewDecoder(r.Body).Decode(&s), test.ShouldBeNil)
	test.That(t, s.Str, test.ShouldEqual, "/data/psl_000.fits")
}

func TestCollectHeaderMetadata(t *testing.T) {
	d, _ := connected(t, Config{})
	cards := d.CollectHeaderMetadata()
	byName := map[string]interface{}{}
	for _, c := range cards {
		byName[c.Name] = c.Value
	}
	test.That(t, byName["CAMMODL"], test.ShouldEqual, "GC1380H")
	test.That(t, byName["BINX"], test.ShouldEqual, 1)
	test.That(t, byName["EXPTIME"], test.ShouldAlmostEqual, 0.015)
}
