package imgrec

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi"
	"go.viam.com/test"
	"golang.org/x/image/tiff"

	"github.com/areaDetector/ADProsilica/generichttp"
	"github.com/areaDetector/ADProsilica/ndarray"
)

func testImage(t *testing.T, dt ndarray.DataType) *ndarray.Image {
	t.Helper()
	pool := ndarray.NewPool(0, 0)
	img, err := pool.Alloc(4 * 3 * dt.Size())
	test.That(t, err, test.ShouldBeNil)
	for i := range img.Data {
		img.Data[i] = byte(i)
	}
	img.Width, img.Height, img.DataType = 4, 3, dt
	img.UniqueID = 7
	return img
}

func newRecorder(t *testing.T, format string) *Recorder {
	t.Helper()
	r, err := New(t.TempDir(), "img", format)
	test.That(t, err, test.ShouldBeNil)
	mock := clock.NewMock()
	mock.Set(time.Date(2021, 3, 14, 12, 0, 0, 0, time.UTC))
	r.Clock = mock
	return r
}

func TestSequencedNames(t *testing.T) {
	r := newRecorder(t, FITS)
	img := testImage(t, ndarray.UInt16)
	defer img.Release()
	for _, want := range []string{"img000000.fits", "img000001.fits"} {
		fn, err := r.WriteImage(img, "")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, fn, test.ShouldEqual, filepath.Join(r.Root, "2021-03-14", want))
	}
}

func TestCounterRecoveredFromFolder(t *testing.T) {
	r := newRecorder(t, FITS)
	img := testImage(t, ndarray.UInt8)
	defer img.Release()
	_, err := r.WriteImage(img, "")
	test.That(t, err, test.ShouldBeNil)
	_, err = r.WriteImage(img, "")
	test.That(t, err, test.ShouldBeNil)

	r2, err := New(r.Root, "img", FITS)
	test.That(t, err, test.ShouldBeNil)
	r2.Clock = r.Clock
	fn, err := r2.WriteImage(img, "")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, filepath.Base(fn), test.ShouldEqual, "img000002.fits")

	// a new prefix starts over
	r2.SetPrefix("other")
	fn, err = r2.WriteImage(img, "")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, filepath.Base(fn), test.ShouldEqual, "other000000.fits")
}

func TestExplicitName(t *testing.T) {
	r := newRecorder(t, TIFF)
	img := testImage(t, ndarray.UInt8)
	defer img.Release()
	name := filepath.Join(r.Root, "sub", "frame_003")
	fn, err := r.WriteImage(img, name)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, fn, test.ShouldEqual, name+".tiff")

	f, err := os.Open(fn)
	test.That(t, err, test.ShouldBeNil)
	defer f.Close()
	im, err := tiff.Decode(f)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, im.Bounds().Dx(), test.ShouldEqual, 4)
	test.That(t, im.Bounds().Dy(), test.ShouldEqual, 3)
}

func TestFITSHeader(t *testing.T) {
	img := testImage(t, ndarray.UInt16)
	defer img.Release()
	var buf bytes.Buffer
	test.That(t, EncodeFITS(&buf, img, nil), test.ShouldBeNil)
	test.That(t, strings.HasPrefix(buf.String(), "SIMPLE  ="), test.ShouldBeTrue)
	test.That(t, buf.String(), test.ShouldContainSubstring, "BZERO")
	// FITS files are a multiple of 2880 bytes
	test.That(t, buf.Len()%2880, test.ShouldEqual, 0)
}

func TestFITSRejectsFloat(t *testing.T) {
	img := testImage(t, ndarray.Float32)
	defer img.Release()
	var buf bytes.Buffer
	test.That(t, EncodeFITS(&buf, img, nil), test.ShouldNotBeNil)
}

func TestWriteFailureLeavesNoFile(t *testing.T) {
	r := newRecorder(t, FITS)
	img := testImage(t, ndarray.Float64)
	defer img.Release()
	name := filepath.Join(r.Root, "bad")
	_, err := r.WriteImage(img, name)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = os.Stat(name + ".fits")
	test.That(t, os.IsNotExist(err), test.ShouldBeTrue)
}

func TestSetFormat(t *testing.T) {
	r := newRecorder(t, "")
	test.That(t, r.GetFormat(), test.ShouldEqual, FITS)
	test.That(t, r.SetFormat("TIF"), test.ShouldBeNil)
	test.That(t, r.GetFormat(), test.ShouldEqual, TIFF)
	test.That(t, r.SetFormat("jpeg"), test.ShouldNotBeNil)
	_, err := New("", "", "bmp")
	test.That(t, err, test.ShouldNotBeNil)
}

type table struct{ rt generichttp.RouteTable }

func (t table) RT() generichttp.RouteTable { return t.rt }

func TestHTTPWrapper(t *testing.T) {
	r := newRecorder(t, FITS)
	tbl := table{generichttp.RouteTable{}}
	NewHTTPWrapper(r).Inject(tbl)
	mux := chi.NewRouter()
	tbl.rt.Bind(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	root := filepath.Join(r.Root, "new")
	body, _ := json.Marshal(generichttp.StrT{Str: root})
	resp, err := http.Post(srv.URL+"/autowrite/root", "application/json", bytes.NewReader(body))
	test.That(t, err, test.ShouldBeNil)
	resp.Body.Close()
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusOK)
	test.That(t, r.GetRoot(), test.ShouldEqual, root)
	_, err = os.Stat(filepath.Join(root, "2021-03-14"))
	test.That(t, err, test.ShouldBeNil)

	body, _ = json.Marshal(generichttp.BoolT{Bool: true})
	resp, err = http.Post(srv.URL+"/autowrite/enabled", "application/json", bytes.NewReader(body))
	test.That(t, err, test.ShouldBeNil)
	resp.Body.Close()
	test.That(t, r.GetEnabled(), test.ShouldBeTrue)

	resp, err = http.Get(srv.URL + "/autowrite/format")
	test.That(t, err, test.ShouldBeNil)
	defer resp.Body.Close()
	s := generichttp.StrT{}
	test.That(t, json.NewDecoder(resp.Body).Decode(&s), test.ShouldBeNil)
	test.That(t, s.Str, test.ShouldEqual, FITS)

	img := testImage(t, ndarray.UInt8)
	defer img.Release()
	fn, err := r.WriteImage(img, "")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r.Last(), test.ShouldEqual, fn)
	last := generichttp.StrT{}
	resp3, err := http.Get(srv.URL + "/autowrite/last")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, json.NewDecoder(resp3.Body).Decode(&last), test.ShouldBeNil)
	resp3.Body.Close()
	test.That(t, last.Str, test.ShouldEqual, "2021-03-14/img000000.fits")

	resp3, err = http.Get(srv.URL + "/autowrite/file?name=" + last.Str)
	test.That(t, err, test.ShouldBeNil)
	head := make([]byte, 6)
	_, err = io.ReadFull(resp3.Body, head)
	resp3.Body.Close()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(head), test.ShouldEqual, "SIMPLE")

	resp3, err = http.Get(srv.URL + "/autowrite/file?name=../../etc/passwd")
	test.That(t, err, test.ShouldBeNil)
	resp3.Body.Close()
	test.That(t, resp3.StatusCode, test.ShouldEqual, http.StatusBadRequest)

	body, _ = json.Marshal(generichttp.StrT{Str: "png"})
	resp2, err := http.Post(srv.URL+"/autowrite/format", "application/json", bytes.NewReader(body))
	test.That(t, err, test.ShouldBeNil)
	resp2.Body.Close()
	test.That(t, resp2.StatusCode, test.ShouldEqual, http.StatusInternalServerError)
}
