package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	p, err := Resolve(dir, "2021-03-14/img000000.fits")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p, test.ShouldEqual, filepath.Join(dir, "2021-03-14", "img000000.fits"))

	_, err = Resolve(dir, "../secret")
	test.That(t, err, test.ShouldEqual, ErrOutsideFolder)
}

func TestReplyWithFile(t *testing.T) {
	dir := t.TempDir()
	test.That(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0666), test.ShouldBeNil)

	w := httptest.NewRecorder()
	ReplyWithFile(w, httptest.NewRequest(http.MethodGet, "/", nil), "a.txt", dir)
	test.That(t, w.Code, test.ShouldEqual, http.StatusOK)
	body, _ := io.ReadAll(w.Body)
	test.That(t, string(body), test.ShouldEqual, "hello")

	w = httptest.NewRecorder()
	ReplyWithFile(w, httptest.NewRequest(http.MethodGet, "/", nil), "b.txt", dir)
	test.That(t, w.Code, test.ShouldEqual, http.StatusNotFound)

	w = httptest.NewRecorder()
	ReplyWithFile(w, httptest.NewRequest(http.MethodGet, "/", nil), "../a.txt", dir)
	test.That(t, w.Code, test.ShouldEqual, http.StatusBadRequest)

	w = httptest.NewRecorder()
	ReplyWithFile(w, httptest.NewRequest(http.MethodGet, "/", nil), ".", dir)
	test.That(t, w.Code, test.ShouldEqual, http.StatusBadRequest)
}
