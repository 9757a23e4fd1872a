package imgrec

import (
	"encoding/json"
	"go/types"
	"net/http"
	"path/filepath"

	"github.com/areaDetector/ADProsilica/generichttp"
	"github.com/areaDetector/ADProsilica/server"
)

// HTTPWrapper is an HTTP wrapper around an image recorder that allows the folder and prefix to be changed on the fly
//
// it does not implement generichttp.HTTPer, offering an Inject method allowing it to be injected
// into another HTTPer
type HTTPWrapper struct {
	*Recorder
}

// NewHTTPWrapper returns an HTTP wrapper around a recorder
func NewHTTPWrapper(r *Recorder) HTTPWrapper {
	return HTTPWrapper{r}
}

// SetRoot updates the root folder of the recorder
func (h HTTPWrapper) SetRoot(w http.ResponseWriter, r *http.Request) {
	str := generichttp.StrT{}
	err := json.NewDecoder(r.Body).Decode(&str)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err = h.Recorder.SetRoot(str.Str)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetRoot gets the recorder's root folder and sends it back as JSON
func (h HTTPWrapper) GetRoot(w http.ResponseWriter, r *http.Request) {
	hp := generichttp.HumanPayload{T: types.String, String: h.Recorder.GetRoot()}
	hp.EncodeAndRespond(w, r)
}

// SetPrefix updates the filename prefix of the recorder
func (h HTTPWrapper) SetPrefix(w http.ResponseWriter, r *http.Request) {
	str := generichttp.StrT{}
	err := json.NewDecoder(r.Body).Decode(&str)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.Recorder.SetPrefix(str.Str)
	w.WriteHeader(http.StatusOK)
}

// GetPrefix gets the recorder's prefix and sends it back as JSON
func (h HTTPWrapper) GetPrefix(w http.ResponseWriter, r *http.Request) {
	hp := generichttp.HumanPayload{T: types.String, String: h.Recorder.GetPrefix()}
	hp.EncodeAndRespond(w, r)
}

// GetLast returns the most recently written file relative to the root as json {'str': value}
func (h HTTPWrapper) GetLast(w http.ResponseWriter, r *http.Request) {
	fn := h.Recorder.Last()
	if fn != "" {
		if rel, err := filepath.Rel(h.Recorder.GetRoot(), fn); err == nil {
			fn = filepath.ToSlash(rel)
		}
	}
	hp := generichttp.HumanPayload{T: types.String, String: fn}
	hp.EncodeAndRespond(w, r)
}

// GetFile serves the file named by the name query parameter, relative to the root
func (h HTTPWrapper) GetFile(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "name query parameter is required", http.StatusBadRequest)
		return
	}
	server.ReplyWithFile(w, r, name, h.Recorder.GetRoot())
}

// Inject adds GET and POST routes for /autowrite/root, /autowrite/prefix,
// /autowrite/format and /autowrite/enabled to the HTTPer which manipulate this
// wrapper's recorder, plus GET /autowrite/last and /autowrite/file which
// retrieve what it wrote
func (h HTTPWrapper) Inject(other generichttp.HTTPer) {
	rt := other.RT()
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/autowrite/last"}] = h.GetLast
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/autowrite/file"}] = h.GetFile
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/autowrite/root"}] = h.SetRoot
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/autowrite/root"}] = h.GetRoot
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/autowrite/prefix"}] = h.SetPrefix
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/autowrite/prefix"}] = h.GetPrefix
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/autowrite/format"}] = generichttp.SetString(h.Recorder.SetFormat)
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/autowrite/format"}] = generichttp.GetString(func() (string, error) {
		return h.Recorder.GetFormat(), nil
	})
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/autowrite/enabled"}] = generichttp.SetBool(func(b bool) error {
		h.Recorder.SetEnabled(b)
		return nil
	})
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/autowrite/enabled"}] = generichttp.GetBool(func() (bool, error) {
		return h.Recorder.GetEnabled(), nil
	})
}
