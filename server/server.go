// Package server contains misc server utilities.
package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideFolder is generated when a requested file would resolve outside of the served folder
var ErrOutsideFolder = errors.New("file is outside of the served folder")

// Resolve joins fn onto fldr, refusing names which escape fldr
func Resolve(fldr, fn string) (string, error) {
	root, err := filepath.Abs(fldr)
	if err != nil {
		return "", err
	}
	filePath := filepath.Join(root, filepath.FromSlash(fn))
	if filePath != root && !strings.HasPrefix(filePath, root+string(filepath.Separator)) {
		return "", ErrOutsideFolder
	}
	return filePath, nil
}

// ReplyWithFile replies to the client request by serving the given file name
// from within fldr
func ReplyWithFile(w http.ResponseWriter, r *http.Request, fn string, fldr string) {
	filePath, err := Resolve(fldr, fn)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f, err := os.Open(filePath)
	if err != nil {
		http.Error(w, "source file missing "+fn, http.StatusNotFound)
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		http.Error(w, "error retrieving source file stats "+err.Error(), http.StatusInternalServerError)
		return
	}
	if stat.IsDir() {
		http.Error(w, fn+" is a folder", http.StatusBadRequest)
		return
	}
	// read some stuff to set the headers appropriately
	http.ServeContent(w, r, stat.Name(), stat.ModTime(), f)
}
