// Package imgrec contains an image recorder used to automatically save images to disk.
package imgrec

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/astrogo/fitsio"
	"github.com/benbjohnson/clock"
	"golang.org/x/image/tiff"

	"github.com/areaDetector/ADProsilica/ndarray"
)

const (
	// FITS is the FITS file format
	FITS = "fits"

	// TIFF is the TIFF file format
	TIFF = "tiff"
)

// ErrUnknownFormat is generated when the recorder is asked for a format it cannot write
var ErrUnknownFormat = errors.New("unknown file format, must be fits or tiff")

// Recorder records image sequences with incrementing filenames in yyyy-mm-dd subfolders.
// It is safe for concurrent use.  Use New to make one.
type Recorder struct {
	mu sync.Mutex

	// counter is the internally incrementing counter; -1 means it must be
	// recovered from the folder
	counter int

	// last is the most recently written file
	last string

	// Root is the root path
	Root string

	// Prefix is the prefix for the filenames
	Prefix string

	// Format is FITS or TIFF.  Empty means FITS.
	Format string

	// Enabled is a flag unused by this struct that allows consumers to disable its use in their code
	Enabled bool

	// Metadata, if not nil, supplies extra cards for FITS headers
	Metadata func() []fitsio.Card

	// Clock picks the dated subfolder; nil uses the wall clock
	Clock clock.Clock
}

// New returns a recorder writing format files below root
func New(root, prefix, format string) (*Recorder, error) {
	r := &Recorder{Root: root, Prefix: prefix, counter: -1}
	if err := r.SetFormat(format); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Recorder) ext() string {
	if r.Format == TIFF {
		return TIFF
	}
	return FITS
}

// timeFldr is the subfolder with yyyy-mm-dd format
func (r *Recorder) timeFldr() string {
	c := r.Clock
	if c == nil {
		c = clock.New()
	}
	return c.Now().Format("2006-01-02")
}

// mkDir makes today's folder and returns it
func (r *Recorder) mkDir() (string, error) {
	fldr := filepath.Join(r.Root, r.timeFldr())
	err := os.MkdirAll(fldr, 0777)
	return fldr, err
}

// scan recovers the counter from the highest numbered file in fldr with our prefix and extension
func (r *Recorder) scan(fldr string) int {
	files, err := os.ReadDir(fldr)
	if err != nil {
		return 0
	}
	suffix := "." + r.ext()
	count := -1
	for _, file := range files {
		// skip directories, other formats, and wrong prefix
		if file.IsDir() {
			continue
		}
		fn := file.Name()
		if !strings.HasSuffix(fn, suffix) || !strings.HasPrefix(fn, r.Prefix) {
			continue
		}
		bit := strings.TrimSuffix(strings.TrimPrefix(fn, r.Prefix), suffix)
		n, err := strconv.Atoi(bit)
		if err != nil {
			continue
		}
		if count < n {
			count = n
		}
	}
	return count + 1
}

// next returns the path for the next sequenced file.  The caller holds mu.
func (r *Recorder) next() (string, error) {
	fldr, err := r.mkDir()
	if err != nil {
		return "", err
	}
	if r.counter < 0 {
		r.counter = r.scan(fldr)
	}
	fn := fmt.Sprintf("%s%06d.%s", r.Prefix, r.counter, r.ext())
	r.counter++
	return filepath.Join(fldr, fn), nil
}

// WriteImage writes img to disk and returns the file name.  An empty name
// takes the next sequenced file below Root; otherwise name is used, with the
// format's extension added when it has none.
func (r *Recorder) WriteImage(img *ndarray.Image, name string) (string, error) {
	r.mu.Lock()
	format := r.ext()
	meta := r.Metadata
	var (
		fn  string
		err error
	)
	if name == "" {
		fn, err = r.next()
	} else {
		fn = name
		if filepath.Ext(fn) == "" {
			fn += "." + format
		}
		err = os.MkdirAll(filepath.Dir(fn), 0777)
	}
	r.mu.Unlock()
	if err != nil {
		return "", err
	}

	f, err := os.Create(fn)
	if err != nil {
		return "", err
	}
	switch format {
	case TIFF:
		var im image.Image
		im, err = img.ToImage()
		if err == nil {
			err = tiff.Encode(f, im, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
		}
	default:
		var cards []fitsio.Card
		if meta != nil {
			cards = meta()
		}
		err = EncodeFITS(f, img, cards)
	}
	if err2 := f.Close(); err == nil {
		err = err2
	}
	if err != nil {
		os.Remove(fn)
		return "", err
	}
	r.mu.Lock()
	r.last = fn
	r.mu.Unlock()
	return fn, nil
}

// Last returns the most recently written file, or "" if none has been written
func (r *Recorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// SetRoot changes the root folder and makes today's folder below it
func (r *Recorder) SetRoot(root string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Root = root
	r.counter = -1
	_, err := r.mkDir()
	return err
}

// GetRoot returns the root folder
func (r *Recorder) GetRoot() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Root
}

// SetPrefix changes the file prefix; numbering restarts from the folder's contents
func (r *Recorder) SetPrefix(prefix string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Prefix = prefix
	r.counter = -1
}

// GetPrefix returns the file prefix
func (r *Recorder) GetPrefix() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Prefix
}

// SetFormat changes the file format
func (r *Recorder) SetFormat(format string) error {
	format = strings.ToLower(format)
	switch format {
	case "", "fit", FITS:
		format = FITS
	case "tif", TIFF:
		format = TIFF
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Format = format
	r.counter = -1
	return nil
}

// GetFormat returns the file format
func (r *Recorder) GetFormat() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ext()
}

// SetEnabled sets the Enabled flag
func (r *Recorder) SetEnabled(b bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Enabled = b
}

// GetEnabled returns the Enabled flag
func (r *Recorder) GetEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Enabled
}
