package camera

import (
	"bufio"
	"io"

	"github.com/astrogo/fitsio"

	"github.com/areaDetector/ADProsilica/imgrec"
	"github.com/areaDetector/ADProsilica/ndarray"
)

// WriteFits streams a fits file to w
func WriteFits(w io.Writer, metadata []fitsio.Card, img *ndarray.Image) error {
	bw := bufio.NewWriter(w)
	if err := imgrec.EncodeFITS(bw, img, metadata); err != nil {
		return err
	}
	return bw.Flush()
}
