package imgrec

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/astrogo/fitsio"

	"github.com/areaDetector/ADProsilica/ndarray"
)

// EncodeFITS streams img to w as a single 16-bit FITS image.  Unsigned data
// is stored with BZERO 32768 so readers recover the original values.
func EncodeFITS(w io.Writer, img *ndarray.Image, metadata []fitsio.Card) error {
	n := img.Width * img.Height
	ints := make([]int16, n)
	switch img.DataType {
	case ndarray.Int8, ndarray.UInt8:
		if len(img.Data) < n {
			return fmt.Errorf("image holds %d bytes, need %d", len(img.Data), n)
		}
		for idx := 0; idx < n; idx++ {
			ints[idx] = int16(int(img.Data[idx]) - 32768)
		}
	case ndarray.Int16, ndarray.UInt16:
		if len(img.Data) < 2*n {
			return fmt.Errorf("image holds %d bytes, need %d", len(img.Data), 2*n)
		}
		for idx := 0; idx < n; idx++ {
			ints[idx] = int16(binary.LittleEndian.Uint16(img.Data[2*idx:]) - 32768)
		}
	default:
		return fmt.Errorf("cannot write %s data to FITS", img.DataType)
	}

	metadata = append(metadata,
		fitsio.Card{Name: "BZERO", Value: 32768},
		fitsio.Card{Name: "BSCALE", Value: 1.0},
		fitsio.Card{Name: "IMGID", Value: img.UniqueID, Comment: "camera frame counter"},
		fitsio.Card{Name: "TIMESTMP", Value: img.TimeStamp, Comment: "camera timestamp, s"},
		fitsio.Card{Name: "DATATYPE", Value: img.DataType.String(), Comment: "source data type"})
	fits, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer fits.Close()
	im := fitsio.NewImage(16, []int{img.Width, img.Height})
	defer im.Close()
	err = im.Header().Append(metadata...)
	if err != nil {
		return err
	}
	err = im.Write(ints)
	if err != nil {
		return err
	}
	return fits.Write(im)
}
