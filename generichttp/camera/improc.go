// this file contains a few small image processing utilities
package camera

import (
	"image"
	"image/color"
)

// Stretch maps the range of a grayscale image onto 8 bits for display.
// Images that are already 8 bits are returned unchanged.
func Stretch(im image.Image) image.Image {
	g16, ok := im.(*image.Gray16)
	if !ok {
		return im
	}
	b := g16.Bounds()
	lo, hi := uint16(0xffff), uint16(0)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := g16.Gray16At(x, y).Y
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	span := uint32(hi) - uint32(lo)
	if span == 0 {
		span = 1
	}
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := uint32(g16.Gray16At(x, y).Y - lo)
			out.SetGray(x, y, color.Gray{Y: uint8(v * 255 / span)})
		}
	}
	return out
}

// Rotate rotates an image clockwise by a multiple of 90 degrees
func Rotate(im image.Image, degrees int) image.Image {
	turns := ((degrees/90)%4 + 4) % 4
	if turns == 0 {
		return im
	}
	b := im.Bounds()
	w, h := b.Dx(), b.Dy()
	var out *image.Gray
	if turns == 2 {
		out = image.NewGray(image.Rect(0, 0, w, h))
	} else {
		out = image.NewGray(image.Rect(0, 0, h, w))
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.GrayModel.Convert(im.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			switch turns {
			case 1:
				out.SetGray(h-1-y, x, c)
			case 2:
				out.SetGray(w-1-x, h-1-y, c)
			case 3:
				out.SetGray(y, w-1-x, c)
			}
		}
	}
	return out
}
