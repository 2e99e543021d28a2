package recognize

import (
	"bytes"
	"image"
	"image/draw"

	"github.com/rwcarlsen/goexif/exif"
)

// readOrientation extracts the EXIF orientation tag, returning 1 (upright)
// when the data has no usable EXIF block.
func readOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 1
	}
	return v
}

// applyOrientation rewrites the pixels so the image displays upright without
// its orientation tag. Values follow the EXIF convention: 2 mirrors
// horizontally, 3 rotates 180, 4 mirrors vertically, 5 and 7 transpose,
// 6 and 8 rotate 90 clockwise and counterclockwise.
func applyOrientation(img image.Image, orientation int) image.Image {
	if orientation <= 1 || orientation > 8 {
		return img
	}
	src := toDrawable(img)
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	var out *image.NRGBA
	switch orientation {
	case 2, 3, 4:
		out = image.NewNRGBA(image.Rect(0, 0, w, h))
	default:
		out = image.NewNRGBA(image.Rect(0, 0, h, w))
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := src.NRGBAAt(b.Min.X+x, b.Min.Y+y)
			switch orientation {
			case 2:
				out.SetNRGBA(w-1-x, y, c)
			case 3:
				out.SetNRGBA(w-1-x, h-1-y, c)
			case 4:
				out.SetNRGBA(x, h-1-y, c)
			case 5:
				out.SetNRGBA(y, x, c)
			case 6:
				out.SetNRGBA(h-1-y, x, c)
			case 7:
				out.SetNRGBA(h-1-y, w-1-x, c)
			case 8:
				out.SetNRGBA(y, w-1-x, c)
			}
		}
	}
	return out
}

func toDrawable(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
