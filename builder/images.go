package builder

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
)

// jpegQuality balances scan fidelity against output size.
const jpegQuality = 90

// ToRGB flattens any image onto a white background and returns it without
// an alpha channel, the form the page XObject encodes.
func ToRGB(img image.Image) *image.NRGBA {
	bounds := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, bounds.Min, draw.Over)
	return out
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, ToRGB(img), &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
