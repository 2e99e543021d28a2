// Package recognize turns image files into searchable document pages. It
// decodes the raster, applies the camera orientation recorded in EXIF
// metadata, hands the pixels to a recognition engine, and parses the
// engine's document output back into pages the output writer accepts.
package recognize

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/takashi-oh/scankit/extractor"
	"github.com/takashi-oh/scankit/observability"
	"github.com/takashi-oh/scankit/ocr"
	"github.com/takashi-oh/scankit/pdf"
)

// Adapter adapts a recognition engine to the page pipeline.
type Adapter struct {
	engine ocr.Recognizer
	logger observability.Logger
	opts   []ocr.Option
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger attaches a logger. The default discards everything.
func WithLogger(l observability.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithEngineOptions forwards engine tuning to every recognition call.
func WithEngineOptions(opts ...ocr.Option) Option {
	return func(a *Adapter) { a.opts = append(a.opts, opts...) }
}

// New builds an Adapter around engine.
func New(engine ocr.Recognizer, opts ...Option) *Adapter {
	a := &Adapter{engine: engine, logger: observability.NopLogger{}}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ToPages recognizes the image file at path and returns the pages of the
// resulting searchable document.
func (a *Adapter) ToPages(ctx context.Context, path, language string) ([]pdf.Page, error) {
	img, err := DecodeFile(path)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("recognizing image",
		observability.String("path", path),
		observability.String("engine", a.engine.Name()),
		observability.String("language", language))

	data, err := a.engine.RecognizeDocument(ctx, img, language, a.opts...)
	if err != nil {
		return nil, fmt.Errorf("recognize %s: %w", path, err)
	}

	doc, err := extractor.Open(data.Bytes())
	if err != nil {
		return nil, fmt.Errorf("parse recognized document for %s: %w", path, err)
	}
	pages := doc.Pages()
	if len(pages) == 0 {
		return nil, fmt.Errorf("recognized document for %s has no pages", path)
	}
	return pages, nil
}

// DecodeFile reads and decodes an image file, honoring its EXIF orientation.
func DecodeFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", path, err)
	}
	img, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}
	return img, nil
}

// Decode decodes raster data in any registered format and applies the EXIF
// orientation, so the pixels come out the way the page was scanned.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return applyOrientation(img, readOrientation(data)), nil
}
