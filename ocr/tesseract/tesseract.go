// Package tesseract provides the default Recognizer backed by the gosseract
// client.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/takashi-oh/scankit/builder"
	"github.com/takashi-oh/scankit/ocr"
	"github.com/takashi-oh/scankit/writer"
)

// Engine recognizes images with Tesseract and composes the result into a
// one-page searchable PDF document.
type Engine struct {
	clientFactory func() *gosseract.Client
}

// New constructs a Tesseract-backed engine. Each recognition uses a fresh
// client, so the engine is safe for concurrent use.
func New() *Engine {
	return &Engine{clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return "tesseract" }

// RecognizeDocument runs OCR on img and returns the binary form of a
// searchable single-page document.
func (e *Engine) RecognizeDocument(ctx context.Context, img image.Image, language string, opts ...ocr.Option) (ocr.DocumentData, error) {
	select {
	case <-ctx.Done():
		return ocr.DocumentData{}, ctx.Err()
	default:
	}

	res, req, err := e.recognize(ctx, img, language, opts...)
	if err != nil {
		return ocr.DocumentData{}, err
	}

	page, err := builder.SearchablePage(img, res, req.DPI)
	if err != nil {
		return ocr.DocumentData{}, fmt.Errorf("compose page: %w", err)
	}
	w := writer.NewDocumentWriter()
	if err := w.AddPage(page); err != nil {
		return ocr.DocumentData{}, fmt.Errorf("add page: %w", err)
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return ocr.DocumentData{}, fmt.Errorf("serialize document: %w", err)
	}
	return ocr.DocumentData{Binary: buf.Bytes()}, nil
}

func (e *Engine) recognize(ctx context.Context, img image.Image, language string, opts ...ocr.Option) (ocr.Result, ocr.Request, error) {
	req := ocr.NewRequest(opts...)

	imgData, err := encodePNG(img)
	if err != nil {
		return ocr.Result{}, req, fmt.Errorf("encode image: %w", err)
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(imgData); err != nil {
		return ocr.Result{}, req, fmt.Errorf("set image: %w", err)
	}
	if langs := ocr.SplitLanguages(language); len(langs) > 0 {
		if err := c.SetLanguage(langs...); err != nil {
			return ocr.Result{}, req, fmt.Errorf("set languages: %w", err)
		}
	}
	if req.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(req.DPI)); err != nil {
			return ocr.Result{}, req, fmt.Errorf("set dpi: %w", err)
		}
	}
	for k, v := range req.Variables {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return ocr.Result{}, req, fmt.Errorf("set variable %s: %w", k, err)
		}
	}

	select {
	case <-ctx.Done():
		return ocr.Result{}, req, ctx.Err()
	default:
	}

	text, err := c.Text()
	if err != nil {
		return ocr.Result{}, req, fmt.Errorf("recognize text: %w", err)
	}

	return ocr.Result{
		PlainText: strings.TrimSpace(text),
		Words:     extractWords(c),
	}, req, nil
}

func extractWords(c *gosseract.Client) []ocr.Word {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return nil
	}
	words := make([]ocr.Word, 0, len(boxes))
	for _, b := range boxes {
		words = append(words, ocr.Word{
			Text: b.Word,
			Bounds: ocr.Box{
				X:      float64(b.Box.Min.X),
				Y:      float64(b.Box.Min.Y),
				Width:  float64(b.Box.Dx()),
				Height: float64(b.Box.Dy()),
			},
			Confidence: b.Confidence / 100.0,
		})
	}
	return words
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
