// Package ocr defines the recognition-engine contract for the assembly
// pipeline. An engine consumes one decoded raster image and produces a
// single-file searchable document: the visible image with recognized text
// layered invisibly beneath it. The contract is provider-agnostic so tests
// and alternative engines substitute freely for the Tesseract default.
package ocr

import (
	"context"
	"image"
	"strconv"
	"strings"
)

// DocumentData is a recognition result in one of the engine's two return
// forms: raw binary document data or text-encoded document data. Exactly one
// form is populated.
type DocumentData struct {
	Binary []byte
	Text   string
}

// Bytes normalizes both forms to binary. Text-encoded data is transcoded
// byte for byte, so the two forms of the same document are
// indistinguishable downstream.
func (d DocumentData) Bytes() []byte {
	if d.Binary != nil {
		return d.Binary
	}
	return []byte(d.Text)
}

// Recognizer converts an image into searchable single-file document data.
// The language specifier is a single code or a '+'-joined list for
// mixed-language material (e.g. "jpn+eng").
type Recognizer interface {
	Name() string
	RecognizeDocument(ctx context.Context, img image.Image, language string, opts ...Option) (DocumentData, error)
}

// SplitLanguages breaks a '+'-joined language specifier into engine codes,
// dropping empty segments.
func SplitLanguages(language string) []string {
	var out []string
	for _, part := range strings.Split(language, "+") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Box is a rectangle in pixel coordinates with the origin at the image's
// upper-left corner.
type Box struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// IsEmpty reports whether the box has non-positive dimensions.
func (b Box) IsEmpty() bool { return b.Width <= 0 || b.Height <= 0 }

// Word is a single recognized token with its position.
type Word struct {
	Text       string
	Bounds     Box
	Confidence float64
}

// Result is the structured recognition output an engine gathers before
// composing its document.
type Result struct {
	PlainText string
	Words     []Word
}

// Request carries engine tuning resolved from Options.
type Request struct {
	DPI       int
	Variables map[string]string
}

// Option mutates a recognition request.
type Option func(*Request)

// NewRequest resolves opts into a Request.
func NewRequest(opts ...Option) Request {
	var req Request
	for _, opt := range opts {
		opt(&req)
	}
	return req
}

// WithDPI sets the effective dots-per-inch hint for the image.
func WithDPI(dpi int) Option {
	return func(r *Request) { r.DPI = dpi }
}

// WithVariable passes an engine-specific variable through to the provider.
func WithVariable(key, value string) Option {
	return func(r *Request) {
		if r.Variables == nil {
			r.Variables = make(map[string]string)
		}
		r.Variables[key] = value
	}
}

// WithTesseractPSM sets the page segmentation mode for Tesseract providers.
func WithTesseractPSM(mode int) Option {
	return WithVariable("tessedit_pageseg_mode", strconv.Itoa(mode))
}

// WithTesseractWhitelist restricts recognition to the given characters.
func WithTesseractWhitelist(chars string) Option {
	return WithVariable("tessedit_char_whitelist", chars)
}
