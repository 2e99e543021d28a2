// Package filters decodes PDF stream filters. Only the filters that occur in
// scanner output and office-grade PDFs are implemented; a stream using any
// other filter, DCTDecode included, fails to decode. Image payloads never
// need decoding here, they are copied encoded.
package filters

import (
	"bytes"
	"compress/flate"
	"compress/lzw"
	"compress/zlib"
	"context"
	stdascii85 "encoding/ascii85"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/takashi-oh/scankit/pdf"
)

type Decoder interface {
	Name() string
	Decode(ctx context.Context, input []byte, params *pdf.Dict) ([]byte, error)
}

type Limits struct {
	// MaxDecompressedSize bounds a single stream's decoded size. Zero means
	// unlimited.
	MaxDecompressedSize int64
}

type Pipeline struct {
	decoders map[string]Decoder
	limits   Limits
}

func NewPipeline(decoders []Decoder, limits Limits) *Pipeline {
	m := make(map[string]Decoder, len(decoders))
	for _, d := range decoders {
		m[d.Name()] = d
	}
	return &Pipeline{decoders: m, limits: limits}
}

// NewDefault returns a pipeline with all supported decoders.
func NewDefault() *Pipeline {
	return NewPipeline([]Decoder{
		NewFlateDecoder(),
		NewLZWDecoder(),
		NewASCII85Decoder(),
		NewASCIIHexDecoder(),
	}, Limits{})
}

// Decode applies the named filter chain in order.
func (p *Pipeline) Decode(ctx context.Context, input []byte, names []string, params []*pdf.Dict) ([]byte, error) {
	data := input
	for i, name := range names {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		dec, ok := p.decoders[name]
		if !ok {
			return nil, fmt.Errorf("unknown filter %s", name)
		}
		var param *pdf.Dict
		if i < len(params) {
			param = params[i]
		}
		out, err := dec.Decode(ctx, data, param)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if p.limits.MaxDecompressedSize > 0 && int64(len(out)) > p.limits.MaxDecompressedSize {
			return nil, errors.New("decompressed size exceeds limit")
		}
		data = out
	}
	return data, nil
}

// DecodeStream decodes a stream object using its own Filter/DecodeParms keys.
func (p *Pipeline) DecodeStream(ctx context.Context, doc *pdf.Document, stream *pdf.Stream) ([]byte, error) {
	names, params := ExtractFilters(doc, stream.Dict)
	if len(names) == 0 {
		return stream.Data, nil
	}
	return p.Decode(ctx, stream.Data, names, params)
}

// ExtractFilters reads Filter and DecodeParms entries from a stream dictionary.
func ExtractFilters(doc *pdf.Document, dict *pdf.Dict) ([]string, []*pdf.Dict) {
	var names []string
	var params []*pdf.Dict

	switch f := doc.DictGet(dict, "Filter").(type) {
	case pdf.Name:
		names = append(names, string(f))
	case *pdf.Array:
		for _, item := range f.Items {
			if n, ok := pdf.AsName(doc.Resolve(item)); ok {
				names = append(names, string(n))
			}
		}
	}
	if len(names) == 0 {
		return nil, nil
	}

	switch p := doc.DictGet(dict, "DecodeParms").(type) {
	case *pdf.Dict:
		params = append(params, p)
	case *pdf.Array:
		for _, item := range p.Items {
			d, _ := doc.ResolveDict(item)
			params = append(params, d) // nil entries keep positions aligned
		}
	}
	return names, params
}

type flateDecoder struct{}

func NewFlateDecoder() Decoder { return flateDecoder{} }

func (flateDecoder) Name() string { return "FlateDecode" }

// Decode handles both zlib-wrapped (the common wire form) and raw deflate
// payloads, which some writers emit without the RFC 1950 header.
func (flateDecoder) Decode(ctx context.Context, in []byte, params *pdf.Dict) ([]byte, error) {
	if r, err := zlib.NewReader(bytes.NewReader(in)); err == nil {
		defer r.Close()
		out, err := io.ReadAll(r)
		if err == nil {
			return applyPredictor(out, params)
		}
	}
	r := flate.NewReader(bytes.NewReader(in))
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return applyPredictor(out, params)
}

type lzwDecoder struct{}

func NewLZWDecoder() Decoder { return lzwDecoder{} }

func (lzwDecoder) Name() string { return "LZWDecode" }

func (lzwDecoder) Decode(ctx context.Context, in []byte, params *pdf.Dict) ([]byte, error) {
	r := lzw.NewReader(bytes.NewReader(in), lzw.MSB, 8)
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil && len(out) == 0 {
		return nil, err
	}
	// Streams using the PDF default EarlyChange=1 can trip the stdlib reader
	// near the end of data; partial output is still usable for text probing.
	return applyPredictor(out, params)
}

type ascii85Decoder struct{}

func NewASCII85Decoder() Decoder { return ascii85Decoder{} }

func (ascii85Decoder) Name() string { return "ASCII85Decode" }

func (ascii85Decoder) Decode(ctx context.Context, in []byte, params *pdf.Dict) ([]byte, error) {
	trimmed := bytes.TrimSpace(in)
	trimmed = bytes.TrimPrefix(trimmed, []byte("<~"))
	trimmed = bytes.TrimSuffix(trimmed, []byte("~>"))
	out := make([]byte, len(trimmed)*2)
	n, _, err := stdascii85.Decode(out, trimmed, true)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

type asciiHexDecoder struct{}

func NewASCIIHexDecoder() Decoder { return asciiHexDecoder{} }

func (asciiHexDecoder) Name() string { return "ASCIIHexDecode" }

func (asciiHexDecoder) Decode(ctx context.Context, in []byte, params *pdf.Dict) ([]byte, error) {
	trimmed := bytes.TrimSpace(in)
	if i := bytes.IndexByte(trimmed, '>'); i >= 0 {
		trimmed = trimmed[:i]
	}
	compact := make([]byte, 0, len(trimmed))
	for _, c := range trimmed {
		if c == ' ' || c == '\n' || c == '\r' || c == '\t' {
			continue
		}
		compact = append(compact, c)
	}
	if len(compact)%2 == 1 {
		compact = append(compact, '0')
	}
	out := make([]byte, hex.DecodedLen(len(compact)))
	n, err := hex.Decode(out, compact)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

// applyPredictor reverses PNG row predictors (Predictor >= 10). Cross-
// reference streams use them routinely; content streams never do.
func applyPredictor(data []byte, params *pdf.Dict) ([]byte, error) {
	if params == nil {
		return data, nil
	}
	predictor := dictInt(params, "Predictor", 1)
	if predictor < 10 {
		return data, nil
	}
	colors := dictInt(params, "Colors", 1)
	bpc := dictInt(params, "BitsPerComponent", 8)
	columns := dictInt(params, "Columns", 1)
	bpp := (colors*bpc + 7) / 8
	rowLen := (colors*bpc*columns + 7) / 8

	stride := rowLen + 1
	if stride <= 1 || len(data)%stride != 0 {
		return nil, fmt.Errorf("predictor row length %d does not divide data of %d bytes", stride, len(data))
	}
	out := make([]byte, 0, len(data)/stride*rowLen)
	prev := make([]byte, rowLen)
	for off := 0; off < len(data); off += stride {
		tag := data[off]
		row := append([]byte(nil), data[off+1:off+stride]...)
		switch tag {
		case 0: // None
		case 1: // Sub
			for i := bpp; i < len(row); i++ {
				row[i] += row[i-bpp]
			}
		case 2: // Up
			for i := range row {
				row[i] += prev[i]
			}
		case 3: // Average
			for i := range row {
				var left byte
				if i >= bpp {
					left = row[i-bpp]
				}
				row[i] += byte((int(left) + int(prev[i])) / 2)
			}
		case 4: // Paeth
			for i := range row {
				var left, upLeft byte
				if i >= bpp {
					left = row[i-bpp]
					upLeft = prev[i-bpp]
				}
				row[i] += paeth(left, prev[i], upLeft)
			}
		default:
			return nil, fmt.Errorf("unsupported PNG predictor tag %d", tag)
		}
		out = append(out, row...)
		prev = row
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func dictInt(d *pdf.Dict, key pdf.Name, def int) int {
	obj, ok := d.Get(key)
	if !ok {
		return def
	}
	if v, ok := pdf.AsInt(obj); ok {
		return int(v)
	}
	return def
}
