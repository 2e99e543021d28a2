package extractor

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"unicode/utf16"

	"github.com/takashi-oh/scankit/pdf"
	"github.com/takashi-oh/scankit/scanner"
)

// DefaultTextThreshold is the share of text-bearing pages above which a
// document counts as already searchable. The bar is low on purpose: scanned
// bundles often mix a few recognized pages with raw scans, and any meaningful
// prior recognition is trusted rather than redone.
const DefaultTextThreshold = 0.1

// PageText is the text extracted from one page.
type PageText struct {
	Page    int
	Content string
}

// TextLayerVerdict reports whether a document carries a usable text layer.
type TextLayerVerdict struct {
	Present       bool
	Ratio         float64
	PagesWithText int
	PageCount     int
}

// ExtractText returns best-effort text for each page that has any, by
// scanning content-stream show operators. No font decoding is attempted
// beyond UTF-16 detection; presence matters here, not fidelity.
func (d *Document) ExtractText() []PageText {
	var out []PageText
	for idx, page := range d.pages {
		txt := d.pageText(page)
		if txt == "" {
			continue
		}
		out = append(out, PageText{Page: idx, Content: txt})
	}
	return out
}

// TextLayerVerdict counts pages yielding non-whitespace text and compares
// the ratio to threshold; equality passes. A zero-page document has no text
// layer by definition.
func (d *Document) TextLayerVerdict(threshold float64) TextLayerVerdict {
	v := TextLayerVerdict{PageCount: len(d.pages)}
	if v.PageCount == 0 {
		return v
	}
	for _, page := range d.pages {
		if d.pageText(page) != "" {
			v.PagesWithText++
		}
	}
	v.Ratio = float64(v.PagesWithText) / float64(v.PageCount)
	v.Present = v.Ratio >= threshold
	return v
}

func (d *Document) pageText(page pdf.Page) string {
	var b strings.Builder
	for _, data := range d.contentStreams(page) {
		b.WriteString(textFromContentStream(data))
	}
	return strings.TrimSpace(b.String())
}

// textFromContentStream walks operators and collects the operands of the
// text-showing ones (Tj, ', ", TJ). BT, T* and vertical Td moves become line
// breaks so multi-line pages read naturally.
func textFromContentStream(data []byte) string {
	tr := pdf.NewObjectReader(scanner.New(bytes.NewReader(data), scanner.Config{}))
	var operands []pdf.Object
	var out strings.Builder

	for {
		tok, err := tr.Next()
		if err != nil {
			break
		}
		if tok.Type == scanner.TokenKeyword {
			op, _ := tok.Value.(string)
			switch op {
			case "BT", "T*":
				newline(&out)
			case "Td", "TD":
				if len(operands) >= 1 {
					if dy, ok := pdf.AsFloat(operands[len(operands)-1]); ok && dy != 0 {
						newline(&out)
					}
				}
			case "Tj":
				writeStringOperand(&out, lastOperand(operands))
			case "'", "\"":
				newline(&out)
				writeStringOperand(&out, lastOperand(operands))
			case "TJ":
				if arr, ok := lastOperand(operands).(*pdf.Array); ok {
					for _, item := range arr.Items {
						writeStringOperand(&out, item)
					}
				}
			}
			operands = operands[:0]
			continue
		}
		if tok.Type == scanner.TokenInlineImage {
			operands = operands[:0]
			continue
		}
		tr.Unread(tok)
		operand, err := tr.ReadObject()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			// Construct we do not model; the offending token is already
			// consumed, keep walking.
			continue
		}
		operands = append(operands, operand)
	}
	return out.String()
}

func lastOperand(operands []pdf.Object) pdf.Object {
	if len(operands) == 0 {
		return pdf.Null{}
	}
	return operands[len(operands)-1]
}

func writeStringOperand(out *strings.Builder, obj pdf.Object) {
	s, ok := obj.(pdf.String)
	if !ok || len(s.Data) == 0 {
		return
	}
	out.WriteString(decodeTextBytes(s.Data))
}

func newline(out *strings.Builder) {
	if out.Len() > 0 {
		out.WriteByte('\n')
	}
}

// decodeTextBytes interprets a show-operator string. UTF-16BE strings are
// decoded via their BOM; everything else is treated as single-byte text.
func decodeTextBytes(data []byte) string {
	if len(data) >= 2 && data[0] == 0xFE && data[1] == 0xFF {
		u16 := make([]uint16, 0, (len(data)-2)/2)
		for i := 2; i+1 < len(data); i += 2 {
			u16 = append(u16, uint16(data[i])<<8|uint16(data[i+1]))
		}
		return string(utf16.Decode(u16))
	}
	var b strings.Builder
	for _, c := range data {
		b.WriteByte(c)
	}
	return b.String()
}
