// Package builder composes searchable PDF pages: the source image drawn
// full-bleed with the recognized text laid invisibly over the matching
// word positions (text render mode 3).
package builder

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"image"
	"strconv"

	"github.com/takashi-oh/scankit/ocr"
	"github.com/takashi-oh/scankit/pdf"
)

// DefaultDPI maps pixels to points 1:1 when the image carries no density
// information.
const DefaultDPI = 72

// SearchablePage builds a single page from an image and its recognition
// result. The returned page resolves against a self-contained object set, so
// it can be handed straight to the output writer.
func SearchablePage(img image.Image, res ocr.Result, dpi int) (pdf.Page, error) {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	bounds := img.Bounds()
	wPx, hPx := bounds.Dx(), bounds.Dy()
	if wPx <= 0 || hPx <= 0 {
		return pdf.Page{}, fmt.Errorf("image has empty bounds %v", bounds)
	}
	scale := 72.0 / float64(dpi)
	wPt := float64(wPx) * scale
	hPt := float64(hPx) * scale

	jpegData, err := encodeJPEG(img)
	if err != nil {
		return pdf.Page{}, fmt.Errorf("encode page image: %w", err)
	}

	source := &pdf.Document{Objects: make(map[pdf.ObjectRef]pdf.Object)}
	imageRef := pdf.ObjectRef{Num: 1}
	contentRef := pdf.ObjectRef{Num: 2}
	fontRef := pdf.ObjectRef{Num: 3}

	imageDict := pdf.NewDict()
	imageDict.Set("Type", pdf.Name("XObject"))
	imageDict.Set("Subtype", pdf.Name("Image"))
	imageDict.Set("Width", pdf.Integer(wPx))
	imageDict.Set("Height", pdf.Integer(hPx))
	imageDict.Set("ColorSpace", pdf.Name("DeviceRGB"))
	imageDict.Set("BitsPerComponent", pdf.Integer(8))
	imageDict.Set("Filter", pdf.Name("DCTDecode"))
	source.Objects[imageRef] = &pdf.Stream{Dict: imageDict, Data: jpegData}

	content := contentStream(res, wPt, hPt, float64(hPx), scale)
	compressed, err := deflate(content)
	if err != nil {
		return pdf.Page{}, fmt.Errorf("compress content stream: %w", err)
	}
	contentDict := pdf.NewDict()
	contentDict.Set("Filter", pdf.Name("FlateDecode"))
	source.Objects[contentRef] = &pdf.Stream{Dict: contentDict, Data: compressed}

	fontDict := pdf.NewDict()
	fontDict.Set("Type", pdf.Name("Font"))
	fontDict.Set("Subtype", pdf.Name("Type1"))
	fontDict.Set("BaseFont", pdf.Name("Helvetica"))
	fontDict.Set("Encoding", pdf.Name("WinAnsiEncoding"))
	source.Objects[fontRef] = fontDict

	xobjects := pdf.NewDict()
	xobjects.Set("Im0", pdf.Ref(imageRef))
	fonts := pdf.NewDict()
	fonts.Set("F1", pdf.Ref(fontRef))
	resources := pdf.NewDict()
	resources.Set("XObject", xobjects)
	resources.Set("Font", fonts)

	mediaBox := &pdf.Array{}
	mediaBox.Append(pdf.Integer(0), pdf.Integer(0), pdf.Real(wPt), pdf.Real(hPt))

	pageDict := pdf.NewDict()
	pageDict.Set("Type", pdf.Name("Page"))
	pageDict.Set("MediaBox", mediaBox)
	pageDict.Set("Resources", resources)
	pageDict.Set("Contents", pdf.Ref(contentRef))

	return pdf.Page{Dict: pageDict, Source: source}, nil
}

// contentStream draws the image across the full page, then overlays each
// recognized word at its pixel position, converted to page points with the
// y axis flipped.
func contentStream(res ocr.Result, wPt, hPt, hPx, scale float64) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "q\n%s 0 0 %s 0 0 cm\n/Im0 Do\nQ\n", num(wPt), num(hPt))
	if len(res.Words) == 0 {
		return b.Bytes()
	}
	b.WriteString("BT\n3 Tr\n")
	for _, w := range res.Words {
		if w.Text == "" || w.Bounds.IsEmpty() {
			continue
		}
		size := w.Bounds.Height * scale
		if size < 1 {
			size = 1
		}
		x := w.Bounds.X * scale
		y := (hPx - w.Bounds.Y - w.Bounds.Height) * scale
		fmt.Fprintf(&b, "/F1 %s Tf\n1 0 0 1 %s %s Tm\n", num(size), num(x), num(y))
		writeTextShow(&b, w.Text)
	}
	b.WriteString("ET\n")
	return b.Bytes()
}

func writeTextShow(b *bytes.Buffer, text string) {
	b.WriteByte('(')
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch c {
		case '(', ')', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\n', '\r':
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	b.WriteString(") Tj\n")
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
