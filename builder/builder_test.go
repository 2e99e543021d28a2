package builder

import (
	"bytes"
	"compress/zlib"
	"image"
	"image/color"
	"io"
	"strings"
	"testing"

	"github.com/takashi-oh/scankit/ocr"
	"github.com/takashi-oh/scankit/pdf"
)

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}
	return img
}

func pageContent(t *testing.T, p pdf.Page) string {
	t.Helper()
	contents, ok := p.Source.Resolve(mustGet(t, p.Dict, "Contents")).(*pdf.Stream)
	if !ok {
		t.Fatalf("page Contents is not a stream")
	}
	zr, err := zlib.NewReader(bytes.NewReader(contents.Data))
	if err != nil {
		t.Fatalf("content stream is not zlib data: %v", err)
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("inflate content stream: %v", err)
	}
	return string(raw)
}

func mustGet(t *testing.T, d *pdf.Dict, key string) pdf.Object {
	t.Helper()
	v, ok := d.Get(pdf.Name(key))
	if !ok {
		t.Fatalf("missing /%s", key)
	}
	return v
}

func TestSearchablePage(t *testing.T) {
	res := ocr.Result{
		PlainText: "hello world",
		Words: []ocr.Word{
			{Text: "hello", Bounds: ocr.Box{X: 10, Y: 20, Width: 50, Height: 12}},
			{Text: "world", Bounds: ocr.Box{X: 70, Y: 20, Width: 52, Height: 12}},
		},
	}
	page, err := SearchablePage(testImage(200, 100), res, 0)
	if err != nil {
		t.Fatalf("SearchablePage: %v", err)
	}

	boxObj := mustGet(t, page.Dict, "MediaBox")
	box, ok := boxObj.(*pdf.Array)
	if !ok || box.Len() != 4 {
		t.Fatalf("MediaBox = %#v", boxObj)
	}
	if w, _ := pdf.AsFloat(box.Items[2]); w != 200 {
		t.Fatalf("page width = %v, want 200", w)
	}
	if h, _ := pdf.AsFloat(box.Items[3]); h != 100 {
		t.Fatalf("page height = %v, want 100", h)
	}

	content := pageContent(t, page)
	if !strings.Contains(content, "/Im0 Do") {
		t.Fatalf("content stream does not draw the image:\n%s", content)
	}
	if !strings.Contains(content, "3 Tr") {
		t.Fatalf("text overlay is not invisible:\n%s", content)
	}
	// y = 100 - (20 + 12) = 68 at 72 dpi.
	if !strings.Contains(content, "1 0 0 1 10.00 68.00 Tm") {
		t.Fatalf("word position missing:\n%s", content)
	}
	if !strings.Contains(content, "(hello) Tj") || !strings.Contains(content, "(world) Tj") {
		t.Fatalf("word text missing:\n%s", content)
	}

	img, ok := page.Source.Resolve(dictGet(t, page.Dict, "Resources", "XObject", "Im0")).(*pdf.Stream)
	if !ok {
		t.Fatalf("image XObject is not a stream")
	}
	if f, _ := img.Dict.Get("Filter"); f != pdf.Name("DCTDecode") {
		t.Fatalf("image filter = %v, want DCTDecode", f)
	}
	if !bytes.HasPrefix(img.Data, []byte{0xFF, 0xD8}) {
		t.Fatalf("image data is not JPEG")
	}
}

func dictGet(t *testing.T, d *pdf.Dict, keys ...string) pdf.Object {
	t.Helper()
	var v pdf.Object = d
	for _, key := range keys {
		dict, ok := v.(*pdf.Dict)
		if !ok {
			t.Fatalf("/%s parent is not a dict", key)
		}
		v = mustGet(t, dict, key)
	}
	return v
}

func TestSearchablePageEscapesText(t *testing.T) {
	res := ocr.Result{
		Words: []ocr.Word{
			{Text: `a(b)\c`, Bounds: ocr.Box{X: 0, Y: 0, Width: 30, Height: 10}},
		},
	}
	page, err := SearchablePage(testImage(50, 50), res, 72)
	if err != nil {
		t.Fatalf("SearchablePage: %v", err)
	}
	content := pageContent(t, page)
	if !strings.Contains(content, `(a\(b\)\\c) Tj`) {
		t.Fatalf("delimiters not escaped:\n%s", content)
	}
}

func TestSearchablePageNoWords(t *testing.T) {
	page, err := SearchablePage(testImage(50, 50), ocr.Result{}, 72)
	if err != nil {
		t.Fatalf("SearchablePage: %v", err)
	}
	content := pageContent(t, page)
	if strings.Contains(content, "BT") {
		t.Fatalf("unexpected text block in word-free page:\n%s", content)
	}
}

func TestSearchablePageDPIScaling(t *testing.T) {
	page, err := SearchablePage(testImage(300, 150), ocr.Result{}, 300)
	if err != nil {
		t.Fatalf("SearchablePage: %v", err)
	}
	box := mustGet(t, page.Dict, "MediaBox").(*pdf.Array)
	if w, _ := pdf.AsFloat(box.Items[2]); w != 72 {
		t.Fatalf("page width = %v, want 72", w)
	}
	if h, _ := pdf.AsFloat(box.Items[3]); h != 36 {
		t.Fatalf("page height = %v, want 36", h)
	}
}

func TestSearchablePageRejectsEmptyImage(t *testing.T) {
	if _, err := SearchablePage(image.NewNRGBA(image.Rect(0, 0, 0, 0)), ocr.Result{}, 72); err == nil {
		t.Fatal("expected error for empty image")
	}
}
