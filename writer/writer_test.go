package writer

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/takashi-oh/scankit/pdf"
)

func simplePage(text string) pdf.Page {
	source := &pdf.Document{Objects: make(map[pdf.ObjectRef]pdf.Object)}
	contentRef := pdf.ObjectRef{Num: 1}
	source.Objects[contentRef] = &pdf.Stream{
		Dict: pdf.NewDict(),
		Data: []byte("BT /F1 12 Tf (" + text + ") Tj ET"),
	}
	box := &pdf.Array{}
	box.Append(pdf.Integer(0), pdf.Integer(0), pdf.Integer(612), pdf.Integer(792))
	dict := pdf.NewDict()
	dict.Set("Type", pdf.Name("Page"))
	dict.Set("MediaBox", box)
	dict.Set("Contents", pdf.Ref(contentRef))
	return pdf.Page{Dict: dict, Source: source}
}

func TestWriteToLayout(t *testing.T) {
	w := NewDocumentWriter()
	if err := w.AddPage(simplePage("one")); err != nil {
		t.Fatalf("AddPage: %v", err)
	}
	if err := w.AddPage(simplePage("two")); err != nil {
		t.Fatalf("AddPage: %v", err)
	}
	if w.PageCount() != 2 {
		t.Fatalf("PageCount = %d, want 2", w.PageCount())
	}

	var buf bytes.Buffer
	n, err := w.WriteTo(&buf)
	if err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if n != int64(buf.Len()) {
		t.Fatalf("reported %d bytes, wrote %d", n, buf.Len())
	}

	out := buf.String()
	if !strings.HasPrefix(out, "%PDF-1.7\n") {
		t.Fatalf("output missing header: %q", out[:16])
	}
	for _, want := range []string{"/Type /Catalog", "/Count 2", "xref", "trailer", "startxref", "%%EOF"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}

	// The xref offset at the end must point at the xref keyword.
	idx := strings.LastIndex(out, "startxref\n")
	if idx < 0 {
		t.Fatal("no startxref")
	}
	tail := out[idx+len("startxref\n"):]
	off, err := strconv.Atoi(strings.TrimSpace(strings.TrimSuffix(tail, "%%EOF\n")))
	if err != nil {
		t.Fatalf("parse startxref: %v", err)
	}
	if !strings.HasPrefix(out[off:], "xref\n") {
		t.Fatalf("startxref %d does not land on the xref table", off)
	}
}

func TestWriteToReparses(t *testing.T) {
	w := NewDocumentWriter()
	if err := w.AddPage(simplePage("hello")); err != nil {
		t.Fatalf("AddPage: %v", err)
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	doc, err := pdf.Parse(buf.Bytes())
	if err != nil {
		t.Fatalf("re-parse output: %v", err)
	}
	catalog, ok := doc.Catalog()
	if !ok {
		t.Fatal("output has no catalog")
	}
	pages, ok := doc.ResolveDict(doc.DictGet(catalog, "Pages"))
	if !ok {
		t.Fatal("catalog has no page tree")
	}
	if count, _ := pdf.AsInt(doc.DictGet(pages, "Count")); count != 1 {
		t.Fatalf("page count = %d, want 1", count)
	}
}

func TestWriteToNoPages(t *testing.T) {
	var buf bytes.Buffer
	if _, err := NewDocumentWriter().WriteTo(&buf); err == nil {
		t.Fatal("expected error for empty document")
	}
	if buf.Len() != 0 {
		t.Fatalf("wrote %d bytes despite error", buf.Len())
	}
}

func TestAddPageRewiresAnnotationBackrefs(t *testing.T) {
	source := &pdf.Document{Objects: make(map[pdf.ObjectRef]pdf.Object)}
	pageRef := pdf.ObjectRef{Num: 7}
	annotRef := pdf.ObjectRef{Num: 8}

	annot := pdf.NewDict()
	annot.Set("Type", pdf.Name("Annot"))
	annot.Set("P", pdf.Ref(pageRef))
	source.Objects[annotRef] = annot

	annots := &pdf.Array{}
	annots.Append(pdf.Ref(annotRef))
	pageDict := pdf.NewDict()
	pageDict.Set("Type", pdf.Name("Page"))
	pageDict.Set("Annots", annots)
	source.Objects[pageRef] = pageDict

	w := NewDocumentWriter()
	if err := w.AddPage(pdf.Page{Dict: pageDict, Ref: pageRef, Source: source}); err != nil {
		t.Fatalf("AddPage: %v", err)
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	doc, err := pdf.Parse(buf.Bytes())
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	// Exactly one page object: the back-reference must reuse it, not
	// duplicate the page.
	pageCount := 0
	for _, obj := range doc.Objects {
		if d, ok := obj.(*pdf.Dict); ok {
			if typ, _ := d.Get("Type"); typ == pdf.Name("Page") {
				pageCount++
			}
		}
	}
	if pageCount != 1 {
		t.Fatalf("output has %d page objects, want 1", pageCount)
	}
}

func TestAddPageSkipsSourceParent(t *testing.T) {
	source := &pdf.Document{Objects: make(map[pdf.ObjectRef]pdf.Object)}
	parentRef := pdf.ObjectRef{Num: 9}
	source.Objects[parentRef] = pdf.NewDict()

	pageDict := pdf.NewDict()
	pageDict.Set("Type", pdf.Name("Page"))
	pageDict.Set("Parent", pdf.Ref(parentRef))

	w := NewDocumentWriter()
	if err := w.AddPage(pdf.Page{Dict: pageDict, Source: source}); err != nil {
		t.Fatalf("AddPage: %v", err)
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	doc, err := pdf.Parse(buf.Bytes())
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	for _, obj := range doc.Objects {
		d, ok := obj.(*pdf.Dict)
		if !ok {
			continue
		}
		if typ, _ := d.Get("Type"); typ != pdf.Name("Page") {
			continue
		}
		parent, ok := d.Get("Parent")
		if !ok {
			t.Fatal("page lost its Parent entry")
		}
		if parent != (pdf.Ref{Num: 2}) {
			t.Fatalf("page Parent = %v, want rewired to the output tree root", parent)
		}
	}
}

func TestSetProducerAppearsInOutput(t *testing.T) {
	w := NewDocumentWriter()
	w.SetProducer("scankit test")
	if err := w.AddPage(simplePage("x")); err != nil {
		t.Fatalf("AddPage: %v", err)
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if !strings.Contains(buf.String(), "(scankit test)") {
		t.Fatal("producer string missing from output")
	}

	doc, err := pdf.Parse(buf.Bytes())
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	info, ok := doc.ResolveDict(doc.DictGet(doc.Trailer, "Info"))
	if !ok {
		t.Fatal("trailer has no Info")
	}
	producer, ok := doc.Resolve(doc.DictGet(info, "Producer")).(pdf.String)
	if !ok || string(producer.Data) != "scankit test" {
		t.Fatalf("Producer = %#v", producer)
	}
}

func TestWriteFile(t *testing.T) {
	w := NewDocumentWriter()
	if err := w.AddPage(simplePage("file")); err != nil {
		t.Fatalf("AddPage: %v", err)
	}

	path := filepath.Join(t.TempDir(), "nested", "dir", "out.pdf")
	if err := w.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-1.7")) {
		t.Fatal("output is not a document")
	}

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("list output dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("output dir has %d entries, want only the document", len(entries))
	}
}

func TestWriteFileEmptyDocumentLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.pdf")
	if err := NewDocumentWriter().WriteFile(path); err == nil {
		t.Fatal("expected error for empty document")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("list dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("dir has %d leftover entries", len(entries))
	}
}

func TestSerializeEscaping(t *testing.T) {
	d := pdf.NewDict()
	d.Set("Odd Name", pdf.Name("with space"))
	d.Set("Text", pdf.String{Data: []byte("a(b)\\c")})
	var buf bytes.Buffer
	serializeDict(&buf, d)
	out := buf.String()

	if !strings.Contains(out, "/Odd#20Name") || !strings.Contains(out, "/with#20space") {
		t.Errorf("names not escaped: %s", out)
	}
	if !strings.Contains(out, `(a\(b\)\\c)`) {
		t.Errorf("string not escaped: %s", out)
	}
}

func TestSerializeBinaryStringUsesHexForm(t *testing.T) {
	var buf bytes.Buffer
	serializeValue(&buf, pdf.String{Data: []byte{0x00, 0x01, 0xFE, 0xFF}})
	out := buf.String()
	if !strings.HasPrefix(out, "<") || !strings.HasSuffix(out, ">") {
		t.Fatalf("binary string serialized as %q, want hex form", out)
	}
}
