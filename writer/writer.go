// Package writer accumulates pages from heterogeneous sources into one
// output document and serializes it with a classic cross-reference table.
// Imported pages keep their encoded streams byte for byte; only object
// numbers and tree wiring change.
package writer

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/takashi-oh/scankit/pdf"
)

const headerLine = "%PDF-1.7\n%\xE2\xE3\xCF\xD3\n"

// DocumentWriter builds the output artifact. Object numbers 1 and 2 are
// reserved for the catalog and the page tree root; everything else is
// allocated as pages arrive.
type DocumentWriter struct {
	objects  map[pdf.ObjectRef]pdf.Object
	pageRefs []pdf.ObjectRef
	nextNum  int
	producer string
}

func NewDocumentWriter() *DocumentWriter {
	return &DocumentWriter{
		objects: make(map[pdf.ObjectRef]pdf.Object),
		nextNum: 3,
	}
}

// SetProducer records a Producer string for the output Info dictionary.
func (w *DocumentWriter) SetProducer(name string) { w.producer = name }

// PageCount returns the number of pages added so far.
func (w *DocumentWriter) PageCount() int { return len(w.pageRefs) }

const (
	catalogNum = 1
	pagesNum   = 2
)

// AddPage imports one page: the page dictionary and every object reachable
// from it are copied into the writer with fresh numbers. The copy is
// memoized per call, so cyclic structures (annotations pointing back at
// their page) import exactly once.
func (w *DocumentWriter) AddPage(p pdf.Page) error {
	if p.Dict == nil {
		return fmt.Errorf("page has no dictionary")
	}
	pageRef := w.alloc()
	memo := map[pdf.ObjectRef]pdf.ObjectRef{}
	if p.Ref != (pdf.ObjectRef{}) {
		memo[p.Ref] = pageRef
	}

	copied := pdf.NewDict()
	for _, key := range p.Dict.Keys() {
		if key == "Parent" { // rewired below; following it would drag the source tree in
			continue
		}
		val, _ := p.Dict.Get(key)
		copied.Set(key, w.importObject(p.Source, val, memo))
	}
	copied.Set("Type", pdf.Name("Page"))
	copied.Set("Parent", pdf.Ref{Num: pagesNum})

	w.objects[pageRef] = copied
	w.pageRefs = append(w.pageRefs, pageRef)
	return nil
}

func (w *DocumentWriter) alloc() pdf.ObjectRef {
	ref := pdf.ObjectRef{Num: w.nextNum}
	w.nextNum++
	return ref
}

// importObject deep-copies obj from src into the writer's object space.
// Indirect references allocate a destination object on first sight and are
// rewritten; unresolvable references become null.
func (w *DocumentWriter) importObject(src *pdf.Document, obj pdf.Object, memo map[pdf.ObjectRef]pdf.ObjectRef) pdf.Object {
	switch v := obj.(type) {
	case pdf.Ref:
		srcRef := pdf.ObjectRef(v)
		if dst, ok := memo[srcRef]; ok {
			return pdf.Ref(dst)
		}
		if src == nil {
			return pdf.Null{}
		}
		target, ok := src.Objects[srcRef]
		if !ok {
			return pdf.Null{}
		}
		dst := w.alloc()
		memo[srcRef] = dst
		w.objects[dst] = w.importObject(src, target, memo)
		return pdf.Ref(dst)
	case *pdf.Dict:
		out := pdf.NewDict()
		for _, key := range v.Keys() {
			val, _ := v.Get(key)
			out.Set(key, w.importObject(src, val, memo))
		}
		return out
	case *pdf.Array:
		out := &pdf.Array{Items: make([]pdf.Object, 0, v.Len())}
		for _, item := range v.Items {
			out.Append(w.importObject(src, item, memo))
		}
		return out
	case *pdf.Stream:
		return &pdf.Stream{
			Dict: w.importObject(src, v.Dict, memo).(*pdf.Dict),
			Data: append([]byte(nil), v.Data...),
		}
	case pdf.String:
		return pdf.String{Data: append([]byte(nil), v.Data...), Hex: v.Hex}
	default:
		// Names, numbers, booleans and null are immutable values.
		return obj
	}
}

// WriteTo serializes the accumulated document: header, objects in ascending
// number order, cross-reference table, trailer.
func (w *DocumentWriter) WriteTo(out io.Writer) (int64, error) {
	if len(w.pageRefs) == 0 {
		return 0, fmt.Errorf("no pages to write")
	}

	kids := &pdf.Array{}
	for _, ref := range w.pageRefs {
		kids.Append(pdf.Ref(ref))
	}
	pagesDict := pdf.NewDict()
	pagesDict.Set("Type", pdf.Name("Pages"))
	pagesDict.Set("Count", pdf.Integer(len(w.pageRefs)))
	pagesDict.Set("Kids", kids)
	w.objects[pdf.ObjectRef{Num: pagesNum}] = pagesDict

	catalog := pdf.NewDict()
	catalog.Set("Type", pdf.Name("Catalog"))
	catalog.Set("Pages", pdf.Ref{Num: pagesNum})
	w.objects[pdf.ObjectRef{Num: catalogNum}] = catalog

	var infoRef pdf.ObjectRef
	if w.producer != "" {
		infoRef = w.alloc()
		info := pdf.NewDict()
		info.Set("Producer", pdf.String{Data: []byte(w.producer)})
		w.objects[infoRef] = info
	}

	var buf bytes.Buffer
	buf.WriteString(headerLine)
	offsets := make(map[int]int64, len(w.objects))
	maxNum := 0
	for num := 1; num < w.nextNum; num++ {
		ref := pdf.ObjectRef{Num: num}
		obj, ok := w.objects[ref]
		if !ok {
			continue
		}
		offsets[num] = int64(buf.Len())
		buf.Write(serializeObject(ref, obj))
		maxNum = num
	}

	xrefOffset := int64(buf.Len())
	fmt.Fprintf(&buf, "xref\n0 %d\n", maxNum+1)
	buf.WriteString("0000000000 65535 f \n")
	for num := 1; num <= maxNum; num++ {
		if off, ok := offsets[num]; ok {
			fmt.Fprintf(&buf, "%010d 00000 n \n", off)
		} else {
			buf.WriteString("0000000000 65535 f \n")
		}
	}

	trailer := pdf.NewDict()
	trailer.Set("Size", pdf.Integer(maxNum+1))
	trailer.Set("Root", pdf.Ref{Num: catalogNum})
	if infoRef != (pdf.ObjectRef{}) {
		trailer.Set("Info", pdf.Ref(infoRef))
	}
	buf.WriteString("trailer\n")
	serializeDict(&buf, trailer)
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	n, err := out.Write(buf.Bytes())
	return int64(n), err
}

// WriteFile serializes to path, creating parent directories as needed. The
// document lands via a temp file and rename, so a failed run leaves no
// partial output behind.
func (w *DocumentWriter) WriteFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".scankit-*.pdf")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := w.WriteTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("finalize output: %w", err)
	}
	return nil
}
