// Package extractor opens parsed PDF documents for reading: it inflates
// object streams, walks the page tree, decodes content streams, and answers
// the text-layer question the assembler asks about every document input.
package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/takashi-oh/scankit/filters"
	"github.com/takashi-oh/scankit/pdf"
	"github.com/takashi-oh/scankit/scanner"
)

// Document is a readable PDF with its page list resolved.
type Document struct {
	doc   *pdf.Document
	pipe  *filters.Pipeline
	pages []pdf.Page
}

// Open parses data and prepares it for page access.
func Open(data []byte) (*Document, error) {
	doc, err := pdf.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	d := &Document{doc: doc, pipe: filters.NewDefault()}
	d.inflateObjectStreams()
	d.pages = collectPages(doc)
	return d, nil
}

// Pages returns the document's pages in reading order.
func (d *Document) Pages() []pdf.Page { return d.pages }

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return len(d.pages) }

// inflateObjectStreams lifts objects embedded in ObjStm streams into the
// top-level object table so the page walk can reach them.
func (d *Document) inflateObjectStreams() {
	inflated := make(map[pdf.ObjectRef]pdf.Object)
	for _, obj := range d.doc.Objects {
		stream, ok := obj.(*pdf.Stream)
		if !ok {
			continue
		}
		if typ, _ := stream.Dict.Get("Type"); typ != pdf.Name("ObjStm") {
			continue
		}
		objects, err := d.decodeObjectStream(stream)
		if err != nil {
			continue // a broken ObjStm only hides its own objects
		}
		for num, embedded := range objects {
			key := pdf.ObjectRef{Num: num}
			if _, exists := d.doc.Objects[key]; !exists {
				inflated[key] = embedded
			}
		}
	}
	for ref, obj := range inflated {
		d.doc.Objects[ref] = obj
	}
}

func (d *Document) decodeObjectStream(stream *pdf.Stream) (map[int]pdf.Object, error) {
	data, err := d.pipe.DecodeStream(context.Background(), d.doc, stream)
	if err != nil {
		return nil, err
	}
	count, ok := pdf.AsInt(d.doc.DictGet(stream.Dict, "N"))
	if !ok || count <= 0 {
		return nil, errors.New("invalid object stream count")
	}
	first, ok := pdf.AsInt(d.doc.DictGet(stream.Dict, "First"))
	if !ok || first < 0 || first > int64(len(data)) {
		return nil, errors.New("invalid object stream First offset")
	}

	header := pdf.NewObjectReader(scanner.New(bytes.NewReader(data[:first]), scanner.Config{}))
	type entry struct{ num, off int }
	entries := make([]entry, 0, count)
	for i := int64(0); i < count; i++ {
		numObj, err := header.ReadObject()
		if err != nil {
			return nil, fmt.Errorf("objstm header: %w", err)
		}
		offObj, err := header.ReadObject()
		if err != nil {
			return nil, fmt.Errorf("objstm header: %w", err)
		}
		num, ok1 := pdf.AsInt(numObj)
		off, ok2 := pdf.AsInt(offObj)
		if !ok1 || !ok2 {
			return nil, errors.New("objstm header is not numeric")
		}
		entries = append(entries, entry{num: int(num), off: int(off)})
	}

	body := data[first:]
	objects := make(map[int]pdf.Object, len(entries))
	for i, ent := range entries {
		if ent.off < 0 || ent.off > len(body) {
			continue
		}
		end := len(body)
		if i+1 < len(entries) && entries[i+1].off >= ent.off && entries[i+1].off <= len(body) {
			end = entries[i+1].off
		}
		segment := bytes.TrimSpace(body[ent.off:end])
		if len(segment) == 0 {
			continue
		}
		tr := pdf.NewObjectReader(scanner.New(bytes.NewReader(segment), scanner.Config{}))
		obj, err := tr.ReadObject()
		if err != nil {
			return nil, fmt.Errorf("objstm object %d: %w", ent.num, err)
		}
		objects[ent.num] = obj
	}
	return objects, nil
}

// collectPages walks the page tree from the catalog. Page refs are recorded
// so the writer can rewire back-references (annotation /P) during import.
func collectPages(doc *pdf.Document) []pdf.Page {
	catalog, ok := doc.Catalog()
	if !ok {
		return nil
	}
	var pages []pdf.Page
	seen := make(map[pdf.ObjectRef]bool)
	pagesObj, _ := catalog.Get("Pages")
	walkPageTree(doc, pagesObj, seen, &pages)
	return pages
}

func walkPageTree(doc *pdf.Document, obj pdf.Object, seen map[pdf.ObjectRef]bool, out *[]pdf.Page) {
	var ref pdf.ObjectRef
	if r, ok := obj.(pdf.Ref); ok {
		ref = pdf.ObjectRef(r)
		if seen[ref] {
			return
		}
		seen[ref] = true
	}
	dict, ok := doc.ResolveDict(obj)
	if !ok {
		return
	}
	typ, _ := pdf.AsName(doc.DictGet(dict, "Type"))
	switch typ {
	case "Pages":
		if kids, ok := doc.ResolveArray(doc.DictGet(dict, "Kids")); ok {
			for _, kid := range kids.Items {
				walkPageTree(doc, kid, seen, out)
			}
		}
		return
	case "Page":
		*out = append(*out, pdf.Page{Dict: dict, Ref: ref, Source: doc})
		return
	}
	// Some writers omit /Type on leaf pages; /Contents marks them.
	if _, ok := dict.Get("Contents"); ok {
		*out = append(*out, pdf.Page{Dict: dict, Ref: ref, Source: doc})
	}
}

// contentStreams returns the decoded content stream blobs for a page.
func (d *Document) contentStreams(page pdf.Page) [][]byte {
	var out [][]byte
	contents, ok := page.Dict.Get("Contents")
	if !ok {
		return nil
	}
	d.appendContent(contents, &out)
	return out
}

func (d *Document) appendContent(obj pdf.Object, out *[][]byte) {
	switch v := d.doc.Resolve(obj).(type) {
	case *pdf.Array:
		for _, item := range v.Items {
			d.appendContent(item, out)
		}
	case *pdf.Stream:
		data, err := d.pipe.DecodeStream(context.Background(), d.doc, v)
		if err != nil {
			return // undecodable content yields no text, not a failure
		}
		*out = append(*out, data)
	}
}
